// Package supervisor implements gopard's core: a single-threaded process
// supervisor that multiplexes the stdout/stderr of a control child and the
// jobs it requests, persists captured streams to disk, and emits CSV
// ledgers describing invoked, running and finished runs.
package supervisor

import (
	"fmt"
	"time"
)

// RunKind is the closed enumeration of a run's lifecycle stage.
type RunKind int

const (
	// KindControl identifies the single distinguished control child.
	KindControl RunKind = iota
	// KindRunning identifies a live job.
	KindRunning
	// KindDone identifies a job that has been reaped and finalized.
	KindDone
	// KindDefault is a sentinel meaning "use the run's own current kind";
	// it is only ever passed into path construction, never stored on a Run.
	KindDefault
)

// String returns the CSV runType token for kind.
func (k RunKind) String() string {
	switch k {
	case KindControl:
		return "CONTROL"
	case KindRunning:
		return "RUNNING"
	case KindDone:
		return "DONE"
	default:
		return ""
	}
}

// directoryName is the path segment under statusRoot for kind.
func (k RunKind) directoryName() string {
	return k.String()
}

// pipeLabel distinguishes a run's two streams; values are fixed by the
// wire contract (stdindex.csv's "stream" column).
type pipeLabel string

const (
	labelStdout pipeLabel = "out"
	labelStderr pipeLabel = "err"
)

// RunID is the stable, deterministic identifier in the form
// "dYYYYMMDDtHHMMSSp<pid>", derived from the spawn wall-clock and the
// child's own pid.
type RunID string

// idLayout produces the "dYYYYMMDDtHHMMSS" portion of a run id.
const idLayout = "d20060102t150405"

func newRunID(t time.Time, pid int) RunID {
	return RunID(fmt.Sprintf("%sp%d", t.Format(idLayout), pid))
}

// csvTimeLayout formats startTime/endTime fields: "YYYY-MM-DD HH:MM.SS"
// local time. The minute/second separator is a period, not a colon — a
// deliberate wire contract of the CSV ledgers.
const csvTimeLayout = "2006-01-02 15:04.05"

func formatCSVTime(t time.Time) string {
	return t.Format(csvTimeLayout)
}

// artifactKind selects which on-disk file a path refers to.
type artifactKind int

const (
	artifactDirectory artifactKind = iota
	artifactStdout
	artifactStderr
	artifactIndex
	artifactRunning
	artifactInvoked
	artifactFinished
)

func (a artifactKind) suffix() string {
	switch a {
	case artifactStdout:
		return "/stdout.log"
	case artifactStderr:
		return "/stderr.log"
	case artifactIndex:
		return "/stdindex.csv"
	case artifactRunning:
		return "/running.csv"
	case artifactInvoked:
		return "/invoked.csv"
	case artifactFinished:
		return "/finished.csv"
	default:
		return ""
	}
}
