package supervisor

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"go.uber.org/zap"
)

// Run holds all state for a single child.
//
// Invariants: Kind is set at creation and never changes (finalize moves a
// job's directory to DONE/, but its ledger rows keep runType RUNNING, so the
// invoked and finished rows agree); EndedAt and ExitStatus are
// set exactly once, together, at reap time; exactly one run has
// Kind == KindControl and it is created first; ControlStdin is non-nil iff
// Kind == KindControl.
type Run struct {
	ID   RunID
	Kind RunKind
	PID  int

	Out *PipeEndpoint
	Err *PipeEndpoint

	Cmd       string // space-joined argv, trailing space (wire contract)
	Argv      []string
	StartedAt time.Time
	EndedAt   time.Time
	ExitStatus int

	// ControlStdin is the write end of the control child's stdin, held
	// open but unused by the supervisor today — present iff Kind == KindControl.
	ControlStdin *os.File

	indexFile *os.File
	indexW    *csv.Writer

	dir string // in-progress directory (RUNNING/<id> or CONTROL/<id>)

	sv *Supervisor
}

// open attaches the two already-dup'd source fds, creates the run's
// directory and sink files, and writes the index header.
func (r *Run) open(outSourceFD, errSourceFD int, now time.Time) error {
	r.Out = newPipeEndpoint(outSourceFD, labelStdout, now)
	r.Err = newPipeEndpoint(errSourceFD, labelStderr, now)

	r.dir = r.sv.runDir(r)
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return fmt.Errorf("create run directory: %w", err)
	}

	outSink, err := os.OpenFile(r.sv.path(r, KindDefault, artifactStdout), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("open stdout sink: %w", err)
	}
	r.Out.attachSink(outSink)

	errSink, err := os.OpenFile(r.sv.path(r, KindDefault, artifactStderr), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("open stderr sink: %w", err)
	}
	r.Err.attachSink(errSink)

	indexFile, indexW, err := openIndex(r.sv.path(r, KindDefault, artifactIndex))
	if err != nil {
		return err
	}
	r.indexFile, r.indexW = indexFile, indexW

	return nil
}

// flushPendingSample writes pipe's pending sample row to the index file if
// one exists.
func (r *Run) flushPendingSample(pipe *PipeEndpoint) error {
	if pipe.sample.recorded {
		return nil
	}
	row := []string{
		string(pipe.label),
		formatCSVTime(pipe.sample.sampledAt),
		strconv.FormatUint(pipe.sample.sizeAtSample, 10),
	}
	if err := r.indexW.Write(row); err != nil {
		return err
	}
	r.indexW.Flush()
	pipe.sample.recorded = true
	return r.indexW.Error()
}

// finalize flushes a final forced sample for both endpoints, closes every
// fd the run owns, renames its directory from RUNNING to DONE (jobs only —
// the control run's directory never moves), writes the finished-ledger row,
// and closes the index file.
//
// finalize is called exactly once per run, strictly after the child has been
// reaped (ExitStatus/EndedAt are set by the caller before this is invoked).
func (r *Run) finalize() error {
	now := r.EndedAt

	r.Out.forceSample(now)
	r.Err.forceSample(now)
	_ = r.flushPendingSample(r.Out)
	_ = r.flushPendingSample(r.Err)

	_ = r.Out.close()
	_ = r.Err.close()
	_ = r.Out.closeSink()
	_ = r.Err.closeSink()
	if r.ControlStdin != nil {
		_ = r.ControlStdin.Close()
	}

	finalPath := r.dir
	if r.Kind != KindControl {
		target := r.sv.path(r, KindDone, artifactDirectory)
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			r.sv.log.Warn("mkdir for done directory failed", zap.Error(err))
		} else if err := os.Rename(r.dir, target); err != nil {
			// On rename failure the finished row still records the original
			// in-progress directory, and a warning is logged; finalization
			// proceeds regardless.
			r.sv.log.Warn("rename to DONE failed; recording in-progress path", zap.Error(err))
		} else {
			finalPath = target
		}
	}

	// r.sv.ledgerFile is nil only when the control run's own Start() failed
	// before the ledger could be opened under its directory; there is
	// nowhere to write a finished row in that case.
	if r.sv.ledgerFile != nil {
		if err := r.sv.ledgerFile.appendFinished(r, finalPath); err != nil {
			r.sv.log.Warn("append finished row failed", zap.Error(err))
		}
	}

	if r.indexFile != nil {
		_ = r.indexFile.Close()
	}

	return nil
}
