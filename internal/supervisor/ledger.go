package supervisor

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"time"
)

// ledger owns the three whole-run CSV files: invoked, running, finished.
// invoked and finished are opened once, in append mode, when the control run
// is created; running is rewritten in its entirety on every spawn and every
// reap pass.
type ledger struct {
	invokedFile  *os.File
	invokedW     *csv.Writer
	finishedFile *os.File
	finishedW    *csv.Writer
	runningPath  string
}

var (
	invokedHeader  = []string{"id", "pid", "runType", "startTime", "statusDirectory", "cmd"}
	runningHeader  = []string{"id", "pid", "runType", "startTime", "duration", "statusDirectory", "cmd"}
	finishedHeader = []string{"id", "pid", "runType", "returnCode", "startTime", "endTime", "duration", "statusDirectory", "cmd"}
	indexHeader    = []string{"stream", "time", "size"}
)

func openLedger(invokedPath, runningPath, finishedPath string) (*ledger, error) {
	invokedFile, err := os.OpenFile(invokedPath, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open invoked ledger: %w", err)
	}
	invokedW := csv.NewWriter(invokedFile)
	if err := invokedW.Write(invokedHeader); err != nil {
		invokedFile.Close()
		return nil, fmt.Errorf("write invoked header: %w", err)
	}
	invokedW.Flush()

	finishedFile, err := os.OpenFile(finishedPath, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		invokedFile.Close()
		return nil, fmt.Errorf("open finished ledger: %w", err)
	}
	finishedW := csv.NewWriter(finishedFile)
	if err := finishedW.Write(finishedHeader); err != nil {
		invokedFile.Close()
		finishedFile.Close()
		return nil, fmt.Errorf("write finished header: %w", err)
	}
	finishedW.Flush()

	return &ledger{
		invokedFile:  invokedFile,
		invokedW:     invokedW,
		finishedFile: finishedFile,
		finishedW:    finishedW,
		runningPath:  runningPath,
	}, nil
}

func (l *ledger) appendInvoked(run *Run, statusDirectory string) error {
	row := []string{
		string(run.ID),
		strconv.Itoa(run.PID),
		run.Kind.String(),
		formatCSVTime(run.StartedAt),
		statusDirectory,
		run.Cmd,
	}
	if err := l.invokedW.Write(row); err != nil {
		return err
	}
	l.invokedW.Flush()
	return l.invokedW.Error()
}

func (l *ledger) appendFinished(run *Run, statusDirectory string) error {
	row := []string{
		string(run.ID),
		strconv.Itoa(run.PID),
		run.Kind.String(),
		strconv.Itoa(run.ExitStatus),
		formatCSVTime(run.StartedAt),
		formatCSVTime(run.EndedAt),
		strconv.FormatInt(int64(run.EndedAt.Sub(run.StartedAt).Round(time.Second).Seconds()), 10),
		statusDirectory,
		run.Cmd,
	}
	if err := l.finishedW.Write(row); err != nil {
		return err
	}
	l.finishedW.Flush()
	return l.finishedW.Error()
}

// rewriteRunning replaces running.csv wholesale with one row per rows entry.
// Rewriting rather than patching avoids any correctness dependency on file
// position tracking and makes the file a consistent snapshot at every
// observation point.
func (l *ledger) rewriteRunning(rows [][]string) error {
	f, err := os.Create(l.runningPath)
	if err != nil {
		return fmt.Errorf("rewrite running ledger: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(runningHeader); err != nil {
		return err
	}
	for _, row := range rows {
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func runningRow(run *Run, statusDirectory string, now time.Time) []string {
	return []string{
		string(run.ID),
		strconv.Itoa(run.PID),
		run.Kind.String(),
		formatCSVTime(run.StartedAt),
		strconv.FormatInt(int64(now.Sub(run.StartedAt).Round(time.Second).Seconds()), 10),
		statusDirectory,
		run.Cmd,
	}
}

func (l *ledger) close() error {
	l.invokedW.Flush()
	invokedErr := l.invokedFile.Close()
	l.finishedW.Flush()
	finishedErr := l.finishedFile.Close()
	if invokedErr != nil {
		return invokedErr
	}
	return finishedErr
}

// openIndex creates a run's per-run sample index file (stdindex.csv) and
// writes its header.
func openIndex(path string) (*os.File, *csv.Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open index file: %w", err)
	}
	w := csv.NewWriter(f)
	if err := w.Write(indexHeader); err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("write index header: %w", err)
	}
	w.Flush()
	return f, w, nil
}
