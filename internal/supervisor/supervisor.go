//go:build linux

package supervisor

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// fdSetSize mirrors the kernel's FD_SETSIZE (1024 on Linux): the largest fd
// value select can watch.
const fdSetSize = 1024

// MaxRun is the run table's fixed capacity: half of FD_SETSIZE, since every
// live run holds two fds (stdout, stderr) that select must watch.
const MaxRun = fdSetSize / 2

const (
	defaultSelectTimeout = 10 * time.Second
	defaultScratchCap    = 32 * 1024
	defaultLineCap       = 8 * 1024
	gracePeriod          = 3 * time.Second
)

// Options configures a Supervisor. Zero values are replaced with the
// defaults the equivalent CLI flags describe.
type Options struct {
	// StatusRoot is the directory under which CONTROL/, RUNNING/, and DONE/
	// are created.
	StatusRoot string

	// SelectTimeout bounds how long one loop iteration blocks in select
	// when no pipe is ready, so periodic reaping still happens even when a
	// job is silent.
	SelectTimeout time.Duration

	// SampleWindow is the minimum interval between recorded samples for a
	// single pipe (default 9s; tests shrink this).
	SampleWindow time.Duration

	// MaxRun overrides the run table capacity; zero, or any value above the
	// package MaxRun (derived from FD_SETSIZE), means the package MaxRun.
	MaxRun int

	// Stdout receives output from the control program's print: commands.
	// Defaults to os.Stdout.
	Stdout io.Writer

	// Now, if set, replaces time.Now for deterministic tests.
	Now func() time.Time
}

func (o Options) withDefaults() Options {
	if o.SelectTimeout <= 0 {
		o.SelectTimeout = defaultSelectTimeout
	}
	if o.SampleWindow <= 0 {
		o.SampleWindow = defaultSampleWindow
	}
	if o.MaxRun <= 0 || o.MaxRun > MaxRun {
		o.MaxRun = MaxRun
	}
	o.MaxRun = clampMaxRunToRlimit(o.MaxRun)
	if o.Stdout == nil {
		o.Stdout = os.Stdout
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Supervisor is the top-level object bundling the run table, the three
// ledger files, the control child's framing buffers, and a scratch buffer
// pair shared by every ordinary job (their bytes are only ever copied
// through, never reparsed, so one reusable buffer per stream is
// sufficient).
type Supervisor struct {
	opts       Options
	statusRoot string
	log        *zap.Logger
	stdout     io.Writer
	now        func() time.Time

	table      *RunTable
	ledgerFile *ledger

	reapers   map[int]*exec.Cmd
	pseudoPID int

	controlStdoutBuf *lineBuffer
	controlStderrBuf *lineBuffer
	scratchBuf       *lineBuffer
	scratchBufErr    *lineBuffer
}

// New constructs a Supervisor rooted at opts.StatusRoot, creating the
// CONTROL/RUNNING/DONE directory tree, spawning the control program as the
// very first run, and opening the three ledger files under the control
// run's own directory (CONTROL/<id>/invoked.csv, etc.) once its id is known.
func New(log *zap.Logger, controlArgv []string, opts Options) (*Supervisor, error) {
	opts = opts.withDefaults()
	if opts.StatusRoot == "" {
		return nil, fmt.Errorf("%w: StatusRoot is required", ErrSetupFailed)
	}
	if len(controlArgv) == 0 {
		return nil, fmt.Errorf("%w: control command is required", ErrSetupFailed)
	}

	for _, dir := range []RunKind{KindControl, KindRunning, KindDone} {
		if err := os.MkdirAll(filepath.Join(opts.StatusRoot, dir.directoryName()), 0o755); err != nil {
			return nil, fmt.Errorf("%w: create status tree: %v", ErrSetupFailed, err)
		}
	}

	s := &Supervisor{
		opts:       opts,
		statusRoot: opts.StatusRoot,
		log:        log,
		stdout:     opts.Stdout,
		now:        opts.Now,
		table:      newRunTable(opts.MaxRun),
		reapers:    make(map[int]*exec.Cmd),

		controlStdoutBuf: newLineBuffer(defaultLineCap),
		controlStderrBuf: newLineBuffer(defaultLineCap),
		scratchBuf:       newLineBuffer(defaultScratchCap),
		scratchBufErr:    newLineBuffer(defaultScratchCap),
	}

	// s.ledgerFile is still nil at this point, so spawn's usual
	// invoked-row append is a no-op; the row is appended explicitly below
	// once the ledger exists and can be opened under this run's directory.
	controlRun, err := s.spawnControl(controlArgv)
	if err != nil {
		return nil, fmt.Errorf("%w: spawn control program: %v", ErrSetupFailed, err)
	}

	l, err := openLedger(
		s.path(controlRun, KindDefault, artifactInvoked),
		s.path(controlRun, KindDefault, artifactRunning),
		s.path(controlRun, KindDefault, artifactFinished),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSetupFailed, err)
	}
	s.ledgerFile = l

	if err := l.appendInvoked(controlRun, controlRun.dir); err != nil {
		s.log.Warn("append invoked row failed", zap.Error(err))
	}
	s.rewriteRunningLedger()

	return s, nil
}

// shutdown runs the termination sequence: every live run is asked to exit
// (SIGTERM), given one grace period, then killed outright, and reaped
// before the ledger is closed.
func (s *Supervisor) shutdown() error {
	deadline := s.now().Add(gracePeriod)
	for _, run := range s.table.Live() {
		if cmd, ok := s.reapers[run.PID]; ok && cmd.Process != nil {
			_ = cmd.Process.Signal(syscall.SIGTERM)
		}
	}

	for s.table.Len() > 0 && s.now().Before(deadline) {
		s.reapExited()
		if s.table.Len() == 0 {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}

	for _, run := range s.table.Live() {
		if cmd, ok := s.reapers[run.PID]; ok && cmd.Process != nil {
			_ = cmd.Process.Kill()
		}
	}
	for s.table.Len() > 0 {
		if s.reapExited() == 0 {
			time.Sleep(10 * time.Millisecond)
		}
	}

	s.rewriteRunningLedger()
	s.log.Info("supervisor shutdown complete")
	return s.ledgerFile.close()
}
