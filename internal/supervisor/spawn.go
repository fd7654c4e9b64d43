//go:build linux

package supervisor

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

// spawnJob forks+execs a job under an empty environment, wires its
// stdout/stderr to pipes the loop will poll, and registers it in the run
// table.
//
// Jobs run under an empty environment, not the supervisor's own. Go's
// os/exec honors cmd.Env verbatim (including the empty, non-nil case), so
// setting it to an empty, non-nil slice gets an empty environment exactly.
func (s *Supervisor) spawnJob(argv []string) (*Run, error) {
	return s.spawn(KindRunning, argv)
}

// spawnControl launches the control child (the first run the supervisor
// ever creates) and returns its run, whose ControlStdin holds the write end
// of the child's stdin open.
func (s *Supervisor) spawnControl(argv []string) (*Run, error) {
	return s.spawn(KindControl, argv)
}

func (s *Supervisor) spawn(kind RunKind, argv []string) (*Run, error) {
	if s.table.Len() >= s.table.capacity() {
		return nil, ErrTableFull
	}

	outR, outW, err := makePipe()
	if err != nil {
		return nil, fmt.Errorf("create stdout pipe: %w", err)
	}
	errR, errW, err := makePipe()
	if err != nil {
		unix.Close(outR)
		unix.Close(outW)
		return nil, fmt.Errorf("create stderr pipe: %w", err)
	}

	var stdinR, stdinW int = -1, -1
	if kind == KindControl {
		stdinR, stdinW, err = makePipe()
		if err != nil {
			unix.Close(outR)
			unix.Close(outW)
			unix.Close(errR)
			unix.Close(errW)
			return nil, fmt.Errorf("create control stdin pipe: %w", err)
		}
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Env = []string{}
	cmd.Stdout = os.NewFile(uintptr(outW), "stdout-write")
	cmd.Stderr = os.NewFile(uintptr(errW), "stderr-write")
	if kind == KindControl {
		cmd.Stdin = os.NewFile(uintptr(stdinR), "stdin-read")
	}
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid:   true,
		Pdeathsig: syscall.SIGKILL,
	}

	now := s.now()
	startErr := cmd.Start()

	// The write ends (and the control read end) were dup'd into the child;
	// the parent's copies are no longer needed regardless of outcome.
	cmd.Stdout.(*os.File).Close()
	cmd.Stderr.(*os.File).Close()
	if kind == KindControl {
		cmd.Stdin.(*os.File).Close()
	}

	if startErr != nil {
		// os/exec cannot reproduce fork()-then-observe-exec-failure: Start
		// fails synchronously with cmd.Process == nil both when fork itself
		// fails and when the child's exec fails, because the runtime already
		// reaped the transient child before returning control to us. There
		// is no real pid to key a reap on, so the run is finalized
		// synthetically, in place, using the same ledger contract a real
		// reap would produce: an invoked row followed immediately by a
		// finished row with a non-zero return code and the directory still
		// renamed to DONE.
		unix.Close(outR)
		unix.Close(errR)
		if kind == KindControl {
			unix.Close(stdinW)
		}
		return s.finalizeFailedSpawn(kind, argv, now, startErr)
	}

	run := &Run{
		Kind:      kind,
		PID:       cmd.Process.Pid,
		Cmd:       strings.Join(argv, " ") + " ",
		Argv:      argv,
		StartedAt: now,
		sv:        s,
	}
	run.ID = newRunID(now, run.PID)
	if kind == KindControl {
		run.ControlStdin = os.NewFile(uintptr(stdinW), "control-stdin")
	}

	if err := run.open(outR, errR, now); err != nil {
		unix.Close(outR)
		unix.Close(errR)
		_ = cmd.Process.Kill()
		return nil, fmt.Errorf("open run artifacts: %w", err)
	}

	if err := s.table.insert(run); err != nil {
		_ = cmd.Process.Kill()
		return nil, err
	}
	s.reapers[run.PID] = cmd

	// s.ledgerFile is nil only while the control run itself is being
	// spawned, before its id is known and the ledger files can be opened
	// under its directory; New appends that row explicitly once they are.
	if s.ledgerFile != nil {
		if err := s.ledgerFile.appendInvoked(run, run.dir); err != nil {
			s.log.Warn("append invoked row failed", zap.Error(err))
		}
	}
	s.log.Info("spawned run",
		zap.String("id", string(run.ID)),
		zap.Int("pid", run.PID),
		zap.String("kind", kind.String()),
		zap.String("cmd", run.Cmd),
	)

	return run, nil
}

// finalizeFailedSpawn synthesizes a run record for a job whose Start()
// failed before a real pid existed. A negative, per-process-unique pseudo
// pid keys the run's id and ledger rows so they never collide with a live
// child (real pids are always positive).
func (s *Supervisor) finalizeFailedSpawn(kind RunKind, argv []string, now time.Time, startErr error) (*Run, error) {
	s.pseudoPID--
	pid := s.pseudoPID

	run := &Run{
		Kind:      kind,
		PID:       pid,
		Cmd:       strings.Join(argv, " ") + " ",
		Argv:      argv,
		StartedAt: now,
		sv:        s,
	}
	run.ID = newRunID(now, pid)

	// open() needs live source fds to hand to the pipe endpoints even though
	// nothing will ever be read from them; a fresh, immediately-closed pipe
	// pair satisfies that without touching the ones we already tore down.
	outR, outW, err := makePipe()
	if err != nil {
		return nil, errors.Join(startErr, err)
	}
	unix.Close(outW)
	errR, errW, err := makePipe()
	if err != nil {
		unix.Close(outR)
		return nil, errors.Join(startErr, err)
	}
	unix.Close(errW)

	if err := run.open(outR, errR, now); err != nil {
		return nil, errors.Join(startErr, err)
	}

	if s.ledgerFile != nil {
		if err := s.ledgerFile.appendInvoked(run, run.dir); err != nil {
			s.log.Warn("append invoked row failed", zap.Error(err))
		}
	}

	run.ExitStatus = 127
	run.EndedAt = now
	s.log.Warn("spawn failed", zap.String("cmd", run.Cmd), zap.Error(startErr))
	if err := run.finalize(); err != nil {
		s.log.Warn("finalize of failed spawn failed", zap.Error(err))
	}

	return nil, fmt.Errorf("start %q: %w", argv[0], startErr)
}

// makePipe adapts unix.Pipe's out-parameter signature to a (read, write,
// error) triple. Pipes are left blocking — no O_NONBLOCK — since readiness
// is always checked via select before a read is attempted.
func makePipe() (r, w int, err error) {
	var fds [2]int
	if err := unix.Pipe(fds[:]); err != nil {
		return -1, -1, err
	}
	return fds[0], fds[1], nil
}
