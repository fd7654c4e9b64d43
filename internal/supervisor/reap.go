//go:build linux

package supervisor

import (
	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

// reapExited performs one non-blocking wait4 pass, finalizing every child
// that has exited. It returns the number of runs reaped, which the loop
// uses to decide whether running.csv needs a rewrite this iteration.
func (s *Supervisor) reapExited() int {
	reaped := 0
	for {
		var status unix.WaitStatus
		pid, err := unix.Wait4(-1, &status, unix.WNOHANG, nil)
		if err != nil {
			// ECHILD means no children remain at all; anything else is
			// logged and the pass stops for this iteration.
			if err != unix.ECHILD {
				s.log.Warn("wait4 failed", zap.Error(err))
			}
			break
		}
		if pid <= 0 {
			break
		}

		run, ok := s.table.removeByPID(pid)
		if !ok {
			// A grandchild or otherwise untracked pid; nothing to finalize.
			continue
		}
		delete(s.reapers, pid)

		run.EndedAt = s.now()
		run.ExitStatus = exitStatusOf(status)

		if err := run.finalize(); err != nil {
			s.log.Warn("finalize failed", zap.String("id", string(run.ID)), zap.Error(err))
		}
		s.log.Info("reaped run",
			zap.String("id", string(run.ID)),
			zap.Int("pid", pid),
			zap.Int("status", run.ExitStatus),
		)
		reaped++
	}
	return reaped
}

// exitStatusOf maps a wait status to the single integer finished.csv's
// "returnCode" column records: the exit code for a normal exit, or
// 128+signal for a signal death — the common shell convention.
func exitStatusOf(status unix.WaitStatus) int {
	switch {
	case status.Exited():
		return status.ExitStatus()
	case status.Signaled():
		return 128 + int(status.Signal())
	default:
		return -1
	}
}

// rewriteRunningLedger snapshots every live run into running.csv.
// Called after every spawn and every reap pass.
func (s *Supervisor) rewriteRunningLedger() {
	now := s.now()
	rows := make([][]string, 0, s.table.Len())
	for _, run := range s.table.Live() {
		rows = append(rows, runningRow(run, run.dir, now))
	}
	if err := s.ledgerFile.rewriteRunning(rows); err != nil {
		s.log.Warn("rewrite running ledger failed", zap.Error(err))
	}
}
