//go:build linux

package supervisor

import (
	"time"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

// Run drives the supervisor loop: a single select()-style readiness loop,
// in place of a goroutine-per-pipe design. Exactly one goroutine ever calls
// this; the only other goroutine in the process forwards signals into
// stopCh (see cmd/gopard).
//
// Each iteration: build the fd set from every live pipe, block in select
// for at most SelectTimeout, drain whichever pipes are ready, run one
// non-blocking reap pass, and rewrite running.csv if anything changed. The
// loop terminates on its own once the run table drains — once the control
// child and every job it spawned have been reaped, there is nothing left to
// wait on.
func (s *Supervisor) Run(stopCh <-chan struct{}) error {
	for {
		select {
		case <-stopCh:
			return s.shutdown()
		default:
		}

		readable, maxFD := s.buildFDSet()

		timeout := unix.NsecToTimeval(s.opts.SelectTimeout.Nanoseconds())
		n, err := unix.Select(maxFD+1, readable, nil, nil, &timeout)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			s.log.Warn("select failed", zap.Error(err))
			continue
		}

		now := s.now()
		if n > 0 {
			s.drainReadyPipes(readable, now)
		}

		reaped := s.reapExited()
		if n > 0 || reaped > 0 {
			s.rewriteRunningLedger()
		}

		if s.table.Len() == 0 {
			s.log.Info("run table empty, terminating")
			return s.ledgerFile.close()
		}
	}
}

// buildFDSet collects every open source fd across every live run's stdout
// and stderr endpoints into a unix.FdSet, returning it along with the
// largest fd present (select's nfds argument is one past that).
func (s *Supervisor) buildFDSet() (*unix.FdSet, int) {
	var set unix.FdSet
	maxFD := 0
	for _, run := range s.table.Live() {
		for _, pipe := range []*PipeEndpoint{run.Out, run.Err} {
			if !pipe.sourceOpen {
				continue
			}
			fdSet(&set, pipe.sourceFD)
			if pipe.sourceFD > maxFD {
				maxFD = pipe.sourceFD
			}
		}
	}
	return &set, maxFD
}

// drainReadyPipes reads every pipe select marked readable. Complete lines are
// framed out of the control run's stdout buffer; every other stream's buffer
// (control stderr, all job streams) is truncated after each copy.
func (s *Supervisor) drainReadyPipes(set *unix.FdSet, now time.Time) {
	for _, run := range s.table.Live() {
		s.drainEndpoint(run, run.Out, set, now)
		s.drainEndpoint(run, run.Err, set, now)
	}
}

func (s *Supervisor) drainEndpoint(run *Run, pipe *PipeEndpoint, set *unix.FdSet, now time.Time) {
	if !pipe.sourceOpen {
		return
	}
	ready := fdIsSet(set, pipe.sourceFD)
	if !ready {
		return
	}

	buf := s.bufferFor(run, pipe)
	_, err := pipe.drainIfReady(ready, s.opts.SampleWindow, now, buf, func(b *lineBuffer) {
		if run.Kind == KindControl && pipe.label == labelStdout {
			b.drainLines(func(line []byte) { s.dispatchControlLine(string(line)) }, s.onOverlongLine(run, pipe))
		} else {
			// Ordinary job output is captured verbatim into stdout.log /
			// stderr.log as it is copied; framing only matters for the
			// control child's command stream, so non-control buffers are
			// simply kept from growing unbounded.
			b.truncate()
		}
	})
	if err != nil {
		s.log.Warn("pipe read failed",
			zap.String("id", string(run.ID)),
			zap.String("stream", string(pipe.label)),
			zap.Error(err),
		)
		return
	}

	// A sample taken during this read must reach stdindex.csv now, not at
	// finalize: long-running, steadily-growing output should produce
	// multiple flushed rows over the run's lifetime, not just one at the end.
	if err := run.flushPendingSample(pipe); err != nil {
		s.log.Warn("flush sample failed",
			zap.String("id", string(run.ID)),
			zap.String("stream", string(pipe.label)),
			zap.Error(err),
		)
	}
}

func (s *Supervisor) onOverlongLine(run *Run, pipe *PipeEndpoint) func(int) {
	return func(discarded int) {
		s.log.Warn("discarding overlong control line",
			zap.String("id", string(run.ID)),
			zap.String("stream", string(pipe.label)),
			zap.Int("discarded", discarded),
		)
	}
}

// bufferFor returns the line-framing buffer backing a given run's pipe. The
// control run keeps one persistent buffer per stream (commands may span
// multiple reads); ordinary jobs reuse a single scratch buffer per stream
// since their bytes are never reparsed, only copied through to disk.
func (s *Supervisor) bufferFor(run *Run, pipe *PipeEndpoint) *lineBuffer {
	if run.Kind == KindControl {
		if pipe.label == labelStdout {
			return s.controlStdoutBuf
		}
		return s.controlStderrBuf
	}
	if pipe.label == labelStdout {
		return s.scratchBuf
	}
	return s.scratchBufErr
}

func fdSet(set *unix.FdSet, fd int) {
	set.Bits[fd/64] |= 1 << (uint(fd) % 64)
}

func fdIsSet(set *unix.FdSet, fd int) bool {
	return set.Bits[fd/64]&(1<<(uint(fd)%64)) != 0
}
