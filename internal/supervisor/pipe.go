//go:build linux

package supervisor

import (
	"errors"
	"os"
	"time"

	"golang.org/x/sys/unix"
)

// PipeEndpoint is one child stream: a readable source fd, a writable sink
// file, a running byte counter, and sampling-event bookkeeping.
type PipeEndpoint struct {
	sourceFD    int
	sourceOpen  bool
	sink        *os.File
	bytesCopied uint64
	sample      SampleEvent
	label       pipeLabel
}

func newPipeEndpoint(sourceFD int, label pipeLabel, now time.Time) *PipeEndpoint {
	return &PipeEndpoint{
		sourceFD:   sourceFD,
		sourceOpen: true,
		label:      label,
		sample:     newSampleEvent(now),
	}
}

// attachSink records the already-open destination file the endpoint's bytes
// are mirrored to.
func (p *PipeEndpoint) attachSink(f *os.File) { p.sink = f }

// drainIfReady: if ready is false, it is a silent no-op. Otherwise it
// performs at most one read of up to buf's free capacity, mirrors any bytes
// read to the sink (looping through short writes), advances bytesCopied,
// extends buf, and on success invokes onAfterAppend (the buffer's
// line-drain or truncate policy).
//
// A transient EAGAIN is swallowed. Any other read error is returned for the
// caller to log; the endpoint is left intact for retry on the next
// readiness event. End-of-file (n == 0, err == nil) is likewise returned
// with no error — the fd is closed only during finalization, once the run
// has actually been reaped.
func (p *PipeEndpoint) drainIfReady(ready bool, window time.Duration, now time.Time, buf *lineBuffer, onAfterAppend func(*lineBuffer)) (int, error) {
	if !ready || !p.sourceOpen {
		return 0, nil
	}

	if buf.free() == 0 {
		// The buffer filled without ever yielding a newline; give the
		// caller's drain policy a chance to declare the record over-long
		// and reclaim the space before attempting another read.
		if onAfterAppend != nil {
			onAfterAppend(buf)
		}
		if buf.free() == 0 {
			return 0, nil
		}
	}

	n, err := unix.Read(p.sourceFD, buf.tail())
	if err != nil {
		if errors.Is(err, unix.EAGAIN) {
			return 0, nil
		}
		return 0, err
	}
	if n <= 0 {
		return 0, nil
	}

	p.sample.maybeSample(p.bytesCopied, now, window)

	if p.sink != nil {
		if werr := writeAll(p.sink, buf.tail()[:n]); werr != nil {
			return n, werr
		}
	}

	p.bytesCopied += uint64(n)
	buf.extend(n)
	if onAfterAppend != nil {
		onAfterAppend(buf)
	}
	return n, nil
}

// writeAll loops a write until every byte is accepted or an error occurs,
// since short writes to a local file are possible but must not be silently
// dropped.
func writeAll(f *os.File, b []byte) error {
	for len(b) > 0 {
		n, err := f.Write(b)
		if err != nil {
			return err
		}
		b = b[n:]
	}
	return nil
}

// forceSample stamps a final, unconditional sample at the endpoint's current
// byte count — used at finalization.
func (p *PipeEndpoint) forceSample(now time.Time) {
	p.sample.force(p.bytesCopied, now)
}

// close releases the source fd exactly once; it is a no-op if already
// closed.
func (p *PipeEndpoint) close() error {
	if !p.sourceOpen {
		return nil
	}
	p.sourceOpen = false
	return unix.Close(p.sourceFD)
}

func (p *PipeEndpoint) closeSink() error {
	if p.sink == nil {
		return nil
	}
	return p.sink.Close()
}
