package supervisor

import "time"

// defaultSampleWindow is the default minimum wall-clock gap between two
// samples of the same endpoint: 9 seconds. It is overridable via Options.SampleWindow
// for tests and for the CLI's --sample-interval flag.
const defaultSampleWindow = 9 * time.Second

// SampleEvent is the per-endpoint pending/flushed sample record.
type SampleEvent struct {
	recorded     bool
	sizeAtSample uint64
	sampledAt    time.Time
}

// newSampleEvent creates an already-flushed event at size 0, the starting
// state for a freshly opened pipe.
func newSampleEvent(now time.Time) SampleEvent {
	return SampleEvent{recorded: true, sizeAtSample: 0, sampledAt: now}
}

// maybeSample produces a new pending sample iff bytesCopied has grown past
// the previous sample's size and at least window has elapsed since that
// sample was taken. It is a no-op otherwise.
func (e *SampleEvent) maybeSample(bytesCopied uint64, now time.Time, window time.Duration) {
	if bytesCopied > e.sizeAtSample && now.Sub(e.sampledAt) >= window {
		e.recorded = false
		e.sizeAtSample = bytesCopied
		e.sampledAt = now
	}
}

// force unconditionally stamps a new pending sample at the given size,
// regardless of the window — used for the final sample at finalization.
func (e *SampleEvent) force(bytesCopied uint64, now time.Time) {
	e.recorded = false
	e.sizeAtSample = bytesCopied
	e.sampledAt = now
}
