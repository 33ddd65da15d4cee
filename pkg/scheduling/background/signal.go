package background

import (
	"context"
	"sync/atomic"
)

// stopSignal is the one-shot cancellation flag shared by both lanes.
// Once fired it never resets.
type stopSignal struct {
	ctx    context.Context
	cancel context.CancelFunc
	fired  atomic.Bool
}

func newStopSignal() *stopSignal {
	ctx, cancel := context.WithCancel(context.Background())
	return &stopSignal{ctx: ctx, cancel: cancel}
}

// fire sets the flag and releases blocked queue waits. It reports whether
// this call was the one that fired it.
func (s *stopSignal) fire() bool {
	if !s.fired.CompareAndSwap(false, true) {
		return false
	}
	s.cancel()
	return true
}

func (s *stopSignal) isFired() bool { return s.fired.Load() }

func (s *stopSignal) context() context.Context { return s.ctx }
