package background

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/vnykmshr/bgflow/pkg/logx"
	"github.com/vnykmshr/bgflow/pkg/metrics"
)

// runAsyncLane hands each queued job to the dispatcher without waiting for
// it, until the stop signal fires or the queue is closed.
func (s *Scheduler) runAsyncLane(ctx context.Context) {
	log := s.log.With(logx.String("lane", metrics.LaneAsync))
	defer close(s.asyncDone)
	defer func() {
		if r := recover(); r != nil {
			log.Error("lane terminated by panic", logx.Any("panic", r), logx.Stack(string(debug.Stack())))
		}
	}()

	log.Debug("lane started")
	for {
		item, err := s.asyncQueue.Pop(ctx)
		if err != nil {
			laneStopped(log, err)
			return
		}

		for {
			if s.stop.isFired() {
				s.discarded.Add(1)
				log.Info("lane stopped", logx.String("reason", "stop requested"))
				return
			}
			s.dispatch(log, item)

			next, ok := s.asyncQueue.TryPop()
			if !ok {
				break
			}
			item = next
		}
	}
}

// dispatch submits one job. A refused or panicking submission is logged
// and the lane moves on.
func (s *Scheduler) dispatch(log logx.Logger, item asyncItem) {
	var err error
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("dispatcher panicked: %v", r)
			log.Error("dispatch panicked", logx.Any("panic", r), logx.Stack(string(debug.Stack())))
		}
		if err != nil {
			s.dispatchFailures.Add(1)
			s.observeDispatch(false)
			return
		}
		s.dispatched.Add(1)
		s.observeDispatch(true)
	}()

	s.observeDepth(metrics.LaneAsync, s.asyncQueue.Len())
	s.observeWait(metrics.LaneAsync, time.Since(item.enqueued))

	err = s.dispatcher.Dispatch(item.job)
	if err != nil {
		log.Warn("dispatch failed; job dropped", logx.Err(err))
	}
}
