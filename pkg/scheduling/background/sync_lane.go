package background

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	bfcontext "github.com/vnykmshr/bgflow/pkg/common/context"
	"github.com/vnykmshr/bgflow/pkg/logx"
	"github.com/vnykmshr/bgflow/pkg/metrics"
)

// runSyncLane drains the sync queue one job at a time until the stop signal
// fires or the queue is closed.
func (s *Scheduler) runSyncLane(ctx context.Context) {
	log := s.log.With(logx.String("lane", metrics.LaneSync))
	defer close(s.syncDone)
	defer func() {
		if r := recover(); r != nil {
			log.Error("lane terminated by panic", logx.Any("panic", r), logx.Stack(string(debug.Stack())))
		}
	}()

	log.Debug("lane started")
	for {
		item, err := s.syncQueue.Pop(ctx)
		if err != nil {
			laneStopped(log, err)
			return
		}

		// Drain a burst without going back to the blocking wait.
		for {
			if s.stop.isFired() {
				s.discarded.Add(1)
				log.Info("lane stopped", logx.String("reason", "stop requested"))
				return
			}
			s.processSync(log, item)

			next, ok := s.syncQueue.TryPop()
			if !ok {
				break
			}
			item = next
		}
	}
}

// processSync runs one job to completion and delivers its Result.
// Panics raised by the completion callback are logged and swallowed.
func (s *Scheduler) processSync(log logx.Logger, item syncItem) {
	defer func() {
		if r := recover(); r != nil {
			s.callbackPanics.Add(1)
			s.observeCallbackPanic()
			log.Error("completion callback panicked", logx.Any("panic", r), logx.Stack(string(debug.Stack())))
		}
	}()

	s.observeDepth(metrics.LaneSync, s.syncQueue.Len())
	s.observeWait(metrics.LaneSync, time.Since(item.enqueued))

	res := s.execute(item.job)
	s.observeResult(res)
	if res.Failed() {
		s.failed.Add(1)
		s.logFailure(res)
	} else {
		s.succeeded.Add(1)
	}

	if item.complete != nil {
		item.complete(res)
	}
}

// execute runs job on its own goroutine and waits for the outcome, so a
// job that calls runtime.Goexit cannot take the lane down with it.
func (s *Scheduler) execute(job Job) Result {
	start := time.Now()
	done := make(chan error, 1)

	go func() {
		err := errJobExited
		defer func() { done <- err }()
		err = Run(job)
	}()

	err := <-done
	return Result{Err: err, Duration: time.Since(start)}
}

func (s *Scheduler) logFailure(res Result) {
	var perr *PanicError
	if errors.As(res.Err, &perr) {
		s.failLog.Warn("sync job panicked",
			logx.Any("panic", perr.Value),
			logx.Stack(string(perr.Stack)),
			logx.Duration("dur", res.Duration),
		)
		return
	}
	s.failLog.Warn("sync job failed", logx.Err(res.Err), logx.Duration("dur", res.Duration))
}

func laneStopped(log logx.Logger, err error) {
	reason := "stop requested"
	if !bfcontext.IsCancellation(err) {
		reason = fmt.Sprintf("queue released: %v", err)
	}
	log.Info("lane stopped", logx.String("reason", reason))
}
