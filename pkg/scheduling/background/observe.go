package background

import "time"

// The observe helpers are no-ops when the scheduler has no metrics registry.

func (s *Scheduler) observeEnqueue(lane string, depth int) {
	if s.metrics == nil {
		return
	}
	s.metrics.JobsEnqueued.WithLabelValues(s.name, lane).Inc()
	s.metrics.QueueDepth.WithLabelValues(s.name, lane).Set(float64(depth))
}

func (s *Scheduler) observeDepth(lane string, depth int) {
	if s.metrics == nil {
		return
	}
	s.metrics.QueueDepth.WithLabelValues(s.name, lane).Set(float64(depth))
}

func (s *Scheduler) observeWait(lane string, wait time.Duration) {
	if s.metrics == nil {
		return
	}
	s.metrics.JobWait.WithLabelValues(s.name, lane).Observe(wait.Seconds())
}

func (s *Scheduler) observeResult(res Result) {
	if s.metrics == nil {
		return
	}
	s.metrics.JobDuration.WithLabelValues(s.name).Observe(res.Duration.Seconds())
	if res.Failed() {
		s.metrics.JobsFailed.WithLabelValues(s.name).Inc()
	} else {
		s.metrics.JobsSucceeded.WithLabelValues(s.name).Inc()
	}
}

func (s *Scheduler) observeCallbackPanic() {
	if s.metrics == nil {
		return
	}
	s.metrics.CallbackPanics.WithLabelValues(s.name).Inc()
}

func (s *Scheduler) observeDispatch(ok bool) {
	if s.metrics == nil {
		return
	}
	if ok {
		s.metrics.JobsDispatched.WithLabelValues(s.name).Inc()
	} else {
		s.metrics.DispatchFailures.WithLabelValues(s.name).Inc()
	}
}
