/*
Package background runs jobs off the caller's goroutine on two lanes that
share one stop signal.

The sync lane executes queued jobs one at a time, strictly in the order they
were enqueued. After each job exactly one of its callbacks fires: onFailure
when the job returned an error or panicked, onSuccess otherwise. A faulting
job or a panicking callback never stops the lane.

The async lane hands each job to a Dispatcher and immediately moves on. No
outcome is reported back; the default dispatcher starts one goroutine per job.

Basic usage:

	s := background.New(background.WithName("mailer"))
	if err := s.Start(); err != nil {
		return err
	}
	defer s.Close()

	s.EnqueueSync(sendReceipt, func() { retryLater() }, func() { markSent() })
	s.EnqueueAsync(warmCache)

Enqueue methods never block and never fail. Jobs accepted before Start wait
until the lanes run; jobs accepted after Stop are never run.

# Stopping

Stop is a request, not a wait. A sync job that is already running completes
and its callback fires, but the lane starts nothing else. Done is closed once
both lanes have exited. Close stops the scheduler if needed, releases the
queues and discards anything still queued. A stopped scheduler cannot be
restarted.

# Observability

Stats returns queue lengths and lifetime counters. WithMetrics adds Prometheus
counters, gauges and histograms from the metrics package. WithFailureLogRate
samples sync-job failure logs when jobs fail in bulk.
*/
package background
