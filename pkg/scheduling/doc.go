/*
Package scheduling groups the job execution primitives of bgflow.

  - background: two-lane scheduler; a serial FIFO lane with completion
    callbacks and a fire-and-forget lane
  - queue: unbounded FIFO queue with context-aware blocking Pop
  - workerpool: fixed-size pool usable as the async lane's dispatcher
  - scheduler: one-shot, interval and cron producers that enqueue into lanes

Background lanes:

	s := background.New(background.WithName("mailer"))
	_ = s.Start()
	defer s.Close()

	s.EnqueueSync(sendReceipt, onFailure, onSuccess) // one at a time, in order
	s.EnqueueAsync(warmCache)                       // dispatched, not awaited

Bounded async execution:

	pool := workerpool.New(4, 100) // 4 workers, 100 buffered jobs
	s := background.New(background.WithDispatcher(pool))

Recurring work:

	p := scheduler.New(s)
	_ = p.Start()
	p.ScheduleCron("report", scheduler.LaneSync, "0 9 * * 1-5", sendReport)

All components are safe for concurrent use and accept a logx.Logger and a
*metrics.Registry through their Config.
*/
package scheduling
