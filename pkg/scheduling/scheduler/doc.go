/*
Package scheduler provides recurring producers for background lanes.

A Producer decides when a job is enqueued; a background.Scheduler decides how
it runs. Every trigger lands in either the sync lane, where it runs in FIFO
order with the lane's other jobs, or the async lane, where it is dispatched
without waiting.

Basic Usage:

	s := background.New()
	_ = s.Start()
	defer s.Close()

	p := scheduler.New(s)
	_ = p.Start()
	defer func() { <-p.Stop() }()

	// Once, in five minutes
	p.ScheduleAfter("warmup", scheduler.LaneAsync, warmCache, 5*time.Minute)

	// Now and then every 30 seconds
	p.ScheduleRepeating("flush", scheduler.LaneSync, flushBuffers, 30*time.Second)

	// Weekdays at 09:30
	p.ScheduleCron("report", scheduler.LaneSync, "30 9 * * 1-5", sendReport)

Cron Expressions:

Standard five-field expressions are accepted, optionally with a leading
seconds field, as are descriptors such as @hourly and @every 90s. Expressions
are evaluated in Config.Location. ValidateCronExpression and NextRuns help
check an expression before scheduling it.

Timing:

Due tasks are checked every Config.TickInterval (50ms by default), so a
trigger fires up to one tick late. A repeating task's next run is computed
from the tick that fired it; missed runs are not replayed.

Task Management:

	tasks := p.List()          // ordered by next run
	task, err := p.Get("flush") // includes Runs and sync-lane Failures
	p.UpdateCron("report", "0 10 * * 1-5")
	p.Cancel("warmup")

A failed run is counted and logged. The producer never retries it; the
next run happens at the next trigger.
*/
package scheduler
