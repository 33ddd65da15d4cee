/*
Package workerpool provides a fixed-size worker pool for background jobs.

A pool runs a fixed number of worker goroutines fed from a bounded buffer.
It implements background.Dispatcher, so it can replace the async lane's
default one-goroutine-per-job dispatcher when concurrency must be capped.

Basic usage:

	pool := workerpool.New(4, 100) // 4 workers, 100 buffered jobs
	defer func() { <-pool.Shutdown() }()

	s := background.New(background.WithDispatcher(pool))

Submission:

Dispatch never blocks. When every worker is busy and the buffer is full it
returns an error wrapping errors.ErrCapacityExceeded, which the async lane
logs and counts as a dispatch failure. Submit waits for buffer space until
its context ends or the pool shuts down.

	if err := pool.Submit(ctx, job); err != nil {
		return err
	}

A QueueSize of zero accepts a job only when a worker is idle.

Error handling:

Jobs run through background.Run, so a panic is recovered into a
*background.PanicError and logged at error level. Returned errors are logged
at debug level. Config.OnJobComplete receives every Result along with the
worker ID.

Shutdown:

Shutdown stops accepting jobs, releases blocked Submit calls and lets the
workers finish everything already buffered. The returned channel closes when
the last worker exits. ShutdownWithContext bounds that wait.

Metrics:

With Config.Metrics set, the pool reports its worker count, busy workers and
rejected jobs under the pool name.
*/
package workerpool
