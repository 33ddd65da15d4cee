/*
Package bgflow runs background jobs for Go services.

Job scheduling (pkg/scheduling):
  - background: sync lane (serial, FIFO, onFailure/onSuccess callbacks) and
    async lane (fire-and-forget) sharing one stop signal
  - queue: unbounded context-aware FIFO used by both lanes
  - workerpool: bounded dispatcher for the async lane
  - scheduler: interval and cron producers feeding the lanes

Supporting packages:
  - config: YAML configuration with hot reload
  - logx: zerolog-based structured logging with sampling
  - metrics: Prometheus instrumentation
  - common: shared errors, validation and context helpers

Example usage:

	import "github.com/vnykmshr/bgflow/pkg/scheduling/background"

	s := background.New()
	if err := s.Start(); err != nil {
		return err
	}
	defer s.Close()

	s.EnqueueSync(func() error {
		return persist(order)
	}, func() {
		alert("persist failed")
	}, nil)

	s.EnqueueAsync(func() error {
		return notify(order)
	})

See examples/background for a complete program.
*/
package bgflow
