package background

import (
	"errors"

	"github.com/vnykmshr/bgflow/pkg/logx"
)

// Dispatcher is the execution facility the async lane hands jobs to.
//
// Dispatch must not wait for the job to finish. A returned error means the
// job was not accepted and will never run.
type Dispatcher interface {
	Dispatch(job Job) error
}

// DispatcherFunc adapts a function to the Dispatcher interface.
type DispatcherFunc func(job Job) error

// Dispatch implements Dispatcher.
func (f DispatcherFunc) Dispatch(job Job) error {
	return f(job)
}

// goDispatcher runs every job on its own goroutine.
type goDispatcher struct {
	log logx.Logger
}

// NewGoDispatcher returns the default async dispatcher: one detached goroutine
// per job, no limit on concurrency. Job errors are logged at debug level and
// panics at error level; nothing is reported back to the scheduler.
func NewGoDispatcher(log logx.Logger) Dispatcher {
	return goDispatcher{log: log}
}

func (d goDispatcher) Dispatch(job Job) error {
	go func() {
		err := Run(job)
		if err == nil {
			return
		}
		var perr *PanicError
		if errors.As(err, &perr) {
			d.log.Error("async job panicked", logx.Any("panic", perr.Value), logx.Stack(string(perr.Stack)))
			return
		}
		d.log.Debug("async job failed", logx.Err(err))
	}()
	return nil
}
