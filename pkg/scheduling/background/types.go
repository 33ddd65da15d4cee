package background

import (
	"errors"
	"fmt"
	"runtime/debug"
	"time"
)

var (
	// ErrAlreadyStarted is returned by Start when the worker loops are already running.
	ErrAlreadyStarted = errors.New("background scheduler already started")

	// ErrStopped is returned by Start once Stop has been requested.
	// A stopped scheduler cannot be restarted; create a new one.
	ErrStopped = errors.New("background scheduler stopped")

	errJobExited = errors.New("job exited without returning")
)

// Job is a unit of work. A job faults when it returns a non-nil error or panics.
type Job func() error

// Result is the outcome of one sync job. Exactly one of Succeeded and Failed is true.
type Result struct {
	// Err is nil on success. Panics are reported as *PanicError.
	Err error

	// Duration is how long the job ran.
	Duration time.Duration
}

// Succeeded reports whether the job completed without a fault.
func (r Result) Succeeded() bool { return r.Err == nil }

// Failed reports whether the job returned an error or panicked.
func (r Result) Failed() bool { return r.Err != nil }

// PanicError carries a value recovered from a panicking job.
type PanicError struct {
	Value interface{}
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("job panicked: %v", e.Value)
}

// Run executes job on the calling goroutine, converting a panic into a *PanicError.
func Run(job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	return job()
}

// Enqueuer accepts jobs into the two lanes. *Scheduler implements it.
type Enqueuer interface {
	EnqueueSync(job Job, onFailure, onSuccess func())
	EnqueueSyncResult(job Job, complete func(Result))
	EnqueueAsync(job Job)
}

// Stats is a point-in-time view of a scheduler for diagnostics.
type Stats struct {
	Name string

	SyncQueued  int
	AsyncQueued int

	SyncEnqueued  uint64
	AsyncEnqueued uint64

	Succeeded        uint64
	Failed           uint64
	Dispatched       uint64
	DispatchFailures uint64
	CallbackPanics   uint64

	// Discarded counts jobs that were accepted but never run: dequeued after
	// Stop, enqueued after Close, or still queued when Close released the queues.
	Discarded uint64

	// FailureLogsSuppressed counts failure log lines dropped by sampling.
	FailureLogsSuppressed uint64

	Started bool
	Stopped bool
	Closed  bool
}

type syncItem struct {
	job      Job
	complete func(Result)
	enqueued time.Time
}

type asyncItem struct {
	job      Job
	enqueued time.Time
}

// callbackPair adapts the optional onFailure/onSuccess pair to a Result completion.
func callbackPair(onFailure, onSuccess func()) func(Result) {
	if onFailure == nil && onSuccess == nil {
		return nil
	}
	return func(r Result) {
		if r.Failed() {
			if onFailure != nil {
				onFailure()
			}
			return
		}
		if onSuccess != nil {
			onSuccess()
		}
	}
}
