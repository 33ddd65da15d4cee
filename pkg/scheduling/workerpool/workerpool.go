package workerpool

import (
	"context"
	"errors"
	"time"

	bfcontext "github.com/vnykmshr/bgflow/pkg/common/context"
	bferrors "github.com/vnykmshr/bgflow/pkg/common/errors"
	"github.com/vnykmshr/bgflow/pkg/logx"
	"github.com/vnykmshr/bgflow/pkg/scheduling/background"
)

var errNilJob = errors.New("job cannot be nil")

// Dispatch hands job to the pool without blocking. It fails with
// ErrCapacityExceeded when no buffer slot or idle worker is available and
// with ErrClosed after Shutdown.
func (p *Pool) Dispatch(job background.Job) error {
	if job == nil {
		return bferrors.NewOperationError("workerpool", "dispatch", errNilJob)
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.isShutdown {
		return bferrors.NewOperationError("workerpool", "dispatch", bferrors.ErrClosed)
	}

	select {
	case p.jobs <- job:
		p.totalSubmitted.Add(1)
		return nil
	default:
		p.observeRejected()
		return bferrors.NewOperationError("workerpool", "dispatch", bferrors.ErrCapacityExceeded).
			WithContext("all workers busy and queue full")
	}
}

// Submit hands job to the pool, waiting for buffer space until ctx ends or
// the pool shuts down.
func (p *Pool) Submit(ctx context.Context, job background.Job) error {
	if job == nil {
		return bferrors.NewOperationError("workerpool", "submit", errNilJob)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.isShutdown {
		return bferrors.NewOperationError("workerpool", "submit", bferrors.ErrClosed)
	}

	// Check a pre-canceled context before racing it against a free slot.
	if bfcontext.IsCanceled(ctx) {
		return bferrors.NewOperationError("workerpool", "submit", ctx.Err())
	}

	select {
	case p.jobs <- job:
		p.totalSubmitted.Add(1)
		return nil
	case <-p.shutdownCh:
		return bferrors.NewOperationError("workerpool", "submit", bferrors.ErrClosed)
	case <-ctx.Done():
		return bferrors.NewOperationError("workerpool", "submit", ctx.Err())
	}
}

// Shutdown stops accepting jobs and lets the workers finish everything
// already buffered. The returned channel closes once every worker has exited.
func (p *Pool) Shutdown() <-chan struct{} {
	p.shutdownOnce.Do(func() {
		// Release blocked Submit calls before taking the write lock.
		close(p.shutdownCh)

		p.mu.Lock()
		p.isShutdown = true
		close(p.jobs)
		p.mu.Unlock()

		go func() {
			p.workerWg.Wait()
			close(p.done)
			p.log.Debug("pool drained", logx.Int64("completed", p.totalCompleted.Load()))
		}()
	})
	return p.done
}

// ShutdownWithContext is Shutdown followed by a wait bounded by ctx.
// Jobs still running when ctx ends keep running in the background.
func (p *Pool) ShutdownWithContext(ctx context.Context) error {
	select {
	case <-p.Shutdown():
		return nil
	case <-ctx.Done():
		return bferrors.NewOperationError("workerpool", "shutdown", ctx.Err()).
			WithContext("workers still busy")
	}
}

// worker executes jobs until the buffer is closed and drained.
func (p *Pool) worker(id int) {
	defer p.workerWg.Done()
	log := p.log.With(logx.Int("worker", id))

	for job := range p.jobs {
		p.execute(log, id, job)
	}
}

func (p *Pool) execute(log logx.Logger, id int, job background.Job) {
	p.setBusy(1)
	defer p.setBusy(-1)

	start := time.Now()
	err := background.Run(job)
	res := background.Result{Err: err, Duration: time.Since(start)}

	p.totalCompleted.Add(1)
	if err != nil {
		p.totalFailed.Add(1)
		var perr *background.PanicError
		if errors.As(err, &perr) {
			log.Error("job panicked", logx.Any("panic", perr.Value), logx.Stack(string(perr.Stack)))
		} else {
			log.Debug("job failed", logx.Err(err), logx.Duration("dur", res.Duration))
		}
	}

	if p.config.OnJobComplete != nil {
		p.config.OnJobComplete(id, res)
	}
}
