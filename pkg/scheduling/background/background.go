package background

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/vnykmshr/bgflow/pkg/logx"
	"github.com/vnykmshr/bgflow/pkg/metrics"
	"github.com/vnykmshr/bgflow/pkg/scheduling/queue"
)

// Scheduler runs jobs off the caller's goroutine on two independent lanes.
//
// The sync lane executes one job at a time in FIFO order and reports each
// outcome through a completion callback. The async lane hands each job to a
// Dispatcher and moves on without tracking it.
//
// A Scheduler is single-use: after Stop it cannot be started again.
type Scheduler struct {
	name       string
	log        logx.Logger
	failLog    logx.Logger
	metrics    *metrics.Registry
	dispatcher Dispatcher

	syncQueue  *queue.Queue[syncItem]
	asyncQueue *queue.Queue[asyncItem]
	stop       *stopSignal

	mu      sync.Mutex
	started bool
	closed  bool

	syncDone  chan struct{}
	asyncDone chan struct{}
	done      chan struct{}

	syncEnqueued     atomic.Uint64
	asyncEnqueued    atomic.Uint64
	succeeded        atomic.Uint64
	failed           atomic.Uint64
	dispatched       atomic.Uint64
	dispatchFailures atomic.Uint64
	callbackPanics   atomic.Uint64
	discarded        atomic.Uint64
}

var _ Enqueuer = (*Scheduler)(nil)

// New creates a scheduler with the given options.
// It panics if the options produce an invalid configuration.
func New(opts ...Option) *Scheduler {
	var cfg Config
	for _, opt := range opts {
		opt(&cfg)
	}
	s, err := NewWithConfig(cfg)
	if err != nil {
		panic(err)
	}
	return s
}

// NewWithConfig creates a scheduler from cfg. The worker loops are not
// running until Start is called.
func NewWithConfig(cfg Config) (*Scheduler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()

	log := cfg.Logger.With(logx.String("scheduler", cfg.Name))
	dispatcher := cfg.Dispatcher
	if dispatcher == nil {
		dispatcher = NewGoDispatcher(log.With(logx.String("lane", metrics.LaneAsync)))
	}

	return &Scheduler{
		name:       cfg.Name,
		log:        log,
		failLog:    cfg.failureLogger(log.With(logx.String("lane", metrics.LaneSync))),
		metrics:    cfg.Metrics,
		dispatcher: dispatcher,
		syncQueue:  queue.New[syncItem](),
		asyncQueue: queue.New[asyncItem](),
		stop:       newStopSignal(),
		syncDone:   make(chan struct{}),
		asyncDone:  make(chan struct{}),
		done:       make(chan struct{}),
	}, nil
}

// Name returns the configured scheduler name.
func (s *Scheduler) Name() string { return s.name }

// Start launches the sync and async worker loops.
//
// It returns ErrAlreadyStarted on a second call, and ErrStopped once Stop or
// Close has been called.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stop.isFired() || s.closed {
		return ErrStopped
	}
	if s.started {
		return ErrAlreadyStarted
	}
	s.started = true

	ctx := s.stop.context()
	go s.runSyncLane(ctx)
	go s.runAsyncLane(ctx)
	go func() {
		<-s.syncDone
		<-s.asyncDone
		close(s.done)
		s.log.Debug("scheduler loops exited")
	}()

	s.log.Info("scheduler started")
	return nil
}

// Stop requests both worker loops to exit. It does not wait: a sync job that
// is already running finishes and its callback fires, but no further queued
// job is started. Use Done to wait for the loops to exit.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	first := s.stop.fire()
	started := s.started
	s.mu.Unlock()

	if !first {
		return
	}
	if !started {
		close(s.done)
	}
	s.log.Info("scheduler stop requested",
		logx.Int("sync_queued", s.syncQueue.Len()),
		logx.Int("async_queued", s.asyncQueue.Len()),
	)
}

// Done returns a channel that is closed once both worker loops have exited,
// or at Stop if the scheduler was never started.
func (s *Scheduler) Done() <-chan struct{} {
	return s.done
}

// EnqueueSync queues job on the sync lane. After the job runs, onFailure is
// called if it faulted and onSuccess otherwise; either may be nil.
//
// EnqueueSync never blocks and never fails. Jobs enqueued after Stop are
// accepted but never run.
func (s *Scheduler) EnqueueSync(job Job, onFailure, onSuccess func()) {
	s.EnqueueSyncResult(job, callbackPair(onFailure, onSuccess))
}

// EnqueueSyncResult is EnqueueSync with a single completion receiving the Result.
func (s *Scheduler) EnqueueSyncResult(job Job, complete func(Result)) {
	if job == nil {
		s.log.Warn("nil job ignored", logx.String("lane", metrics.LaneSync))
		return
	}
	if err := s.syncQueue.Push(syncItem{job: job, complete: complete, enqueued: time.Now()}); err != nil {
		s.discard(metrics.LaneSync, err)
		return
	}
	s.syncEnqueued.Add(1)
	s.observeEnqueue(metrics.LaneSync, s.syncQueue.Len())
}

// EnqueueAsync queues job on the async lane. No outcome is reported.
//
// EnqueueAsync never blocks and never fails.
func (s *Scheduler) EnqueueAsync(job Job) {
	if job == nil {
		s.log.Warn("nil job ignored", logx.String("lane", metrics.LaneAsync))
		return
	}
	if err := s.asyncQueue.Push(asyncItem{job: job, enqueued: time.Now()}); err != nil {
		s.discard(metrics.LaneAsync, err)
		return
	}
	s.asyncEnqueued.Add(1)
	s.observeEnqueue(metrics.LaneAsync, s.asyncQueue.Len())
}

// Close stops the scheduler if Stop has not been called yet, then releases
// both queues, discarding anything still queued. It is safe to call more
// than once and always returns nil. The scheduler must not be used afterwards.
func (s *Scheduler) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	if !s.stop.isFired() {
		s.Stop()
	}

	pending := s.syncQueue.Close() + s.asyncQueue.Close()
	if pending > 0 {
		s.discarded.Add(uint64(pending))
		s.log.Debug("queued jobs discarded", logx.Int("count", pending))
	}
	s.observeDepth(metrics.LaneSync, 0)
	s.observeDepth(metrics.LaneAsync, 0)
	return nil
}

// Stats returns a snapshot of queue lengths and lifetime counters.
func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	started, closed := s.started, s.closed
	s.mu.Unlock()

	return Stats{
		Name:                  s.name,
		SyncQueued:            s.syncQueue.Len(),
		AsyncQueued:           s.asyncQueue.Len(),
		SyncEnqueued:          s.syncEnqueued.Load(),
		AsyncEnqueued:         s.asyncEnqueued.Load(),
		Succeeded:             s.succeeded.Load(),
		Failed:                s.failed.Load(),
		Dispatched:            s.dispatched.Load(),
		DispatchFailures:      s.dispatchFailures.Load(),
		CallbackPanics:        s.callbackPanics.Load(),
		Discarded:             s.discarded.Load(),
		FailureLogsSuppressed: s.failLog.Suppressed(),
		Started:               started,
		Stopped:               s.stop.isFired(),
		Closed:                closed,
	}
}

func (s *Scheduler) discard(lane string, err error) {
	s.discarded.Add(1)
	s.log.Debug("job discarded", logx.String("lane", lane), logx.Err(err))
}
