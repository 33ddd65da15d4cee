package workerpool

import (
	"sync"
	"sync/atomic"

	"github.com/vnykmshr/bgflow/pkg/common/validation"
	"github.com/vnykmshr/bgflow/pkg/logx"
	"github.com/vnykmshr/bgflow/pkg/metrics"
	"github.com/vnykmshr/bgflow/pkg/scheduling/background"
)

// Config holds configuration options for creating a worker pool.
type Config struct {
	// Name labels log lines and metrics. Defaults to "pool".
	Name string `yaml:"name"`

	// Workers is the number of goroutines executing jobs.
	// Must be greater than 0.
	Workers int `yaml:"workers"`

	// QueueSize is the number of jobs that can wait for a free worker.
	// Zero means a job is only accepted when a worker is idle.
	QueueSize int `yaml:"queue_size"`

	// Logger receives job failures and panics.
	Logger logx.Logger `yaml:"-"`

	// Metrics enables pool gauges and the rejection counter when non-nil.
	Metrics *metrics.Registry `yaml:"-"`

	// OnJobComplete is called by the worker after each job, success or failure.
	// It runs on the worker goroutine and must not panic.
	OnJobComplete func(workerID int, res background.Result) `yaml:"-"`
}

// Validate checks the sizing fields.
func (c Config) Validate() error {
	if err := validation.ValidatePositive("workerpool", "workers", c.Workers); err != nil {
		return err
	}
	return validation.ValidateNonNegative("workerpool", "queue_size", float64(c.QueueSize))
}

// Pool is a fixed set of workers fed from a bounded buffer.
//
// Pool implements background.Dispatcher, so it can replace the async lane's
// default goroutine-per-job dispatcher when concurrency must be capped.
type Pool struct {
	config Config
	log    logx.Logger

	jobs       chan background.Job
	shutdownCh chan struct{}
	done       chan struct{}

	mu           sync.RWMutex
	isShutdown   bool
	shutdownOnce sync.Once
	workerWg     sync.WaitGroup

	active         atomic.Int64
	totalSubmitted atomic.Int64
	totalCompleted atomic.Int64
	totalFailed    atomic.Int64
	totalRejected  atomic.Int64
}

var _ background.Dispatcher = (*Pool)(nil)

// New creates a pool with the given number of workers and buffer size.
// It panics on invalid sizes.
func New(workers, queueSize int) *Pool {
	p, err := NewWithConfig(Config{Workers: workers, QueueSize: queueSize})
	if err != nil {
		panic(err)
	}
	return p
}

// NewWithConfig creates a pool and starts its workers.
func NewWithConfig(config Config) (*Pool, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if config.Name == "" {
		config.Name = "pool"
	}

	p := &Pool{
		config:     config,
		log:        config.Logger.With(logx.String("pool", config.Name)),
		jobs:       make(chan background.Job, config.QueueSize),
		shutdownCh: make(chan struct{}),
		done:       make(chan struct{}),
	}

	if m := config.Metrics; m != nil {
		m.PoolWorkers.WithLabelValues(config.Name).Set(float64(config.Workers))
		m.PoolBusy.WithLabelValues(config.Name).Set(0)
	}

	p.workerWg.Add(config.Workers)
	for i := 0; i < config.Workers; i++ {
		go p.worker(i)
	}
	return p, nil
}

// Name returns the configured pool name.
func (p *Pool) Name() string { return p.config.Name }

// Size returns the number of workers in the pool.
func (p *Pool) Size() int { return p.config.Workers }

// QueueSize returns the number of jobs waiting for a free worker.
func (p *Pool) QueueSize() int { return len(p.jobs) }

// ActiveWorkers returns the number of workers currently executing a job.
func (p *Pool) ActiveWorkers() int { return int(p.active.Load()) }

// TotalSubmitted returns the number of jobs accepted by the pool.
func (p *Pool) TotalSubmitted() int64 { return p.totalSubmitted.Load() }

// TotalCompleted returns the number of jobs that finished, including failures.
func (p *Pool) TotalCompleted() int64 { return p.totalCompleted.Load() }

// TotalFailed returns the number of jobs that returned an error or panicked.
func (p *Pool) TotalFailed() int64 { return p.totalFailed.Load() }

// TotalRejected returns the number of jobs refused because the buffer was full.
func (p *Pool) TotalRejected() int64 { return p.totalRejected.Load() }

func (p *Pool) setBusy(delta int64) {
	n := p.active.Add(delta)
	if m := p.config.Metrics; m != nil {
		m.PoolBusy.WithLabelValues(p.config.Name).Set(float64(n))
	}
}

func (p *Pool) observeRejected() {
	p.totalRejected.Add(1)
	if m := p.config.Metrics; m != nil {
		m.PoolRejected.WithLabelValues(p.config.Name).Inc()
	}
}
