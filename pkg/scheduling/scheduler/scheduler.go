package scheduler

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	bferrors "github.com/vnykmshr/bgflow/pkg/common/errors"
	"github.com/vnykmshr/bgflow/pkg/common/validation"
	"github.com/vnykmshr/bgflow/pkg/logx"
	"github.com/vnykmshr/bgflow/pkg/metrics"
	"github.com/vnykmshr/bgflow/pkg/scheduling/background"
)

// Lane selects where a triggered job is enqueued.
type Lane string

// Lanes of a background scheduler.
const (
	LaneSync  Lane = metrics.LaneSync
	LaneAsync Lane = metrics.LaneAsync
)

// DefaultTickInterval is how often a producer checks for due tasks.
const DefaultTickInterval = 50 * time.Millisecond

const (
	defaultMaxTasks = 10000
	maxIDLength     = 255
)

var (
	// ErrDuplicateID is returned when a task with the same ID is already scheduled.
	ErrDuplicateID = errors.New("task ID already scheduled")

	// ErrNotFound is returned for operations on an unknown task ID.
	ErrNotFound = errors.New("task not found")

	// ErrRunning is returned by Start when the trigger loop is already running.
	ErrRunning = errors.New("producer already running")
)

// Task describes a scheduled trigger.
type Task struct {
	ID       string
	Lane     Lane
	RunAt    time.Time
	Interval time.Duration // Zero for one-time and cron tasks
	CronExpr string
	Created  time.Time

	// Runs counts how many times the task was enqueued.
	Runs uint64
	// Failures counts sync-lane runs that faulted. Async runs are not tracked.
	Failures uint64
}

// Config holds producer configuration.
type Config struct {
	// Name labels log lines and metrics. Defaults to "producer".
	Name string `yaml:"name"`

	// Target receives triggered jobs. Required.
	Target background.Enqueuer `yaml:"-"`

	// Location is used to evaluate cron expressions. Defaults to time.Local.
	Location *time.Location `yaml:"-"`

	// TickInterval is how often due tasks are checked. Defaults to 50ms.
	TickInterval time.Duration `yaml:"tick_interval"`

	// MaxTasks caps the number of scheduled tasks. Defaults to 10000.
	MaxTasks int `yaml:"max_tasks"`

	Logger  logx.Logger       `yaml:"-"`
	Metrics *metrics.Registry `yaml:"-"`
}

// Validate checks the required fields.
func (c Config) Validate() error {
	if err := validation.ValidateNotNil("scheduler", "target", c.Target); err != nil {
		return err
	}
	if err := validation.ValidateNonNegativeDuration("scheduler", "tick_interval", c.TickInterval); err != nil {
		return err
	}
	return validation.ValidateNonNegative("scheduler", "max_tasks", float64(c.MaxTasks))
}

type scheduledTask struct {
	id           string
	lane         Lane
	job          background.Job
	runAt        time.Time
	interval     time.Duration
	cronExpr     string
	cronSchedule cron.Schedule
	created      time.Time
	runs         uint64
	failures     uint64
}

func (t *scheduledTask) snapshot() Task {
	return Task{
		ID:       t.id,
		Lane:     t.lane,
		RunAt:    t.runAt,
		Interval: t.interval,
		CronExpr: t.cronExpr,
		Created:  t.created,
		Runs:     t.runs,
		Failures: t.failures,
	}
}

// Producer enqueues jobs into a background scheduler's lanes on a schedule:
// once at a given time, at a fixed interval, or on a cron expression.
//
// A Producer only decides when a job is enqueued. How it runs is up to the
// lane it lands in.
type Producer struct {
	name         string
	target       background.Enqueuer
	location     *time.Location
	tickInterval time.Duration
	maxTasks     int
	log          logx.Logger
	metrics      *metrics.Registry

	mu      sync.RWMutex
	tasks   map[string]*scheduledTask
	running bool
	done    chan struct{}
	exited  chan struct{}
}

// New creates a producer feeding target with default configuration.
// It panics if target is nil.
func New(target background.Enqueuer) *Producer {
	p, err := NewWithConfig(Config{Target: target})
	if err != nil {
		panic(err)
	}
	return p
}

// NewWithConfig creates a producer with custom configuration.
func NewWithConfig(cfg Config) (*Producer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Name == "" {
		cfg.Name = "producer"
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = DefaultTickInterval
	}
	if cfg.MaxTasks <= 0 {
		cfg.MaxTasks = defaultMaxTasks
	}

	return &Producer{
		name:         cfg.Name,
		target:       cfg.Target,
		location:     cfg.Location,
		tickInterval: cfg.TickInterval,
		maxTasks:     cfg.MaxTasks,
		log:          cfg.Logger.With(logx.String("producer", cfg.Name)),
		metrics:      cfg.Metrics,
		tasks:        make(map[string]*scheduledTask),
	}, nil
}

// Schedule enqueues job into lane once, at runAt.
func (p *Producer) Schedule(id string, lane Lane, job background.Job, runAt time.Time) error {
	if runAt.IsZero() {
		return bferrors.NewValidationError("scheduler", "run_at", runAt, "cannot be zero")
	}
	return p.add(&scheduledTask{id: id, lane: lane, job: job, runAt: runAt})
}

// ScheduleAfter enqueues job into lane once, after delay.
func (p *Producer) ScheduleAfter(id string, lane Lane, job background.Job, delay time.Duration) error {
	return p.Schedule(id, lane, job, time.Now().Add(delay))
}

// ScheduleRepeating enqueues job into lane immediately and then every interval.
func (p *Producer) ScheduleRepeating(id string, lane Lane, job background.Job, interval time.Duration) error {
	if interval <= 0 {
		return bferrors.NewValidationError("scheduler", "interval", interval, "must be positive")
	}
	return p.add(&scheduledTask{id: id, lane: lane, job: job, runAt: time.Now(), interval: interval})
}

// ScheduleCron enqueues job into lane whenever cronExpr fires.
// See ValidateCronExpression for the accepted syntax.
func (p *Producer) ScheduleCron(id string, lane Lane, cronExpr string, job background.Job) error {
	schedule, err := parseCron(cronExpr)
	if err != nil {
		return err
	}
	runAt, err := firstRun(schedule, cronExpr, time.Now().In(p.location))
	if err != nil {
		return err
	}
	return p.add(&scheduledTask{
		id:           id,
		lane:         lane,
		job:          job,
		runAt:        runAt,
		cronExpr:     cronExpr,
		cronSchedule: schedule,
	})
}

func (p *Producer) add(t *scheduledTask) error {
	if err := validateTask(t); err != nil {
		return err
	}
	t.created = time.Now()

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.tasks[t.id]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateID, t.id)
	}
	if len(p.tasks) >= p.maxTasks {
		return bferrors.NewOperationError("scheduler", "schedule", bferrors.ErrCapacityExceeded).
			WithContext(fmt.Sprintf("max tasks %d", p.maxTasks))
	}

	p.tasks[t.id] = t
	p.observeTasks()
	p.log.Debug("task scheduled",
		logx.String("task", t.id),
		logx.String("lane", string(t.lane)),
		logx.Any("run_at", t.runAt),
	)
	return nil
}

func validateTask(t *scheduledTask) error {
	if err := validation.ValidateNotEmpty("scheduler", "id", t.id); err != nil {
		return err
	}
	if len(t.id) > maxIDLength {
		return bferrors.NewValidationError("scheduler", "id", len(t.id), "too long").
			WithHint(fmt.Sprintf("max %d characters", maxIDLength))
	}
	if err := validation.ValidateNotNil("scheduler", "job", t.job); err != nil {
		return err
	}
	if t.lane != LaneSync && t.lane != LaneAsync {
		return bferrors.NewValidationError("scheduler", "lane", t.lane, "unknown lane").
			WithHint("use LaneSync or LaneAsync")
	}
	return nil
}

// Cancel removes a task. It reports whether the task existed.
func (p *Producer) Cancel(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.tasks[id]; !exists {
		return false
	}
	delete(p.tasks, id)
	p.observeTasks()
	return true
}

// CancelAll removes every task.
func (p *Producer) CancelAll() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.tasks = make(map[string]*scheduledTask)
	p.observeTasks()
}

// List returns all tasks ordered by next run time.
func (p *Producer) List() []Task {
	p.mu.RLock()
	defer p.mu.RUnlock()

	tasks := make([]Task, 0, len(p.tasks))
	for _, t := range p.tasks {
		tasks = append(tasks, t.snapshot())
	}

	sort.Slice(tasks, func(i, j int) bool {
		return tasks[i].RunAt.Before(tasks[j].RunAt)
	})
	return tasks
}

// Get returns a snapshot of one task.
func (p *Producer) Get(id string) (Task, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	t, ok := p.tasks[id]
	if !ok {
		return Task{}, fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	return t.snapshot(), nil
}

// Start launches the trigger loop.
func (p *Producer) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return ErrRunning
	}
	p.running = true
	p.done = make(chan struct{})
	p.exited = make(chan struct{})

	go p.run(p.done, p.exited)
	p.log.Info("producer started", logx.Duration("tick", p.tickInterval))
	return nil
}

// Stop halts the trigger loop. The returned channel closes once the loop
// has exited. Jobs already enqueued are unaffected. The producer may be
// started again; scheduled tasks are kept.
func (p *Producer) Stop() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		stopped := make(chan struct{})
		close(stopped)
		return stopped
	}
	p.running = false
	close(p.done)
	return p.exited
}

func (p *Producer) run(done <-chan struct{}, exited chan<- struct{}) {
	defer close(exited)
	ticker := time.NewTicker(p.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			p.log.Debug("producer stopped")
			return
		case now := <-ticker.C:
			p.tick(now)
		}
	}
}

// tick enqueues every due task. A panic from the target is logged and the
// loop keeps running.
func (p *Producer) tick(now time.Time) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("trigger panicked", logx.Any("panic", r))
		}
	}()

	for _, t := range p.due(now) {
		p.enqueue(t)
	}
}

type trigger struct {
	id   string
	lane Lane
	job  background.Job
}

// due collects ready tasks and advances or removes them.
func (p *Producer) due(now time.Time) []trigger {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.tasks) == 0 {
		return nil
	}

	var ready []trigger
	for id, t := range p.tasks {
		if now.Before(t.runAt) {
			continue
		}
		ready = append(ready, trigger{id: id, lane: t.lane, job: t.job})
		t.runs++

		switch {
		case t.interval > 0:
			t.runAt = now.Add(t.interval)
		case t.cronSchedule != nil:
			t.runAt = t.cronSchedule.Next(now.In(p.location))
			if t.runAt.IsZero() {
				p.log.Warn("cron task has no further runs, removing", logx.String("task", id))
				delete(p.tasks, id)
			}
		default:
			delete(p.tasks, id)
		}
	}
	if len(ready) > 0 {
		p.observeTasks()
	}

	// Stable order for tasks due in the same tick.
	sort.Slice(ready, func(i, j int) bool { return ready[i].id < ready[j].id })
	return ready
}

func (p *Producer) enqueue(t trigger) {
	if p.metrics != nil {
		p.metrics.ProducerTriggers.WithLabelValues(p.name, string(t.lane)).Inc()
	}

	if t.lane == LaneAsync {
		p.target.EnqueueAsync(t.job)
		return
	}

	id := t.id
	p.target.EnqueueSyncResult(t.job, func(res background.Result) {
		if res.Succeeded() {
			return
		}
		p.mu.Lock()
		if task, ok := p.tasks[id]; ok {
			task.failures++
		}
		p.mu.Unlock()
		p.log.Debug("triggered job failed", logx.String("task", id), logx.Err(res.Err))
	})
}

// observeTasks must be called with p.mu held.
func (p *Producer) observeTasks() {
	if p.metrics == nil {
		return
	}
	p.metrics.ProducerTasks.WithLabelValues(p.name).Set(float64(len(p.tasks)))
}
