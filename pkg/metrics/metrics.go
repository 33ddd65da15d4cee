// Package metrics provides Prometheus instrumentation for bgflow components.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Lane label values.
const (
	LaneSync  = "sync"
	LaneAsync = "async"
)

// Registry holds all metric instances for bgflow components.
type Registry struct {
	// Scheduler lanes
	JobsEnqueued     *prometheus.CounterVec
	JobsSucceeded    *prometheus.CounterVec
	JobsFailed       *prometheus.CounterVec
	JobsDispatched   *prometheus.CounterVec
	DispatchFailures *prometheus.CounterVec
	CallbackPanics   *prometheus.CounterVec
	QueueDepth       *prometheus.GaugeVec
	JobDuration      *prometheus.HistogramVec
	JobWait          *prometheus.HistogramVec

	// Dispatcher pool
	PoolWorkers  *prometheus.GaugeVec
	PoolBusy     *prometheus.GaugeVec
	PoolRejected *prometheus.CounterVec

	// Recurring producers
	ProducerTriggers *prometheus.CounterVec
	ProducerTasks    *prometheus.GaugeVec
}

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
)

// Default returns a Registry registered on prometheus.DefaultRegisterer.
// It is created on first use so importing the package has no side effects.
func Default() *Registry {
	defaultOnce.Do(func() {
		defaultRegistry = NewRegistry(prometheus.DefaultRegisterer)
	})
	return defaultRegistry
}

// NewRegistry creates a new metrics registry with the given Prometheus registerer.
func NewRegistry(reg prometheus.Registerer) *Registry {
	return NewRegistryWithNamespace(reg, DefaultNamespace)
}

// NewRegistryWithNamespace is NewRegistry with a custom metric namespace.
func NewRegistryWithNamespace(reg prometheus.Registerer, namespace string) *Registry {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	factory := promauto.With(reg)

	return &Registry{
		JobsEnqueued: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "scheduler",
				Name:      "jobs_enqueued_total",
				Help:      "Total number of jobs accepted into a lane",
			},
			[]string{"scheduler", "lane"},
		),

		JobsSucceeded: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "scheduler",
				Name:      "jobs_succeeded_total",
				Help:      "Total number of sync jobs that completed without a fault",
			},
			[]string{"scheduler"},
		),

		JobsFailed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "scheduler",
				Name:      "jobs_failed_total",
				Help:      "Total number of sync jobs that returned an error or panicked",
			},
			[]string{"scheduler"},
		),

		JobsDispatched: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "scheduler",
				Name:      "jobs_dispatched_total",
				Help:      "Total number of async jobs handed to the dispatcher",
			},
			[]string{"scheduler"},
		),

		DispatchFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "scheduler",
				Name:      "dispatch_failures_total",
				Help:      "Total number of async jobs the dispatcher refused",
			},
			[]string{"scheduler"},
		),

		CallbackPanics: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "scheduler",
				Name:      "callback_panics_total",
				Help:      "Total number of completion callbacks that panicked",
			},
			[]string{"scheduler"},
		),

		QueueDepth: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "scheduler",
				Name:      "queue_depth",
				Help:      "Number of jobs waiting in a lane",
			},
			[]string{"scheduler", "lane"},
		),

		JobDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "scheduler",
				Name:      "job_duration_seconds",
				Help:      "Time spent executing sync jobs",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"scheduler"},
		),

		JobWait: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "scheduler",
				Name:      "job_wait_seconds",
				Help:      "Time between enqueue and the lane picking the job up",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"scheduler", "lane"},
		),

		PoolWorkers: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "workerpool",
				Name:      "workers",
				Help:      "Number of dispatcher pool workers",
			},
			[]string{"pool"},
		),

		PoolBusy: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "workerpool",
				Name:      "busy_workers",
				Help:      "Number of pool workers currently running a job",
			},
			[]string{"pool"},
		),

		PoolRejected: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "workerpool",
				Name:      "rejected_total",
				Help:      "Total number of jobs rejected because the pool buffer was full or closed",
			},
			[]string{"pool"},
		),

		ProducerTriggers: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "producer",
				Name:      "triggers_total",
				Help:      "Total number of times a recurring task enqueued a job",
			},
			[]string{"producer", "lane"},
		),

		ProducerTasks: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "producer",
				Name:      "tasks",
				Help:      "Number of registered recurring tasks",
			},
			[]string{"producer"},
		),
	}
}
