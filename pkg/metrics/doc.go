// Package metrics provides Prometheus instrumentation for bgflow components.
//
// # Overview
//
// Every component accepts an optional *Registry; a nil registry turns
// instrumentation off. Build one per Prometheus registerer:
//
//	reg := prometheus.NewRegistry()
//	m := metrics.NewRegistry(reg)
//
//	s := background.New(background.WithName("mailer"), background.WithMetrics(m))
//
// Then expose metrics via HTTP:
//
//	http.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
//
// # Available Metrics
//
// ## Scheduler lanes (labels: scheduler, lane)
//
//   - bgflow_scheduler_jobs_enqueued_total
//   - bgflow_scheduler_jobs_succeeded_total (sync lane)
//   - bgflow_scheduler_jobs_failed_total (sync lane)
//   - bgflow_scheduler_jobs_dispatched_total (async lane)
//   - bgflow_scheduler_dispatch_failures_total (async lane)
//   - bgflow_scheduler_callback_panics_total (sync lane)
//   - bgflow_scheduler_queue_depth
//   - bgflow_scheduler_job_duration_seconds (sync lane)
//   - bgflow_scheduler_job_wait_seconds
//
// ## Dispatcher pool (label: pool)
//
//   - bgflow_workerpool_workers
//   - bgflow_workerpool_busy_workers
//   - bgflow_workerpool_rejected_total
//
// ## Recurring producers (labels: producer, lane)
//
//   - bgflow_producer_triggers_total
//   - bgflow_producer_tasks
//
// Registering two Registries with the same namespace on one registerer
// panics (promauto semantics); use a separate prometheus.Registry or a
// different Namespace per Registry.
package metrics
