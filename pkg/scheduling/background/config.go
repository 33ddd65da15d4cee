package background

import (
	"golang.org/x/time/rate"

	"github.com/vnykmshr/bgflow/pkg/common/validation"
	"github.com/vnykmshr/bgflow/pkg/logx"
	"github.com/vnykmshr/bgflow/pkg/metrics"
)

const defaultFailureLogBurst = 10

// Config holds configuration for a Scheduler.
type Config struct {
	// Name labels log lines and metrics. Defaults to "default".
	Name string `yaml:"name"`

	// FailureLogRate caps sync-job failure log lines per second.
	// Zero logs every failure.
	FailureLogRate float64 `yaml:"failure_log_rate"`

	// FailureLogBurst is the number of failure lines allowed in a burst
	// when FailureLogRate is set. Defaults to 10.
	FailureLogBurst int `yaml:"failure_log_burst"`

	// Logger receives lane diagnostics. The zero Logger discards them.
	Logger logx.Logger `yaml:"-"`

	// Metrics enables Prometheus instrumentation when non-nil.
	Metrics *metrics.Registry `yaml:"-"`

	// Dispatcher runs async jobs. Defaults to NewGoDispatcher.
	Dispatcher Dispatcher `yaml:"-"`
}

// Validate checks the numeric fields.
func (c Config) Validate() error {
	if err := validation.ValidateNonNegative("background", "failure_log_rate", c.FailureLogRate); err != nil {
		return err
	}
	return validation.ValidateNonNegative("background", "failure_log_burst", float64(c.FailureLogBurst))
}

func (c Config) withDefaults() Config {
	if c.Name == "" {
		c.Name = "default"
	}
	if c.FailureLogBurst <= 0 {
		c.FailureLogBurst = defaultFailureLogBurst
	}
	return c
}

func (c Config) failureLogger(log logx.Logger) logx.Logger {
	if c.FailureLogRate <= 0 {
		return log
	}
	return log.Sampled(rate.NewLimiter(rate.Limit(c.FailureLogRate), c.FailureLogBurst))
}

// Option configures a Scheduler built with New.
type Option func(*Config)

// WithName sets the scheduler name used in logs and metric labels.
func WithName(name string) Option {
	return func(c *Config) { c.Name = name }
}

// WithLogger sets the diagnostics logger.
func WithLogger(log logx.Logger) Option {
	return func(c *Config) { c.Logger = log }
}

// WithMetrics enables Prometheus instrumentation.
func WithMetrics(m *metrics.Registry) Option {
	return func(c *Config) { c.Metrics = m }
}

// WithDispatcher replaces the async lane's execution facility.
func WithDispatcher(d Dispatcher) Option {
	return func(c *Config) { c.Dispatcher = d }
}

// WithFailureLogRate samples sync-job failure logs to perSecond with the given burst.
func WithFailureLogRate(perSecond float64, burst int) Option {
	return func(c *Config) {
		c.FailureLogRate = perSecond
		c.FailureLogBurst = burst
	}
}
