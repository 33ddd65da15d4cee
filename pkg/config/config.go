package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	yaml "go.yaml.in/yaml/v3"

	bferrors "github.com/vnykmshr/bgflow/pkg/common/errors"
	"github.com/vnykmshr/bgflow/pkg/common/validation"
	"github.com/vnykmshr/bgflow/pkg/logx"
	"github.com/vnykmshr/bgflow/pkg/metrics"
	"github.com/vnykmshr/bgflow/pkg/scheduling/background"
	"github.com/vnykmshr/bgflow/pkg/scheduling/scheduler"
	"github.com/vnykmshr/bgflow/pkg/scheduling/workerpool"
)

// File is the on-disk configuration of a bgflow process.
type File struct {
	Log       logx.Config    `yaml:"log"`
	Scheduler Scheduler      `yaml:"scheduler"`
	Pool      Pool           `yaml:"pool"`
	Producer  Producer       `yaml:"producer"`
	Metrics   metrics.Config `yaml:"metrics"`
}

// Scheduler configures the background lanes.
type Scheduler struct {
	Name            string  `yaml:"name"`
	FailureLogRate  float64 `yaml:"failure_log_rate"`
	FailureLogBurst int     `yaml:"failure_log_burst"`
}

// Pool configures the optional bounded async dispatcher.
// When disabled the async lane starts one goroutine per job.
type Pool struct {
	Enabled   bool   `yaml:"enabled"`
	Name      string `yaml:"name"`
	Workers   int    `yaml:"workers"`
	QueueSize int    `yaml:"queue_size"`
}

// Producer configures the recurring trigger loop.
type Producer struct {
	Name string `yaml:"name"`
	// TickInterval is a Go duration string such as "50ms".
	TickInterval string `yaml:"tick_interval"`
	MaxTasks     int    `yaml:"max_tasks"`
	// Timezone is an IANA name used for cron expressions. Empty means local time.
	Timezone string `yaml:"timezone"`
}

// Default returns the configuration used when no file is given.
func Default() *File {
	return &File{
		Log:       logx.Config{Level: "info", Console: true},
		Scheduler: Scheduler{Name: "default"},
		Pool:      Pool{Name: "pool", Workers: 4, QueueSize: 64},
		Producer:  Producer{Name: "producer", TickInterval: "50ms"},
		Metrics:   metrics.Config{Enabled: true, Namespace: metrics.DefaultNamespace, Listen: ":9090"},
	}
}

// Load reads and validates the file at path. Missing keys keep their
// Default values; unknown keys are rejected.
func Load(path string) (*File, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, bferrors.NewOperationError("config", "load", err).WithContext(path)
	}
	return Parse(b)
}

// Parse decodes a single YAML document on top of Default and validates it.
func Parse(data []byte) (*File, error) {
	cfg := Default()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("yaml decode: %w", err)
	}
	// Reject a second document.
	var extra yaml.Node
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		if err == nil {
			return nil, fmt.Errorf("invalid config: trailing document")
		}
		return nil, fmt.Errorf("yaml decode: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every block.
func (f *File) Validate() error {
	if err := f.BackgroundConfig().Validate(); err != nil {
		return err
	}
	if f.Pool.Enabled {
		if err := f.PoolConfig().Validate(); err != nil {
			return err
		}
	}
	if _, err := f.TickInterval(); err != nil {
		return err
	}
	if _, err := f.Location(); err != nil {
		return err
	}
	return validation.ValidateNonNegative("config", "producer.max_tasks", float64(f.Producer.MaxTasks))
}

// BackgroundConfig maps the scheduler block to a background.Config.
// Logger, Metrics and Dispatcher are left for the caller to wire.
func (f *File) BackgroundConfig() background.Config {
	return background.Config{
		Name:            f.Scheduler.Name,
		FailureLogRate:  f.Scheduler.FailureLogRate,
		FailureLogBurst: f.Scheduler.FailureLogBurst,
	}
}

// PoolConfig maps the pool block to a workerpool.Config.
func (f *File) PoolConfig() workerpool.Config {
	return workerpool.Config{
		Name:      f.Pool.Name,
		Workers:   f.Pool.Workers,
		QueueSize: f.Pool.QueueSize,
	}
}

// ProducerConfig maps the producer block to a scheduler.Config for target.
func (f *File) ProducerConfig(target background.Enqueuer) (scheduler.Config, error) {
	tick, err := f.TickInterval()
	if err != nil {
		return scheduler.Config{}, err
	}
	loc, err := f.Location()
	if err != nil {
		return scheduler.Config{}, err
	}
	return scheduler.Config{
		Name:         f.Producer.Name,
		Target:       target,
		Location:     loc,
		TickInterval: tick,
		MaxTasks:     f.Producer.MaxTasks,
	}, nil
}

// TickInterval parses producer.tick_interval. Empty or zero means
// scheduler.DefaultTickInterval.
func (f *File) TickInterval() (time.Duration, error) {
	return ParseDurationOrDefault("producer.tick_interval", f.Producer.TickInterval, scheduler.DefaultTickInterval)
}

// Location resolves producer.timezone.
func (f *File) Location() (*time.Location, error) {
	if f.Producer.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(f.Producer.Timezone)
	if err != nil {
		return nil, bferrors.NewValidationError("config", "producer.timezone", f.Producer.Timezone, err.Error())
	}
	return loc, nil
}
