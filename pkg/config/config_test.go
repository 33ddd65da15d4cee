package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/vnykmshr/bgflow/internal/testutil"
	bferrors "github.com/vnykmshr/bgflow/pkg/common/errors"
	"github.com/vnykmshr/bgflow/pkg/scheduling/background"
	"github.com/vnykmshr/bgflow/pkg/scheduling/scheduler"
)

const sample = `
log:
  level: debug
scheduler:
  name: mailer
  failure_log_rate: 5
  failure_log_burst: 20
pool:
  enabled: true
  workers: 8
  queue_size: 256
producer:
  tick_interval: 100ms
  max_tasks: 50
  timezone: UTC
metrics:
  enabled: true
  listen: ":9100"
`

func writeFile(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "bgflow.yaml")
	testutil.AssertNoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeFile(t, t.TempDir(), sample)

	cfg, err := Load(path)
	testutil.AssertNoError(t, err)

	testutil.AssertEqual(t, cfg.Log.Level, "debug")
	testutil.AssertEqual(t, cfg.Log.Console, true) // from Default
	testutil.AssertEqual(t, cfg.Scheduler.Name, "mailer")
	testutil.AssertEqual(t, cfg.Pool.Workers, 8)
	testutil.AssertEqual(t, cfg.Metrics.Listen, ":9100")

	bg := cfg.BackgroundConfig()
	testutil.AssertEqual(t, bg.FailureLogRate, 5.0)
	testutil.AssertEqual(t, bg.FailureLogBurst, 20)

	pool := cfg.PoolConfig()
	testutil.AssertEqual(t, pool.QueueSize, 256)

	prod, err := cfg.ProducerConfig(background.New())
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, prod.TickInterval, 100*time.Millisecond)
	testutil.AssertEqual(t, prod.MaxTasks, 50)
	testutil.AssertEqual(t, prod.Location, time.UTC)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	testutil.AssertError(t, err)
}

func TestParseEmptyUsesDefaults(t *testing.T) {
	cfg, err := Parse(nil)
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, *cfg, *Default())
}

func TestDefaultsWithoutFile(t *testing.T) {
	cfg := Default()
	testutil.AssertEqual(t, cfg.Metrics.Enabled, true)

	cfg.Producer.TickInterval = ""
	tick, err := cfg.TickInterval()
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, tick, scheduler.DefaultTickInterval)

	cfg.Producer.TickInterval = "0s"
	tick, err = cfg.TickInterval()
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, tick, scheduler.DefaultTickInterval)
}

func TestParseRejects(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		validation bool
	}{
		{"unknown key", "scheduler:\n  nmae: typo\n", false},
		{"bad duration", "producer:\n  tick_interval: soon\n", true},
		{"negative duration", "producer:\n  tick_interval: -1s\n", true},
		{"negative log rate", "scheduler:\n  failure_log_rate: -2\n", true},
		{"pool without workers", "pool:\n  enabled: true\n  workers: 0\n", true},
		{"bad timezone", "producer:\n  timezone: Mars/Olympus\n", true},
		{"trailing document", "log:\n  level: info\n---\nlog:\n  level: debug\n", false},
		{"not yaml", "log: [\n", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.body))
			testutil.AssertError(t, err)
			testutil.AssertEqual(t, bferrors.IsValidationError(err), tt.validation)
		})
	}
}

func TestDisabledPoolIsNotValidated(t *testing.T) {
	_, err := Parse([]byte("pool:\n  enabled: false\n  workers: 0\n"))
	testutil.AssertNoError(t, err)
}

func TestParseDurationOrDefault(t *testing.T) {
	tests := []struct {
		raw  string
		want time.Duration
	}{
		{"", time.Second},
		{"0s", time.Second},
		{" 250ms ", 250 * time.Millisecond},
		{"1m30s", 90 * time.Second},
	}
	for _, tt := range tests {
		got, err := ParseDurationOrDefault("x", tt.raw, time.Second)
		testutil.AssertNoError(t, err)
		testutil.AssertEqual(t, got, tt.want)
	}

	_, err := ParseDurationOrDefault("x", "fast", time.Second)
	testutil.AssertError(t, err)
}
