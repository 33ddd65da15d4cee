package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// DefaultNamespace prefixes every bgflow metric name.
const DefaultNamespace = "bgflow"

// Config holds configuration for metrics collection.
type Config struct {
	// Enabled controls whether metrics collection is active.
	Enabled bool `yaml:"enabled"`

	// Registry is the Prometheus registerer to use. If nil, uses prometheus.DefaultRegisterer.
	Registry prometheus.Registerer `yaml:"-"`

	// Namespace overrides the default "bgflow" namespace for metrics.
	Namespace string `yaml:"namespace"`

	// Listen is the address the example program serves /metrics on.
	Listen string `yaml:"listen"`
}

// DefaultConfig returns a default metrics configuration.
func DefaultConfig() Config {
	return Config{
		Enabled:   true,
		Registry:  prometheus.DefaultRegisterer,
		Namespace: DefaultNamespace,
	}
}

// Build returns a Registry for the config, or nil when metrics are disabled.
// Components treat a nil *Registry as "no metrics".
func (c Config) Build() *Registry {
	if !c.Enabled {
		return nil
	}
	reg := c.Registry
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	return NewRegistryWithNamespace(reg, c.Namespace)
}
