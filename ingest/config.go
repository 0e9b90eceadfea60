package ingest

import (
	"github.com/prometheus/client_golang/prometheus"
)

// DefaultConfig has metrics disabled.
var DefaultConfig = Config{
	Registerer: nil,
}

// Config contains optional parameters for the driver.
type Config struct {
	Registerer prometheus.Registerer
}

// WithRegisterer registers the driver's metrics with reg.
func WithRegisterer(reg prometheus.Registerer) func(*Config) {
	return func(cfg *Config) {
		cfg.Registerer = reg
	}
}
