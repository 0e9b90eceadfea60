package ingest

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const labelResult = "result"

type metrics struct {
	blocks   *prometheus.CounterVec
	archives *prometheus.CounterVec
}

// newMetrics creates the driver's counters and registers them with reg. A
// nil registerer leaves them unregistered.
func newMetrics(reg prometheus.Registerer) *metrics {
	factory := promauto.With(reg)

	blockOpts := prometheus.CounterOpts{
		Namespace: "era1",
		Name:      "blocks_total",
		Help:      "the number of blocks received, by outcome",
	}
	archiveOpts := prometheus.CounterOpts{
		Namespace: "era1",
		Name:      "archives_total",
		Help:      "the number of archives closed, by outcome",
	}

	m := metrics{
		blocks:   factory.NewCounterVec(blockOpts, []string{labelResult}),
		archives: factory.NewCounterVec(archiveOpts, []string{labelResult}),
	}
	return &m
}

func (m *metrics) block(result string) {
	m.blocks.WithLabelValues(result).Inc()
}

func (m *metrics) archive(result string) {
	m.archives.WithLabelValues(result).Inc()
}
