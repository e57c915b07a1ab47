package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus instruments of the monitoring loop.
type Metrics struct {
	Registry *prometheus.Registry

	PointsGenerated prometheus.Counter
	PointsScored    prometheus.Counter
	Anomalies       prometheus.Counter
	LastZScore      prometheus.Gauge
}

// New builds a dedicated registry so parallel tests do not collide.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		PointsGenerated: factory.NewCounter(prometheus.CounterOpts{
			Name: "streamwatch_points_generated_total",
			Help: "Number of points pulled from the stream generator.",
		}),
		PointsScored: factory.NewCounter(prometheus.CounterOpts{
			Name: "streamwatch_points_scored_total",
			Help: "Number of points scored after the detector window filled.",
		}),
		Anomalies: factory.NewCounter(prometheus.CounterOpts{
			Name: "streamwatch_anomalies_total",
			Help: "Number of points flagged anomalous.",
		}),
		LastZScore: factory.NewGauge(prometheus.GaugeOpts{
			Name: "streamwatch_last_z_score",
			Help: "Z-score of the most recently scored point.",
		}),
	}
}
