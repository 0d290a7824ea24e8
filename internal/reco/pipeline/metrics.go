package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/banshee-data/seedline/internal/reco/validate"
)

// Metrics are the Prometheus instruments of a Runner. A nil *Metrics
// records nothing.
type Metrics struct {
	events       *prometheus.CounterVec
	measurements *prometheus.CounterVec
	seeds        *prometheus.CounterVec
	problems     *prometheus.CounterVec
	stageSeconds *prometheus.HistogramVec
}

// NewMetrics registers the pipeline instruments with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		events: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "seedline",
			Subsystem: "pipeline",
			Name:      "events_total",
			Help:      "Events processed per variant",
		}, []string{"variant"}),
		measurements: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "seedline",
			Subsystem: "pipeline",
			Name:      "measurements_total",
			Help:      "Measurements produced per variant",
		}, []string{"variant"}),
		seeds: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "seedline",
			Subsystem: "pipeline",
			Name:      "seeds_total",
			Help:      "Seeds produced per variant",
		}, []string{"variant"}),
		problems: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "seedline",
			Subsystem: "validation",
			Name:      "problems_total",
			Help:      "Mismatched or unmatched entries per candidate variant and collection",
		}, []string{"variant", "collection"}),
		stageSeconds: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "seedline",
			Subsystem: "pipeline",
			Name:      "stage_seconds",
			Help:      "Wall time per stage and variant",
			Buckets:   prometheus.ExponentialBuckets(1e-5, 4, 10),
		}, []string{"variant", "stage"}),
	}
}

func (m *Metrics) observeResult(r *Result) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(r.Variant).Inc()
	m.measurements.WithLabelValues(r.Variant).Add(float64(len(r.Measurements)))
	m.seeds.WithLabelValues(r.Variant).Add(float64(len(r.Seeds)))
	for stage, d := range map[string]float64{
		"cluster":     r.Durations.Cluster.Seconds(),
		"spacepoints": r.Durations.Spacepoints.Seconds(),
		"grid":        r.Durations.Grid.Seconds(),
		"seeds":       r.Durations.Seeds.Seconds(),
		"parameters":  r.Durations.Parameters.Seconds(),
	} {
		m.stageSeconds.WithLabelValues(r.Variant, stage).Observe(d)
	}
}

func (m *Metrics) observeReport(rep validate.EventReport) {
	if m == nil {
		return
	}
	for _, d := range rep.Diagnostics {
		// Touch every series so a clean run still exports zeros.
		m.problems.WithLabelValues(rep.Variant, d.Collection).Add(float64(d.Problems()))
	}
}
