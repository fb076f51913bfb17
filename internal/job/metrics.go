package job

import (
	"github.com/prometheus/client_golang/prometheus"
)

type stepMetrics struct {
	runs        *prometheus.CounterVec
	failures    *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	lastSuccess prometheus.Gauge
}

func newStepMetrics(reg prometheus.Registerer) (*stepMetrics, error) {
	m := &stepMetrics{
		runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "certify",
				Subsystem: "job",
				Name:      "runs_total",
				Help:      "Reconciliation passes by outcome.",
			},
			[]string{"result"},
		),
		failures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "certify",
				Subsystem: "job",
				Name:      "step_failures_total",
				Help:      "Failed reconciliation steps.",
			},
			[]string{"step"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "certify",
				Subsystem: "job",
				Name:      "step_duration_seconds",
				Help:      "Reconciliation step latencies in seconds.",
				Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
			},
			[]string{"step"},
		),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "certify",
			Subsystem: "job",
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last pass without failed steps.",
		}),
	}

	if reg == nil {
		return m, nil
	}
	for _, c := range []prometheus.Collector{m.runs, m.failures, m.duration, m.lastSuccess} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *stepMetrics) observe(s StepReport) {
	m.duration.WithLabelValues(s.Name).Observe(s.Duration.Seconds())
	if s.Failed() {
		m.failures.WithLabelValues(s.Name).Inc()
	}
}

func (m *stepMetrics) finish(r Report) {
	if r.Failed() {
		m.runs.WithLabelValues("failure").Inc()
		return
	}
	m.runs.WithLabelValues("success").Inc()
	m.lastSuccess.Set(float64(r.FinishedAt.Unix()))
}
