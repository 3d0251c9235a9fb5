package report

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/johnsiilver/dispatchcost/measure"
)

// Metrics collects Prometheus metrics about a run on its own registry. It implements
// measure.Observer and is safe for concurrent use.
type Metrics struct {
	reg *prometheus.Registry

	ForksTotal  *prometheus.CounterVec
	ForksFailed *prometheus.CounterVec
	Score       *prometheus.GaugeVec
	ScoreError  *prometheus.GaugeVec
}

var _ measure.Observer = (*Metrics)(nil)

// NewMetrics creates and registers all metrics.
func NewMetrics() *Metrics {
	m := &Metrics{reg: prometheus.NewRegistry()}

	m.ForksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dispatchcost",
			Name:      "forks_total",
			Help:      "Total number of finished forks",
		},
		[]string{"strategy", "family"},
	)

	m.ForksFailed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dispatchcost",
			Name:      "forks_failed_total",
			Help:      "Total number of forks that failed, by reason",
		},
		[]string{"strategy", "family", "reason"},
	)

	m.Score = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "dispatchcost",
			Name:      "call_nanoseconds",
			Help:      "Mean nanoseconds per call",
		},
		[]string{"strategy", "family"},
	)

	m.ScoreError = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "dispatchcost",
			Name:      "call_nanoseconds_error",
			Help:      "Half width of the 99.9% confidence interval of call_nanoseconds",
		},
		[]string{"strategy", "family"},
	)

	m.reg.MustRegister(m.ForksTotal, m.ForksFailed, m.Score, m.ScoreError)
	return m
}

// Registry returns the registry holding the metrics.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.reg
}

// ForkDone implements measure.Observer.
func (m *Metrics) ForkDone(s measure.Sample) {
	family := s.Family.String()
	m.ForksTotal.WithLabelValues(s.Strategy, family).Inc()
	if s.Valid() {
		return
	}

	reason := measure.ETUnknown
	var me measure.Error
	if errors.As(s.Err, &me) {
		reason = me.Type
	}
	m.ForksFailed.WithLabelValues(s.Strategy, family, reason.String()).Inc()
}

// Observe sets the score gauges from sums.
func (m *Metrics) Observe(sums []measure.Summary) {
	for _, s := range sums {
		family := s.Family.String()
		m.Score.WithLabelValues(s.Strategy, family).Set(s.Mean)
		m.ScoreError.WithLabelValues(s.Strategy, family).Set(s.Error)
	}
}

// WriteTextfile writes every metric to path in the text exposition format, for the node
// exporter's textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.reg)
}
