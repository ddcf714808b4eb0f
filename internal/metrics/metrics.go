package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/NodePath81/slotprobe/internal/probe"
)

// Metrics holds the collectors for one run on a private registry, so
// several runs in the same process (tests) never collide.
type Metrics struct {
	registry  *prometheus.Registry
	spins     *prometheus.CounterVec
	duration  prometheus.Histogram
	winTotal  prometheus.Counter
	balance   prometheus.Gauge
	planned   prometheus.Gauge
	completed prometheus.Gauge
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		spins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "slotprobe_spins_total",
			Help: "Spin calls by outcome",
		}, []string{"outcome"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "slotprobe_spin_duration_seconds",
			Help:    "Round-trip time of spin calls that received a response",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
		}),
		winTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "slotprobe_win_amount_total",
			Help: "Sum of win amounts over recorded spins",
		}),
		balance: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "slotprobe_balance",
			Help: "Balance reported by the last recorded spin",
		}),
		planned: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "slotprobe_run_iterations_planned",
			Help: "Configured number of spins for the run",
		}),
		completed: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "slotprobe_run_completed",
			Help: "1 once the run loop has finished",
		}),
	}
	m.registry.MustRegister(m.spins, m.duration, m.winTotal, m.balance, m.planned, m.completed)
	for _, o := range []probe.Outcome{probe.OutcomeRecorded, probe.OutcomeDiscarded, probe.OutcomeParseError, probe.OutcomeTransportError} {
		m.spins.WithLabelValues(o.String())
	}
	return m
}

func (m *Metrics) SetPlanned(n int) {
	m.planned.Set(float64(n))
}

func (m *Metrics) MarkCompleted() {
	m.completed.Set(1)
}

// OnSpin implements probe.Observer.
func (m *Metrics) OnSpin(_ int, res probe.SpinResult) {
	m.spins.WithLabelValues(res.Outcome.String()).Inc()
	if res.Outcome != probe.OutcomeTransportError {
		m.duration.Observe(res.Duration.Seconds())
	}
	if res.Outcome == probe.OutcomeRecorded {
		if res.Observation.WinAmount.IsPositive() {
			m.winTotal.Add(res.Observation.WinAmount.InexactFloat64())
		}
		m.balance.Set(res.Observation.CurrentBalance.InexactFloat64())
	}
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
