package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// TurnMetrics exposes counters/histograms for dialogue turn processing.
type TurnMetrics struct {
	intentsTotal *prometheus.CounterVec
	turnErrors   prometheus.Counter
	nodeDuration *prometheus.HistogramVec
}

func NewTurnMetrics(reg prometheus.Registerer) *TurnMetrics {
	m := &TurnMetrics{
		intentsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "voicescheduler",
			Subsystem: "dialog",
			Name:      "intents_total",
			Help:      "Detected caller intents",
		}, []string{"intent"}),
		turnErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "voicescheduler",
			Subsystem: "dialog",
			Name:      "turn_errors_total",
			Help:      "Turns that failed before a reply could be produced",
		}),
		nodeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "voicescheduler",
			Subsystem: "dialog",
			Name:      "node_duration_seconds",
			Help:      "Time spent in each dialogue node",
			Buckets:   prometheus.DefBuckets,
		}, []string{"node"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.intentsTotal, m.turnErrors, m.nodeDuration)
	return m
}

func (m *TurnMetrics) ObserveTurn(node string, duration time.Duration) {
	if m == nil {
		return
	}
	m.nodeDuration.WithLabelValues(node).Observe(duration.Seconds())
}

func (m *TurnMetrics) CountIntent(intent string) {
	if m == nil {
		return
	}
	m.intentsTotal.WithLabelValues(intent).Inc()
}

func (m *TurnMetrics) CountTurnError() {
	if m == nil {
		return
	}
	m.turnErrors.Inc()
}
