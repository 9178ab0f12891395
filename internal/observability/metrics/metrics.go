package metrics

import "github.com/prometheus/client_golang/prometheus"

// ChatMetrics exposes counters/histograms for the conversation pipeline.
type ChatMetrics struct {
	turnsTotal   *prometheus.CounterVec
	intentsTotal *prometheus.CounterVec
	agentLatency prometheus.Histogram
	sweepDeletes prometheus.Counter
}

func NewChatMetrics(reg prometheus.Registerer) *ChatMetrics {
	m := &ChatMetrics{
		turnsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "chat",
			Name:      "turns_total",
			Help:      "Total processed chat turns",
		}, []string{"outcome"}),
		intentsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "chat",
			Name:      "intents_total",
			Help:      "Total extracted intents by kind and result",
		}, []string{"intent", "status"}),
		agentLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "clinic",
			Subsystem: "chat",
			Name:      "agent_latency_seconds",
			Help:      "Latency of conversational agent calls",
			Buckets:   prometheus.DefBuckets,
		}),
		sweepDeletes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "chat",
			Name:      "expired_sessions_total",
			Help:      "Sessions removed by the expiry sweep",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.turnsTotal, m.intentsTotal, m.agentLatency, m.sweepDeletes)
	return m
}

// ObserveTurn records a processed turn. outcome is one of passthrough,
// success, failure, error.
func (m *ChatMetrics) ObserveTurn(outcome string) {
	if m == nil {
		return
	}
	m.turnsTotal.WithLabelValues(outcome).Inc()
}

// ObserveIntent records an extracted intent and whether orchestration succeeded.
func (m *ChatMetrics) ObserveIntent(intent string, success bool) {
	if m == nil {
		return
	}
	status := "failure"
	if success {
		status = "success"
	}
	m.intentsTotal.WithLabelValues(intent, status).Inc()
}

// ObserveAgentLatency records one agent round-trip.
func (m *ChatMetrics) ObserveAgentLatency(seconds float64) {
	if m == nil {
		return
	}
	m.agentLatency.Observe(seconds)
}

// ObserveSweep records sessions removed by an expiry sweep.
func (m *ChatMetrics) ObserveSweep(deleted int) {
	if m == nil {
		return
	}
	m.sweepDeletes.Add(float64(deleted))
}
