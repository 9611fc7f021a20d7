package metrics

import "github.com/prometheus/client_golang/prometheus"

// IntakeMetrics exposes counters/histograms for the booking intake flow.
type IntakeMetrics struct {
	intakeTotal       *prometheus.CounterVec
	remoteCallLatency *prometheus.HistogramVec
	catalogMatchTotal *prometheus.CounterVec
	webhookTotal      *prometheus.CounterVec
}

func NewIntakeMetrics(reg prometheus.Registerer) *IntakeMetrics {
	m := &IntakeMetrics{
		intakeTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cpr",
			Subsystem: "intake",
			Name:      "bookings_total",
			Help:      "Booking intakes by remote sync outcome",
		}, []string{"sync", "saved"}),
		remoteCallLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "cpr",
			Subsystem: "simplybook",
			Name:      "call_duration_seconds",
			Help:      "Latency of scheduler JSON-RPC calls",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "status"}),
		catalogMatchTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cpr",
			Subsystem: "simplybook",
			Name:      "catalog_match_total",
			Help:      "Service name resolutions by match tier",
		}, []string{"tier"}),
		webhookTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cpr",
			Subsystem: "payments",
			Name:      "webhook_events_total",
			Help:      "Payment webhook events by type and handling status",
		}, []string{"provider", "event_type", "status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.intakeTotal, m.remoteCallLatency, m.catalogMatchTotal, m.webhookTotal)
	return m
}

func (m *IntakeMetrics) ObserveIntake(syncStatus string, saved bool) {
	if m == nil {
		return
	}
	label := "false"
	if saved {
		label = "true"
	}
	m.intakeTotal.WithLabelValues(syncStatus, label).Inc()
}

func (m *IntakeMetrics) ObserveRemoteCall(method, status string, seconds float64) {
	if m == nil {
		return
	}
	m.remoteCallLatency.WithLabelValues(method, status).Observe(seconds)
}

func (m *IntakeMetrics) ObserveCatalogMatch(tier string) {
	if m == nil {
		return
	}
	m.catalogMatchTotal.WithLabelValues(tier).Inc()
}

func (m *IntakeMetrics) ObserveWebhook(provider, eventType, status string) {
	if m == nil {
		return
	}
	m.webhookTotal.WithLabelValues(provider, eventType, status).Inc()
}
