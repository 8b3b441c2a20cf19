package metrics

import "github.com/prometheus/client_golang/prometheus"

// BotMetrics exposes counters/histograms for the messaging webhook and
// booking flow.
type BotMetrics struct {
	inboundTotal   *prometheus.CounterVec
	bookingsTotal  *prometheus.CounterVec
	webhookLatency prometheus.Histogram
	sweptSessions  prometheus.Counter
}

func NewBotMetrics(reg prometheus.Registerer) *BotMetrics {
	m := &BotMetrics{
		inboundTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bookingbot",
			Subsystem: "messaging",
			Name:      "inbound_webhook_total",
			Help:      "Total inbound messaging webhooks",
		}, []string{"status"}),
		bookingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bookingbot",
			Subsystem: "booking",
			Name:      "attempts_total",
			Help:      "Booking attempts by outcome",
		}, []string{"outcome"}),
		webhookLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "bookingbot",
			Subsystem: "messaging",
			Name:      "webhook_latency_seconds",
			Help:      "Latency of webhook turn processing",
			Buckets:   prometheus.DefBuckets,
		}),
		sweptSessions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "bookingbot",
			Subsystem: "session",
			Name:      "swept_total",
			Help:      "Sessions removed by the idle sweeper",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.inboundTotal, m.bookingsTotal, m.webhookLatency, m.sweptSessions)
	return m
}

func (m *BotMetrics) ObserveInbound(status string) {
	if m == nil {
		return
	}
	m.inboundTotal.WithLabelValues(status).Inc()
}

func (m *BotMetrics) ObserveBooking(outcome string) {
	if m == nil {
		return
	}
	m.bookingsTotal.WithLabelValues(outcome).Inc()
}

func (m *BotMetrics) ObserveWebhookLatency(seconds float64) {
	if m == nil {
		return
	}
	m.webhookLatency.Observe(seconds)
}

func (m *BotMetrics) ObserveSweptSessions(count int) {
	if m == nil || count <= 0 {
		return
	}
	m.sweptSessions.Add(float64(count))
}
