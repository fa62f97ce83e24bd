package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	EventsPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "library_events_published_total", Help: "Events acknowledged by the bus"},
		[]string{"topic"},
	)
	EventsFailed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "library_events_failed_total", Help: "Events dropped after all publish attempts or on serialization"},
		[]string{"topic", "reason"},
	)
	MessagesConsumed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "library_messages_consumed_total", Help: "Messages handled by consumers"},
		[]string{"topic", "group", "result"},
	)
	EmailsSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "library_emails_total", Help: "Email sends by outcome"},
		[]string{"kind", "result"},
	)
	PushesSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "library_push_total", Help: "Live pushes by outcome"},
		[]string{"result"},
	)
	LiveConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "library_live_connections", Help: "Open live notification channels"},
	)
	MembershipsExpired = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "library_memberships_expired_total", Help: "Users deactivated by the sweeper"},
	)
)

func init() {
	prometheus.MustRegister(EventsPublished, EventsFailed, MessagesConsumed, EmailsSent, PushesSent, LiveConnections, MembershipsExpired)
}
