package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(notificationsSentTotal, rateLimitTriggeredTotal) }

var (
	notificationsSentTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_sent_total",
			Help: "Notification deliveries by transport and status.",
		},
		[]string{"transport", "status"},
	)

	rateLimitTriggeredTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limit_triggered_total",
			Help: "Requests refused by the rate limiter.",
		},
		[]string{"bucket"},
	)
)

func IncNotificationSent(transport, status string) {
	notificationsSentTotal.WithLabelValues(norm(transport), norm(status)).Inc()
}

func IncRateLimitTriggered(bucket string) {
	rateLimitTriggeredTotal.WithLabelValues(norm(bucket)).Inc()
}
