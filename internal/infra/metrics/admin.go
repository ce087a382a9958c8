package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(adminDecisionsTotal) }

var adminDecisionsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "admin_decisions_total",
		Help: "Admin actions on orders and bank rows.",
	},
	[]string{"action", "status"}, // action: approve|reject|link|ignore, status: ok|conflict|error
)

func IncAdminDecision(action, status string) {
	adminDecisionsTotal.WithLabelValues(norm(action), norm(status)).Inc()
}
