package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		ordersCreatedTotal,
		orderClaimsTotal,
		orderTransitionsTotal,
		sequenceExhaustedTotal,
		ordersExpiredTotal,
	)
}

var (
	ordersCreatedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_orders_created_total",
			Help: "Payment orders created, by plan.",
		},
		[]string{"plan"},
	)

	orderClaimsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_order_claims_total",
			Help: "Transaction reference claims by outcome.",
		},
		[]string{"result"}, // accepted|rejected
	)

	orderTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_order_transitions_total",
			Help: "Order status transitions by target status.",
		},
		[]string{"status"},
	)

	sequenceExhaustedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_sequence_exhausted_total",
			Help: "Order creations refused because every amount suffix of the plan was in use.",
		},
		[]string{"plan"},
	)

	ordersExpiredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "payment_orders_expired_total",
			Help: "Orders expired by the background sweep.",
		},
	)
)

func IncOrderCreated(plan string) {
	ordersCreatedTotal.WithLabelValues(norm(plan)).Inc()
}

func IncOrderClaim(result string) {
	orderClaimsTotal.WithLabelValues(norm(result)).Inc()
}

func IncOrderTransition(status string) {
	orderTransitionsTotal.WithLabelValues(norm(status)).Inc()
}

func IncSequenceExhausted(plan string) {
	sequenceExhaustedTotal.WithLabelValues(norm(plan)).Inc()
}

func AddOrdersExpired(n int) {
	if n > 0 {
		ordersExpiredTotal.Add(float64(n))
	}
}
