package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(orderStoreConns, orderStoreEmptyAcquires) }

var (
	orderStoreConns = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "payment_store_connections",
			Help: "Postgres pool connections backing orders and bank transactions, by state.",
		},
		[]string{"state"}, // total | idle | acquired | max
	)
	orderStoreEmptyAcquires = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "payment_store_empty_acquires",
			Help: "Cumulative acquires that had to wait for a connection.",
		},
	)
)

// PoolSnapshot is the subset of pgxpool.Stat the gauges report.
type PoolSnapshot struct {
	Total, Idle, Acquired, Max int32
	EmptyAcquires              int64
}

func SetPaymentStorePool(s PoolSnapshot) {
	orderStoreConns.WithLabelValues("total").Set(float64(s.Total))
	orderStoreConns.WithLabelValues("idle").Set(float64(s.Idle))
	orderStoreConns.WithLabelValues("acquired").Set(float64(s.Acquired))
	orderStoreConns.WithLabelValues("max").Set(float64(s.Max))
	orderStoreEmptyAcquires.Set(float64(s.EmptyAcquires))
}
