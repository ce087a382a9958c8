package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		premiumActivationsTotal,
		premiumDemotedTotal,
		sweepRunsTotal,
	)
}

var (
	premiumActivationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "premium_activations_total",
			Help: "Premium grants by plan.",
		},
		[]string{"plan"},
	)

	premiumDemotedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "premium_demoted_total",
			Help: "Users whose premium lapsed and were reset to base quotas.",
		},
	)

	sweepRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sweep_runs_total",
			Help: "Background sweep runs by job and status.",
		},
		[]string{"job", "status"},
	)
)

func IncPremiumActivation(plan string) {
	premiumActivationsTotal.WithLabelValues(norm(plan)).Inc()
}

func AddPremiumDemoted(n int) {
	if n > 0 {
		premiumDemotedTotal.Add(float64(n))
	}
}

func IncSweepRun(job, status string) {
	sweepRunsTotal.WithLabelValues(norm(job), norm(status)).Inc()
}
