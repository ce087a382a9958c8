package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(adminRosterCacheTotal) }

// Roster cache lookups resolve to one of these.
const (
	RosterHit    = "hit"
	RosterMiss   = "miss"
	RosterBypass = "bypass"
)

var adminRosterCacheTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "notify_admin_roster_cache_total",
		Help: "Admin recipient roster lookups served from Redis, from Postgres, or bypassed inside a tx.",
	},
	[]string{"result"},
)

func IncAdminRosterLookup(result string) {
	adminRosterCacheTotal.WithLabelValues(norm(result)).Inc()
}
