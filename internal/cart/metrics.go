package cart

import "github.com/prometheus/client_golang/prometheus"

var (
	cartMutations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cart_mutations_total",
			Help: "Effective cart mutations by operation.",
		},
		[]string{"op"},
	)

	cartPersistFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cart_persist_failures_total",
			Help: "Cart writes to the repository that failed and were swallowed.",
		},
	)

	cartSessionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "cart_sessions_active",
			Help: "Cart sessions currently held in memory.",
		},
	)
)

func init() {
	prometheus.MustRegister(cartMutations, cartPersistFailures, cartSessionsActive)
}
