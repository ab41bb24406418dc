package registry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals
var (
	dealTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cardbridge_deal_transitions_total",
		Help: "Committed deal status transitions.",
	}, []string{"from", "to"})

	dealsOpen = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "cardbridge_deals_open",
		Help: "Deals currently visible to cardholders.",
	})

	acceptConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cardbridge_deal_accept_conflicts_total",
		Help: "Accept attempts that lost the race for a deal.",
	})
)

// AcceptConflict учитывает проигранную гонку за сделку.
func AcceptConflict() {
	acceptConflicts.Inc()
}
