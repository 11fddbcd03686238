package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		pointsMovedTotal,
		ledgerEntriesTotal,
		shadowAccountsTotal,
	)
}

var (
	pointsMovedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_points_moved_total",
			Help: "Absolute points moved through the ledger, by flow (award/redeem/shadow_award/shadow_redeem/migration).",
		},
		[]string{"flow"},
	)

	ledgerEntriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_entries_total",
			Help: "Ledger entries appended, by flow.",
		},
		[]string{"flow"},
	)

	shadowAccountsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shadow_accounts_total",
			Help: "Shadow account lifecycle events (created/claimed).",
		},
		[]string{"event"},
	)
)

func AddPointsMoved(flow string, points int64) {
	if points < 0 {
		points = -points
	}
	pointsMovedTotal.WithLabelValues(norm(flow)).Add(float64(points))
	ledgerEntriesTotal.WithLabelValues(norm(flow)).Inc()
}

func IncShadowAccount(event string) {
	shadowAccountsTotal.WithLabelValues(norm(event)).Inc()
}
