package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the lien module. Tracks lifecycle
// counts, collected fees, and settlement path durations.
type Metrics struct {
	LiensCreated      prometheus.Counter
	LiensRedeemed     prometheus.Counter
	PropertiesClaimed prometheus.Counter
	StatusUpdates     *prometheus.CounterVec
	FeesCollected     prometheus.Counter
	PayoutsTotal      prometheus.Counter
	CreateDuration    prometheus.Histogram
	SettleDuration    prometheus.Histogram
}

// New creates a Metrics instance with all lien module metrics registered.
func New() *Metrics {
	return &Metrics{
		LiensCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "taxlien_liens_created_total",
			Help: "Total number of lien certificates issued",
		}),
		LiensRedeemed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "taxlien_liens_redeemed_total",
			Help: "Total number of liens settled by redemption",
		}),
		PropertiesClaimed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "taxlien_properties_claimed_total",
			Help: "Total number of liens settled by property claim",
		}),
		StatusUpdates: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "taxlien_status_updates_total",
			Help: "Total number of administrative status transitions",
		}, []string{"from", "to"}),
		FeesCollected: promauto.NewCounter(prometheus.CounterOpts{
			Name: "taxlien_fees_collected_units_total",
			Help: "Total service fees collected, in ledger units",
		}),
		PayoutsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "taxlien_redemption_payout_units_total",
			Help: "Total redemption payouts disbursed, in ledger units",
		}),
		CreateDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "taxlien_create_lien_duration_seconds",
			Help:    "Duration of lien issuance (registry lock plus fund transfer)",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		SettleDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "taxlien_settlement_duration_seconds",
			Help:    "Duration of redemption and claim settlements",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}
}

// ObserveCreate records the duration of a CreateLien operation.
func (m *Metrics) ObserveCreate(start time.Time) {
	m.CreateDuration.Observe(time.Since(start).Seconds())
}

// ObserveSettle records the duration of a settlement operation.
func (m *Metrics) ObserveSettle(start time.Time) {
	m.SettleDuration.Observe(time.Since(start).Seconds())
}
