// Package metrics exposes marketplace counters to Prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder holds the marketplace metrics
type Recorder struct {
	checkoutsCompleted prometheus.Counter
	checkoutsFailed    *prometheus.CounterVec
	purchaseAmount     prometheus.Counter
	bidsPlaced         *prometheus.CounterVec
	auctionsFinalized  *prometheus.CounterVec
}

// NewRecorder registers the metrics on reg
func NewRecorder(reg prometheus.Registerer) *Recorder {
	factory := promauto.With(reg)
	return &Recorder{
		checkoutsCompleted: factory.NewCounter(prometheus.CounterOpts{
			Name: "market_checkouts_completed_total",
			Help: "Checkouts that purchased every basket",
		}),
		checkoutsFailed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "market_checkouts_failed_total",
			Help: "Checkouts that were rolled back",
		}, []string{"reason"}),
		purchaseAmount: factory.NewCounter(prometheus.CounterOpts{
			Name: "market_purchase_amount_total",
			Help: "Sum of charged purchase totals in minor units",
		}),
		bidsPlaced: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "market_bids_placed_total",
			Help: "Bids received by outcome",
		}, []string{"accepted"}),
		auctionsFinalized: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "market_auctions_finalized_total",
			Help: "Finalized auctions by outcome",
		}, []string{"outcome"}),
	}
}

// CheckoutCompleted records a successful checkout and its charged amount
func (r *Recorder) CheckoutCompleted(amount int64) {
	r.checkoutsCompleted.Inc()
	if amount > 0 {
		r.purchaseAmount.Add(float64(amount))
	}
}

// CheckoutFailed records a failed checkout under a short reason label
func (r *Recorder) CheckoutFailed(reason string) {
	r.checkoutsFailed.WithLabelValues(reason).Inc()
}

func (r *Recorder) BidPlaced(accepted bool) {
	label := "false"
	if accepted {
		label = "true"
	}
	r.bidsPlaced.WithLabelValues(label).Inc()
}

func (r *Recorder) AuctionFinalized(hasWinner bool) {
	outcome := "unsold"
	if hasWinner {
		outcome = "sold"
	}
	r.auctionsFinalized.WithLabelValues(outcome).Inc()
}
