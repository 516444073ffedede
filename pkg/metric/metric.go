// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package metric

import (
	"github.com/prometheus/client_golang/prometheus"
)

// No-bid reason labels, one per decision exit in the campaign bidder.
const (
	ReasonCampaignInactive   = "campaign_inactive"
	ReasonBudgetExhausted    = "budget_exhausted"
	ReasonNoSchedule         = "no_schedule"
	ReasonCampaignNotStarted = "campaign_not_started"
	ReasonCampaignEnded      = "campaign_ended"
	ReasonRequestFiltered    = "request_filtered"
	ReasonBundleIncomplete   = "bundle_incomplete"
	ReasonPriceOutOfRange    = "price_out_of_range"
	ReasonInternalError      = "internal_error"
)

// Metrics holds all metrics for the bidder.
type Metrics struct {
	// Bid decision metrics
	BidRequests   prometheus.Counter
	BidsGenerated prometheus.Counter
	NoBidReasons  *prometheus.CounterVec
	CampaignPrice *prometheus.GaugeVec

	// Budget metrics
	BudgetRequests     prometheus.Counter
	BudgetSyncs        prometheus.Counter
	BudgetSyncFailures prometheus.Counter

	// Postback metrics
	Postbacks           *prometheus.CounterVec
	TokenDecodeFailures prometheus.Counter

	// Performance metrics
	BidLatency prometheus.Histogram
}

// New creates a metrics instance registered on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		BidRequests: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "rtb",
			Name:      "bid_requests_total",
			Help:      "Total bid requests dispatched to the bidder roster",
		}),
		BidsGenerated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "rtb",
			Name:      "bids_generated_total",
			Help:      "Total bid candidates emitted",
		}),
		NoBidReasons: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rtb",
			Name:      "no_bid_reason_total",
			Help:      "No-bid decisions by reason and campaign",
		}, []string{"reason", "campaign"}),
		CampaignPrice: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "rtb",
			Name:      "campaign_price_cpm",
			Help:      "Last computed CPM per campaign",
		}, []string{"campaign"}),
		BudgetRequests: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "rtb",
			Name:      "budget_requests_total",
			Help:      "Replenishment requests sent to the budget authority",
		}),
		BudgetSyncs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "rtb",
			Name:      "budget_syncs_total",
			Help:      "Authoritative budget values applied locally",
		}),
		BudgetSyncFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "rtb",
			Name:      "budget_sync_failures_total",
			Help:      "Budget reconciliations that failed and tripped the fail-safe",
		}),
		Postbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rtb",
			Name:      "postbacks_total",
			Help:      "Exchange postbacks by operation",
		}, []string{"operation"}),
		TokenDecodeFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "rtb",
			Name:      "token_decode_failures_total",
			Help:      "Auction tokens that failed to decode on a postback path",
		}),
		BidLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "rtb",
			Name:      "bid_latency_seconds",
			Help:      "Time to evaluate one bid request against the full roster",
			Buckets:   []float64{.001, .0025, .005, .01, .025, .05, .1},
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.BidRequests,
			m.BidsGenerated,
			m.NoBidReasons,
			m.CampaignPrice,
			m.BudgetRequests,
			m.BudgetSyncs,
			m.BudgetSyncFailures,
			m.Postbacks,
			m.TokenDecodeFailures,
			m.BidLatency,
		)
	}

	return m
}

// NewTest creates an unexported-registry metrics instance for tests.
func NewTest() *Metrics {
	return New(prometheus.NewRegistry())
}

// NoBid increments the no-bid counter for one reason/campaign pair.
func (m *Metrics) NoBid(reason, campaignID string) {
	m.NoBidReasons.WithLabelValues(reason, campaignID).Inc()
}
