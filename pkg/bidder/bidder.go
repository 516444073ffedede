// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package bidder implements per-campaign bid decisions and the manager
// that keeps the campaign roster in sync with entity changes. A
// CampaignBidder is immutable after construction; campaign updates swap in
// a new instance so in-flight requests always see a consistent snapshot.
package bidder

import (
	"context"
	"fmt"
	"time"

	"github.com/prebid/openrtb/v20/openrtb2"

	"github.com/adxyz/rtbidder/pkg/budget"
	"github.com/adxyz/rtbidder/pkg/campaign"
	"github.com/adxyz/rtbidder/pkg/ids"
	"github.com/adxyz/rtbidder/pkg/log"
	"github.com/adxyz/rtbidder/pkg/metric"
	"github.com/adxyz/rtbidder/pkg/token"
)

// Candidate is a priced, creative-matched, not-yet-serialized offer to bid
// on one impression. It lives for a single request/response cycle; only
// the encoded token strings inside the bid's callback URLs outlive it.
type Candidate struct {
	Request  *openrtb2.BidRequest
	Imp      *openrtb2.Imp
	Campaign *campaign.Campaign
	Creative *campaign.Creative
	Content  *campaign.CreativeContent
	Price    float64
	Token    *token.Token
	Bid      openrtb2.Bid
}

// Options configures bidders built by the manager.
type Options struct {
	// ExchangeID identifies this exchange in minted auction tokens.
	ExchangeID ids.ID

	// CallbackBaseURL is the externally reachable prefix for postback
	// URLs, e.g. "https://bid.example.com".
	CallbackBaseURL string

	// BidTTL is how long a submitted bid stays valid.
	BidTTL time.Duration

	// Now overrides the clock, for tests.
	Now func() time.Time
}

func (o Options) withDefaults() Options {
	if o.ExchangeID.IsZero() {
		o.ExchangeID = ids.FromName("rtbidder")
	}
	if o.BidTTL <= 0 {
		o.BidTTL = 5 * time.Minute
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// CampaignBidder evaluates bid requests for one campaign. All
// campaign-derived state is read-only after construction.
type CampaignBidder struct {
	campaign *campaign.Campaign
	tokenID  ids.ID
	budget   *budget.Controller
	metrics  *metric.Metrics
	log      log.Logger
	opts     Options
}

// NewCampaignBidder creates a bidder for one compiled campaign.
func NewCampaignBidder(c *campaign.Campaign, bc *budget.Controller, m *metric.Metrics, logger log.Logger, opts Options) *CampaignBidder {
	if logger == nil {
		logger = log.NoLog
	}
	if m == nil {
		m = metric.NewTest()
	}
	return &CampaignBidder{
		campaign: c,
		tokenID:  ids.FromName(c.ID),
		budget:   bc,
		metrics:  m,
		log:      logger.With(log.String("campaign", c.ID)),
		opts:     opts.withDefaults(),
	}
}

// Campaign returns the compiled campaign this bidder serves.
func (b *CampaignBidder) Campaign() *campaign.Campaign {
	return b.campaign
}

// TokenCampaignID returns the 128-bit identity this bidder stamps into
// auction tokens.
func (b *CampaignBidder) TokenCampaignID() ids.ID {
	return b.tokenID
}

// Bid evaluates one request and returns zero or more priced candidates.
// Internal failures never escape: they are logged, counted and converted
// into an empty result for this campaign only.
func (b *CampaignBidder) Bid(ctx context.Context, req *openrtb2.BidRequest) (out []*Candidate) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("bid evaluation failed", log.Any("panic", r))
			b.metrics.NoBid(metric.ReasonInternalError, b.campaign.ID)
			out = nil
		}
	}()

	c := b.campaign

	if c.Status != campaign.StatusActive {
		b.metrics.NoBid(metric.ReasonCampaignInactive, c.ID)
		return nil
	}
	if b.budget != nil && !b.budget.CanBid(c.ID) {
		b.metrics.NoBid(metric.ReasonBudgetExhausted, c.ID)
		return nil
	}
	if c.Schedule == nil {
		b.metrics.NoBid(metric.ReasonNoSchedule, c.ID)
		return nil
	}
	now := b.opts.Now()
	if now.Before(c.Schedule.Start) {
		b.metrics.NoBid(metric.ReasonCampaignNotStarted, c.ID)
		return nil
	}
	if !c.Schedule.End.IsZero() && now.After(c.Schedule.End) {
		b.metrics.NoBid(metric.ReasonCampaignEnded, c.ID)
		return nil
	}
	if c.Exclude(req, nil) {
		b.metrics.NoBid(metric.ReasonRequestFiltered, c.ID)
		return nil
	}

	// The price modifier runs once per request, not per impression.
	price := c.Price(req)
	b.metrics.CampaignPrice.WithLabelValues(c.ID).Set(price)

	var candidates []*Candidate
	matched := make([]bool, len(req.Imp))
	for i := range req.Imp {
		imp := &req.Imp[i]
		if imp.BidFloor > c.MaxCPM {
			continue
		}
		for _, cr := range c.Creatives {
			for _, ct := range cr.Contents {
				if !ct.Matches(req, imp) {
					continue
				}
				candidates = append(candidates, &Candidate{
					Request:  req,
					Imp:      imp,
					Campaign: c,
					Creative: cr,
					Content:  ct,
					Price:    price,
					Token: &token.Token{
						Exchange:  b.opts.ExchangeID,
						Campaign:  b.tokenID,
						Bid:       ids.NewID(),
						CPM:       price,
						Timestamp: token.Ticks(now),
						Operation: token.OpUnknown,
					},
				})
				matched[i] = true
			}
		}
	}

	// An all-or-nothing bundle is rejected wholesale when any impression
	// stays unmatched. This is auction semantics, not an optimization.
	if req.AllImps == 1 {
		for _, ok := range matched {
			if !ok {
				b.metrics.NoBid(metric.ReasonBundleIncomplete, c.ID)
				return nil
			}
		}
	}

	out = candidates[:0]
	for _, cand := range candidates {
		// Out-of-range prices are dropped, never clamped: a clamped
		// price can't be traced back to any pricing rule.
		if cand.Price < cand.Imp.BidFloor || cand.Price > c.MaxCPM {
			b.metrics.NoBid(metric.ReasonPriceOutOfRange, c.ID)
			continue
		}
		b.fillBid(cand)
		out = append(out, cand)
	}
	if len(out) == 0 {
		return nil
	}

	b.metrics.BidsGenerated.Add(float64(len(out)))
	return out
}

// fillBid populates the serializable bid payload for a surviving
// candidate, minting one callback URL per auction operation from the
// candidate's token.
func (b *CampaignBidder) fillBid(cand *Candidate) {
	cand.Bid = openrtb2.Bid{
		ID:      cand.Token.Bid.String(),
		ImpID:   cand.Imp.ID,
		Price:   cand.Price,
		W:       cand.Content.Width,
		H:       cand.Content.Height,
		ADomain: cand.Campaign.AdDomains,
		CID:     cand.Campaign.ID,
		CrID:    cand.Creative.ID,
		IURL:    cand.Content.URI,
		Exp:     int64(b.opts.BidTTL.Seconds()),
		NURL:    b.callbackURL(cand.Token, token.OpWin),
		LURL:    b.callbackURL(cand.Token, token.OpLoss),
		BURL:    b.callbackURL(cand.Token, token.OpImpression),
	}
}

func (b *CampaignBidder) callbackURL(t *token.Token, op token.Operation) string {
	return fmt.Sprintf("%s/postback/%s?token=%s", b.opts.CallbackBaseURL, op, t.OperationString(op))
}
