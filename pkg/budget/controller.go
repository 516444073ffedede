// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package budget implements the admission control loop that gates bidding
// on per-campaign budget. Decisions use only local atomic state; the
// authoritative ledger is consulted asynchronously and the local view is
// eventually consistent with it. On any doubt the controller stops
// bidding: under-spend is recoverable, over-spend is not.
package budget

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"github.com/adxyz/rtbidder/pkg/counter"
	"github.com/adxyz/rtbidder/pkg/log"
	"github.com/adxyz/rtbidder/pkg/metric"
)

// Defaults for the replenishment protocol.
const (
	DefaultRequestCooldown = 15 * time.Second
	DefaultRequestTimeout  = 2 * time.Second
)

// DefaultRequestUnits is the allocation size asked of the authority.
var DefaultRequestUnits = decimal.NewFromInt(5)

// BudgetClient requests more allocation from the shared budget authority.
// A true result means the request was accepted, not that funds were
// granted; funds arrive asynchronously via a budget-status message.
type BudgetClient interface {
	RequestBudget(ctx context.Context, campaignID string, units decimal.Decimal) (bool, error)
}

// Options tunes the replenishment protocol.
type Options struct {
	RequestCooldown time.Duration
	RequestUnits    decimal.Decimal
	RequestTimeout  time.Duration
}

func (o Options) withDefaults() Options {
	if o.RequestCooldown <= 0 {
		o.RequestCooldown = DefaultRequestCooldown
	}
	if o.RequestUnits.IsZero() {
		o.RequestUnits = DefaultRequestUnits
	}
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = DefaultRequestTimeout
	}
	return o
}

// entry is the per-campaign admission state.
type entry struct {
	remaining counter.Counter

	// syncFailed trips the fail-safe: bidding stops regardless of the
	// local counter until a successful sync clears it.
	syncFailed atomic.Bool

	// lastRequest is the unix-nano timestamp of the last replenishment
	// request; it is the dedup marker for the cooldown window.
	lastRequest atomic.Int64
}

// Controller makes per-campaign admission decisions.
type Controller struct {
	client  BudgetClient
	metrics *metric.Metrics
	log     log.Logger
	opts    Options
	now     func() time.Time

	entries sync.Map // campaign id -> *entry
}

// NewController creates an admission controller. client may be nil, in
// which case exhaustion is still detected but no replenishment is sent.
func NewController(client BudgetClient, metrics *metric.Metrics, logger log.Logger, opts Options) *Controller {
	if logger == nil {
		logger = log.NoLog
	}
	if metrics == nil {
		metrics = metric.NewTest()
	}
	return &Controller{
		client:  client,
		metrics: metrics,
		log:     logger,
		opts:    opts.withDefaults(),
		now:     time.Now,
	}
}

func (c *Controller) entryFor(campaignID string) *entry {
	if e, ok := c.entries.Load(campaignID); ok {
		return e.(*entry)
	}
	e, _ := c.entries.LoadOrStore(campaignID, &entry{})
	return e.(*entry)
}

// CanBid reports whether the campaign may bid using only local state.
// On exhaustion it also fires a replenishment request without blocking.
func (c *Controller) CanBid(campaignID string) bool {
	e := c.entryFor(campaignID)
	if e.syncFailed.Load() {
		return false
	}
	if e.remaining.Read() <= 0 {
		c.RequestAdditional(campaignID)
		return false
	}
	return true
}

// Spend records spend against the campaign's local remaining budget.
func (c *Controller) Spend(campaignID string, amount float64) {
	c.entryFor(campaignID).remaining.Increment(-amount)
}

// Remaining returns the local view of remaining budget.
func (c *Controller) Remaining(campaignID string) float64 {
	return c.entryFor(campaignID).remaining.Read()
}

// SetBudget seeds the local counter, used at bootstrap before the first
// reconciliation message arrives.
func (c *Controller) SetBudget(campaignID string, remaining float64) {
	c.entryFor(campaignID).remaining.Sync(remaining)
}

// RequestAdditional asks the authority for more allocation. Concurrent
// callers within the cooldown window are deduplicated: only the goroutine
// that wins the timestamp CAS sends the request. On client failure the
// marker is cleared so the next exhausted request may retry.
func (c *Controller) RequestAdditional(campaignID string) {
	if c.client == nil {
		return
	}
	e := c.entryFor(campaignID)

	now := c.now().UnixNano()
	last := e.lastRequest.Load()
	if now-last < int64(c.opts.RequestCooldown) {
		return
	}
	if !e.lastRequest.CompareAndSwap(last, now) {
		return
	}

	c.metrics.BudgetRequests.Inc()

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), c.opts.RequestTimeout)
		defer cancel()

		accepted, err := c.client.RequestBudget(ctx, campaignID, c.opts.RequestUnits)
		if err != nil || !accepted {
			// Clear the marker so the next exhausted check retries.
			e.lastRequest.Store(0)
			c.log.Warn("budget replenishment request failed",
				log.String("campaign", campaignID),
				log.Error(err))
			return
		}
		c.log.Debug("budget replenishment requested",
			log.String("campaign", campaignID),
			log.String("units", c.opts.RequestUnits.String()))
	}()
}

// SyncRemaining applies an authoritative remaining-budget value. The local
// counter is overwritten, not incremented; spend recorded between the
// authority's snapshot and this call is dropped, bounded by one
// reconciliation window. A successful sync clears the fail-safe.
func (c *Controller) SyncRemaining(campaignID string, remaining decimal.Decimal) {
	e := c.entryFor(campaignID)
	prev := e.remaining.Sync(remaining.InexactFloat64())
	e.syncFailed.Store(false)
	c.metrics.BudgetSyncs.Inc()
	c.log.Debug("budget synced",
		log.String("campaign", campaignID),
		log.Float64("previous", prev),
		log.String("remaining", remaining.String()))
}

// MarkSyncFailed trips the fail-safe for a campaign: CanBid returns false
// until the next successful sync, even if the local counter is positive.
func (c *Controller) MarkSyncFailed(campaignID string) {
	c.entryFor(campaignID).syncFailed.Store(true)
	c.metrics.BudgetSyncFailures.Inc()
	c.log.Warn("budget sync failed, stopping campaign to be safe",
		log.String("campaign", campaignID))
}

// Forget drops the campaign's admission state when it leaves the roster.
func (c *Controller) Forget(campaignID string) {
	c.entries.Delete(campaignID)
}
