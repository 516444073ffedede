// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package bidder

import (
	"context"
	"sync"
	"time"

	"github.com/prebid/openrtb/v20/openrtb2"

	"github.com/adxyz/rtbidder/pkg/budget"
	"github.com/adxyz/rtbidder/pkg/campaign"
	"github.com/adxyz/rtbidder/pkg/eventbus"
	"github.com/adxyz/rtbidder/pkg/ids"
	"github.com/adxyz/rtbidder/pkg/log"
	"github.com/adxyz/rtbidder/pkg/metric"
	"github.com/adxyz/rtbidder/pkg/storage"
)

// Manager keeps the active roster of campaign bidders in sync with entity
// changes and fans incoming requests out to all of them. Roster mutation
// always replaces whole bidder instances, never mutates a live one, so
// in-flight BidAll calls stay consistent without locking the hot path.
type Manager struct {
	store   storage.Store
	budget  *budget.Controller
	metrics *metric.Metrics
	log     log.Logger
	opts    Options

	mu      sync.RWMutex
	roster  map[string]*CampaignBidder
	byToken map[ids.ID]string
}

// NewManager creates an empty manager. Call Load to populate the roster.
func NewManager(store storage.Store, bc *budget.Controller, m *metric.Metrics, logger log.Logger, opts Options) *Manager {
	if logger == nil {
		logger = log.NoLog
	}
	if m == nil {
		m = metric.NewTest()
	}
	return &Manager{
		store:   store,
		budget:  bc,
		metrics: m,
		log:     logger,
		opts:    opts.withDefaults(),
		roster:  make(map[string]*CampaignBidder),
		byToken: make(map[ids.ID]string),
	}
}

// Load builds one bidder per stored campaign. Creative content filters
// hydrate lazily on first use.
func (m *Manager) Load(ctx context.Context) error {
	recs, err := m.store.ListCampaigns(ctx)
	if err != nil {
		return err
	}
	for _, rec := range recs {
		if err := m.reload(ctx, rec.ID); err != nil {
			// One broken campaign must not block the rest of the roster.
			m.log.Error("skipping campaign at load",
				log.String("campaign", rec.ID),
				log.Error(err))
		}
	}
	m.log.Info("campaign roster loaded", log.Int("campaigns", m.Size()))
	return nil
}

// Size returns the number of active bidders.
func (m *Manager) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.roster)
}

// BidAll evaluates the request against every active bidder and collects
// candidate bids. Bidders are independent; a failure in one yields an
// empty result for that campaign only.
func (m *Manager) BidAll(ctx context.Context, req *openrtb2.BidRequest) []*Candidate {
	start := time.Now()
	m.metrics.BidRequests.Inc()

	m.mu.RLock()
	bidders := make([]*CampaignBidder, 0, len(m.roster))
	for _, b := range m.roster {
		bidders = append(bidders, b)
	}
	m.mu.RUnlock()

	var out []*Candidate
	for _, b := range bidders {
		out = append(out, b.Bid(ctx, req)...)
	}

	m.metrics.BidLatency.Observe(time.Since(start).Seconds())
	return out
}

// ResolveCampaign maps a token campaign identity back to the campaign's
// string id, for postback attribution.
func (m *Manager) ResolveCampaign(id ids.ID) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	campaignID, ok := m.byToken[id]
	return campaignID, ok
}

// reload fetches a campaign and its creatives and swaps a freshly built
// bidder into the roster.
func (m *Manager) reload(ctx context.Context, campaignID string) error {
	rec, err := m.store.GetCampaign(ctx, campaignID)
	if err != nil {
		return err
	}
	creatives, err := m.store.ListCreatives(ctx, campaignID)
	if err != nil {
		return err
	}

	c := campaign.Build(rec, creatives, m.log)
	b := NewCampaignBidder(c, m.budget, m.metrics, m.log, m.opts)

	m.mu.Lock()
	m.roster[campaignID] = b
	m.byToken[b.TokenCampaignID()] = campaignID
	m.mu.Unlock()
	return nil
}

// remove drops a campaign's bidder and admission state.
func (m *Manager) remove(campaignID string) {
	m.mu.Lock()
	if b, ok := m.roster[campaignID]; ok {
		delete(m.byToken, b.TokenCampaignID())
		delete(m.roster, campaignID)
	}
	m.mu.Unlock()

	if m.budget != nil {
		m.budget.Forget(campaignID)
	}
}

// HandleEntityChange applies one entity-change notification. Transient
// storage failures are logged and skipped: a stale roster keeps serving,
// delivery is at-least-once and a later event converges it.
func (m *Manager) HandleEntityChange(ctx context.Context, msg eventbus.EntityChange) {
	switch msg.Entity {
	case eventbus.EntityCampaign:
		if msg.Kind == eventbus.ChangeDelete {
			m.remove(msg.ID)
			m.log.Info("campaign removed", log.String("campaign", msg.ID))
			return
		}
		if err := m.reload(ctx, msg.ID); err != nil {
			m.log.Error("campaign reload failed, keeping stale roster",
				log.String("campaign", msg.ID),
				log.Error(err))
			return
		}
		m.log.Info("campaign reloaded", log.String("campaign", msg.ID))

	case eventbus.EntityCreative:
		// Rebuild every campaign referencing the creative so the
		// refreshed creative list swaps in atomically with its bidder.
		for _, campaignID := range m.campaignsReferencing(ctx, msg.ID) {
			if err := m.reload(ctx, campaignID); err != nil {
				m.log.Error("creative refresh failed, keeping stale roster",
					log.String("campaign", campaignID),
					log.String("creative", msg.ID),
					log.Error(err))
			}
		}

	default:
		m.log.Warn("ignoring unknown entity type", log.String("entity", string(msg.Entity)))
	}
}

func (m *Manager) campaignsReferencing(_ context.Context, creativeID string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []string
	for id, b := range m.roster {
		if b.Campaign().References(creativeID) {
			out = append(out, id)
		}
	}
	return out
}

// HandleBudgetStatus routes an authoritative budget message to the
// admission controller.
func (m *Manager) HandleBudgetStatus(msg eventbus.BudgetStatus) {
	if m.budget == nil {
		return
	}
	if msg.Failed {
		m.budget.MarkSyncFailed(msg.CampaignID)
		return
	}
	m.budget.SyncRemaining(msg.CampaignID, msg.Remaining)
}
