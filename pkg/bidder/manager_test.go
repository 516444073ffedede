// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package bidder

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/adxyz/rtbidder/pkg/budget"
	"github.com/adxyz/rtbidder/pkg/campaign"
	"github.com/adxyz/rtbidder/pkg/eventbus"
	"github.com/adxyz/rtbidder/pkg/ids"
	"github.com/adxyz/rtbidder/pkg/log"
	"github.com/adxyz/rtbidder/pkg/metric"
	"github.com/adxyz/rtbidder/pkg/storage"
)

func newTestManager(t *testing.T) (*Manager, *storage.Memory, *budget.Controller) {
	t.Helper()
	store := storage.NewMemory()
	m := metric.NewTest()
	bc := budget.NewController(nil, m, log.NoLog, budget.Options{RequestCooldown: time.Minute})
	mgr := NewManager(store, bc, m, log.NoLog, testOptions())
	return mgr, store, bc
}

func TestManagerLoad(t *testing.T) {
	require := require.New(t)

	mgr, store, bc := newTestManager(t)
	store.PutCampaign(activeCampaign())
	store.PutCreative(squareCreative())
	bc.SetBudget("camp-1", 100)

	require.NoError(mgr.Load(context.Background()))
	require.Equal(1, mgr.Size())

	out := mgr.BidAll(context.Background(), squareRequest())
	require.Len(out, 1)
	require.Equal("camp-1", out[0].Campaign.ID)
}

// flakyStore lists a campaign whose per-campaign fetch then fails.
type flakyStore struct {
	*storage.Memory
	broken string
}

func (s *flakyStore) GetCampaign(ctx context.Context, id string) (*campaign.CampaignRecord, error) {
	if id == s.broken {
		return nil, storage.ErrNotFound
	}
	return s.Memory.GetCampaign(ctx, id)
}

func TestManagerLoadSkipsBrokenCampaign(t *testing.T) {
	require := require.New(t)

	mem := storage.NewMemory()
	mem.PutCampaign(activeCampaign())
	broken := activeCampaign()
	broken.ID = "camp-2"
	mem.PutCampaign(broken)

	mgr := NewManager(&flakyStore{Memory: mem, broken: "camp-2"}, nil, metric.NewTest(), log.NoLog, testOptions())
	require.NoError(mgr.Load(context.Background()))
	require.Equal(1, mgr.Size())
}

func TestManagerEntityChangeAdd(t *testing.T) {
	require := require.New(t)

	mgr, store, _ := newTestManager(t)
	require.Equal(0, mgr.Size())

	store.PutCampaign(activeCampaign())
	store.PutCreative(squareCreative())
	mgr.HandleEntityChange(context.Background(), eventbus.EntityChange{
		Entity: eventbus.EntityCampaign, ID: "camp-1", Kind: eventbus.ChangeAdd,
	})
	require.Equal(1, mgr.Size())
}

func TestManagerEntityChangeUpdateSwapsBidder(t *testing.T) {
	require := require.New(t)

	mgr, store, _ := newTestManager(t)
	store.PutCampaign(activeCampaign())
	store.PutCreative(squareCreative())
	require.NoError(mgr.Load(context.Background()))
	require.Len(mgr.BidAll(context.Background(), squareRequest()), 1)

	paused := activeCampaign()
	paused.Status = campaign.StatusPaused
	store.PutCampaign(paused)
	mgr.HandleEntityChange(context.Background(), eventbus.EntityChange{
		Entity: eventbus.EntityCampaign, ID: "camp-1", Kind: eventbus.ChangeUpdate,
	})

	require.Equal(1, mgr.Size())
	require.Empty(mgr.BidAll(context.Background(), squareRequest()))
}

func TestManagerEntityChangeDelete(t *testing.T) {
	require := require.New(t)

	mgr, store, bc := newTestManager(t)
	store.PutCampaign(activeCampaign())
	bc.SetBudget("camp-1", 100)
	require.NoError(mgr.Load(context.Background()))
	require.Equal(1, mgr.Size())

	mgr.HandleEntityChange(context.Background(), eventbus.EntityChange{
		Entity: eventbus.EntityCampaign, ID: "camp-1", Kind: eventbus.ChangeDelete,
	})
	require.Equal(0, mgr.Size())

	// Admission state is dropped with the bidder.
	require.False(bc.CanBid("camp-1"))
}

func TestManagerReloadFailureKeepsStaleRoster(t *testing.T) {
	require := require.New(t)

	mgr, store, _ := newTestManager(t)
	store.PutCampaign(activeCampaign())
	store.PutCreative(squareCreative())
	require.NoError(mgr.Load(context.Background()))

	// The record vanishes, then an update arrives. The stale bidder must
	// keep serving.
	store.DeleteCampaign("camp-1")
	mgr.HandleEntityChange(context.Background(), eventbus.EntityChange{
		Entity: eventbus.EntityCampaign, ID: "camp-1", Kind: eventbus.ChangeUpdate,
	})
	require.Equal(1, mgr.Size())
	require.Len(mgr.BidAll(context.Background(), squareRequest()), 1)
}

func TestManagerCreativeChangeRebuildsReferencingCampaigns(t *testing.T) {
	require := require.New(t)

	mgr, store, _ := newTestManager(t)
	store.PutCampaign(activeCampaign())
	store.PutCreative(squareCreative())
	require.NoError(mgr.Load(context.Background()))
	require.Len(mgr.BidAll(context.Background(), squareRequest()), 1)

	// The creative grows to a size the request can no longer host.
	resized := squareCreative()
	resized.Contents[0].Width = 728
	resized.Contents[0].Height = 90
	store.PutCreative(resized)
	mgr.HandleEntityChange(context.Background(), eventbus.EntityChange{
		Entity: eventbus.EntityCreative, ID: "cr-1", Kind: eventbus.ChangeUpdate,
	})

	require.Empty(mgr.BidAll(context.Background(), squareRequest()))
}

func TestManagerResolveCampaign(t *testing.T) {
	require := require.New(t)

	mgr, store, _ := newTestManager(t)
	store.PutCampaign(activeCampaign())
	require.NoError(mgr.Load(context.Background()))

	id, ok := mgr.ResolveCampaign(ids.FromName("camp-1"))
	require.True(ok)
	require.Equal("camp-1", id)

	_, ok = mgr.ResolveCampaign(ids.FromName("camp-2"))
	require.False(ok)
}

func TestManagerHandleBudgetStatus(t *testing.T) {
	require := require.New(t)

	mgr, store, bc := newTestManager(t)
	store.PutCampaign(activeCampaign())
	bc.SetBudget("camp-1", 100)
	require.NoError(mgr.Load(context.Background()))

	mgr.HandleBudgetStatus(eventbus.BudgetStatus{CampaignID: "camp-1", Remaining: decimal.NewFromInt(25)})
	require.InDelta(25.0, bc.Remaining("camp-1"), 1e-9)
	require.True(bc.CanBid("camp-1"))

	mgr.HandleBudgetStatus(eventbus.BudgetStatus{CampaignID: "camp-1", Failed: true})
	require.False(bc.CanBid("camp-1"))
}

func TestManagerBidAllAcrossCampaigns(t *testing.T) {
	require := require.New(t)

	mgr, store, _ := newTestManager(t)
	store.PutCampaign(activeCampaign())
	store.PutCreative(squareCreative())

	second := activeCampaign()
	second.ID = "camp-2"
	store.PutCampaign(second)
	cr := squareCreative()
	cr.ID = "cr-2"
	cr.CampaignID = "camp-2"
	store.PutCreative(cr)

	require.NoError(mgr.Load(context.Background()))
	require.Equal(2, mgr.Size())
	require.Len(mgr.BidAll(context.Background(), squareRequest()), 2)
}
