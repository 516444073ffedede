// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/adxyz/rtbidder/pkg/campaign"
)

func TestMemoryCampaignCRUD(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	m := NewMemory()
	_, err := m.GetCampaign(ctx, "camp-1")
	require.ErrorIs(err, ErrNotFound)

	m.PutCampaign(&campaign.CampaignRecord{ID: "camp-1", Name: "first"})
	rec, err := m.GetCampaign(ctx, "camp-1")
	require.NoError(err)
	require.Equal("first", rec.Name)

	m.PutCampaign(&campaign.CampaignRecord{ID: "camp-1", Name: "replaced"})
	rec, err = m.GetCampaign(ctx, "camp-1")
	require.NoError(err)
	require.Equal("replaced", rec.Name)

	recs, err := m.ListCampaigns(ctx)
	require.NoError(err)
	require.Len(recs, 1)

	m.DeleteCampaign("camp-1")
	_, err = m.GetCampaign(ctx, "camp-1")
	require.ErrorIs(err, ErrNotFound)
}

func TestMemoryCreativesByCampaign(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	m := NewMemory()
	m.PutCreative(&campaign.CreativeRecord{ID: "cr-1", CampaignID: "camp-1"})
	m.PutCreative(&campaign.CreativeRecord{ID: "cr-2", CampaignID: "camp-1"})
	m.PutCreative(&campaign.CreativeRecord{ID: "cr-3", CampaignID: "camp-2"})

	got, err := m.ListCreatives(ctx, "camp-1")
	require.NoError(err)
	require.Len(got, 2)

	got, err = m.ListCreatives(ctx, "camp-3")
	require.NoError(err)
	require.Empty(got)

	rec, err := m.GetCreative(ctx, "cr-3")
	require.NoError(err)
	require.Equal("camp-2", rec.CampaignID)

	m.DeleteCreative("cr-3")
	_, err = m.GetCreative(ctx, "cr-3")
	require.ErrorIs(err, ErrNotFound)
}
