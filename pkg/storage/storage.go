// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package storage defines read access to campaign and creative records.
// The bidder assumes nothing beyond "latest committed value"; persistent
// backends live behind this interface.
package storage

import (
	"context"
	"errors"

	"github.com/adxyz/rtbidder/pkg/campaign"
)

// ErrNotFound signals a missing entity.
var ErrNotFound = errors.New("entity not found")

// Store is the entity read interface the bidding manager depends on.
type Store interface {
	GetCampaign(ctx context.Context, id string) (*campaign.CampaignRecord, error)
	GetCreative(ctx context.Context, id string) (*campaign.CreativeRecord, error)
	ListCampaigns(ctx context.Context) ([]*campaign.CampaignRecord, error)
	ListCreatives(ctx context.Context, campaignID string) ([]*campaign.CreativeRecord, error)
}
