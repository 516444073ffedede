// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/adxyz/rtbidder/pkg/campaign"
)

// Memory is an in-memory Store used for bootstrap seeding and tests.
type Memory struct {
	mu        sync.RWMutex
	campaigns map[string]*campaign.CampaignRecord
	creatives map[string]*campaign.CreativeRecord
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		campaigns: make(map[string]*campaign.CampaignRecord),
		creatives: make(map[string]*campaign.CreativeRecord),
	}
}

// PutCampaign inserts or replaces a campaign record.
func (m *Memory) PutCampaign(rec *campaign.CampaignRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.campaigns[rec.ID] = rec
}

// PutCreative inserts or replaces a creative record.
func (m *Memory) PutCreative(rec *campaign.CreativeRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creatives[rec.ID] = rec
}

// DeleteCampaign removes a campaign record.
func (m *Memory) DeleteCampaign(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.campaigns, id)
}

// DeleteCreative removes a creative record.
func (m *Memory) DeleteCreative(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.creatives, id)
}

func (m *Memory) GetCampaign(_ context.Context, id string) (*campaign.CampaignRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.campaigns[id]
	if !ok {
		return nil, fmt.Errorf("campaign %q: %w", id, ErrNotFound)
	}
	return rec, nil
}

func (m *Memory) GetCreative(_ context.Context, id string) (*campaign.CreativeRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.creatives[id]
	if !ok {
		return nil, fmt.Errorf("creative %q: %w", id, ErrNotFound)
	}
	return rec, nil
}

func (m *Memory) ListCampaigns(_ context.Context) ([]*campaign.CampaignRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*campaign.CampaignRecord, 0, len(m.campaigns))
	for _, rec := range m.campaigns {
		out = append(out, rec)
	}
	return out, nil
}

func (m *Memory) ListCreatives(_ context.Context, campaignID string) ([]*campaign.CreativeRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*campaign.CreativeRecord
	for _, rec := range m.creatives {
		if rec.CampaignID == campaignID {
			out = append(out, rec)
		}
	}
	return out, nil
}
