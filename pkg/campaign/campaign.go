// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package campaign holds the read-only campaign and creative model the
// bidder evaluates requests against. Records are the serializable shapes
// owned by storage; Build compiles them into immutable runtime entities.
package campaign

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/adxyz/rtbidder/pkg/filter"
	"github.com/adxyz/rtbidder/pkg/log"
)

// Status is the lifecycle state of a campaign.
type Status int

const (
	StatusInactive Status = iota
	StatusActive
	StatusPaused
	StatusArchived
)

var statusNames = [...]string{"inactive", "active", "paused", "archived"}

func (s Status) String() string {
	if int(s) < len(statusNames) {
		return statusNames[s]
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// Schedule is a campaign flight window. A zero End means open-ended.
type Schedule struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// CampaignRecord is the storage shape of a campaign.
type CampaignRecord struct {
	ID          string              `json:"id"`
	Name        string              `json:"name"`
	Status      Status              `json:"status"`
	Start       *time.Time          `json:"start,omitempty"`
	End         *time.Time          `json:"end,omitempty"`
	MaxCPM      float64             `json:"max_cpm"`
	TargetCPM   float64             `json:"target_cpm"`
	DailyBudget decimal.Decimal     `json:"daily_budget"`
	AdDomains   []string            `json:"ad_domains,omitempty"`
	CreativeIDs []string            `json:"creative_ids,omitempty"`
	FilterRules []filter.Rule       `json:"filter_rules,omitempty"`
	TargetRules []filter.TargetRule `json:"target_rules,omitempty"`
}

// Campaign is the compiled, immutable runtime form. Exclude and Price are
// never nil: rule compilation failures degrade to a permissive predicate
// and a no-op price modifier, never to a broken campaign.
type Campaign struct {
	ID          string
	Name        string
	Status      Status
	Schedule    *Schedule
	MaxCPM      float64
	TargetCPM   float64
	DailyBudget decimal.Decimal
	AdDomains   []string
	Creatives   []*Creative
	Exclude     filter.Predicate
	Price       filter.PriceModifier
}

// Build compiles a campaign record and its creatives into a runtime
// campaign. It never fails: uncompilable rules are skipped inside the
// filter package with a logged error.
func Build(rec *CampaignRecord, creatives []*CreativeRecord, logger log.Logger) *Campaign {
	if logger == nil {
		logger = log.NoLog
	}
	logger = logger.With(log.String("campaign", rec.ID))

	c := &Campaign{
		ID:          rec.ID,
		Name:        rec.Name,
		Status:      rec.Status,
		MaxCPM:      rec.MaxCPM,
		TargetCPM:   rec.TargetCPM,
		DailyBudget: rec.DailyBudget,
		AdDomains:   rec.AdDomains,
		Exclude:     filter.Compile(rec.FilterRules, logger),
		Price:       filter.CompileTargets(rec.TargetRules, rec.TargetCPM, logger),
	}

	if rec.Start != nil || rec.End != nil {
		sched := &Schedule{}
		if rec.Start != nil {
			sched.Start = *rec.Start
		}
		if rec.End != nil {
			sched.End = *rec.End
		}
		c.Schedule = sched
	}

	c.Creatives = make([]*Creative, 0, len(creatives))
	for _, cr := range creatives {
		c.Creatives = append(c.Creatives, NewCreative(cr, logger))
	}

	return c
}

// References reports whether the campaign serves the given creative.
func (c *Campaign) References(creativeID string) bool {
	for _, cr := range c.Creatives {
		if cr.ID == creativeID {
			return true
		}
	}
	return false
}
