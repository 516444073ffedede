// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package eventbus delivers entity-change notifications and budget-status
// messages to the bidder. Delivery is at-least-once; handlers must be
// idempotent.
package eventbus

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// EntityType identifies what kind of entity a change notification is about.
type EntityType string

const (
	EntityCampaign EntityType = "campaign"
	EntityCreative EntityType = "creative"
)

// ChangeKind identifies the change applied to an entity.
type ChangeKind string

const (
	ChangeAdd    ChangeKind = "add"
	ChangeUpdate ChangeKind = "update"
	ChangeDelete ChangeKind = "delete"
)

// EntityChange notifies that a campaign or creative changed in storage.
type EntityChange struct {
	Entity EntityType `json:"entity"`
	ID     string     `json:"id"`
	Kind   ChangeKind `json:"kind"`
}

// BudgetStatus carries an authoritative remaining-budget value from the
// budget authority. Failed marks a reconciliation the authority could not
// complete; consumers must fail safe on it.
type BudgetStatus struct {
	CampaignID    string          `json:"campaign_id"`
	Remaining     decimal.Decimal `json:"remaining"`
	CorrelationID string          `json:"correlation_id"`
	Failed        bool            `json:"failed"`
}

// Message envelope types.
const (
	MessageEntityChange = "entity_change"
	MessageBudgetStatus = "budget_status"
)

// Message is the wire envelope for all bus traffic.
type Message struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}
