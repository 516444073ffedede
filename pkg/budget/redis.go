// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package budget

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"

	"github.com/adxyz/rtbidder/pkg/log"
)

const (
	requestQueueKey    = "budget:requests"
	ackKeyPrefix       = "budget:ack:"
	remainingKeyPrefix = "budget:remaining:"
)

// RedisLedger talks to the shared budget authority through redis: requests
// are queued for the authority to consume, acknowledgements and
// authoritative remaining values are read back.
type RedisLedger struct {
	rdb *redis.Client
	log log.Logger
}

// NewRedisLedger creates a ledger client.
func NewRedisLedger(addr string, db int, logger log.Logger) *RedisLedger {
	if logger == nil {
		logger = log.NoLog
	}
	return &RedisLedger{
		rdb: redis.NewClient(&redis.Options{Addr: addr, DB: db}),
		log: logger,
	}
}

type replenishRequest struct {
	CampaignID  string    `json:"campaign_id"`
	Units       string    `json:"units"`
	RequestedAt time.Time `json:"requested_at"`
}

// RequestBudget queues a replenishment request with the authority. A
// missing acknowledgement key counts as accepted-and-pending; an explicit
// denial counts as rejected.
func (l *RedisLedger) RequestBudget(ctx context.Context, campaignID string, units decimal.Decimal) (bool, error) {
	body, err := json.Marshal(replenishRequest{
		CampaignID:  campaignID,
		Units:       units.String(),
		RequestedAt: time.Now().UTC(),
	})
	if err != nil {
		return false, err
	}

	if err := l.rdb.RPush(ctx, requestQueueKey, body).Err(); err != nil {
		return false, fmt.Errorf("queue replenishment: %w", err)
	}

	ack, err := l.rdb.Get(ctx, ackKeyPrefix+campaignID).Result()
	if err == redis.Nil {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("read replenishment ack: %w", err)
	}
	return ack != "denied", nil
}

// Remaining reads the authoritative remaining budget, used at bootstrap
// before the first budget-status message arrives. A missing key is zero
// remaining, not an error.
func (l *RedisLedger) Remaining(ctx context.Context, campaignID string) (decimal.Decimal, error) {
	val, err := l.rdb.Get(ctx, remainingKeyPrefix+campaignID).Result()
	if err == redis.Nil {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("read remaining budget: %w", err)
	}
	d, err := decimal.NewFromString(val)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse remaining budget %q: %w", val, err)
	}
	return d, nil
}

// Close releases the underlying connection pool.
func (l *RedisLedger) Close() error {
	return l.rdb.Close()
}
