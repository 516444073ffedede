// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gorilla/websocket"

	"github.com/adxyz/rtbidder/pkg/log"
)

const (
	pongWait   = 60 * time.Second
	pingPeriod = 50 * time.Second
	maxBackoff = 30 * time.Second
)

// EntityHandler consumes entity-change notifications.
type EntityHandler func(ctx context.Context, msg EntityChange)

// BudgetHandler consumes budget-status messages.
type BudgetHandler func(msg BudgetStatus)

// Subscriber is a websocket client for the exchange event fabric. Register
// handlers before calling Run.
type Subscriber struct {
	url    string
	log    log.Logger
	dialer *websocket.Dialer

	entityHandlers []EntityHandler
	budgetHandlers []BudgetHandler
}

// NewSubscriber creates a subscriber for the given websocket URL.
func NewSubscriber(url string, logger log.Logger) *Subscriber {
	if logger == nil {
		logger = log.NoLog
	}
	return &Subscriber{
		url:    url,
		log:    logger,
		dialer: websocket.DefaultDialer,
	}
}

// OnEntityChange registers an entity-change handler.
func (s *Subscriber) OnEntityChange(h EntityHandler) {
	s.entityHandlers = append(s.entityHandlers, h)
}

// OnBudgetStatus registers a budget-status handler.
func (s *Subscriber) OnBudgetStatus(h BudgetHandler) {
	s.budgetHandlers = append(s.budgetHandlers, h)
}

// Run connects and consumes messages until ctx is cancelled, reconnecting
// with capped exponential backoff. Handler errors are logged, never fatal.
func (s *Subscriber) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		conn, _, err := s.dialer.DialContext(ctx, s.url, nil)
		if err != nil {
			s.log.Warn("event bus dial failed",
				log.String("url", s.url),
				log.Error(err))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff = min(backoff*2, maxBackoff)
			continue
		}

		backoff = time.Second
		s.log.Info("event bus connected", log.String("url", s.url))
		s.consume(ctx, conn)
		conn.Close()

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}
}

func (s *Subscriber) consume(ctx context.Context, conn *websocket.Conn) {
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(time.Second)); err != nil {
					return
				}
			case <-done:
				return
			case <-ctx.Done():
				conn.Close()
				return
			}
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			s.log.Warn("event bus read failed", log.Error(err))
			return
		}
		if err := s.dispatch(ctx, data); err != nil {
			s.log.Error("event bus message dropped", log.Error(err))
		}
	}
}

// dispatch decodes one envelope and fans it out to registered handlers.
func (s *Subscriber) dispatch(ctx context.Context, data []byte) error {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return fmt.Errorf("decode envelope: %w", err)
	}

	switch msg.Type {
	case MessageEntityChange:
		var change EntityChange
		if err := json.Unmarshal(msg.Data, &change); err != nil {
			return fmt.Errorf("decode entity change: %w", err)
		}
		for _, h := range s.entityHandlers {
			h(ctx, change)
		}
	case MessageBudgetStatus:
		var status BudgetStatus
		if err := json.Unmarshal(msg.Data, &status); err != nil {
			return fmt.Errorf("decode budget status: %w", err)
		}
		for _, h := range s.budgetHandlers {
			h(status)
		}
	default:
		return fmt.Errorf("unknown message type %q", msg.Type)
	}
	return nil
}
