// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package eventbus

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/adxyz/rtbidder/pkg/log"
)

func TestDispatchEntityChange(t *testing.T) {
	require := require.New(t)

	s := NewSubscriber("", log.NoLog)
	var got EntityChange
	s.OnEntityChange(func(_ context.Context, msg EntityChange) { got = msg })

	payload := `{"type":"entity_change","data":{"entity":"campaign","id":"camp-1","kind":"update"}}`
	require.NoError(s.dispatch(context.Background(), []byte(payload)))
	require.Equal(EntityCampaign, got.Entity)
	require.Equal("camp-1", got.ID)
	require.Equal(ChangeUpdate, got.Kind)
}

func TestDispatchBudgetStatus(t *testing.T) {
	require := require.New(t)

	s := NewSubscriber("", log.NoLog)
	var got BudgetStatus
	s.OnBudgetStatus(func(msg BudgetStatus) { got = msg })

	payload := `{"type":"budget_status","data":{"campaign_id":"camp-1","remaining":"42.5","correlation_id":"abc","failed":false}}`
	require.NoError(s.dispatch(context.Background(), []byte(payload)))
	require.Equal("camp-1", got.CampaignID)
	require.True(got.Remaining.Equal(decimal.RequireFromString("42.5")))
	require.Equal("abc", got.CorrelationID)
	require.False(got.Failed)
}

func TestDispatchFansOutToAllHandlers(t *testing.T) {
	require := require.New(t)

	s := NewSubscriber("", log.NoLog)
	calls := 0
	s.OnEntityChange(func(context.Context, EntityChange) { calls++ })
	s.OnEntityChange(func(context.Context, EntityChange) { calls++ })

	payload := `{"type":"entity_change","data":{"entity":"creative","id":"cr-1","kind":"delete"}}`
	require.NoError(s.dispatch(context.Background(), []byte(payload)))
	require.Equal(2, calls)
}

func TestDispatchRejectsBadInput(t *testing.T) {
	require := require.New(t)

	s := NewSubscriber("", log.NoLog)
	require.Error(s.dispatch(context.Background(), []byte("not json")))
	require.Error(s.dispatch(context.Background(), []byte(`{"type":"heartbeat","data":{}}`)))
	require.Error(s.dispatch(context.Background(), []byte(`{"type":"entity_change","data":"nope"}`)))
}

func TestRunConsumesAndStopsOnCancel(t *testing.T) {
	require := require.New(t)

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		msg := `{"type":"entity_change","data":{"entity":"campaign","id":"camp-1","kind":"add"}}`
		_ = conn.WriteMessage(websocket.TextMessage, []byte(msg))
		// Hold the connection open until the client goes away.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	s := NewSubscriber(url, log.NoLog)

	received := make(chan EntityChange, 1)
	s.OnEntityChange(func(_ context.Context, msg EntityChange) { received <- msg })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	select {
	case msg := <-received:
		require.Equal("camp-1", msg.ID)
	case <-time.After(2 * time.Second):
		t.Fatal("no message received")
	}

	cancel()
	select {
	case err := <-done:
		require.ErrorIs(err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("subscriber did not stop")
	}
}
