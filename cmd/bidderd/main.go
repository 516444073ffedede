// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prebid/openrtb/v20/openrtb2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/adxyz/rtbidder/pkg/bidder"
	"github.com/adxyz/rtbidder/pkg/budget"
	"github.com/adxyz/rtbidder/pkg/campaign"
	"github.com/adxyz/rtbidder/pkg/config"
	"github.com/adxyz/rtbidder/pkg/eventbus"
	"github.com/adxyz/rtbidder/pkg/log"
	"github.com/adxyz/rtbidder/pkg/metric"
	"github.com/adxyz/rtbidder/pkg/storage"
	"github.com/adxyz/rtbidder/pkg/token"
)

var (
	configPath = flag.String("config", "", "Config file path")
	listenAddr = flag.String("addr", "", "Listen address override")

	Version   = "dev"
	GitCommit = "unknown"
)

func main() {
	flag.Parse()

	fmt.Printf("RTB bidder daemon (bidderd) %s (commit: %s)\n", Version, GitCommit)

	cfg, err := config.New(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *listenAddr != "" {
		cfg.ServerAddr = *listenAddr
	}

	logger := log.New(cfg.LogLevel)
	defer logger.Sync()

	srv, err := newServer(cfg, logger)
	if err != nil {
		logger.Fatal("failed to build server", log.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	srv.start(ctx)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", log.Error(err))
	}
}

// server ties the bidder components to their HTTP surface.
type server struct {
	cfg     *config.Configuration
	log     log.Logger
	metrics *metric.Metrics
	reg     *prometheus.Registry

	budget     *budget.Controller
	manager    *bidder.Manager
	subscriber *eventbus.Subscriber
	httpServer *http.Server
}

func newServer(cfg *config.Configuration, logger log.Logger) (*server, error) {
	reg := prometheus.NewRegistry()
	metrics := metric.New(reg)

	budgetOpts, err := cfg.BudgetOptions()
	if err != nil {
		return nil, err
	}

	var client budget.BudgetClient
	if cfg.Redis.Addr != "" {
		client = budget.NewRedisLedger(cfg.Redis.Addr, cfg.Redis.DB, logger)
	}
	controller := budget.NewController(client, metrics, logger, budgetOpts)

	store := storage.NewMemory()
	if cfg.SeedFile != "" {
		if err := loadSeed(store, cfg.SeedFile); err != nil {
			return nil, fmt.Errorf("load seed file: %w", err)
		}
	}

	manager := bidder.NewManager(store, controller, metrics, logger, bidder.Options{
		CallbackBaseURL: cfg.ExternalURL,
		BidTTL:          cfg.BidTTL(),
	})
	if err := manager.Load(context.Background()); err != nil {
		return nil, fmt.Errorf("load campaigns: %w", err)
	}

	s := &server{
		cfg:     cfg,
		log:     logger,
		metrics: metrics,
		reg:     reg,
		budget:  controller,
		manager: manager,
	}

	if cfg.Events.URL != "" {
		sub := eventbus.NewSubscriber(cfg.Events.URL, logger)
		sub.OnEntityChange(manager.HandleEntityChange)
		sub.OnBudgetStatus(manager.HandleBudgetStatus)
		s.subscriber = sub
	}

	r := mux.NewRouter()
	r.HandleFunc("/rtb/bid", s.handleBid).Methods(http.MethodPost)
	r.HandleFunc("/postback/{operation}", s.handlePostback).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	s.httpServer = &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      r,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}

	return s, nil
}

func (s *server) start(ctx context.Context) {
	if s.subscriber != nil {
		go func() {
			if err := s.subscriber.Run(ctx); err != nil && ctx.Err() == nil {
				s.log.Error("event subscriber stopped", log.Error(err))
			}
		}()
	}

	go func() {
		s.log.Info("listening", log.String("addr", s.cfg.ServerAddr))
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.Fatal("http server failed", log.Error(err))
		}
	}()
}

func (s *server) shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// handleBid evaluates one OpenRTB bid request against the campaign roster.
func (s *server) handleBid(w http.ResponseWriter, r *http.Request) {
	var req openrtb2.BidRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "malformed bid request", http.StatusBadRequest)
		return
	}

	candidates := s.manager.BidAll(r.Context(), &req)
	if len(candidates) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	bids := make([]openrtb2.Bid, 0, len(candidates))
	for _, cand := range candidates {
		bids = append(bids, cand.Bid)
	}

	resp := openrtb2.BidResponse{
		ID:      req.ID,
		Cur:     s.cfg.Currency,
		SeatBid: []openrtb2.SeatBid{{Bid: bids}},
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(&resp); err != nil {
		s.log.Error("encode bid response failed", log.Error(err))
	}
}

// handlePostback consumes a win/loss/impression/click callback from the
// exchange. A token that fails to decode is a hard 400: defaulting it
// would credit the wrong campaign.
func (s *server) handlePostback(w http.ResponseWriter, r *http.Request) {
	tok, err := token.Decode(r.URL.Query().Get("token"))
	if err != nil {
		s.metrics.TokenDecodeFailures.Inc()
		s.log.Warn("postback token rejected", log.Error(err))
		http.Error(w, "malformed token", http.StatusBadRequest)
		return
	}

	op, err := token.ParseOperation(mux.Vars(r)["operation"])
	if err != nil || op != tok.Operation {
		s.metrics.TokenDecodeFailures.Inc()
		http.Error(w, "operation mismatch", http.StatusBadRequest)
		return
	}

	s.metrics.Postbacks.WithLabelValues(op.String()).Inc()

	// Wins and billable impressions count against local budget; the
	// authoritative ledger reconciles asynchronously.
	if op == token.OpWin || op == token.OpImpression {
		if campaignID, ok := s.manager.ResolveCampaign(tok.Campaign); ok {
			s.budget.Spend(campaignID, tok.CPM/1000)
		}
	}

	w.WriteHeader(http.StatusOK)
}

// seedData is the optional bootstrap fixture format.
type seedData struct {
	Campaigns []*campaign.CampaignRecord `json:"campaigns"`
	Creatives []*campaign.CreativeRecord `json:"creatives"`
}

func loadSeed(store *storage.Memory, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var seed seedData
	if err := json.Unmarshal(data, &seed); err != nil {
		return err
	}
	for _, rec := range seed.Campaigns {
		store.PutCampaign(rec)
	}
	for _, rec := range seed.Creatives {
		store.PutCreative(rec)
	}
	return nil
}
