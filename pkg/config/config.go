// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package config loads bidder configuration from defaults, an optional
// YAML file and RTB_-prefixed environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/adxyz/rtbidder/pkg/budget"
)

// Configuration is the root bidder configuration.
type Configuration struct {
	ServerAddr    string       `mapstructure:"server_addr"`
	LogLevel      string       `mapstructure:"log_level"`
	ExternalURL   string       `mapstructure:"external_url"`
	Currency      string       `mapstructure:"currency"`
	BidTTLSeconds int          `mapstructure:"bid_ttl_seconds"`
	SeedFile      string       `mapstructure:"seed_file"`
	Budget        BudgetConfig `mapstructure:"budget"`
	Redis         RedisConfig  `mapstructure:"redis"`
	Events        EventsConfig `mapstructure:"events"`
}

// BudgetConfig tunes the admission controller's replenishment protocol.
type BudgetConfig struct {
	RequestCooldownSeconds int    `mapstructure:"request_cooldown_seconds"`
	RequestUnits           string `mapstructure:"request_units"`
	RequestTimeoutMS       int    `mapstructure:"request_timeout_ms"`
}

// RedisConfig locates the shared budget ledger. An empty Addr disables it.
type RedisConfig struct {
	Addr string `mapstructure:"addr"`
	DB   int    `mapstructure:"db"`
}

// EventsConfig locates the entity/budget event fabric. An empty URL
// disables the subscriber.
type EventsConfig struct {
	URL string `mapstructure:"url"`
}

// New loads configuration. path may be empty to use defaults and
// environment only.
func New(path string) (*Configuration, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("RTB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %q: %w", path, err)
		}
	}

	var c Configuration
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &c, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server_addr", ":8080")
	v.SetDefault("log_level", "info")
	v.SetDefault("external_url", "http://localhost:8080")
	v.SetDefault("currency", "USD")
	v.SetDefault("bid_ttl_seconds", 300)
	v.SetDefault("budget.request_cooldown_seconds", 15)
	v.SetDefault("budget.request_units", "5")
	v.SetDefault("budget.request_timeout_ms", 2000)
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("events.url", "")
}

// BudgetOptions converts the budget section to controller options.
func (c *Configuration) BudgetOptions() (budget.Options, error) {
	units, err := decimal.NewFromString(c.Budget.RequestUnits)
	if err != nil {
		return budget.Options{}, fmt.Errorf("parse budget.request_units %q: %w", c.Budget.RequestUnits, err)
	}
	return budget.Options{
		RequestCooldown: time.Duration(c.Budget.RequestCooldownSeconds) * time.Second,
		RequestUnits:    units,
		RequestTimeout:  time.Duration(c.Budget.RequestTimeoutMS) * time.Millisecond,
	}, nil
}

// BidTTL returns the bid validity duration.
func (c *Configuration) BidTTL() time.Duration {
	return time.Duration(c.BidTTLSeconds) * time.Second
}
