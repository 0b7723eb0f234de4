// Package config loads the YAML configuration and builds the process
// logger. Components receive their settings explicitly at construction;
// nothing in this module is a global.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Retention struct {
	Minute        int `yaml:"minute"`
	FiveMinute    int `yaml:"five_minute"`
	FifteenMinute int `yaml:"fifteen_minute"`
}

type Redis struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Channel  string `yaml:"channel"`
}

type Config struct {
	Symbol                  string    `yaml:"symbol"`
	Depth                   int       `yaml:"depth"`
	ImbalanceThreshold      float64   `yaml:"imbalance_threshold"`
	LargeOrderMultiplier    float64   `yaml:"large_order_multiplier"`
	Retention               Retention `yaml:"retention"`
	ReconnectBackoffSeconds int       `yaml:"reconnect_backoff_seconds"`
	WSURL                   string    `yaml:"ws_url"`
	RESTURL                 string    `yaml:"rest_url"`
	SnapshotDepth           int       `yaml:"snapshot_depth"`
	RecordDir               string    `yaml:"record_dir"`
	RecordIntervalSeconds   int       `yaml:"record_interval_seconds"`
	Redis                   Redis     `yaml:"redis"`
	LogLevel                string    `yaml:"log_level"`
}

func defaults() Config {
	return Config{
		Symbol:                  "STRKUSDT",
		Depth:                   20,
		ImbalanceThreshold:      40,
		LargeOrderMultiplier:    5,
		Retention:               Retention{Minute: 60, FiveMinute: 12, FifteenMinute: 4},
		ReconnectBackoffSeconds: 5,
		WSURL:                   "wss://fstream.binance.com/ws",
		RESTURL:                 "https://fapi.binance.com",
		SnapshotDepth:           100,
		RecordDir:               "./data/records",
		RecordIntervalSeconds:   60,
		Redis:                   Redis{Channel: "orderwall:signals"},
		LogLevel:                "info",
	}
}

func Load(path string) (Config, error) {
	cfg := defaults()
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("parse yaml: %w", err)
	}
	// Validation & normalization
	cfg.Symbol = strings.ToUpper(strings.TrimSpace(cfg.Symbol))
	if cfg.Symbol == "" {
		return cfg, errors.New("symbol must be set")
	}
	if cfg.Depth < 1 {
		return cfg, errors.New("depth must be >= 1")
	}
	if cfg.ImbalanceThreshold <= 0 || cfg.ImbalanceThreshold > 100 {
		return cfg, errors.New("imbalance_threshold must be in (0, 100]")
	}
	if cfg.LargeOrderMultiplier <= 1 {
		return cfg, errors.New("large_order_multiplier must be > 1")
	}
	if cfg.Retention.Minute < 1 || cfg.Retention.FiveMinute < 1 || cfg.Retention.FifteenMinute < 1 {
		return cfg, errors.New("retention caps must be >= 1")
	}
	if cfg.ReconnectBackoffSeconds < 1 {
		return cfg, errors.New("reconnect_backoff_seconds must be >= 1")
	}
	if cfg.SnapshotDepth < cfg.Depth {
		return cfg, errors.New("snapshot_depth must be >= depth")
	}
	if cfg.RecordIntervalSeconds < 1 {
		return cfg, errors.New("record_interval_seconds must be >= 1")
	}
	return cfg, nil
}

func (c Config) ReconnectBackoff() time.Duration {
	return time.Duration(c.ReconnectBackoffSeconds) * time.Second
}

func (c Config) RecordInterval() time.Duration {
	return time.Duration(c.RecordIntervalSeconds) * time.Second
}

func NewLogger(level string) *slog.Logger {
	lvl := slog.LevelInfo
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	}
	h := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	return slog.New(h)
}
