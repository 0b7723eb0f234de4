package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	stdsignal "os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/FoxiClaus/orderwall/internal/binance"
	"github.com/FoxiClaus/orderwall/internal/book"
	"github.com/FoxiClaus/orderwall/internal/bus"
	"github.com/FoxiClaus/orderwall/internal/config"
	"github.com/FoxiClaus/orderwall/internal/monitor"
	"github.com/FoxiClaus/orderwall/internal/record"
	"github.com/FoxiClaus/orderwall/internal/signal"
	"github.com/FoxiClaus/orderwall/internal/timeframe"
)

func main() {
	_ = godotenv.Load() // best-effort: .env is optional

	configPath := flag.String("config", "config.yaml", "path to the YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load %s: %v\n", *configPath, err)
		os.Exit(1)
	}

	logger := config.NewLogger(cfg.LogLevel)

	logger.Info("orderwall starting",
		slog.String("symbol", cfg.Symbol),
		slog.Int("depth", cfg.Depth),
		slog.Float64("imbalance_threshold", cfg.ImbalanceThreshold),
		slog.Float64("large_order_multiplier", cfg.LargeOrderMultiplier),
	)

	ctx, stop := stdsignal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	caps := timeframe.Caps{
		Minute:        cfg.Retention.Minute,
		FiveMinute:    cfg.Retention.FiveMinute,
		FifteenMinute: cfg.Retention.FifteenMinute,
	}
	agg := timeframe.NewAggregator(caps, logger)
	engine := signal.NewEngine(cfg.ImbalanceThreshold, cfg.LargeOrderMultiplier, logger)

	var pub *bus.Publisher
	if cfg.Redis.Addr != "" {
		pub = bus.NewPublisher(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.Channel)
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := pub.Ping(pingCtx)
		cancel()
		if err != nil {
			logger.Error("redis unreachable", slog.String("err", err.Error()))
			os.Exit(1)
		}
		defer pub.Close()
		logger.Info("signal bus enabled",
			slog.String("addr", cfg.Redis.Addr),
			slog.String("channel", cfg.Redis.Channel),
		)
	}

	var store *record.Store
	if cfg.RecordDir != "" {
		store, err = record.NewStore(cfg.RecordDir)
		if err != nil {
			logger.Error("record store init failed", slog.String("err", err.Error()))
			os.Exit(1)
		}
	}

	feed := binance.NewFeed(cfg.Symbol, cfg.WSURL, cfg.RESTURL, cfg.SnapshotDepth, cfg.ReconnectBackoff(), logger)

	mon := monitor.New(monitor.Config{
		Symbol:         cfg.Symbol,
		Depth:          cfg.Depth,
		Book:           book.New(),
		Aggregator:     agg,
		Engine:         engine,
		Publisher:      pub,
		Records:        store,
		RecordInterval: cfg.RecordInterval(),
		Logger:         logger,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		feed.Run(gctx, func(connected bool) {
			logger.Info("transport status", slog.Bool("connected", connected))
		})
		return nil
	})
	g.Go(func() error {
		return mon.Run(gctx, feed)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("stopped with error", slog.String("err", err.Error()))
		os.Exit(1)
	}
	logger.Info("bye")
}
