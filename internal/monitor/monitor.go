// Package monitor is the per-event supervisor: it feeds each inbound
// transport event through the pipeline (apply → compute → ingest →
// evaluate) synchronously and routes the produced signals to the log sink
// and the optional Redis bus. One event runs to completion before the next
// is accepted, so the book, accumulators and histories are single-writer
// by construction and need no locking.
package monitor

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/FoxiClaus/orderwall/internal/binance"
	"github.com/FoxiClaus/orderwall/internal/book"
	"github.com/FoxiClaus/orderwall/internal/bus"
	"github.com/FoxiClaus/orderwall/internal/metrics"
	"github.com/FoxiClaus/orderwall/internal/record"
	"github.com/FoxiClaus/orderwall/internal/signal"
	"github.com/FoxiClaus/orderwall/internal/timeframe"
)

// Config wires the monitor's collaborators. Publisher and Records are
// optional; nil means "log sink only" and "no persisted records".
type Config struct {
	Symbol         string
	Depth          int
	Book           *book.Book
	Aggregator     *timeframe.Aggregator
	Engine         *signal.Engine
	Publisher      *bus.Publisher
	Records        *record.Store
	RecordInterval time.Duration
	Logger         *slog.Logger
}

type Monitor struct {
	log    *slog.Logger
	symbol string
	depth  int

	book   *book.Book
	agg    *timeframe.Aggregator
	engine *signal.Engine

	pub         *bus.Publisher
	records     *record.Store
	recordEvery time.Duration
	lastRecord  time.Time

	// stale is set between a transport reset and the next full snapshot;
	// deltas arriving in that window are dropped, never applied to a book
	// that may have missed updates.
	stale bool
}

func New(cfg Config) *Monitor {
	return &Monitor{
		log:         cfg.Logger,
		symbol:      cfg.Symbol,
		depth:       cfg.Depth,
		book:        cfg.Book,
		agg:         cfg.Aggregator,
		engine:      cfg.Engine,
		pub:         cfg.Publisher,
		records:     cfg.Records,
		recordEvery: cfg.RecordInterval,
		stale:       true, // no trusted book until the first snapshot
	}
}

// Run consumes the feed until ctx is cancelled or the feed closes its
// event channel.
func (m *Monitor) Run(ctx context.Context, feed binance.DepthFeed) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-feed.Events():
			if !ok {
				return nil
			}
			m.Process(ctx, ev)
		case err := <-feed.Errors():
			if err != nil {
				m.log.Error("depth feed error", slog.String("err", err.Error()))
			}
		}
	}
}

// Process runs the pipeline for one event and returns the signals it
// produced. Timestamps come from the event, not the wall clock, so replays
// and tests are deterministic.
func (m *Monitor) Process(ctx context.Context, ev binance.Event) []signal.Signal {
	switch ev.Type {
	case binance.Reset:
		m.book.Reset()
		m.stale = true
		m.log.Info("transport resync, book marked stale")
		return nil

	case binance.Snapshot:
		m.book.Reset()
		m.applyEvent(ev)
		m.stale = false
		m.log.Info("book rebuilt from snapshot",
			slog.Int("bids", m.book.Depth(book.Bid)),
			slog.Int("asks", m.book.Depth(book.Ask)),
		)
		return m.pipeline(ctx, ev.Time)

	case binance.Delta:
		if m.stale {
			m.log.Debug("delta dropped, book stale")
			return nil
		}
		m.applyEvent(ev)
		return m.pipeline(ctx, ev.Time)
	}
	return nil
}

// applyEvent folds both sides into the book. Malformed entries are logged
// here, at the supervisor boundary, and never abort the rest of the delta.
func (m *Monitor) applyEvent(ev binance.Event) {
	bidRes := m.book.Apply(book.Bid, ev.Bids)
	askRes := m.book.Apply(book.Ask, ev.Asks)
	for _, bad := range append(bidRes.Malformed, askRes.Malformed...) {
		m.log.Warn("malformed depth entry skipped", slog.String("entry", bad.Error()))
	}
}

func (m *Monitor) pipeline(ctx context.Context, ts time.Time) []signal.Signal {
	snap := metrics.Compute(m.book, m.depth)
	m.agg.Ingest(snap, ts)
	sigs := m.engine.Evaluate(snap, m.agg, m.book)
	m.route(ctx, ts, sigs)
	m.maybeRecord(ts)
	return sigs
}

type signalPayload struct {
	Time      time.Time        `json:"time"`
	Symbol    string           `json:"symbol"`
	Rule      signal.Rule      `json:"rule"`
	Direction signal.Direction `json:"direction,omitempty"`
	Message   string           `json:"message"`
}

func (m *Monitor) route(ctx context.Context, ts time.Time, sigs []signal.Signal) {
	for _, s := range sigs {
		m.log.Info("signal",
			slog.String("rule", string(s.Rule)),
			slog.String("direction", string(s.Direction)),
			slog.String("message", s.Message),
		)
		if m.pub == nil {
			continue
		}
		payload, err := json.Marshal(signalPayload{
			Time:      ts,
			Symbol:    m.symbol,
			Rule:      s.Rule,
			Direction: s.Direction,
			Message:   s.Message,
		})
		if err != nil {
			continue
		}
		if err := m.pub.Publish(ctx, payload); err != nil {
			m.log.Error("signal publish failed", slog.String("err", err.Error()))
		}
	}
}

// maybeRecord persists a large-order record when the cadence is due. A
// write failure is logged and the cadence moves on; persistence never
// stalls the pipeline.
func (m *Monitor) maybeRecord(ts time.Time) {
	if m.records == nil || ts.Sub(m.lastRecord) < m.recordEvery {
		return
	}
	m.lastRecord = ts
	largeBids, largeAsks := m.engine.LargeOrders(m.book)
	rec := record.Record{
		Timestamp: ts.Unix(),
		LargeBids: largeBids,
		LargeAsks: largeAsks,
	}
	if err := m.records.Write(rec); err != nil {
		m.log.Error("record write failed", slog.String("err", err.Error()))
	}
}
