// Package signal evaluates composite advisory rules over the current
// metrics snapshot, the timeframe histories, and the resting book. Rules
// are independent: one rule lacking inputs never blocks the others, it
// simply contributes no signal.
package signal

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/shopspring/decimal"

	"github.com/FoxiClaus/orderwall/internal/book"
	"github.com/FoxiClaus/orderwall/internal/metrics"
	"github.com/FoxiClaus/orderwall/internal/timeframe"
)

// Rule names the detector that produced a signal.
type Rule string

const (
	RuleImbalance      Rule = "imbalance"
	RuleTrendAlignment Rule = "trend_alignment"
	RuleVelocity       Rule = "imbalance_velocity"
	RuleLargeOrders    Rule = "large_orders"
	RuleAccumulation   Rule = "accumulation"
)

// Direction is the advisory lean of a signal, where one applies.
type Direction string

const (
	DirBuy     Direction = "buy"
	DirSell    Direction = "sell"
	DirNeutral Direction = ""
)

// Signal is one advisory emitted by a rule.
type Signal struct {
	Rule      Rule      `json:"rule"`
	Direction Direction `json:"direction,omitempty"`
	Message   string    `json:"message"`
}

// LargeOrder is a resting level whose quantity exceeds a multiple of the
// mean quantity over the considered depth.
type LargeOrder struct {
	Price decimal.Decimal `json:"price"`
	Qty   decimal.Decimal `json:"qty"`
}

const (
	// largeOrderDepth is how many levels per side feed the pooled mean.
	largeOrderDepth = 20
	// velocityThreshold is the per-minute imbalance change (in points)
	// that counts as a spike.
	velocityThreshold = 15.0
	// accumulation thresholds over the last accumulationWindow 1m entries
	accumulationWindow     = 5
	accumulationMaxRange   = 10.0
	accumulationVolGrowth  = 1.2
	accumulationMinPositve = 3
)

// Engine holds the configured thresholds. It carries no market state of
// its own; everything it reads arrives through Evaluate.
type Engine struct {
	log                *slog.Logger
	imbalanceThreshold float64
	largeMultiplier    decimal.Decimal

	// insufficientLogged tracks which rules already reported missing
	// history, so quiet rules log once per process instead of per tick.
	insufficientLogged map[Rule]bool
}

func NewEngine(imbalanceThreshold, largeOrderMultiplier float64, logger *slog.Logger) *Engine {
	return &Engine{
		log:                logger,
		imbalanceThreshold: imbalanceThreshold,
		largeMultiplier:    decimal.NewFromFloat(largeOrderMultiplier),
		insufficientLogged: make(map[Rule]bool),
	}
}

// Evaluate runs every rule against the current snapshot, the aggregated
// histories, and the book's top levels. The returned order is the rule
// declaration order, not severity.
func (e *Engine) Evaluate(snap metrics.Snapshot, agg *timeframe.Aggregator, b *book.Book) []Signal {
	var out []Signal

	if s, ok := e.imbalanceExtreme(snap); ok {
		out = append(out, s)
	}
	if s, ok := e.trendAlignment(agg); ok {
		out = append(out, s)
	}
	if s, ok := e.imbalanceVelocity(agg); ok {
		out = append(out, s)
	}
	largeBids, largeAsks := e.LargeOrders(b)
	if len(largeBids) > 0 {
		out = append(out, Signal{
			Rule:      RuleLargeOrders,
			Direction: DirBuy,
			Message:   fmt.Sprintf("%d large bid orders resting", len(largeBids)),
		})
	}
	if len(largeAsks) > 0 {
		out = append(out, Signal{
			Rule:      RuleLargeOrders,
			Direction: DirSell,
			Message:   fmt.Sprintf("%d large ask orders resting", len(largeAsks)),
		})
	}
	if s, ok := e.accumulation(agg); ok {
		out = append(out, s)
	}

	return out
}

func (e *Engine) imbalanceExtreme(snap metrics.Snapshot) (Signal, bool) {
	if math.Abs(snap.ImbalancePct) <= e.imbalanceThreshold {
		return Signal{}, false
	}
	dir := DirBuy
	side := "buy"
	if snap.ImbalancePct < 0 {
		dir = DirSell
		side = "sell"
	}
	return Signal{
		Rule:      RuleImbalance,
		Direction: dir,
		Message:   fmt.Sprintf("strong %s-side imbalance (%+.1f%%)", side, snap.ImbalancePct),
	}, true
}

func (e *Engine) trendAlignment(agg *timeframe.Aggregator) (Signal, bool) {
	t1 := agg.Trend(timeframe.Minute)
	t5 := agg.Trend(timeframe.FiveMinute)
	t15 := agg.Trend(timeframe.FifteenMinute)
	if t1 == timeframe.TrendNoData || t5 == timeframe.TrendNoData || t15 == timeframe.TrendNoData {
		e.logInsufficient(RuleTrendAlignment, "missing trend on at least one timeframe")
		return Signal{}, false
	}
	if t1 == timeframe.TrendUp && t5 == timeframe.TrendUp && t15 == timeframe.TrendUp {
		return Signal{
			Rule:      RuleTrendAlignment,
			Direction: DirBuy,
			Message:   "uptrend aligned across 1m/5m/15m",
		}, true
	}
	if t1 == timeframe.TrendDown && t5 == timeframe.TrendDown && t15 == timeframe.TrendDown {
		return Signal{
			Rule:      RuleTrendAlignment,
			Direction: DirSell,
			Message:   "downtrend aligned across 1m/5m/15m",
		}, true
	}
	return Signal{}, false
}

func (e *Engine) imbalanceVelocity(agg *timeframe.Aggregator) (Signal, bool) {
	h := agg.History(timeframe.Minute)
	if h.Len() < 2 {
		e.logInsufficient(RuleVelocity, "need two 1m entries")
		return Signal{}, false
	}
	last := h.Last(2)
	velocity := last[1].ImbalancePct - last[0].ImbalancePct
	if math.Abs(velocity) <= velocityThreshold {
		return Signal{}, false
	}
	dir := DirBuy
	word := "rising"
	if velocity < 0 {
		dir = DirSell
		word = "falling"
	}
	return Signal{
		Rule:      RuleVelocity,
		Direction: dir,
		Message:   fmt.Sprintf("imbalance velocity %+.1f/min %s", velocity, word),
	}, true
}

// LargeOrders scans the top levels of both sides against a single pooled
// threshold: the arithmetic mean quantity over all considered levels times
// the configured multiplier. Quantities must exceed the threshold strictly.
// The record writer uses this directly, outside any rule evaluation.
func (e *Engine) LargeOrders(b *book.Book) (bids, asks []LargeOrder) {
	topBids := b.TopN(book.Bid, largeOrderDepth)
	topAsks := b.TopN(book.Ask, largeOrderDepth)
	count := len(topBids) + len(topAsks)
	if count == 0 {
		return nil, nil
	}

	sum := decimal.Zero
	for _, lvl := range topBids {
		sum = sum.Add(lvl.Qty)
	}
	for _, lvl := range topAsks {
		sum = sum.Add(lvl.Qty)
	}
	threshold := sum.Div(decimal.NewFromInt(int64(count))).Mul(e.largeMultiplier)

	for _, lvl := range topBids {
		if lvl.Qty.GreaterThan(threshold) {
			bids = append(bids, LargeOrder{Price: lvl.Price, Qty: lvl.Qty})
		}
	}
	for _, lvl := range topAsks {
		if lvl.Qty.GreaterThan(threshold) {
			asks = append(asks, LargeOrder{Price: lvl.Price, Qty: lvl.Qty})
		}
	}
	return bids, asks
}

// accumulation looks for quiet buying pressure over the last five minutes:
// a narrow imbalance range, bid volume growing by at least 20%, and a
// mostly-positive imbalance.
func (e *Engine) accumulation(agg *timeframe.Aggregator) (Signal, bool) {
	h := agg.History(timeframe.Minute)
	if h.Len() < accumulationWindow {
		e.logInsufficient(RuleAccumulation, "need five 1m entries")
		return Signal{}, false
	}
	window := h.Last(accumulationWindow)

	minImb, maxImb := window[0].ImbalancePct, window[0].ImbalancePct
	positive := 0
	for _, w := range window {
		minImb = math.Min(minImb, w.ImbalancePct)
		maxImb = math.Max(maxImb, w.ImbalancePct)
		if w.ImbalancePct > 0 {
			positive++
		}
	}

	stable := maxImb-minImb < accumulationMaxRange
	growing := window[len(window)-1].BidVolume > window[0].BidVolume*accumulationVolGrowth
	if !stable || !growing || positive < accumulationMinPositve {
		return Signal{}, false
	}
	return Signal{
		Rule:      RuleAccumulation,
		Direction: DirBuy,
		Message:   "accumulation: stable imbalance with growing bid volume",
	}, true
}

func (e *Engine) logInsufficient(r Rule, reason string) {
	if e.insufficientLogged[r] {
		return
	}
	e.insufficientLogged[r] = true
	e.log.Debug("rule waiting for history", slog.String("rule", string(r)), slog.String("reason", reason))
}
