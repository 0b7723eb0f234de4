package timeframe

import (
	"io"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/FoxiClaus/orderwall/internal/metrics"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func almost(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

// at builds a timestamp inside a given minute of a fixed hour.
func at(minute, second int) time.Time {
	return time.Date(2026, 3, 14, 9, minute, second, 0, time.UTC)
}

func snap(imb, bid, ask float64) metrics.Snapshot {
	return metrics.Snapshot{ImbalancePct: imb, BidVolume: bid, AskVolume: ask}
}

func TestMinuteRolloverFlushesMean(t *testing.T) {
	a := NewAggregator(DefaultCaps(), testLogger())

	a.Ingest(snap(10, 100, 50), at(1, 0))
	a.Ingest(snap(20, 200, 100), at(1, 30))
	if a.History(Minute).Len() != 0 {
		t.Fatal("no flush before the minute rolls over")
	}

	// First snapshot of minute 2 closes minute 1.
	a.Ingest(snap(0, 0, 0), at(2, 0))
	h := a.History(Minute)
	if h.Len() != 1 {
		t.Fatalf("1m entries got %d want 1", h.Len())
	}
	e, _ := h.Newest()
	if !almost(e.ImbalancePct, 15) || !almost(e.BidVolume, 150) || !almost(e.AskVolume, 75) {
		t.Fatalf("mean entry wrong: %+v", e)
	}
	if !e.Time.Equal(at(1, 0).Truncate(time.Minute)) {
		t.Fatalf("entry stamped %v want minute 1", e.Time)
	}
}

func TestFiveMinuteIsMeanOfMinuteMeans(t *testing.T) {
	a := NewAggregator(DefaultCaps(), testLogger())

	// One snapshot per minute 0..4, imbalances 10,20,30,40,50.
	for m := 0; m < 5; m++ {
		a.Ingest(snap(float64((m+1)*10), 0, 0), at(m, 10))
	}
	// Entering minute 5 closes minute 4 and hits the 5m boundary.
	a.Ingest(snap(0, 0, 0), at(5, 0))

	if got := a.History(Minute).Len(); got != 5 {
		t.Fatalf("1m entries got %d want 5", got)
	}
	h5 := a.History(FiveMinute)
	if h5.Len() != 1 {
		t.Fatalf("5m entries got %d want 1", h5.Len())
	}
	e, _ := h5.Newest()
	if !almost(e.ImbalancePct, 30) { // mean of 10..50
		t.Fatalf("5m mean got %v want 30", e.ImbalancePct)
	}
}

func TestFifteenMinuteCascade(t *testing.T) {
	a := NewAggregator(DefaultCaps(), testLogger())

	// One snapshot per minute 0..15; minute 15 closes minute 14 and is
	// both a 5m and a 15m boundary.
	for m := 0; m <= 15; m++ {
		a.Ingest(snap(float64(m), 0, 0), at(m, 0))
	}

	if got := a.History(FiveMinute).Len(); got != 3 { // minutes 5, 10, 15
		t.Fatalf("5m entries got %d want 3", got)
	}
	h15 := a.History(FifteenMinute)
	if h15.Len() != 1 {
		t.Fatalf("15m entries got %d want 1", h15.Len())
	}
	// 5m means: mean(0..4)=2, mean(5..9)=7, mean(10..14)=12 → 15m mean 7.
	e, _ := h15.Newest()
	if !almost(e.ImbalancePct, 7) {
		t.Fatalf("15m mean got %v want 7", e.ImbalancePct)
	}
}

func TestGapMinutesProduceNoEntries(t *testing.T) {
	a := NewAggregator(DefaultCaps(), testLogger())

	a.Ingest(snap(10, 0, 0), at(0, 0))
	// Feed silent through minutes 1..6; next snapshot lands in minute 7.
	a.Ingest(snap(20, 0, 0), at(7, 0))

	h := a.History(Minute)
	if h.Len() != 1 {
		t.Fatalf("1m entries got %d want 1 (no zero-fill)", h.Len())
	}
	// Minute 5 passed inside the gap, so no 5m entry either.
	if a.History(FiveMinute).Len() != 0 {
		t.Fatalf("5m entries got %d want 0", a.History(FiveMinute).Len())
	}
}

func TestHistoryCapsNeverExceeded(t *testing.T) {
	caps := DefaultCaps()
	a := NewAggregator(caps, testLogger())

	// Four hours of one snapshot per minute.
	start := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)
	for m := 0; m < 4*60; m++ {
		a.Ingest(snap(float64(m%40), 1, 1), start.Add(time.Duration(m)*time.Minute))
	}

	if got := a.History(Minute).Len(); got > caps.Minute {
		t.Fatalf("1m history %d exceeds cap %d", got, caps.Minute)
	}
	if got := a.History(FiveMinute).Len(); got > caps.FiveMinute {
		t.Fatalf("5m history %d exceeds cap %d", got, caps.FiveMinute)
	}
	if got := a.History(FifteenMinute).Len(); got > caps.FifteenMinute {
		t.Fatalf("15m history %d exceeds cap %d", got, caps.FifteenMinute)
	}
	if got := a.History(Minute).Len(); got != caps.Minute {
		t.Fatalf("1m history should be full, got %d", got)
	}
}

func TestHistoryFIFOEviction(t *testing.T) {
	h := NewHistory(3)
	for i := 1; i <= 5; i++ {
		h.Push(Entry{ImbalancePct: float64(i)})
	}
	if h.Len() != 3 {
		t.Fatalf("len got %d want 3", h.Len())
	}
	want := []float64{3, 4, 5}
	for i, w := range want {
		if got := h.At(i).ImbalancePct; got != w {
			t.Fatalf("entry %d got %v want %v", i, got, w)
		}
	}
}

func TestTrend(t *testing.T) {
	a := NewAggregator(DefaultCaps(), testLogger())
	if got := a.Trend(Minute); got != TrendNoData {
		t.Fatalf("empty history trend got %q want no data", got)
	}

	h := a.History(Minute)
	h.Push(Entry{ImbalancePct: 0})
	if got := a.Trend(Minute); got != TrendNoData {
		t.Fatalf("single entry trend got %q want no data", got)
	}

	h.Push(Entry{ImbalancePct: 6})
	if got := a.Trend(Minute); got != TrendUp {
		t.Fatalf("trend got %q want up", got)
	}

	h.Push(Entry{ImbalancePct: -6})
	if got := a.Trend(Minute); got != TrendDown {
		t.Fatalf("trend got %q want down", got)
	}

	// Difference of exactly 5 points is neutral, not up.
	a2 := NewAggregator(DefaultCaps(), testLogger())
	a2.History(Minute).Push(Entry{ImbalancePct: 0})
	a2.History(Minute).Push(Entry{ImbalancePct: 5})
	if got := a2.Trend(Minute); got != TrendNeutral {
		t.Fatalf("trend got %q want neutral", got)
	}
}

func TestTrendWindowUsesLastTen(t *testing.T) {
	a := NewAggregator(DefaultCaps(), testLogger())
	h := a.History(Minute)
	// Old spike that must fall outside the 10-entry window.
	h.Push(Entry{ImbalancePct: 100})
	for i := 0; i < 10; i++ {
		h.Push(Entry{ImbalancePct: 1})
	}
	if got := a.Trend(Minute); got != TrendNeutral {
		t.Fatalf("trend got %q want neutral (spike outside window)", got)
	}
}
