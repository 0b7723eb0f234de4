// Package timeframe rolls per-tick metric snapshots into overlapping
// 1m/5m/15m histories with bounded retention (about one hour of data at
// the default caps of 60/12/4 entries).
package timeframe

import (
	"log/slog"
	"time"

	"github.com/FoxiClaus/orderwall/internal/metrics"
)

// Caps bounds the retained length of each timeframe history.
type Caps struct {
	Minute        int
	FiveMinute    int
	FifteenMinute int
}

func DefaultCaps() Caps {
	return Caps{Minute: 60, FiveMinute: 12, FifteenMinute: 4}
}

// Trend classifies the direction of the imbalance over the last entries
// of a history.
type Trend string

const (
	TrendUp      Trend = "up"
	TrendDown    Trend = "down"
	TrendNeutral Trend = "neutral"
	// TrendNoData is returned when fewer than two entries exist. It is a
	// sentinel, not an error; rules that need a trend simply stay quiet.
	TrendNoData Trend = "no data"
)

const (
	trendWindow   = 10  // entries considered by Trend
	trendDeltaPct = 5.0 // percentage points separating up/down from neutral
)

// Aggregator buffers snapshots within the current wall-clock minute and, on
// every minute rollover, flushes their arithmetic mean into the 1m history.
// On minutes divisible by 5 (resp. 15) it additionally appends the mean of
// the newest 1m (resp. 5m) entries to the coarser history: the 5m and 15m
// series are means of per-minute means, not independent raw averages.
//
// If no snapshot arrives for an entire minute, that minute gets no entry;
// histories are temporally non-uniform across feed gaps and downstream
// consumers must tolerate that.
type Aggregator struct {
	log  *slog.Logger
	hist [numTimeframes]*History

	// current minute accumulator
	accMinute time.Time
	accCount  int
	sumImb    float64
	sumBid    float64
	sumAsk    float64
}

func NewAggregator(caps Caps, logger *slog.Logger) *Aggregator {
	a := &Aggregator{log: logger}
	a.hist[Minute] = NewHistory(caps.Minute)
	a.hist[FiveMinute] = NewHistory(caps.FiveMinute)
	a.hist[FifteenMinute] = NewHistory(caps.FifteenMinute)
	return a
}

// History exposes the bounded history for one timeframe. Callers must not
// retain entries across Ingest calls that could evict them.
func (a *Aggregator) History(tf Timeframe) *History {
	return a.hist[tf]
}

// Ingest folds one snapshot into the current minute, rolling histories
// over first if ts has crossed into a new minute.
func (a *Aggregator) Ingest(s metrics.Snapshot, ts time.Time) {
	minute := ts.Truncate(time.Minute)
	if a.accMinute.IsZero() {
		a.accMinute = minute
	} else if !minute.Equal(a.accMinute) {
		a.rollover(minute)
	}
	a.accCount++
	a.sumImb += s.ImbalancePct
	a.sumBid += s.BidVolume
	a.sumAsk += s.AskVolume
}

// rollover closes the accumulated minute into the 1m history and, when the
// new minute lands on a 5- or 15-minute boundary, cascades means into the
// coarser histories. The accumulator always holds at least one snapshot
// here, because rollover only runs from Ingest.
func (a *Aggregator) rollover(newMinute time.Time) {
	closed := Entry{
		Time:         a.accMinute,
		ImbalancePct: a.sumImb / float64(a.accCount),
		BidVolume:    a.sumBid / float64(a.accCount),
		AskVolume:    a.sumAsk / float64(a.accCount),
	}
	a.hist[Minute].Push(closed)
	a.log.Debug("minute closed",
		slog.Time("minute", closed.Time),
		slog.Int("samples", a.accCount),
		slog.Float64("imbalance_pct", closed.ImbalancePct),
	)

	a.accMinute = newMinute
	a.accCount = 0
	a.sumImb, a.sumBid, a.sumAsk = 0, 0, 0

	// Boundary detection keys off the minute being entered. A feed gap that
	// skips the boundary minute entirely skips the coarse flush too.
	if newMinute.Minute()%5 == 0 {
		if e, ok := meanOfLast(a.hist[Minute], 5, newMinute); ok {
			a.hist[FiveMinute].Push(e)
		}
	}
	if newMinute.Minute()%15 == 0 {
		if e, ok := meanOfLast(a.hist[FiveMinute], 3, newMinute); ok {
			a.hist[FifteenMinute].Push(e)
		}
	}
}

func meanOfLast(h *History, n int, ts time.Time) (Entry, bool) {
	window := h.Last(n)
	if len(window) == 0 {
		return Entry{}, false
	}
	var e Entry
	for _, w := range window {
		e.ImbalancePct += w.ImbalancePct
		e.BidVolume += w.BidVolume
		e.AskVolume += w.AskVolume
	}
	count := float64(len(window))
	e.ImbalancePct /= count
	e.BidVolume /= count
	e.AskVolume /= count
	e.Time = ts
	return e, true
}

// Trend looks at the last up-to-10 entries of a timeframe's history:
// up when the newest imbalance exceeds the oldest by more than 5 points,
// down when it trails by more than 5, neutral otherwise. Fewer than two
// entries yields TrendNoData.
func (a *Aggregator) Trend(tf Timeframe) Trend {
	h := a.hist[tf]
	if h.Len() < 2 {
		return TrendNoData
	}
	window := h.Last(trendWindow)
	oldest := window[0].ImbalancePct
	newest := window[len(window)-1].ImbalancePct
	switch {
	case newest > oldest+trendDeltaPct:
		return TrendUp
	case newest < oldest-trendDeltaPct:
		return TrendDown
	default:
		return TrendNeutral
	}
}
