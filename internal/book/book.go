// Package book maintains the local order-book state for a single
// instrument: price-level quantities per side, mutated only by applying
// incremental depth diffs.
package book

import (
	"fmt"
	"slices"

	"github.com/shopspring/decimal"
)

// Side selects one half of the book.
type Side int

const (
	Bid Side = iota
	Ask
)

func (s Side) String() string {
	if s == Bid {
		return "bid"
	}
	return "ask"
}

// RawLevel is a price level as it arrives on the wire: both fields are
// decimal strings, possibly malformed.
type RawLevel struct {
	Price string
	Qty   string
}

// Level is a parsed, resting price level. Qty is strictly positive while
// the level is present in the book.
type Level struct {
	Price decimal.Decimal
	Qty   decimal.Decimal
}

// MalformedEntry describes a single wire entry that could not be parsed.
// It never aborts the delta it arrived in; the caller decides how to log it.
type MalformedEntry struct {
	Side  Side
	Price string
	Qty   string
	Err   error
}

func (m MalformedEntry) Error() string {
	return fmt.Sprintf("malformed %s entry (%q, %q): %v", m.Side, m.Price, m.Qty, m.Err)
}

// ApplyResult reports what a single delta did to one side of the book.
type ApplyResult struct {
	Upserted  int
	Removed   int
	Malformed []MalformedEntry
}

// Book holds both sides. Levels are keyed by the canonical string form of
// the price: decimal.Decimal values that are numerically equal can carry
// different exponents (e.g. "100" vs "100.00"), so using Decimal directly
// as a map key would split one price level into several.
type Book struct {
	bids map[string]Level
	asks map[string]Level
}

func New() *Book {
	return &Book{
		bids: make(map[string]Level),
		asks: make(map[string]Level),
	}
}

func (b *Book) side(s Side) map[string]Level {
	if s == Bid {
		return b.bids
	}
	return b.asks
}

// Apply folds one delta's entries into the given side. Quantity > 0
// replaces (never accumulates with) whatever was stored at that price;
// quantity <= 0 removes the level, a no-op if it was absent. A malformed
// entry is skipped and reported in the result; the remaining entries are
// still applied.
func (b *Book) Apply(s Side, entries []RawLevel) ApplyResult {
	var res ApplyResult
	levels := b.side(s)
	for _, e := range entries {
		price, err := decimal.NewFromString(e.Price)
		if err != nil {
			res.Malformed = append(res.Malformed, MalformedEntry{Side: s, Price: e.Price, Qty: e.Qty, Err: err})
			continue
		}
		qty, err := decimal.NewFromString(e.Qty)
		if err != nil {
			res.Malformed = append(res.Malformed, MalformedEntry{Side: s, Price: e.Price, Qty: e.Qty, Err: err})
			continue
		}
		key := price.String()
		if qty.Sign() <= 0 {
			if _, ok := levels[key]; ok {
				delete(levels, key)
				res.Removed++
			}
			continue
		}
		levels[key] = Level{Price: price, Qty: qty}
		res.Upserted++
	}
	return res
}

// TopN returns up to n levels from the given side, bids ordered by
// descending price and asks by ascending price. Prices are unique keys, so
// no tie-break beyond price is needed.
func (b *Book) TopN(s Side, n int) []Level {
	levels := b.side(s)
	out := make([]Level, 0, len(levels))
	for _, lvl := range levels {
		out = append(out, lvl)
	}
	sortLevels(s, out)
	if len(out) > n {
		out = out[:n]
	}
	return out
}

func sortLevels(s Side, levels []Level) {
	slices.SortFunc(levels, func(a, b Level) int {
		if s == Bid {
			// best bid is highest price first (descending)
			return b.Price.Cmp(a.Price)
		}
		// best ask is lowest price first (ascending)
		return a.Price.Cmp(b.Price)
	})
}

// Depth reports the number of resting levels on one side.
func (b *Book) Depth(s Side) int {
	return len(b.side(s))
}

// Reset drops every level on both sides. Used at resync boundaries, when
// the book may have missed updates and must be rebuilt from a fresh
// snapshot before metrics are trusted again.
func (b *Book) Reset() {
	b.bids = make(map[string]Level)
	b.asks = make(map[string]Level)
}
