// Package metrics derives point-in-time liquidity metrics from the book.
// A snapshot is recomputed fresh on every delta; nothing here carries state
// between calls.
package metrics

import (
	"github.com/FoxiClaus/orderwall/internal/book"
)

// Snapshot captures the book's liquidity at one instant, computed over the
// top-N levels of each side. Volumes are notional (quantity × mid price),
// not raw quantity. ImbalancePct is in [-100, 100] whenever the considered
// volume is non-zero, and exactly 0 otherwise.
type Snapshot struct {
	Price        float64
	BidVolume    float64
	AskVolume    float64
	ImbalancePct float64
}

// Compute builds a snapshot from the top `depth` levels of each side.
//
// If either side is empty the whole snapshot degrades to zero rather than
// carrying the last known values forward; a half-empty book gives no
// meaningful mid price, and a zeroed snapshot is easy to recognize
// downstream.
func Compute(b *book.Book, depth int) Snapshot {
	bids := b.TopN(book.Bid, depth)
	asks := b.TopN(book.Ask, depth)
	if len(bids) == 0 || len(asks) == 0 {
		return Snapshot{}
	}

	bestBid, _ := bids[0].Price.Float64()
	bestAsk, _ := asks[0].Price.Float64()
	mid := (bestBid + bestAsk) / 2

	var bidVol, askVol float64
	for _, lvl := range bids {
		q, _ := lvl.Qty.Float64()
		bidVol += q * mid
	}
	for _, lvl := range asks {
		q, _ := lvl.Qty.Float64()
		askVol += q * mid
	}

	var imbalance float64
	if total := bidVol + askVol; total > 0 {
		imbalance = (bidVol - askVol) / total * 100
	}

	return Snapshot{
		Price:        mid,
		BidVolume:    bidVol,
		AskVolume:    askVol,
		ImbalancePct: imbalance,
	}
}
