// Package binance streams incremental depth updates for one instrument
// from the USDⓈ-M futures endpoints. Every connect cycle starts with a
// resync boundary: a Reset event, then a full REST snapshot, then diff
// deltas — so the consumer never computes metrics on a book that may have
// missed updates while the transport was down.
package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/FoxiClaus/orderwall/internal/book"
)

// EventType distinguishes what the consumer must do with an event.
type EventType int

const (
	// Reset marks the book stale; deltas before the next Snapshot must be
	// discarded.
	Reset EventType = iota
	// Snapshot carries a full book to rebuild from.
	Snapshot
	// Delta carries an incremental diff of changed price levels.
	Delta
)

func (t EventType) String() string {
	switch t {
	case Reset:
		return "reset"
	case Snapshot:
		return "snapshot"
	case Delta:
		return "delta"
	}
	return "unknown"
}

// Event is one inbound transport message in wire form; levels stay as raw
// strings so the book can apply its per-entry malformed policy.
type Event struct {
	Type EventType
	Bids []book.RawLevel
	Asks []book.RawLevel
	Time time.Time
}

// DepthFeed is the transport boundary the monitor consumes.
type DepthFeed interface {
	Run(ctx context.Context, onStatus func(connected bool))
	Events() <-chan Event
	Errors() <-chan error
	Close()
}

const (
	readLimit   = 1 << 20
	readTimeout = 5 * time.Minute // server pings well inside this
)

// Feed implements DepthFeed against the diff-depth stream, reconnecting
// with a fixed backoff on any transport error.
type Feed struct {
	log           *slog.Logger
	symbol        string
	wsURL         string
	restURL       string
	snapshotDepth int
	backoff       time.Duration

	httpc  *http.Client
	wsConn *websocket.Conn
	evCh   chan Event
	errCh  chan error

	ctx    context.Context
	cancel context.CancelFunc
}

func NewFeed(symbol, wsURL, restURL string, snapshotDepth int, backoff time.Duration, logger *slog.Logger) *Feed {
	return &Feed{
		log:           logger,
		symbol:        canonSymbol(symbol),
		wsURL:         strings.TrimRight(wsURL, "/"),
		restURL:       strings.TrimRight(restURL, "/"),
		snapshotDepth: snapshotDepth,
		backoff:       backoff,
		httpc:         &http.Client{Timeout: 15 * time.Second},
		evCh:          make(chan Event, 1024),
		errCh:         make(chan error, 16),
	}
}

// canonSymbol maps config forms like "strk/usdt" to the exchange form
// "STRKUSDT".
func canonSymbol(symbol string) string {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	return strings.ReplaceAll(s, "/", "")
}

func (f *Feed) Events() <-chan Event { return f.evCh }
func (f *Feed) Errors() <-chan error { return f.errCh }

func (f *Feed) Close() {
	if f.cancel != nil {
		f.cancel()
	}
	close(f.errCh)
	close(f.evCh)
}

// Run drives connect cycles until ctx is cancelled. Each cycle: Reset
// event, websocket dial, REST snapshot, Snapshot event, then the diff read
// pump. Any failure tears the cycle down, waits the fixed backoff, and
// starts over.
func (f *Feed) Run(ctx context.Context, onStatus func(connected bool)) {
	if f.cancel != nil {
		return
	}
	f.ctx, f.cancel = context.WithCancel(ctx)

	for {
		select {
		case <-f.ctx.Done():
			return
		default:
		}

		f.emit(Event{Type: Reset, Time: time.Now()})

		ws, err := f.openWS()
		if err != nil {
			onStatus(false)
			f.emitErr(fmt.Errorf("ws open: %w", err))
			f.sleep()
			continue
		}
		f.wsConn = ws

		snap, err := f.fetchSnapshot(f.ctx)
		if err != nil {
			_ = ws.Close()
			onStatus(false)
			f.emitErr(fmt.Errorf("depth snapshot: %w", err))
			f.sleep()
			continue
		}
		f.emit(snap)
		onStatus(true)
		f.log.Info("depth stream connected",
			slog.String("symbol", f.symbol),
			slog.Int("snapshot_bids", len(snap.Bids)),
			slog.Int("snapshot_asks", len(snap.Asks)),
		)

		if err := f.readLoop(); err != nil {
			onStatus(false)
			f.emitErr(err)
		}
		select {
		case <-f.ctx.Done():
			return
		default:
		}
		f.sleep()
	}
}

func (f *Feed) streamURL() string {
	return fmt.Sprintf("%s/%s@depth@100ms", f.wsURL, strings.ToLower(f.symbol))
}

func (f *Feed) openWS() (*websocket.Conn, error) {
	ws, _, err := websocket.DefaultDialer.DialContext(f.ctx, f.streamURL(), nil)
	if err != nil {
		return nil, err
	}
	return ws, nil
}

type restDepth struct {
	Bids [][]string `json:"bids"`
	Asks [][]string `json:"asks"`
}

func (f *Feed) fetchSnapshot(ctx context.Context) (Event, error) {
	q := url.Values{}
	q.Set("symbol", f.symbol)
	q.Set("limit", fmt.Sprint(f.snapshotDepth))
	u := fmt.Sprintf("%s/fapi/v1/depth?%s", f.restURL, q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return Event{}, err
	}
	resp, err := f.httpc.Do(req)
	if err != nil {
		return Event{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return Event{}, fmt.Errorf("status %d: %s", resp.StatusCode, body)
	}
	var d restDepth
	if err := json.NewDecoder(resp.Body).Decode(&d); err != nil {
		return Event{}, fmt.Errorf("decode: %w", err)
	}
	return Event{
		Type: Snapshot,
		Bids: rawLevels(d.Bids),
		Asks: rawLevels(d.Asks),
		Time: time.Now(),
	}, nil
}

func (f *Feed) readLoop() error {
	defer func() {
		if f.wsConn != nil {
			_ = f.wsConn.Close()
		}
	}()

	f.wsConn.SetReadLimit(readLimit)
	_ = f.wsConn.SetReadDeadline(time.Now().Add(readTimeout))
	f.wsConn.SetPingHandler(func(data string) error {
		_ = f.wsConn.SetReadDeadline(time.Now().Add(readTimeout))
		return f.wsConn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(5*time.Second))
	})

	for {
		select {
		case <-f.ctx.Done():
			return nil
		default:
		}

		_, data, err := f.wsConn.ReadMessage()
		if err != nil {
			return fmt.Errorf("ws read: %w", err)
		}
		_ = f.wsConn.SetReadDeadline(time.Now().Add(readTimeout))

		ev, ok := parseDepthMessage(data)
		if !ok {
			continue
		}
		f.emit(ev)
	}
}

type depthMsg struct {
	EventType string     `json:"e"`
	EventTime int64      `json:"E"`
	Bids      [][]string `json:"b"`
	Asks      [][]string `json:"a"`
}

// parseDepthMessage decodes one stream frame. Frames that are not
// depthUpdate events (acks, heartbeats) are skipped.
func parseDepthMessage(data []byte) (Event, bool) {
	var m depthMsg
	if err := json.Unmarshal(data, &m); err != nil || m.EventType != "depthUpdate" {
		return Event{}, false
	}
	ts := time.Now()
	if m.EventTime > 0 {
		ts = time.UnixMilli(m.EventTime)
	}
	return Event{
		Type: Delta,
		Bids: rawLevels(m.Bids),
		Asks: rawLevels(m.Asks),
		Time: ts,
	}, true
}

// rawLevels keeps rows in wire form. Rows with missing fields flow through
// as empty strings and are skipped individually by the book's malformed
// entry policy.
func rawLevels(rows [][]string) []book.RawLevel {
	out := make([]book.RawLevel, 0, len(rows))
	for _, r := range rows {
		var lvl book.RawLevel
		if len(r) > 0 {
			lvl.Price = r[0]
		}
		if len(r) > 1 {
			lvl.Qty = r[1]
		}
		out = append(out, lvl)
	}
	return out
}

func (f *Feed) emit(ev Event) {
	select {
	case f.evCh <- ev:
	case <-f.ctx.Done():
	}
}

func (f *Feed) emitErr(err error) {
	select {
	case f.errCh <- err:
	default:
		// drop if buffer full
	}
}

func (f *Feed) sleep() {
	t := time.NewTimer(f.backoff)
	defer t.Stop()
	select {
	case <-t.C:
	case <-f.ctx.Done():
	}
}
