package timeframe

import "time"

// Timeframe identifies one of the three fixed aggregation windows.
type Timeframe int

const (
	Minute Timeframe = iota
	FiveMinute
	FifteenMinute

	numTimeframes
)

func (tf Timeframe) String() string {
	switch tf {
	case Minute:
		return "1m"
	case FiveMinute:
		return "5m"
	case FifteenMinute:
		return "15m"
	}
	return "unknown"
}

// Entry is one aggregated observation. Entries are created only at
// timeframe boundaries and never mutated afterwards, only evicted.
type Entry struct {
	Time         time.Time
	ImbalancePct float64
	BidVolume    float64
	AskVolume    float64
}

// History is a fixed-capacity ring buffer of entries. Push appends and
// evicts the oldest entry once the cap is reached; the backing array is
// allocated once and never grows.
type History struct {
	buf  []Entry
	head int // index of the oldest entry
	n    int
}

func NewHistory(capacity int) *History {
	if capacity < 1 {
		capacity = 1
	}
	return &History{buf: make([]Entry, capacity)}
}

func (h *History) Len() int { return h.n }

func (h *History) Cap() int { return len(h.buf) }

// Push appends an entry, evicting the oldest one when full.
func (h *History) Push(e Entry) {
	if h.n < len(h.buf) {
		h.buf[(h.head+h.n)%len(h.buf)] = e
		h.n++
		return
	}
	h.buf[h.head] = e
	h.head = (h.head + 1) % len(h.buf)
}

// At returns the entry at index i, 0 being the oldest retained entry.
func (h *History) At(i int) Entry {
	return h.buf[(h.head+i)%len(h.buf)]
}

// Last returns up to n newest entries in chronological order
// (oldest of the window first).
func (h *History) Last(n int) []Entry {
	if n > h.n {
		n = h.n
	}
	out := make([]Entry, 0, n)
	for i := h.n - n; i < h.n; i++ {
		out = append(out, h.At(i))
	}
	return out
}

// Newest returns the most recent entry, if any.
func (h *History) Newest() (Entry, bool) {
	if h.n == 0 {
		return Entry{}, false
	}
	return h.At(h.n - 1), true
}
