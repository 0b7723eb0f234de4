package record

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/FoxiClaus/orderwall/internal/signal"
)

func order(price, qty string) signal.LargeOrder {
	p, _ := decimal.NewFromString(price)
	q, _ := decimal.NewFromString(qty)
	return signal.LargeOrder{Price: p, Qty: q}
}

func TestWriteThenAnalyze(t *testing.T) {
	dir := t.TempDir()
	st, err := NewStore(dir)
	if err != nil {
		t.Fatal(err)
	}

	now := time.Now()
	recent := Record{
		Timestamp: now.Add(-30 * time.Minute).Unix(),
		LargeBids: []signal.LargeOrder{order("100", "10"), order("99", "30")},
		LargeAsks: []signal.LargeOrder{order("101", "8")},
	}
	old := Record{
		Timestamp: now.Add(-50 * time.Hour).Unix(),
		LargeBids: []signal.LargeOrder{order("90", "999")},
	}
	if err := st.Write(recent); err != nil {
		t.Fatal(err)
	}
	if err := st.Write(old); err != nil {
		t.Fatal(err)
	}

	sum, err := Analyze(dir, 24, now)
	if err != nil {
		t.Fatal(err)
	}
	if sum.Entries != 1 {
		t.Fatalf("entries got %d want 1 (old record outside window)", sum.Entries)
	}
	if sum.LargeBids != 2 || sum.LargeAsks != 1 {
		t.Fatalf("large totals got %d/%d want 2/1", sum.LargeBids, sum.LargeAsks)
	}
	if sum.MeanBidQty != 20 {
		t.Fatalf("mean bid qty got %v want 20", sum.MeanBidQty)
	}
	if sum.MeanAskQty != 8 {
		t.Fatalf("mean ask qty got %v want 8", sum.MeanAskQty)
	}
}

func TestWriteEmptyRecordHasWellFormedFields(t *testing.T) {
	dir := t.TempDir()
	st, err := NewStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := st.Write(Record{Timestamp: time.Now().Unix()}); err != nil {
		t.Fatal(err)
	}

	files, err := os.ReadDir(dir)
	if err != nil || len(files) != 1 {
		t.Fatalf("want one record file, got %d (err %v)", len(files), err)
	}
	b, err := os.ReadFile(filepath.Join(dir, files[0].Name()))
	if err != nil {
		t.Fatal(err)
	}
	got := string(b)
	// The analyzer contract requires the list fields to always be present.
	for _, want := range []string{`"large_bids":[]`, `"large_asks":[]`, `"timestamp":`} {
		if !strings.Contains(got, want) {
			t.Fatalf("record %s missing %s", got, want)
		}
	}
}

func TestAnalyzeSkipsUnreadableFiles(t *testing.T) {
	dir := t.TempDir()
	st, err := NewStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	now := time.Now()
	if err := st.Write(Record{Timestamp: now.Unix(), LargeBids: []signal.LargeOrder{order("1", "1")}}); err != nil {
		t.Fatal(err)
	}
	// Corrupt file and a non-JSON file must both be skipped silently.
	if err := os.WriteFile(filepath.Join(dir, "broken.json"), []byte("{nope"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hi"), 0o644); err != nil {
		t.Fatal(err)
	}

	sum, err := Analyze(dir, 1, now)
	if err != nil {
		t.Fatal(err)
	}
	if sum.Entries != 1 || sum.LargeBids != 1 {
		t.Fatalf("summary got %+v want one valid record", sum)
	}
}
