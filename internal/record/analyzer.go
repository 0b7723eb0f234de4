package record

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Summary aggregates the records that fall inside the analysis window.
type Summary struct {
	Hours      int
	Entries    int
	LargeBids  int
	LargeAsks  int
	MeanBidQty float64 // mean quantity per large bid order
	MeanAskQty float64
}

// Analyze reads every .json record in dir, keeps those with a timestamp at
// or after now minus the hours window, and summarizes them. Files that
// cannot be read or parsed are skipped per file; the analyzer performs no
// validation beyond that, so the writer must guarantee well-formed records.
func Analyze(dir string, hours int, now time.Time) (Summary, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return Summary{}, fmt.Errorf("record: read dir %s: %w", dir, err)
	}
	cutoff := now.Unix() - int64(hours)*3600

	sum := Summary{Hours: hours}
	var bidQty, askQty float64
	for _, de := range entries {
		if de.IsDir() || !strings.HasSuffix(de.Name(), ".json") {
			continue
		}
		b, err := os.ReadFile(filepath.Join(dir, de.Name()))
		if err != nil {
			continue
		}
		var rec Record
		if err := json.Unmarshal(b, &rec); err != nil {
			continue
		}
		if rec.Timestamp < cutoff {
			continue
		}
		sum.Entries++
		sum.LargeBids += len(rec.LargeBids)
		sum.LargeAsks += len(rec.LargeAsks)
		for _, o := range rec.LargeBids {
			q, _ := o.Qty.Float64()
			bidQty += q
		}
		for _, o := range rec.LargeAsks {
			q, _ := o.Qty.Float64()
			askQty += q
		}
	}

	if sum.LargeBids > 0 {
		sum.MeanBidQty = bidQty / float64(sum.LargeBids)
	}
	if sum.LargeAsks > 0 {
		sum.MeanAskQty = askQty / float64(sum.LargeAsks)
	}
	return sum, nil
}
