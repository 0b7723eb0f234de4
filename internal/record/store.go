// Package record persists periodic large-order snapshots as one JSON file
// per record and computes historical summaries over an elapsed-hours
// window. The on-disk schema is the contract with the offline analyzer
// (cmd/bookstat): a Unix timestamp plus well-formed (price, qty) pairs.
package record

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/FoxiClaus/orderwall/internal/signal"
)

// Record is one persisted observation.
type Record struct {
	Timestamp int64               `json:"timestamp"`
	LargeBids []signal.LargeOrder `json:"large_bids"`
	LargeAsks []signal.LargeOrder `json:"large_asks"`
}

// Store writes records into a flat directory, one file per record.
type Store struct {
	dir string
}

func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("record: create dir %s: %w", dir, err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) Dir() string { return s.dir }

// Write persists one record. File names carry the timestamp plus a short
// unique suffix so two records within the same second never collide.
func (s *Store) Write(rec Record) error {
	if rec.LargeBids == nil {
		rec.LargeBids = []signal.LargeOrder{}
	}
	if rec.LargeAsks == nil {
		rec.LargeAsks = []signal.LargeOrder{}
	}
	b, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("record: marshal: %w", err)
	}
	name := fmt.Sprintf("%d_%s.json", rec.Timestamp, uuid.NewString()[:8])
	path := filepath.Join(s.dir, name)
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("record: write %s: %w", path, err)
	}
	return nil
}
