package models

import (
	"encoding/json"
	"time"
)

// Batch is an ordered, non-empty group of symbols fetched in one provider call.
type Batch []Symbol

// Strings renders the batch members, mainly for logs.
func (b Batch) Strings() []string {
	out := make([]string, len(b))
	for i, s := range b {
		out[i] = s.String()
	}
	return out
}

// FetchRequest asks the provider for one page of a category for a batch.
type FetchRequest struct {
	Category Category
	Batch    Batch
	Page     int
}

// RawRecord is a single item returned by a fetch, before timestamping.
type RawRecord struct {
	Symbol  Symbol
	Payload json.RawMessage
}

// Capture is one immutable, timestamped fetch result for a symbol.
type Capture struct {
	Category   Category        `json:"category"`
	Symbol     Symbol          `json:"symbol"`
	CapturedAt time.Time       `json:"captured_at"`
	Payload    json.RawMessage `json:"payload"`
}

// ArchiveEntry is a deduplicated observation keyed by ObservationKey.
type ArchiveEntry struct {
	Symbol         Symbol          `json:"symbol"`
	ObservationKey string          `json:"observation_key"`
	CapturedAt     time.Time       `json:"captured_at"`
	Payload        json.RawMessage `json:"payload"`
}

// MergeResult is the outcome of merging one symbol's captures.
type MergeResult struct {
	Category  Category
	Symbol    Symbol
	Entries   []ArchiveEntry
	Consumed  int
	Malformed int
}

// CycleReport summarizes one scheduler cycle of a category.
type CycleReport struct {
	CycleID       string        `json:"cycle_id"`
	Category      Category      `json:"category"`
	StartedAt     time.Time     `json:"started_at"`
	Duration      time.Duration `json:"duration"`
	Batches       int           `json:"batches"`
	FailedBatches int           `json:"failed_batches"`
	Records       int           `json:"records"`
	StoreFailures int           `json:"store_failures"`
	Wait          time.Duration `json:"wait"`
}
