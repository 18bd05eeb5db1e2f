package repository

import (
	"context"
	"iter"
	"time"

	"FinCapture/internal/domain/models"
)

// SymbolUniverse supplies the current set of tradable symbols.
// Implementations must be safe to call repeatedly.
type SymbolUniverse interface {
	ListSymbols(ctx context.Context) ([]models.Symbol, error)
}

// Fetcher is the provider capability: one page of one category for a batch.
type Fetcher interface {
	Fetch(ctx context.Context, req models.FetchRequest) ([]models.RawRecord, error)
}

// CaptureSink accepts freshly timestamped captures from the scheduler.
type CaptureSink interface {
	Accept(ctx context.Context, captures []models.Capture) error
}

// CaptureStore is append-only persistence for raw captures, safe for
// concurrent writers.
type CaptureStore interface {
	Append(ctx context.Context, c models.Capture) error
	AppendBatch(ctx context.Context, captures []models.Capture) error
	// Read yields captures lazily; order is unspecified. Each call restarts
	// the sequence from the beginning.
	Read(ctx context.Context, category models.Category, symbol models.Symbol) iter.Seq2[models.Capture, error]
	// ReadSince is Read limited to captures taken at or after since.
	ReadSince(ctx context.Context, category models.Category, symbol models.Symbol, since time.Time) iter.Seq2[models.Capture, error]
	// LastCapturedAt returns the newest capture time, zero when there is none.
	LastCapturedAt(ctx context.Context, category models.Category, symbol models.Symbol) (time.Time, error)
	Symbols(ctx context.Context, category models.Category) ([]models.Symbol, error)
	Health(ctx context.Context) error
	Close() error
}

// Publisher ships captures to a message bus.
type Publisher interface {
	PublishCaptures(ctx context.Context, captures []models.Capture) error
	Close() error
}

// Locker grants exclusive per-key ownership across processes.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, key string) error
}

type Metrics interface {
	RecordCaptures(category string, n int)
	RecordFetchError(category string)
	RecordStoreError(op string)
	RecordCycle(category string, seconds float64, batches, failed int)
	RecordSchedulerState(category, state string)
	RecordMerge(category string, entries, malformed int, seconds float64)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
}
