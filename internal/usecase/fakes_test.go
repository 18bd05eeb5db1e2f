package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"iter"
	"sync"
	"sync/atomic"
	"time"

	"FinCapture/internal/domain/models"
)

type universeFunc func(ctx context.Context) ([]models.Symbol, error)

func (f universeFunc) ListSymbols(ctx context.Context) ([]models.Symbol, error) { return f(ctx) }

func fixedUniverse(symbols ...models.Symbol) universeFunc {
	return func(context.Context) ([]models.Symbol, error) { return symbols, nil }
}

type fetchFunc func(ctx context.Context, req models.FetchRequest) ([]models.RawRecord, error)

func (f fetchFunc) Fetch(ctx context.Context, req models.FetchRequest) ([]models.RawRecord, error) {
	return f(ctx, req)
}

func echoRecords(req models.FetchRequest) []models.RawRecord {
	out := make([]models.RawRecord, 0, len(req.Batch))
	for _, s := range req.Batch {
		payload, _ := json.Marshal(map[string]any{"symbol": s.String(), "page": req.Page})
		out = append(out, models.RawRecord{Symbol: s, Payload: payload})
	}
	return out
}

type memSink struct {
	mu       sync.Mutex
	captures []models.Capture
	failFor  map[string]bool
}

func (s *memSink) Accept(_ context.Context, captures []models.Capture) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range captures {
		if s.failFor[c.Symbol.Key()] {
			return &models.StoreError{Op: "append", Category: c.Category, Symbol: c.Symbol, Err: errors.New("disk full")}
		}
	}
	s.captures = append(s.captures, captures...)
	return nil
}

func (s *memSink) all() []models.Capture {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Capture(nil), s.captures...)
}

// memStore is an in-memory CaptureStore and ArchiveStore.
type memStore struct {
	mu       sync.Mutex
	captures []models.Capture
	archives map[string][]models.ArchiveEntry
	writes   int
	readErr  error
	scanned  atomic.Int64
}

func newMemStore() *memStore { return &memStore{archives: map[string][]models.ArchiveEntry{}} }

func (m *memStore) Append(_ context.Context, c models.Capture) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.captures = append(m.captures, c)
	return nil
}

func (m *memStore) AppendBatch(ctx context.Context, cs []models.Capture) error {
	for _, c := range cs {
		_ = m.Append(ctx, c)
	}
	return nil
}

func (m *memStore) Read(ctx context.Context, category models.Category, symbol models.Symbol) iter.Seq2[models.Capture, error] {
	return m.ReadSince(ctx, category, symbol, time.Time{})
}

func (m *memStore) ReadSince(_ context.Context, category models.Category, symbol models.Symbol, since time.Time) iter.Seq2[models.Capture, error] {
	return func(yield func(models.Capture, error) bool) {
		m.mu.Lock()
		snapshot := append([]models.Capture(nil), m.captures...)
		readErr := m.readErr
		m.mu.Unlock()
		if readErr != nil {
			yield(models.Capture{}, readErr)
			return
		}
		for _, c := range snapshot {
			if c.Category == category && c.Symbol.Equal(symbol) && !c.CapturedAt.Before(since) {
				m.scanned.Add(1)
				if !yield(c, nil) {
					return
				}
			}
		}
	}
}

func (m *memStore) LastCapturedAt(_ context.Context, category models.Category, symbol models.Symbol) (time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.readErr != nil {
		return time.Time{}, m.readErr
	}
	var last time.Time
	for _, c := range m.captures {
		if c.Category == category && c.Symbol.Equal(symbol) && c.CapturedAt.After(last) {
			last = c.CapturedAt
		}
	}
	return last, nil
}

func (m *memStore) Symbols(_ context.Context, category models.Category) ([]models.Symbol, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := map[string]bool{}
	var out []models.Symbol
	for _, c := range m.captures {
		if c.Category == category && !seen[c.Symbol.Key()] {
			seen[c.Symbol.Key()] = true
			out = append(out, c.Symbol)
		}
	}
	return out, nil
}

func (m *memStore) Health(context.Context) error { return nil }
func (m *memStore) Close() error                 { return nil }

func (m *memStore) WriteArchive(_ context.Context, category models.Category, symbol models.Symbol, entries []models.ArchiveEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.archives[string(category)+"/"+symbol.Key()] = append([]models.ArchiveEntry(nil), entries...)
	m.writes++
	return nil
}

func (m *memStore) ReadArchive(_ context.Context, category models.Category, symbol models.Symbol) ([]models.ArchiveEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.archives[string(category)+"/"+symbol.Key()], nil
}

func (m *memStore) ListArchived(context.Context, models.Category) ([]models.Symbol, error) {
	return nil, nil
}

// fakeClock advances only when told to.
type fakeClock struct {
	mu    sync.Mutex
	now   time.Time
	waits []time.Duration
	block bool
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 2, 9, 30, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// After records the wait and fires immediately unless block is set.
func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.waits = append(c.waits, d)
	ch := make(chan time.Time, 1)
	if !c.block {
		c.now = c.now.Add(d)
		ch <- c.now
	}
	return ch
}

func (c *fakeClock) Waits() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.waits...)
}
