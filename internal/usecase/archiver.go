package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"FinCapture/internal/domain/models"
	drepo "FinCapture/internal/domain/repository"
	"FinCapture/pkg/logger"
)

// ErrArchiveBusy is returned when another process holds the symbol's archive.
var ErrArchiveBusy = errors.New("archive merge already running for symbol")

// ArchiverOption configures an Archiver.
type ArchiverOption func(*Archiver)

// WithLocker adds a cross-process lock on top of the in-process one.
func WithLocker(l drepo.Locker, ttl time.Duration) ArchiverOption {
	return func(a *Archiver) {
		a.locker = l
		if ttl > 0 {
			a.lockTTL = ttl
		}
	}
}

// WithMergeWorkers bounds concurrent symbol merges in RunAll.
func WithMergeWorkers(n int) ArchiverOption {
	return func(a *Archiver) {
		if n > 0 {
			a.workers = n
		}
	}
}

// Archiver runs merges and publishes their archives, one writer per symbol.
type Archiver struct {
	captures drepo.CaptureStore
	archives drepo.ArchiveStore
	metrics  drepo.Metrics
	log      *logger.Logger

	locker  drepo.Locker
	lockTTL time.Duration
	workers int

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewArchiver(captures drepo.CaptureStore, archives drepo.ArchiveStore, metrics drepo.Metrics, log *logger.Logger, opts ...ArchiverOption) *Archiver {
	a := &Archiver{
		captures: captures,
		archives: archives,
		metrics:  metrics,
		log:      log,
		lockTTL:  10 * time.Minute,
		workers:  4,
		locks:    make(map[string]*sync.Mutex),
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

func (a *Archiver) symbolLock(key string) *sync.Mutex {
	a.mu.Lock()
	defer a.mu.Unlock()
	m, ok := a.locks[key]
	if !ok {
		m = &sync.Mutex{}
		a.locks[key] = m
	}
	return m
}

// Run merges every capture of (category, symbol) and replaces its archive.
func (a *Archiver) Run(ctx context.Context, category models.Category, symbol models.Symbol) (models.MergeResult, error) {
	key := fmt.Sprintf("merge:%s:%s", category, symbol.Key())
	m := a.symbolLock(key)
	m.Lock()
	defer m.Unlock()

	if a.locker != nil {
		ok, err := a.locker.TryLock(ctx, key, a.lockTTL)
		if err != nil {
			return models.MergeResult{}, fmt.Errorf("acquire merge lock: %w", err)
		}
		if !ok {
			return models.MergeResult{}, ErrArchiveBusy
		}
		defer func() {
			if err := a.locker.Unlock(context.WithoutCancel(ctx), key); err != nil {
				a.log.Warn("release merge lock", logger.String("key", key), logger.Error(err))
			}
		}()
	}

	start := time.Now()
	res, err := Merge(category, symbol, a.captures.Read(ctx, category, symbol),
		WithMalformedHook(func(e *models.MalformedCaptureError) {
			a.log.Debug("malformed capture skipped", logger.Error(e))
		}),
	)
	if err != nil {
		a.metrics.RecordStoreError("read")
		return res, err
	}

	if err := a.archives.WriteArchive(ctx, category, symbol, res.Entries); err != nil {
		a.metrics.RecordStoreError("write_archive")
		var se *models.StoreError
		if errors.As(err, &se) {
			return res, err
		}
		return res, &models.StoreError{Op: "write_archive", Category: category, Symbol: symbol, Err: err}
	}

	a.metrics.RecordMerge(category.String(), len(res.Entries), res.Malformed, time.Since(start).Seconds())
	if res.Malformed > 0 {
		a.log.Warn("merge skipped malformed captures",
			logger.String("category", category.String()),
			logger.String("symbol", symbol.String()),
			logger.Int("malformed", res.Malformed),
		)
	}
	return res, nil
}

// RunAll merges the given symbols concurrently; an empty list merges every
// symbol with captures in category. Per-symbol failures are reported, not
// returned.
func (a *Archiver) RunAll(ctx context.Context, category models.Category, symbols []models.Symbol) (models.MergeResponse, error) {
	runID := uuid.NewString()
	start := time.Now()
	resp := models.MergeResponse{RunID: runID, Category: category.String()}

	if len(symbols) == 0 {
		var err error
		symbols, err = a.captures.Symbols(ctx, category)
		if err != nil {
			return resp, &models.StoreError{Op: "symbols", Category: category, Err: err}
		}
	}

	stats := make([]models.MergeStats, len(symbols))
	var g errgroup.Group
	g.SetLimit(a.workers)
	for i, sym := range symbols {
		g.Go(func() error {
			st := models.MergeStats{Symbol: sym.String()}
			res, err := a.Run(ctx, category, sym)
			if err != nil {
				st.Error = err.Error()
			} else {
				st.Entries = len(res.Entries)
				st.Consumed = res.Consumed
				st.Malformed = res.Malformed
			}
			stats[i] = st
			return nil
		})
	}
	_ = g.Wait()

	for _, st := range stats {
		if st.Error != "" {
			resp.Failures++
		}
	}
	resp.Results = stats
	resp.ElapsedMs = time.Since(start).Milliseconds()

	a.log.Info("merge run complete",
		logger.String("run_id", runID),
		logger.String("category", category.String()),
		logger.Int("symbols", len(symbols)),
		logger.Int("failures", resp.Failures),
		logger.Int64("elapsed_ms", resp.ElapsedMs),
	)
	return resp, nil
}
