package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"FinCapture/internal/domain/models"
	drepo "FinCapture/internal/domain/repository"
	"FinCapture/pkg/logger"
)

// LoopState is the position of a category loop in its cycle.
type LoopState string

const (
	StateIdle        LoopState = "idle"
	StatePlanning    LoopState = "planning"
	StateDispatching LoopState = "dispatching"
	StateWaiting     LoopState = "waiting"
	StateStopped     LoopState = "stopped"
)

// LoopOption configures a CategoryLoop.
type LoopOption func(*CategoryLoop)

// WithDispatchConcurrency bounds in-flight batches per cycle.
func WithDispatchConcurrency(n int) LoopOption {
	return func(l *CategoryLoop) {
		if n > 0 {
			l.concurrency = n
		}
	}
}

// WithFetchTimeout bounds a single fetch call.
func WithFetchTimeout(d time.Duration) LoopOption {
	return func(l *CategoryLoop) {
		if d > 0 {
			l.fetchTimeout = d
		}
	}
}

// WithClock replaces the wall clock and the sleep primitive.
func WithClock(now func() time.Time, after func(time.Duration) <-chan time.Time) LoopOption {
	return func(l *CategoryLoop) {
		if now != nil {
			l.now = now
		}
		if after != nil {
			l.after = after
		}
	}
}

// CategoryLoop drives the Idle, Planning, Dispatching, Waiting cycle of one
// category. Loops share nothing mutable with each other.
type CategoryLoop struct {
	spec     models.CategorySpec
	universe drepo.SymbolUniverse
	fetcher  drepo.Fetcher
	sink     drepo.CaptureSink
	metrics  drepo.Metrics
	log      *logger.Logger

	concurrency  int
	fetchTimeout time.Duration
	now          func() time.Time
	after        func(time.Duration) <-chan time.Time

	state atomic.Value
	last  atomic.Pointer[models.CycleReport]
}

// NewCategoryLoop creates a loop for spec.
func NewCategoryLoop(
	spec models.CategorySpec,
	universe drepo.SymbolUniverse,
	fetcher drepo.Fetcher,
	sink drepo.CaptureSink,
	metrics drepo.Metrics,
	log *logger.Logger,
	opts ...LoopOption,
) *CategoryLoop {
	l := &CategoryLoop{
		spec:         spec,
		universe:     universe,
		fetcher:      fetcher,
		sink:         sink,
		metrics:      metrics,
		log:          log.With(logger.String("category", spec.Category.String())),
		concurrency:  1,
		fetchTimeout: 30 * time.Second,
		now:          time.Now,
		after:        time.After,
	}
	for _, o := range opts {
		o(l)
	}
	l.setState(StateIdle)
	return l
}

// Category returns the category this loop serves.
func (l *CategoryLoop) Category() models.Category { return l.spec.Category }

// State returns the current state.
func (l *CategoryLoop) State() LoopState { return l.state.Load().(LoopState) }

// LastReport returns the most recent completed cycle, or nil.
func (l *CategoryLoop) LastReport() *models.CycleReport { return l.last.Load() }

func (l *CategoryLoop) setState(s LoopState) {
	l.state.Store(s)
	l.metrics.RecordSchedulerState(l.spec.Category.String(), string(s))
}

// Run cycles until ctx is cancelled. Cancellation is honoured at the top of
// Planning and during Waiting; an issued Dispatching phase always completes.
// Only a ConfigurationError ends the loop early.
func (l *CategoryLoop) Run(ctx context.Context) error {
	defer l.setState(StateStopped)

	if err := l.spec.Validate(); err != nil {
		l.log.Error("category disabled by configuration", logger.Error(err))
		return err
	}

	for {
		l.setState(StateIdle)
		if ctx.Err() != nil {
			return nil
		}

		start := l.now()
		report, err := l.RunCycle(ctx, start)
		if err != nil {
			var ce *models.ConfigurationError
			if errors.As(err, &ce) {
				l.log.Error("category disabled by configuration", logger.Error(err))
				return err
			}
			if ctx.Err() != nil {
				return nil
			}
		}

		wait := nextWait(start, l.now(), l.spec.PollInterval)
		report.Wait = wait
		l.last.Store(&report)

		if wait <= 0 {
			continue
		}
		l.setState(StateWaiting)
		select {
		case <-ctx.Done():
			return nil
		case <-l.after(wait):
		}
	}
}

// RunCycle performs one Planning and Dispatching pass that began at start.
func (l *CategoryLoop) RunCycle(ctx context.Context, start time.Time) (models.CycleReport, error) {
	report := models.CycleReport{
		CycleID:   uuid.NewString(),
		Category:  l.spec.Category,
		StartedAt: start,
	}

	l.setState(StatePlanning)
	if err := ctx.Err(); err != nil {
		return report, err
	}
	symbols, err := l.universe.ListSymbols(ctx)
	if err != nil {
		l.metrics.RecordError("universe")
		l.log.Warn("symbol universe unavailable, skipping cycle", logger.Error(err))
		report.Duration = l.now().Sub(start)
		return report, fmt.Errorf("list symbols: %w", err)
	}
	batches, err := Plan(symbols, l.spec)
	if err != nil {
		return report, err
	}
	report.Batches = len(batches)

	l.setState(StateDispatching)
	var records, failed, storeFailures atomic.Int64

	// Issued batches finish even if ctx is cancelled mid-phase.
	dctx := context.WithoutCancel(ctx)
	var g errgroup.Group
	g.SetLimit(l.concurrency)
	for _, b := range batches {
		g.Go(func() error {
			out := l.dispatch(dctx, b)
			records.Add(int64(out.records))
			if out.fetchErr != nil {
				failed.Add(1)
			}
			if out.storeErr != nil {
				storeFailures.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	report.Records = int(records.Load())
	report.FailedBatches = int(failed.Load())
	report.StoreFailures = int(storeFailures.Load())
	report.Duration = l.now().Sub(start)

	l.metrics.RecordCycle(l.spec.Category.String(), report.Duration.Seconds(), report.Batches, report.FailedBatches)
	l.log.Debug("cycle complete",
		logger.String("cycle_id", report.CycleID),
		logger.Int("batches", report.Batches),
		logger.Int("failed", report.FailedBatches),
		logger.Int("records", report.Records),
		logger.Duration("duration_ms", report.Duration),
	)
	return report, nil
}

type batchOutcome struct {
	records  int
	fetchErr error
	storeErr error
}

// dispatch fetches every page of one batch and forwards the results. A fetch
// failure skips the rest of the batch until the next cycle.
func (l *CategoryLoop) dispatch(ctx context.Context, batch models.Batch) batchOutcome {
	var out batchOutcome
	for page := 1; page <= l.spec.PagesPerSymbolPerCycle; page++ {
		req := models.FetchRequest{Category: l.spec.Category, Batch: batch, Page: page}

		fctx, cancel := context.WithTimeout(ctx, l.fetchTimeout)
		started := time.Now()
		recs, err := l.fetcher.Fetch(fctx, req)
		capturedAt := l.now()
		cancel()
		l.metrics.RecordLatency("fetch_"+l.spec.Category.String(), time.Since(started).Seconds())

		if err != nil {
			ferr := &models.FetchError{Category: l.spec.Category, Batch: batch, Page: page, Err: err}
			l.metrics.RecordFetchError(l.spec.Category.String())
			l.log.Warn("fetch failed, batch skipped this cycle", logger.Error(ferr))
			out.fetchErr = ferr
			return out
		}
		if len(recs) == 0 {
			break
		}

		captures := make([]models.Capture, 0, len(recs))
		for _, r := range recs {
			captures = append(captures, models.Capture{
				Category:   l.spec.Category,
				Symbol:     r.Symbol,
				CapturedAt: capturedAt,
				Payload:    r.Payload,
			})
		}
		if err := l.sink.Accept(ctx, captures); err != nil {
			out.storeErr = err
			l.metrics.RecordStoreError("append")
			l.log.Error("capture store rejected batch",
				logger.Strings("batch", batch.Strings()),
				logger.Int("page", page),
				logger.Error(err),
			)
			continue
		}
		out.records += len(captures)
		l.metrics.RecordCaptures(l.spec.Category.String(), len(captures))
	}
	return out
}

// nextWait is the sleep before the next cycle: the interval measured from
// cycle start, never negative.
func nextWait(start, now time.Time, interval time.Duration) time.Duration {
	wait := interval - now.Sub(start)
	if wait < 0 {
		return 0
	}
	return wait
}

// Scheduler runs one independent CategoryLoop per enabled category.
type Scheduler struct {
	loops []*CategoryLoop
	log   *logger.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	failure map[models.Category]error
}

// NewScheduler creates a scheduler over the given loops.
func NewScheduler(log *logger.Logger, loops ...*CategoryLoop) *Scheduler {
	return &Scheduler{loops: loops, log: log, failure: make(map[models.Category]error)}
}

// Loops returns the managed loops.
func (s *Scheduler) Loops() []*CategoryLoop { return s.loops }

// Start launches every loop in its own goroutine.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	var wg sync.WaitGroup
	for _, l := range s.loops {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.runIsolated(ctx, l)
			if err != nil {
				s.mu.Lock()
				s.failure[l.Category()] = err
				s.mu.Unlock()
			}
		}()
		s.log.Info("category loop started",
			logger.String("category", l.Category().String()),
			logger.Duration("interval_ms", l.spec.PollInterval),
			logger.Int("max_batch", l.spec.MaxSymbolsPerBatch),
		)
	}
	go func() {
		wg.Wait()
		close(s.done)
	}()
}

// runIsolated keeps a panic in one category from reaching the others.
func (s *Scheduler) runIsolated(ctx context.Context, l *CategoryLoop) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("category loop panic: %v", r)
			s.log.Error("category loop crashed", logger.String("category", l.Category().String()), logger.Error(err))
		}
	}()
	return l.Run(ctx)
}

// Stop cancels all loops and waits for in-flight dispatches to finish.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Failures returns loops that ended with an error.
func (s *Scheduler) Failures() map[models.Category]error {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[models.Category]error, len(s.failure))
	for k, v := range s.failure {
		out[k] = v
	}
	return out
}

// LoopStatus is the externally visible view of a loop.
type LoopStatus struct {
	Category   models.Category     `json:"category"`
	State      LoopState           `json:"state"`
	LastReport *models.CycleReport `json:"last_cycle,omitempty"`
	Error      string              `json:"error,omitempty"`
}

// Status snapshots every loop.
func (s *Scheduler) Status() []LoopStatus {
	failures := s.Failures()
	out := make([]LoopStatus, 0, len(s.loops))
	for _, l := range s.loops {
		st := LoopStatus{Category: l.Category(), State: l.State(), LastReport: l.LastReport()}
		if err := failures[l.Category()]; err != nil {
			st.Error = err.Error()
		}
		out = append(out, st)
	}
	return out
}
