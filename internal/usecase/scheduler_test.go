package usecase

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FinCapture/internal/domain/models"
	"FinCapture/pkg/logger"
	"FinCapture/pkg/metrics"
)

var (
	symA = models.MustParseSymbol("600000.SH")
	symB = models.MustParseSymbol("600036.SH")
	symC = models.MustParseSymbol("000001.SZ")
)

func histSpec() models.CategorySpec {
	return models.CategorySpec{
		Category:               models.CategoryHistoricalBar,
		Enabled:                true,
		PollInterval:           5 * time.Second,
		MaxSymbolsPerBatch:     1,
		PagesPerSymbolPerCycle: 1,
	}
}

func newLoop(spec models.CategorySpec, u universeFunc, f fetchFunc, sink *memSink, opts ...LoopOption) *CategoryLoop {
	return NewCategoryLoop(spec, u, f, sink, metrics.Noop{}, logger.NewNop(), opts...)
}

func TestNextWait(t *testing.T) {
	start := time.Date(2024, 1, 2, 9, 30, 0, 0, time.UTC)
	assert.Equal(t, 3*time.Second, nextWait(start, start.Add(2*time.Second), 5*time.Second))
	assert.Equal(t, time.Duration(0), nextWait(start, start.Add(5*time.Second), 5*time.Second))
	assert.Equal(t, time.Duration(0), nextWait(start, start.Add(7*time.Second), 5*time.Second))
}

func TestCategoryLoop_SlowDispatchStartsNextCycleImmediately(t *testing.T) {
	clock := newFakeClock()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	fetch := fetchFunc(func(_ context.Context, req models.FetchRequest) ([]models.RawRecord, error) {
		clock.Advance(7 * time.Second)
		if calls.Add(1) == 3 {
			cancel()
		}
		return echoRecords(req), nil
	})

	loop := newLoop(histSpec(), fixedUniverse(xyz), fetch, &memSink{}, WithClock(clock.Now, clock.After))
	require.NoError(t, loop.Run(ctx))

	assert.Equal(t, int32(3), calls.Load())
	assert.Empty(t, clock.Waits(), "no sleep between overrunning cycles")
	require.NotNil(t, loop.LastReport())
	assert.Zero(t, loop.LastReport().Wait)
	assert.Equal(t, StateStopped, loop.State())
}

func TestCategoryLoop_CadenceMeasuredFromCycleStart(t *testing.T) {
	clock := newFakeClock()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	fetch := fetchFunc(func(_ context.Context, req models.FetchRequest) ([]models.RawRecord, error) {
		clock.Advance(2 * time.Second)
		if calls.Add(1) == 2 {
			cancel()
		}
		return echoRecords(req), nil
	})

	loop := newLoop(histSpec(), fixedUniverse(xyz), fetch, &memSink{}, WithClock(clock.Now, clock.After))
	require.NoError(t, loop.Run(ctx))

	waits := clock.Waits()
	require.NotEmpty(t, waits)
	for _, w := range waits {
		assert.Equal(t, 3*time.Second, w)
	}
}

func TestCategoryLoop_CancelDuringWaiting(t *testing.T) {
	clock := newFakeClock()
	clock.block = true
	ctx, cancel := context.WithCancel(context.Background())

	fetch := fetchFunc(func(_ context.Context, req models.FetchRequest) ([]models.RawRecord, error) {
		return echoRecords(req), nil
	})
	loop := newLoop(histSpec(), fixedUniverse(xyz), fetch, &memSink{}, WithClock(clock.Now, clock.After))

	done := make(chan error, 1)
	go func() { done <- loop.Run(ctx) }()

	require.Eventually(t, func() bool { return loop.State() == StateWaiting }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("loop did not stop while waiting")
	}
}

func TestCategoryLoop_CaptureTimestampIsFetchReturn(t *testing.T) {
	clock := newFakeClock()
	start := clock.Now()
	sink := &memSink{}
	fetch := fetchFunc(func(_ context.Context, req models.FetchRequest) ([]models.RawRecord, error) {
		clock.Advance(1500 * time.Millisecond)
		return echoRecords(req), nil
	})

	loop := newLoop(histSpec(), fixedUniverse(xyz), fetch, sink, WithClock(clock.Now, clock.After))
	_, err := loop.RunCycle(context.Background(), start)
	require.NoError(t, err)

	got := sink.all()
	require.Len(t, got, 1)
	assert.Equal(t, start.Add(1500*time.Millisecond), got[0].CapturedAt)
	assert.Equal(t, models.CategoryHistoricalBar, got[0].Category)
	assert.True(t, got[0].Symbol.Equal(xyz))
}

func TestCategoryLoop_FailedBatchDoesNotBlockOthers(t *testing.T) {
	sink := &memSink{}
	fetch := fetchFunc(func(_ context.Context, req models.FetchRequest) ([]models.RawRecord, error) {
		if req.Batch[0].Equal(symB) {
			return nil, errors.New("provider 502")
		}
		return echoRecords(req), nil
	})

	loop := newLoop(histSpec(), fixedUniverse(symA, symB, symC), fetch, sink)
	report, err := loop.RunCycle(context.Background(), time.Now())
	require.NoError(t, err)

	assert.Equal(t, 3, report.Batches)
	assert.Equal(t, 1, report.FailedBatches)
	assert.Equal(t, 2, report.Records)
	assert.Len(t, sink.all(), 2)
}

func TestCategoryLoop_StoreFailureIsolatedPerBatch(t *testing.T) {
	sink := &memSink{failFor: map[string]bool{symA.Key(): true}}
	fetch := fetchFunc(func(_ context.Context, req models.FetchRequest) ([]models.RawRecord, error) {
		return echoRecords(req), nil
	})

	loop := newLoop(histSpec(), fixedUniverse(symA, symB, symC), fetch, sink)
	report, err := loop.RunCycle(context.Background(), time.Now())
	require.NoError(t, err)

	assert.Equal(t, 1, report.StoreFailures)
	assert.Zero(t, report.FailedBatches)
	assert.Equal(t, 2, report.Records)
}

func TestCategoryLoop_PagesPerCycle(t *testing.T) {
	spec := histSpec()
	spec.PagesPerSymbolPerCycle = 3
	var pages []int
	fetch := fetchFunc(func(_ context.Context, req models.FetchRequest) ([]models.RawRecord, error) {
		pages = append(pages, req.Page)
		if req.Page == 3 {
			return nil, nil
		}
		return echoRecords(req), nil
	})

	loop := newLoop(spec, fixedUniverse(xyz), fetch, &memSink{})
	report, err := loop.RunCycle(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, pages)
	assert.Equal(t, 2, report.Records)
}

func TestCategoryLoop_DispatchSurvivesCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	var cancelledSeen atomic.Bool
	fetch := fetchFunc(func(fctx context.Context, req models.FetchRequest) ([]models.RawRecord, error) {
		calls.Add(1)
		if fctx.Err() != nil {
			cancelledSeen.Store(true)
		}
		cancel()
		return echoRecords(req), nil
	})

	loop := newLoop(histSpec(), fixedUniverse(symA, symB, symC), fetch, &memSink{})
	report, err := loop.RunCycle(ctx, time.Now())
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
	assert.False(t, cancelledSeen.Load())
	assert.Equal(t, 3, report.Records)
}

func TestCategoryLoop_CancelledBeforePlanning(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls atomic.Int32
	fetch := fetchFunc(func(_ context.Context, req models.FetchRequest) ([]models.RawRecord, error) {
		calls.Add(1)
		return nil, nil
	})
	loop := newLoop(histSpec(), fixedUniverse(xyz), fetch, &memSink{})
	_, err := loop.RunCycle(ctx, time.Now())
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, calls.Load())
}

func TestCategoryLoop_UniverseFailureSkipsCycle(t *testing.T) {
	u := universeFunc(func(context.Context) ([]models.Symbol, error) { return nil, errors.New("list down") })
	var calls atomic.Int32
	fetch := fetchFunc(func(_ context.Context, req models.FetchRequest) ([]models.RawRecord, error) {
		calls.Add(1)
		return nil, nil
	})
	loop := newLoop(histSpec(), u, fetch, &memSink{})
	_, err := loop.RunCycle(context.Background(), time.Now())
	require.Error(t, err)
	assert.Zero(t, calls.Load())
}

func TestCategoryLoop_RespectsDispatchConcurrency(t *testing.T) {
	var inflight, peak atomic.Int32
	fetch := fetchFunc(func(_ context.Context, req models.FetchRequest) ([]models.RawRecord, error) {
		n := inflight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		inflight.Add(-1)
		return echoRecords(req), nil
	})

	loop := newLoop(histSpec(), fixedUniverse(universe(12)...), fetch, &memSink{}, WithDispatchConcurrency(3))
	report, err := loop.RunCycle(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, 12, report.Records)
	assert.LessOrEqual(t, peak.Load(), int32(3))
}

func TestCategoryLoop_ConfigurationErrorStopsOnlyThatLoop(t *testing.T) {
	bad := histSpec()
	bad.MaxSymbolsPerBatch = 0
	good := histSpec()
	good.Category = models.CategoryDividendEvent
	good.PollInterval = time.Hour

	fetch := fetchFunc(func(_ context.Context, req models.FetchRequest) ([]models.RawRecord, error) {
		return echoRecords(req), nil
	})
	badLoop := newLoop(bad, fixedUniverse(xyz), fetch, &memSink{})
	goodLoop := newLoop(good, fixedUniverse(xyz), fetch, &memSink{})

	s := NewScheduler(logger.NewNop(), badLoop, goodLoop)
	s.Start(context.Background())

	require.Eventually(t, func() bool { return len(s.Failures()) == 1 }, time.Second, 5*time.Millisecond)
	var ce *models.ConfigurationError
	require.ErrorAs(t, s.Failures()[models.CategoryHistoricalBar], &ce)

	require.Eventually(t, func() bool { return goodLoop.State() == StateWaiting }, time.Second, 5*time.Millisecond)
	assert.Equal(t, StateStopped, badLoop.State())

	stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Stop(stopCtx))
	assert.Equal(t, StateStopped, goodLoop.State())

	status := s.Status()
	require.Len(t, status, 2)
	assert.NotEmpty(t, status[0].Error)
	assert.Empty(t, status[1].Error)
}
