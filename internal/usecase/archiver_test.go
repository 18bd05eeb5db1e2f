package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FinCapture/internal/domain/models"
	"FinCapture/pkg/cache"
	"FinCapture/pkg/logger"
	"FinCapture/pkg/metrics"
)

func newArchiver(store *memStore, opts ...ArchiverOption) *Archiver {
	return NewArchiver(store, store, metrics.Noop{}, logger.NewNop(), opts...)
}

func seedBars(t *testing.T, store *memStore) {
	t.Helper()
	t1 := time.Date(2024, 1, 3, 1, 0, 0, 0, time.UTC)
	require.NoError(t, store.AppendBatch(context.Background(), []models.Capture{
		bar("2024-01-02", 10, t1),
		bar("2024-01-02", 11, t1.Add(time.Hour)),
		bar("2024-01-03", 12, t1.Add(2*time.Hour)),
		{Category: models.CategoryHistoricalBar, Symbol: xyz, CapturedAt: t1, Payload: []byte(`{"close":1}`)},
	}))
}

func TestArchiver_RunWritesMergedArchive(t *testing.T) {
	store := newMemStore()
	seedBars(t, store)

	res, err := newArchiver(store).Run(context.Background(), models.CategoryHistoricalBar, xyz)
	require.NoError(t, err)
	assert.Equal(t, 4, res.Consumed)
	assert.Equal(t, 1, res.Malformed)

	archived, err := store.ReadArchive(context.Background(), models.CategoryHistoricalBar, xyz)
	require.NoError(t, err)
	require.Len(t, archived, 2)
	assert.Equal(t, 11.0, closeOf(t, archived[0]))
}

func TestArchiver_RerunIsIdempotent(t *testing.T) {
	store := newMemStore()
	seedBars(t, store)
	a := newArchiver(store)
	ctx := context.Background()

	_, err := a.Run(ctx, models.CategoryHistoricalBar, xyz)
	require.NoError(t, err)
	first, _ := store.ReadArchive(ctx, models.CategoryHistoricalBar, xyz)

	_, err = a.Run(ctx, models.CategoryHistoricalBar, xyz)
	require.NoError(t, err)
	second, _ := store.ReadArchive(ctx, models.CategoryHistoricalBar, xyz)

	assert.Equal(t, first, second)
	assert.Equal(t, 2, store.writes)
}

func TestArchiver_ReadFailureLeavesArchiveUntouched(t *testing.T) {
	store := newMemStore()
	store.readErr = errors.New("io error")

	_, err := newArchiver(store).Run(context.Background(), models.CategoryHistoricalBar, xyz)
	var se *models.StoreError
	require.ErrorAs(t, err, &se)
	assert.Zero(t, store.writes)
}

func TestArchiver_BusyWhenLockHeldElsewhere(t *testing.T) {
	store := newMemStore()
	seedBars(t, store)
	locks := cache.NewMemoryCache()
	defer locks.Close()

	ctx := context.Background()
	key := "merge:" + models.CategoryHistoricalBar.String() + ":" + xyz.Key()
	ok, err := locks.TryLock(ctx, key, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = newArchiver(store, WithLocker(locks, time.Minute)).Run(ctx, models.CategoryHistoricalBar, xyz)
	require.ErrorIs(t, err, ErrArchiveBusy)
	assert.Zero(t, store.writes)

	require.NoError(t, locks.Unlock(ctx, key))
	_, err = newArchiver(store, WithLocker(locks, time.Minute)).Run(ctx, models.CategoryHistoricalBar, xyz)
	require.NoError(t, err)
}

func TestArchiver_ConcurrentRunsSerialisePerSymbol(t *testing.T) {
	store := newMemStore()
	seedBars(t, store)
	a := newArchiver(store)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := a.Run(context.Background(), models.CategoryHistoricalBar, xyz)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, 8, store.writes)
}

func TestArchiver_RunAllDiscoversSymbols(t *testing.T) {
	store := newMemStore()
	seedBars(t, store)
	other := bar("2024-01-02", 5, time.Now())
	other.Symbol = symA
	require.NoError(t, store.Append(context.Background(), other))

	resp, err := newArchiver(store, WithMergeWorkers(2)).RunAll(context.Background(), models.CategoryHistoricalBar, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, resp.RunID)
	assert.Len(t, resp.Results, 2)
	assert.Zero(t, resp.Failures)
}

func TestArchiver_RunAllReportsFailures(t *testing.T) {
	store := newMemStore()
	store.readErr = errors.New("broken")

	resp, err := newArchiver(store).RunAll(context.Background(), models.CategoryHistoricalBar, []models.Symbol{symA, symB})
	require.NoError(t, err)
	assert.Equal(t, 2, resp.Failures)
	for _, r := range resp.Results {
		assert.NotEmpty(t, r.Error)
	}
}

func TestMergeJob_HandlesQueuedRequest(t *testing.T) {
	store := newMemStore()
	seedBars(t, store)
	job := NewMergeJob(newArchiver(store), logger.NewNop())

	assert.Equal(t, MergeJobType, job.Type())
	err := job.Handle(context.Background(), []byte(`{"category":"historical_bar","symbols":["600519.SH"]}`))
	require.NoError(t, err)
	assert.Equal(t, 1, store.writes)

	assert.Error(t, job.Handle(context.Background(), []byte(`{"category":"nope"}`)))
	assert.Error(t, job.Handle(context.Background(), []byte(`{"category":"historical_bar","symbols":["??"]}`)))
}
