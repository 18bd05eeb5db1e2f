package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FinCapture/internal/domain/models"
	"FinCapture/pkg/cache"
	"FinCapture/pkg/logger"
)

func listing(t *testing.T, board models.Board, symbol string, at time.Time) models.Capture {
	t.Helper()
	payload, err := json.Marshal(models.StockInfo{Symbol: symbol, Board: board})
	require.NoError(t, err)
	return models.Capture{
		Category:   models.CategorySymbolList,
		Symbol:     board.BoardSymbol(),
		CapturedAt: at,
		Payload:    payload,
	}
}

func TestStaticUniverse(t *testing.T) {
	u, err := NewStaticUniverse([]string{"600000.SH", "000001"})
	require.NoError(t, err)
	syms, err := u.ListSymbols(context.Background())
	require.NoError(t, err)
	require.Len(t, syms, 2)
	assert.Equal(t, "000001.SZ", syms[1].String())

	_, err = NewStaticUniverse([]string{"not a symbol"})
	assert.Error(t, err)
}

func TestBoardUniverse(t *testing.T) {
	u := NewBoardUniverse([]models.Board{models.BoardSH, models.BoardSZ})
	syms, err := u.ListSymbols(context.Background())
	require.NoError(t, err)
	require.Len(t, syms, 2)
	assert.Equal(t, models.MarketSH, syms[0].Market)
	assert.Equal(t, models.TypeIndex, syms[0].Type)
}

func TestCaptureUniverse_DropsDelistedSymbols(t *testing.T) {
	store := newMemStore()
	ctx := context.Background()
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, store.AppendBatch(ctx, []models.Capture{
		listing(t, models.BoardSH, "600000.SH", now.Add(-10*24*time.Hour)),
		listing(t, models.BoardSH, "600519.SH", now.Add(-10*24*time.Hour)),
		listing(t, models.BoardSH, "600519.SH", now),
		listing(t, models.BoardSZ, "000001.SZ", now.Add(-time.Hour)),
	}))

	u := NewCaptureUniverse(store, []models.Board{models.BoardSH, models.BoardSZ}, 48*time.Hour)
	syms, err := u.ListSymbols(ctx)
	require.NoError(t, err)

	got := map[string]bool{}
	for _, s := range syms {
		got[s.Key()] = true
	}
	assert.Equal(t, map[string]bool{"600519.SH": true, "000001.SZ": true}, got)
}

func TestCaptureUniverse_ReadsOnlyListingWindow(t *testing.T) {
	store := newMemStore()
	ctx := context.Background()
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	var old []models.Capture
	for i := range 50 {
		old = append(old, listing(t, models.BoardSH, "600000.SH", now.Add(-time.Duration(30+i)*24*time.Hour)))
	}
	require.NoError(t, store.AppendBatch(ctx, old))
	require.NoError(t, store.AppendBatch(ctx, []models.Capture{
		listing(t, models.BoardSH, "600519.SH", now.Add(-time.Hour)),
		listing(t, models.BoardSH, "601398.SH", now),
	}))

	u := NewCaptureUniverse(store, []models.Board{models.BoardSH, models.BoardSZ}, 48*time.Hour)
	syms, err := u.ListSymbols(ctx)
	require.NoError(t, err)
	assert.Len(t, syms, 2)
	assert.Equal(t, int64(2), store.scanned.Load())
}

func TestCaptureUniverse_ReadError(t *testing.T) {
	store := newMemStore()
	store.readErr = errors.New("db closed")
	u := NewCaptureUniverse(store, []models.Board{models.BoardSH}, 0)
	_, err := u.ListSymbols(context.Background())
	assert.Error(t, err)
}

func TestUnionUniverse(t *testing.T) {
	u := UnionUniverse{fixedUniverse(symA), fixedUniverse(symB, symA)}
	syms, err := u.ListSymbols(context.Background())
	require.NoError(t, err)
	assert.Len(t, syms, 3)

	failing := UnionUniverse{fixedUniverse(symA), universeFunc(func(context.Context) ([]models.Symbol, error) {
		return nil, errors.New("down")
	})}
	_, err = failing.ListSymbols(context.Background())
	assert.Error(t, err)
}

func TestCachedUniverse_ReusesSnapshotWithinStaleness(t *testing.T) {
	mc := cache.NewMemoryCache()
	defer mc.Close()

	var calls atomic.Int32
	upstream := universeFunc(func(context.Context) ([]models.Symbol, error) {
		calls.Add(1)
		return []models.Symbol{symA, symB}, nil
	})

	u := NewCachedUniverse("quotes", upstream, mc, time.Minute, logger.NewNop())
	for range 3 {
		syms, err := u.ListSymbols(context.Background())
		require.NoError(t, err)
		require.Len(t, syms, 2)
		assert.True(t, syms[1].Equal(symB))
	}
	assert.Equal(t, int32(1), calls.Load())
}

func TestCachedUniverse_ZeroStalenessAlwaysRefreshes(t *testing.T) {
	mc := cache.NewMemoryCache()
	defer mc.Close()

	var calls atomic.Int32
	upstream := universeFunc(func(context.Context) ([]models.Symbol, error) {
		calls.Add(1)
		return []models.Symbol{symA}, nil
	})

	u := NewCachedUniverse("strict", upstream, mc, 0, logger.NewNop())
	for range 3 {
		_, err := u.ListSymbols(context.Background())
		require.NoError(t, err)
	}
	assert.Equal(t, int32(3), calls.Load())
}

func TestCachedUniverse_UpstreamErrorNotCached(t *testing.T) {
	mc := cache.NewMemoryCache()
	defer mc.Close()

	var calls atomic.Int32
	upstream := universeFunc(func(context.Context) ([]models.Symbol, error) {
		if calls.Add(1) == 1 {
			return nil, errors.New("provider down")
		}
		return []models.Symbol{symC}, nil
	})

	u := NewCachedUniverse("flaky", upstream, mc, time.Minute, logger.NewNop())
	_, err := u.ListSymbols(context.Background())
	require.Error(t, err)

	syms, err := u.ListSymbols(context.Background())
	require.NoError(t, err)
	require.Len(t, syms, 1)
	assert.True(t, syms[0].Equal(symC))
}
