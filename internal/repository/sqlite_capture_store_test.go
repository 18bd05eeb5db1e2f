package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FinCapture/internal/domain/models"
)

func openSQLite(t *testing.T) *SQLiteCaptureStore {
	t.Helper()
	s, err := NewSQLiteCaptureStore(filepath.Join(t.TempDir(), "db", "captures.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func capture(cat models.Category, sym string, at time.Time, payload string) models.Capture {
	return models.Capture{Category: cat, Symbol: models.MustParseSymbol(sym), CapturedAt: at, Payload: []byte(payload)}
}

func TestSQLiteCaptureStore_AppendAndRead(t *testing.T) {
	s := openSQLite(t)
	ctx := context.Background()
	t0 := time.Date(2024, 1, 2, 9, 30, 0, 123456789, time.UTC)

	require.NoError(t, s.AppendBatch(ctx, []models.Capture{
		capture(models.CategoryHistoricalBar, "600519.SH", t0.Add(time.Second), `{"date":"2024-01-02","close":2}`),
		capture(models.CategoryHistoricalBar, "600519.SH", t0, `{"date":"2024-01-02","close":1}`),
		capture(models.CategoryHistoricalBar, "000001.SZ", t0, `{"date":"2024-01-02"}`),
		capture(models.CategoryRealtimeQuote, "600519.SH", t0, `{"timestamp":"x"}`),
	}))
	require.NoError(t, s.Append(ctx, capture(models.CategoryHistoricalBar, "600519.SH", t0.Add(2*time.Second), `{"date":"2024-01-03"}`)))

	var got []models.Capture
	for c, err := range s.Read(ctx, models.CategoryHistoricalBar, models.MustParseSymbol("600519.SH")) {
		require.NoError(t, err)
		got = append(got, c)
	}
	require.Len(t, got, 3)
	assert.Equal(t, t0, got[0].CapturedAt)
	assert.JSONEq(t, `{"date":"2024-01-02","close":1}`, string(got[0].Payload))
	assert.Equal(t, t0.Add(2*time.Second), got[2].CapturedAt)
	assert.Equal(t, models.CategoryHistoricalBar, got[1].Category)
}

func TestSQLiteCaptureStore_ReadStopsEarly(t *testing.T) {
	s := openSQLite(t)
	ctx := context.Background()
	t0 := time.Now().UTC()
	for i := range 5 {
		require.NoError(t, s.Append(ctx, capture(models.CategoryDividendEvent, "600000.SH", t0.Add(time.Duration(i)), `{}`)))
	}

	n := 0
	for _, err := range s.Read(ctx, models.CategoryDividendEvent, models.MustParseSymbol("600000.SH")) {
		require.NoError(t, err)
		n++
		if n == 2 {
			break
		}
	}
	assert.Equal(t, 2, n)
	require.NoError(t, s.Append(ctx, capture(models.CategoryDividendEvent, "600000.SH", t0, `{}`)))
}

func TestSQLiteCaptureStore_Symbols(t *testing.T) {
	s := openSQLite(t)
	ctx := context.Background()
	now := time.Now()
	require.NoError(t, s.AppendBatch(ctx, []models.Capture{
		capture(models.CategoryQuoteSnapshot, "600000.SH", now, `{}`),
		capture(models.CategoryQuoteSnapshot, "600000.SH", now, `{}`),
		capture(models.CategoryQuoteSnapshot, "000001.SZ", now, `{}`),
		capture(models.CategorySymbolList, "sh_a.SH.INDEX", now, `{}`),
	}))

	syms, err := s.Symbols(ctx, models.CategoryQuoteSnapshot)
	require.NoError(t, err)
	require.Len(t, syms, 2)
	assert.Equal(t, "000001.SZ", syms[0].String())

	boards, err := s.Symbols(ctx, models.CategorySymbolList)
	require.NoError(t, err)
	require.Len(t, boards, 1)
	assert.True(t, boards[0].Equal(models.BoardSH.BoardSymbol()))
	assert.NoError(t, s.Health(ctx))
}

func TestSQLiteCaptureStore_ClosedStoreReportsStoreError(t *testing.T) {
	s := openSQLite(t)
	require.NoError(t, s.Close())

	err := s.Append(context.Background(), capture(models.CategoryHistoricalBar, "600000.SH", time.Now(), `{}`))
	var se *models.StoreError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "append", se.Op)

	for _, err := range s.Read(context.Background(), models.CategoryHistoricalBar, models.MustParseSymbol("600000.SH")) {
		require.ErrorAs(t, err, &se)
		assert.Equal(t, "read", se.Op)
	}
}

func TestSQLiteCaptureStore_ReadSinceAndLastCapturedAt(t *testing.T) {
	s := openSQLite(t)
	ctx := context.Background()
	sym := models.MustParseSymbol("600000.SH")
	t0 := time.Date(2024, 1, 2, 9, 30, 0, 0, time.UTC)

	last, err := s.LastCapturedAt(ctx, models.CategorySymbolList, sym)
	require.NoError(t, err)
	assert.True(t, last.IsZero())

	for i := range 4 {
		require.NoError(t, s.Append(ctx, capture(models.CategorySymbolList, "600000.SH", t0.Add(time.Duration(i)*time.Hour), `{}`)))
	}

	last, err = s.LastCapturedAt(ctx, models.CategorySymbolList, sym)
	require.NoError(t, err)
	assert.Equal(t, t0.Add(3*time.Hour), last)

	var got []time.Time
	for c, err := range s.ReadSince(ctx, models.CategorySymbolList, sym, t0.Add(2*time.Hour)) {
		require.NoError(t, err)
		got = append(got, c.CapturedAt)
	}
	assert.Equal(t, []time.Time{t0.Add(2 * time.Hour), t0.Add(3 * time.Hour)}, got)
}
