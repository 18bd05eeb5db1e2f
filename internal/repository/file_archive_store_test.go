package repository

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FinCapture/internal/domain/models"
)

func TestFileArchiveStore_WriteReplacesArchive(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileArchiveStore(dir)
	require.NoError(t, err)
	ctx := context.Background()
	sym := models.MustParseSymbol("600519.SH")
	at := time.Date(2024, 1, 3, 1, 0, 0, 0, time.UTC)

	first := []models.ArchiveEntry{
		{Symbol: sym, ObservationKey: "2024-01-02", CapturedAt: at, Payload: []byte(`{"close":10}`)},
	}
	require.NoError(t, s.WriteArchive(ctx, models.CategoryHistoricalBar, sym, first))

	second := []models.ArchiveEntry{
		{Symbol: sym, ObservationKey: "2024-01-02", CapturedAt: at.Add(time.Hour), Payload: []byte(`{"close":11}`)},
		{Symbol: sym, ObservationKey: "2024-01-03", CapturedAt: at.Add(2 * time.Hour), Payload: []byte(`{"close":12}`)},
	}
	require.NoError(t, s.WriteArchive(ctx, models.CategoryHistoricalBar, sym, second))

	got, err := s.ReadArchive(ctx, models.CategoryHistoricalBar, sym)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "2024-01-03", got[1].ObservationKey)
	assert.JSONEq(t, `{"close":11}`, string(got[0].Payload))
	assert.True(t, got[0].CapturedAt.Equal(at.Add(time.Hour)))

	files, err := os.ReadDir(filepath.Join(dir, string(models.CategoryHistoricalBar)))
	require.NoError(t, err)
	assert.Len(t, files, 1, "no temp files left behind")
}

func TestFileArchiveStore_MissingArchive(t *testing.T) {
	s, err := NewFileArchiveStore(t.TempDir())
	require.NoError(t, err)

	got, err := s.ReadArchive(context.Background(), models.CategoryDividendEvent, models.MustParseSymbol("600000.SH"))
	require.NoError(t, err)
	assert.Empty(t, got)

	syms, err := s.ListArchived(context.Background(), models.CategoryDividendEvent)
	require.NoError(t, err)
	assert.Empty(t, syms)
}

func TestFileArchiveStore_ListArchived(t *testing.T) {
	s, err := NewFileArchiveStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	for _, raw := range []string{"600519.SH", "000001.SZ", "000300.SH.INDEX"} {
		sym := models.MustParseSymbol(raw)
		require.NoError(t, s.WriteArchive(ctx, models.CategoryQuoteSnapshot, sym, nil))
	}

	syms, err := s.ListArchived(ctx, models.CategoryQuoteSnapshot)
	require.NoError(t, err)
	require.Len(t, syms, 3)
	assert.Equal(t, "000001.SZ", syms[0].String())
	assert.Equal(t, models.TypeIndex, syms[1].Type)
}

func TestFileArchiveStore_CancelledWrite(t *testing.T) {
	s, err := NewFileArchiveStore(t.TempDir())
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, s.WriteArchive(ctx, models.CategoryHistoricalBar, models.MustParseSymbol("600519.SH"), nil))
}
