package usecase

import (
	"encoding/json"
	"errors"
	"iter"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FinCapture/internal/domain/models"
)

var xyz = models.MustParseSymbol("600519.SH")

func bar(date string, price float64, ts time.Time) models.Capture {
	payload, _ := json.Marshal(map[string]any{"symbol": xyz.String(), "date": date, "close": price})
	return models.Capture{Category: models.CategoryHistoricalBar, Symbol: xyz, CapturedAt: ts, Payload: payload}
}

func closeOf(t *testing.T, e models.ArchiveEntry) float64 {
	t.Helper()
	var p struct {
		Close float64 `json:"close"`
	}
	require.NoError(t, json.Unmarshal(e.Payload, &p))
	return p.Close
}

func TestMerge_LatestCaptureWins(t *testing.T) {
	t1 := time.Date(2024, 1, 3, 1, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)
	t3 := t2.Add(time.Hour)
	captures := []models.Capture{
		bar("2024-01-02", 10, t1),
		bar("2024-01-02", 11, t2),
		bar("2024-01-03", 12, t3),
	}

	res, err := Merge(models.CategoryHistoricalBar, xyz, SliceCaptures(captures))
	require.NoError(t, err)
	require.Len(t, res.Entries, 2)
	assert.Equal(t, "2024-01-02", res.Entries[0].ObservationKey)
	assert.Equal(t, 11.0, closeOf(t, res.Entries[0]))
	assert.Equal(t, "2024-01-03", res.Entries[1].ObservationKey)
	assert.Equal(t, 12.0, closeOf(t, res.Entries[1]))
	assert.Equal(t, 3, res.Consumed)
	assert.Zero(t, res.Malformed)
}

func TestMerge_OrderIndependent(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var captures []models.Capture
	for d := 0; d < 30; d++ {
		date := base.AddDate(0, 0, d).Format("2006-01-02")
		for v := 0; v < 3; v++ {
			captures = append(captures, bar(date, float64(d*10+v), base.Add(time.Duration(d*3+v)*time.Minute)))
		}
	}
	// same timestamp, different payloads
	captures = append(captures, bar("2024-01-05", 999, base.Add(time.Hour*24)), bar("2024-01-05", 998, base.Add(time.Hour*24)))

	want, err := Merge(models.CategoryHistoricalBar, xyz, SliceCaptures(captures))
	require.NoError(t, err)

	reversed := make([]models.Capture, len(captures))
	for i, c := range captures {
		reversed[len(captures)-1-i] = c
	}
	got, err := Merge(models.CategoryHistoricalBar, xyz, SliceCaptures(reversed))
	require.NoError(t, err)
	assert.Equal(t, want.Entries, got.Entries)

	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 10; i++ {
		rng.Shuffle(len(captures), func(a, b int) { captures[a], captures[b] = captures[b], captures[a] })
		got, err := Merge(models.CategoryHistoricalBar, xyz, SliceCaptures(captures))
		require.NoError(t, err)
		assert.Equal(t, want.Entries, got.Entries)
	}

	for i := 1; i < len(want.Entries); i++ {
		assert.Less(t, want.Entries[i-1].ObservationKey, want.Entries[i].ObservationKey)
	}
}

func TestMerge_Idempotent(t *testing.T) {
	ts := time.Date(2024, 1, 3, 1, 0, 0, 0, time.UTC)
	captures := []models.Capture{bar("2024-01-02", 10, ts), bar("2024-01-02", 10, ts), bar("2024-01-04", 9, ts)}

	first, err := Merge(models.CategoryHistoricalBar, xyz, SliceCaptures(captures))
	require.NoError(t, err)
	second, err := Merge(models.CategoryHistoricalBar, xyz, SliceCaptures(captures))
	require.NoError(t, err)

	a, _ := json.Marshal(first.Entries)
	b, _ := json.Marshal(second.Entries)
	assert.Equal(t, a, b)
}

func TestMerge_MalformedIsolated(t *testing.T) {
	ts := time.Date(2024, 1, 3, 1, 0, 0, 0, time.UTC)
	captures := []models.Capture{
		bar("2024-01-02", 1, ts),
		{Category: models.CategoryHistoricalBar, Symbol: xyz, CapturedAt: ts, Payload: json.RawMessage(`{"close": 3}`)},
		bar("2024-01-03", 2, ts),
		bar("2024-01-04", 4, ts),
	}

	var hooked []*models.MalformedCaptureError
	res, err := Merge(models.CategoryHistoricalBar, xyz, SliceCaptures(captures), WithMalformedHook(func(e *models.MalformedCaptureError) {
		hooked = append(hooked, e)
	}))
	require.NoError(t, err)
	assert.Len(t, res.Entries, 3)
	assert.Equal(t, 1, res.Malformed)
	require.Len(t, hooked, 1)
	assert.Equal(t, xyz, hooked[0].Symbol)
}

func TestMerge_SequenceErrorIsStoreError(t *testing.T) {
	ts := time.Date(2024, 1, 3, 1, 0, 0, 0, time.UTC)
	var seq iter.Seq2[models.Capture, error] = func(yield func(models.Capture, error) bool) {
		if !yield(bar("2024-01-02", 1, ts), nil) {
			return
		}
		yield(models.Capture{}, errors.New("disk gone"))
	}

	_, err := Merge(models.CategoryHistoricalBar, xyz, seq)
	var se *models.StoreError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "read", se.Op)
}

func TestMerge_Empty(t *testing.T) {
	res, err := Merge(models.CategoryDividendEvent, xyz, SliceCaptures(nil))
	require.NoError(t, err)
	assert.Empty(t, res.Entries)
}
