package usecase

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FinCapture/internal/domain/models"
)

func universe(n int) []models.Symbol {
	out := make([]models.Symbol, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, models.Symbol{Code: fmt.Sprintf("%06d", 600000+i), Market: models.MarketSH, Type: models.TypeStock})
	}
	return out
}

func realtimeSpec(max int) models.CategorySpec {
	return models.CategorySpec{Category: models.CategoryRealtimeQuote, MaxSymbolsPerBatch: max, PagesPerSymbolPerCycle: 1}
}

func TestPlan_RealtimeSplitsIntoHundredAndFifty(t *testing.T) {
	u := universe(150)
	batches, err := Plan(u, realtimeSpec(100))
	require.NoError(t, err)
	require.Len(t, batches, 2)
	assert.Len(t, batches[0], 100)
	assert.Len(t, batches[1], 50)
	assertPartition(t, u, batches, 100)
}

func TestPlan_PartitionProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 50; i++ {
		n := rng.Intn(400)
		max := 1 + rng.Intn(120)
		u := universe(n)
		rng.Shuffle(len(u), func(a, b int) { u[a], u[b] = u[b], u[a] })

		batches, err := Plan(u, realtimeSpec(max))
		require.NoError(t, err)
		assertPartition(t, u, batches, max)
	}
}

func TestPlan_DeterministicRegardlessOfInputOrder(t *testing.T) {
	u := universe(237)
	first, err := Plan(u, realtimeSpec(40))
	require.NoError(t, err)

	shuffled := append([]models.Symbol(nil), u...)
	rand.New(rand.NewSource(1)).Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })
	second, err := Plan(shuffled, realtimeSpec(40))
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestPlan_DropsDuplicates(t *testing.T) {
	a := models.MustParseSymbol("600000.SH")
	b := models.MustParseSymbol("000001.SZ")
	batches, err := Plan([]models.Symbol{a, b, a, b, a}, realtimeSpec(100))
	require.NoError(t, err)
	require.Len(t, batches, 1)
	assert.Equal(t, models.Batch{b, a}, batches[0])
}

func TestPlan_SingleSymbolBatches(t *testing.T) {
	spec := models.CategorySpec{Category: models.CategoryHistoricalBar, MaxSymbolsPerBatch: 1, PagesPerSymbolPerCycle: 1}
	batches, err := Plan(universe(5), spec)
	require.NoError(t, err)
	require.Len(t, batches, 5)
	for _, b := range batches {
		assert.Len(t, b, 1)
	}
}

func TestPlan_EmptyUniverse(t *testing.T) {
	batches, err := Plan(nil, realtimeSpec(100))
	require.NoError(t, err)
	assert.Empty(t, batches)
}

func TestPlan_InvalidBatchSize(t *testing.T) {
	for _, max := range []int{0, -3} {
		_, err := Plan(universe(3), realtimeSpec(max))
		var ce *models.ConfigurationError
		require.ErrorAs(t, err, &ce)
		assert.Equal(t, "max_symbols_per_batch", ce.Field)
		assert.Equal(t, models.CategoryRealtimeQuote, ce.Category)
	}
}

func assertPartition(t *testing.T, u []models.Symbol, batches []models.Batch, max int) {
	t.Helper()
	seen := map[string]int{}
	for _, b := range batches {
		assert.NotEmpty(t, b)
		assert.LessOrEqual(t, len(b), max)
		for _, s := range b {
			seen[s.Key()]++
		}
	}
	assert.Len(t, seen, len(u))
	for _, s := range u {
		assert.Equal(t, 1, seen[s.Key()], "symbol %s", s)
	}
}
