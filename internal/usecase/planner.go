package usecase

import (
	"fmt"
	"slices"
	"strings"

	"FinCapture/internal/domain/models"
)

// Plan partitions symbols into batches of at most spec.MaxSymbolsPerBatch.
// Duplicates are dropped and symbols are ordered lexicographically, so an
// unchanged universe always yields the same batches.
func Plan(symbols []models.Symbol, spec models.CategorySpec) ([]models.Batch, error) {
	if spec.MaxSymbolsPerBatch < 1 {
		return nil, &models.ConfigurationError{
			Category: spec.Category,
			Field:    "max_symbols_per_batch",
			Reason:   fmt.Sprintf("must be >= 1, got %d", spec.MaxSymbolsPerBatch),
		}
	}
	if len(symbols) == 0 {
		return nil, nil
	}

	seen := make(map[string]struct{}, len(symbols))
	uniq := make([]models.Symbol, 0, len(symbols))
	for _, s := range symbols {
		if _, ok := seen[s.Key()]; ok {
			continue
		}
		seen[s.Key()] = struct{}{}
		uniq = append(uniq, s)
	}
	slices.SortFunc(uniq, func(a, b models.Symbol) int {
		return strings.Compare(a.String(), b.String())
	})

	batches := make([]models.Batch, 0, (len(uniq)+spec.MaxSymbolsPerBatch-1)/spec.MaxSymbolsPerBatch)
	for start := 0; start < len(uniq); start += spec.MaxSymbolsPerBatch {
		end := min(start+spec.MaxSymbolsPerBatch, len(uniq))
		batches = append(batches, models.Batch(uniq[start:end:end]))
	}
	return batches, nil
}
