package usecase

import (
	"bytes"
	"errors"
	"iter"
	"slices"
	"strings"

	"FinCapture/internal/domain/models"
)

// MergeOption configures a merge run.
type MergeOption func(*mergeConfig)

type mergeConfig struct {
	onMalformed func(*models.MalformedCaptureError)
}

// WithMalformedHook observes each capture skipped as malformed.
func WithMalformedHook(fn func(*models.MalformedCaptureError)) MergeOption {
	return func(c *mergeConfig) { c.onMalformed = fn }
}

// Merge folds a lazy capture sequence into deduplicated archive entries
// ordered by observation key.
//
// When several captures share a key the one with the latest CapturedAt
// survives. Equal timestamps fall back to the greater payload bytes so the
// outcome never depends on input order. Captures without a usable key are
// skipped and counted. Only sequence errors abort the merge.
func Merge(category models.Category, symbol models.Symbol, captures iter.Seq2[models.Capture, error], opts ...MergeOption) (models.MergeResult, error) {
	cfg := mergeConfig{}
	for _, o := range opts {
		o(&cfg)
	}

	res := models.MergeResult{Category: category, Symbol: symbol}
	best := make(map[string]models.Capture)

	for c, err := range captures {
		if err != nil {
			var se *models.StoreError
			if errors.As(err, &se) {
				return res, err
			}
			return res, &models.StoreError{Op: "read", Category: category, Symbol: symbol, Err: err}
		}
		res.Consumed++

		key, kerr := ObservationKey(c)
		if kerr != nil {
			res.Malformed++
			if cfg.onMalformed != nil {
				cfg.onMalformed(&models.MalformedCaptureError{Category: category, Symbol: symbol, CapturedAt: c.CapturedAt, Err: kerr})
			}
			continue
		}

		cur, ok := best[key]
		if !ok || supersedes(c, cur) {
			best[key] = c
		}
	}

	keys := make([]string, 0, len(best))
	for k := range best {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, strings.Compare)

	res.Entries = make([]models.ArchiveEntry, 0, len(keys))
	for _, k := range keys {
		c := best[k]
		res.Entries = append(res.Entries, models.ArchiveEntry{
			Symbol:         symbol,
			ObservationKey: k,
			CapturedAt:     c.CapturedAt.UTC(),
			Payload:        c.Payload,
		})
	}
	return res, nil
}

// supersedes reports whether candidate c replaces the current winner.
func supersedes(c, cur models.Capture) bool {
	if !c.CapturedAt.Equal(cur.CapturedAt) {
		return c.CapturedAt.After(cur.CapturedAt)
	}
	return bytes.Compare(c.Payload, cur.Payload) > 0
}

// SliceCaptures adapts an in-memory slice to the lazy sequence Merge consumes.
func SliceCaptures(captures []models.Capture) iter.Seq2[models.Capture, error] {
	return func(yield func(models.Capture, error) bool) {
		for _, c := range captures {
			if !yield(c, nil) {
				return
			}
		}
	}
}
