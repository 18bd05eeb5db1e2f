package usecase

import (
	"context"
	"fmt"

	"github.com/segmentio/encoding/json"

	"FinCapture/internal/domain/models"
	"FinCapture/pkg/logger"
	"FinCapture/pkg/queue"
)

// MergeJobType is the queue message type for archive merges.
const MergeJobType = "archive.merge"

// MergeJob runs queued merge requests, letting several processes share the
// archive workload while the per-symbol lock keeps one writer per archive.
type MergeJob struct {
	archiver *Archiver
	log      *logger.Logger
}

func NewMergeJob(archiver *Archiver, log *logger.Logger) *MergeJob {
	return &MergeJob{archiver: archiver, log: log}
}

func (j *MergeJob) Name() string { return "archive-merge" }
func (j *MergeJob) Type() string { return MergeJobType }

func (j *MergeJob) Handle(ctx context.Context, payload json.RawMessage) error {
	req, err := queue.ParsePayload[models.MergeRequest](payload)
	if err != nil {
		return err
	}
	category, err := models.ParseCategory(req.Category)
	if err != nil {
		return err
	}
	symbols, err := ParseSymbols(req.Symbols)
	if err != nil {
		return err
	}
	resp, err := j.archiver.RunAll(ctx, category, symbols)
	if err != nil {
		return err
	}
	if resp.Failures > 0 {
		j.log.Warn("queued merge had failures",
			logger.String("run_id", resp.RunID),
			logger.Int("failures", resp.Failures))
	}
	return nil
}

// ParseSymbols parses symbol strings, failing on the first invalid one.
func ParseSymbols(in []string) ([]models.Symbol, error) {
	out := make([]models.Symbol, 0, len(in))
	for _, s := range in {
		sym, err := models.ParseSymbol(s)
		if err != nil {
			return nil, fmt.Errorf("symbol %q: %w", s, err)
		}
		out = append(out, sym)
	}
	return out, nil
}

var _ queue.Job = (*MergeJob)(nil)
