package usecase

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"

	"FinCapture/internal/domain/models"
	"FinCapture/pkg/logger"
	"FinCapture/pkg/queue"
)

// CaptureCollector owns the long-running capture side of the service: the
// per-category scheduler and the periodic archive consolidation.
type CaptureCollector struct {
	scheduler  *Scheduler
	proc       *CaptureProcessor
	archiver   *Archiver
	queue      queue.Publisher
	cron       *cron.Cron
	categories []models.Category
	log        *logger.Logger
}

// NewCaptureCollector creates a collector. A nil queue runs scheduled merges
// in process; otherwise they are enqueued for any worker to pick up.
func NewCaptureCollector(s *Scheduler, proc *CaptureProcessor, archiver *Archiver, q queue.Publisher, log *logger.Logger) *CaptureCollector {
	return &CaptureCollector{
		scheduler:  s,
		proc:       proc,
		archiver:   archiver,
		queue:      q,
		cron:       cron.New(cron.WithSeconds()),
		categories: models.AllCategories,
		log:        log,
	}
}

// ScheduleArchive registers the merge run on a six-field cron expression.
func (c *CaptureCollector) ScheduleArchive(spec string) error {
	if spec == "" {
		return nil
	}
	if _, err := c.cron.AddFunc(spec, c.archiveAll); err != nil {
		return fmt.Errorf("register archive task: %w", err)
	}
	return nil
}

func (c *CaptureCollector) archiveAll() {
	ctx := context.Background()
	for _, cat := range c.categories {
		if c.queue != nil {
			if err := c.queue.Enqueue(ctx, MergeJobType, models.MergeRequest{Category: cat.String()}); err != nil {
				c.log.Error("enqueue merge", logger.String("category", cat.String()), logger.Error(err))
			}
			continue
		}
		if _, err := c.archiver.RunAll(ctx, cat, nil); err != nil {
			c.log.Error("scheduled merge failed", logger.String("category", cat.String()), logger.Error(err))
		}
	}
}

// Start launches category loops and the archive cron.
func (c *CaptureCollector) Start(ctx context.Context) error {
	c.scheduler.Start(ctx)
	c.cron.Start()
	return nil
}

// Scheduler exposes loop status for the HTTP API.
func (c *CaptureCollector) Scheduler() *Scheduler { return c.scheduler }

// Processor returns the capture sink for lifecycle management.
func (c *CaptureCollector) Processor() *CaptureProcessor { return c.proc }

// Shutdown stops new cycles, lets dispatching finish, then stops the cron.
func (c *CaptureCollector) Shutdown(ctx context.Context) error {
	err := c.scheduler.Stop(ctx)
	cronCtx := c.cron.Stop()
	select {
	case <-cronCtx.Done():
	case <-ctx.Done():
	}
	return err
}
