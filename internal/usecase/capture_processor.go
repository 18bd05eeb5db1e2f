package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"FinCapture/internal/domain/models"
	drepo "FinCapture/internal/domain/repository"
)

// Capture backends.
const (
	BackendKafka      = "kafka"
	BackendSQLite     = "sqlite"
	BackendClickHouse = "clickhouse"
)

// CaptureProcessor routes scheduler output to the configured backend: written
// straight to the capture store, or published to Kafka for the ingest
// consumer to persist.
type CaptureProcessor struct {
	pub     drepo.Publisher
	store   drepo.CaptureStore
	metrics drepo.Metrics
	backend string
}

// NewCaptureProcessor creates a new CaptureProcessor instance.
func NewCaptureProcessor(
	pub drepo.Publisher,
	store drepo.CaptureStore,
	metrics drepo.Metrics,
	backend string,
) (*CaptureProcessor, error) {
	switch backend {
	case BackendKafka:
		if pub == nil {
			return nil, fmt.Errorf("backend %q requires a publisher", backend)
		}
	case BackendSQLite, BackendClickHouse:
		if store == nil {
			return nil, fmt.Errorf("backend %q requires a capture store", backend)
		}
	default:
		return nil, fmt.Errorf("unknown backend: %s", backend)
	}
	return &CaptureProcessor{pub: pub, store: store, metrics: metrics, backend: backend}, nil
}

// Backend reports where captures go.
func (p *CaptureProcessor) Backend() string { return p.backend }

// Accept persists or publishes a batch of captures. Any failure surfaces as a
// StoreError for the caller to account.
func (p *CaptureProcessor) Accept(ctx context.Context, captures []models.Capture) error {
	if len(captures) == 0 {
		return nil
	}

	start := time.Now()
	var err error
	switch p.backend {
	case BackendKafka:
		err = p.pub.PublishCaptures(ctx, captures)
	default:
		err = p.store.AppendBatch(ctx, captures)
	}
	p.metrics.RecordLatency("sink_"+p.backend, time.Since(start).Seconds())

	if err != nil {
		p.metrics.RecordError("sink")
		var se *models.StoreError
		if errors.As(err, &se) {
			return err
		}
		return &models.StoreError{Op: "append", Category: captures[0].Category, Err: err}
	}
	return nil
}

// Close closes underlying resources if available.
func (p *CaptureProcessor) Close() {
	if p.pub != nil {
		_ = p.pub.Close()
	}
	if p.store != nil {
		_ = p.store.Close()
	}
}

var _ drepo.CaptureSink = (*CaptureProcessor)(nil)
