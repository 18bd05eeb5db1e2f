package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/encoding/json"

	"FinCapture/internal/domain/models"
	domrepo "FinCapture/internal/domain/repository"
	pkgkafka "FinCapture/pkg/kafka"
)

// KafkaCaptureHandler consumes published captures and appends them to the
// capture store.
type KafkaCaptureHandler struct {
	topic   string
	store   domrepo.CaptureStore
	metrics domrepo.Metrics
}

func NewKafkaCaptureHandler(topic string, store domrepo.CaptureStore, metrics domrepo.Metrics) *KafkaCaptureHandler {
	return &KafkaCaptureHandler{topic: topic, store: store, metrics: metrics}
}

func (h *KafkaCaptureHandler) Topic() string { return h.topic }

// Handle decodes one capture message. Undecodable messages are rejected so
// the consumer can dead-letter them; store failures are retried by the consumer.
func (h *KafkaCaptureHandler) Handle(ctx context.Context, b []byte) error {
	var c models.Capture
	if err := json.Unmarshal(b, &c); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return fmt.Errorf("decode capture: %w", err)
	}
	if !c.Category.Valid() || c.Symbol.IsZero() || c.CapturedAt.IsZero() {
		h.metrics.RecordError("consumer_invalid")
		return fmt.Errorf("invalid capture %s/%s", c.Category, c.Symbol)
	}

	h.metrics.RecordLatency("ingest_e2e_seconds", time.Since(c.CapturedAt).Seconds())

	start := time.Now()
	err := h.store.Append(ctx, c)
	h.metrics.RecordLatency("store_append_seconds", time.Since(start).Seconds())
	if err != nil {
		h.metrics.RecordStoreError("append")
		return err
	}
	return nil
}

var _ pkgkafka.MessageHandler = (*KafkaCaptureHandler)(nil)
