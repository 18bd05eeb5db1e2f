package repository

import (
	"context"

	"FinCapture/internal/domain/models"
	domrepo "FinCapture/internal/domain/repository"
	pkgkafka "FinCapture/pkg/kafka"
	"FinCapture/pkg/logger"
)

// KafkaPublisher publishes captures keyed by symbol, so one symbol's captures
// stay ordered within a partition.
type KafkaPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

func NewKafkaPublisher(producer *pkgkafka.Producer, topic string) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, topic: topic}
}

func (p *KafkaPublisher) PublishCaptures(ctx context.Context, captures []models.Capture) error {
	if len(captures) == 0 {
		return nil
	}
	msgs := make([]pkgkafka.Message, len(captures))
	for i, c := range captures {
		msgs[i] = pkgkafka.Message{Key: []byte(c.Symbol.Key()), Value: c}
	}
	return p.producer.PublishBatch(ctx, p.topic, msgs)
}

func (p *KafkaPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}

var _ domrepo.Publisher = (*KafkaPublisher)(nil)

// KafkaLogPublisher ships aggregated application logs.
type KafkaLogPublisher struct {
	producer *pkgkafka.Producer
}

func NewKafkaLogPublisher(producer *pkgkafka.Producer) *KafkaLogPublisher {
	return &KafkaLogPublisher{producer: producer}
}

func (p *KafkaLogPublisher) PublishMessage(ctx context.Context, topic string, payload interface{}) error {
	return p.producer.Publish(ctx, topic, nil, payload)
}

var _ logger.Publisher = (*KafkaLogPublisher)(nil)
