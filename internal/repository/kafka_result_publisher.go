package repository

import (
	"context"

	"OptArb/internal/domain/models"
	domrepo "OptArb/internal/domain/repository"
	pkgkafka "OptArb/pkg/kafka"
)

// KafkaResultPublisher streams results as JSON keyed by instrument.
type KafkaResultPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

// NewKafkaResultPublisher creates the publisher.
func NewKafkaResultPublisher(producer *pkgkafka.Producer, topic string) *KafkaResultPublisher {
	return &KafkaResultPublisher{producer: producer, topic: topic}
}

func (p *KafkaResultPublisher) Publish(ctx context.Context, r *models.Result) error {
	return p.producer.Publish(ctx, p.topic, []byte(r.Instrument), r)
}

func (p *KafkaResultPublisher) PublishBatch(ctx context.Context, rs []*models.Result) error {
	if len(rs) == 0 {
		return nil
	}
	msgs := make([]pkgkafka.Message, 0, len(rs))
	for _, r := range rs {
		if r == nil {
			continue
		}
		msgs = append(msgs, pkgkafka.Message{Key: []byte(r.Instrument), Value: r})
	}
	return p.producer.PublishBatch(ctx, p.topic, msgs)
}

// Close is a no-op; the producer is shared with the log collector and closed by its owner.
func (p *KafkaResultPublisher) Close() error {
	return nil
}

var _ domrepo.ResultPublisher = (*KafkaResultPublisher)(nil)
