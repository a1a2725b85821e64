package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"OptArb/internal/domain/models"
	domrepo "OptArb/internal/domain/repository"
	pkgkafka "OptArb/pkg/kafka"
)

// KafkaResultsHandler consumes the results topic and persists each record.
type KafkaResultsHandler struct {
	topic   string
	storage domrepo.ResultStorage
	metrics domrepo.Metrics
}

func NewKafkaResultsHandler(topic string, storage domrepo.ResultStorage, metrics domrepo.Metrics) *KafkaResultsHandler {
	return &KafkaResultsHandler{topic: topic, storage: storage, metrics: metrics}
}

func (h *KafkaResultsHandler) Topic() string { return h.topic }

func (h *KafkaResultsHandler) Handle(ctx context.Context, b []byte) error {
	var r models.Result
	if err := json.Unmarshal(b, &r); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return fmt.Errorf("decode result: %w", err)
	}
	if r.ID == "" || r.Instrument == "" {
		h.metrics.RecordError("consumer_invalid")
		return fmt.Errorf("result missing id or instrument")
	}
	h.metrics.RecordLatency("result_e2e_seconds", time.Since(r.Timestamp).Seconds())

	start := time.Now()
	err := h.storage.Store(ctx, &r)
	h.metrics.RecordLatency("ch_insert_seconds", time.Since(start).Seconds())
	if err != nil {
		h.metrics.RecordError("consumer_store")
		return err
	}
	return nil
}

var _ pkgkafka.MessageHandler = (*KafkaResultsHandler)(nil)
