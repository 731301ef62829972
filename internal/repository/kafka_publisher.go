package repository

import (
	"context"

	"github.com/saltymaverick/Chloe-alpha-sub002/internal/domain/models"
	"github.com/saltymaverick/Chloe-alpha-sub002/internal/domain/repository"
	pkgkafka "github.com/saltymaverick/Chloe-alpha-sub002/pkg/kafka"
	applogger "github.com/saltymaverick/Chloe-alpha-sub002/pkg/logger"
)

// KafkaDecisionPublisher writes decision records keyed by symbol so that every
// symbol's records stay ordered within one partition.
type KafkaDecisionPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

var _ repository.DecisionPublisher = (*KafkaDecisionPublisher)(nil)

func NewKafkaDecisionPublisher(p *pkgkafka.Producer, topic string) *KafkaDecisionPublisher {
	return &KafkaDecisionPublisher{producer: p, topic: topic}
}

func (k *KafkaDecisionPublisher) Publish(ctx context.Context, recs []models.DecisionRecord) error {
	msgs := make([]pkgkafka.Message, 0, len(recs))
	for _, r := range recs {
		msgs = append(msgs, pkgkafka.Message{Key: []byte(r.Symbol), Value: r})
	}
	return k.producer.PublishBatch(ctx, k.topic, msgs)
}

func (k *KafkaDecisionPublisher) Close() error {
	return k.producer.Close()
}

// LogPublisher logs every record. Used when no broker is configured.
type LogPublisher struct {
	l *applogger.Logger
}

var _ repository.DecisionPublisher = (*LogPublisher)(nil)

func NewLogPublisher(l *applogger.Logger) *LogPublisher {
	if l == nil {
		l = applogger.Nop()
	}
	return &LogPublisher{l: l}
}

func (p *LogPublisher) Publish(_ context.Context, recs []models.DecisionRecord) error {
	for _, r := range recs {
		p.l.Info("decision",
			applogger.String("id", r.ID),
			applogger.String("symbol", r.Symbol),
			applogger.Int("seq", r.Seq),
			applogger.String("action", string(r.Action)),
			applogger.String("direction", string(r.Direction)),
			applogger.String("reason", string(r.Reason)),
			applogger.Float64("size", r.SizeMultiplier),
			applogger.Float64("confidence", r.Confidence.FinalConfidence),
		)
	}
	return nil
}

func (p *LogPublisher) Close() error { return nil }
