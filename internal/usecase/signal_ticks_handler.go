package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/saltymaverick/Chloe-alpha-sub002/internal/domain/models"
	drepo "github.com/saltymaverick/Chloe-alpha-sub002/internal/domain/repository"
	pkgkafka "github.com/saltymaverick/Chloe-alpha-sub002/pkg/kafka"
)

var tickValidator = validator.New()

// ValidateTick checks the structural fields of a SignalContext.
func ValidateTick(sc models.SignalContext) error {
	if err := tickValidator.Struct(sc); err != nil {
		return models.NewDataError("tick", "%v", err)
	}
	return nil
}

// TickSink is anything that can evaluate a tick.
type TickSink interface {
	Process(ctx context.Context, sc models.SignalContext) ([]models.DecisionRecord, error)
}

// SignalTicksHandler consumes SignalContext messages from Kafka and feeds the
// tick processor.
type SignalTicksHandler struct {
	topic   string
	sink    TickSink
	metrics drepo.Metrics
}

var _ pkgkafka.MessageHandler = (*SignalTicksHandler)(nil)

func NewSignalTicksHandler(topic string, sink TickSink, metrics drepo.Metrics) *SignalTicksHandler {
	return &SignalTicksHandler{topic: topic, sink: sink, metrics: metrics}
}

func (h *SignalTicksHandler) Topic() string { return h.topic }

// Handle decodes one tick. Malformed payloads are permanent failures and go
// straight to the dead letter topic.
func (h *SignalTicksHandler) Handle(ctx context.Context, b []byte) error {
	var sc models.SignalContext
	if err := json.Unmarshal(b, &sc); err != nil {
		h.recordError("consumer_unmarshal")
		return pkgkafka.Permanent(fmt.Errorf("decode tick: %w", err))
	}
	if err := ValidateTick(sc); err != nil {
		h.recordError("consumer_validate")
		return pkgkafka.Permanent(err)
	}
	if h.metrics != nil && !sc.Ts.IsZero() {
		h.metrics.RecordLatency("ingest_e2e", time.Since(sc.Ts).Seconds())
	}
	if _, err := h.sink.Process(ctx, sc); err != nil {
		h.recordError("consumer_process")
		return pkgkafka.Permanent(err)
	}
	return nil
}

func (h *SignalTicksHandler) recordError(kind string) {
	if h.metrics != nil {
		h.metrics.RecordError(kind)
	}
}
