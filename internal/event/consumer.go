package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/utafrali/furnishop/internal/domain"
	pkgkafka "github.com/utafrali/furnishop/pkg/kafka"
)

// ConsumerGroupID is the group the order notifier consumes with.
const ConsumerGroupID = "furnishop-notifier"

// OrderNotifier is told about every new order.
type OrderNotifier interface {
	NotifyOrder(ctx context.Context, order *domain.Order) error
}

// ConsumerHandler routes incoming Kafka events to the appropriate handler.
type ConsumerHandler struct {
	notifier OrderNotifier
	logger   *slog.Logger
}

// NewConsumerHandler creates a new event consumer handler.
func NewConsumerHandler(notifier OrderNotifier, logger *slog.Logger) *ConsumerHandler {
	return &ConsumerHandler{
		notifier: notifier,
		logger:   logger,
	}
}

// Handle processes an incoming Kafka event based on its event type.
func (h *ConsumerHandler) Handle(ctx context.Context, event *pkgkafka.Event) error {
	switch event.EventType {
	case TopicOrderCreated:
		return h.handleOrderCreated(ctx, event)
	default:
		h.logger.WarnContext(ctx, "unknown event type received",
			slog.String("event_type", event.EventType),
			slog.String("event_id", event.EventID),
		)
		return nil
	}
}

func (h *ConsumerHandler) handleOrderCreated(ctx context.Context, event *pkgkafka.Event) error {
	var data OrderCreatedData
	if err := event.UnmarshalData(&data); err != nil {
		// A payload that does not decode never will; retrying is pointless.
		h.logger.ErrorContext(ctx, "dropping malformed order.created event",
			slog.String("event_id", event.EventID),
			slog.String("error", err.Error()),
		)
		return nil
	}

	if err := h.notifier.NotifyOrder(ctx, data.Order()); err != nil {
		return fmt.Errorf("notify order %s: %w", data.ID, err)
	}

	h.logger.InfoContext(ctx, "order notification sent",
		slog.String("event_id", event.EventID),
		slog.String("order_id", data.ID),
	)
	return nil
}

// NewOrderConsumer creates the consumer of order.created. Handled event IDs
// are remembered in store so redelivered events are not announced twice.
func NewOrderConsumer(
	brokers []string,
	handler *ConsumerHandler,
	store pkgkafka.IdempotencyStore,
	deadLetter pkgkafka.MessageWriter,
	logger *slog.Logger,
) *pkgkafka.Consumer {
	cfg := pkgkafka.ConsumerConfig{
		Brokers: brokers,
		GroupID: ConsumerGroupID,
		Topic:   TopicOrderCreated,
	}
	return pkgkafka.NewConsumer(cfg, pkgkafka.IdempotentHandler(store, handler.Handle, logger), deadLetter, logger)
}
