package event

import (
	"context"
	"log/slog"
	"time"

	"github.com/utafrali/furnishop/internal/domain"
)

const inlineNotifyTimeout = 15 * time.Second

// InlinePublisher hands created orders straight to the notifier. It stands in
// for the Kafka producer when no brokers are configured.
type InlinePublisher struct {
	notifier OrderNotifier
	logger   *slog.Logger
}

// NewInlinePublisher creates a publisher that notifies in-process.
func NewInlinePublisher(notifier OrderNotifier, logger *slog.Logger) *InlinePublisher {
	return &InlinePublisher{notifier: notifier, logger: logger}
}

// PublishOrderCreated notifies about order. The order is already stored, so
// the call is detached from the request and outlives a disconnecting client.
func (p *InlinePublisher) PublishOrderCreated(ctx context.Context, order *domain.Order) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), inlineNotifyTimeout)
	defer cancel()

	if err := p.notifier.NotifyOrder(ctx, order); err != nil {
		return err
	}
	p.logger.InfoContext(ctx, "order notification sent", slog.String("order_id", order.ID))
	return nil
}
