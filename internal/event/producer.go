package event

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/utafrali/furnishop/internal/cart"
	"github.com/utafrali/furnishop/internal/domain"
	pkgkafka "github.com/utafrali/furnishop/pkg/kafka"
	"github.com/utafrali/furnishop/pkg/logger"
)

// Topics produced by the shop.
var (
	TopicCartUpdated  = pkgkafka.Topic("cart", "updated")
	TopicCartCleared  = pkgkafka.Topic("cart", "cleared")
	TopicOrderCreated = pkgkafka.Topic("order", "created")
)

// Aggregate type constants.
const (
	AggregateTypeCart  = "cart"
	AggregateTypeOrder = "order"
)

// Source identifies events produced by this service.
const Source = "furnishop"

// cartPublishTimeout bounds a cart event write. Cart listeners run while the
// cart is locked, so a slow broker must not stall the shopper for long.
const cartPublishTimeout = time.Second

// CartItemData is one cart line in a cart.updated payload.
type CartItemData struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	Price     int64  `json:"price"`
	Quantity  int    `json:"quantity"`
}

// CartUpdatedData is the payload for a cart.updated event.
type CartUpdatedData struct {
	SessionID  string         `json:"session_id"`
	Op         string         `json:"op"`
	ProductID  string         `json:"product_id,omitempty"`
	Items      []CartItemData `json:"items"`
	TotalPrice int64          `json:"total_price"`
	TotalItems int            `json:"total_items"`
}

// CartClearedData is the payload for a cart.cleared event.
type CartClearedData struct {
	SessionID string `json:"session_id"`
}

// OrderItemData is one order line in an order.created payload.
type OrderItemData struct {
	ID              string `json:"id"`
	ProductID       string `json:"product_id,omitempty"`
	ProductName     string `json:"product_name"`
	Quantity        int    `json:"quantity"`
	PriceAtPurchase int64  `json:"price_at_purchase"`
}

// OrderCreatedData is the payload for an order.created event: the full order.
type OrderCreatedData struct {
	ID            string          `json:"id"`
	CustomerName  string          `json:"customer_name"`
	CustomerPhone string          `json:"customer_phone"`
	TotalPrice    int64           `json:"total_price"`
	Status        string          `json:"status"`
	Items         []OrderItemData `json:"items"`
	CreatedAt     time.Time       `json:"created_at"`
}

// Order converts the payload back into a domain order.
func (d OrderCreatedData) Order() *domain.Order {
	items := make([]domain.OrderItem, len(d.Items))
	for i, it := range d.Items {
		items[i] = domain.OrderItem{
			ID:              it.ID,
			OrderID:         d.ID,
			ProductID:       it.ProductID,
			ProductName:     it.ProductName,
			Quantity:        it.Quantity,
			PriceAtPurchase: it.PriceAtPurchase,
		}
	}
	return &domain.Order{
		ID:            d.ID,
		CustomerName:  d.CustomerName,
		CustomerPhone: d.CustomerPhone,
		TotalPrice:    d.TotalPrice,
		Status:        d.Status,
		Items:         items,
		CreatedAt:     d.CreatedAt,
		UpdatedAt:     d.CreatedAt,
	}
}

// Producer publishes cart and order events to Kafka.
type Producer struct {
	kafka  *pkgkafka.Producer
	logger *slog.Logger
}

// NewProducer creates a new event producer.
func NewProducer(kafka *pkgkafka.Producer, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  kafka,
		logger: logger,
	}
}

// PublishOrderCreated publishes an order.created event with the full order.
func (p *Producer) PublishOrderCreated(ctx context.Context, order *domain.Order) error {
	items := make([]OrderItemData, len(order.Items))
	for i, it := range order.Items {
		items[i] = OrderItemData{
			ID:              it.ID,
			ProductID:       it.ProductID,
			ProductName:     it.ProductName,
			Quantity:        it.Quantity,
			PriceAtPurchase: it.PriceAtPurchase,
		}
	}

	data := OrderCreatedData{
		ID:            order.ID,
		CustomerName:  order.CustomerName,
		CustomerPhone: order.CustomerPhone,
		TotalPrice:    order.TotalPrice,
		Status:        order.Status,
		Items:         items,
		CreatedAt:     order.CreatedAt,
	}

	return p.publish(ctx, TopicOrderCreated, order.ID, AggregateTypeOrder, data)
}

// PublishCartChange publishes cart.cleared for a clear and cart.updated for
// every other mutation.
func (p *Producer) PublishCartChange(ctx context.Context, change cart.Change) error {
	if change.Op == cart.OpClear {
		return p.publish(ctx, TopicCartCleared, change.SessionID, AggregateTypeCart,
			CartClearedData{SessionID: change.SessionID})
	}

	items := make([]CartItemData, len(change.State.Items))
	for i, it := range change.State.Items {
		items[i] = CartItemData{
			ProductID: it.Product.ID,
			Name:      it.Product.Name,
			Price:     it.Product.Price,
			Quantity:  it.Quantity,
		}
	}

	data := CartUpdatedData{
		SessionID:  change.SessionID,
		Op:         string(change.Op),
		ProductID:  change.ProductID,
		Items:      items,
		TotalPrice: change.State.TotalPrice(),
		TotalItems: change.State.TotalItems(),
	}
	return p.publish(ctx, TopicCartUpdated, change.SessionID, AggregateTypeCart, data)
}

// CartListener returns a cart listener that publishes every change. Publish
// failures are logged and never reach the shopper.
func (p *Producer) CartListener() cart.Listener {
	return func(ctx context.Context, change cart.Change) {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cartPublishTimeout)
		defer cancel()

		if err := p.PublishCartChange(ctx, change); err != nil {
			p.logger.WarnContext(ctx, "failed to publish cart event",
				slog.String("session_id", change.SessionID),
				slog.String("op", string(change.Op)),
				slog.String("error", err.Error()),
			)
		}
	}
}

func (p *Producer) publish(ctx context.Context, topic, aggregateID, aggregateType string, data any) error {
	event, err := pkgkafka.NewEvent(topic, aggregateID, aggregateType, Source, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", topic, err)
	}
	if id := logger.CorrelationIDFromContext(ctx); id != "" {
		event.WithCorrelationID(id)
	}

	if err := p.kafka.Publish(ctx, topic, event); err != nil {
		return fmt.Errorf("publish %s event: %w", topic, err)
	}
	return nil
}
