package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/utafrali/furnishop/internal/cart"
	"github.com/utafrali/furnishop/internal/domain"
	"github.com/utafrali/furnishop/internal/repository"
	apperrors "github.com/utafrali/furnishop/pkg/errors"
	"github.com/utafrali/furnishop/pkg/phone"
	"github.com/utafrali/furnishop/pkg/validator"
)

// DefaultSubmitTimeout bounds the order write when none is configured.
const DefaultSubmitTimeout = 10 * time.Second

// lockGrace keeps the checkout lock alive past the end of the order write.
const lockGrace = 5 * time.Second

// OrderEventPublisher announces created orders.
type OrderEventPublisher interface {
	PublishOrderCreated(ctx context.Context, order *domain.Order) error
}

// SubmitInput is the checkout form.
type SubmitInput struct {
	CustomerName  string `json:"customer_name" validate:"required,min=2,max=100"`
	CustomerPhone string `json:"customer_phone" validate:"required,ruphone"`
}

// CheckoutService turns a session's cart into an order.
type CheckoutService struct {
	registry      *cart.Registry
	orders        repository.OrderRepository
	lock          repository.CheckoutLock
	events        OrderEventPublisher
	submitTimeout time.Duration
	logger        *slog.Logger
}

// NewCheckoutService creates a new checkout service. events may be nil when
// no broker is configured.
func NewCheckoutService(
	registry *cart.Registry,
	orders repository.OrderRepository,
	lock repository.CheckoutLock,
	events OrderEventPublisher,
	submitTimeout time.Duration,
	logger *slog.Logger,
) *CheckoutService {
	if submitTimeout <= 0 {
		submitTimeout = DefaultSubmitTimeout
	}
	return &CheckoutService{
		registry:      registry,
		orders:        orders,
		lock:          lock,
		events:        events,
		submitTimeout: submitTimeout,
		logger:        logger,
	}
}

// Submit validates the form, writes one order built from a single snapshot
// of the cart and clears the cart once the write succeeds. If the write
// fails the cart is left exactly as it was. Only one submission per session
// may be in flight; a second one gets a conflict.
func (s *CheckoutService) Submit(ctx context.Context, sessionID string, input SubmitInput) (*domain.Order, error) {
	input.CustomerName = strings.TrimSpace(input.CustomerName)
	input.CustomerPhone = strings.TrimSpace(input.CustomerPhone)
	if err := validator.Validate(input); err != nil {
		return nil, err
	}

	store, err := s.registry.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	token, acquired, err := s.lock.Acquire(ctx, sessionID, s.submitTimeout+lockGrace)
	if err != nil {
		return nil, apperrors.ServiceUnavailable("checkout temporarily unavailable", err)
	}
	if !acquired {
		return nil, apperrors.Conflict("order submission already in progress")
	}
	defer s.release(ctx, sessionID, token)

	snapshot := store.Snapshot()
	if snapshot.IsEmpty() {
		return nil, apperrors.InvalidInput("cart is empty")
	}

	order := buildOrder(input, snapshot)

	writeCtx, cancel := context.WithTimeout(ctx, s.submitTimeout)
	defer cancel()

	if err := s.orders.Create(writeCtx, order); err != nil {
		s.logger.ErrorContext(ctx, "order submission failed",
			slog.String("session_id", sessionID),
			slog.String("error", err.Error()),
		)
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, apperrors.ServiceUnavailable("order submission timed out, please try again", err)
		}
		return nil, apperrors.ServiceUnavailable("failed to submit order, please try again", err)
	}

	store.Clear(ctx)

	if s.events != nil {
		if err := s.events.PublishOrderCreated(ctx, order); err != nil {
			s.logger.ErrorContext(ctx, "failed to publish order.created event",
				slog.String("order_id", order.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	s.logger.InfoContext(ctx, "order submitted",
		slog.String("order_id", order.ID),
		slog.String("session_id", sessionID),
		slog.Int("items", len(order.Items)),
		slog.Int64("total_price", order.TotalPrice),
	)

	return order, nil
}

func (s *CheckoutService) release(ctx context.Context, sessionID, token string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()

	if err := s.lock.Release(ctx, sessionID, token); err != nil {
		s.logger.WarnContext(ctx, "failed to release checkout lock",
			slog.String("session_id", sessionID),
			slog.String("error", err.Error()),
		)
	}
}

// buildOrder transcribes the cart snapshot. Each line keeps the price the
// product had when it was put in the cart.
func buildOrder(input SubmitInput, snapshot domain.CartState) *domain.Order {
	now := time.Now().UTC()
	orderID := uuid.New().String()

	items := make([]domain.OrderItem, len(snapshot.Items))
	for i, line := range snapshot.Items {
		items[i] = domain.OrderItem{
			ID:              uuid.New().String(),
			OrderID:         orderID,
			ProductID:       line.Product.ID,
			ProductName:     line.Product.Name,
			Quantity:        line.Quantity,
			PriceAtPurchase: line.Product.Price,
		}
	}

	return &domain.Order{
		ID:            orderID,
		CustomerName:  input.CustomerName,
		CustomerPhone: phone.Normalize(input.CustomerPhone),
		TotalPrice:    snapshot.TotalPrice(),
		Status:        domain.OrderStatusNew,
		Items:         items,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

