package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/utafrali/furnishop/internal/cart"
	"github.com/utafrali/furnishop/internal/domain"
	"github.com/utafrali/furnishop/internal/repository"
	apperrors "github.com/utafrali/furnishop/pkg/errors"
)

// CartService resolves a session's cart and applies shopper actions to it.
// Every method returns the cart as it stands after the action.
type CartService struct {
	registry *cart.Registry
	products repository.ProductRepository
	logger   *slog.Logger
}

// NewCartService creates a new cart service.
func NewCartService(registry *cart.Registry, products repository.ProductRepository, logger *slog.Logger) *CartService {
	return &CartService{
		registry: registry,
		products: products,
		logger:   logger,
	}
}

// GetCart returns the cart of sessionID, empty if the session is new.
func (s *CartService) GetCart(ctx context.Context, sessionID string) (domain.CartState, error) {
	store, err := s.registry.Get(ctx, sessionID)
	if err != nil {
		return domain.CartState{}, err
	}
	return store.Snapshot(), nil
}

// AddItem snapshots the product from the catalog and adds quantity units.
// The catalog price at this moment is what the shopper will pay.
func (s *CartService) AddItem(ctx context.Context, sessionID, productID string, quantity int) (domain.CartState, error) {
	if productID == "" {
		return domain.CartState{}, apperrors.InvalidInput("product_id is required")
	}
	if quantity <= 0 {
		return domain.CartState{}, apperrors.InvalidInput("quantity must be greater than 0")
	}

	store, err := s.registry.Get(ctx, sessionID)
	if err != nil {
		return domain.CartState{}, err
	}

	product, err := s.products.GetSnapshot(ctx, productID)
	if err != nil {
		return domain.CartState{}, fmt.Errorf("get product snapshot: %w", err)
	}

	if err := store.AddItem(ctx, *product, quantity); err != nil {
		return domain.CartState{}, err
	}

	s.logger.DebugContext(ctx, "item added to cart",
		slog.String("session_id", sessionID),
		slog.String("product_id", productID),
		slog.Int("quantity", quantity),
	)
	return store.Snapshot(), nil
}

// UpdateItem sets the quantity of a line; zero or less removes it.
func (s *CartService) UpdateItem(ctx context.Context, sessionID, productID string, quantity int) (domain.CartState, error) {
	store, err := s.registry.Get(ctx, sessionID)
	if err != nil {
		return domain.CartState{}, err
	}
	if err := store.UpdateQuantity(ctx, productID, quantity); err != nil {
		return domain.CartState{}, err
	}
	return store.Snapshot(), nil
}

// RemoveItem drops a line if present.
func (s *CartService) RemoveItem(ctx context.Context, sessionID, productID string) (domain.CartState, error) {
	store, err := s.registry.Get(ctx, sessionID)
	if err != nil {
		return domain.CartState{}, err
	}
	store.RemoveItem(ctx, productID)
	return store.Snapshot(), nil
}

// ClearCart empties the cart.
func (s *CartService) ClearCart(ctx context.Context, sessionID string) error {
	store, err := s.registry.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	store.Clear(ctx)
	return nil
}
