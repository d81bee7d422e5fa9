package repository

import (
	"context"
	"errors"
	"time"

	"github.com/utafrali/furnishop/internal/domain"
)

// ErrCorruptCart marks a stored cart that cannot be decoded or breaks the
// cart invariants. Callers treat it as "no cart" rather than as an outage.
var ErrCorruptCart = errors.New("corrupt cart record")

// CartRepository persists the cart of one session.
type CartRepository interface {
	// Load returns the stored cart. A session with no record yields an empty
	// state and a nil error; undecodable or invalid records yield an error
	// wrapping ErrCorruptCart.
	Load(ctx context.Context, sessionID string) (domain.CartState, error)

	// Save overwrites the stored cart and refreshes its expiry.
	Save(ctx context.Context, sessionID string, state domain.CartState) error

	// Delete drops the record. Deleting a missing record is not an error.
	Delete(ctx context.Context, sessionID string) error
}

// CheckoutLock marks a session as having a submission in flight.
type CheckoutLock interface {
	// Acquire returns an owner token and true when the lock was taken, or
	// false when another submission already holds it. The lock expires on
	// its own after ttl.
	Acquire(ctx context.Context, sessionID string, ttl time.Duration) (token string, ok bool, err error)

	// Release drops the lock if it is still held under token. A lock that
	// expired and was taken by another submission is left alone.
	Release(ctx context.Context, sessionID, token string) error
}

// OrderFilter defines filter criteria for listing orders.
type OrderFilter struct {
	Status  *string
	Page    int
	PerPage int
}

// OrderRepository defines the persistence operations for orders.
type OrderRepository interface {
	// Create inserts an order and its items atomically.
	Create(ctx context.Context, order *domain.Order) error

	// GetByID retrieves an order by its ID, including items.
	GetByID(ctx context.Context, id string) (*domain.Order, error)

	// List returns orders matching filter, newest first, with the total count.
	List(ctx context.Context, filter OrderFilter) ([]domain.Order, int, error)

	// UpdateStatus changes the status of an order.
	UpdateStatus(ctx context.Context, id string, status string) error
}

// ProductFilter defines filter criteria for the catalog listing. Only active
// products are ever listed.
type ProductFilter struct {
	CategoryID *string
	Search     *string
	Sort       string
	Page       int
	PerPage    int
}

// ProductRepository reads the catalog.
type ProductRepository interface {
	// GetSnapshot returns an active product as a cart snapshot.
	GetSnapshot(ctx context.Context, id string) (*domain.Product, error)

	// List returns active products matching filter with the total count.
	List(ctx context.Context, filter ProductFilter) ([]domain.CatalogProduct, int, error)

	// ListCategories returns all categories ordered by name.
	ListCategories(ctx context.Context) ([]domain.Category, error)
}
