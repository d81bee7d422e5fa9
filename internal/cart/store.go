// Package cart holds the per-session cart store: the in-memory line items of
// one shopper, written through to a repository and observable by listeners.
package cart

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/utafrali/furnishop/internal/domain"
	"github.com/utafrali/furnishop/internal/repository"
	apperrors "github.com/utafrali/furnishop/pkg/errors"
)

// Op names the kind of mutation that produced a Change.
type Op string

// Mutation kinds.
const (
	OpAdd    Op = "add"
	OpUpdate Op = "update"
	OpRemove Op = "remove"
	OpClear  Op = "clear"
)

// Change is delivered to listeners after every effective mutation. State is
// a private copy owned by the receiving listener.
type Change struct {
	SessionID string
	Op        Op
	ProductID string
	State     domain.CartState
}

// Listener observes cart changes. Listeners run synchronously while the store
// is locked, so they must not call back into the same Store.
type Listener func(ctx context.Context, change Change)

const defaultPersistTimeout = 2 * time.Second

// Store is the cart of one session. It is safe for concurrent use.
//
// Every effective mutation is applied in memory, then persisted, then
// announced to listeners. Persistence is best effort: failures are logged
// and the in-memory state stays authoritative.
type Store struct {
	mu        sync.Mutex
	sessionID string
	state     domain.CartState
	repo      repository.CartRepository
	logger    *slog.Logger

	listeners []subscription
	nextSubID int

	persistTimeout time.Duration
	// dirty is set while the repository is behind the in-memory state.
	dirty bool
}

type subscription struct {
	id int
	fn Listener
}

// NewStore creates a store for sessionID seeded with initial, which is
// copied. repo may be nil for a purely in-memory cart.
func NewStore(sessionID string, initial domain.CartState, repo repository.CartRepository, logger *slog.Logger) *Store {
	return &Store{
		sessionID:      sessionID,
		state:          initial.Clone(),
		repo:           repo,
		logger:         logger,
		persistTimeout: defaultPersistTimeout,
	}
}

// SessionID returns the session this store belongs to.
func (s *Store) SessionID() string {
	return s.sessionID
}

// Add puts one unit of product in the cart.
func (s *Store) Add(ctx context.Context, product domain.Product) error {
	return s.AddItem(ctx, product, 1)
}

// AddItem adds quantity units of product. An existing line is incremented and
// keeps the snapshot it was created with; otherwise a new line is appended.
func (s *Store) AddItem(ctx context.Context, product domain.Product, quantity int) error {
	if product.ID == "" {
		return apperrors.InvalidInput("product id is required")
	}
	if quantity <= 0 {
		return apperrors.InvalidInput("quantity must be greater than 0")
	}
	if product.Price < 0 {
		return apperrors.InvalidInput("price must not be negative")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if i := s.state.FindItemIndex(product.ID); i >= 0 {
		newQty := s.state.Items[i].Quantity + quantity
		if newQty > domain.MaxQuantityPerItem {
			return apperrors.InvalidInput(fmt.Sprintf("quantity must not exceed %d", domain.MaxQuantityPerItem))
		}
		s.state.Items[i].Quantity = newQty
	} else {
		if quantity > domain.MaxQuantityPerItem {
			return apperrors.InvalidInput(fmt.Sprintf("quantity must not exceed %d", domain.MaxQuantityPerItem))
		}
		if len(s.state.Items) >= domain.MaxItems {
			return apperrors.InvalidInput(fmt.Sprintf("cart must not contain more than %d items", domain.MaxItems))
		}
		snapshot := product
		snapshot.Images = append([]string(nil), product.Images...)
		s.state.Items = append(s.state.Items, domain.LineItem{Product: snapshot, Quantity: quantity})
	}

	s.commit(ctx, OpAdd, product.ID)
	return nil
}

// UpdateQuantity sets the quantity of a line. A quantity <= 0 removes the
// line. An unknown product is a no-op: no line is created and nothing is
// persisted or announced.
func (s *Store) UpdateQuantity(ctx context.Context, productID string, quantity int) error {
	if quantity > domain.MaxQuantityPerItem {
		return apperrors.InvalidInput(fmt.Sprintf("quantity must not exceed %d", domain.MaxQuantityPerItem))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.state.FindItemIndex(productID)
	if i < 0 {
		return nil
	}

	if quantity <= 0 {
		s.removeAt(i)
		s.commit(ctx, OpRemove, productID)
		return nil
	}

	if s.state.Items[i].Quantity == quantity {
		return nil
	}
	s.state.Items[i].Quantity = quantity
	s.commit(ctx, OpUpdate, productID)
	return nil
}

// RemoveItem drops the line for productID if there is one.
func (s *Store) RemoveItem(ctx context.Context, productID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.state.FindItemIndex(productID)
	if i < 0 {
		return
	}
	s.removeAt(i)
	s.commit(ctx, OpRemove, productID)
}

// Clear empties the cart and drops its persisted record.
func (s *Store) Clear(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.IsEmpty() {
		return
	}
	s.state.Items = []domain.LineItem{}
	s.commit(ctx, OpClear, "")
}

// Items returns a copy of the lines in insertion order.
func (s *Store) Items() []domain.LineItem {
	return s.Snapshot().Items
}

// Snapshot returns a deep copy of the whole cart.
func (s *Store) Snapshot() domain.CartState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// TotalPrice returns the cart total in minor units.
func (s *Store) TotalPrice() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.TotalPrice()
}

// TotalItems returns the number of units in the cart.
func (s *Store) TotalItems() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.TotalItems()
}

// Subscribe registers fn for every later change and returns a function that
// removes it. Listeners are called in subscription order.
func (s *Store) Subscribe(fn Listener) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextSubID++
	id := s.nextSubID
	s.listeners = append(s.listeners, subscription{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			for i, sub := range s.listeners {
				if sub.id == id {
					s.listeners = append(s.listeners[:i:i], s.listeners[i+1:]...)
					return
				}
			}
		})
	}
}

func (s *Store) removeAt(i int) {
	items := make([]domain.LineItem, 0, len(s.state.Items)-1)
	items = append(items, s.state.Items[:i]...)
	s.state.Items = append(items, s.state.Items[i+1:]...)
}

// commit persists and announces the current state. Callers hold s.mu.
func (s *Store) commit(ctx context.Context, op Op, productID string) {
	cartMutations.WithLabelValues(string(op)).Inc()
	s.persist(ctx, op)

	for _, sub := range s.listeners {
		sub.fn(ctx, Change{
			SessionID: s.sessionID,
			Op:        op,
			ProductID: productID,
			State:     s.state.Clone(),
		})
	}
}

func (s *Store) persist(ctx context.Context, op Op) {
	if s.repo == nil {
		return
	}

	// A client that disconnects mid-request must not abort the write.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.persistTimeout)
	defer cancel()

	if err := s.write(ctx, op == OpClear); err != nil {
		s.dirty = true
		cartPersistFailures.Inc()
		s.logger.WarnContext(ctx, "failed to persist cart",
			slog.String("session_id", s.sessionID),
			slog.String("op", string(op)),
			slog.String("error", err.Error()),
		)
		return
	}
	s.dirty = false
}

// write stores the current state. A cleared cart drops the record; if that
// fails an empty record is written instead so the old lines cannot come back
// on the next load.
func (s *Store) write(ctx context.Context, clear bool) error {
	if !clear {
		return s.repo.Save(ctx, s.sessionID, s.state)
	}

	delErr := s.repo.Delete(ctx, s.sessionID)
	if delErr == nil {
		return nil
	}
	if err := s.repo.Save(ctx, s.sessionID, s.state); err != nil {
		return fmt.Errorf("delete: %w; save empty: %w", delErr, err)
	}
	return nil
}

// Dirty reports whether the last write to the repository failed.
func (s *Store) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty
}

// Flush retries the write when an earlier one failed and reports whether the
// repository now matches memory.
func (s *Store) Flush(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.dirty || s.repo == nil {
		return true
	}
	op := OpUpdate
	if s.state.IsEmpty() {
		op = OpClear
	}
	s.persist(ctx, op)
	return !s.dirty
}
