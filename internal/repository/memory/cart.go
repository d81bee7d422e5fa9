// Package memory holds in-process repository implementations used in tests
// and when the service runs without Redis.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/utafrali/furnishop/internal/domain"
	"github.com/utafrali/furnishop/internal/repository"
)

// CartRepository stores carts as encoded JSON so that loads go through the
// same decode and validation path as the Redis implementation.
type CartRepository struct {
	mu      sync.Mutex
	records map[string][]byte

	// SaveErr, when set, is returned by every Save.
	SaveErr error
	saves   int
}

// NewCartRepository creates an empty in-memory cart repository.
func NewCartRepository() *CartRepository {
	return &CartRepository{records: make(map[string][]byte)}
}

// Load implements repository.CartRepository.
func (r *CartRepository) Load(_ context.Context, sessionID string) (domain.CartState, error) {
	r.mu.Lock()
	data, ok := r.records[sessionID]
	r.mu.Unlock()

	if !ok {
		return domain.CartState{Items: []domain.LineItem{}}, nil
	}

	var state domain.CartState
	if err := json.Unmarshal(data, &state); err != nil {
		return domain.CartState{}, fmt.Errorf("%w: %w", repository.ErrCorruptCart, err)
	}
	if err := state.Validate(); err != nil {
		return domain.CartState{}, fmt.Errorf("%w: %w", repository.ErrCorruptCart, err)
	}
	if state.Items == nil {
		state.Items = []domain.LineItem{}
	}
	return state, nil
}

// Save implements repository.CartRepository.
func (r *CartRepository) Save(_ context.Context, sessionID string, state domain.CartState) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.saves++
	if r.SaveErr != nil {
		return r.SaveErr
	}
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal cart: %w", err)
	}
	r.records[sessionID] = data
	return nil
}

// Delete implements repository.CartRepository.
func (r *CartRepository) Delete(_ context.Context, sessionID string) error {
	r.mu.Lock()
	delete(r.records, sessionID)
	r.mu.Unlock()
	return nil
}

// Put stores raw bytes for sessionID, bypassing encoding.
func (r *CartRepository) Put(sessionID string, raw []byte) {
	r.mu.Lock()
	r.records[sessionID] = raw
	r.mu.Unlock()
}

// Raw returns the stored bytes for sessionID.
func (r *CartRepository) Raw(sessionID string) ([]byte, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	data, ok := r.records[sessionID]
	return data, ok
}

// Saves returns how many times Save was called.
func (r *CartRepository) Saves() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.saves
}
