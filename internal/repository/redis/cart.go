package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/utafrali/furnishop/internal/domain"
	"github.com/utafrali/furnishop/internal/repository"
)

const cartKeyPrefix = "cart:"

// CartRepository implements repository.CartRepository using Redis. Each
// session is one JSON value with a sliding TTL.
type CartRepository struct {
	client redis.Cmdable
	ttl    time.Duration
}

// NewCartRepository creates a new Redis-backed cart repository.
func NewCartRepository(client redis.Cmdable, ttl time.Duration) *CartRepository {
	return &CartRepository{
		client: client,
		ttl:    ttl,
	}
}

// Load retrieves a cart by session ID.
func (r *CartRepository) Load(ctx context.Context, sessionID string) (domain.CartState, error) {
	data, err := r.client.Get(ctx, cartKeyPrefix+sessionID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.CartState{Items: []domain.LineItem{}}, nil
		}
		return domain.CartState{}, fmt.Errorf("redis get cart: %w", err)
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

// Save persists a cart with the configured TTL.
func (r *CartRepository) Save(ctx context.Context, sessionID string, state domain.CartState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal cart: %w", err)
	}

	if err := r.client.Set(ctx, cartKeyPrefix+sessionID, data, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set cart: %w", err)
	}

	return nil
}

// Delete removes a cart by session ID.
func (r *CartRepository) Delete(ctx context.Context, sessionID string) error {
	if err := r.client.Del(ctx, cartKeyPrefix+sessionID).Err(); err != nil {
		return fmt.Errorf("redis del cart: %w", err)
	}
	return nil
}
