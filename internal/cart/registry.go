package cart

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/utafrali/furnishop/internal/domain"
	"github.com/utafrali/furnishop/internal/repository"
	apperrors "github.com/utafrali/furnishop/pkg/errors"
)

// DefaultIdleTTL is how long an untouched session stays in memory.
const DefaultIdleTTL = 30 * time.Minute

// Registry maps session IDs to their Store, loading a session's cart from
// the repository the first time it is used. Idle stores are evicted by Sweep;
// their state is already persisted and is reloaded on next use.
type Registry struct {
	repo    repository.CartRepository
	logger  *slog.Logger
	idleTTL time.Duration
	now     func() time.Time

	mu     sync.Mutex
	stores map[string]*entry

	lmu       sync.RWMutex
	listeners []subscription
	nextSubID int
}

type entry struct {
	store    *Store
	lastUsed time.Time
}

// NewRegistry creates a registry backed by repo. An idleTTL <= 0 uses
// DefaultIdleTTL.
func NewRegistry(repo repository.CartRepository, logger *slog.Logger, idleTTL time.Duration) *Registry {
	if idleTTL <= 0 {
		idleTTL = DefaultIdleTTL
	}
	return &Registry{
		repo:    repo,
		logger:  logger,
		idleTTL: idleTTL,
		now:     time.Now,
		stores:  make(map[string]*entry),
	}
}

// Get returns the store for sessionID, loading it on first use. A corrupt
// record is discarded with a warning and the session starts empty. Any other
// load failure is reported as service unavailable and nothing is cached, so
// the real cart is not overwritten once the repository recovers.
func (r *Registry) Get(ctx context.Context, sessionID string) (*Store, error) {
	if sessionID == "" {
		return nil, apperrors.InvalidInput("session id is required")
	}

	if s := r.lookup(sessionID); s != nil {
		return s, nil
	}

	state, err := r.repo.Load(ctx, sessionID)
	if err != nil {
		if !errors.Is(err, repository.ErrCorruptCart) {
			return nil, apperrors.ServiceUnavailable("cart storage unavailable", err)
		}
		r.logger.WarnContext(ctx, "discarding unreadable cart",
			slog.String("session_id", sessionID),
			slog.String("error", err.Error()),
		)
		state = domain.CartState{Items: []domain.LineItem{}}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Another request may have loaded the same session meanwhile.
	if e, ok := r.stores[sessionID]; ok {
		e.lastUsed = r.now()
		return e.store, nil
	}

	s := NewStore(sessionID, state, r.repo, r.logger)
	s.Subscribe(r.fanout)
	r.stores[sessionID] = &entry{store: s, lastUsed: r.now()}
	cartSessionsActive.Set(float64(len(r.stores)))

	return s, nil
}

func (r *Registry) lookup(sessionID string) *Store {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.stores[sessionID]
	if !ok {
		return nil
	}
	e.lastUsed = r.now()
	return e.store
}

// Subscribe registers fn for changes of every session, current and future.
func (r *Registry) Subscribe(fn Listener) (unsubscribe func()) {
	r.lmu.Lock()
	r.nextSubID++
	id := r.nextSubID
	r.listeners = append(r.listeners, subscription{id: id, fn: fn})
	r.lmu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			r.lmu.Lock()
			defer r.lmu.Unlock()
			for i, sub := range r.listeners {
				if sub.id == id {
					r.listeners = append(r.listeners[:i:i], r.listeners[i+1:]...)
					return
				}
			}
		})
	}
}

func (r *Registry) fanout(ctx context.Context, change Change) {
	r.lmu.RLock()
	listeners := r.listeners
	r.lmu.RUnlock()

	for i, sub := range listeners {
		if i > 0 {
			change.State = change.State.Clone()
		}
		sub.fn(ctx, change)
	}
}

// Len returns the number of sessions held in memory.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.stores)
}

// Sweep evicts stores idle for longer than the idle TTL and returns how many
// were dropped. A store whose last write failed is flushed first and kept in
// memory while the repository is still behind it.
func (r *Registry) Sweep(ctx context.Context) int {
	r.mu.Lock()
	cutoff := r.now().Add(-r.idleTTL)
	var idle []string
	for id, e := range r.stores {
		if e.lastUsed.Before(cutoff) {
			idle = append(idle, id)
		}
	}
	r.mu.Unlock()

	evicted := 0
	for _, id := range idle {
		if r.evict(ctx, id, cutoff) {
			evicted++
		}
	}

	r.mu.Lock()
	cartSessionsActive.Set(float64(len(r.stores)))
	r.mu.Unlock()
	return evicted
}

// evict flushes an idle store without holding the registry lock, since store
// listeners may call back into the registry, then drops it if it is still
// idle.
func (r *Registry) evict(ctx context.Context, sessionID string, cutoff time.Time) bool {
	r.mu.Lock()
	e, ok := r.stores[sessionID]
	r.mu.Unlock()
	if !ok {
		return false
	}

	if !e.store.Flush(ctx) {
		r.logger.WarnContext(ctx, "keeping idle cart in memory, repository write still failing",
			slog.String("session_id", sessionID),
		)
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.stores[sessionID]; !ok || cur != e || !e.lastUsed.Before(cutoff) {
		return false
	}
	delete(r.stores, sessionID)
	return true
}

// Run sweeps every interval until ctx is done.
func (r *Registry) Run(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.Sweep(ctx); n > 0 {
				r.logger.Debug("evicted idle cart sessions", slog.Int("count", n))
			}
		}
	}
}
