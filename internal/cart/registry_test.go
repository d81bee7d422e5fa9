package cart

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/furnishop/internal/domain"
	"github.com/utafrali/furnishop/internal/repository/memory"
	apperrors "github.com/utafrali/furnishop/pkg/errors"
)

func TestRegistry_GetReturnsSameStore(t *testing.T) {
	reg := NewRegistry(memory.NewCartRepository(), testLogger(), time.Minute)
	ctx := context.Background()

	a, err := reg.Get(ctx, "sess-1")
	require.NoError(t, err)
	b, err := reg.Get(ctx, "sess-1")
	require.NoError(t, err)
	c, err := reg.Get(ctx, "sess-2")
	require.NoError(t, err)

	assert.Same(t, a, b)
	assert.NotSame(t, a, c)
	assert.Equal(t, 2, reg.Len())
}

func TestRegistry_RehydratesFromRepository(t *testing.T) {
	repo := memory.NewCartRepository()
	ctx := context.Background()

	first := NewRegistry(repo, testLogger(), time.Minute)
	s, err := first.Get(ctx, "sess-1")
	require.NoError(t, err)
	require.NoError(t, s.AddItem(ctx, product("sofa", 45000), 2))
	require.NoError(t, s.Add(ctx, product("chair", 15000)))

	// A fresh registry stands in for a restarted process.
	second := NewRegistry(repo, testLogger(), time.Minute)
	restored, err := second.Get(ctx, "sess-1")
	require.NoError(t, err)

	assert.Equal(t, s.Snapshot(), restored.Snapshot())
	assert.Equal(t, int64(105000), restored.TotalPrice())
}

func TestRegistry_CorruptRecordStartsEmpty(t *testing.T) {
	repo := memory.NewCartRepository()
	repo.Put("sess-1", []byte(`{"items":[{"product":{"id":"a"},"quantity":-2}]}`))
	reg := NewRegistry(repo, testLogger(), time.Minute)

	s, err := reg.Get(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.Empty(t, s.Items())
}

// failingRepo fails every Load with a transport error.
type failingRepo struct {
	*memory.CartRepository
	loads int
}

func (r *failingRepo) Load(context.Context, string) (domain.CartState, error) {
	r.loads++
	return domain.CartState{}, errors.New("dial tcp: connection refused")
}

func TestRegistry_LoadOutageIsNotCached(t *testing.T) {
	repo := &failingRepo{CartRepository: memory.NewCartRepository()}
	reg := NewRegistry(repo, testLogger(), time.Minute)
	ctx := context.Background()

	_, err := reg.Get(ctx, "sess-1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrServiceUnavail))

	_, err = reg.Get(ctx, "sess-1")
	require.Error(t, err)
	assert.Equal(t, 2, repo.loads)
	assert.Zero(t, reg.Len())
}

func TestRegistry_EmptySessionID(t *testing.T) {
	reg := NewRegistry(memory.NewCartRepository(), testLogger(), 0)
	_, err := reg.Get(context.Background(), "")
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))
}

func TestRegistry_SubscribeSeesEverySession(t *testing.T) {
	reg := NewRegistry(memory.NewCartRepository(), testLogger(), time.Minute)
	ctx := context.Background()

	early, err := reg.Get(ctx, "early")
	require.NoError(t, err)

	rec := &recorder{}
	unsub := reg.Subscribe(rec.listen)

	late, err := reg.Get(ctx, "late")
	require.NoError(t, err)

	require.NoError(t, early.Add(ctx, product("a", 1)))
	require.NoError(t, late.Add(ctx, product("b", 1)))

	require.Len(t, rec.changes, 2)
	assert.Equal(t, "early", rec.changes[0].SessionID)
	assert.Equal(t, "late", rec.changes[1].SessionID)

	unsub()
	require.NoError(t, late.Add(ctx, product("b", 1)))
	assert.Len(t, rec.changes, 2)
}

func TestRegistry_SweepEvictsIdle(t *testing.T) {
	reg := NewRegistry(memory.NewCartRepository(), testLogger(), 10*time.Minute)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	reg.now = func() time.Time { return now }
	ctx := context.Background()

	_, err := reg.Get(ctx, "idle")
	require.NoError(t, err)

	now = now.Add(8 * time.Minute)
	_, err = reg.Get(ctx, "busy")
	require.NoError(t, err)

	now = now.Add(5 * time.Minute)
	assert.Equal(t, 1, reg.Sweep(ctx))
	assert.Equal(t, 1, reg.Len())

	// Touching a session keeps it alive.
	_, err = reg.Get(ctx, "busy")
	require.NoError(t, err)
	now = now.Add(9 * time.Minute)
	assert.Zero(t, reg.Sweep(ctx))
}

func TestRegistry_EvictedSessionReloads(t *testing.T) {
	repo := memory.NewCartRepository()
	reg := NewRegistry(repo, testLogger(), time.Minute)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	reg.now = func() time.Time { return now }
	ctx := context.Background()

	s, err := reg.Get(ctx, "sess-1")
	require.NoError(t, err)
	require.NoError(t, s.AddItem(ctx, product("a", 10), 3))

	now = now.Add(2 * time.Minute)
	require.Equal(t, 1, reg.Sweep(ctx))

	again, err := reg.Get(ctx, "sess-1")
	require.NoError(t, err)
	assert.NotSame(t, s, again)
	assert.Equal(t, 3, again.TotalItems())
}

func TestRegistry_SweepKeepsUnflushedStore(t *testing.T) {
	repo := newFlakyRepo()
	reg := NewRegistry(repo, testLogger(), time.Minute)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	reg.now = func() time.Time { return now }
	ctx := context.Background()

	s, err := reg.Get(ctx, "sess-1")
	require.NoError(t, err)
	require.NoError(t, s.AddItem(ctx, product("a", 10), 3))

	// The order went through but the cart record could not be dropped.
	repo.set(true, true)
	s.Clear(ctx)

	now = now.Add(2 * time.Minute)
	assert.Zero(t, reg.Sweep(ctx))
	assert.Equal(t, 1, reg.Len())

	repo.set(false, false)
	assert.Equal(t, 1, reg.Sweep(ctx))
	assert.Zero(t, reg.Len())

	again, err := reg.Get(ctx, "sess-1")
	require.NoError(t, err)
	assert.Zero(t, again.TotalItems(), "submitted cart must not come back")
}

func TestRegistry_RunStopsOnCancel(t *testing.T) {
	reg := NewRegistry(memory.NewCartRepository(), testLogger(), time.Minute)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		reg.Run(ctx, time.Millisecond)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
