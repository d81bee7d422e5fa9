package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type heldLock struct {
	token   string
	expires time.Time
}

// CheckoutLock is an in-process repository.CheckoutLock.
type CheckoutLock struct {
	mu   sync.Mutex
	held map[string]heldLock
	now  func() time.Time
}

// NewCheckoutLock creates an in-memory checkout lock.
func NewCheckoutLock() *CheckoutLock {
	return &CheckoutLock{held: make(map[string]heldLock), now: time.Now}
}

// Acquire implements repository.CheckoutLock.
func (l *CheckoutLock) Acquire(_ context.Context, sessionID string, ttl time.Duration) (string, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if h, ok := l.held[sessionID]; ok && now.Before(h.expires) {
		return "", false, nil
	}
	token := uuid.NewString()
	l.held[sessionID] = heldLock{token: token, expires: now.Add(ttl)}
	return token, true, nil
}

// Release implements repository.CheckoutLock.
func (l *CheckoutLock) Release(_ context.Context, sessionID, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if h, ok := l.held[sessionID]; ok && h.token == token {
		delete(l.held, sessionID)
	}
	return nil
}
