package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/furnishop/internal/cart"
	"github.com/utafrali/furnishop/internal/domain"
	"github.com/utafrali/furnishop/internal/repository/memory"
	apperrors "github.com/utafrali/furnishop/pkg/errors"
	"github.com/utafrali/furnishop/pkg/validator"
)

type checkoutFixture struct {
	svc      *CheckoutService
	orders   *mockOrderRepository
	events   *mockPublisher
	carts    *memory.CartRepository
	registry *cart.Registry
}

func newCheckoutFixture(t *testing.T, timeout time.Duration) *checkoutFixture {
	t.Helper()
	carts := memory.NewCartRepository()
	reg := cart.NewRegistry(carts, newTestLogger(), time.Hour)
	orders := new(mockOrderRepository)
	events := new(mockPublisher)
	return &checkoutFixture{
		svc:      NewCheckoutService(reg, orders, memory.NewCheckoutLock(), events, timeout, newTestLogger()),
		orders:   orders,
		events:   events,
		carts:    carts,
		registry: reg,
	}
}

func (f *checkoutFixture) fill(t *testing.T, session string) *cart.Store {
	t.Helper()
	ctx := context.Background()
	store, err := f.registry.Get(ctx, session)
	require.NoError(t, err)
	require.NoError(t, store.AddItem(ctx, domain.Product{ID: "sofa", Name: "Sofa", Price: 45000}, 2))
	require.NoError(t, store.AddItem(ctx, domain.Product{ID: "chair", Name: "Chair", Price: 15000}, 1))
	return store
}

func validInput() SubmitInput {
	return SubmitInput{CustomerName: "  Ivan Petrov ", CustomerPhone: "8 (999) 123-45-67"}
}

func TestSubmit_CreatesOrderAndClearsCart(t *testing.T) {
	f := newCheckoutFixture(t, time.Second)
	store := f.fill(t, "sess-1")

	var created *domain.Order
	f.orders.On("Create", mock.Anything, mock.AnythingOfType("*domain.Order")).
		Run(func(args mock.Arguments) { created = args.Get(1).(*domain.Order) }).
		Return(nil)
	f.events.On("PublishOrderCreated", mock.Anything, mock.AnythingOfType("*domain.Order")).Return(nil)

	order, err := f.svc.Submit(context.Background(), "sess-1", validInput())
	require.NoError(t, err)

	assert.Same(t, created, order)
	assert.NotEmpty(t, order.ID)
	assert.Equal(t, "Ivan Petrov", order.CustomerName)
	assert.Equal(t, "+79991234567", order.CustomerPhone)
	assert.Equal(t, domain.OrderStatusNew, order.Status)
	assert.Equal(t, int64(105000), order.TotalPrice)
	assert.Equal(t, order.TotalPrice, order.ItemsTotal())

	require.Len(t, order.Items, 2)
	assert.Equal(t, "sofa", order.Items[0].ProductID)
	assert.Equal(t, "Sofa", order.Items[0].ProductName)
	assert.Equal(t, 2, order.Items[0].Quantity)
	assert.Equal(t, int64(45000), order.Items[0].PriceAtPurchase)
	assert.Equal(t, order.ID, order.Items[1].OrderID)
	assert.NotEqual(t, order.Items[0].ID, order.Items[1].ID)

	assert.Zero(t, store.TotalItems())
	_, persisted := f.carts.Raw("sess-1")
	assert.False(t, persisted)
	f.events.AssertExpectations(t)
}

func TestSubmit_UsesSnapshotPriceNotCatalog(t *testing.T) {
	f := newCheckoutFixture(t, time.Second)
	store, err := f.registry.Get(context.Background(), "sess-1")
	require.NoError(t, err)
	require.NoError(t, store.AddItem(context.Background(), domain.Product{ID: "sofa", Name: "Sofa", Price: 40000}, 1))

	f.orders.On("Create", mock.Anything, mock.Anything).Return(nil)
	f.events.On("PublishOrderCreated", mock.Anything, mock.Anything).Return(nil)

	order, err := f.svc.Submit(context.Background(), "sess-1", validInput())
	require.NoError(t, err)
	assert.Equal(t, int64(40000), order.Items[0].PriceAtPurchase)
}

func TestSubmit_ValidationErrors(t *testing.T) {
	tests := []struct {
		name  string
		input SubmitInput
		field string
	}{
		{"name too short", SubmitInput{CustomerName: " A ", CustomerPhone: "+79991234567"}, "customer_name"},
		{"name missing", SubmitInput{CustomerName: "   ", CustomerPhone: "+79991234567"}, "customer_name"},
		{"bad phone", SubmitInput{CustomerName: "Ivan", CustomerPhone: "12345"}, "customer_phone"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newCheckoutFixture(t, time.Second)
			store := f.fill(t, "sess-1")

			_, err := f.svc.Submit(context.Background(), "sess-1", tt.input)

			var valErr *validator.ValidationError
			require.ErrorAs(t, err, &valErr)
			assert.Contains(t, valErr.Fields(), tt.field)
			assert.Equal(t, 3, store.TotalItems())
			f.orders.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
		})
	}
}

func TestSubmit_NameOfHundredRunesIsAccepted(t *testing.T) {
	f := newCheckoutFixture(t, time.Second)
	f.fill(t, "sess-1")
	f.orders.On("Create", mock.Anything, mock.Anything).Return(nil)
	f.events.On("PublishOrderCreated", mock.Anything, mock.Anything).Return(nil)

	name := ""
	for i := 0; i < 100; i++ {
		name += "Я"
	}
	_, err := f.svc.Submit(context.Background(), "sess-1", SubmitInput{CustomerName: name, CustomerPhone: "+79991234567"})
	require.NoError(t, err)
}

func TestSubmit_EmptyCart(t *testing.T) {
	f := newCheckoutFixture(t, time.Second)

	_, err := f.svc.Submit(context.Background(), "sess-1", validInput())
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))
	assert.Contains(t, err.Error(), "cart is empty")
}

func TestSubmit_FailedWriteLeavesCartUntouched(t *testing.T) {
	f := newCheckoutFixture(t, time.Second)
	store := f.fill(t, "sess-1")

	before, err := json.Marshal(store.Snapshot())
	require.NoError(t, err)
	rawBefore, _ := f.carts.Raw("sess-1")

	f.orders.On("Create", mock.Anything, mock.Anything).Return(errors.New("connection reset"))

	_, err = f.svc.Submit(context.Background(), "sess-1", validInput())
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrServiceUnavail))

	after, err := json.Marshal(store.Snapshot())
	require.NoError(t, err)
	rawAfter, _ := f.carts.Raw("sess-1")

	assert.Equal(t, before, after)
	assert.Equal(t, rawBefore, rawAfter)
	f.events.AssertNotCalled(t, "PublishOrderCreated", mock.Anything, mock.Anything)

	// The lock is released, so the shopper can retry.
	f.orders.ExpectedCalls = nil
	f.orders.On("Create", mock.Anything, mock.Anything).Return(nil)
	f.events.On("PublishOrderCreated", mock.Anything, mock.Anything).Return(nil)
	_, err = f.svc.Submit(context.Background(), "sess-1", validInput())
	require.NoError(t, err)
}

func TestSubmit_TimeoutIsAFailure(t *testing.T) {
	f := newCheckoutFixture(t, 20*time.Millisecond)
	store := f.fill(t, "sess-1")

	f.orders.On("Create", mock.Anything, mock.Anything).
		Return(context.DeadlineExceeded).
		Run(func(args mock.Arguments) {
			<-args.Get(0).(context.Context).Done()
		})

	_, err := f.svc.Submit(context.Background(), "sess-1", validInput())
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrServiceUnavail))
	assert.Contains(t, err.Error(), "timed out")
	assert.Equal(t, 3, store.TotalItems())
}

func TestSubmit_ConcurrentSubmitIsRejected(t *testing.T) {
	f := newCheckoutFixture(t, time.Second)
	f.fill(t, "sess-1")

	entered := make(chan struct{})
	release := make(chan struct{})
	f.orders.On("Create", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) {
			close(entered)
			<-release
		}).
		Return(nil).Once()
	f.events.On("PublishOrderCreated", mock.Anything, mock.Anything).Return(nil)

	var wg sync.WaitGroup
	var firstErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, firstErr = f.svc.Submit(context.Background(), "sess-1", validInput())
	}()

	<-entered
	_, err := f.svc.Submit(context.Background(), "sess-1", validInput())
	assert.True(t, errors.Is(err, apperrors.ErrConflict))

	close(release)
	wg.Wait()
	require.NoError(t, firstErr)
	f.orders.AssertNumberOfCalls(t, "Create", 1)
}

func TestSubmit_LockUnavailable(t *testing.T) {
	carts := memory.NewCartRepository()
	reg := cart.NewRegistry(carts, newTestLogger(), time.Hour)
	lock := new(mockCheckoutLock)
	lock.On("Acquire", mock.Anything, "sess-1", 5*time.Second+lockGrace).Return("", false, errors.New("redis down"))
	orders := new(mockOrderRepository)

	svc := NewCheckoutService(reg, orders, lock, nil, 5*time.Second, newTestLogger())
	_, err := svc.Submit(context.Background(), "sess-1", validInput())

	assert.True(t, errors.Is(err, apperrors.ErrServiceUnavail))
	orders.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestSubmit_LockOutlivesWriteAndIsReleasedByToken(t *testing.T) {
	carts := memory.NewCartRepository()
	reg := cart.NewRegistry(carts, newTestLogger(), time.Hour)
	store, err := reg.Get(context.Background(), "sess-1")
	require.NoError(t, err)
	require.NoError(t, store.Add(context.Background(), domain.Product{ID: "sofa", Price: 100}))

	lock := new(mockCheckoutLock)
	lock.On("Acquire", mock.Anything, "sess-1", 3*time.Second+lockGrace).Return("tok-1", true, nil)
	lock.On("Release", mock.Anything, "sess-1", "tok-1").Return(nil)
	orders := new(mockOrderRepository)
	orders.On("Create", mock.Anything, mock.Anything).Return(nil)

	svc := NewCheckoutService(reg, orders, lock, nil, 3*time.Second, newTestLogger())
	_, err = svc.Submit(context.Background(), "sess-1", validInput())
	require.NoError(t, err)
	lock.AssertExpectations(t)
}

func TestSubmit_PublishFailureDoesNotFailSubmission(t *testing.T) {
	f := newCheckoutFixture(t, time.Second)
	f.fill(t, "sess-1")

	f.orders.On("Create", mock.Anything, mock.Anything).Return(nil)
	f.events.On("PublishOrderCreated", mock.Anything, mock.Anything).Return(errors.New("broker down"))

	order, err := f.svc.Submit(context.Background(), "sess-1", validInput())
	require.NoError(t, err)
	assert.NotNil(t, order)
}

func TestSubmit_WithoutPublisher(t *testing.T) {
	carts := memory.NewCartRepository()
	reg := cart.NewRegistry(carts, newTestLogger(), time.Hour)
	orders := new(mockOrderRepository)
	orders.On("Create", mock.Anything, mock.Anything).Return(nil)

	store, err := reg.Get(context.Background(), "sess-1")
	require.NoError(t, err)
	require.NoError(t, store.Add(context.Background(), domain.Product{ID: "sofa", Price: 100}))

	svc := NewCheckoutService(reg, orders, memory.NewCheckoutLock(), nil, 0, newTestLogger())
	_, err = svc.Submit(context.Background(), "sess-1", validInput())
	require.NoError(t, err)
	assert.Equal(t, DefaultSubmitTimeout, svc.submitTimeout)
}
