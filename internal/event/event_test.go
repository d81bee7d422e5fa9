package event

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/furnishop/internal/cart"
	"github.com/utafrali/furnishop/internal/domain"
	pkgkafka "github.com/utafrali/furnishop/pkg/kafka"
	"github.com/utafrali/furnishop/pkg/logger"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeWriter struct {
	mu   sync.Mutex
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

func newTestProducer(w *fakeWriter) *Producer {
	return NewProducer(pkgkafka.NewProducerWithWriter(w, nil, testLogger()), testLogger())
}

func decode(t *testing.T, msg kafka.Message) *pkgkafka.Event {
	t.Helper()
	ev, err := pkgkafka.UnmarshalEvent(msg.Value)
	require.NoError(t, err)
	return ev
}

func sampleOrder() *domain.Order {
	const id = "0b7e7c1c-8a4e-4c39-9f1e-3d0f6a1f2b11"
	created := time.Date(2026, 5, 4, 9, 30, 0, 0, time.UTC)
	return &domain.Order{
		ID:            id,
		CustomerName:  "Ivan Petrov",
		CustomerPhone: "+79991234567",
		TotalPrice:    105000,
		Status:        domain.OrderStatusNew,
		Items: []domain.OrderItem{
			{ID: "i-1", OrderID: id, ProductID: "sofa", ProductName: "Sofa", Quantity: 2, PriceAtPurchase: 45000},
			{ID: "i-2", OrderID: id, ProductID: "chair", ProductName: "Chair", Quantity: 1, PriceAtPurchase: 15000},
		},
		CreatedAt: created,
		UpdatedAt: created,
	}
}

func TestTopics(t *testing.T) {
	assert.Equal(t, "shop.cart.updated", TopicCartUpdated)
	assert.Equal(t, "shop.cart.cleared", TopicCartCleared)
	assert.Equal(t, "shop.order.created", TopicOrderCreated)
}

func TestPublishOrderCreated(t *testing.T) {
	w := &fakeWriter{}
	p := newTestProducer(w)
	order := sampleOrder()

	ctx := logger.WithCorrelationID(context.Background(), "req-7")
	require.NoError(t, p.PublishOrderCreated(ctx, order))

	require.Len(t, w.msgs, 1)
	msg := w.msgs[0]
	assert.Equal(t, TopicOrderCreated, msg.Topic)
	assert.Equal(t, order.ID, string(msg.Key))

	ev := decode(t, msg)
	assert.Equal(t, TopicOrderCreated, ev.EventType)
	assert.Equal(t, AggregateTypeOrder, ev.AggregateType)
	assert.Equal(t, Source, ev.Source)
	assert.Equal(t, "req-7", ev.CorrelationID)

	var data OrderCreatedData
	require.NoError(t, ev.UnmarshalData(&data))
	assert.Equal(t, order, data.Order())
}

func TestPublishOrderCreated_WriteFailure(t *testing.T) {
	w := &fakeWriter{err: errors.New("broker down")}
	p := newTestProducer(w)

	err := p.PublishOrderCreated(context.Background(), sampleOrder())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker down")
}

func cartChange(op cart.Op) cart.Change {
	return cart.Change{
		SessionID: "sess-1",
		Op:        op,
		ProductID: "sofa",
		State: domain.CartState{Items: []domain.LineItem{
			{Product: domain.Product{ID: "sofa", Name: "Sofa", Price: 45000}, Quantity: 2},
		}},
	}
}

func TestPublishCartChange_Updated(t *testing.T) {
	w := &fakeWriter{}
	p := newTestProducer(w)

	require.NoError(t, p.PublishCartChange(context.Background(), cartChange(cart.OpAdd)))

	require.Len(t, w.msgs, 1)
	assert.Equal(t, TopicCartUpdated, w.msgs[0].Topic)
	assert.Equal(t, "sess-1", string(w.msgs[0].Key))

	var data CartUpdatedData
	require.NoError(t, decode(t, w.msgs[0]).UnmarshalData(&data))
	assert.Equal(t, "add", data.Op)
	assert.Equal(t, int64(90000), data.TotalPrice)
	assert.Equal(t, 2, data.TotalItems)
	require.Len(t, data.Items, 1)
	assert.Equal(t, "sofa", data.Items[0].ProductID)
}

func TestPublishCartChange_Cleared(t *testing.T) {
	w := &fakeWriter{}
	p := newTestProducer(w)

	require.NoError(t, p.PublishCartChange(context.Background(), cart.Change{SessionID: "sess-1", Op: cart.OpClear}))

	require.Len(t, w.msgs, 1)
	assert.Equal(t, TopicCartCleared, w.msgs[0].Topic)

	var data CartClearedData
	require.NoError(t, decode(t, w.msgs[0]).UnmarshalData(&data))
	assert.Equal(t, "sess-1", data.SessionID)
}

func TestCartListener_SwallowsErrors(t *testing.T) {
	w := &fakeWriter{err: errors.New("broker down")}
	p := newTestProducer(w)

	assert.NotPanics(t, func() {
		p.CartListener()(context.Background(), cartChange(cart.OpUpdate))
	})
}

func TestCartListener_PublishesEveryStoreMutation(t *testing.T) {
	w := &fakeWriter{}
	p := newTestProducer(w)

	s := cart.NewStore("sess-1", domain.CartState{}, nil, testLogger())
	s.Subscribe(p.CartListener())

	ctx := context.Background()
	require.NoError(t, s.Add(ctx, domain.Product{ID: "sofa", Price: 45000}))
	s.Clear(ctx)

	require.Len(t, w.msgs, 2)
	assert.Equal(t, TopicCartUpdated, w.msgs[0].Topic)
	assert.Equal(t, TopicCartCleared, w.msgs[1].Topic)
}

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) NotifyOrder(ctx context.Context, order *domain.Order) error {
	args := m.Called(ctx, order)
	return args.Error(0)
}

func orderEvent(t *testing.T, order *domain.Order) *pkgkafka.Event {
	t.Helper()
	w := &fakeWriter{}
	require.NoError(t, newTestProducer(w).PublishOrderCreated(context.Background(), order))
	return decode(t, w.msgs[0])
}

func TestConsumerHandler_OrderCreated(t *testing.T) {
	notifier := new(mockNotifier)
	order := sampleOrder()
	notifier.On("NotifyOrder", mock.Anything, order).Return(nil)

	h := NewConsumerHandler(notifier, testLogger())
	require.NoError(t, h.Handle(context.Background(), orderEvent(t, order)))

	notifier.AssertExpectations(t)
}

func TestConsumerHandler_NotifyFailureIsReturned(t *testing.T) {
	notifier := new(mockNotifier)
	notifier.On("NotifyOrder", mock.Anything, mock.Anything).Return(errors.New("telegram down"))

	h := NewConsumerHandler(notifier, testLogger())
	err := h.Handle(context.Background(), orderEvent(t, sampleOrder()))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "telegram down")
}

func TestConsumerHandler_MalformedPayloadIsDropped(t *testing.T) {
	notifier := new(mockNotifier)
	h := NewConsumerHandler(notifier, testLogger())

	ev := &pkgkafka.Event{EventID: "e-1", EventType: TopicOrderCreated, Data: []byte(`"not an object"`)}
	require.NoError(t, h.Handle(context.Background(), ev))
	notifier.AssertNotCalled(t, "NotifyOrder", mock.Anything, mock.Anything)
}

func TestConsumerHandler_UnknownEventIgnored(t *testing.T) {
	notifier := new(mockNotifier)
	h := NewConsumerHandler(notifier, testLogger())

	require.NoError(t, h.Handle(context.Background(), &pkgkafka.Event{EventType: "shop.something.else"}))
	notifier.AssertNotCalled(t, "NotifyOrder", mock.Anything, mock.Anything)
}

func TestConsumerHandler_IdempotentRedelivery(t *testing.T) {
	notifier := new(mockNotifier)
	notifier.On("NotifyOrder", mock.Anything, mock.Anything).Return(nil).Once()

	h := NewConsumerHandler(notifier, testLogger())
	handle := pkgkafka.IdempotentHandler(pkgkafka.NewMemoryIdempotencyStore(time.Hour), h.Handle, testLogger())

	ev := orderEvent(t, sampleOrder())
	require.NoError(t, handle(context.Background(), ev))
	require.NoError(t, handle(context.Background(), ev))

	notifier.AssertNumberOfCalls(t, "NotifyOrder", 1)
}

func TestInlinePublisher_NotifiesDirectly(t *testing.T) {
	notifier := new(mockNotifier)
	order := sampleOrder()
	notifier.On("NotifyOrder", mock.Anything, order).Return(nil)

	p := NewInlinePublisher(notifier, testLogger())
	require.NoError(t, p.PublishOrderCreated(context.Background(), order))

	notifier.AssertExpectations(t)
}

func TestInlinePublisher_OutlivesCanceledRequest(t *testing.T) {
	notifier := new(mockNotifier)
	var notifyCtxErr error
	notifier.On("NotifyOrder", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { notifyCtxErr = args.Get(0).(context.Context).Err() }).
		Return(nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := NewInlinePublisher(notifier, testLogger())
	require.NoError(t, p.PublishOrderCreated(ctx, sampleOrder()))
	assert.NoError(t, notifyCtxErr)
}

func TestInlinePublisher_ReturnsNotifierError(t *testing.T) {
	notifier := new(mockNotifier)
	notifier.On("NotifyOrder", mock.Anything, mock.Anything).Return(errors.New("telegram down"))

	p := NewInlinePublisher(notifier, testLogger())
	assert.EqualError(t, p.PublishOrderCreated(context.Background(), sampleOrder()), "telegram down")
}
