package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/furnishop/internal/domain"
	"github.com/utafrali/furnishop/internal/repository"
	"github.com/utafrali/furnishop/pkg/database"
	apperrors "github.com/utafrali/furnishop/pkg/errors"
)

// --- Test Helpers ---

func newTestOrderRepo(t *testing.T) (*OrderRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := database.NewMockPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewOrderRepository(mock), mock
}

func sampleOrder() *domain.Order {
	now := time.Date(2026, 5, 12, 9, 30, 0, 0, time.UTC)
	return &domain.Order{
		ID:            "8f0c2c1e-6a57-4d8a-9d1f-6d0b0c1a2b3c",
		CustomerName:  "Анна Петрова",
		CustomerPhone: "+79161234567",
		TotalPrice:    9000000,
		Status:        domain.OrderStatusNew,
		CreatedAt:     now,
		UpdatedAt:     now,
		Items: []domain.OrderItem{
			{
				ID:              "item-1",
				OrderID:         "8f0c2c1e-6a57-4d8a-9d1f-6d0b0c1a2b3c",
				ProductID:       "prod-sofa",
				ProductName:     "Диван",
				Quantity:        1,
				PriceAtPurchase: 4500000,
			},
			{
				ID:              "item-2",
				OrderID:         "8f0c2c1e-6a57-4d8a-9d1f-6d0b0c1a2b3c",
				ProductID:       "prod-chair",
				ProductName:     "Стул",
				Quantity:        3,
				PriceAtPurchase: 1500000,
			},
		},
	}
}

func expectOrderInsert(mock pgxmock.PgxPoolIface, o *domain.Order) *pgxmock.ExpectedExec {
	return mock.ExpectExec("INSERT INTO orders").
		WithArgs(o.ID, o.CustomerName, o.CustomerPhone, o.TotalPrice, o.Status, o.CreatedAt, o.UpdatedAt)
}

func expectItemInsert(mock pgxmock.PgxPoolIface, item domain.OrderItem) *pgxmock.ExpectedExec {
	return mock.ExpectExec("INSERT INTO order_items").
		WithArgs(item.ID, item.OrderID, item.ProductID, item.ProductName, item.Quantity, item.PriceAtPurchase)
}

// --- Create ---

func TestOrderRepository_Create_Success(t *testing.T) {
	repo, mock := newTestOrderRepo(t)
	o := sampleOrder()

	mock.ExpectBegin()
	expectOrderInsert(mock, o).WillReturnResult(pgxmock.NewResult("INSERT", 1))
	for _, item := range o.Items {
		expectItemInsert(mock, item).WillReturnResult(pgxmock.NewResult("INSERT", 1))
	}
	mock.ExpectCommit()

	require.NoError(t, repo.Create(context.Background(), o))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_Create_NullProductRef(t *testing.T) {
	repo, mock := newTestOrderRepo(t)
	o := sampleOrder()
	o.Items = o.Items[:1]
	o.Items[0].ProductID = ""

	mock.ExpectBegin()
	expectOrderInsert(mock, o).WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO order_items").
		WithArgs(o.Items[0].ID, o.ID, nil, o.Items[0].ProductName, 1, o.Items[0].PriceAtPurchase).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Create(context.Background(), o))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_Create_BeginError(t *testing.T) {
	repo, mock := newTestOrderRepo(t)

	mock.ExpectBegin().WillReturnError(errors.New("connection refused"))

	err := repo.Create(context.Background(), sampleOrder())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "begin transaction")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_Create_ItemInsertErrorRollsBack(t *testing.T) {
	repo, mock := newTestOrderRepo(t)
	o := sampleOrder()

	mock.ExpectBegin()
	expectOrderInsert(mock, o).WillReturnResult(pgxmock.NewResult("INSERT", 1))
	expectItemInsert(mock, o.Items[0]).WillReturnResult(pgxmock.NewResult("INSERT", 1))
	expectItemInsert(mock, o.Items[1]).WillReturnError(errors.New("constraint violation"))
	mock.ExpectRollback()

	err := repo.Create(context.Background(), o)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert order item")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_Create_CommitError(t *testing.T) {
	repo, mock := newTestOrderRepo(t)
	o := sampleOrder()
	o.Items = nil

	mock.ExpectBegin()
	expectOrderInsert(mock, o).WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit().WillReturnError(errors.New("serialization failure"))

	err := repo.Create(context.Background(), o)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "commit transaction")
}

// --- GetByID ---

var orderColumns = []string{
	"id", "customer_name", "customer_phone", "total_price", "status", "created_at", "updated_at",
}

func TestOrderRepository_GetByID_Success(t *testing.T) {
	repo, mock := newTestOrderRepo(t)
	o := sampleOrder()

	itemsJSON, err := json.Marshal(o.Items)
	require.NoError(t, err)

	rows := pgxmock.NewRows(append(orderColumns, "items")).AddRow(
		o.ID, o.CustomerName, o.CustomerPhone, o.TotalPrice, o.Status, o.CreatedAt, o.UpdatedAt, itemsJSON,
	)
	mock.ExpectQuery("SELECT").WithArgs(o.ID).WillReturnRows(rows)

	got, err := repo.GetByID(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, o, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_GetByID_NoItems(t *testing.T) {
	repo, mock := newTestOrderRepo(t)
	o := sampleOrder()

	rows := pgxmock.NewRows(append(orderColumns, "items")).AddRow(
		o.ID, o.CustomerName, o.CustomerPhone, o.TotalPrice, o.Status, o.CreatedAt, o.UpdatedAt, []byte("[]"),
	)
	mock.ExpectQuery("SELECT").WithArgs(o.ID).WillReturnRows(rows)

	got, err := repo.GetByID(context.Background(), o.ID)
	require.NoError(t, err)
	assert.NotNil(t, got.Items)
	assert.Empty(t, got.Items)
}

func TestOrderRepository_GetByID_NotFound(t *testing.T) {
	repo, mock := newTestOrderRepo(t)

	mock.ExpectQuery("SELECT").WithArgs("missing").WillReturnError(pgx.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
}

// --- List ---

func TestOrderRepository_List_WithStatusFilter(t *testing.T) {
	repo, mock := newTestOrderRepo(t)
	o := sampleOrder()
	status := domain.OrderStatusNew

	rows := pgxmock.NewRows(append(orderColumns, "total_count")).AddRow(
		o.ID, o.CustomerName, o.CustomerPhone, o.TotalPrice, o.Status, o.CreatedAt, o.UpdatedAt, 41,
	)
	mock.ExpectQuery("FROM orders").
		WithArgs(status, 20, 20).
		WillReturnRows(rows)

	itemRows := pgxmock.NewRows([]string{"id", "order_id", "product_id", "product_name", "quantity", "price_at_purchase"})
	for _, it := range o.Items {
		itemRows.AddRow(it.ID, it.OrderID, it.ProductID, it.ProductName, it.Quantity, it.PriceAtPurchase)
	}
	mock.ExpectQuery("FROM order_items").
		WithArgs([]string{o.ID}).
		WillReturnRows(itemRows)

	orders, total, err := repo.List(context.Background(), repository.OrderFilter{Status: &status, Page: 2, PerPage: 20})
	require.NoError(t, err)
	assert.Equal(t, 41, total)
	require.Len(t, orders, 1)
	assert.Equal(t, o.Items, orders[0].Items)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_List_EmptySkipsItemQuery(t *testing.T) {
	repo, mock := newTestOrderRepo(t)

	mock.ExpectQuery("FROM orders").
		WithArgs(20, 0).
		WillReturnRows(pgxmock.NewRows(append(orderColumns, "total_count")))

	orders, total, err := repo.List(context.Background(), repository.OrderFilter{})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.NotNil(t, orders)
	assert.Empty(t, orders)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_List_QueryError(t *testing.T) {
	repo, mock := newTestOrderRepo(t)

	mock.ExpectQuery("FROM orders").WithArgs(10, 0).WillReturnError(errors.New("timeout"))

	_, _, err := repo.List(context.Background(), repository.OrderFilter{PerPage: 10})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "list orders")
}

// --- UpdateStatus ---

func TestOrderRepository_UpdateStatus(t *testing.T) {
	repo, mock := newTestOrderRepo(t)

	mock.ExpectExec("UPDATE orders").
		WithArgs(domain.OrderStatusProcessed, pgxmock.AnyArg(), "order-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, repo.UpdateStatus(context.Background(), "order-1", domain.OrderStatusProcessed))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_UpdateStatus_NotFound(t *testing.T) {
	repo, mock := newTestOrderRepo(t)

	mock.ExpectExec("UPDATE orders").
		WithArgs(domain.OrderStatusProcessed, pgxmock.AnyArg(), "order-x").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := repo.UpdateStatus(context.Background(), "order-x", domain.OrderStatusProcessed)
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
}
