package storage

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/storefront/internal/core/domain"
)

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return db, mock
}

var orderCols = []string{"id", "user_id", "name", "email", "phone", "address", "city", "state",
	"postal_code", "country", "total", "status", "created_at", "updated_at"}

func testOrder() domain.Order {
	uid := int64(7)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return domain.Order{
		ID:       "order-1",
		UserID:   &uid,
		Contact:  domain.Contact{Name: "Jane", Email: "jane@example.com", Phone: "555"},
		Shipping: domain.ShippingAddress{Address: "1 Main", City: "Springfield", State: "IL", PostalCode: "62701", Country: "US"},
		Total:    decimal.RequireFromString("250.00"),
		Status:   domain.OrderStatusPending,
		Items: []domain.OrderItem{
			{OrderID: "order-1", ProductID: 1, ProductName: "A", Price: decimal.RequireFromString("100.00"), Quantity: 2},
			{OrderID: "order-1", ProductID: 2, ProductName: "B", Price: decimal.RequireFromString("50.00"), Quantity: 1},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func orderRow(rows *sqlmock.Rows, id string, status string) *sqlmock.Rows {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return rows.AddRow(id, int64(7), "Jane", "jane@example.com", "555", "1 Main", "Springfield", "IL",
		"62701", "US", "250.00", status, now, now)
}

func TestCreateOrder_WritesEverythingInOneTransaction(t *testing.T) {
	db, mock := newMockDB(t)
	adapter := NewMySQLAdapter(db)
	order := testOrder()
	event := domain.OutboxEvent{ID: "evt-1", AggregateID: order.ID, EventType: domain.EventOrderPlaced,
		Payload: []byte(`{"order_id":"order-1"}`), CreatedAt: order.CreatedAt}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO orders").
		WithArgs("order-1", sqlmock.AnyArg(), "Jane", "jane@example.com", "555", "1 Main", "Springfield",
			"IL", "62701", "US", sqlmock.AnyArg(), "pending", order.CreatedAt, order.UpdatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO order_items").
		WithArgs("order-1", int64(1), "A", sqlmock.AnyArg(), 2, order.CreatedAt).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO order_items").
		WithArgs("order-1", int64(2), "B", sqlmock.AnyArg(), 1, order.CreatedAt).
		WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectExec("INSERT INTO outbox_events").
		WithArgs("evt-1", "order-1", "OrderPlaced", event.Payload, event.CreatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM cart_lines WHERE user_id = ").
		WithArgs(int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	uid := int64(7)
	require.NoError(t, adapter.CreateOrder(context.Background(), order, event, &uid))
}

func TestCreateOrder_RollsBackOnItemFailure(t *testing.T) {
	db, mock := newMockDB(t)
	adapter := NewMySQLAdapter(db)
	order := testOrder()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO orders").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO order_items").WillReturnError(errors.New("lock wait timeout"))
	mock.ExpectRollback()

	uid := int64(7)
	err := adapter.CreateOrder(context.Background(), order, domain.OutboxEvent{}, &uid)
	assert.ErrorContains(t, err, "insert order item")
}

func TestGetOrder_LoadsItems(t *testing.T) {
	db, mock := newMockDB(t)
	adapter := NewMySQLAdapter(db)

	mock.ExpectQuery("SELECT (.+) FROM orders WHERE id = ").
		WithArgs("order-1").
		WillReturnRows(orderRow(sqlmock.NewRows(orderCols), "order-1", "shipped"))
	mock.ExpectQuery("FROM order_items WHERE order_id IN").
		WithArgs("order-1").
		WillReturnRows(sqlmock.NewRows([]string{"order_id", "product_id", "product_name", "price", "quantity"}).
			AddRow("order-1", int64(1), "A", "100.00", 2).
			AddRow("order-1", int64(2), "B", "50.00", 1))

	order, err := adapter.GetOrder(context.Background(), "order-1")
	require.NoError(t, err)

	assert.Equal(t, domain.OrderStatusShipped, order.Status)
	require.NotNil(t, order.UserID)
	assert.Equal(t, int64(7), *order.UserID)
	assert.Equal(t, "250.00", order.Total.StringFixed(2))
	require.Len(t, order.Items, 2)
	assert.True(t, order.Total.Equal(order.ItemsTotal()))
}

func TestGetOrder_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	adapter := NewMySQLAdapter(db)

	mock.ExpectQuery("FROM orders WHERE id = ").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(orderCols))

	_, err := adapter.GetOrder(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)
}

func TestListOrders_SearchStatusAndPaging(t *testing.T) {
	db, mock := newMockDB(t)
	adapter := NewMySQLAdapter(db)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM orders WHERE \(id LIKE \? OR name LIKE \? OR email LIKE \?\) AND status = \?`).
		WithArgs("%jane\\_d%", "%jane\\_d%", "%jane\\_d%", "pending").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(31))
	mock.ExpectQuery(`ORDER BY created_at DESC, id LIMIT \? OFFSET \?`).
		WithArgs("%jane\\_d%", "%jane\\_d%", "%jane\\_d%", "pending", 15, 15).
		WillReturnRows(orderRow(sqlmock.NewRows(orderCols), "order-16", "pending"))

	page, err := adapter.ListOrders(context.Background(), domain.OrderFilter{
		Search: "jane_d", Status: domain.OrderStatusPending, Page: 2, PerPage: 15,
	})
	require.NoError(t, err)

	assert.Equal(t, 31, page.Total)
	assert.Equal(t, 3, page.LastPage())
	require.Len(t, page.Orders, 1)
	assert.Equal(t, "order-16", page.Orders[0].ID)
}

func TestListOrders_NoFilter(t *testing.T) {
	db, mock := newMockDB(t)
	adapter := NewMySQLAdapter(db)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM orders$`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery("FROM orders ORDER BY").
		WithArgs(15, 0).
		WillReturnRows(sqlmock.NewRows(orderCols))

	page, err := adapter.ListOrders(context.Background(), domain.OrderFilter{Page: 1, PerPage: 15})
	require.NoError(t, err)
	assert.NotNil(t, page.Orders)
	assert.Empty(t, page.Orders)
}

func TestUpdateStatus_CompareAndSet(t *testing.T) {
	db, mock := newMockDB(t)
	adapter := NewMySQLAdapter(db)

	mock.ExpectExec("UPDATE orders SET status = ").
		WithArgs("processing", sqlmock.AnyArg(), "order-1", "pending").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, adapter.UpdateStatus(context.Background(), "order-1",
		domain.OrderStatusPending, domain.OrderStatusProcessing))
}

func TestUpdateStatus_LostRace(t *testing.T) {
	db, mock := newMockDB(t)
	adapter := NewMySQLAdapter(db)

	mock.ExpectExec("UPDATE orders SET status = ").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT EXISTS").WithArgs("order-1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(1))

	err := adapter.UpdateStatus(context.Background(), "order-1", domain.OrderStatusPending, domain.OrderStatusProcessing)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestUpdateStatus_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	adapter := NewMySQLAdapter(db)

	mock.ExpectExec("UPDATE orders SET status = ").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT EXISTS").WithArgs("nope").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(0))

	err := adapter.UpdateStatus(context.Background(), "nope", domain.OrderStatusPending, domain.OrderStatusProcessing)
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)
}

func TestGetProducts_SkipsMissing(t *testing.T) {
	db, mock := newMockDB(t)
	adapter := NewMySQLAdapter(db)
	now := time.Now()

	mock.ExpectQuery(`FROM products WHERE id IN \(\?, \?\)`).
		WithArgs(int64(1), int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "slug", "price", "stock_quantity", "image", "created_at", "updated_at"}).
			AddRow(int64(1), "A", "a", "100.00", 5, "", now, now))

	products, err := adapter.GetProducts(context.Background(), []int64{1, 2})
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "100.00", products[1].Price.StringFixed(2))
}

func TestGetProduct_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	adapter := NewMySQLAdapter(db)

	mock.ExpectQuery("FROM products WHERE id = ").WithArgs(int64(9)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := adapter.GetProduct(context.Background(), 9)
	assert.ErrorIs(t, err, domain.ErrProductNotFound)
}

func TestCreateUser_SetsID(t *testing.T) {
	db, mock := newMockDB(t)
	adapter := NewMySQLAdapter(db)

	mock.ExpectExec("INSERT INTO users").WillReturnResult(sqlmock.NewResult(42, 1))

	u := &domain.User{Name: "Jane", Email: "jane@example.com", PasswordHash: "hash"}
	require.NoError(t, adapter.Create(context.Background(), u))
	assert.Equal(t, int64(42), u.ID)
}

func TestCreateUser_DuplicateEmail(t *testing.T) {
	db, mock := newMockDB(t)
	adapter := NewMySQLAdapter(db)

	mock.ExpectExec("INSERT INTO users").
		WillReturnError(&mysqldriver.MySQLError{Number: 1062, Message: "Duplicate entry"})

	err := adapter.Create(context.Background(), &domain.User{Email: "jane@example.com"})
	assert.ErrorIs(t, err, domain.ErrEmailTaken)
}

func TestGetByEmail_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	adapter := NewMySQLAdapter(db)

	mock.ExpectQuery("FROM users WHERE email = ").WithArgs("x@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := adapter.GetByEmail(context.Background(), "x@example.com")
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestGetUnpublishedEvents(t *testing.T) {
	db, mock := newMockDB(t)
	adapter := NewMySQLAdapter(db)
	now := time.Now()

	mock.ExpectQuery("FROM outbox_events\\s+WHERE published_at IS NULL").
		WithArgs(50).
		WillReturnRows(sqlmock.NewRows([]string{"id", "aggregate_id", "event_type", "payload", "created_at"}).
			AddRow("evt-1", "order-1", "OrderPlaced", []byte(`{}`), now))
	mock.ExpectExec("UPDATE outbox_events SET published_at").
		WithArgs(sqlmock.AnyArg(), "evt-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	events, err := adapter.GetUnpublishedEvents(context.Background(), 50)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "order-1", events[0].AggregateID)

	require.NoError(t, adapter.MarkEventPublished(context.Background(), "evt-1"))
}
