package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rl1809/storefront/internal/core/domain"
)

type MySQLAdapter struct {
	db *sql.DB
}

func NewMySQLAdapter(db *sql.DB) *MySQLAdapter {
	return &MySQLAdapter{db: db}
}

const orderColumns = `id, user_id, name, email, phone, address, city, state, postal_code, country,
	total, status, created_at, updated_at`

func (m *MySQLAdapter) CreateOrder(ctx context.Context, order domain.Order, event domain.OutboxEvent, clearCartOf *int64) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders (`+orderColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		order.ID, order.UserID, order.Contact.Name, order.Contact.Email, order.Contact.Phone,
		order.Shipping.Address, order.Shipping.City, order.Shipping.State,
		order.Shipping.PostalCode, order.Shipping.Country,
		order.Total, string(order.Status), order.CreatedAt, order.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	for _, it := range order.Items {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO order_items (order_id, product_id, product_name, price, quantity, created_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			order.ID, it.ProductID, it.ProductName, it.Price, it.Quantity, order.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert order item %d: %w", it.ProductID, err)
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO outbox_events (id, aggregate_id, event_type, payload, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		event.ID, event.AggregateID, event.EventType, event.Payload, event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert outbox event: %w", err)
	}

	if clearCartOf != nil {
		if _, err = tx.ExecContext(ctx, `DELETE FROM cart_lines WHERE user_id = ?`, *clearCartOf); err != nil {
			return fmt.Errorf("clear cart: %w", err)
		}
	}

	return tx.Commit()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (domain.Order, error) {
	var (
		o      domain.Order
		userID sql.NullInt64
		status string
	)
	err := row.Scan(
		&o.ID, &userID, &o.Contact.Name, &o.Contact.Email, &o.Contact.Phone,
		&o.Shipping.Address, &o.Shipping.City, &o.Shipping.State,
		&o.Shipping.PostalCode, &o.Shipping.Country,
		&o.Total, &status, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return o, err
	}
	if userID.Valid {
		id := userID.Int64
		o.UserID = &id
	}
	o.Status = domain.OrderStatus(status)
	return o, nil
}

func (m *MySQLAdapter) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	o, err := scanOrder(m.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query order: %w", err)
	}

	items, err := m.loadItems(ctx, []string{o.ID})
	if err != nil {
		return nil, err
	}
	o.Items = items[o.ID]
	return &o, nil
}

func (m *MySQLAdapter) ListOrders(ctx context.Context, filter domain.OrderFilter) (domain.OrderPage, error) {
	var (
		where []string
		args  []any
	)
	if filter.Search != "" {
		like := "%" + escapeLike(filter.Search) + "%"
		where = append(where, `(id LIKE ? OR name LIKE ? OR email LIKE ?)`)
		args = append(args, like, like, like)
	}
	if filter.Status != "" {
		where = append(where, `status = ?`)
		args = append(args, string(filter.Status))
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	page := domain.OrderPage{Orders: []domain.Order{}, Page: filter.Page, PerPage: filter.PerPage}
	if err := m.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders`+clause, args...).Scan(&page.Total); err != nil {
		return page, fmt.Errorf("count orders: %w", err)
	}

	offset := (filter.Page - 1) * filter.PerPage
	rows, err := m.db.QueryContext(ctx,
		`SELECT `+orderColumns+` FROM orders`+clause+` ORDER BY created_at DESC, id LIMIT ? OFFSET ?`,
		append(args, filter.PerPage, offset)...,
	)
	if err != nil {
		return page, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return page, fmt.Errorf("scan order: %w", err)
		}
		page.Orders = append(page.Orders, o)
	}
	return page, rows.Err()
}

func (m *MySQLAdapter) ListUserOrders(ctx context.Context, userID int64) ([]domain.Order, error) {
	rows, err := m.db.QueryContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE user_id = ? ORDER BY created_at DESC, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("query user orders: %w", err)
	}
	defer rows.Close()

	var (
		orders []domain.Order
		ids    []string
	)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, o)
		ids = append(ids, o.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return orders, nil
	}

	items, err := m.loadItems(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range orders {
		orders[i].Items = items[orders[i].ID]
	}
	return orders, nil
}

func (m *MySQLAdapter) loadItems(ctx context.Context, orderIDs []string) (map[string][]domain.OrderItem, error) {
	args := make([]any, len(orderIDs))
	for i, id := range orderIDs {
		args[i] = id
	}

	rows, err := m.db.QueryContext(ctx, `
		SELECT order_id, product_id, product_name, price, quantity
		FROM order_items WHERE order_id IN (`+placeholders(len(orderIDs))+`) ORDER BY id`, args...)
	if err != nil {
		return nil, fmt.Errorf("query order items: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]domain.OrderItem, len(orderIDs))
	for rows.Next() {
		var it domain.OrderItem
		if err := rows.Scan(&it.OrderID, &it.ProductID, &it.ProductName, &it.Price, &it.Quantity); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		out[it.OrderID] = append(out[it.OrderID], it)
	}
	return out, rows.Err()
}

// UpdateStatus is a compare-and-set on the current status.
func (m *MySQLAdapter) UpdateStatus(ctx context.Context, id string, from, to domain.OrderStatus) error {
	result, err := m.db.ExecContext(ctx, `
		UPDATE orders SET status = ?, updated_at = ?
		WHERE id = ? AND status = ?`,
		string(to), time.Now().UTC(), id, string(from),
	)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		var exists bool
		if err := m.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM orders WHERE id = ?)`, id).Scan(&exists); err != nil {
			return fmt.Errorf("check order: %w", err)
		}
		if !exists {
			return domain.ErrOrderNotFound
		}
		return fmt.Errorf("%w: status changed concurrently", domain.ErrInvalidTransition)
	}
	return nil
}

func (m *MySQLAdapter) GetUnpublishedEvents(ctx context.Context, limit int) ([]domain.OutboxEvent, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT id, aggregate_id, event_type, payload, created_at
		FROM outbox_events
		WHERE published_at IS NULL
		ORDER BY created_at
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query outbox: %w", err)
	}
	defer rows.Close()

	var events []domain.OutboxEvent
	for rows.Next() {
		var e domain.OutboxEvent
		if err := rows.Scan(&e.ID, &e.AggregateID, &e.EventType, &e.Payload, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan outbox event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func (m *MySQLAdapter) MarkEventPublished(ctx context.Context, id string) error {
	_, err := m.db.ExecContext(ctx,
		`UPDATE outbox_events SET published_at = ? WHERE id = ?`, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("mark event published: %w", err)
	}
	return nil
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
