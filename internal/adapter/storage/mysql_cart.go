package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rl1809/storefront/internal/core/domain"
)

var ErrUnsupportedOwner = errors.New("owner kind not supported by this cart store")

// MySQLCartStore keeps the carts of signed-in users in the cart_lines table.
type MySQLCartStore struct {
	db *sql.DB
}

func NewMySQLCartStore(db *sql.DB) *MySQLCartStore {
	return &MySQLCartStore{db: db}
}

func userID(owner domain.Owner) (int64, error) {
	if !owner.IsAuthenticated() || owner.UserID <= 0 {
		return 0, ErrUnsupportedOwner
	}
	return owner.UserID, nil
}

func (s *MySQLCartStore) Add(ctx context.Context, owner domain.Owner, productID int64, quantity int) error {
	uid, err := userID(owner)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO cart_lines (user_id, product_id, quantity, created_at, updated_at)
		VALUES (?, ?, ?, NOW(), NOW())
		ON DUPLICATE KEY UPDATE quantity = quantity + VALUES(quantity), updated_at = NOW()`,
		uid, productID, quantity,
	)
	if err != nil {
		return fmt.Errorf("upsert cart line: %w", err)
	}
	return nil
}

func (s *MySQLCartStore) SetQuantity(ctx context.Context, owner domain.Owner, productID int64, quantity int) (bool, error) {
	uid, err := userID(owner)
	if err != nil {
		return false, err
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE cart_lines SET quantity = ?, updated_at = NOW()
		WHERE user_id = ? AND product_id = ?`,
		quantity, uid, productID,
	)
	if err != nil {
		return false, fmt.Errorf("update cart line: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows > 0 {
		return true, nil
	}

	// zero affected rows also means the quantity was already equal
	var exists bool
	err = s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM cart_lines WHERE user_id = ? AND product_id = ?)`, uid, productID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check cart line: %w", err)
	}
	return exists, nil
}

func (s *MySQLCartStore) MergeMax(ctx context.Context, owner domain.Owner, productID int64, quantity int) error {
	uid, err := userID(owner)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO cart_lines (user_id, product_id, quantity, created_at, updated_at)
		VALUES (?, ?, ?, NOW(), NOW())
		ON DUPLICATE KEY UPDATE quantity = GREATEST(quantity, VALUES(quantity)), updated_at = NOW()`,
		uid, productID, quantity,
	)
	if err != nil {
		return fmt.Errorf("merge cart line: %w", err)
	}
	return nil
}

func (s *MySQLCartStore) Remove(ctx context.Context, owner domain.Owner, productID int64) error {
	uid, err := userID(owner)
	if err != nil {
		return err
	}

	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM cart_lines WHERE user_id = ? AND product_id = ?`, uid, productID); err != nil {
		return fmt.Errorf("delete cart line: %w", err)
	}
	return nil
}

func (s *MySQLCartStore) Clear(ctx context.Context, owner domain.Owner) error {
	uid, err := userID(owner)
	if err != nil {
		return err
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM cart_lines WHERE user_id = ?`, uid); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	return nil
}

func (s *MySQLCartStore) Lines(ctx context.Context, owner domain.Owner) ([]domain.CartLine, error) {
	uid, err := userID(owner)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT product_id, quantity, updated_at
		FROM cart_lines WHERE user_id = ?
		ORDER BY product_id`, uid)
	if err != nil {
		return nil, fmt.Errorf("query cart lines: %w", err)
	}
	defer rows.Close()

	var lines []domain.CartLine
	for rows.Next() {
		l := domain.CartLine{Owner: owner}
		if err := rows.Scan(&l.ProductID, &l.Quantity, &l.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan cart line: %w", err)
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}
