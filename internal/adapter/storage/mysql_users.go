package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	mysqldriver "github.com/go-sql-driver/mysql"

	"github.com/rl1809/storefront/internal/core/domain"
)

const userColumns = `id, name, email, password, phone, address, city, state, postal_code, country,
	created_at, updated_at`

func scanUser(row rowScanner) (domain.User, error) {
	var u domain.User
	err := row.Scan(
		&u.ID, &u.Name, &u.Email, &u.PasswordHash,
		&u.Profile.Phone, &u.Profile.Address, &u.Profile.City, &u.Profile.State,
		&u.Profile.PostalCode, &u.Profile.Country,
		&u.CreatedAt, &u.UpdatedAt,
	)
	return u, err
}

func (m *MySQLAdapter) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	return m.getUser(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
}

func (m *MySQLAdapter) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return m.getUser(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email)
}

func (m *MySQLAdapter) getUser(ctx context.Context, query string, arg any) (*domain.User, error) {
	u, err := scanUser(m.db.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query user: %w", err)
	}
	return &u, nil
}

func (m *MySQLAdapter) Create(ctx context.Context, user *domain.User) error {
	p := user.Profile
	result, err := m.db.ExecContext(ctx, `
		INSERT INTO users (name, email, password, phone, address, city, state, postal_code, country, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.Name, user.Email, user.PasswordHash,
		p.Phone, p.Address, p.City, p.State, p.PostalCode, p.Country,
		user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		var myErr *mysqldriver.MySQLError
		if errors.As(err, &myErr) && myErr.Number == 1062 {
			return domain.ErrEmailTaken
		}
		return fmt.Errorf("insert user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	user.ID = id
	return nil
}

func (m *MySQLAdapter) UpdateProfile(ctx context.Context, id int64, p domain.Profile) error {
	result, err := m.db.ExecContext(ctx, `
		UPDATE users
		SET phone = ?, address = ?, city = ?, state = ?, postal_code = ?, country = ?, updated_at = NOW()
		WHERE id = ?`,
		p.Phone, p.Address, p.City, p.State, p.PostalCode, p.Country, id,
	)
	if err != nil {
		return fmt.Errorf("update profile: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}
