package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/duynhne/qa-service/internal/core/domain"
)

const userColumns = `id, username, email, password_hash, reputation, created_at`

// PgxUserRepository implements domain.UserRepository using pgx.
type PgxUserRepository struct {
	db *DB
}

// NewUserRepository creates a new PgxUserRepository.
func NewUserRepository(db *DB) *PgxUserRepository {
	return &PgxUserRepository{db: db}
}

// GetByID returns the user with the given id.
// Returns (nil, nil) when no user is found.
func (r *PgxUserRepository) GetByID(ctx context.Context, id int64) (*domain.UserRow, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

// GetByEmail returns the user matching the given email.
// Returns (nil, nil) when no user is found.
func (r *PgxUserRepository) GetByEmail(ctx context.Context, email string) (*domain.UserRow, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
}

func (r *PgxUserRepository) getOne(ctx context.Context, query string, arg any) (*domain.UserRow, error) {
	var row domain.UserRow
	found := true
	err := r.db.withConn(ctx, func(q querier) error {
		err := q.QueryRow(ctx, query, arg).Scan(
			&row.ID, &row.Username, &row.Email, &row.PasswordHash, &row.Reputation, &row.CreatedAt,
		)
		if errors.Is(err, pgx.ErrNoRows) {
			found = false
			return nil
		}
		return err
	})
	if err != nil || !found {
		return nil, err
	}
	return &row, nil
}

// ExistsByUsernameOrEmail returns true when a user with the given
// username or email already exists.
func (r *PgxUserRepository) ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM users WHERE username = $1 OR email = $2)`

	var exists bool
	err := r.db.withConn(ctx, func(q querier) error {
		return q.QueryRow(ctx, query, username, email).Scan(&exists)
	})
	return exists, err
}

// Create inserts a new user and returns it.
func (r *PgxUserRepository) Create(ctx context.Context, username, email, passwordHash string) (*domain.UserRow, error) {
	query := `INSERT INTO users (username, email, password_hash) VALUES ($1, $2, $3) RETURNING ` + userColumns

	var row domain.UserRow
	err := r.db.withConn(ctx, func(q querier) error {
		return q.QueryRow(ctx, query, username, email, passwordHash).Scan(
			&row.ID, &row.Username, &row.Email, &row.PasswordHash, &row.Reputation, &row.CreatedAt,
		)
	})
	if err != nil {
		return nil, err
	}
	return &row, nil
}
