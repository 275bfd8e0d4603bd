package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/duynhne/qa-service/internal/core/domain"
)

// PgxSessionRepository implements domain.SessionRepository using pgx.
type PgxSessionRepository struct {
	db *DB
}

// NewSessionRepository creates a new PgxSessionRepository.
func NewSessionRepository(db *DB) *PgxSessionRepository {
	return &PgxSessionRepository{db: db}
}

// Create inserts a new active session for the given refresh token.
func (r *PgxSessionRepository) Create(ctx context.Context, userID int64, token string, expiresAt time.Time) (*domain.SessionRow, error) {
	query := `
		INSERT INTO sessions (user_id, token, expires_at)
		VALUES ($1, $2, $3)
		RETURNING id, user_id, token, expires_at, created_at, revoked
	`

	var row domain.SessionRow
	err := r.db.withConn(ctx, func(q querier) error {
		return q.QueryRow(ctx, query, userID, token, expiresAt).Scan(
			&row.ID, &row.UserID, &row.Token, &row.ExpiresAt, &row.CreatedAt, &row.Revoked,
		)
	})
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// GetByToken looks the session up by exact token string.
// Returns (nil, nil) when the token does not match any session.
func (r *PgxSessionRepository) GetByToken(ctx context.Context, token string, forUpdate bool) (*domain.SessionRow, error) {
	query := `SELECT id, user_id, token, expires_at, created_at, revoked FROM sessions WHERE token = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	var row domain.SessionRow
	found := true
	err := r.db.withConn(ctx, func(q querier) error {
		err := q.QueryRow(ctx, query, token).Scan(
			&row.ID, &row.UserID, &row.Token, &row.ExpiresAt, &row.CreatedAt, &row.Revoked,
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

// Revoke marks the session revoked and reports whether a row matched.
func (r *PgxSessionRepository) Revoke(ctx context.Context, token string) (bool, error) {
	var matched bool
	err := r.db.withConn(ctx, func(q querier) error {
		tag, err := q.Exec(ctx, `UPDATE sessions SET revoked = TRUE WHERE token = $1`, token)
		matched = tag.RowsAffected() > 0
		return err
	})
	return matched, err
}

// RevokeAllForUser revokes every still-active session owned by userID.
func (r *PgxSessionRepository) RevokeAllForUser(ctx context.Context, userID int64) (int64, error) {
	var n int64
	err := r.db.withConn(ctx, func(q querier) error {
		tag, err := q.Exec(ctx, `UPDATE sessions SET revoked = TRUE WHERE user_id = $1 AND revoked = FALSE`, userID)
		n = tag.RowsAffected()
		return err
	})
	return n, err
}
