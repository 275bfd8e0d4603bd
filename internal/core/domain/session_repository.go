package domain

import (
	"context"
	"time"
)

// SessionRow is a refresh session. Rows are append-only: a session is
// created on login and on every rotation, and is only ever flipped to revoked.
type SessionRow struct {
	ID        int64
	UserID    int64
	Token     string
	ExpiresAt time.Time
	CreatedAt time.Time
	Revoked   bool
}

// Active reports whether the session can still be exchanged at time now.
func (s *SessionRow) Active(now time.Time) bool {
	return !s.Revoked && now.Before(s.ExpiresAt)
}

// SessionRepository defines the data-access contract for the session store.
type SessionRepository interface {
	// Create inserts a new active session for the given refresh token.
	// Returns ErrConflict when the token string is already stored.
	Create(ctx context.Context, userID int64, token string, expiresAt time.Time) (*SessionRow, error)

	// GetByToken looks the session up by exact token string. With forUpdate
	// the row is locked until the surrounding transaction ends.
	// Returns (nil, nil) when the token does not match any session.
	GetByToken(ctx context.Context, token string, forUpdate bool) (*SessionRow, error)

	// Revoke marks the session revoked. It reports whether a row matched;
	// revoking an already revoked session is not an error.
	Revoke(ctx context.Context, token string) (bool, error)

	// RevokeAllForUser revokes every session owned by userID and returns the
	// number of sessions that were still unrevoked.
	RevokeAllForUser(ctx context.Context, userID int64) (int64, error)
}
