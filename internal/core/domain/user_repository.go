package domain

import (
	"context"
	"time"
)

// UserRow represents a user record returned from the database.
// It includes the password hash so the Logic layer can verify credentials.
type UserRow struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
	Reputation   int
	CreatedAt    time.Time
}

// Profile strips the password hash.
func (u *UserRow) Profile() User {
	return User{
		ID:         u.ID,
		Username:   u.Username,
		Email:      u.Email,
		Reputation: u.Reputation,
	}
}

// UserRepository defines the data-access contract for the credential store.
// Implementations live in internal/core/repository (Core layer).
// The Logic layer depends on this interface, never on pgx directly.
type UserRepository interface {
	// GetByID returns the user with the given id.
	// Returns (nil, nil) when no user is found.
	GetByID(ctx context.Context, id int64) (*UserRow, error)

	// GetByEmail returns the user matching the given email.
	// Returns (nil, nil) when no user is found.
	GetByEmail(ctx context.Context, email string) (*UserRow, error)

	// ExistsByUsernameOrEmail returns true when a user with the given
	// username or email already exists.
	ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, error)

	// Create inserts a new user and returns it.
	// Returns ErrConflict when username or email is taken.
	Create(ctx context.Context, username, email, passwordHash string) (*UserRow, error)
}
