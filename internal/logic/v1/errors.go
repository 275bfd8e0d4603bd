// Package v1 provides the business logic for API version 1: sessions, votes,
// content writes and the cache invalidation that follows them.
//
// Error Handling:
// This package defines sentinel errors for every client-visible failure kind.
// They are wrapped with context using fmt.Errorf("%w") when returned, and the
// web layer maps them to status codes with errors.Is.
//
// Example Usage:
//
//	if session == nil {
//	    return fmt.Errorf("lookup session: %w", ErrInvalidRefreshToken)
//	}
//
// Error Checking (in handlers):
//
//	switch {
//	case errors.Is(err, logicv1.ErrSelfVoteForbidden):
//	    c.JSON(http.StatusForbidden, gin.H{"error": "Cannot vote on your own content"})
//	case errors.Is(err, logicv1.ErrStoreUnavailable):
//	    c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Service unavailable"})
//	default:
//	    c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
//	}
package v1

import (
	"errors"

	"github.com/duynhne/qa-service/internal/core/domain"
)

// Sentinel errors for business operations.
// These errors should be wrapped with context using fmt.Errorf("%w") when returned.
var (
	// ErrInvalidCredentials covers both an unknown email and a wrong password.
	// HTTP Status: 401 Unauthorized
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrInvalidRefreshToken covers every refresh failure: bad signature,
	// expiry, unknown session, owner mismatch and reuse of a revoked token.
	// HTTP Status: 401 Unauthorized
	ErrInvalidRefreshToken = errors.New("invalid refresh token")

	// ErrUnauthorized indicates a missing or invalid access token.
	// HTTP Status: 401 Unauthorized
	ErrUnauthorized = errors.New("unauthorized")

	// ErrUserNotFound indicates the user referenced by a valid token no longer exists.
	// HTTP Status: 401 Unauthorized
	ErrUserNotFound = errors.New("user not found")

	// ErrUserExists indicates the username or email is already registered.
	// HTTP Status: 409 Conflict
	ErrUserExists = errors.New("user already exists")

	// ErrNotFound indicates the question or answer does not exist.
	// HTTP Status: 404 Not Found
	ErrNotFound = errors.New("not found")

	// ErrSelfVoteForbidden indicates a user voted on their own content.
	// HTTP Status: 403 Forbidden
	ErrSelfVoteForbidden = errors.New("cannot vote on own content")

	// ErrInvalidVote indicates an unknown votable type or vote type.
	// HTTP Status: 400 Bad Request
	ErrInvalidVote = errors.New("invalid vote")

	// ErrInvalidInput indicates a request the handler binding let through but
	// the business rules reject.
	// HTTP Status: 400 Bad Request
	ErrInvalidInput = errors.New("invalid input")

	// ErrStoreUnavailable is the store-level unavailability kind re-exported
	// so handlers only import this package.
	// HTTP Status: 503 Service Unavailable
	ErrStoreUnavailable = domain.ErrStoreUnavailable
)
