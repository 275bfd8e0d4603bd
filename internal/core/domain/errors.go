package domain

import "errors"

// Store-level sentinel errors. Repository implementations translate driver
// errors into these so the Logic layer never inspects pgx types.
var (
	// ErrStoreUnavailable indicates the store could not be reached within the
	// connection-acquisition timeout, or the connection failed mid-operation.
	// HTTP Status: 503 Service Unavailable
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrConflict indicates a uniqueness constraint rejected a write.
	ErrConflict = errors.New("conflict")
)
