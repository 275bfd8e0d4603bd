package domain

import (
	"context"
	"time"
)

// VoteRow is a single vote. (UserID, VotableType, VotableID) is a natural key:
// the store enforces at most one row per tuple.
type VoteRow struct {
	ID          int64
	UserID      int64
	VotableType VotableType
	VotableID   int64
	VoteType    VoteType
	AuthorID    int64
	CreatedAt   time.Time
}

// VoteRepository defines the data-access contract for the vote store.
type VoteRepository interface {
	// FindByUserAndVotable returns the user's vote on the votable. With
	// forUpdate the row is locked until the surrounding transaction ends.
	// Returns (nil, nil) when the user has not voted.
	FindByUserAndVotable(ctx context.Context, userID int64, votableType VotableType, votableID int64, forUpdate bool) (*VoteRow, error)

	// Create inserts a vote. Returns ErrConflict when the natural key is taken.
	Create(ctx context.Context, vote VoteRow) (*VoteRow, error)

	// UpdateType flips the vote direction in place, keeping id and created_at.
	UpdateType(ctx context.Context, id int64, voteType VoteType) error

	// Delete removes the vote.
	Delete(ctx context.Context, id int64) error

	// Score returns upvotes minus downvotes for the votable.
	Score(ctx context.Context, votableType VotableType, votableID int64) (int, error)
}
