package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/duynhne/qa-service/internal/core/domain"
)

const voteColumns = `id, user_id, votable_type, votable_id, vote_type, author_id, created_at`

// PgxVoteRepository implements domain.VoteRepository using pgx.
type PgxVoteRepository struct {
	db *DB
}

// NewVoteRepository creates a new PgxVoteRepository.
func NewVoteRepository(db *DB) *PgxVoteRepository {
	return &PgxVoteRepository{db: db}
}

func scanVote(row pgx.Row, v *domain.VoteRow) error {
	var votableType, voteType string
	if err := row.Scan(&v.ID, &v.UserID, &votableType, &v.VotableID, &voteType, &v.AuthorID, &v.CreatedAt); err != nil {
		return err
	}
	v.VotableType = domain.VotableType(votableType)
	v.VoteType = domain.VoteType(voteType)
	return nil
}

// FindByUserAndVotable returns the user's vote, or (nil, nil) when none exists.
func (r *PgxVoteRepository) FindByUserAndVotable(ctx context.Context, userID int64, votableType domain.VotableType, votableID int64, forUpdate bool) (*domain.VoteRow, error) {
	query := `SELECT ` + voteColumns + ` FROM votes WHERE user_id = $1 AND votable_type = $2 AND votable_id = $3`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	var v domain.VoteRow
	found := true
	err := r.db.withConn(ctx, func(q querier) error {
		err := scanVote(q.QueryRow(ctx, query, userID, string(votableType), votableID), &v)
		if errors.Is(err, pgx.ErrNoRows) {
			found = false
			return nil
		}
		return err
	})
	if err != nil || !found {
		return nil, err
	}
	return &v, nil
}

// Create inserts a vote. The (user_id, votable_type, votable_id) unique
// constraint turns a racing duplicate into domain.ErrConflict.
func (r *PgxVoteRepository) Create(ctx context.Context, vote domain.VoteRow) (*domain.VoteRow, error) {
	query := `
		INSERT INTO votes (user_id, votable_type, votable_id, vote_type, author_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + voteColumns

	var v domain.VoteRow
	err := r.db.withConn(ctx, func(q querier) error {
		return scanVote(q.QueryRow(ctx, query,
			vote.UserID, string(vote.VotableType), vote.VotableID, string(vote.VoteType), vote.AuthorID,
		), &v)
	})
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// UpdateType flips the vote direction in place.
func (r *PgxVoteRepository) UpdateType(ctx context.Context, id int64, voteType domain.VoteType) error {
	return r.db.withConn(ctx, func(q querier) error {
		_, err := q.Exec(ctx, `UPDATE votes SET vote_type = $1 WHERE id = $2`, string(voteType), id)
		return err
	})
}

// Delete removes the vote.
func (r *PgxVoteRepository) Delete(ctx context.Context, id int64) error {
	return r.db.withConn(ctx, func(q querier) error {
		_, err := q.Exec(ctx, `DELETE FROM votes WHERE id = $1`, id)
		return err
	})
}

// Score returns upvotes minus downvotes for the votable.
func (r *PgxVoteRepository) Score(ctx context.Context, votableType domain.VotableType, votableID int64) (int, error) {
	query := `
		SELECT COALESCE(SUM(CASE WHEN vote_type = 'upvote' THEN 1 WHEN vote_type = 'downvote' THEN -1 ELSE 0 END), 0)
		FROM votes
		WHERE votable_type = $1 AND votable_id = $2
	`

	var score int
	err := r.db.withConn(ctx, func(q querier) error {
		return q.QueryRow(ctx, query, string(votableType), votableID).Scan(&score)
	})
	return score, err
}
