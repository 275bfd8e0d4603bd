package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"golang.org/x/sync/errgroup"

	"github.com/duynhne/qa-service/internal/core/domain"
)

const profileQuery = `
	SELECT u.id, u.username, u.email, u.reputation, u.created_at,
		(SELECT COUNT(*) FROM questions q WHERE q.user_id = u.id) AS question_count,
		(SELECT COUNT(*) FROM answers a WHERE a.user_id = u.id) AS answer_count
	FROM users u`

// PgxProfileRepository implements domain.ProfileRepository using pgx.
type PgxProfileRepository struct {
	db *DB
}

// NewProfileRepository creates a new PgxProfileRepository.
func NewProfileRepository(db *DB) *PgxProfileRepository {
	return &PgxProfileRepository{db: db}
}

func scanProfile(row pgx.Row, p *domain.UserProfile) error {
	return row.Scan(&p.ID, &p.Username, &p.Email, &p.Reputation, &p.CreatedAt, &p.QuestionCount, &p.AnswerCount)
}

// GetProfile loads the user, their recent questions and their recent answers
// concurrently on separate pooled connections, so it must not be called
// inside a transaction. Returns (nil, nil) when no user is found.
func (r *PgxProfileRepository) GetProfile(ctx context.Context, userID int64) (*domain.UserProfile, error) {
	var (
		profile   domain.UserProfile
		found     = true
		questions = []domain.ProfileQuestion{}
		answers   = []domain.ProfileAnswer{}
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return r.db.withConn(gctx, func(q querier) error {
			err := scanProfile(q.QueryRow(gctx, profileQuery+` WHERE u.id = $1`, userID), &profile)
			if errors.Is(err, pgx.ErrNoRows) {
				found = false
				return nil
			}
			return err
		})
	})
	g.Go(func() error {
		return r.db.withConn(gctx, func(q querier) error {
			rows, err := q.Query(gctx, `
				SELECT q.id, q.title, q.created_at,
					(SELECT `+scoreExpr+` FROM votes v
						WHERE v.votable_type = 'question' AND v.votable_id = q.id) AS vote_count,
					(SELECT COUNT(*) FROM answers a WHERE a.question_id = q.id) AS answer_count
				FROM questions q
				WHERE q.user_id = $1
				ORDER BY q.created_at DESC, q.id DESC
				LIMIT $2
			`, userID, domain.RecentActivityLimit)
			if err != nil {
				return fmt.Errorf("query recent questions: %w", err)
			}
			rowsOut, err := pgx.CollectRows(rows, pgx.RowToStructByPos[domain.ProfileQuestion])
			if err != nil {
				return fmt.Errorf("scan recent questions: %w", err)
			}
			questions = append(questions, rowsOut...)
			return nil
		})
	})
	g.Go(func() error {
		return r.db.withConn(gctx, func(q querier) error {
			rows, err := q.Query(gctx, `
				SELECT a.id, a.body, a.is_accepted, a.created_at, q.id, q.title,
					(SELECT `+scoreExpr+` FROM votes v
						WHERE v.votable_type = 'answer' AND v.votable_id = a.id) AS vote_count
				FROM answers a
				JOIN questions q ON q.id = a.question_id
				WHERE a.user_id = $1
				ORDER BY a.created_at DESC, a.id DESC
				LIMIT $2
			`, userID, domain.RecentActivityLimit)
			if err != nil {
				return fmt.Errorf("query recent answers: %w", err)
			}
			rowsOut, err := pgx.CollectRows(rows, pgx.RowToStructByPos[domain.ProfileAnswer])
			if err != nil {
				return fmt.Errorf("scan recent answers: %w", err)
			}
			answers = append(answers, rowsOut...)
			return nil
		})
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}

	profile.RecentQuestions = questions
	profile.RecentAnswers = answers
	return &profile, nil
}

// TopUsers returns up to limit profiles by descending reputation.
func (r *PgxProfileRepository) TopUsers(ctx context.Context, limit int) ([]domain.UserProfile, error) {
	profiles := []domain.UserProfile{}
	err := r.db.withConn(ctx, func(q querier) error {
		rows, err := q.Query(ctx, profileQuery+` ORDER BY u.reputation DESC, u.id ASC LIMIT $1`, limit)
		if err != nil {
			return fmt.Errorf("query top users: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var p domain.UserProfile
			if err := scanProfile(rows, &p); err != nil {
				return fmt.Errorf("scan profile: %w", err)
			}
			profiles = append(profiles, p)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return profiles, nil
}
