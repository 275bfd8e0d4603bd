package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"golang.org/x/sync/errgroup"

	"github.com/duynhne/qa-service/internal/core/domain"
)

// PgxContentRepository implements domain.ContentRepository using pgx.
type PgxContentRepository struct {
	db *DB
}

// NewContentRepository creates a new PgxContentRepository.
func NewContentRepository(db *DB) *PgxContentRepository {
	return &PgxContentRepository{db: db}
}

// FindVotableOwner returns the author of the question or answer.
// Returns (nil, nil) when the votable does not exist.
func (r *PgxContentRepository) FindVotableOwner(ctx context.Context, votableType domain.VotableType, id int64) (*int64, error) {
	var query string
	switch votableType {
	case domain.VotableQuestion:
		query = `SELECT user_id FROM questions WHERE id = $1`
	case domain.VotableAnswer:
		query = `SELECT user_id FROM answers WHERE id = $1`
	default:
		return nil, fmt.Errorf("unknown votable type %q", votableType)
	}

	var owner int64
	found := true
	err := r.db.withConn(ctx, func(q querier) error {
		err := q.QueryRow(ctx, query, id).Scan(&owner)
		if errors.Is(err, pgx.ErrNoRows) {
			found = false
			return nil
		}
		return err
	})
	if err != nil || !found {
		return nil, err
	}
	return &owner, nil
}

// CreateQuestion inserts the question and links its tags.
func (r *PgxContentRepository) CreateQuestion(ctx context.Context, nq domain.NewQuestion) (*domain.Question, error) {
	var question domain.Question
	err := r.db.withConn(ctx, func(q querier) error {
		err := q.QueryRow(ctx, `
			INSERT INTO questions (user_id, title, body)
			VALUES ($1, $2, $3)
			RETURNING id, user_id, title, body, views, created_at, updated_at
		`, nq.UserID, nq.Title, nq.Body).Scan(
			&question.ID, &question.UserID, &question.Title, &question.Body,
			&question.Views, &question.CreatedAt, &question.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert question: %w", err)
		}

		for _, name := range nq.Tags {
			var tagID int64
			err := q.QueryRow(ctx, `
				INSERT INTO tags (name) VALUES ($1)
				ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
				RETURNING id
			`, strings.ToLower(name)).Scan(&tagID)
			if err != nil {
				return fmt.Errorf("upsert tag %q: %w", name, err)
			}
			if _, err := q.Exec(ctx, `
				INSERT INTO question_tags (question_id, tag_id) VALUES ($1, $2)
				ON CONFLICT DO NOTHING
			`, question.ID, tagID); err != nil {
				return fmt.Errorf("link tag %q: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &question, nil
}

// CreateAnswer inserts the answer and touches the question's updated_at.
func (r *PgxContentRepository) CreateAnswer(ctx context.Context, na domain.NewAnswer) (*domain.Answer, error) {
	var answer domain.Answer
	err := r.db.withConn(ctx, func(q querier) error {
		err := q.QueryRow(ctx, `
			INSERT INTO answers (question_id, user_id, body)
			VALUES ($1, $2, $3)
			RETURNING id, question_id, user_id, body, is_accepted, created_at, updated_at
		`, na.QuestionID, na.UserID, na.Body).Scan(
			&answer.ID, &answer.QuestionID, &answer.UserID, &answer.Body,
			&answer.IsAccepted, &answer.CreatedAt, &answer.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert answer: %w", err)
		}
		_, err = q.Exec(ctx, `UPDATE questions SET updated_at = CURRENT_TIMESTAMP WHERE id = $1`, na.QuestionID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &answer, nil
}

// CreateComment inserts the comment.
func (r *PgxContentRepository) CreateComment(ctx context.Context, nc domain.NewComment) (*domain.Comment, error) {
	var (
		comment         domain.Comment
		commentableType string
	)
	err := r.db.withConn(ctx, func(q querier) error {
		return q.QueryRow(ctx, `
			INSERT INTO comments (user_id, commentable_type, commentable_id, body)
			VALUES ($1, $2, $3, $4)
			RETURNING id, user_id, commentable_type, commentable_id, body, created_at
		`, nc.UserID, string(nc.CommentableType), nc.CommentableID, nc.Body).Scan(
			&comment.ID, &comment.UserID, &commentableType, &comment.CommentableID, &comment.Body, &comment.CreatedAt,
		)
	})
	if err != nil {
		return nil, err
	}
	comment.CommentableType = domain.VotableType(commentableType)
	return &comment, nil
}

// scoreExpr sums the votes joined as v into upvotes minus downvotes.
const scoreExpr = `COALESCE(SUM(CASE v.vote_type WHEN 'upvote' THEN 1 WHEN 'downvote' THEN -1 ELSE 0 END), 0)`

// GetQuestionDetails counts a view and loads the question with its tags,
// answers and comments. All reads share one connection, so inside a
// transaction they see the incremented view count.
// Returns (nil, nil) when the question does not exist.
func (r *PgxContentRepository) GetQuestionDetails(ctx context.Context, id, viewerID int64) (*domain.QuestionDetails, error) {
	d := domain.QuestionDetails{
		Tags:     []domain.Tag{},
		Comments: []domain.CommentView{},
		Answers:  []domain.AnswerView{},
	}
	found := true
	err := r.db.withConn(ctx, func(q querier) error {
		err := q.QueryRow(ctx, `
			UPDATE questions q SET views = q.views + 1
			FROM users u
			WHERE q.id = $1 AND u.id = q.user_id
			RETURNING q.id, q.user_id, u.username, q.title, q.body, q.views, q.created_at, q.updated_at
		`, id).Scan(&d.ID, &d.UserID, &d.Username, &d.Title, &d.Body, &d.Views, &d.CreatedAt, &d.UpdatedAt)
		if errors.Is(err, pgx.ErrNoRows) {
			found = false
			return nil
		}
		if err != nil {
			return fmt.Errorf("count question view: %w", err)
		}

		var userVote *string
		err = q.QueryRow(ctx, `
			SELECT `+scoreExpr+`, MAX(CASE WHEN v.user_id = $2 THEN v.vote_type END)
			FROM votes v
			WHERE v.votable_type = 'question' AND v.votable_id = $1
		`, id, viewerID).Scan(&d.VoteCount, &userVote)
		if err != nil {
			return fmt.Errorf("query question votes: %w", err)
		}
		d.UserVote = toVoteType(userVote)

		if err := r.questionTags(ctx, q, id, &d); err != nil {
			return err
		}
		if err := r.questionAnswers(ctx, q, id, viewerID, &d); err != nil {
			return err
		}
		return r.questionComments(ctx, q, id, &d)
	})
	if err != nil || !found {
		return nil, err
	}
	return &d, nil
}

func (r *PgxContentRepository) questionTags(ctx context.Context, q querier, id int64, d *domain.QuestionDetails) error {
	rows, err := q.Query(ctx, `
		SELECT t.id, t.name FROM question_tags qt
		JOIN tags t ON t.id = qt.tag_id
		WHERE qt.question_id = $1
		ORDER BY t.name
	`, id)
	if err != nil {
		return fmt.Errorf("query tags: %w", err)
	}
	tags, err := pgx.CollectRows(rows, pgx.RowToStructByPos[domain.Tag])
	if err != nil {
		return fmt.Errorf("scan tags: %w", err)
	}
	d.Tags = append(d.Tags, tags...)
	return nil
}

func (r *PgxContentRepository) questionAnswers(ctx context.Context, q querier, id, viewerID int64, d *domain.QuestionDetails) error {
	rows, err := q.Query(ctx, `
		SELECT a.id, a.user_id, u.username, a.body, a.is_accepted, a.created_at, a.updated_at,
			`+scoreExpr+` AS vote_count,
			MAX(CASE WHEN v.user_id = $2 THEN v.vote_type END) AS user_vote
		FROM answers a
		JOIN users u ON u.id = a.user_id
		LEFT JOIN votes v ON v.votable_type = 'answer' AND v.votable_id = a.id
		WHERE a.question_id = $1
		GROUP BY a.id, u.username
		ORDER BY a.is_accepted DESC, vote_count DESC, a.created_at ASC, a.id ASC
	`, id, viewerID)
	if err != nil {
		return fmt.Errorf("query answers: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		a := domain.AnswerView{Comments: []domain.CommentView{}}
		var userVote *string
		if err := rows.Scan(
			&a.ID, &a.UserID, &a.Username, &a.Body, &a.IsAccepted, &a.CreatedAt, &a.UpdatedAt,
			&a.VoteCount, &userVote,
		); err != nil {
			return fmt.Errorf("scan answer: %w", err)
		}
		a.UserVote = toVoteType(userVote)
		d.Answers = append(d.Answers, a)
	}
	return rows.Err()
}

// questionComments loads the comments on the question and on its answers and
// attaches each to its parent.
func (r *PgxContentRepository) questionComments(ctx context.Context, q querier, id int64, d *domain.QuestionDetails) error {
	rows, err := q.Query(ctx, `
		SELECT c.id, c.user_id, u.username, c.commentable_type, c.commentable_id, c.body, c.created_at
		FROM comments c
		JOIN users u ON u.id = c.user_id
		WHERE (c.commentable_type = 'question' AND c.commentable_id = $1)
		   OR (c.commentable_type = 'answer' AND c.commentable_id IN (
				SELECT id FROM answers WHERE question_id = $1
		   ))
		ORDER BY c.created_at ASC, c.id ASC
	`, id)
	if err != nil {
		return fmt.Errorf("query comments: %w", err)
	}
	defer rows.Close()

	answerIdx := make(map[int64]int, len(d.Answers))
	for i, a := range d.Answers {
		answerIdx[a.ID] = i
	}
	for rows.Next() {
		var (
			c               domain.CommentView
			commentableType string
		)
		if err := rows.Scan(&c.ID, &c.UserID, &c.Username, &commentableType, &c.CommentableID, &c.Body, &c.CreatedAt); err != nil {
			return fmt.Errorf("scan comment: %w", err)
		}
		c.CommentableType = domain.VotableType(commentableType)
		if c.CommentableType == domain.VotableQuestion {
			d.Comments = append(d.Comments, c)
			continue
		}
		if i, ok := answerIdx[c.CommentableID]; ok {
			d.Answers[i].Comments = append(d.Answers[i].Comments, c)
		}
	}
	return rows.Err()
}

// GetComment returns the comment, or (nil, nil) when it does not exist.
func (r *PgxContentRepository) GetComment(ctx context.Context, id int64) (*domain.Comment, error) {
	var (
		comment         domain.Comment
		commentableType string
	)
	found := true
	err := r.db.withConn(ctx, func(q querier) error {
		err := q.QueryRow(ctx, `
			SELECT id, user_id, commentable_type, commentable_id, body, created_at
			FROM comments WHERE id = $1
		`, id).Scan(&comment.ID, &comment.UserID, &commentableType, &comment.CommentableID, &comment.Body, &comment.CreatedAt)
		if errors.Is(err, pgx.ErrNoRows) {
			found = false
			return nil
		}
		return err
	})
	if err != nil || !found {
		return nil, err
	}
	comment.CommentableType = domain.VotableType(commentableType)
	return &comment, nil
}

func toVoteType(raw *string) *domain.VoteType {
	if raw == nil {
		return nil
	}
	vt := domain.VoteType(*raw)
	return &vt
}

// ListQuestions returns one page of questions with tag, answer and vote
// aggregates. The page and the total count are fetched concurrently on two
// pooled connections, so it must not be called inside a transaction.
func (r *PgxContentRepository) ListQuestions(ctx context.Context, lq domain.QuestionQuery, viewerID int64) (*domain.QuestionPage, error) {
	var (
		where  []string
		params []any
	)
	if lq.Q != "" {
		params = append(params, lq.Q)
		where = append(where, fmt.Sprintf(`q.search_vector @@ plainto_tsquery('english', $%d)`, len(params)))
	}
	if tags := splitTags(lq.Tags); len(tags) > 0 {
		params = append(params, tags)
		where = append(where, fmt.Sprintf(`EXISTS (
			SELECT 1 FROM question_tags qt2
			JOIN tags t2 ON qt2.tag_id = t2.id
			WHERE qt2.question_id = q.id AND t2.name = ANY($%d)
		)`, len(params)))
	}
	whereClause := ""
	if len(where) > 0 {
		whereClause = "WHERE " + strings.Join(where, " AND ")
	}
	filterParams := append([]any(nil), params...)

	orderClause := "ORDER BY q.created_at DESC"
	if lq.Q != "" {
		orderClause = "ORDER BY ts_rank(q.search_vector, plainto_tsquery('english', $1)) DESC, q.created_at DESC"
	}

	params = append(params, viewerID, lq.Limit, (lq.Page-1)*lq.Limit)
	viewerArg, limitArg, offsetArg := len(params)-2, len(params)-1, len(params)

	dataQuery := fmt.Sprintf(`
		SELECT
			q.id, q.title, q.body, q.views, q.created_at, q.updated_at,
			u.username,
			COALESCE(
				json_agg(DISTINCT jsonb_build_object('id', t.id, 'name', t.name))
				FILTER (WHERE t.id IS NOT NULL), '[]'
			) AS tags,
			(SELECT COUNT(*) FROM answers a WHERE a.question_id = q.id) AS answer_count,
			(SELECT COALESCE(SUM(CASE WHEN v.vote_type = 'upvote' THEN 1 WHEN v.vote_type = 'downvote' THEN -1 ELSE 0 END), 0)
				FROM votes v WHERE v.votable_type = 'question' AND v.votable_id = q.id) AS vote_count,
			(SELECT v.vote_type FROM votes v
				WHERE v.votable_type = 'question' AND v.votable_id = q.id AND v.user_id = $%d) AS user_vote
		FROM questions q
		JOIN users u ON q.user_id = u.id
		LEFT JOIN question_tags qt ON q.id = qt.question_id
		LEFT JOIN tags t ON qt.tag_id = t.id
		%s
		GROUP BY q.id, u.username
		%s
		LIMIT $%d OFFSET $%d
	`, viewerArg, whereClause, orderClause, limitArg, offsetArg)

	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM questions q %s`, whereClause)

	var (
		questions []domain.QuestionSummary
		total     int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return r.db.withConn(gctx, func(q querier) error {
			rows, err := q.Query(gctx, dataQuery, params...)
			if err != nil {
				return fmt.Errorf("query questions: %w", err)
			}
			defer rows.Close()

			for rows.Next() {
				var (
					s        domain.QuestionSummary
					userVote *string
				)
				if err := rows.Scan(
					&s.ID, &s.Title, &s.Body, &s.Views, &s.CreatedAt, &s.UpdatedAt,
					&s.Username, &s.Tags, &s.AnswerCount, &s.VoteCount, &userVote,
				); err != nil {
					return fmt.Errorf("scan question: %w", err)
				}
				s.UserVote = toVoteType(userVote)
				questions = append(questions, s)
			}
			return rows.Err()
		})
	})
	g.Go(func() error {
		return r.db.withConn(gctx, func(q querier) error {
			return q.QueryRow(gctx, countQuery, filterParams...).Scan(&total)
		})
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if questions == nil {
		questions = []domain.QuestionSummary{}
	}
	return &domain.QuestionPage{
		Questions:  questions,
		Total:      total,
		Page:       lq.Page,
		TotalPages: (total + lq.Limit - 1) / lq.Limit,
	}, nil
}

// splitTags parses the comma separated tag filter into lower-cased names.
func splitTags(raw string) []string {
	var tags []string
	for _, t := range strings.Split(raw, ",") {
		if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}
