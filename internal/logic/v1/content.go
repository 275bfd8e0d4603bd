package v1

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/duynhne/qa-service/internal/core/domain"
	"github.com/duynhne/qa-service/middleware"
)

const (
	questionListingPrefix = "questions:"

	defaultPageLimit = 20
	maxPageLimit     = 100
)

// ContentService implements the question, answer and comment writes that
// stale cached listings, and the cached question listing itself.
type ContentService struct {
	content      domain.ContentRepository
	tx           domain.Transactor
	cache        domain.Cache
	invalidation *InvalidationPolicy
	listingTTL   time.Duration
}

// NewContentService creates a new ContentService with the given dependencies.
func NewContentService(
	content domain.ContentRepository,
	tx domain.Transactor,
	cache domain.Cache,
	invalidation *InvalidationPolicy,
	listingTTL time.Duration,
) *ContentService {
	return &ContentService{
		content:      content,
		tx:           tx,
		cache:        cache,
		invalidation: invalidation,
		listingTTL:   listingTTL,
	}
}

// CreateQuestion stores a question with its tags.
func (s *ContentService) CreateQuestion(ctx context.Context, userID int64, req domain.CreateQuestionRequest) (*domain.Question, error) {
	ctx, span := middleware.StartSpan(ctx, "content.create_question", trace.WithAttributes(
		attribute.String("layer", "logic"),
		attribute.Int64("user.id", userID),
	))
	defer span.End()

	tags := normalizeTags(req.Tags)
	if len(tags) == 0 {
		return nil, fmt.Errorf("create question: no tags: %w", ErrInvalidInput)
	}

	var question *domain.Question
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		question, err = s.content.CreateQuestion(ctx, domain.NewQuestion{
			UserID: userID,
			Title:  strings.TrimSpace(req.Title),
			Body:   req.Body,
			Tags:   tags,
		})
		return err
	})
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("create question: %w", err)
	}

	s.invalidation.QuestionCreated(ctx, question.ID)
	span.SetAttributes(attribute.Int64("question.id", question.ID))
	return question, nil
}

// CreateAnswer stores an answer to an existing question.
func (s *ContentService) CreateAnswer(ctx context.Context, userID int64, req domain.CreateAnswerRequest) (*domain.Answer, error) {
	ctx, span := middleware.StartSpan(ctx, "content.create_answer", trace.WithAttributes(
		attribute.String("layer", "logic"),
		attribute.Int64("question.id", req.QuestionID),
	))
	defer span.End()

	var answer *domain.Answer
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		owner, err := s.content.FindVotableOwner(ctx, domain.VotableQuestion, req.QuestionID)
		if err != nil {
			return fmt.Errorf("query question %d: %w", req.QuestionID, err)
		}
		if owner == nil {
			return fmt.Errorf("lookup question %d: %w", req.QuestionID, ErrNotFound)
		}
		answer, err = s.content.CreateAnswer(ctx, domain.NewAnswer{
			QuestionID: req.QuestionID,
			UserID:     userID,
			Body:       req.Body,
		})
		return err
	})
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("create answer: %w", err)
	}

	s.invalidation.AnswerCreated(ctx, req.QuestionID)
	return answer, nil
}

// CreateComment stores a comment on an existing question or answer.
func (s *ContentService) CreateComment(ctx context.Context, userID int64, req domain.CreateCommentRequest) (*domain.Comment, error) {
	ctx, span := middleware.StartSpan(ctx, "content.create_comment", trace.WithAttributes(
		attribute.String("layer", "logic"),
		attribute.String("commentable.type", string(req.CommentableType)),
		attribute.Int64("commentable.id", req.CommentableID),
	))
	defer span.End()

	if !req.CommentableType.Valid() {
		return nil, fmt.Errorf("create comment on %q: %w", req.CommentableType, ErrInvalidInput)
	}

	owner, err := s.content.FindVotableOwner(ctx, req.CommentableType, req.CommentableID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("query %s %d: %w", req.CommentableType, req.CommentableID, err)
	}
	if owner == nil {
		return nil, fmt.Errorf("lookup %s %d: %w", req.CommentableType, req.CommentableID, ErrNotFound)
	}

	comment, err := s.content.CreateComment(ctx, domain.NewComment{
		UserID:          userID,
		CommentableType: req.CommentableType,
		CommentableID:   req.CommentableID,
		Body:            strings.TrimSpace(req.Body),
	})
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("create comment: %w", err)
	}

	s.invalidation.CommentCreated(ctx, req.CommentableType, req.CommentableID)
	return comment, nil
}

// GetQuestion counts a view and returns the question with its answers and
// comments. It is read from the store on every call: the view count changes
// on each read, and the vote counts it shows are never older than the request.
func (s *ContentService) GetQuestion(ctx context.Context, viewerID, id int64) (*domain.QuestionDetails, error) {
	ctx, span := middleware.StartSpan(ctx, "content.get_question", trace.WithAttributes(
		attribute.String("layer", "logic"),
		attribute.Int64("question.id", id),
	))
	defer span.End()

	var details *domain.QuestionDetails
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		details, err = s.content.GetQuestionDetails(ctx, id, viewerID)
		return err
	})
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("get question %d: %w", id, err)
	}
	if details == nil {
		return nil, fmt.Errorf("lookup question %d: %w", id, ErrNotFound)
	}
	span.SetAttributes(attribute.Int("answers.count", len(details.Answers)))
	return details, nil
}

// GetComment returns one comment.
func (s *ContentService) GetComment(ctx context.Context, id int64) (*domain.Comment, error) {
	ctx, span := middleware.StartSpan(ctx, "content.get_comment", trace.WithAttributes(
		attribute.String("layer", "logic"),
		attribute.Int64("comment.id", id),
	))
	defer span.End()

	comment, err := s.content.GetComment(ctx, id)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("query comment %d: %w", id, err)
	}
	if comment == nil {
		return nil, fmt.Errorf("lookup comment %d: %w", id, ErrNotFound)
	}
	return comment, nil
}

// ListQuestions returns one page of questions, served from the cache when
// possible. viewerID is zero for anonymous callers.
func (s *ContentService) ListQuestions(ctx context.Context, viewerID int64, q domain.QuestionQuery) (*domain.QuestionPage, error) {
	ctx, span := middleware.StartSpan(ctx, "content.list_questions", trace.WithAttributes(
		attribute.String("layer", "logic"),
	))
	defer span.End()

	q = normalizeQuery(q)
	key := ListingCacheKey(s.invalidation.ListingGeneration(ctx), q, viewerID)

	var cached domain.QuestionPage
	if s.cache.Get(ctx, key, &cached) {
		span.SetAttributes(attribute.Bool("cache.hit", true))
		return &cached, nil
	}
	span.SetAttributes(attribute.Bool("cache.hit", false))

	page, err := s.content.ListQuestions(ctx, q, viewerID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("list questions: %w", err)
	}

	s.cache.Set(ctx, key, page, s.listingTTL)
	return page, nil
}

// ListingCacheKey encodes the listing generation and parameters
// deterministically: tags are lower-cased, deduplicated and sorted, and
// anonymous viewers share one key.
func ListingCacheKey(generation string, q domain.QuestionQuery, viewerID int64) string {
	viewer := "anon"
	if viewerID > 0 {
		viewer = strconv.FormatInt(viewerID, 10)
	}
	raw, _ := json.Marshal(struct {
		Q      string   `json:"q"`
		Tags   []string `json:"tags"`
		Page   int      `json:"page"`
		Limit  int      `json:"limit"`
		Viewer string   `json:"viewer"`
	}{
		Q:      strings.TrimSpace(q.Q),
		Tags:   normalizeTags(strings.Split(q.Tags, ",")),
		Page:   q.Page,
		Limit:  q.Limit,
		Viewer: viewer,
	})
	return questionListingPrefix + generation + ":" + string(raw)
}

func normalizeQuery(q domain.QuestionQuery) domain.QuestionQuery {
	q.Q = strings.TrimSpace(q.Q)
	q.Tags = strings.Join(normalizeTags(strings.Split(q.Tags, ",")), ",")
	if q.Page < 1 {
		q.Page = 1
	}
	switch {
	case q.Limit < 1:
		q.Limit = defaultPageLimit
	case q.Limit > maxPageLimit:
		q.Limit = maxPageLimit
	}
	return q
}

func normalizeTags(raw []string) []string {
	tags := make([]string, 0, len(raw))
	for _, t := range raw {
		if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
			tags = append(tags, t)
		}
	}
	slices.Sort(tags)
	return slices.Compact(tags)
}
