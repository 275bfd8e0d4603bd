package domain

import "context"

// NewQuestion is the input of ContentRepository.CreateQuestion.
type NewQuestion struct {
	UserID int64
	Title  string
	Body   string
	Tags   []string
}

// NewAnswer is the input of ContentRepository.CreateAnswer.
type NewAnswer struct {
	QuestionID int64
	UserID     int64
	Body       string
}

// NewComment is the input of ContentRepository.CreateComment.
type NewComment struct {
	UserID          int64
	CommentableType VotableType
	CommentableID   int64
	Body            string
}

// ContentRepository is the question/answer/comment collaborator. The core
// only needs ownership lookups and the write paths that stale cached listings.
type ContentRepository interface {
	// FindVotableOwner returns the author of the question or answer.
	// Returns (nil, nil) when the votable does not exist.
	FindVotableOwner(ctx context.Context, votableType VotableType, id int64) (*int64, error)

	// CreateQuestion inserts the question and links its tags, creating
	// missing tags. Must run inside a transaction.
	CreateQuestion(ctx context.Context, q NewQuestion) (*Question, error)

	// CreateAnswer inserts the answer and touches the question's updated_at.
	// Must run inside a transaction.
	CreateAnswer(ctx context.Context, a NewAnswer) (*Answer, error)

	// CreateComment inserts the comment.
	CreateComment(ctx context.Context, c NewComment) (*Comment, error)

	// GetQuestionDetails counts a view and returns the question with its
	// answers and comments. viewerID, when non-zero, fills the UserVote
	// fields. Returns (nil, nil) when the question does not exist.
	GetQuestionDetails(ctx context.Context, id, viewerID int64) (*QuestionDetails, error)
	// GetComment returns the comment. Returns (nil, nil) when it does not exist.
	GetComment(ctx context.Context, id int64) (*Comment, error)
	// ListQuestions returns one page of questions with aggregate counts.
	// viewerID, when non-zero, fills QuestionSummary.UserVote.
	ListQuestions(ctx context.Context, q QuestionQuery, viewerID int64) (*QuestionPage, error)
}
