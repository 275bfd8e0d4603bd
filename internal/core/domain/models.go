package domain

import "time"

// VotableType names the two entity kinds that can receive votes (and comments).
type VotableType string

const (
	VotableQuestion VotableType = "question"
	VotableAnswer   VotableType = "answer"
)

// Valid reports whether t is a known votable type.
func (t VotableType) Valid() bool {
	return t == VotableQuestion || t == VotableAnswer
}

// VoteType is the direction of a vote.
type VoteType string

const (
	Upvote   VoteType = "upvote"
	Downvote VoteType = "downvote"
)

// Valid reports whether t is a known vote type.
func (t VoteType) Valid() bool {
	return t == Upvote || t == Downvote
}

// Value is the contribution of a single vote to a score.
func (t VoteType) Value() int {
	switch t {
	case Upvote:
		return 1
	case Downvote:
		return -1
	}
	return 0
}

// User is the public profile of a user. It never carries the password hash.
type User struct {
	ID         int64  `json:"id"`
	Username   string `json:"username"`
	Email      string `json:"email"`
	Reputation int    `json:"reputation"`
}

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// RegisterRequest is the body of POST /auth/register.
type RegisterRequest struct {
	Username string `json:"username" binding:"required,min=3,max=50,alphanum"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8,max=72"`
}

// RefreshRequest is the body of POST /auth/refresh and POST /auth/logout.
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

// AuthResponse is returned by login and refresh.
type AuthResponse struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refreshToken,omitempty"`
	User         User   `json:"user"`
}

// VoteRequest is the body of POST /questions/:id/vote and POST /answers/:id/vote.
type VoteRequest struct {
	VoteType VoteType `json:"vote_type" binding:"required,oneof=upvote downvote"`
}

// Tag is a question label.
type Tag struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Question is a persisted question.
type Question struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Views     int       `json:"views"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Answer is a persisted answer.
type Answer struct {
	ID         int64     `json:"id"`
	QuestionID int64     `json:"question_id"`
	UserID     int64     `json:"user_id"`
	Body       string    `json:"body"`
	IsAccepted bool      `json:"is_accepted"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Comment is a persisted comment on a question or answer.
type Comment struct {
	ID              int64       `json:"id"`
	UserID          int64       `json:"user_id"`
	CommentableType VotableType `json:"commentable_type"`
	CommentableID   int64       `json:"commentable_id"`
	Body            string      `json:"body"`
	CreatedAt       time.Time   `json:"created_at"`
}

// CreateQuestionRequest is the body of POST /questions.
type CreateQuestionRequest struct {
	Title string   `json:"title" binding:"required,min=10,max=255"`
	Body  string   `json:"body" binding:"required,min=20"`
	Tags  []string `json:"tags" binding:"required,min=1,max=5,dive,required,max=30"`
}

// CreateAnswerRequest is the body of POST /answers.
type CreateAnswerRequest struct {
	QuestionID int64  `json:"question_id" binding:"required,min=1"`
	Body       string `json:"body" binding:"required,min=20"`
}

// CreateCommentRequest is the body of POST /comments.
type CreateCommentRequest struct {
	CommentableType VotableType `json:"commentable_type" binding:"required,oneof=question answer"`
	CommentableID   int64       `json:"commentable_id" binding:"required,min=1"`
	Body            string      `json:"body" binding:"required,min=5,max=600"`
}

// QuestionQuery holds listing filters; it is also the cache key input.
type QuestionQuery struct {
	Q     string `form:"q"`
	Tags  string `form:"tags"`
	Page  int    `form:"page,default=1" binding:"min=1"`
	Limit int    `form:"limit,default=20" binding:"min=1,max=100"`
}

// QuestionSummary is one row of the question listing.
type QuestionSummary struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Body        string    `json:"body"`
	Views       int       `json:"views"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	Username    string    `json:"username"`
	Tags        []Tag     `json:"tags"`
	AnswerCount int       `json:"answer_count"`
	VoteCount   int       `json:"vote_count"`
	UserVote    *VoteType `json:"user_vote,omitempty"`
}

// QuestionPage is the cached listing payload.
type QuestionPage struct {
	Questions  []QuestionSummary `json:"questions"`
	Total      int               `json:"total"`
	Page       int               `json:"page"`
	TotalPages int               `json:"totalPages"`
}

// CommentView is a comment with its author's name.
type CommentView struct {
	ID              int64       `json:"id"`
	UserID          int64       `json:"user_id"`
	Username        string      `json:"username"`
	CommentableType VotableType `json:"commentable_type"`
	CommentableID   int64       `json:"commentable_id"`
	Body            string      `json:"body"`
	CreatedAt       time.Time   `json:"created_at"`
}

// AnswerView is an answer on the question details page.
type AnswerView struct {
	ID         int64         `json:"id"`
	UserID     int64         `json:"user_id"`
	Username   string        `json:"username"`
	Body       string        `json:"body"`
	IsAccepted bool          `json:"is_accepted"`
	CreatedAt  time.Time     `json:"created_at"`
	UpdatedAt  time.Time     `json:"updated_at"`
	VoteCount  int           `json:"vote_count"`
	UserVote   *VoteType     `json:"user_vote,omitempty"`
	Comments   []CommentView `json:"comments"`
}

// QuestionDetails is a question with its tags, answers and comments.
// Answers are ordered accepted first, then by score, then oldest first.
type QuestionDetails struct {
	ID        int64         `json:"id"`
	UserID    int64         `json:"user_id"`
	Username  string        `json:"username"`
	Title     string        `json:"title"`
	Body      string        `json:"body"`
	Views     int           `json:"views"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
	Tags      []Tag         `json:"tags"`
	VoteCount int           `json:"vote_count"`
	UserVote  *VoteType     `json:"user_vote,omitempty"`
	Comments  []CommentView `json:"comments"`
	Answers   []AnswerView  `json:"answers"`
}

// ProfileQuestion is one of a user's recent questions.
type ProfileQuestion struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	CreatedAt   time.Time `json:"created_at"`
	VoteCount   int       `json:"vote_count"`
	AnswerCount int       `json:"answer_count"`
}

// ProfileAnswer is one of a user's recent answers.
type ProfileAnswer struct {
	ID            int64     `json:"id"`
	Body          string    `json:"body"`
	IsAccepted    bool      `json:"is_accepted"`
	CreatedAt     time.Time `json:"created_at"`
	QuestionID    int64     `json:"question_id"`
	QuestionTitle string    `json:"question_title"`
	VoteCount     int       `json:"vote_count"`
}

// UserProfile is the public profile with activity counts. Recent activity is
// filled only for single-profile reads.
type UserProfile struct {
	ID              int64             `json:"id"`
	Username        string            `json:"username"`
	Email           string            `json:"email"`
	Reputation      int               `json:"reputation"`
	CreatedAt       time.Time         `json:"created_at"`
	QuestionCount   int               `json:"question_count"`
	AnswerCount     int               `json:"answer_count"`
	RecentQuestions []ProfileQuestion `json:"recent_questions,omitempty"`
	RecentAnswers   []ProfileAnswer   `json:"recent_answers,omitempty"`
}

// TopUsersQuery is the query of GET /users/top.
type TopUsersQuery struct {
	Limit int `form:"limit,default=10" binding:"min=1,max=100"`
}
