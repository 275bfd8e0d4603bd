package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/duynhne/qa-service/internal/core/domain"
)

// ListQuestions handles GET /api/v1/questions.
func (h *Handler) ListQuestions(c *gin.Context) {
	span, logger := startSpan(c)
	defer span.End()

	var q domain.QuestionQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		bindError(c, span, logger, err)
		return
	}

	page, err := h.content.ListQuestions(c.Request.Context(), c.GetInt64(UserIDKey), q)
	if err != nil {
		respondError(c, span, logger, err, "List questions failed")
		return
	}
	c.JSON(http.StatusOK, page)
}

// GetQuestion handles GET /api/v1/questions/:id.
func (h *Handler) GetQuestion(c *gin.Context) {
	span, logger := startSpan(c)
	defer span.End()

	id, ok := pathID(c, "question")
	if !ok {
		return
	}

	details, err := h.content.GetQuestion(c.Request.Context(), c.GetInt64(UserIDKey), id)
	if err != nil {
		respondError(c, span, logger, err, "Get question failed")
		return
	}
	c.JSON(http.StatusOK, details)
}

// CreateQuestion handles POST /api/v1/questions.
func (h *Handler) CreateQuestion(c *gin.Context) {
	span, logger := startSpan(c)
	defer span.End()

	var req domain.CreateQuestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, span, logger, err)
		return
	}

	question, err := h.content.CreateQuestion(c.Request.Context(), c.GetInt64(UserIDKey), req)
	if err != nil {
		respondError(c, span, logger, err, "Create question failed")
		return
	}
	c.JSON(http.StatusCreated, question)
}

// CreateAnswer handles POST /api/v1/answers.
func (h *Handler) CreateAnswer(c *gin.Context) {
	span, logger := startSpan(c)
	defer span.End()

	var req domain.CreateAnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, span, logger, err)
		return
	}

	answer, err := h.content.CreateAnswer(c.Request.Context(), c.GetInt64(UserIDKey), req)
	if err != nil {
		respondError(c, span, logger, err, "Create answer failed")
		return
	}
	c.JSON(http.StatusCreated, answer)
}

// GetComment handles GET /api/v1/comments/:id.
func (h *Handler) GetComment(c *gin.Context) {
	span, logger := startSpan(c)
	defer span.End()

	id, ok := pathID(c, "comment")
	if !ok {
		return
	}

	comment, err := h.content.GetComment(c.Request.Context(), id)
	if err != nil {
		respondError(c, span, logger, err, "Get comment failed")
		return
	}
	c.JSON(http.StatusOK, comment)
}

// CreateComment handles POST /api/v1/comments.
func (h *Handler) CreateComment(c *gin.Context) {
	span, logger := startSpan(c)
	defer span.End()

	var req domain.CreateCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, span, logger, err)
		return
	}

	comment, err := h.content.CreateComment(c.Request.Context(), c.GetInt64(UserIDKey), req)
	if err != nil {
		respondError(c, span, logger, err, "Create comment failed")
		return
	}
	c.JSON(http.StatusCreated, comment)
}
