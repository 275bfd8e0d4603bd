package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"

	"github.com/duynhne/qa-service/internal/core/domain"
)

// VoteQuestion handles POST /api/v1/questions/:id/vote.
func (h *Handler) VoteQuestion(c *gin.Context) {
	h.castVote(c, domain.VotableQuestion)
}

// VoteAnswer handles POST /api/v1/answers/:id/vote.
func (h *Handler) VoteAnswer(c *gin.Context) {
	h.castVote(c, domain.VotableAnswer)
}

func (h *Handler) castVote(c *gin.Context, votableType domain.VotableType) {
	span, logger := startSpan(c)
	defer span.End()

	id, ok := pathID(c, string(votableType))
	if !ok {
		return
	}

	var req domain.VoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, span, logger, err)
		return
	}

	userID := c.GetInt64(UserIDKey)
	result, err := h.votes.CastVote(c.Request.Context(), userID, votableType, id, req.VoteType)
	if err != nil {
		respondError(c, span, logger, err, "Vote failed")
		return
	}

	span.SetAttributes(attribute.String("vote.transition", string(result.Transition)))
	logger.Info().
		Int64("user_id", userID).
		Str("votable_type", string(votableType)).
		Int64("votable_id", id).
		Str("transition", string(result.Transition)).
		Msg("Vote recorded")
	c.JSON(http.StatusOK, result)
}
