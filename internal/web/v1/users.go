package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/duynhne/qa-service/internal/core/domain"
)

// GetProfile handles GET /api/v1/users/:id.
func (h *Handler) GetProfile(c *gin.Context) {
	span, logger := startSpan(c)
	defer span.End()

	id, ok := pathID(c, "user")
	if !ok {
		return
	}

	profile, err := h.users.GetProfile(c.Request.Context(), id)
	if err != nil {
		respondError(c, span, logger, err, "Get profile failed")
		return
	}
	c.JSON(http.StatusOK, profile)
}

// TopUsers handles GET /api/v1/users/top.
func (h *Handler) TopUsers(c *gin.Context) {
	span, logger := startSpan(c)
	defer span.End()

	var q domain.TopUsersQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		bindError(c, span, logger, err)
		return
	}

	users, err := h.users.TopUsers(c.Request.Context(), q.Limit)
	if err != nil {
		respondError(c, span, logger, err, "Top users failed")
		return
	}
	c.JSON(http.StatusOK, users)
}
