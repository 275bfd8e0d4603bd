package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"

	"github.com/duynhne/qa-service/internal/core/domain"
)

// Register handles POST /api/v1/auth/register.
func (h *Handler) Register(c *gin.Context) {
	span, logger := startSpan(c)
	defer span.End()

	var req domain.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, span, logger, err)
		return
	}
	span.SetAttributes(attribute.Bool("request.valid", true))

	resp, err := h.auth.Register(c.Request.Context(), req)
	if err != nil {
		respondError(c, span, logger, err, "Registration failed")
		return
	}

	logger.Info().Int64("user_id", resp.User.ID).Msg("Registration successful")
	c.JSON(http.StatusCreated, resp)
}

// Login handles POST /api/v1/auth/login.
func (h *Handler) Login(c *gin.Context) {
	span, logger := startSpan(c)
	defer span.End()

	var req domain.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, span, logger, err)
		return
	}
	span.SetAttributes(attribute.Bool("request.valid", true))

	resp, err := h.auth.Login(c.Request.Context(), req)
	if err != nil {
		respondError(c, span, logger, err, "Login failed")
		return
	}

	logger.Info().Int64("user_id", resp.User.ID).Msg("Login successful")
	c.JSON(http.StatusOK, resp)
}

// Refresh handles POST /api/v1/auth/refresh.
func (h *Handler) Refresh(c *gin.Context) {
	span, logger := startSpan(c)
	defer span.End()

	var req domain.RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, span, logger, err)
		return
	}

	resp, err := h.auth.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		respondError(c, span, logger, err, "Refresh failed")
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Logout handles POST /api/v1/auth/logout.
func (h *Handler) Logout(c *gin.Context) {
	span, logger := startSpan(c)
	defer span.End()

	var req domain.RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, span, logger, err)
		return
	}

	if err := h.auth.Logout(c.Request.Context(), req.RefreshToken); err != nil {
		respondError(c, span, logger, err, "Logout failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}

// GetMe handles GET /api/v1/auth/me.
// Authorization: Bearer <token>
func (h *Handler) GetMe(c *gin.Context) {
	span, logger := startSpan(c)
	defer span.End()

	user, err := h.auth.GetMe(c.Request.Context(), c.GetInt64(UserIDKey))
	if err != nil {
		respondError(c, span, logger, err, "Get current user failed")
		return
	}
	c.JSON(http.StatusOK, user)
}
