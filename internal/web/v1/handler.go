package v1

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/duynhne/qa-service/internal/logger"
	logicv1 "github.com/duynhne/qa-service/internal/logic/v1"
	"github.com/duynhne/qa-service/middleware"
)

// Handler groups HTTP handlers for the API v1.
// Dependencies are injected via the constructor, no global state.
type Handler struct {
	auth    *logicv1.AuthService
	votes   *logicv1.VoteService
	content *logicv1.ContentService
	users   *logicv1.UserService
}

// NewHandler creates a new Handler with the given services.
func NewHandler(
	auth *logicv1.AuthService,
	votes *logicv1.VoteService,
	content *logicv1.ContentService,
	users *logicv1.UserService,
) *Handler {
	return &Handler{auth: auth, votes: votes, content: content, users: users}
}

// RegisterRoutes registers all API v1 routes on the given router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	requireAuth := RequireAuth(h.auth)

	rg.POST("/auth/register", h.Register)
	rg.POST("/auth/login", h.Login)
	rg.POST("/auth/refresh", h.Refresh)
	rg.POST("/auth/logout", h.Logout)
	rg.GET("/auth/me", requireAuth, h.GetMe)

	rg.GET("/questions", OptionalAuth(h.auth), h.ListQuestions)
	rg.GET("/questions/:id", OptionalAuth(h.auth), h.GetQuestion)
	rg.POST("/questions", requireAuth, h.CreateQuestion)
	rg.POST("/questions/:id/vote", requireAuth, h.VoteQuestion)

	rg.POST("/answers", requireAuth, h.CreateAnswer)
	rg.POST("/answers/:id/vote", requireAuth, h.VoteAnswer)

	rg.GET("/comments/:id", h.GetComment)
	rg.POST("/comments", requireAuth, h.CreateComment)

	rg.GET("/users/top", h.TopUsers)
	rg.GET("/users/:id", h.GetProfile)
}

// startSpan opens the web-layer span for the request.
func startSpan(c *gin.Context) (trace.Span, *zerolog.Logger) {
	ctx, span := middleware.StartSpan(c.Request.Context(), "http.request", trace.WithAttributes(
		attribute.String("layer", "web"),
		attribute.String("method", c.Request.Method),
		attribute.String("path", c.FullPath()),
	))
	c.Request = c.Request.WithContext(ctx)
	return span, logger.FromContext(ctx)
}

// pathID parses the :id parameter. On failure it answers 400 and returns false.
func pathID(c *gin.Context, what string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + what + " id"})
		return 0, false
	}
	return id, true
}

// bindError answers a request whose body or query failed validation.
func bindError(c *gin.Context, span trace.Span, logger *zerolog.Logger, err error) {
	span.SetAttributes(attribute.Bool("request.valid", false))
	span.RecordError(err)
	logger.Warn().Err(err).Msg("Invalid request")
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

// respondError maps a logic error to a status code. Bodies carry the error
// kind only, never the wrapped detail.
func respondError(c *gin.Context, span trace.Span, logger *zerolog.Logger, err error, msg string) {
	span.RecordError(err)

	status, body := http.StatusInternalServerError, "Internal server error"
	switch {
	case errors.Is(err, logicv1.ErrInvalidCredentials):
		status, body = http.StatusUnauthorized, "Invalid credentials"
	case errors.Is(err, logicv1.ErrInvalidRefreshToken):
		status, body = http.StatusUnauthorized, "Invalid refresh token"
	case errors.Is(err, logicv1.ErrUnauthorized), errors.Is(err, logicv1.ErrUserNotFound):
		status, body = http.StatusUnauthorized, "Unauthorized"
	case errors.Is(err, logicv1.ErrSelfVoteForbidden):
		status, body = http.StatusForbidden, "Cannot vote on your own content"
	case errors.Is(err, logicv1.ErrNotFound):
		status, body = http.StatusNotFound, "Not found"
	case errors.Is(err, logicv1.ErrUserExists):
		status, body = http.StatusConflict, "Username or email already exists"
	case errors.Is(err, logicv1.ErrInvalidVote), errors.Is(err, logicv1.ErrInvalidInput):
		status, body = http.StatusBadRequest, "Invalid request"
	case errors.Is(err, logicv1.ErrStoreUnavailable):
		status, body = http.StatusServiceUnavailable, "Service unavailable"
	}

	event := logger.Warn()
	if status >= http.StatusInternalServerError {
		event = logger.Error()
	}
	event.Err(err).Int("status", status).Msg(msg)
	c.AbortWithStatusJSON(status, gin.H{"error": body})
}
