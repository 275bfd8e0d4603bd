package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const TraceIDHeader = "X-Trace-ID"
const TraceParentHeader = "traceparent"

// traceIDKey is the gin context key holding the request trace-id.
const traceIDKey = "trace_id"

// GetTraceID extracts trace-id from request headers or generates a new one.
// W3C traceparent wins over X-Trace-ID.
func GetTraceID(c *gin.Context) string {
	if id := traceIDFromParent(c.GetHeader(TraceParentHeader)); id != "" {
		return id
	}
	if id := c.GetHeader(TraceIDHeader); id != "" {
		return id
	}
	return generateTraceID()
}

// traceIDFromParent returns the trace_id field of a traceparent header
// (version-trace_id-parent_id-flags), or "" when the header is malformed.
func traceIDFromParent(traceParent string) string {
	parts := strings.Split(traceParent, "-")
	if len(parts) < 2 || len(parts[1]) != 32 {
		return ""
	}
	return parts[1]
}

// generateTraceID returns 32 lowercase hex characters, the traceparent format.
func generateTraceID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// LoggingMiddleware injects a trace-id scoped zerolog logger into the request
// context and logs one line per request once the handler chain returns.
func LoggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		traceID := GetTraceID(c)
		c.Set(traceIDKey, traceID)

		logger := log.With().Str("trace_id", traceID).Logger()
		c.Request = c.Request.WithContext(logger.WithContext(c.Request.Context()))
		c.Header(TraceIDHeader, traceID)

		c.Next()

		status := c.Writer.Status()

		var event *zerolog.Event
		switch {
		case status >= 500:
			event = logger.Error()
		case status >= 400:
			event = logger.Warn()
		default:
			event = logger.Info()
		}

		if userID, ok := c.Get(UserIDKey); ok {
			event = event.Interface("user_id", userID)
		}

		event.
			Str("method", method).
			Str("path", path).
			Int("status", status).
			Dur("duration", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Str("user_agent", c.Request.UserAgent()).
			Msg("HTTP request")
	}
}

// UserIDKey is the gin context key under which the authenticated user id is stored.
const UserIDKey = "user_id"
