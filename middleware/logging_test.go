package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func TestTraceIDFromParent(t *testing.T) {
	cases := map[string]string{
		"00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01": "4bf92f3577b34da6a3ce929d0e0e4736",
		"00-short-00f067aa0ba902b7-01":                            "",
		"garbage":                                                 "",
		"":                                                        "",
	}
	for in, want := range cases {
		if got := traceIDFromParent(in); got != want {
			t.Errorf("traceIDFromParent(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestLoggingMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var buf bytes.Buffer
	prev := log.Logger
	log.Logger = zerolog.New(&buf)
	defer func() { log.Logger = prev }()

	r := gin.New()
	r.Use(LoggingMiddleware())
	r.GET("/ping", func(c *gin.Context) {
		zerolog.Ctx(c.Request.Context()).Info().Msg("inside handler")
		c.Status(http.StatusNoContent)
	})

	t.Run("propagates incoming trace id", func(t *testing.T) {
		buf.Reset()
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.Header.Set(TraceIDHeader, "trace-123")
		r.ServeHTTP(w, req)

		if got := w.Header().Get(TraceIDHeader); got != "trace-123" {
			t.Fatalf("want trace-123 echoed, got %q", got)
		}
		if strings.Count(buf.String(), `"trace_id":"trace-123"`) != 2 {
			t.Fatalf("handler and access log must both carry the trace id: %s", buf.String())
		}
	})

	t.Run("generates trace id", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))

		if got := w.Header().Get(TraceIDHeader); len(got) != 32 {
			t.Fatalf("want generated 32 char trace id, got %q", got)
		}
	})
}
