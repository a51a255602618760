package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newObservedRouter(t *testing.T) (*chi.Mux, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	logger := zap.New(core)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(InjectLoggerMiddleware(logger))
	r.Use(RequestLoggerMiddleware())
	r.Use(RecoveryMiddleware(logger))
	r.Get("/funnels/{id}", func(w http.ResponseWriter, r *http.Request) {
		FromContext(r.Context()).Debug("handler reached")
		w.WriteHeader(http.StatusNoContent)
	})
	r.Get("/boom", func(http.ResponseWriter, *http.Request) {
		panic("kaboom")
	})
	r.Get("/missing", func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusNotFound)
	})
	return r, logs
}

func TestRequestLoggerRecordsRoutePattern(t *testing.T) {
	r, logs := newObservedRouter(t)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/funnels/01HX", nil))

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if logs.FilterMessage("handler reached").Len() != 1 {
		t.Fatalf("expected handler to log through the request logger")
	}
	entries := logs.FilterMessage("request completed").All()
	if len(entries) != 1 {
		t.Fatalf("expected one completion entry, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["route"] != "/funnels/{id}" {
		t.Fatalf("expected route pattern, got %v", fields["route"])
	}
	if fields["status"] != int64(http.StatusNoContent) {
		t.Fatalf("expected status 204, got %v", fields["status"])
	}
	if id, _ := fields["request_id"].(string); id == "" {
		t.Fatalf("expected request id field")
	}
	if entries[0].Level != zapcore.InfoLevel {
		t.Fatalf("expected info level, got %s", entries[0].Level)
	}
}

func TestRequestLoggerWarnsOnClientErrors(t *testing.T) {
	r, logs := newObservedRouter(t)
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/missing", nil))

	entries := logs.FilterMessage("request completed").All()
	if len(entries) != 1 || entries[0].Level != zapcore.WarnLevel {
		t.Fatalf("expected one warn entry, got %+v", entries)
	}
}

func TestRecoveryMiddlewareWritesEnvelope(t *testing.T) {
	r, logs := newObservedRouter(t)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"internal_server_error"`) {
		t.Fatalf("expected error envelope, got %s", rec.Body.String())
	}
	if logs.FilterMessage("panic recovered").Len() != 1 {
		t.Fatalf("expected panic to be logged")
	}
	entries := logs.FilterMessage("request completed").All()
	if len(entries) != 1 || entries[0].Level != zapcore.ErrorLevel {
		t.Fatalf("expected error completion entry, got %+v", entries)
	}
}

func TestResponseRecorderFlushes(t *testing.T) {
	rec := httptest.NewRecorder()
	wrapped := newResponseRecorder(rec)
	var w http.ResponseWriter = wrapped
	f, ok := w.(http.Flusher)
	if !ok {
		t.Fatalf("recorder must implement http.Flusher")
	}
	_, _ = w.Write([]byte("data: x\n\n"))
	f.Flush()
	if !rec.Flushed {
		t.Fatalf("expected underlying writer to be flushed")
	}
	if wrapped.BytesWritten() != 9 {
		t.Fatalf("expected 9 bytes, got %d", wrapped.BytesWritten())
	}
}

func TestSanitizeString(t *testing.T) {
	if got := sanitizeString("a\x00b\nc", 10); got != "abc" {
		t.Fatalf("expected control characters removed, got %q", got)
	}
	if got := sanitizeString(strings.Repeat("x", 20), 5); got != "xxxxx" {
		t.Fatalf("expected truncation, got %q", got)
	}
	if SanitizeRoute("") != "/" {
		t.Fatalf("expected empty route to become /")
	}
}

func TestNewLoggerLevels(t *testing.T) {
	logger, err := NewLogger(LoggerOptions{Level: "warn", OutputPaths: []string{"stderr"}})
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	if logger.Core().Enabled(zapcore.InfoLevel) {
		t.Fatalf("info must be disabled at warn level")
	}
	fallback, err := NewLogger(LoggerOptions{Level: "loud", OutputPaths: []string{"stderr"}})
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	if !fallback.Core().Enabled(zapcore.InfoLevel) || fallback.Core().Enabled(zapcore.DebugLevel) {
		t.Fatalf("invalid level must fall back to info")
	}
}

func TestRequestLoggerTagsFunnelStreams(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	r := chi.NewRouter()
	r.Use(InjectLoggerMiddleware(zap.New(core)))
	r.Use(RequestLoggerMiddleware())
	r.Get("/funnels/{funnelID}/events", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = w.Write([]byte(": keep-alive\n\n"))
	})

	req := httptest.NewRequest(http.MethodGet, "/funnels/01hxfunnel/events", nil)
	req.Header.Set("Accept", "text/event-stream")
	r.ServeHTTP(httptest.NewRecorder(), req)

	if logs.FilterMessage("stream opened").Len() != 1 {
		t.Fatalf("expected stream opened entry")
	}
	if logs.FilterMessage("request completed").Len() != 0 {
		t.Fatalf("streams must not log a plain completion entry")
	}
	entries := logs.FilterMessage("stream closed").All()
	if len(entries) != 1 {
		t.Fatalf("expected one stream closed entry, got %d", len(entries))
	}
	if got := entries[0].ContextMap()["funnel_id"]; got != "01hxfunnel" {
		t.Fatalf("expected funnel id field, got %v", got)
	}
}
