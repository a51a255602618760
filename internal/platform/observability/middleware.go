package observability

import (
	"net"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/AbdelrhmanRafat/Funnel-Pages-sub000/internal/platform/httpx"
	"github.com/AbdelrhmanRafat/Funnel-Pages-sub000/internal/platform/requestctx"
)

// funnelParam is the chi URL parameter naming a funnel.
const funnelParam = "funnelID"

// InjectLoggerMiddleware stores the provided logger on the request context.
func InjectLoggerMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(requestctx.WithLogger(r.Context(), logger)))
		})
	}
}

// RequestLoggerMiddleware writes one access log entry per request and
// records the response status on the active span. Event streams also get an
// entry when they open, and their completion entry reads "stream closed".
func RequestLoggerMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			logger := WithRequestFields(requestctx.Logger(ctx), requestFields(r)...)
			r = r.WithContext(requestctx.WithLogger(ctx, logger))

			streaming := isEventStream(r)
			if streaming {
				logger.Debug("stream opened")
			}

			rec := newResponseRecorder(w)
			start := time.Now()
			panicked := true
			defer func() {
				status := rec.Status()
				if panicked && status < http.StatusInternalServerError {
					status = http.StatusInternalServerError
				}
				entry := accessEntry{
					route:    routePattern(r),
					funnelID: chi.URLParam(r, funnelParam),
					status:   status,
					latency:  time.Since(start),
					bytes:    rec.BytesWritten(),
				}
				annotateSpan(trace.SpanFromContext(r.Context()), entry)
				msg := "request completed"
				if streaming {
					msg = "stream closed"
				}
				if ce := logger.Check(levelFor(status), msg); ce != nil {
					ce.Write(entry.fields()...)
				}
			}()

			next.ServeHTTP(rec, r)
			panicked = false
		})
	}
}

type accessEntry struct {
	route    string
	funnelID string
	status   int
	latency  time.Duration
	bytes    int64
}

func (e accessEntry) fields() []zap.Field {
	fields := []zap.Field{
		zap.String("route", SanitizeRoute(e.route)),
		zap.Int("status", e.status),
		zap.Duration("latency", e.latency),
		zap.Int64("bytes", e.bytes),
	}
	if e.funnelID != "" {
		fields = append(fields, zap.String("funnel_id", SanitizeID(e.funnelID)))
	}
	return fields
}

func requestFields(r *http.Request) []zap.Field {
	ctx := r.Context()
	fields := []zap.Field{
		zap.String("request_id", middleware.GetReqID(ctx)),
		zap.String("method", SanitizeMethod(r.Method)),
		zap.String("path", SanitizeRoute(r.URL.Path)),
	}
	if traceID := requestctx.TraceID(ctx); traceID != "" {
		fields = append(fields, zap.String("trace_id", traceID))
	}
	if ip := remoteIP(r); ip != "" {
		fields = append(fields, zap.String("remote_ip", ip))
	}
	return fields
}

func levelFor(status int) zapcore.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return zapcore.ErrorLevel
	case status >= http.StatusBadRequest:
		return zapcore.WarnLevel
	default:
		return zapcore.InfoLevel
	}
}

func annotateSpan(span trace.Span, e accessEntry) {
	attrs := []attribute.KeyValue{semconv.HTTPResponseStatusCode(e.status)}
	if e.route != "" {
		attrs = append(attrs, semconv.HTTPRoute(SanitizeRoute(e.route)))
	}
	if e.funnelID != "" {
		attrs = append(attrs, attribute.String("funnel.id", SanitizeID(e.funnelID)))
	}
	span.SetAttributes(attrs...)
	if e.status >= http.StatusInternalServerError {
		span.SetStatus(codes.Error, http.StatusText(e.status))
		return
	}
	span.SetStatus(codes.Ok, "")
}

func isEventStream(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "text/event-stream")
}

// RecoveryMiddleware turns a panic into a 500 envelope and logs the stack.
// http.ErrAbortHandler is re-raised so the server aborts the response.
func RecoveryMiddleware(fallback *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				ctx := r.Context()
				logger := requestctx.Logger(ctx)
				if logger == requestctx.NoopLogger() && fallback != nil {
					logger = fallback
				}
				logger.Error("panic recovered", zap.Any("panic", rec), zap.ByteString("stack", debug.Stack()))
				httpx.WriteError(ctx, w, httpx.NewError("internal_server_error", "internal server error", http.StatusInternalServerError))
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	if r.URL.Path != "" {
		return r.URL.Path
	}
	return "/"
}

func remoteIP(r *http.Request) string {
	addr := strings.TrimSpace(r.RemoteAddr)
	if host, _, err := net.SplitHostPort(addr); err == nil {
		addr = host
	}
	return sanitizeString(addr, 64)
}

// responseRecorder captures status and size. It forwards Flush and exposes
// the wrapped writer so event streams keep working behind it.
type responseRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
	bytes       int64
}

func newResponseRecorder(w http.ResponseWriter) *responseRecorder {
	return &responseRecorder{ResponseWriter: w, status: http.StatusOK}
}

func (r *responseRecorder) WriteHeader(status int) {
	if r.wroteHeader {
		return
	}
	r.status = status
	r.wroteHeader = true
	r.ResponseWriter.WriteHeader(status)
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	r.wroteHeader = true
	n, err := r.ResponseWriter.Write(b)
	r.bytes += int64(n)
	return n, err
}

func (r *responseRecorder) Flush() {
	_ = http.NewResponseController(r.ResponseWriter).Flush()
}

func (r *responseRecorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }

func (r *responseRecorder) Status() int { return r.status }

func (r *responseRecorder) BytesWritten() int64 { return r.bytes }
