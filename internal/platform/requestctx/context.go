// Package requestctx carries request-scoped values (logger, trace and
// negotiated locale) through context.Context.
package requestctx

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type (
	loggerKey struct{}
	traceKey  struct{}
	localeKey struct{}
)

var noopLogger = zap.NewNop()

// TraceInfo identifies the trace a request belongs to.
type TraceInfo struct {
	TraceID string
	SpanID  string
	Sampled bool
}

func with(ctx context.Context, key, value any) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, key, value)
}

func value[T any](ctx context.Context, key any) (T, bool) {
	var zero T
	if ctx == nil {
		return zero, false
	}
	v, ok := ctx.Value(key).(T)
	return v, ok
}

// WithLogger attaches logger to ctx. A nil logger attaches the no-op logger.
func WithLogger(ctx context.Context, logger *zap.Logger) context.Context {
	if logger == nil {
		logger = noopLogger
	}
	return with(ctx, loggerKey{}, logger)
}

// Logger returns the request logger, never nil.
func Logger(ctx context.Context) *zap.Logger {
	if logger, ok := value[*zap.Logger](ctx, loggerKey{}); ok && logger != nil {
		return logger
	}
	return noopLogger
}

// NoopLogger is what Logger returns when ctx carries no logger.
func NoopLogger() *zap.Logger { return noopLogger }

// WithTrace overrides the trace identity seen by Trace.
func WithTrace(ctx context.Context, info TraceInfo) context.Context {
	return with(ctx, traceKey{}, info)
}

// Trace reports the trace identity of ctx. Values stored with WithTrace win
// over the OpenTelemetry span context.
func Trace(ctx context.Context) (TraceInfo, bool) {
	if info, ok := value[TraceInfo](ctx, traceKey{}); ok {
		return info, true
	}
	if ctx == nil {
		return TraceInfo{}, false
	}
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return TraceInfo{}, false
	}
	return TraceInfo{
		TraceID: sc.TraceID().String(),
		SpanID:  sc.SpanID().String(),
		Sampled: sc.IsSampled(),
	}, true
}

// TraceID is Trace(ctx).TraceID, or "".
func TraceID(ctx context.Context) string {
	info, _ := Trace(ctx)
	return info.TraceID
}

// WithLocale stores the negotiated language tag.
func WithLocale(ctx context.Context, lang string) context.Context {
	return with(ctx, localeKey{}, lang)
}

// Locale returns the negotiated language tag, or "" when none was stored.
func Locale(ctx context.Context) string {
	lang, _ := value[string](ctx, localeKey{})
	return lang
}
