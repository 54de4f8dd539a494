package logger

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// contextKey is a type for context keys used by the logger package
type contextKey string

const (
	// LoggerKey is the context key for the request logger
	LoggerKey contextKey = "logger"
	// RequestIDKey is the context key for request ID
	RequestIDKey contextKey = "request_id"
	// PartnerKey is the context key for the delivery partner code
	PartnerKey contextKey = "partner"
	// OrderIDKey is the context key for the canonical order ID
	OrderIDKey contextKey = "order_id"
	// UserIDKey is the context key for the operator ID
	UserIDKey contextKey = "user_id"
)

// scopedKeys are the context values L copies onto a logger, in field order
var scopedKeys = []contextKey{RequestIDKey, PartnerKey, OrderIDKey, UserIDKey}

// WithContext returns a new context with the logger attached
func WithContext(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, LoggerKey, logger)
}

// FromContext retrieves the request logger, or a no-op logger if none is set
func FromContext(ctx context.Context) *zap.Logger {
	if logger, ok := ctx.Value(LoggerKey).(*zap.Logger); ok {
		return logger
	}
	return zap.NewNop()
}

// WithRequestID stores the request ID on ctx and on the request logger
func WithRequestID(ctx context.Context, logger *zap.Logger, requestID string) (context.Context, *zap.Logger) {
	return withScoped(ctx, logger, RequestIDKey, requestID)
}

// WithPartner stores the partner code on ctx and on the request logger
func WithPartner(ctx context.Context, logger *zap.Logger, partner string) (context.Context, *zap.Logger) {
	return withScoped(ctx, logger, PartnerKey, partner)
}

// WithOrderID stores the canonical order ID on ctx and on the request logger
func WithOrderID(ctx context.Context, logger *zap.Logger, orderID string) (context.Context, *zap.Logger) {
	return withScoped(ctx, logger, OrderIDKey, orderID)
}

// WithUserID stores the operator ID on ctx and on the request logger
func WithUserID(ctx context.Context, logger *zap.Logger, userID string) (context.Context, *zap.Logger) {
	return withScoped(ctx, logger, UserIDKey, userID)
}

// withScoped is a no-op when ctx already carries the same value, so layers
// that each tag the partner or order do not repeat the field.
func withScoped(ctx context.Context, logger *zap.Logger, key contextKey, value string) (context.Context, *zap.Logger) {
	if value == "" || scopedValue(ctx, key) == value {
		return ctx, logger
	}
	ctx = context.WithValue(ctx, key, value)
	enriched := logger.With(zap.String(string(key), value))
	return WithContext(ctx, enriched), enriched
}

func scopedValue(ctx context.Context, key contextKey) string {
	v, _ := ctx.Value(key).(string)
	return v
}

// GetRequestID retrieves request ID from context
func GetRequestID(ctx context.Context) string { return scopedValue(ctx, RequestIDKey) }

// GetPartner retrieves the partner code from context
func GetPartner(ctx context.Context) string { return scopedValue(ctx, PartnerKey) }

// GetOrderID retrieves order ID from context
func GetOrderID(ctx context.Context) string { return scopedValue(ctx, OrderIDKey) }

// GetUserID retrieves the operator ID from context
func GetUserID(ctx context.Context) string { return scopedValue(ctx, UserIDKey) }

// GetTraceID returns the active span's trace ID, or "" without a valid span
func GetTraceID(ctx context.Context) string {
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		return sc.TraceID().String()
	}
	return ""
}

// GetSpanID returns the active span's span ID, or "" without a valid span
func GetSpanID(ctx context.Context) string {
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		return sc.SpanID().String()
	}
	return ""
}

// L returns base annotated with the request-scoped values carried by ctx:
// request_id, partner, order_id and user_id when set, and trace_id and
// span_id of the active span. Services keep their own named logger as base
// and call L per operation so their entries correlate with the access log
// and the trace. A nil base falls back to FromContext.
//
//	logger.L(ctx, o.logger).Warn("Outbound sync failed", zap.Error(err))
func L(ctx context.Context, base *zap.Logger) *zap.Logger {
	if base == nil {
		base = FromContext(ctx)
	}
	fields := make([]zap.Field, 0, len(scopedKeys)+2)
	for _, key := range scopedKeys {
		if v := scopedValue(ctx, key); v != "" {
			fields = append(fields, zap.String(string(key), v))
		}
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		fields = append(fields,
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("span_id", sc.SpanID().String()),
		)
	}
	if len(fields) == 0 {
		return base
	}
	return base.With(fields...)
}
