package logging

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type contextKey string

const (
	loggerKey  contextKey = "logger"
	traceIDKey contextKey = "trace_id"
)

// GenerateTraceID generates a new trace ID
func GenerateTraceID() string {
	return uuid.NewString()
}

// FromContext retrieves the logger from context
func FromContext(ctx context.Context) *zerolog.Logger {
	if l, ok := ctx.Value(loggerKey).(zerolog.Logger); ok {
		return &l
	}
	l := Default()
	return &l
}

// NewContext creates a new context with the logger
func NewContext(ctx context.Context, l zerolog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// TraceID returns the trace ID stored in ctx, if any
func TraceID(ctx context.Context) string {
	id, _ := ctx.Value(traceIDKey).(string)
	return id
}

// WithTraceContext adds a trace ID to the context and returns a logger with it
func WithTraceContext(ctx context.Context, base zerolog.Logger) (context.Context, zerolog.Logger) {
	traceID := GenerateTraceID()
	l := base.With().Str("trace_id", traceID).Logger()
	newCtx := context.WithValue(ctx, traceIDKey, traceID)
	newCtx = context.WithValue(newCtx, loggerKey, l)
	return newCtx, l
}

// TradeContext creates a logger for trade operations
func TradeContext(base zerolog.Logger, symbol, side string, quantity, price float64) zerolog.Logger {
	return base.With().
		Str("component", "trade").
		Str("symbol", symbol).
		Str("side", side).
		Float64("quantity", quantity).
		Float64("price", price).
		Logger()
}

// SignalContext creates a logger for trading signals
func SignalContext(base zerolog.Logger, symbol, action string, confidence float64) zerolog.Logger {
	return base.With().
		Str("component", "signal").
		Str("symbol", symbol).
		Str("action", action).
		Float64("confidence", confidence).
		Logger()
}
