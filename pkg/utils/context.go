package utils

import (
	"context"
	"log/slog"
	"time"

	"github.com/secmon-lab/catalogsync/pkg/domain/types"
)

type ctxRequestIDKey struct{}

// CtxRequestID returns request ID from context. If request ID is not set, return new request ID and context with it
func CtxRequestID(ctx context.Context) (types.RequestID, context.Context) {
	if id, ok := ctx.Value(ctxRequestIDKey{}).(types.RequestID); ok {
		return id, ctx
	}

	newID := types.NewRequestID()
	return newID, context.WithValue(ctx, ctxRequestIDKey{}, newID)
}

type ctxRunIDKey struct{}

// CtxRunID returns run ID from context. If run ID is not set, return new run ID and context with it
func CtxRunID(ctx context.Context) (types.RunID, context.Context) {
	if id, ok := ctx.Value(ctxRunIDKey{}).(types.RunID); ok {
		return id, ctx
	}

	newID := types.NewRunID()
	return newID, context.WithValue(ctx, ctxRunIDKey{}, newID)
}

type ctxLoggerKey struct{}

// WithLogger returns a new context with logger
func CtxWithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxLoggerKey{}, logger)
}

// CtxLogger returns logger from context. If logger is not set, return default logger
func CtxLogger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(ctxLoggerKey{}).(*slog.Logger); ok {
		return l
	}
	return Logger()
}

type ctxTimeKey struct{}

// CtxWithTime returns a new context with time source. It is used to control current time in tests.
func CtxWithTime(ctx context.Context, now func() time.Time) context.Context {
	return context.WithValue(ctx, ctxTimeKey{}, now)
}

// CtxTime returns current time from the time source in context, or time.Now()
func CtxTime(ctx context.Context) time.Time {
	if now, ok := ctx.Value(ctxTimeKey{}).(func() time.Time); ok {
		return now()
	}
	return time.Now()
}
