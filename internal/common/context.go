package common

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// Context keys for storing values in context
type contextKey string

const (
	ContextKeyRequestID contextKey = "request_id"
	ContextKeyPetID     contextKey = "pet_id"
)

// WithRequestID adds a request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// EnsureRequestID returns ctx unchanged if it already carries a request ID,
// otherwise attaches a fresh one.
func EnsureRequestID(ctx context.Context) context.Context {
	if RequestIDFromContext(ctx) != "" {
		return ctx
	}
	return WithRequestID(ctx, uuid.NewString())
}

// RequestIDFromContext extracts the request ID from context
func RequestIDFromContext(ctx context.Context) string {
	if requestID, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return requestID
	}
	return ""
}

// WithPetID adds a pet ID to the context
func WithPetID(ctx context.Context, petID string) context.Context {
	return context.WithValue(ctx, ContextKeyPetID, petID)
}

// PetIDFromContext extracts the pet ID from context
func PetIDFromContext(ctx context.Context) string {
	if petID, ok := ctx.Value(ContextKeyPetID).(string); ok {
		return petID
	}
	return ""
}

// LoggerFromContext decorates logger with the request and pet IDs found in ctx.
func LoggerFromContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = slog.Default()
	}
	if id := RequestIDFromContext(ctx); id != "" {
		logger = logger.With("request_id", id)
	}
	if id := PetIDFromContext(ctx); id != "" {
		logger = logger.With("pet_id", id)
	}
	return logger
}
