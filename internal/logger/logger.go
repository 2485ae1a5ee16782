// Package logger provides structured logging setup using slog.
package logger

import (
	"context"
	"log/slog"
	"os"

	"github.com/google/uuid"
)

// releaseIDKey is the context key for the release being processed.
type releaseIDKey struct{}

// requestIDKey is the context key for request/correlation IDs.
type requestIDKey struct{}

// New creates a new structured JSON logger.
func New() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

// WithReleaseID returns a new context carrying the release ID.
func WithReleaseID(ctx context.Context, releaseID uuid.UUID) context.Context {
	return context.WithValue(ctx, releaseIDKey{}, releaseID)
}

// ReleaseIDFromContext extracts the release ID from the context.
func ReleaseIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	if v := ctx.Value(releaseIDKey{}); v != nil {
		return v.(uuid.UUID), true
	}
	return uuid.Nil, false
}

// WithRequestID returns a new context with the given request ID.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// RequestIDFromContext extracts the request ID from the context.
func RequestIDFromContext(ctx context.Context) string {
	if v := ctx.Value(requestIDKey{}); v != nil {
		return v.(string)
	}
	return ""
}

// FromContext returns a logger with context fields (release ID, request ID)
// attached.
func FromContext(ctx context.Context, base *slog.Logger) *slog.Logger {
	l := base
	if relID, ok := ReleaseIDFromContext(ctx); ok {
		l = l.With("release_id", relID.String())
	}
	if reqID := RequestIDFromContext(ctx); reqID != "" {
		l = l.With("request_id", reqID)
	}
	return l
}
