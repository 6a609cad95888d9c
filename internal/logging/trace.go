package logging

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type contextKey string

const requestIDKey contextKey = "request_id"

// NewRequestID generates a unique request ID.
func NewRequestID() string {
	return uuid.New().String()
}

// WithRequestID adds a request ID to context.
// If id is empty, generates a new one.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		id = NewRequestID()
	}
	return context.WithValue(ctx, requestIDKey, id)
}

// GetRequestID extracts request ID from context.
// Returns empty string if not present.
func GetRequestID(ctx context.Context) string {
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

// EnsureRequestID returns the request ID carried by ctx, minting one for
// calls made outside a pipeline run.
func EnsureRequestID(ctx context.Context) string {
	if id := GetRequestID(ctx); id != "" {
		return id
	}
	return NewRequestID()
}

// RequestField is the zap field for the request ID carried by ctx.
func RequestField(ctx context.Context) zap.Field {
	return zap.String("request_id", GetRequestID(ctx))
}
