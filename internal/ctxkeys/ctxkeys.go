// Package ctxkeys carries request-scoped correlation values through a
// generation call. Keys are an unexported type so only this package can
// store them.
package ctxkeys

import (
	"context"

	"go.uber.org/zap"
)

type contextKey string

const (
	requestIDKey contextKey = "request_id"
	userIDKey    contextKey = "user_id"
	projectIDKey contextKey = "project_id"
)

// WithRequestID stores the correlation id of one generation request.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestID returns the stored correlation id.
func RequestID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(requestIDKey).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// WithUserID stores the calling user's id.
func WithUserID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, userIDKey, id)
}

// UserID returns the stored user id.
func UserID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(userIDKey).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// WithProjectID stores the project the artifact belongs to.
func WithProjectID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, projectIDKey, id)
}

// ProjectID returns the stored project id.
func ProjectID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(projectIDKey).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// Fields collects whatever correlation ids the context carries as zap
// fields, for attaching to per-call log lines.
func Fields(ctx context.Context) []zap.Field {
	fields := make([]zap.Field, 0, 3)
	if v, ok := RequestID(ctx); ok {
		fields = append(fields, zap.String("request_id", v))
	}
	if v, ok := UserID(ctx); ok {
		fields = append(fields, zap.String("user_id", v))
	}
	if v, ok := ProjectID(ctx); ok {
		fields = append(fields, zap.String("project_id", v))
	}
	return fields
}
