package logger

import (
	"context"
	"log/slog"

	"inkpress/backend/internal/middleware"
)

// ContextHandler copies the request correlation id into every log record so
// InfoContext/ErrorContext calls carry it without repeating the attribute.
type ContextHandler struct {
	slog.Handler
}

func NewContextHandler(h slog.Handler) *ContextHandler {
	return &ContextHandler{Handler: h}
}

func (h *ContextHandler) Handle(ctx context.Context, r slog.Record) error {
	if id, ok := ctx.Value(middleware.CorrelationKey).(string); ok && id != "" {
		r.AddAttrs(slog.String("correlation_id", id))
	}
	return h.Handler.Handle(ctx, r)
}
