package stats

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"inkpress/backend/internal/config"
	"inkpress/backend/internal/middleware"
	"inkpress/backend/internal/queue"
)

type ArticleCounter interface {
	CountArticles(ctx context.Context) (int, error)
}

type Handler struct {
	store    queue.Store
	articles ArticleCounter
}

func NewHandler(store queue.Store, articles ArticleCounter) *Handler {
	return &Handler{store: store, articles: articles}
}

type QueueStats struct {
	Waiting   int `json:"waiting"`
	Active    int `json:"active"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
}

type StatsResponse struct {
	Queues   map[string]QueueStats `json:"queues"`
	Articles int                   `json:"articles"`
}

func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	resp := StatsResponse{Queues: make(map[string]QueueStats)}
	for _, q := range []string{config.QueueGeneration, config.QueuePublishing} {
		qs, err := h.queueStats(ctx, q)
		if err != nil {
			slog.ErrorContext(ctx, "failed to count jobs", "queue", q, "error", err)
			h.writeError(ctx, w, "INTERNAL_ERROR", "failed to count jobs", http.StatusInternalServerError)
			return
		}
		resp.Queues[q] = qs
	}

	count, err := h.articles.CountArticles(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to count articles", "error", err)
		h.writeError(ctx, w, "INTERNAL_ERROR", "failed to count articles", http.StatusInternalServerError)
		return
	}
	resp.Articles = count

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"data": resp}); err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (h *Handler) queueStats(ctx context.Context, q string) (QueueStats, error) {
	var qs QueueStats
	targets := []struct {
		state queue.State
		dst   *int
	}{
		{queue.StateWaiting, &qs.Waiting},
		{queue.StateActive, &qs.Active},
		{queue.StateCompleted, &qs.Completed},
		{queue.StateFailed, &qs.Failed},
	}
	for _, t := range targets {
		n, err := h.store.CountByState(ctx, q, t.state)
		if err != nil {
			return qs, err
		}
		*t.dst = n
	}
	return qs, nil
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, code, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := map[string]interface{}{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
		"correlationId": middleware.GetCorrelationID(ctx),
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}
