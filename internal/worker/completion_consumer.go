package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nsqio/go-nsq"

	"inkpress/backend/features/generation"
	"inkpress/backend/features/publishing"
	"inkpress/backend/internal/adapter/weaviate"
	"inkpress/backend/internal/config"
	"inkpress/backend/internal/middleware"
	"inkpress/backend/internal/queue"
)

// CompletionConsumer reacts to jobs.completed events. For generation jobs
// it indexes the finished draft for similar-content search and, when the
// request asked for auto-publish, chains a publishing job. Chaining lives
// here, outside the pool core, on purpose.
type CompletionConsumer struct {
	embedder  Embedder
	index     ArticleIndex
	publisher PublishSubmitter
}

func NewCompletionConsumer(e Embedder, idx ArticleIndex, p PublishSubmitter) *CompletionConsumer {
	return &CompletionConsumer{
		embedder:  e,
		index:     idx,
		publisher: p,
	}
}

func (h *CompletionConsumer) HandleMessage(m *nsq.Message) error {
	if len(m.Body) == 0 {
		return nil
	}

	var event queue.JobEvent
	if err := json.Unmarshal(m.Body, &event); err != nil {
		// Poison pill: invalid JSON, don't retry.
		slog.Error("poison pill: invalid job event", "error", err)
		return nil
	}

	if event.Queue != config.QueueGeneration || event.State != queue.StateCompleted {
		return nil
	}

	ctx := middleware.WithCorrelationID(context.Background(), event.JobID)

	var req generation.Request
	if err := json.Unmarshal(event.Payload, &req); err != nil {
		slog.ErrorContext(ctx, "dropping event with unreadable payload", "job_id", event.JobID, "error", err)
		return nil
	}
	var content generation.GeneratedContent
	if err := json.Unmarshal(event.Result, &content); err != nil {
		slog.ErrorContext(ctx, "dropping event with unreadable result", "job_id", event.JobID, "error", err)
		return nil
	}

	if err := h.indexArticle(ctx, event.JobID, &req, &content); err != nil {
		slog.ErrorContext(ctx, "failed to index article", "job_id", event.JobID, "error", err)
		return err // Retry
	}

	if req.AutoPublish {
		pubReq := &publishing.Request{
			Content: content.DraftHTML,
			SEO: publishing.SEO{
				Title:       content.SEO.Title,
				Description: content.SEO.Description,
				Tags:        content.SEO.Tags,
			},
			Status: req.PublishStatus,
		}
		pubJobID, err := h.publisher.Submit(ctx, pubReq)
		if err != nil {
			slog.ErrorContext(ctx, "failed to chain publishing job", "job_id", event.JobID, "error", err)
			return err // Retry
		}
		slog.InfoContext(ctx, "chained publishing job", "generation_job_id", event.JobID, "publish_job_id", pubJobID)
	}

	return nil
}

func (h *CompletionConsumer) indexArticle(ctx context.Context, jobID string, req *generation.Request, content *generation.GeneratedContent) error {
	embedCtx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	text := fmt.Sprintf("Topic: %s\nTitle: %s\n---\n%s",
		req.Topic, content.SEO.Title, content.SEO.Description)

	vector, err := h.embedder.Embed(embedCtx, text)
	if err != nil {
		return fmt.Errorf("embedding: %w", err)
	}

	// Delete-then-store keeps redelivered events idempotent.
	if err := h.index.DeleteArticlesByJobID(embedCtx, jobID); err != nil {
		return fmt.Errorf("delete stale articles: %w", err)
	}

	article := weaviate.Article{
		JobID:       jobID,
		Topic:       req.Topic,
		Title:       content.SEO.Title,
		Description: content.SEO.Description,
		Vector:      vector,
	}
	if err := h.index.StoreArticle(embedCtx, article); err != nil {
		return fmt.Errorf("store article: %w", err)
	}

	slog.InfoContext(ctx, "article indexed", "job_id", jobID, "title", content.SEO.Title)
	return nil
}
