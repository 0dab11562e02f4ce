package publishing

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"inkpress/backend/internal/adapter/wordpress"
	"inkpress/backend/internal/queue"
)

// ContentStore is the opaque remote content store. Satisfied by
// *wordpress.Client and *wordpress.DynamicClient.
type ContentStore interface {
	CreatePost(ctx context.Context, in wordpress.PostInput) (*wordpress.Post, error)
	UpdatePost(ctx context.Context, id int, fields map[string]interface{}) (*wordpress.Post, error)
}

// Pipeline is the task function for the publishing queue: one create-post
// call, plus an optional schedule update. The two calls are not atomic; a
// schedule failure after a successful create fails the job permanently with
// the created post id embedded in the failure detail, since retrying would
// create another post.
type Pipeline struct {
	store       ContentStore
	callTimeout time.Duration
}

func NewPipeline(store ContentStore, callTimeout time.Duration) *Pipeline {
	if callTimeout <= 0 {
		callTimeout = time.Minute
	}
	return &Pipeline{store: store, callTimeout: callTimeout}
}

// Run implements queue.TaskFunc.
func (p *Pipeline) Run(ctx context.Context, job queue.Job, report func(int)) (json.RawMessage, error) {
	var req Request
	if err := json.Unmarshal(job.Payload, &req); err != nil {
		return nil, fmt.Errorf("invalid publishing payload: %w", err)
	}

	createCtx, cancel := context.WithTimeout(ctx, p.callTimeout)
	post, err := p.store.CreatePost(createCtx, wordpress.PostInput{
		Title:      req.SEO.Title,
		Content:    req.Content,
		Excerpt:    req.SEO.Description,
		Status:     req.Status,
		Categories: req.Categories,
		Tags:       req.TagIDs,
	})
	cancel()
	if err != nil {
		return nil, fmt.Errorf("create post: %w", err)
	}
	report(60)

	if req.ScheduleDate != nil {
		scheduleCtx, cancel := context.WithTimeout(ctx, p.callTimeout)
		updated, err := p.store.UpdatePost(scheduleCtx, post.ID, map[string]interface{}{
			"status":   "future",
			"date_gmt": req.ScheduleDate.UTC().Format("2006-01-02T15:04:05"),
		})
		cancel()
		if err != nil {
			// The post exists in its original state but is not scheduled.
			return nil, &PartialPublishError{PostID: post.ID, Err: err}
		}
		post = updated
	}
	report(90)

	outcome := Outcome{
		RemotePostID: post.ID,
		RemoteURL:    post.Link,
		PublishedAt:  parsePostDate(post.DateGMT),
	}
	result, err := json.Marshal(outcome)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal publish outcome: %w", err)
	}

	slog.InfoContext(ctx, "post published",
		"job_id", job.ID, "remote_post_id", outcome.RemotePostID, "status", post.Status)
	return result, nil
}

// parsePostDate handles the two date shapes WordPress emits. Anything else
// yields the zero time; the outcome must never carry a fabricated timestamp.
func parsePostDate(raw string) time.Time {
	for _, layout := range []string{"2006-01-02T15:04:05", time.RFC3339} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
