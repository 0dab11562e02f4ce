package publishing

import (
	"errors"
	"fmt"
	"time"
)

const (
	StatusDraft   = "draft"
	StatusPublish = "publish"
)

var ErrValidation = errors.New("validation error")

type SEO struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Tags        []string `json:"tags,omitempty"`
}

// Request is the publishing job payload.
type Request struct {
	Content      string     `json:"content"`
	SEO          SEO        `json:"seo"`
	Status       string     `json:"status"`
	ScheduleDate *time.Time `json:"schedule_date,omitempty"`
	Categories   []int      `json:"categories,omitempty"`
	TagIDs       []int      `json:"tag_ids,omitempty"`
}

func (r *Request) Validate() error {
	if r.Content == "" {
		return fmt.Errorf("%w: content is required", ErrValidation)
	}
	if r.SEO.Title == "" {
		return fmt.Errorf("%w: seo.title is required", ErrValidation)
	}
	if r.Status != StatusDraft && r.Status != StatusPublish {
		return fmt.Errorf("%w: status must be %q or %q", ErrValidation, StatusDraft, StatusPublish)
	}
	return nil
}

// Outcome is the result of a successful publishing job.
type Outcome struct {
	RemotePostID int       `json:"remote_post_id"`
	RemoteURL    string    `json:"remote_url"`
	PublishedAt  time.Time `json:"published_at"`
}

// PartialPublishError marks the non-atomic failure mode of scheduling: the
// post was created but the follow-up schedule call failed. The created post
// id travels in the failure reason so an operator can reconcile manually.
type PartialPublishError struct {
	PostID int
	Err    error
}

func (e *PartialPublishError) Error() string {
	return fmt.Sprintf("post %d was created but scheduling failed, reconcile manually: %v", e.PostID, e.Err)
}

func (e *PartialPublishError) Unwrap() error {
	return e.Err
}

// Permanent tells the worker pool not to retry: re-running the task would
// call create again and leave another orphaned post behind.
func (e *PartialPublishError) Permanent() bool {
	return true
}
