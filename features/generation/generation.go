package generation

import (
	"errors"
	"fmt"
)

// Request is the content-generation job payload, captured at enqueue time.
type Request struct {
	Topic     string   `json:"topic"`
	Keywords  []string `json:"keywords"`
	WordCount int      `json:"word_count"`

	// AutoPublish asks the completion consumer to chain a publishing job
	// once generation succeeds. The pool core knows nothing about it.
	AutoPublish   bool   `json:"auto_publish,omitempty"`
	PublishStatus string `json:"publish_status,omitempty"`
}

var ErrValidation = errors.New("validation error")

func (r *Request) Validate() error {
	if r.Topic == "" {
		return fmt.Errorf("%w: topic is required", ErrValidation)
	}
	if r.WordCount <= 0 {
		return fmt.Errorf("%w: word_count must be positive", ErrValidation)
	}
	if r.AutoPublish {
		if r.PublishStatus == "" {
			r.PublishStatus = "draft"
		}
		if r.PublishStatus != "draft" && r.PublishStatus != "publish" {
			return fmt.Errorf("%w: publish_status must be 'draft' or 'publish'", ErrValidation)
		}
	}
	return nil
}

type SEO struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
}

type FAQ struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// GeneratedContent is the composite result of a generation job. It is
// immutable once stored as the job result.
type GeneratedContent struct {
	DraftHTML string `json:"draft_html"`
	SEO       SEO    `json:"seo"`
	FAQs      []FAQ  `json:"faqs"`
}
