package generation

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"inkpress/backend/internal/queue"
)

// TextGenerator is the opaque text-generation capability. GenerateJSON is
// expected to return a strictly JSON-shaped response.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
	GenerateJSON(ctx context.Context, prompt string) (string, error)
}

// Pipeline is the task function for the content-generation queue: one draft
// call, then SEO metadata and FAQ derivation concurrently off the draft.
// Any step's failure fails the whole job; no partial result is ever stored.
type Pipeline struct {
	gen         TextGenerator
	callTimeout time.Duration
}

func NewPipeline(gen TextGenerator, callTimeout time.Duration) *Pipeline {
	if callTimeout <= 0 {
		callTimeout = 2 * time.Minute
	}
	return &Pipeline{gen: gen, callTimeout: callTimeout}
}

// Run implements queue.TaskFunc.
func (p *Pipeline) Run(ctx context.Context, job queue.Job, report func(int)) (json.RawMessage, error) {
	var req Request
	if err := json.Unmarshal(job.Payload, &req); err != nil {
		return nil, fmt.Errorf("invalid generation payload: %w", err)
	}

	draft, err := p.generateDraft(ctx, &req)
	if err != nil {
		return nil, fmt.Errorf("draft generation: %w", err)
	}
	report(40)

	// SEO and FAQ derivation depend only on the draft and may interleave.
	type seoOut struct {
		seo SEO
		err error
	}
	type faqOut struct {
		faqs []FAQ
		err  error
	}
	seoCh := make(chan seoOut, 1)
	faqCh := make(chan faqOut, 1)

	go func() {
		seo, err := p.deriveSEO(ctx, draft)
		seoCh <- seoOut{seo: seo, err: err}
	}()
	go func() {
		faqs, err := p.deriveFAQs(ctx, draft)
		faqCh <- faqOut{faqs: faqs, err: err}
	}()

	seoRes := <-seoCh
	faqRes := <-faqCh
	if seoRes.err != nil {
		return nil, fmt.Errorf("seo metadata: %w", seoRes.err)
	}
	if faqRes.err != nil {
		return nil, fmt.Errorf("faq derivation: %w", faqRes.err)
	}
	report(90)

	content := GeneratedContent{
		DraftHTML: draft,
		SEO:       seoRes.seo,
		FAQs:      faqRes.faqs,
	}
	result, err := json.Marshal(content)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal generated content: %w", err)
	}

	slog.InfoContext(ctx, "content generated",
		"job_id", job.ID, "draft_len", len(draft), "tags", len(content.SEO.Tags), "faqs", len(content.FAQs))
	return result, nil
}

func (p *Pipeline) generateDraft(ctx context.Context, req *Request) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, p.callTimeout)
	defer cancel()

	prompt := fmt.Sprintf(
		"Write a blog post of about %d words on the topic %q.\n"+
			"Work in these keywords naturally: %s.\n"+
			"Return only the post body as clean HTML (h2/h3 headings, p, ul), no <html> or <body> wrapper, no markdown.",
		req.WordCount, req.Topic, strings.Join(req.Keywords, ", "))

	draft, err := p.gen.Generate(callCtx, prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(draft) == "" {
		return "", fmt.Errorf("empty draft returned")
	}
	return draft, nil
}

// deriveSEO expects a strictly-structured response. An unparseable or
// incomplete response fails the step; there is no silent fallback.
func (p *Pipeline) deriveSEO(ctx context.Context, draft string) (SEO, error) {
	callCtx, cancel := context.WithTimeout(ctx, p.callTimeout)
	defer cancel()

	prompt := "Derive SEO metadata for the following blog post.\n" +
		"Respond with a JSON object exactly of the shape " +
		`{"title": string (max 60 chars), "description": string (max 155 chars), "tags": [string, ...]}` +
		".\n\nPost:\n" + draft

	raw, err := p.gen.GenerateJSON(callCtx, prompt)
	if err != nil {
		return SEO{}, err
	}

	var seo SEO
	if err := json.Unmarshal([]byte(raw), &seo); err != nil {
		return SEO{}, fmt.Errorf("malformed seo response: %w", err)
	}
	if seo.Title == "" || seo.Description == "" || len(seo.Tags) == 0 {
		return SEO{}, fmt.Errorf("incomplete seo response: title, description and tags are all required")
	}
	return seo, nil
}

func (p *Pipeline) deriveFAQs(ctx context.Context, draft string) ([]FAQ, error) {
	callCtx, cancel := context.WithTimeout(ctx, p.callTimeout)
	defer cancel()

	prompt := "Derive 3 to 5 frequently asked questions with answers from the following blog post.\n" +
		"Respond with a JSON array exactly of the shape " +
		`[{"question": string, "answer": string}, ...]` +
		".\n\nPost:\n" + draft

	raw, err := p.gen.GenerateJSON(callCtx, prompt)
	if err != nil {
		return nil, err
	}

	var faqs []FAQ
	if err := json.Unmarshal([]byte(raw), &faqs); err != nil {
		return nil, fmt.Errorf("malformed faq response: %w", err)
	}
	if len(faqs) == 0 {
		return nil, fmt.Errorf("empty faq response")
	}
	for i, f := range faqs {
		if f.Question == "" || f.Answer == "" {
			return nil, fmt.Errorf("faq entry %d has an empty question or answer", i)
		}
	}
	return faqs, nil
}
