package worker_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/nsqio/go-nsq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"inkpress/backend/features/generation"
	"inkpress/backend/features/publishing"
	"inkpress/backend/internal/adapter/weaviate"
	"inkpress/backend/internal/config"
	"inkpress/backend/internal/queue"
	"inkpress/backend/internal/worker"
)

type MockEmbedder struct{ mock.Mock }

func (m *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]float32), args.Error(1)
}

type MockArticleIndex struct{ mock.Mock }

func (m *MockArticleIndex) DeleteArticlesByJobID(ctx context.Context, jobID string) error {
	args := m.Called(ctx, jobID)
	return args.Error(0)
}

func (m *MockArticleIndex) StoreArticle(ctx context.Context, a weaviate.Article) error {
	args := m.Called(ctx, a)
	return args.Error(0)
}

type MockPublishSubmitter struct{ mock.Mock }

func (m *MockPublishSubmitter) Submit(ctx context.Context, req *publishing.Request) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func completedEvent(t *testing.T, req generation.Request, content generation.GeneratedContent) []byte {
	t.Helper()
	payload, err := json.Marshal(req)
	require.NoError(t, err)
	result, err := json.Marshal(content)
	require.NoError(t, err)

	body, err := json.Marshal(queue.JobEvent{
		JobID:   "gen-job-1",
		Queue:   config.QueueGeneration,
		State:   queue.StateCompleted,
		Payload: payload,
		Result:  result,
	})
	require.NoError(t, err)
	return body
}

func sampleContent() generation.GeneratedContent {
	return generation.GeneratedContent{
		DraftHTML: "<h2>Go</h2><p>body</p>",
		SEO: generation.SEO{
			Title:       "Go Generics Explained",
			Description: "A practical tour.",
			Tags:        []string{"go", "generics"},
		},
		FAQs: []generation.FAQ{{Question: "q", Answer: "a"}},
	}
}

func TestCompletionConsumer_IndexesArticle(t *testing.T) {
	e := new(MockEmbedder)
	idx := new(MockArticleIndex)
	pub := new(MockPublishSubmitter)

	content := sampleContent()
	vector := []float32{0.1, 0.2, 0.3}

	e.On("Embed", mock.Anything, mock.MatchedBy(func(text string) bool {
		return strings.Contains(text, "Go generics") && strings.Contains(text, content.SEO.Title)
	})).Return(vector, nil)
	idx.On("DeleteArticlesByJobID", mock.Anything, "gen-job-1").Return(nil)
	idx.On("StoreArticle", mock.Anything, mock.MatchedBy(func(a weaviate.Article) bool {
		return a.JobID == "gen-job-1" &&
			a.Topic == "Go generics" &&
			a.Title == content.SEO.Title &&
			len(a.Vector) == 3
	})).Return(nil)

	consumer := worker.NewCompletionConsumer(e, idx, pub)

	body := completedEvent(t, generation.Request{Topic: "Go generics", WordCount: 800}, content)
	err := consumer.HandleMessage(&nsq.Message{Body: body})
	require.NoError(t, err)

	e.AssertExpectations(t)
	idx.AssertExpectations(t)
	pub.AssertNotCalled(t, "Submit", mock.Anything, mock.Anything)
}

func TestCompletionConsumer_AutoPublishChainsJob(t *testing.T) {
	e := new(MockEmbedder)
	idx := new(MockArticleIndex)
	pub := new(MockPublishSubmitter)

	content := sampleContent()

	e.On("Embed", mock.Anything, mock.Anything).Return([]float32{0.1}, nil)
	idx.On("DeleteArticlesByJobID", mock.Anything, mock.Anything).Return(nil)
	idx.On("StoreArticle", mock.Anything, mock.Anything).Return(nil)
	pub.On("Submit", mock.Anything, mock.MatchedBy(func(req *publishing.Request) bool {
		return req.Content == content.DraftHTML &&
			req.SEO.Title == content.SEO.Title &&
			req.SEO.Description == content.SEO.Description &&
			req.Status == publishing.StatusPublish
	})).Return("pub-job-1", nil)

	consumer := worker.NewCompletionConsumer(e, idx, pub)

	body := completedEvent(t, generation.Request{
		Topic:         "Go generics",
		WordCount:     800,
		AutoPublish:   true,
		PublishStatus: publishing.StatusPublish,
	}, content)
	err := consumer.HandleMessage(&nsq.Message{Body: body})
	require.NoError(t, err)

	pub.AssertExpectations(t)
}

func TestCompletionConsumer_IgnoresOtherQueues(t *testing.T) {
	e := new(MockEmbedder)
	idx := new(MockArticleIndex)
	pub := new(MockPublishSubmitter)
	consumer := worker.NewCompletionConsumer(e, idx, pub)

	body, err := json.Marshal(queue.JobEvent{
		JobID: "pub-job-1",
		Queue: config.QueuePublishing,
		State: queue.StateCompleted,
	})
	require.NoError(t, err)

	assert.NoError(t, consumer.HandleMessage(&nsq.Message{Body: body}))
	e.AssertNotCalled(t, "Embed", mock.Anything, mock.Anything)
	idx.AssertNotCalled(t, "StoreArticle", mock.Anything, mock.Anything)
}

func TestCompletionConsumer_PoisonPill(t *testing.T) {
	consumer := worker.NewCompletionConsumer(new(MockEmbedder), new(MockArticleIndex), new(MockPublishSubmitter))

	// Invalid JSON must not be requeued forever.
	assert.NoError(t, consumer.HandleMessage(&nsq.Message{Body: []byte(`{{{`)}))

	// Empty body is a no-op.
	assert.NoError(t, consumer.HandleMessage(&nsq.Message{Body: nil}))
}

func TestCompletionConsumer_UnreadableResultDropped(t *testing.T) {
	e := new(MockEmbedder)
	consumer := worker.NewCompletionConsumer(e, new(MockArticleIndex), new(MockPublishSubmitter))

	payload, _ := json.Marshal(generation.Request{Topic: "x", WordCount: 1})
	body, err := json.Marshal(queue.JobEvent{
		JobID:   "gen-job-1",
		Queue:   config.QueueGeneration,
		State:   queue.StateCompleted,
		Payload: payload,
		Result:  json.RawMessage(`123`),
	})
	require.NoError(t, err)

	// Dropped, not retried: the result will never become readable.
	err = consumer.HandleMessage(&nsq.Message{Body: body})
	assert.NoError(t, err)
	e.AssertNotCalled(t, "Embed", mock.Anything, mock.Anything)
}

func TestCompletionConsumer_EmbedErrorRetries(t *testing.T) {
	e := new(MockEmbedder)
	idx := new(MockArticleIndex)
	e.On("Embed", mock.Anything, mock.Anything).Return(nil, errors.New("gemini unavailable"))

	consumer := worker.NewCompletionConsumer(e, idx, new(MockPublishSubmitter))

	body := completedEvent(t, generation.Request{Topic: "x", WordCount: 1}, sampleContent())
	err := consumer.HandleMessage(&nsq.Message{Body: body})
	require.Error(t, err)
	idx.AssertNotCalled(t, "StoreArticle", mock.Anything, mock.Anything)
}

func TestCompletionConsumer_SubmitErrorRetries(t *testing.T) {
	e := new(MockEmbedder)
	idx := new(MockArticleIndex)
	pub := new(MockPublishSubmitter)

	e.On("Embed", mock.Anything, mock.Anything).Return([]float32{0.1}, nil)
	idx.On("DeleteArticlesByJobID", mock.Anything, mock.Anything).Return(nil)
	idx.On("StoreArticle", mock.Anything, mock.Anything).Return(nil)
	pub.On("Submit", mock.Anything, mock.Anything).Return("", errors.New("store down"))

	consumer := worker.NewCompletionConsumer(e, idx, pub)

	body := completedEvent(t, generation.Request{
		Topic:       "x",
		WordCount:   1,
		AutoPublish: true,
	}, sampleContent())
	err := consumer.HandleMessage(&nsq.Message{Body: body})
	assert.Error(t, err)
}
