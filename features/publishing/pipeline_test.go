package publishing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inkpress/backend/internal/adapter/wordpress"
	"inkpress/backend/internal/queue"
)

func publishingJob(t *testing.T, req Request) queue.Job {
	t.Helper()
	payload, err := json.Marshal(req)
	require.NoError(t, err)
	return queue.Job{ID: "job-1", Queue: "publishing", Payload: payload}
}

func TestPipeline_Run_DraftWithoutSchedule(t *testing.T) {
	var requests int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/wp-json/wp/v2/posts", r.URL.Path)
		require.Equal(t, "Bearer token-1", r.Header.Get("Authorization"))

		var in wordpress.PostInput
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		assert.Equal(t, "My Title", in.Title)
		assert.Equal(t, "<p>body</p>", in.Content)
		assert.Equal(t, "draft", in.Status)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"id":42,"link":"https://blog.test/?p=42","status":"draft","date_gmt":"2026-09-01T10:00:00"}`)
	}))
	defer server.Close()

	client := wordpress.NewClient(server.URL, "token-1", time.Second)
	p := NewPipeline(client, time.Second)

	var reported []int
	job := publishingJob(t, Request{
		Content: "<p>body</p>",
		SEO:     SEO{Title: "My Title", Description: "Desc"},
		Status:  StatusDraft,
	})
	result, err := p.Run(context.Background(), job, func(pct int) { reported = append(reported, pct) })
	require.NoError(t, err)

	// No schedule date means exactly one remote call.
	assert.Equal(t, int32(1), atomic.LoadInt32(&requests))

	var out Outcome
	require.NoError(t, json.Unmarshal(result, &out))
	assert.Equal(t, 42, out.RemotePostID)
	assert.Equal(t, "https://blog.test/?p=42", out.RemoteURL)
	assert.Equal(t, time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC), out.PublishedAt)
	assert.Equal(t, []int{60, 90}, reported)
}

func TestPipeline_Run_Scheduled(t *testing.T) {
	scheduleAt := time.Date(2026, 12, 24, 18, 30, 0, 0, time.UTC)

	var createCalls, updateCalls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/wp-json/wp/v2/posts":
			atomic.AddInt32(&createCalls, 1)
			fmt.Fprint(w, `{"id":7,"link":"https://blog.test/?p=7","status":"draft","date_gmt":"2026-09-01T10:00:00"}`)
		case "/wp-json/wp/v2/posts/7":
			atomic.AddInt32(&updateCalls, 1)
			var fields map[string]interface{}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&fields))
			assert.Equal(t, "future", fields["status"])
			assert.Equal(t, "2026-12-24T18:30:00", fields["date_gmt"])
			fmt.Fprint(w, `{"id":7,"link":"https://blog.test/?p=7","status":"future","date_gmt":"2026-12-24T18:30:00"}`)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client := wordpress.NewClient(server.URL, "token-1", time.Second)
	p := NewPipeline(client, time.Second)

	job := publishingJob(t, Request{
		Content:      "<p>body</p>",
		SEO:          SEO{Title: "My Title"},
		Status:       StatusDraft,
		ScheduleDate: &scheduleAt,
	})
	result, err := p.Run(context.Background(), job, func(int) {})
	require.NoError(t, err)

	assert.Equal(t, int32(1), atomic.LoadInt32(&createCalls))
	assert.Equal(t, int32(1), atomic.LoadInt32(&updateCalls))

	var out Outcome
	require.NoError(t, json.Unmarshal(result, &out))
	assert.Equal(t, 7, out.RemotePostID)
	assert.Equal(t, scheduleAt, out.PublishedAt)
}

func TestPipeline_Run_ScheduleFailureKeepsPostID(t *testing.T) {
	scheduleAt := time.Date(2026, 12, 24, 18, 30, 0, 0, time.UTC)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/wp-json/wp/v2/posts":
			fmt.Fprint(w, `{"id":99,"link":"https://blog.test/?p=99","status":"draft","date_gmt":"2026-09-01T10:00:00"}`)
		default:
			w.WriteHeader(http.StatusInternalServerError)
			fmt.Fprint(w, `{"code":"internal_error"}`)
		}
	}))
	defer server.Close()

	client := wordpress.NewClient(server.URL, "token-1", time.Second)
	p := NewPipeline(client, time.Second)

	job := publishingJob(t, Request{
		Content:      "<p>body</p>",
		SEO:          SEO{Title: "My Title"},
		Status:       StatusDraft,
		ScheduleDate: &scheduleAt,
	})
	result, err := p.Run(context.Background(), job, func(int) {})
	require.Error(t, err)
	assert.Nil(t, result)

	// The created post id travels in the failure so an operator can
	// reconcile the half-published post.
	var partial *PartialPublishError
	require.ErrorAs(t, err, &partial)
	assert.Equal(t, 99, partial.PostID)
	assert.Contains(t, err.Error(), "post 99 was created but scheduling failed")
}

func TestPipeline_ScheduleFailureCreatesExactlyOnePost(t *testing.T) {
	scheduleAt := time.Date(2026, 12, 24, 18, 30, 0, 0, time.UTC)

	// Every create mints a fresh id; every schedule update fails. If the
	// job were retried whole, each attempt would orphan another post.
	var createCalls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/wp-json/wp/v2/posts":
			id := atomic.AddInt32(&createCalls, 1)
			fmt.Fprintf(w, `{"id":%d,"link":"https://blog.test/?p=%d","status":"draft","date_gmt":"2026-09-01T10:00:00"}`, id, id)
		default:
			w.WriteHeader(http.StatusInternalServerError)
			fmt.Fprint(w, `{"code":"internal_error"}`)
		}
	}))
	defer server.Close()

	client := wordpress.NewClient(server.URL, "token-1", time.Second)
	p := NewPipeline(client, time.Second)

	store := queue.NewMemoryStore()
	pool := queue.NewPool(queue.PoolConfig{
		Queue:        "publishing",
		Concurrency:  1,
		MaxPerWindow: 100,
		Window:       time.Second,
		MaxAttempts:  3,
		BaseDelay:    time.Millisecond,
		MaxDelay:     10 * time.Millisecond,
		PollInterval: 2 * time.Millisecond,
	}, store, p.Run, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	payload, err := json.Marshal(Request{
		Content:      "<p>body</p>",
		SEO:          SEO{Title: "My Title"},
		Status:       StatusDraft,
		ScheduleDate: &scheduleAt,
	})
	require.NoError(t, err)

	id, err := pool.Enqueue(ctx, payload)
	require.NoError(t, err)
	go pool.Run(ctx)

	var final *queue.Job
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		j, err := store.Get(context.Background(), id)
		require.NoError(t, err)
		if j.State == queue.StateFailed {
			final = j
			break
		}
		time.Sleep(2 * time.Millisecond)
	}
	require.NotNil(t, final, "job never failed")

	assert.Equal(t, 1, final.Attempts)
	assert.Contains(t, final.FailureReason, "post 1 was created but scheduling failed")

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(1), atomic.LoadInt32(&createCalls))
}

func TestPipeline_Run_UnparseableDate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":5,"link":"https://blog.test/?p=5","status":"draft","date_gmt":"soon"}`)
	}))
	defer server.Close()

	client := wordpress.NewClient(server.URL, "token-1", time.Second)
	p := NewPipeline(client, time.Second)

	job := publishingJob(t, Request{
		Content: "<p>body</p>",
		SEO:     SEO{Title: "My Title"},
		Status:  StatusDraft,
	})
	result, err := p.Run(context.Background(), job, func(int) {})
	require.NoError(t, err)

	var out Outcome
	require.NoError(t, json.Unmarshal(result, &out))
	assert.Equal(t, 5, out.RemotePostID)
	assert.True(t, out.PublishedAt.IsZero(), "garbage date must not become a timestamp")
}

func TestPipeline_Run_CreateFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"code":"rest_cannot_create"}`)
	}))
	defer server.Close()

	client := wordpress.NewClient(server.URL, "bad-token", time.Second)
	p := NewPipeline(client, time.Second)

	job := publishingJob(t, Request{
		Content: "<p>body</p>",
		SEO:     SEO{Title: "My Title"},
		Status:  StatusDraft,
	})
	_, err := p.Run(context.Background(), job, func(int) {})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create post")

	var partial *PartialPublishError
	assert.False(t, errors.As(err, &partial), "create failure is not a partial publish")
}

func TestPipeline_Run_InvalidPayload(t *testing.T) {
	p := NewPipeline(wordpress.NewClient("http://localhost", "t", time.Second), time.Second)

	job := queue.Job{ID: "job-1", Payload: json.RawMessage(`not json`)}
	_, err := p.Run(context.Background(), job, func(int) {})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid publishing payload")
}
