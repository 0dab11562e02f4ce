package weaviate

import (
	"context"
	"fmt"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"
)

const className = "Article"

// Article is an indexed generated draft. The vector is computed by the
// Gemini embedder before storage; Weaviate does no vectorizing of its own.
type Article struct {
	JobID       string
	Topic       string
	Title       string
	Description string
	Vector      []float32
}

// SearchResult is one similar-article hit.
type SearchResult struct {
	JobID       string  `json:"job_id"`
	Topic       string  `json:"topic"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Score       float32 `json:"score"`
}

type Store struct {
	client *weaviate.Client
}

func NewStore(client *weaviate.Client) *Store {
	return &Store{client: client}
}

// EnsureSchema creates the Article class when missing and backfills any
// missing properties on an existing class.
func (s *Store) EnsureSchema(ctx context.Context) error {
	exists, err := s.client.Schema().ClassExistenceChecker().WithClassName(className).Do(ctx)
	if err != nil {
		return err
	}

	properties := []*models.Property{
		{Name: "jobId", DataType: []string{"string"}},
		{Name: "topic", DataType: []string{"text"}},
		{Name: "title", DataType: []string{"text"}},
		{Name: "description", DataType: []string{"text"}},
	}

	if !exists {
		class := &models.Class{
			Class:       className,
			Description: "A generated blog article",
			Vectorizer:  "none",
			Properties:  properties,
		}
		return s.client.Schema().ClassCreator().WithClass(class).Do(ctx)
	}

	class, err := s.client.Schema().ClassGetter().WithClassName(className).Do(ctx)
	if err != nil {
		return err
	}

	existing := make(map[string]bool)
	for _, p := range class.Properties {
		existing[p.Name] = true
	}
	for _, p := range properties {
		if !existing[p.Name] {
			if err := s.client.Schema().PropertyCreator().WithClassName(className).WithProperty(p).Do(ctx); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Store) StoreArticle(ctx context.Context, a Article) error {
	_, err := s.client.Data().Creator().
		WithClassName(className).
		WithProperties(map[string]interface{}{
			"jobId":       a.JobID,
			"topic":       a.Topic,
			"title":       a.Title,
			"description": a.Description,
		}).
		WithVector(a.Vector).
		Do(ctx)
	return err
}

// DeleteArticlesByJobID removes previously indexed rows for a job so a
// redelivered completion event never duplicates an article.
func (s *Store) DeleteArticlesByJobID(ctx context.Context, jobID string) error {
	_, err := s.client.Batch().ObjectsBatchDeleter().
		WithClassName(className).
		WithOutput("minimal").
		WithWhere(filters.Where().
			WithPath([]string{"jobId"}).
			WithOperator(filters.Equal).
			WithValueString(jobID)).
		Do(ctx)
	return err
}

// SearchSimilar runs a hybrid query over indexed articles.
func (s *Store) SearchSimilar(ctx context.Context, query string, vector []float32, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 5
	}

	hybrid := s.client.GraphQL().HybridArgumentBuilder().
		WithQuery(query).
		WithVector(vector)

	fields := []graphql.Field{
		{Name: "jobId"},
		{Name: "topic"},
		{Name: "title"},
		{Name: "description"},
		{Name: "_additional", Fields: []graphql.Field{{Name: "score"}}},
	}

	res, err := s.client.GraphQL().Get().
		WithClassName(className).
		WithHybrid(hybrid).
		WithLimit(limit).
		WithFields(fields...).
		Do(ctx)
	if err != nil {
		return nil, err
	}
	if len(res.Errors) > 0 {
		return nil, fmt.Errorf("graphql error: %v", res.Errors)
	}

	var results []SearchResult
	data, ok := res.Data["Get"].(map[string]interface{})
	if !ok {
		return results, nil
	}
	articles, ok := data[className].([]interface{})
	if !ok {
		return results, nil
	}

	for _, a := range articles {
		props, ok := a.(map[string]interface{})
		if !ok {
			continue
		}
		var r SearchResult
		if v, ok := props["jobId"].(string); ok {
			r.JobID = v
		}
		if v, ok := props["topic"].(string); ok {
			r.Topic = v
		}
		if v, ok := props["title"].(string); ok {
			r.Title = v
		}
		if v, ok := props["description"].(string); ok {
			r.Description = v
		}
		if additional, ok := props["_additional"].(map[string]interface{}); ok {
			// The go client returns the hybrid score as a string.
			if score, ok := additional["score"].(string); ok {
				var f float64
				fmt.Sscanf(score, "%f", &f)
				r.Score = float32(f)
			} else if score, ok := additional["score"].(float64); ok {
				r.Score = float32(score)
			}
		}
		results = append(results, r)
	}
	return results, nil
}

func (s *Store) CountArticles(ctx context.Context) (int, error) {
	res, err := s.client.GraphQL().Aggregate().
		WithClassName(className).
		WithFields(graphql.Field{Name: "meta", Fields: []graphql.Field{{Name: "count"}}}).
		Do(ctx)
	if err != nil {
		return 0, err
	}
	if len(res.Errors) > 0 {
		return 0, fmt.Errorf("graphql error: %v", res.Errors)
	}

	if agg, ok := res.Data["Aggregate"].(map[string]interface{}); ok {
		if rows, ok := agg[className].([]interface{}); ok && len(rows) > 0 {
			if row, ok := rows[0].(map[string]interface{}); ok {
				if meta, ok := row["meta"].(map[string]interface{}); ok {
					if count, ok := meta["count"].(float64); ok {
						return int(count), nil
					}
				}
			}
		}
	}
	return 0, nil
}
