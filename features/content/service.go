package content

import (
	"context"
	"fmt"

	"inkpress/backend/internal/adapter/weaviate"
)

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

type Searcher interface {
	SearchSimilar(ctx context.Context, query string, vector []float32, limit int) ([]weaviate.SearchResult, error)
}

// Service answers "have we already written something like this" queries
// over the indexed drafts.
type Service struct {
	embedder Embedder
	searcher Searcher
}

func NewService(e Embedder, s Searcher) *Service {
	return &Service{embedder: e, searcher: s}
}

func (s *Service) Similar(ctx context.Context, query string, limit int) ([]weaviate.SearchResult, error) {
	vector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	return s.searcher.SearchSimilar(ctx, query, vector, limit)
}
