package worker

import (
	"context"

	"inkpress/backend/features/publishing"
	"inkpress/backend/internal/adapter/weaviate"
)

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

type ArticleIndex interface {
	DeleteArticlesByJobID(ctx context.Context, jobID string) error
	StoreArticle(ctx context.Context, a weaviate.Article) error
}

type PublishSubmitter interface {
	Submit(ctx context.Context, req *publishing.Request) (string, error)
}
