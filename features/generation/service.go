package generation

import (
	"context"
	"encoding/json"
)

// Enqueuer is satisfied by *queue.Pool.
type Enqueuer interface {
	Enqueue(ctx context.Context, payload json.RawMessage) (string, error)
}

type Service struct {
	pool Enqueuer
}

func NewService(pool Enqueuer) *Service {
	return &Service{pool: pool}
}

// Submit validates the request and enqueues a generation job. Validation
// failures are rejected here, before anything is written to the store.
func (s *Service) Submit(ctx context.Context, req *Request) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return "", err
	}
	return s.pool.Enqueue(ctx, payload)
}
