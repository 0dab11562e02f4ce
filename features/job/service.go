package job

import (
	"context"
	"encoding/json"

	"inkpress/backend/internal/queue"
)

// Status is the stable external shape of a job. result and failure_reason
// are mutually exclusive; both are null until the job reaches a terminal
// state, after which repeated reads return identical bytes.
type Status struct {
	ID            string          `json:"id"`
	Queue         string          `json:"queue"`
	State         queue.State     `json:"state"`
	Progress      int             `json:"progress"`
	Result        json.RawMessage `json:"result"`
	FailureReason *string         `json:"failure_reason"`
}

type Service struct {
	store queue.Store
}

func NewService(store queue.Store) *Service {
	return &Service{store: store}
}

func (s *Service) Get(ctx context.Context, id string) (*Status, error) {
	j, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	st := &Status{
		ID:       j.ID,
		Queue:    j.Queue,
		State:    j.State,
		Progress: j.Progress,
		Result:   j.Result,
	}
	if j.FailureReason != "" {
		st.FailureReason = &j.FailureReason
	}
	return st, nil
}
