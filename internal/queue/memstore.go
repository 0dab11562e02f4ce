package queue

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store used by tests and local development.
// Jobs are returned as copies so callers can never mutate stored state
// without going through CompareAndTransition.
type MemoryStore struct {
	mu    sync.Mutex
	jobs  map[string]*Job
	order []string // ids in enqueue order
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{jobs: make(map[string]*Job)}
}

func (s *MemoryStore) Put(ctx context.Context, job *Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[job.ID]; ok {
		return ErrDuplicateID
	}

	cp := *job
	s.jobs[job.ID] = &cp
	s.order = append(s.order, job.ID)
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *j
	return &cp, nil
}

func (s *MemoryStore) NextWaiting(ctx context.Context, queue string, now time.Time) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Terminal jobs never become waiting again; drop their ids here so the
	// scan does not grow with every completed job. The jobs map keeps them
	// for Get and CountByState.
	kept := s.order[:0]
	var found *Job
	for _, id := range s.order {
		j := s.jobs[id]
		if j.State.IsTerminal() {
			continue
		}
		kept = append(kept, id)
		if found != nil || j.Queue != queue || j.State != StateWaiting {
			continue
		}
		if j.NotBefore.After(now) {
			continue
		}
		cp := *j
		found = &cp
	}
	s.order = kept
	return found, nil
}

func (s *MemoryStore) CompareAndTransition(ctx context.Context, id string, from, to State, patch Patch) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok {
		return nil, ErrNotFound
	}
	if j.State != from {
		return nil, ErrStateConflict
	}

	j.State = to
	applyPatch(j, patch)
	j.UpdatedAt = time.Now().UTC()

	cp := *j
	return &cp, nil
}

func (s *MemoryStore) CountByState(ctx context.Context, queue string, state State) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, j := range s.jobs {
		if j.Queue == queue && j.State == state {
			count++
		}
	}
	return count, nil
}

func applyPatch(j *Job, patch Patch) {
	if patch.Attempts != nil {
		j.Attempts = *patch.Attempts
	}
	if patch.Progress != nil {
		j.Progress = *patch.Progress
	}
	if patch.Result != nil {
		j.Result = patch.Result
	}
	if patch.FailureReason != nil {
		j.FailureReason = *patch.FailureReason
	}
	if patch.NotBefore != nil {
		j.NotBefore = *patch.NotBefore
	}
}
