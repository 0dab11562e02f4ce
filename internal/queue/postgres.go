package queue

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// PostgresStore implements Store on a jobs table. The compare-and-transition
// primitive maps to a single UPDATE guarded by the expected state, so two
// workers racing on the same row see exactly one affected row between them.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Put(ctx context.Context, job *Job) error {
	query := `INSERT INTO jobs (id, queue, payload, state, progress, attempts, not_before, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
	          ON CONFLICT (id) DO NOTHING`
	res, err := s.db.ExecContext(ctx, query,
		job.ID, job.Queue, []byte(job.Payload), string(job.State), job.Progress, job.Attempts, job.NotBefore, job.CreatedAt)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrDuplicateID
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*Job, error) {
	query := `SELECT id, queue, payload, state, progress, result, failure_reason, attempts, not_before, created_at, updated_at
	          FROM jobs WHERE id = $1`
	return s.scanJob(s.db.QueryRowContext(ctx, query, id))
}

func (s *PostgresStore) NextWaiting(ctx context.Context, queue string, now time.Time) (*Job, error) {
	query := `SELECT id, queue, payload, state, progress, result, failure_reason, attempts, not_before, created_at, updated_at
	          FROM jobs
	          WHERE queue = $1 AND state = $2 AND not_before <= $3
	          ORDER BY created_at ASC
	          LIMIT 1`
	j, err := s.scanJob(s.db.QueryRowContext(ctx, query, queue, string(StateWaiting), now))
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return j, err
}

func (s *PostgresStore) CompareAndTransition(ctx context.Context, id string, from, to State, patch Patch) (*Job, error) {
	query := `UPDATE jobs SET
	            state = $3,
	            attempts = COALESCE($4, attempts),
	            progress = COALESCE($5, progress),
	            result = COALESCE($6, result),
	            failure_reason = COALESCE($7, failure_reason),
	            not_before = COALESCE($8, not_before),
	            updated_at = NOW()
	          WHERE id = $1 AND state = $2`

	var resultArg interface{}
	if patch.Result != nil {
		resultArg = []byte(patch.Result)
	}

	res, err := s.db.ExecContext(ctx, query,
		id, string(from), string(to), patch.Attempts, patch.Progress, resultArg, patch.FailureReason, patch.NotBefore)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		// Distinguish a lost race from an unknown id.
		if _, getErr := s.Get(ctx, id); getErr != nil {
			return nil, getErr
		}
		return nil, ErrStateConflict
	}

	return s.Get(ctx, id)
}

func (s *PostgresStore) CountByState(ctx context.Context, queue string, state State) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM jobs WHERE queue = $1 AND state = $2`
	err := s.db.QueryRowContext(ctx, query, queue, string(state)).Scan(&count)
	return count, err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (s *PostgresStore) scanJob(row rowScanner) (*Job, error) {
	j := &Job{}
	var state string
	var payload, result []byte
	var failureReason sql.NullString

	err := row.Scan(&j.ID, &j.Queue, &payload, &state, &j.Progress, &result, &failureReason, &j.Attempts, &j.NotBefore, &j.CreatedAt, &j.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	j.State = State(state)
	j.Payload = payload
	j.Result = result
	if failureReason.Valid {
		j.FailureReason = failureReason.String
	}
	return j, nil
}
