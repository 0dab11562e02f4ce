package queue

import "errors"

var (
	// ErrNotFound is returned when a job id does not exist in the store.
	ErrNotFound = errors.New("job not found")

	// ErrDuplicateID is returned when creating a job whose id already exists.
	ErrDuplicateID = errors.New("duplicate job id")

	// ErrStateConflict is returned when a compare-and-transition finds the
	// job in a state other than the expected one. Losing a claim race
	// surfaces as this error; callers move on to the next candidate.
	ErrStateConflict = errors.New("job state conflict")
)
