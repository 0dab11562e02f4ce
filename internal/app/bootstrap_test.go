package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type flakySchemaEnsurer struct {
	failures int
	calls    int
}

func (f *flakySchemaEnsurer) EnsureSchema(ctx context.Context) error {
	f.calls++
	if f.calls <= f.failures {
		return errors.New("connection refused")
	}
	return nil
}

func TestEnsureSchemaWithRetry_SucceedsAfterFailures(t *testing.T) {
	ensurer := &flakySchemaEnsurer{failures: 2}

	err := EnsureSchemaWithRetry(context.Background(), ensurer, 5, time.Millisecond)
	assert.NoError(t, err)
	assert.Equal(t, 3, ensurer.calls)
}

func TestEnsureSchemaWithRetry_GivesUp(t *testing.T) {
	ensurer := &flakySchemaEnsurer{failures: 100}

	err := EnsureSchemaWithRetry(context.Background(), ensurer, 3, time.Millisecond)
	assert.Error(t, err)
	assert.Equal(t, 3, ensurer.calls)
}

func TestEnsureSchemaWithRetry_FirstTry(t *testing.T) {
	ensurer := &flakySchemaEnsurer{}

	err := EnsureSchemaWithRetry(context.Background(), ensurer, 3, time.Millisecond)
	assert.NoError(t, err)
	assert.Equal(t, 1, ensurer.calls)
}
