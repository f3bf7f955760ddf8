package postgres

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cinepass/cinepass/internal/repository"
)

func serializationFailure() error {
	return fmt.Errorf("commit: %w", &pgconn.PgError{
		Code:    "40001",
		Message: "could not serialize access due to concurrent update",
	})
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(serializationFailure()))
	assert.True(t, IsRetryable(&pgconn.PgError{Code: "40P01"}))
	assert.False(t, IsRetryable(&pgconn.PgError{Code: "23505"}))
	assert.False(t, IsRetryable(errors.New("boom")))
	assert.False(t, IsRetryable(nil))
}

// The loser of two concurrent writers on the same seats aborts with a
// serialization failure; the re-run observes the winner's committed rows and
// must surface the state-conflict sentinel, not the abort.
func TestRunWithRetrySerializationLoser(t *testing.T) {
	calls := 0
	err := runWithRetry(context.Background(), maxTxAttempts, func() error {
		calls++
		if calls == 1 {
			return serializationFailure()
		}
		return repository.ErrSeatsUnavailable
	})

	require.ErrorIs(t, err, repository.ErrSeatsUnavailable)
	assert.Equal(t, 2, calls)
}

func TestRunWithRetrySucceedsAfterAbort(t *testing.T) {
	calls := 0
	err := runWithRetry(context.Background(), maxTxAttempts, func() error {
		calls++
		if calls < 3 {
			return serializationFailure()
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRunWithRetryDoesNotRetryOtherErrors(t *testing.T) {
	want := errors.New("connection refused")

	calls := 0
	err := runWithRetry(context.Background(), maxTxAttempts, func() error {
		calls++
		return want
	})

	require.ErrorIs(t, err, want)
	assert.Equal(t, 1, calls)
}

func TestRunWithRetryExhaustsAttempts(t *testing.T) {
	calls := 0
	err := runWithRetry(context.Background(), maxTxAttempts, func() error {
		calls++
		return serializationFailure()
	})

	var pgErr *pgconn.PgError
	require.ErrorAs(t, err, &pgErr)
	assert.Equal(t, "40001", pgErr.Code)
	assert.Equal(t, maxTxAttempts, calls)
}

func TestRunWithRetryStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	err := runWithRetry(ctx, maxTxAttempts, func() error {
		calls++
		cancel()
		return serializationFailure()
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
}
