package tasks

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReclaimer struct {
	freed int64
	err   error
	calls int
}

func (f *fakeReclaimer) ReclaimStaleHolds(ctx context.Context) (int64, error) {
	f.calls++
	return f.freed, f.err
}

func TestHandleReclaimStaleHolds(t *testing.T) {
	rec := &fakeReclaimer{freed: 5}
	h := NewHandler(rec, slog.Default())

	err := h.HandleReclaimStaleHolds(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, rec.calls)
}

func TestHandleReclaimStaleHoldsPropagatesError(t *testing.T) {
	want := errors.New("db down")
	h := NewHandler(&fakeReclaimer{err: want}, slog.Default())

	err := h.HandleReclaimStaleHolds(context.Background(), nil)
	assert.ErrorIs(t, err, want)
}
