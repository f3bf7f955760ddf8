package booking

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cinepass/cinepass/internal/domain"
	"github.com/cinepass/cinepass/internal/repository"
)

// fakeStore records calls and returns canned results.
type fakeStore struct {
	holdErr    error
	releaseErr error
	createErr  error
	latestErr  error

	reservation *domain.Reservation
	latest      *domain.Reservation
	reclaimed   int64

	holdCalls   int
	createCalls int
}

func (f *fakeStore) ScreeningByID(ctx context.Context, id int64) (*domain.Screening, error) {
	return &domain.Screening{ID: id}, nil
}

func (f *fakeStore) UserExists(ctx context.Context, id int64) (bool, error) {
	return true, nil
}

func (f *fakeStore) HoldSeats(ctx context.Context, screeningID int64, seatIDs []int64, userID int64, token uuid.UUID, expiresAt time.Time) error {
	f.holdCalls++
	return f.holdErr
}

func (f *fakeStore) ReleaseHold(ctx context.Context, screeningID int64, seatIDs []int64, token uuid.UUID) error {
	return f.releaseErr
}

func (f *fakeStore) CreateReservation(ctx context.Context, userID, screeningID int64, seatIDs []int64, holdToken *uuid.UUID, totalAmount int64) (*domain.Reservation, error) {
	f.createCalls++
	if f.createErr != nil {
		return nil, f.createErr
	}
	return f.reservation, nil
}

func (f *fakeStore) LatestReservationByUser(ctx context.Context, userID int64) (*domain.Reservation, error) {
	if f.latestErr != nil {
		return nil, f.latestErr
	}
	return f.latest, nil
}

func (f *fakeStore) ReclaimExpiredHolds(ctx context.Context) (int64, error) {
	return f.reclaimed, nil
}

func newService(store Store) *Service {
	return New(store, nil, nil, nil, nil, Config{})
}

func TestValidateSeatIDs(t *testing.T) {
	cases := []struct {
		name    string
		seatIDs []int64
		wantErr error
	}{
		{"one seat", []int64{1}, nil},
		{"two seats", []int64{1, 2}, nil},
		{"empty", nil, ErrInvalidSeatCount},
		{"too many", []int64{1, 2, 3}, ErrInvalidSeatCount},
		{"duplicate", []int64{7, 7}, ErrInvalidSeatCount},
		{"non-positive", []int64{0}, ErrSeatNotFound},
		{"negative", []int64{-1, 2}, ErrSeatNotFound},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := validateSeatIDs(tc.seatIDs)
			if tc.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestClampTTL(t *testing.T) {
	svc := newService(&fakeStore{})

	assert.Equal(t, 15*time.Second, svc.clampTTL(0))
	assert.Equal(t, 15*time.Second, svc.clampTTL(time.Second))
	assert.Equal(t, time.Minute, svc.clampTTL(time.Minute))
	assert.Equal(t, 5*time.Minute, svc.clampTTL(time.Hour))
}

func TestHoldSeatsValidationSkipsStore(t *testing.T) {
	store := &fakeStore{}
	svc := newService(store)

	_, err := svc.HoldSeats(context.Background(), 1, 1, []int64{1, 2, 3}, 0, "")
	require.ErrorIs(t, err, ErrInvalidSeatCount)
	assert.Zero(t, store.holdCalls, "invalid input must not reach the store")
}

func TestHoldSeats(t *testing.T) {
	store := &fakeStore{}
	svc := newService(store)

	before := time.Now()
	hold, err := svc.HoldSeats(context.Background(), 42, 7, []int64{10, 11}, time.Minute, "")
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, hold.Token)
	assert.Equal(t, int64(42), hold.UserID)
	assert.Equal(t, int64(7), hold.ScreeningID)
	assert.Equal(t, []int64{10, 11}, hold.SeatIDs)
	assert.WithinRange(t, hold.ExpiresAt, before.Add(time.Minute), time.Now().Add(time.Minute))
}

func TestHoldSeatsMapsStoreErrors(t *testing.T) {
	cases := []struct {
		name     string
		storeErr error
		wantErr  error
	}{
		{"screening missing", repository.ErrScreeningNotFound, ErrScreeningNotFound},
		{"seat missing", repository.ErrSeatNotFound, ErrSeatNotFound},
		{"contended", repository.ErrSeatsUnavailable, ErrSeatsUnavailable},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := newService(&fakeStore{holdErr: tc.storeErr})

			_, err := svc.HoldSeats(context.Background(), 1, 1, []int64{1}, 0, "")
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestReleaseHoldRejectsNilToken(t *testing.T) {
	svc := newService(&fakeStore{})

	err := svc.ReleaseHold(context.Background(), 1, []int64{1}, uuid.Nil)
	assert.ErrorIs(t, err, ErrInvalidHoldToken)
}

func TestReleaseHoldMapsNotLocked(t *testing.T) {
	svc := newService(&fakeStore{releaseErr: repository.ErrSeatNotLocked})

	err := svc.ReleaseHold(context.Background(), 1, []int64{1}, uuid.New())
	assert.ErrorIs(t, err, ErrSeatNotLocked)
}

func TestCreateBooking(t *testing.T) {
	want := &domain.Reservation{
		ID:          uuid.New(),
		UserID:      42,
		ScreeningID: 7,
		TotalAmount: 24000,
		Status:      domain.ReservationConfirmed,
		ReservedAt:  time.Now(),
	}
	store := &fakeStore{reservation: want}
	svc := newService(store)

	got, err := svc.CreateBooking(context.Background(), 42, 7, []int64{10, 11}, 24000, nil)
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, 1, store.createCalls)
}

func TestCreateBookingRejectsBadAmount(t *testing.T) {
	store := &fakeStore{}
	svc := newService(store)

	_, err := svc.CreateBooking(context.Background(), 1, 1, []int64{1}, 0, nil)
	require.ErrorIs(t, err, ErrInvalidAmount)

	_, err = svc.CreateBooking(context.Background(), 1, 1, []int64{1}, -500, nil)
	require.ErrorIs(t, err, ErrInvalidAmount)

	assert.Zero(t, store.createCalls)
}

func TestCreateBookingMapsStoreErrors(t *testing.T) {
	cases := []struct {
		name     string
		storeErr error
		wantErr  error
	}{
		{"user missing", repository.ErrUserNotFound, ErrUserNotFound},
		{"screening missing", repository.ErrScreeningNotFound, ErrScreeningNotFound},
		{"taken", repository.ErrSeatsUnavailable, ErrSeatsUnavailable},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := newService(&fakeStore{createErr: tc.storeErr})

			_, err := svc.CreateBooking(context.Background(), 1, 1, []int64{1}, 100, nil)
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestLatestReservationForUser(t *testing.T) {
	want := &domain.Reservation{ID: uuid.New(), UserID: 42}
	svc := newService(&fakeStore{latest: want})

	got, err := svc.LatestReservationForUser(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestLatestReservationForUserNone(t *testing.T) {
	svc := newService(&fakeStore{latestErr: repository.ErrNotFound})

	_, err := svc.LatestReservationForUser(context.Background(), 42)
	assert.ErrorIs(t, err, ErrNoReservations)
}

func TestReclaimStaleHolds(t *testing.T) {
	svc := newService(&fakeStore{reclaimed: 3})

	freed, err := svc.ReclaimStaleHolds(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), freed)
}
