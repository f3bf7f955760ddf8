// Package booking coordinates seat state transitions and reservation
// creation. Each operation is one atomic unit against the store; under
// concurrent demand on overlapping seat sets exactly one caller wins and the
// rest observe ErrSeatsUnavailable.
package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/cinepass/cinepass/internal/domain"
	"github.com/cinepass/cinepass/internal/events"
	"github.com/cinepass/cinepass/internal/repository"
	redisrepo "github.com/cinepass/cinepass/internal/repository/redis"
)

// MaxSeatsPerBooking caps one request at two seats.
const MaxSeatsPerBooking = 2

type Config struct {
	MinHoldTTL time.Duration
	MaxHoldTTL time.Duration
}

// Store is the transactional surface the coordinator needs. Every method is a
// single atomic unit; the postgres store implements each as one serializable
// transaction.
type Store interface {
	ScreeningByID(ctx context.Context, id int64) (*domain.Screening, error)
	UserExists(ctx context.Context, id int64) (bool, error)
	HoldSeats(ctx context.Context, screeningID int64, seatIDs []int64, userID int64, token uuid.UUID, expiresAt time.Time) error
	ReleaseHold(ctx context.Context, screeningID int64, seatIDs []int64, token uuid.UUID) error
	CreateReservation(ctx context.Context, userID, screeningID int64, seatIDs []int64, holdToken *uuid.UUID, totalAmount int64) (*domain.Reservation, error)
	LatestReservationByUser(ctx context.Context, userID int64) (*domain.Reservation, error)
	ReclaimExpiredHolds(ctx context.Context) (int64, error)
}

type Service struct {
	store   Store
	cache   *redisrepo.Cache
	pubsub  *redisrepo.ScreeningsPubSub
	events  *events.Publisher
	limiter *redisrepo.SlidingWindowLimiter
	cfg     Config
}

func New(
	store Store,
	cache *redisrepo.Cache,
	pubsub *redisrepo.ScreeningsPubSub,
	publisher *events.Publisher,
	limiter *redisrepo.SlidingWindowLimiter,
	cfg Config,
) *Service {
	if cfg.MinHoldTTL <= 0 {
		cfg.MinHoldTTL = 15 * time.Second
	}

	if cfg.MaxHoldTTL <= 0 || cfg.MaxHoldTTL < cfg.MinHoldTTL {
		cfg.MaxHoldTTL = 5 * time.Minute
	}

	return &Service{
		store:   store,
		cache:   cache,
		pubsub:  pubsub,
		events:  publisher,
		limiter: limiter,
		cfg:     cfg,
	}
}

// HoldSeats locks 1-2 available seats for the user and returns the hold with
// its token and expiry. All requested seats lock or none do.
//
// Returns:
//   - error: booking.ErrInvalidSeatCount for 0 or >2 seats, or duplicates.
//   - error: booking.ErrScreeningNotFound, booking.ErrSeatNotFound.
//   - error: booking.ErrSeatsUnavailable if any seat is not available.
func (s *Service) HoldSeats(
	ctx context.Context,
	userID, screeningID int64,
	seatIDs []int64,
	ttl time.Duration,
	rlKey string,
) (*domain.Hold, error) {
	const op = "service.booking.HoldSeats"

	if err := validateSeatIDs(seatIDs); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	ttl = s.clampTTL(ttl)

	if s.limiter != nil && rlKey != "" {
		ok, _, retry, err := s.limiter.Allow(ctx, rlKey)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if !ok {
			return nil, fmt.Errorf("%s: rate limited, retry in %s", op, retry)
		}
	}

	token := uuid.New()
	expiresAt := time.Now().Add(ttl)

	if err := s.store.HoldSeats(ctx, screeningID, seatIDs, userID, token, expiresAt); err != nil {
		return nil, fmt.Errorf("%s: %w", op, s.mapSeatErr(err))
	}

	s.screeningChanged(ctx, screeningID)

	return &domain.Hold{
		Token:       token,
		ScreeningID: screeningID,
		UserID:      userID,
		SeatIDs:     seatIDs,
		ExpiresAt:   expiresAt,
	}, nil
}

// ReleaseHold is the inverse of HoldSeats: every requested seat must be
// locked under token, else nothing changes.
//
// Returns:
//   - error: booking.ErrSeatNotLocked if any seat is not locked under token.
//   - error: booking.ErrSeatNotFound, booking.ErrInvalidSeatCount,
//     booking.ErrInvalidHoldToken.
func (s *Service) ReleaseHold(
	ctx context.Context,
	screeningID int64,
	seatIDs []int64,
	token uuid.UUID,
) error {
	const op = "service.booking.ReleaseHold"

	if err := validateSeatIDs(seatIDs); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if token == uuid.Nil {
		return fmt.Errorf("%s: %w", op, ErrInvalidHoldToken)
	}

	if err := s.store.ReleaseHold(ctx, screeningID, seatIDs, token); err != nil {
		return fmt.Errorf("%s: %w", op, s.mapSeatErr(err))
	}

	s.screeningChanged(ctx, screeningID)

	return nil
}

// CreateBooking creates a confirmed reservation over 1-2 seats and transitions
// them to RESERVED. Seats must be available, or locked under holdToken when
// one is presented. The reservation and every seat transition commit together
// or not at all.
//
// Returns:
//   - error: booking.ErrInvalidSeatCount, booking.ErrInvalidAmount.
//   - error: booking.ErrUserNotFound, booking.ErrScreeningNotFound,
//     booking.ErrSeatNotFound.
//   - error: booking.ErrSeatsUnavailable when any seat is reserved or locked
//     by someone else.
func (s *Service) CreateBooking(
	ctx context.Context,
	userID, screeningID int64,
	seatIDs []int64,
	totalAmount int64,
	holdToken *uuid.UUID,
) (*domain.Reservation, error) {
	const op = "service.booking.CreateBooking"

	if err := validateSeatIDs(seatIDs); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if totalAmount <= 0 {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidAmount)
	}

	res, err := s.store.CreateReservation(ctx, userID, screeningID, seatIDs, holdToken, totalAmount)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, s.mapSeatErr(err))
	}

	s.screeningChanged(ctx, screeningID)

	if s.events != nil {
		_ = s.events.PublishBookingConfirmed(ctx, events.BookingConfirmedEvent{
			ReservationID: res.ID.String(),
			UserID:        res.UserID,
			ScreeningID:   res.ScreeningID,
			SeatIDs:       seatIDs,
			TotalAmount:   res.TotalAmount,
			ConfirmedAt:   res.ReservedAt.UTC().Format(time.RFC3339),
		})
	}

	return res, nil
}

// LatestReservationForUser returns the user's most recently created
// reservation, ties broken toward the newest.
//
// Returns:
//   - error: booking.ErrNoReservations if the user has none.
func (s *Service) LatestReservationForUser(ctx context.Context, userID int64) (*domain.Reservation, error) {
	const op = "service.booking.LatestReservationForUser"

	res, err := s.store.LatestReservationByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, ErrNoReservations)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return res, nil
}

// ReclaimStaleHolds releases every hold past its expiry and reports how many
// seats went back to available. Holds still inside the payment window are
// untouched.
func (s *Service) ReclaimStaleHolds(ctx context.Context) (int64, error) {
	const op = "service.booking.ReclaimStaleHolds"

	released, err := s.store.ReclaimExpiredHolds(ctx)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return released, nil
}

func (s *Service) clampTTL(ttl time.Duration) time.Duration {
	if ttl < s.cfg.MinHoldTTL {
		return s.cfg.MinHoldTTL
	}

	if ttl > s.cfg.MaxHoldTTL {
		return s.cfg.MaxHoldTTL
	}

	return ttl
}

func (s *Service) screeningChanged(ctx context.Context, screeningID int64) {
	if s.cache != nil {
		_ = s.cache.InvalidateScreening(ctx, screeningID)
	}
	if s.pubsub != nil {
		_ = s.pubsub.PublishScreeningChanged(ctx, screeningID)
	}
}

func (s *Service) mapSeatErr(err error) error {
	switch {
	case errors.Is(err, repository.ErrScreeningNotFound):
		return ErrScreeningNotFound
	case errors.Is(err, repository.ErrUserNotFound):
		return ErrUserNotFound
	case errors.Is(err, repository.ErrSeatNotFound):
		return ErrSeatNotFound
	case errors.Is(err, repository.ErrSeatsUnavailable):
		return ErrSeatsUnavailable
	case errors.Is(err, repository.ErrSeatNotLocked):
		return ErrSeatNotLocked
	}
	return err
}

func validateSeatIDs(seatIDs []int64) error {
	if len(seatIDs) == 0 || len(seatIDs) > MaxSeatsPerBooking {
		return ErrInvalidSeatCount
	}

	seen := make(map[int64]struct{}, len(seatIDs))
	for _, id := range seatIDs {
		if id <= 0 {
			return ErrSeatNotFound
		}
		if _, dup := seen[id]; dup {
			return ErrInvalidSeatCount
		}
		seen[id] = struct{}{}
	}

	return nil
}
