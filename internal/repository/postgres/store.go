package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/cinepass/cinepass/internal/domain"
	"github.com/cinepass/cinepass/internal/repository"
)

// High-level atomic operations composed from the repos. Each one is a single
// serializable transaction; a competing writer on the same seat set commits
// first or fails, never both.

// HoldSeats validates and locks the requested seats in one transaction.
func (s *Store) HoldSeats(
	ctx context.Context,
	screeningID int64,
	seatIDs []int64,
	userID int64,
	token uuid.UUID,
	expiresAt time.Time,
) error {
	const op = "postgres.Store.HoldSeats"

	err := s.RunTx(ctx, nil, func(ctx context.Context, tx DB) error {
		if err := s.ensureScreening(ctx, tx, screeningID); err != nil {
			return err
		}

		return s.Seats().With(tx).Lock(ctx, screeningID, seatIDs, userID, token, expiresAt)
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// ReleaseHold unlocks the requested seats in one transaction.
func (s *Store) ReleaseHold(
	ctx context.Context,
	screeningID int64,
	seatIDs []int64,
	token uuid.UUID,
) error {
	const op = "postgres.Store.ReleaseHold"

	err := s.RunTx(ctx, nil, func(ctx context.Context, tx DB) error {
		return s.Seats().With(tx).Unlock(ctx, screeningID, seatIDs, token)
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// CreateReservation validates the user, screening and seats, inserts the
// reservation and transitions every requested seat to RESERVED, all inside one
// transaction. On any failure nothing is persisted.
func (s *Store) CreateReservation(
	ctx context.Context,
	userID, screeningID int64,
	seatIDs []int64,
	holdToken *uuid.UUID,
	totalAmount int64,
) (*domain.Reservation, error) {
	const op = "postgres.Store.CreateReservation"

	var res *domain.Reservation

	err := s.RunTx(ctx, nil, func(ctx context.Context, tx DB) error {
		ok, err := s.Query().With(tx).UserExists(ctx, userID)
		if err != nil {
			return err
		}
		if !ok {
			return repository.ErrUserNotFound
		}

		if err := s.ensureScreening(ctx, tx, screeningID); err != nil {
			return err
		}

		created, err := s.Reservations().With(tx).Create(
			ctx, uuid.New(), userID, screeningID, totalAmount,
		)
		if err != nil {
			return err
		}

		if err := s.Seats().Reserve(
			ctx, tx, screeningID, seatIDs, holdToken, created.ID,
		); err != nil {
			return err
		}

		res = created

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return res, nil
}

// CancelSettlement applies a confirmed gateway refund to local state: the
// payment row, its reservation and the reservation's seats, in one
// transaction. The gateway call itself happens before, outside any lock.
func (s *Store) CancelSettlement(
	ctx context.Context,
	impUID, reason, receiptURL string,
	at time.Time,
) (*domain.Reservation, int64, error) {
	const op = "postgres.Store.CancelSettlement"

	var res *domain.Reservation
	var released int64

	err := s.RunTx(ctx, nil, func(ctx context.Context, tx DB) error {
		if err := s.Payments().With(tx).MarkCancelled(ctx, impUID, reason, receiptURL, at); err != nil {
			return err
		}

		p, err := s.Payments().With(tx).GetByImpUID(ctx, impUID)
		if err != nil {
			return err
		}

		if p.ReservationID == nil {
			// Settlement rows are always linked at completion time, so
			// there is nothing further to release.
			return nil
		}

		if _, err := s.Reservations().With(tx).Cancel(ctx, *p.ReservationID); err != nil {
			return err
		}

		n, err := s.Seats().With(tx).ReleaseByReservation(ctx, *p.ReservationID)
		if err != nil {
			return err
		}
		released = n

		r, err := s.Reservations().With(tx).Get(ctx, *p.ReservationID)
		if err != nil {
			return err
		}
		res = r

		return nil
	})
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", op, err)
	}

	return res, released, nil
}

// ReclaimExpiredHolds releases every hold past its expiry.
func (s *Store) ReclaimExpiredHolds(ctx context.Context) (int64, error) {
	return s.Seats().ReclaimExpired(ctx)
}

// ScreeningByID resolves a screening for validation and cache fanout.
func (s *Store) ScreeningByID(ctx context.Context, id int64) (*domain.Screening, error) {
	return s.Query().GetScreening(ctx, id)
}

// UserExists resolves a user id.
func (s *Store) UserExists(ctx context.Context, id int64) (bool, error) {
	return s.Query().UserExists(ctx, id)
}

// LatestReservationByUser returns the user's most recent reservation.
func (s *Store) LatestReservationByUser(ctx context.Context, userID int64) (*domain.Reservation, error) {
	return s.Reservations().LatestByUser(ctx, userID)
}

// ReservationByID resolves a reservation.
func (s *Store) ReservationByID(ctx context.Context, id uuid.UUID) (*domain.Reservation, error) {
	return s.Reservations().Get(ctx, id)
}

// PaymentByImpUID resolves a settlement record.
func (s *Store) PaymentByImpUID(ctx context.Context, impUID string) (*domain.Payment, error) {
	return s.Payments().GetByImpUID(ctx, impUID)
}

// SavePayment upserts a settlement record by imp_uid.
func (s *Store) SavePayment(ctx context.Context, p *domain.Payment) error {
	return s.Payments().Upsert(ctx, p)
}

func (s *Store) ensureScreening(ctx context.Context, tx DB, screeningID int64) error {
	_, err := s.Query().With(tx).GetScreening(ctx, screeningID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return repository.ErrScreeningNotFound
		}
		return err
	}
	return nil
}
