package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cinepass/cinepass/internal/domain"
	"github.com/cinepass/cinepass/internal/repository"
)

// SeatRepo owns every screening_seats mutation. All transitions are conditional
// UPDATEs checked against RowsAffected inside a serializable transaction, so a
// competing writer observes the new state and fails instead of overwriting it.
type SeatRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *SeatRepo) With(db DB) *SeatRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *SeatRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

// Lock transitions the requested seats AVAILABLE -> LOCKED and attaches the
// provisional holder. All seats transition or none do.
//
// Returns:
//   - error: repository.ErrSeatNotFound if any (screening, seat) pair does not exist.
//   - error: repository.ErrSeatsUnavailable if any seat is not available.
func (r *SeatRepo) Lock(
	ctx context.Context,
	screeningID int64,
	seatIDs []int64,
	userID int64,
	token uuid.UUID,
	expiresAt time.Time,
) error {
	const op = "postgres.SeatRepo.Lock"

	if r.db != nil {
		if err := r.lockCore(ctx, r.db, screeningID, seatIDs, userID, token, expiresAt); err != nil {
			return fmt.Errorf("%s: %w", op, translateDBErr(err))
		}
		return nil
	}

	err := r.inTx(ctx, func(tx DB) error {
		return r.lockCore(ctx, tx, screeningID, seatIDs, userID, token, expiresAt)
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, translateDBErr(err))
	}

	return nil
}

// Unlock transitions the requested seats LOCKED -> AVAILABLE. The caller must
// present the hold token attached at lock time.
//
// Returns:
//   - error: repository.ErrSeatNotFound if any (screening, seat) pair does not exist.
//   - error: repository.ErrSeatNotLocked if any seat is not locked under token.
func (r *SeatRepo) Unlock(
	ctx context.Context,
	screeningID int64,
	seatIDs []int64,
	token uuid.UUID,
) error {
	const op = "postgres.SeatRepo.Unlock"

	if r.db != nil {
		if err := r.unlockCore(ctx, r.db, screeningID, seatIDs, token); err != nil {
			return fmt.Errorf("%s: %w", op, translateDBErr(err))
		}
		return nil
	}

	err := r.inTx(ctx, func(tx DB) error {
		return r.unlockCore(ctx, tx, screeningID, seatIDs, token)
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, translateDBErr(err))
	}

	return nil
}

// Reserve transitions the requested seats to RESERVED and attaches the
// reservation. Seats must be AVAILABLE, or LOCKED under holdToken when one is
// given. All seats transition or none do.
func (r *SeatRepo) Reserve(
	ctx context.Context,
	db DB,
	screeningID int64,
	seatIDs []int64,
	holdToken *uuid.UUID,
	reservationID uuid.UUID,
) error {
	const op = "postgres.SeatRepo.Reserve"

	if err := r.expireWithin(ctx, db, screeningID); err != nil {
		return fmt.Errorf("%s: %w", op, translateDBErr(err))
	}

	var tag pgconn.CommandTag
	var err error

	if holdToken != nil {
		tag, err = db.Exec(ctx,
			`UPDATE screening_seats
			    SET status = 'reserved', reservation_id = $4,
			        hold_user_id = NULL, hold_token = NULL, hold_expires_at = NULL
			  WHERE screening_id = $1
			    AND seat_id = ANY($2)
			    AND (status = 'available' OR (status = 'locked' AND hold_token = $3))`,
			screeningID, seatIDs, *holdToken, reservationID,
		)
	} else {
		tag, err = db.Exec(ctx,
			`UPDATE screening_seats
			    SET status = 'reserved', reservation_id = $3,
			        hold_user_id = NULL, hold_token = NULL, hold_expires_at = NULL
			  WHERE screening_id = $1
			    AND seat_id = ANY($2)
			    AND status = 'available'`,
			screeningID, seatIDs, reservationID,
		)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", op, translateDBErr(err))
	}

	if int(tag.RowsAffected()) != len(seatIDs) {
		return fmt.Errorf("%s: %w", op, r.diagnose(ctx, db, screeningID, seatIDs, repository.ErrSeatsUnavailable))
	}

	return nil
}

// ReleaseByReservation transitions every seat claimed by the reservation
// RESERVED -> AVAILABLE. Used on payment cancellation.
func (r *SeatRepo) ReleaseByReservation(
	ctx context.Context,
	reservationID uuid.UUID,
) (int64, error) {
	const op = "postgres.SeatRepo.ReleaseByReservation"

	db := r.handle()

	tag, err := db.Exec(ctx,
		`UPDATE screening_seats
		    SET status = 'available', reservation_id = NULL
		  WHERE reservation_id = $1
		    AND status = 'reserved'`,
		reservationID,
	)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, translateDBErr(err))
	}

	return tag.RowsAffected(), nil
}

// ReclaimExpired releases every locked seat whose hold has aged past its
// expiry. Holds younger than the payment window are left alone.
func (r *SeatRepo) ReclaimExpired(ctx context.Context) (int64, error) {
	const op = "postgres.SeatRepo.ReclaimExpired"

	db := r.handle()

	tag, err := db.Exec(ctx,
		`UPDATE screening_seats
		    SET status = 'available', hold_user_id = NULL, hold_token = NULL, hold_expires_at = NULL
		  WHERE status = 'locked'
		    AND hold_expires_at <= now()`,
	)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, translateDBErr(err))
	}

	return tag.RowsAffected(), nil
}

// Get returns one screening seat row.
func (r *SeatRepo) Get(ctx context.Context, screeningID, seatID int64) (*domain.ScreeningSeat, error) {
	const op = "postgres.SeatRepo.Get"

	db := r.handle()

	var s domain.ScreeningSeat
	err := db.QueryRow(ctx,
		`SELECT screening_id, seat_id, status, hold_user_id, hold_token, hold_expires_at, reservation_id
		   FROM screening_seats
		  WHERE screening_id = $1 AND seat_id = $2`,
		screeningID, seatID,
	).Scan(&s.ScreeningID, &s.SeatID, &s.Status, &s.HoldUserID, &s.HoldToken, &s.HoldExpiresAt, &s.ReservationID)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return &s, nil
}

// inTx runs fn in its own serializable transaction with the standard retry on
// serialization aborts. Used when the repo is driven outside a Store.RunTx.
func (r *SeatRepo) inTx(ctx context.Context, fn func(tx DB) error) error {
	return runWithRetry(ctx, maxTxAttempts, func() error {
		tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{
			IsoLevel:   pgx.Serializable,
			AccessMode: pgx.ReadWrite,
		})
		if err != nil {
			return err
		}

		defer tx.Rollback(ctx)

		if err := fn(tx); err != nil {
			return err
		}

		return tx.Commit(ctx)
	})
}

func (r *SeatRepo) lockCore(
	ctx context.Context,
	db DB,
	screeningID int64,
	seatIDs []int64,
	userID int64,
	token uuid.UUID,
	expiresAt time.Time,
) error {
	if err := r.expireWithin(ctx, db, screeningID); err != nil {
		return err
	}

	tag, err := db.Exec(ctx,
		`UPDATE screening_seats
		    SET status = 'locked', hold_user_id = $3, hold_token = $4, hold_expires_at = $5
		  WHERE screening_id = $1
		    AND seat_id = ANY($2)
		    AND status = 'available'`,
		screeningID, seatIDs, userID, token, expiresAt,
	)
	if err != nil {
		return err
	}

	if int(tag.RowsAffected()) != len(seatIDs) {
		return r.diagnose(ctx, db, screeningID, seatIDs, repository.ErrSeatsUnavailable)
	}

	return nil
}

func (r *SeatRepo) unlockCore(
	ctx context.Context,
	db DB,
	screeningID int64,
	seatIDs []int64,
	token uuid.UUID,
) error {
	tag, err := db.Exec(ctx,
		`UPDATE screening_seats
		    SET status = 'available', hold_user_id = NULL, hold_token = NULL, hold_expires_at = NULL
		  WHERE screening_id = $1
		    AND seat_id = ANY($2)
		    AND status = 'locked'
		    AND hold_token = $3`,
		screeningID, seatIDs, token,
	)
	if err != nil {
		return err
	}

	if int(tag.RowsAffected()) != len(seatIDs) {
		return r.diagnose(ctx, db, screeningID, seatIDs, repository.ErrSeatNotLocked)
	}

	return nil
}

// expireWithin reclaims lapsed holds for one screening inline, so a fresh lock
// does not lose to a hold whose owner walked away.
func (r *SeatRepo) expireWithin(ctx context.Context, db DB, screeningID int64) error {
	_, err := db.Exec(ctx,
		`UPDATE screening_seats
		    SET status = 'available', hold_user_id = NULL, hold_token = NULL, hold_expires_at = NULL
		  WHERE screening_id = $1
		    AND status = 'locked'
		    AND hold_expires_at <= now()`,
		screeningID,
	)
	return err
}

// diagnose distinguishes a missing (screening, seat) pair from a state
// conflict after a transition touched fewer rows than requested.
func (r *SeatRepo) diagnose(
	ctx context.Context,
	db DB,
	screeningID int64,
	seatIDs []int64,
	conflict error,
) error {
	var existing int
	if err := db.QueryRow(ctx,
		`SELECT count(*) FROM screening_seats
		  WHERE screening_id = $1 AND seat_id = ANY($2)`,
		screeningID, seatIDs,
	).Scan(&existing); err != nil {
		return err
	}

	if existing != len(seatIDs) {
		return repository.ErrSeatNotFound
	}

	return conflict
}
