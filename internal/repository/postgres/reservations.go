package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cinepass/cinepass/internal/domain"
)

type ReservationRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *ReservationRepo) With(db DB) *ReservationRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *ReservationRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

// Create inserts a confirmed reservation and returns it with the
// server-assigned timestamp.
func (r *ReservationRepo) Create(
	ctx context.Context,
	id uuid.UUID,
	userID, screeningID, totalAmount int64,
) (*domain.Reservation, error) {
	const op = "postgres.ReservationRepo.Create"

	db := r.handle()

	var res domain.Reservation
	err := db.QueryRow(ctx,
		`INSERT INTO reservations(id, user_id, screening_id, total_amount, status)
		 VALUES ($1, $2, $3, $4, 'confirmed')
		 RETURNING id, user_id, screening_id, total_amount, status, reserved_at`,
		id, userID, screeningID, totalAmount,
	).Scan(&res.ID, &res.UserID, &res.ScreeningID, &res.TotalAmount, &res.Status, &res.ReservedAt)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return &res, nil
}

// Get retrieves a reservation by its ID.
//
// Returns:
//   - error: repository.ErrNotFound if the reservation does not exist.
func (r *ReservationRepo) Get(ctx context.Context, id uuid.UUID) (*domain.Reservation, error) {
	const op = "postgres.ReservationRepo.Get"

	db := r.handle()

	var res domain.Reservation
	err := db.QueryRow(ctx,
		`SELECT id, user_id, screening_id, total_amount, status, reserved_at
		   FROM reservations WHERE id = $1`,
		id,
	).Scan(&res.ID, &res.UserID, &res.ScreeningID, &res.TotalAmount, &res.Status, &res.ReservedAt)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return &res, nil
}

// LatestByUser returns the most recently created reservation for the user.
// Ties on reserved_at break toward the larger id so the answer is stable.
//
// Returns:
//   - error: repository.ErrNotFound if the user has no reservations.
func (r *ReservationRepo) LatestByUser(ctx context.Context, userID int64) (*domain.Reservation, error) {
	const op = "postgres.ReservationRepo.LatestByUser"

	db := r.handle()

	var res domain.Reservation
	err := db.QueryRow(ctx,
		`SELECT id, user_id, screening_id, total_amount, status, reserved_at
		   FROM reservations
		  WHERE user_id = $1
		  ORDER BY reserved_at DESC, id DESC
		  LIMIT 1`,
		userID,
	).Scan(&res.ID, &res.UserID, &res.ScreeningID, &res.TotalAmount, &res.Status, &res.ReservedAt)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return &res, nil
}

// Cancel flips a confirmed reservation to cancelled. Returns the number of
// rows changed; zero means the reservation was already cancelled or missing.
func (r *ReservationRepo) Cancel(ctx context.Context, id uuid.UUID) (int64, error) {
	const op = "postgres.ReservationRepo.Cancel"

	db := r.handle()

	tag, err := db.Exec(ctx,
		`UPDATE reservations SET status = 'cancelled'
		  WHERE id = $1 AND status = 'confirmed'`,
		id,
	)
	if err != nil {
		return 0, wrapDBErr(op, err)
	}

	return tag.RowsAffected(), nil
}
