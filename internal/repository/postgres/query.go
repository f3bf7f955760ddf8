package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cinepass/cinepass/internal/domain"
)

type QueryRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *QueryRepo) With(db DB) *QueryRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *QueryRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

// GetScreening retrieves a screening by its ID.
//
// Returns:
//   - error: repository.ErrNotFound if the screening does not exist.
func (r *QueryRepo) GetScreening(ctx context.Context, id int64) (*domain.Screening, error) {
	const op = "postgres.QueryRepo.GetScreening"

	db := r.handle()

	var s domain.Screening
	err := db.QueryRow(ctx,
		`SELECT id, theater_id, title, starts_at
		   FROM screenings WHERE id = $1`,
		id,
	).Scan(&s.ID, &s.TheaterID, &s.Title, &s.Starts)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return &s, nil
}

// UserExists reports whether the user id resolves.
func (r *QueryRepo) UserExists(ctx context.Context, id int64) (bool, error) {
	const op = "postgres.QueryRepo.UserExists"

	db := r.handle()

	var exists bool
	if err := db.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)`, id,
	).Scan(&exists); err != nil {
		return false, wrapDBErr(op, err)
	}

	return exists, nil
}

// CountsByStatus counts seats by status for a screening.
func (r *QueryRepo) CountsByStatus(ctx context.Context, screeningID int64) (*domain.ScreeningCounts, error) {
	const op = "postgres.QueryRepo.CountsByStatus"

	db := r.handle()

	var sc domain.ScreeningCounts
	err := db.QueryRow(ctx,
		`SELECT
		     COALESCE(SUM(CASE WHEN status = 'available' THEN 1 ELSE 0 END), 0),
		     COALESCE(SUM(CASE WHEN status = 'locked' THEN 1 ELSE 0 END), 0),
		     COALESCE(SUM(CASE WHEN status = 'reserved' THEN 1 ELSE 0 END), 0)
		   FROM screening_seats
		  WHERE screening_id = $1`,
		screeningID,
	).Scan(&sc.Available, &sc.Locked, &sc.Reserved)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, translateDBErr(err))
	}

	sc.Total = sc.Available + sc.Locked + sc.Reserved

	return &sc, nil
}

// ListScreeningSeats lists the seat map for a screening.
func (r *QueryRepo) ListScreeningSeats(
	ctx context.Context,
	screeningID int64,
	onlyAvailable bool,
	limit, offset int,
) ([]domain.SeatWithStatus, error) {
	const op = "postgres.QueryRepo.ListScreeningSeats"

	db := r.handle()

	var rows pgx.Rows
	var err error

	if onlyAvailable {
		rows, err = db.Query(ctx,
			`SELECT s.id, s.theater_id, s.row, s.number, ss.status
			   FROM screening_seats ss
			   JOIN seats s ON s.id = ss.seat_id
			  WHERE ss.screening_id = $1 AND ss.status = 'available'
			  ORDER BY s.row, s.number
			  LIMIT $2 OFFSET $3`,
			screeningID, limit, offset,
		)
	} else {
		rows, err = db.Query(ctx,
			`SELECT s.id, s.theater_id, s.row, s.number, ss.status
			   FROM screening_seats ss
			   JOIN seats s ON s.id = ss.seat_id
			  WHERE ss.screening_id = $1
			  ORDER BY s.row, s.number
			  LIMIT $2 OFFSET $3`,
			screeningID, limit, offset,
		)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, translateDBErr(err))
	}

	defer rows.Close()

	var out []domain.SeatWithStatus
	for rows.Next() {
		var s domain.SeatWithStatus
		if err := rows.Scan(&s.ID, &s.TheaterID, &s.Row, &s.Number, &s.Status); err != nil {
			return nil, fmt.Errorf("%s: %w", op, translateDBErr(err))
		}

		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return out, nil
}
