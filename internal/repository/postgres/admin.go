package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cinepass/cinepass/internal/domain"
)

type AdminRepo struct {
	pool *pgxpool.Pool
	db   DB
}

// ROW is a reserved keyword, so the seats.row column must stay quoted here
// (it matches the quoted column in the migration).
const insertSeatSQL = `INSERT INTO seats(theater_id, "row", number)
	 VALUES ($1, $2, $3)
	 ON CONFLICT (theater_id, "row", number) DO NOTHING`

func (r *AdminRepo) With(db DB) *AdminRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *AdminRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

func (r *AdminRepo) CreateTheater(ctx context.Context, name string) (int64, error) {
	const op = "postgres.AdminRepo.CreateTheater"

	db := r.handle()

	var id int64
	if err := db.QueryRow(ctx,
		`INSERT INTO theaters(name)
		 VALUES ($1)
		 RETURNING id`,
		name,
	).Scan(&id); err != nil {
		return 0, wrapDBErr(op, err)
	}

	return id, nil
}

func (r *AdminRepo) BatchCreateSeats(
	ctx context.Context,
	theaterID int64,
	seats []domain.Seat,
) error {
	const op = "postgres.AdminRepo.BatchCreateSeats"

	db := r.handle()

	batch := &pgx.Batch{}
	for _, s := range seats {
		batch.Queue(insertSeatSQL, theaterID, s.Row, s.Number)
	}
	if err := db.SendBatch(ctx, batch).Close(); err != nil {
		return wrapDBErr(op, err)
	}

	return nil
}

func (r *AdminRepo) CreateScreening(
	ctx context.Context,
	theaterID int64,
	title string,
	starts time.Time,
) (int64, error) {
	const op = "postgres.AdminRepo.CreateScreening"

	db := r.handle()

	var id int64
	if err := db.QueryRow(ctx,
		`INSERT INTO screenings(theater_id, title, starts_at)
		 VALUES ($1, $2, $3)
		 RETURNING id`,
		theaterID, title, starts,
	).Scan(&id); err != nil {
		return 0, wrapDBErr(op, err)
	}

	return id, nil
}

// InitScreeningSeats creates one available screening_seats row per theater
// seat. Every seat of a fresh screening starts available.
func (r *AdminRepo) InitScreeningSeats(
	ctx context.Context,
	screeningID int64,
	theaterID int64,
) (int64, error) {
	const op = "postgres.AdminRepo.InitScreeningSeats"

	db := r.handle()

	tag, err := db.Exec(ctx,
		`INSERT INTO screening_seats(screening_id, seat_id, status)
		 SELECT $1, s.id, 'available'
		   FROM seats s
		  WHERE s.theater_id = $2
		 ON CONFLICT DO NOTHING`,
		screeningID, theaterID,
	)
	if err != nil {
		return 0, wrapDBErr(op, err)
	}

	return tag.RowsAffected(), nil
}
