package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{
		pool: pool,
	}
}

// maxTxAttempts bounds re-runs of a serializable transaction that aborts
// with a serialization or deadlock failure. The loser of two concurrent
// writers on the same seats aborts with SQLSTATE 40001; on re-run its
// conditional UPDATE observes the winner's committed state and fails with the
// proper state-conflict sentinel instead.
const maxTxAttempts = 3

func (s *Store) RunTx(
	ctx context.Context,
	opts *pgx.TxOptions,
	fn func(ctx context.Context, tx DB) error,
) error {
	txOpts := pgx.TxOptions{
		IsoLevel:   pgx.Serializable,
		AccessMode: pgx.ReadWrite,
	}

	if opts != nil {
		txOpts.IsoLevel = opts.IsoLevel
		txOpts.AccessMode = opts.AccessMode
		txOpts.DeferrableMode = opts.DeferrableMode
	}

	return runWithRetry(ctx, maxTxAttempts, func() error {
		return s.runTxOnce(ctx, txOpts, fn)
	})
}

func (s *Store) runTxOnce(
	ctx context.Context,
	txOpts pgx.TxOptions,
	fn func(ctx context.Context, tx DB) error,
) error {
	tx, err := s.pool.BeginTx(ctx, txOpts)
	if err != nil {
		return err
	}

	defer tx.Rollback(ctx)

	if err := fn(ctx, tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	return nil
}

// runWithRetry re-runs fn while it fails with a retryable transaction abort,
// up to attempts runs total. The last error is returned once attempts are
// exhausted or the context is done.
func runWithRetry(ctx context.Context, attempts int, fn func() error) error {
	var err error

	for i := 0; i < attempts; i++ {
		err = fn()
		if err == nil || !IsRetryable(err) {
			return err
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			return err
		}
	}

	return err
}

func (s *Store) Query() *QueryRepo              { return &QueryRepo{pool: s.pool} }
func (s *Store) Admin() *AdminRepo              { return &AdminRepo{pool: s.pool} }
func (s *Store) Seats() *SeatRepo               { return &SeatRepo{pool: s.pool} }
func (s *Store) Reservations() *ReservationRepo { return &ReservationRepo{pool: s.pool} }
func (s *Store) Payments() *PaymentRepo         { return &PaymentRepo{pool: s.pool} }
