package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cinepass/cinepass/internal/domain"
	"github.com/cinepass/cinepass/internal/repository"
)

type PaymentRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *PaymentRepo) With(db DB) *PaymentRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *PaymentRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

// Upsert writes a settlement record keyed by imp_uid. A repeated completion
// with the same imp_uid updates the existing row in place instead of creating
// a duplicate; a row already cancelled locally keeps its cancellation fields.
func (r *PaymentRepo) Upsert(ctx context.Context, p *domain.Payment) error {
	const op = "postgres.PaymentRepo.Upsert"

	db := r.handle()

	_, err := db.Exec(ctx,
		`INSERT INTO payments(
		     imp_uid, merchant_uid, amount, paid_at, method, status,
		     receipt_url, card_number, apply_num,
		     is_cancelled, cancel_reason, cancelled_at, cancel_receipt_url,
		     user_id, reservation_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		 ON CONFLICT (imp_uid) DO UPDATE SET
		     merchant_uid = EXCLUDED.merchant_uid,
		     amount       = EXCLUDED.amount,
		     paid_at      = EXCLUDED.paid_at,
		     method       = EXCLUDED.method,
		     status       = EXCLUDED.status,
		     receipt_url  = EXCLUDED.receipt_url,
		     card_number  = EXCLUDED.card_number,
		     apply_num    = EXCLUDED.apply_num,
		     user_id      = EXCLUDED.user_id,
		     reservation_id = EXCLUDED.reservation_id
		 WHERE payments.is_cancelled = false`,
		p.ImpUID, p.MerchantUID, p.Amount, p.PaidAt, p.Method, p.Status,
		p.ReceiptURL, p.CardNumber, p.ApplyNum,
		p.IsCancelled, p.CancelReason, p.CancelledAt, p.CancelReceiptURL,
		p.UserID, p.ReservationID,
	)
	if err != nil {
		return wrapDBErr(op, err)
	}

	return nil
}

// GetByImpUID retrieves a settlement record by the gateway's payment id.
//
// Returns:
//   - error: repository.ErrNotFound if no record exists for imp_uid.
func (r *PaymentRepo) GetByImpUID(ctx context.Context, impUID string) (*domain.Payment, error) {
	const op = "postgres.PaymentRepo.GetByImpUID"

	db := r.handle()

	var p domain.Payment
	err := db.QueryRow(ctx,
		`SELECT imp_uid, merchant_uid, amount, paid_at, method, status,
		        receipt_url, card_number, apply_num,
		        is_cancelled, cancel_reason, cancelled_at, cancel_receipt_url,
		        user_id, reservation_id
		   FROM payments WHERE imp_uid = $1`,
		impUID,
	).Scan(
		&p.ImpUID, &p.MerchantUID, &p.Amount, &p.PaidAt, &p.Method, &p.Status,
		&p.ReceiptURL, &p.CardNumber, &p.ApplyNum,
		&p.IsCancelled, &p.CancelReason, &p.CancelledAt, &p.CancelReceiptURL,
		&p.UserID, &p.ReservationID,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return &p, nil
}

// MarkCancelled records a confirmed gateway refund on the settlement row.
//
// Returns:
//   - error: repository.ErrAlreadyCancelled if the row was cancelled by a
//     concurrent caller between lookup and refund.
//   - error: repository.ErrNotFound if no record exists for imp_uid.
func (r *PaymentRepo) MarkCancelled(
	ctx context.Context,
	impUID, reason, receiptURL string,
	at time.Time,
) error {
	const op = "postgres.PaymentRepo.MarkCancelled"

	db := r.handle()

	tag, err := db.Exec(ctx,
		`UPDATE payments
		    SET status = 'cancelled', is_cancelled = true,
		        cancel_reason = $2, cancelled_at = $3, cancel_receipt_url = $4
		  WHERE imp_uid = $1 AND is_cancelled = false`,
		impUID, reason, at, receiptURL,
	)
	if err != nil {
		return wrapDBErr(op, err)
	}

	if tag.RowsAffected() == 0 {
		var exists bool
		if err := db.QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM payments WHERE imp_uid = $1)`, impUID,
		).Scan(&exists); err != nil {
			return wrapDBErr(op, err)
		}
		if !exists {
			return wrapDBErr(op, repository.ErrNotFound)
		}
		return wrapDBErr(op, repository.ErrAlreadyCancelled)
	}

	return nil
}
