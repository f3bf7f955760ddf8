// Package settlement reconciles external payment transactions against local
// reservation and seat state. Gateway calls always run outside database
// transactions: the client is slow network I/O and must never hold a row lock.
//
// The idempotency contract: a repeated CompletePayment for the same imp_uid
// refreshes the existing record in place and reports it as already settled; a
// repeated CancelPayment reports ErrAlreadyCancelled, distinct from both
// success and ErrPaymentNotFound.
package settlement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/cinepass/cinepass/internal/domain"
	"github.com/cinepass/cinepass/internal/events"
	"github.com/cinepass/cinepass/internal/gateway/iamport"
	"github.com/cinepass/cinepass/internal/repository"
)

// DefaultCancelReason is recorded when the caller gives none.
const DefaultCancelReason = "user request"

// Gateway is the payment provider surface the service needs.
type Gateway interface {
	Token(ctx context.Context) (string, error)
	Payment(ctx context.Context, token, impUID string) (*iamport.Payment, error)
	Cancel(ctx context.Context, token, impUID, reason string) (*iamport.CancelResult, error)
}

// Store is the transactional surface for settlement records. CancelSettlement
// applies the payment, reservation and seat mutations as one atomic unit.
type Store interface {
	PaymentByImpUID(ctx context.Context, impUID string) (*domain.Payment, error)
	SavePayment(ctx context.Context, p *domain.Payment) error
	ReservationByID(ctx context.Context, id uuid.UUID) (*domain.Reservation, error)
	UserExists(ctx context.Context, id int64) (bool, error)
	CancelSettlement(ctx context.Context, impUID, reason, receiptURL string, at time.Time) (*domain.Reservation, int64, error)
}

// CancelOutcome reports what a confirmed refund changed locally.
type CancelOutcome struct {
	ImpUID        string
	ReservationID *uuid.UUID
	Reason        string
	SeatsReleased int64
	CancelledAt   time.Time
}

type Service struct {
	store  Store
	gw     Gateway
	events *events.Publisher
	now    func() time.Time
}

func New(store Store, gw Gateway, publisher *events.Publisher) *Service {
	return &Service{
		store:  store,
		gw:     gw,
		events: publisher,
		now:    time.Now,
	}
}

// CompletePayment records the settlement for a paid booking. The reservation
// must resolve so every payment row is born linked; the user link is best
// effort. When the gateway cannot be reached the call still succeeds with a
// conservative placeholder record (zero amount, unverified status) so the
// booking is never left without a settlement trace.
//
// Returns:
//   - *domain.Payment: the stored record.
//   - bool: true when a record for imp_uid already existed and was refreshed
//     in place instead of created.
//   - error: settlement.ErrReservationNotFound if reservationID does not resolve.
func (s *Service) CompletePayment(
	ctx context.Context,
	impUID, merchantUID string,
	userID int64,
	reservationID uuid.UUID,
) (*domain.Payment, bool, error) {
	const op = "service.settlement.CompletePayment"

	res, err := s.store.ReservationByID(ctx, reservationID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, false, fmt.Errorf("%s: %w", op, ErrReservationNotFound)
		}

		return nil, false, fmt.Errorf("%s: %w", op, err)
	}

	existing, err := s.store.PaymentByImpUID(ctx, impUID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, false, fmt.Errorf("%s: %w", op, err)
	}
	refreshed := existing != nil
	if refreshed && existing.IsCancelled {
		// A cancelled settlement stays cancelled; do not resurrect it.
		return existing, true, nil
	}

	p := s.fetchAndBuild(ctx, impUID, merchantUID)

	p.ReservationID = &res.ID
	if ok, err := s.store.UserExists(ctx, userID); err == nil && ok {
		uid := userID
		p.UserID = &uid
	}

	if err := s.store.SavePayment(ctx, p); err != nil {
		return nil, false, fmt.Errorf("%s: %w", op, err)
	}

	return p, refreshed, nil
}

// CancelPayment refunds a settlement at the gateway and then, atomically,
// marks the payment cancelled, cancels the linked reservation and releases its
// seats. The gateway call comes first: an unconfirmed refund must not be
// reported as cancelled, so any gateway failure leaves local state untouched.
//
// Returns:
//   - error: settlement.ErrPaymentNotFound if no record exists for imp_uid.
//   - error: settlement.ErrAlreadyCancelled on a repeated cancellation.
//   - error: settlement.ErrRefundFailed if the gateway does not confirm.
func (s *Service) CancelPayment(ctx context.Context, impUID, reason string) (*CancelOutcome, error) {
	const op = "service.settlement.CancelPayment"

	p, err := s.store.PaymentByImpUID(ctx, impUID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, ErrPaymentNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if p.IsCancelled {
		return nil, fmt.Errorf("%s: %w", op, ErrAlreadyCancelled)
	}

	if reason == "" {
		reason = DefaultCancelReason
	}

	token, err := s.gw.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, ErrRefundFailed, err)
	}

	cr, err := s.gw.Cancel(ctx, token, impUID, reason)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, s.mapRefundErr(err))
	}

	cancelledAt := s.now()

	res, released, err := s.store.CancelSettlement(ctx, impUID, reason, cr.ReceiptURL, cancelledAt)
	if err != nil {
		if errors.Is(err, repository.ErrAlreadyCancelled) {
			return nil, fmt.Errorf("%s: %w", op, ErrAlreadyCancelled)
		}
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, ErrPaymentNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	out := &CancelOutcome{
		ImpUID:        impUID,
		Reason:        reason,
		SeatsReleased: released,
		CancelledAt:   cancelledAt,
	}
	if res != nil {
		id := res.ID
		out.ReservationID = &id
	}

	if s.events != nil {
		ev := events.PaymentCancelledEvent{
			ImpUID:        impUID,
			Reason:        reason,
			SeatsReleased: released,
			CancelledAt:   cancelledAt.UTC().Format(time.RFC3339),
		}
		if out.ReservationID != nil {
			ev.ReservationID = out.ReservationID.String()
		}
		_ = s.events.PublishPaymentCancelled(ctx, ev)
	}

	return out, nil
}

// fetchAndBuild looks the payment up at the gateway and builds the local
// record; on any gateway failure it degrades to the placeholder record
// instead of failing the completion.
func (s *Service) fetchAndBuild(ctx context.Context, impUID, merchantUID string) *domain.Payment {
	now := s.now()

	token, err := s.gw.Token(ctx)
	if err != nil {
		return fallbackPayment(impUID, merchantUID, now)
	}

	gp, err := s.gw.Payment(ctx, token, impUID)
	if err != nil {
		return fallbackPayment(impUID, merchantUID, now)
	}

	return paymentFromGateway(impUID, merchantUID, gp, now)
}

// paymentFromGateway maps a gateway payment onto the local settlement record.
func paymentFromGateway(impUID, merchantUID string, gp *iamport.Payment, now time.Time) *domain.Payment {
	p := &domain.Payment{
		ImpUID:      impUID,
		MerchantUID: merchantUID,
		Amount:      gp.Amount,
		PaidAt:      now,
		Method:      gp.PayMethod,
		Status:      domain.PaymentPaid,
		ReceiptURL:  gp.ReceiptURL,
		CardNumber:  maskCardNumber(gp.CardNumber),
		ApplyNum:    gp.ApplyNum,
	}

	if gp.PaidAt > 0 {
		p.PaidAt = time.Unix(gp.PaidAt, 0)
	}

	if p.Method == "" {
		p.Method = "card"
	}

	if gp.Status == "cancelled" || gp.CancelledAt > 0 {
		at := now
		if gp.CancelledAt > 0 {
			at = time.Unix(gp.CancelledAt, 0)
		}
		p.Status = domain.PaymentCancelled
		p.IsCancelled = true
		p.CancelledAt = &at
		p.CancelReason = gp.CancelReason
	}

	return p
}

// fallbackPayment is the conservative record written when the gateway is
// unreachable: zero amount, unverified status, settled-at now. It keeps a
// local trace for manual reconciliation rather than losing the settlement.
func fallbackPayment(impUID, merchantUID string, now time.Time) *domain.Payment {
	return &domain.Payment{
		ImpUID:      impUID,
		MerchantUID: merchantUID,
		Amount:      0,
		PaidAt:      now,
		Method:      "unknown",
		Status:      domain.PaymentUnverified,
	}
}

// maskCardNumber keeps only the last four digits.
func maskCardNumber(s string) string {
	digits := make([]rune, 0, len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			digits = append(digits, r)
		}
	}

	if len(digits) < 4 {
		return ""
	}

	return "****-" + string(digits[len(digits)-4:])
}

func (s *Service) mapRefundErr(err error) error {
	if errors.Is(err, iamport.ErrRefundFailed) || errors.Is(err, iamport.ErrUnreachable) {
		return fmt.Errorf("%w: %w", ErrRefundFailed, err)
	}
	return err
}
