package settlement

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cinepass/cinepass/internal/domain"
	"github.com/cinepass/cinepass/internal/gateway/iamport"
	"github.com/cinepass/cinepass/internal/repository"
)

type fakeGateway struct {
	tokenErr   error
	paymentErr error
	cancelErr  error

	payment *iamport.Payment
	cancel  *iamport.CancelResult

	cancelCalls int
}

func (f *fakeGateway) Token(ctx context.Context) (string, error) {
	if f.tokenErr != nil {
		return "", f.tokenErr
	}
	return "tok-1", nil
}

func (f *fakeGateway) Payment(ctx context.Context, token, impUID string) (*iamport.Payment, error) {
	if f.paymentErr != nil {
		return nil, f.paymentErr
	}
	return f.payment, nil
}

func (f *fakeGateway) Cancel(ctx context.Context, token, impUID, reason string) (*iamport.CancelResult, error) {
	f.cancelCalls++
	if f.cancelErr != nil {
		return nil, f.cancelErr
	}
	return f.cancel, nil
}

type fakeStore struct {
	payments     map[string]*domain.Payment
	reservations map[uuid.UUID]*domain.Reservation

	saved         *domain.Payment
	cancelCalls   int
	cancelErr     error
	seatsReleased int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		payments:     map[string]*domain.Payment{},
		reservations: map[uuid.UUID]*domain.Reservation{},
	}
}

func (f *fakeStore) PaymentByImpUID(ctx context.Context, impUID string) (*domain.Payment, error) {
	p, ok := f.payments[impUID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return p, nil
}

func (f *fakeStore) SavePayment(ctx context.Context, p *domain.Payment) error {
	f.saved = p
	f.payments[p.ImpUID] = p
	return nil
}

func (f *fakeStore) ReservationByID(ctx context.Context, id uuid.UUID) (*domain.Reservation, error) {
	r, ok := f.reservations[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return r, nil
}

func (f *fakeStore) UserExists(ctx context.Context, id int64) (bool, error) {
	return id > 0, nil
}

func (f *fakeStore) CancelSettlement(ctx context.Context, impUID, reason, receiptURL string, at time.Time) (*domain.Reservation, int64, error) {
	f.cancelCalls++
	if f.cancelErr != nil {
		return nil, 0, f.cancelErr
	}

	p := f.payments[impUID]
	p.IsCancelled = true
	p.Status = domain.PaymentCancelled

	var res *domain.Reservation
	if p.ReservationID != nil {
		res = f.reservations[*p.ReservationID]
		res.Status = domain.ReservationCancelled
	}
	return res, f.seatsReleased, nil
}

func seedReservation(store *fakeStore) *domain.Reservation {
	res := &domain.Reservation{
		ID:          uuid.New(),
		UserID:      42,
		ScreeningID: 7,
		TotalAmount: 24000,
		Status:      domain.ReservationConfirmed,
	}
	store.reservations[res.ID] = res
	return res
}

func TestCompletePayment(t *testing.T) {
	store := newFakeStore()
	res := seedReservation(store)
	gw := &fakeGateway{payment: &iamport.Payment{
		ImpUID:     "imp-1",
		Amount:     24000,
		PaidAt:     1700000000,
		PayMethod:  "card",
		Status:     "paid",
		ReceiptURL: "https://receipt/1",
		CardNumber: "1234-5678-9012-3456",
		ApplyNum:   "A1",
	}}

	svc := New(store, gw, nil)

	p, refreshed, err := svc.CompletePayment(context.Background(), "imp-1", "m-1", 42, res.ID)
	require.NoError(t, err)
	assert.False(t, refreshed)

	assert.Equal(t, "imp-1", p.ImpUID)
	assert.Equal(t, int64(24000), p.Amount)
	assert.Equal(t, time.Unix(1700000000, 0), p.PaidAt)
	assert.Equal(t, domain.PaymentPaid, p.Status)
	assert.Equal(t, "****-3456", p.CardNumber)
	require.NotNil(t, p.ReservationID)
	assert.Equal(t, res.ID, *p.ReservationID)
	require.NotNil(t, p.UserID)
	assert.Equal(t, int64(42), *p.UserID)
	assert.Same(t, p, store.saved)
}

func TestCompletePaymentUnknownReservation(t *testing.T) {
	store := newFakeStore()
	svc := New(store, &fakeGateway{}, nil)

	_, _, err := svc.CompletePayment(context.Background(), "imp-1", "m-1", 42, uuid.New())
	require.ErrorIs(t, err, ErrReservationNotFound)
	assert.Nil(t, store.saved, "no record may be written without a reservation")
}

func TestCompletePaymentGatewayDownFallsBack(t *testing.T) {
	store := newFakeStore()
	res := seedReservation(store)
	gw := &fakeGateway{tokenErr: iamport.ErrUnreachable}

	svc := New(store, gw, nil)

	before := time.Now()
	p, refreshed, err := svc.CompletePayment(context.Background(), "imp-1", "m-1", 42, res.ID)
	require.NoError(t, err, "gateway outage must not fail the completion")
	assert.False(t, refreshed)

	assert.Zero(t, p.Amount)
	assert.Equal(t, "unknown", p.Method)
	assert.Equal(t, domain.PaymentUnverified, p.Status)
	assert.WithinRange(t, p.PaidAt, before, time.Now())
	require.NotNil(t, p.ReservationID)
}

func TestCompletePaymentRepeatRefreshes(t *testing.T) {
	store := newFakeStore()
	res := seedReservation(store)
	gw := &fakeGateway{payment: &iamport.Payment{Amount: 100, Status: "paid"}}
	svc := New(store, gw, nil)

	_, refreshed, err := svc.CompletePayment(context.Background(), "imp-1", "m-1", 42, res.ID)
	require.NoError(t, err)
	assert.False(t, refreshed)

	_, refreshed, err = svc.CompletePayment(context.Background(), "imp-1", "m-1", 42, res.ID)
	require.NoError(t, err)
	assert.True(t, refreshed)
}

func TestCompletePaymentCancelledStaysCancelled(t *testing.T) {
	store := newFakeStore()
	res := seedReservation(store)
	store.payments["imp-1"] = &domain.Payment{
		ImpUID:      "imp-1",
		IsCancelled: true,
		Status:      domain.PaymentCancelled,
	}
	svc := New(store, &fakeGateway{}, nil)

	p, refreshed, err := svc.CompletePayment(context.Background(), "imp-1", "m-1", 42, res.ID)
	require.NoError(t, err)
	assert.True(t, refreshed)
	assert.True(t, p.IsCancelled)
	assert.Nil(t, store.saved, "a cancelled settlement must not be rewritten")
}

func TestCancelPayment(t *testing.T) {
	store := newFakeStore()
	res := seedReservation(store)
	store.payments["imp-1"] = &domain.Payment{
		ImpUID:        "imp-1",
		Status:        domain.PaymentPaid,
		ReservationID: &res.ID,
	}
	store.seatsReleased = 2
	gw := &fakeGateway{cancel: &iamport.CancelResult{ImpUID: "imp-1", ReceiptURL: "https://receipt/c"}}

	svc := New(store, gw, nil)

	out, err := svc.CancelPayment(context.Background(), "imp-1", "")
	require.NoError(t, err)

	assert.Equal(t, "imp-1", out.ImpUID)
	assert.Equal(t, DefaultCancelReason, out.Reason)
	assert.Equal(t, int64(2), out.SeatsReleased)
	require.NotNil(t, out.ReservationID)
	assert.Equal(t, res.ID, *out.ReservationID)
	assert.Equal(t, domain.ReservationCancelled, res.Status)
}

func TestCancelPaymentNotFound(t *testing.T) {
	svc := New(newFakeStore(), &fakeGateway{}, nil)

	_, err := svc.CancelPayment(context.Background(), "imp-missing", "")
	assert.ErrorIs(t, err, ErrPaymentNotFound)
}

func TestCancelPaymentRepeatIsAlreadyCancelled(t *testing.T) {
	store := newFakeStore()
	res := seedReservation(store)
	store.payments["imp-1"] = &domain.Payment{
		ImpUID:        "imp-1",
		Status:        domain.PaymentPaid,
		ReservationID: &res.ID,
	}
	gw := &fakeGateway{cancel: &iamport.CancelResult{ImpUID: "imp-1"}}
	svc := New(store, gw, nil)

	_, err := svc.CancelPayment(context.Background(), "imp-1", "changed my mind")
	require.NoError(t, err)

	_, err = svc.CancelPayment(context.Background(), "imp-1", "changed my mind")
	assert.ErrorIs(t, err, ErrAlreadyCancelled)
	assert.Equal(t, 1, gw.cancelCalls, "a second refund must not reach the gateway")
}

func TestCancelPaymentFailsClosed(t *testing.T) {
	store := newFakeStore()
	res := seedReservation(store)
	store.payments["imp-1"] = &domain.Payment{
		ImpUID:        "imp-1",
		Status:        domain.PaymentPaid,
		ReservationID: &res.ID,
	}
	gw := &fakeGateway{cancelErr: iamport.ErrRefundFailed}
	svc := New(store, gw, nil)

	_, err := svc.CancelPayment(context.Background(), "imp-1", "")
	require.ErrorIs(t, err, ErrRefundFailed)

	assert.Zero(t, store.cancelCalls, "unconfirmed refund must leave local state untouched")
	assert.False(t, store.payments["imp-1"].IsCancelled)
	assert.Equal(t, domain.ReservationConfirmed, res.Status)
}

func TestPaymentFromGateway(t *testing.T) {
	now := time.Now()

	t.Run("defaults method to card", func(t *testing.T) {
		p := paymentFromGateway("imp-1", "m-1", &iamport.Payment{Amount: 500}, now)
		assert.Equal(t, "card", p.Method)
		assert.Equal(t, now, p.PaidAt, "missing paid_at falls back to now")
	})

	t.Run("epoch conversion", func(t *testing.T) {
		p := paymentFromGateway("imp-1", "m-1", &iamport.Payment{PaidAt: 1700000000}, now)
		assert.Equal(t, time.Unix(1700000000, 0), p.PaidAt)
	})

	t.Run("gateway-side cancellation", func(t *testing.T) {
		gp := &iamport.Payment{
			Status:       "cancelled",
			CancelledAt:  1700000100,
			CancelReason: "dup",
		}
		p := paymentFromGateway("imp-1", "m-1", gp, now)
		assert.True(t, p.IsCancelled)
		assert.Equal(t, domain.PaymentCancelled, p.Status)
		require.NotNil(t, p.CancelledAt)
		assert.Equal(t, time.Unix(1700000100, 0), *p.CancelledAt)
		assert.Equal(t, "dup", p.CancelReason)
	})
}

func TestMaskCardNumber(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"1234-5678-9012-3456", "****-3456"},
		{"1234567890123456", "****-3456"},
		{"3456", "****-3456"},
		{"345", ""},
		{"", ""},
		{"no digits here", ""},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, maskCardNumber(tc.in), "input %q", tc.in)
	}
}
