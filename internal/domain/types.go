package domain

import (
	"time"

	"github.com/google/uuid"
)

type SeatStatus string

const (
	SeatAvailable SeatStatus = "available"
	SeatLocked    SeatStatus = "locked"
	SeatReserved  SeatStatus = "reserved"
)

// CanTransition reports whether the seat state machine allows moving from s to
// next. The registry rejects any transition outside this table.
func (s SeatStatus) CanTransition(next SeatStatus) bool {
	switch s {
	case SeatAvailable:
		return next == SeatLocked || next == SeatReserved
	case SeatLocked:
		return next == SeatAvailable || next == SeatReserved
	case SeatReserved:
		return next == SeatAvailable
	}
	return false
}

type ReservationStatus string

const (
	ReservationConfirmed ReservationStatus = "confirmed"
	ReservationCancelled ReservationStatus = "cancelled"
)

type PaymentStatus string

const (
	PaymentPaid PaymentStatus = "paid"
	// PaymentUnverified marks a settlement record written while the gateway
	// was unreachable; amount and method are placeholders pending manual
	// reconciliation.
	PaymentUnverified PaymentStatus = "unverified"
	PaymentCancelled  PaymentStatus = "cancelled"
)

type Theater struct {
	ID   int64
	Name string
}

type Seat struct {
	ID        int64
	TheaterID int64
	Row       string
	Number    int
}

type Screening struct {
	ID        int64
	TheaterID int64
	Title     string
	Starts    time.Time
}

// ScreeningSeat is the bookable unit: one row per seat per screening. A locked
// seat always carries its provisional holder (user, token, expiry); a reserved
// seat always carries its reservation.
type ScreeningSeat struct {
	ScreeningID   int64
	SeatID        int64
	Status        SeatStatus
	HoldUserID    *int64
	HoldToken     *uuid.UUID
	HoldExpiresAt *time.Time
	ReservationID *uuid.UUID
}

type SeatWithStatus struct {
	Seat
	Status SeatStatus
}

type ScreeningCounts struct {
	Available int64
	Locked    int64
	Reserved  int64
	Total     int64
}

type User struct {
	ID    int64
	Email string
	Name  string
}

type Reservation struct {
	ID          uuid.UUID
	UserID      int64
	ScreeningID int64
	TotalAmount int64
	Status      ReservationStatus
	ReservedAt  time.Time
}

// Payment is the local settlement record for one external gateway transaction,
// keyed by the gateway's imp_uid. At most one non-cancelled row exists per
// imp_uid; cancellation updates the row in place, it never deletes it.
type Payment struct {
	ImpUID           string
	MerchantUID      string
	Amount           int64
	PaidAt           time.Time
	Method           string
	Status           PaymentStatus
	ReceiptURL       string
	CardNumber       string // masked, last 4 digits only
	ApplyNum         string
	IsCancelled      bool
	CancelReason     string
	CancelledAt      *time.Time
	CancelReceiptURL string
	UserID           *int64
	ReservationID    *uuid.UUID
}

// Hold identifies a provisional claim on 1-2 seats prior to payment.
type Hold struct {
	Token       uuid.UUID
	ScreeningID int64
	UserID      int64
	SeatIDs     []int64
	ExpiresAt   time.Time
}
