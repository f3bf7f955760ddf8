package httpgin

import (
	"time"

	"github.com/cinepass/cinepass/internal/domain"
)

type CreateHoldRequest struct {
	UserID  int64   `json:"user_id" binding:"required"`
	SeatIDs []int64 `json:"seat_ids" binding:"required,min=1,dive,required"`
	TTLSec  int     `json:"ttl_sec"`
}

type ReleaseHoldRequest struct {
	SeatIDs   []int64 `json:"seat_ids" binding:"required,min=1,dive,required"`
	HoldToken string  `json:"hold_token" binding:"required,uuid"`
}

type CreateBookingRequest struct {
	UserID      int64   `json:"user_id" binding:"required"`
	ScreeningID int64   `json:"screening_id" binding:"required"`
	SeatIDs     []int64 `json:"seat_ids" binding:"required,min=1,dive,required"`
	TotalAmount int64   `json:"total_amount" binding:"required,gt=0"`
	HoldToken   string  `json:"hold_token" binding:"omitempty,uuid"`
}

type CompletePaymentRequest struct {
	ImpUID        string `json:"imp_uid" binding:"required"`
	MerchantUID   string `json:"merchant_uid" binding:"required"`
	UserID        int64  `json:"user_id" binding:"required"`
	ReservationID string `json:"reservation_id" binding:"required,uuid"`
}

type CancelPaymentRequest struct {
	Reason string `json:"reason"`
}

type CreateTheaterRequest struct {
	Name string `json:"name" binding:"required"`
}

type BatchCreateSeatsRequest struct {
	Seats []SeatInput `json:"seats" binding:"required,min=1,dive"`
}

type SeatInput struct {
	Row    string `json:"row" binding:"required"`
	Number int    `json:"number" binding:"required,gt=0"`
}

type CreateScreeningRequest struct {
	TheaterID int64  `json:"theater_id" binding:"required"`
	Title     string `json:"title" binding:"required"`
	StartsAt  string `json:"starts_at" binding:"required"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type CreateHoldResponse struct {
	HoldToken string  `json:"hold_token"`
	SeatIDs   []int64 `json:"seat_ids"`
	ExpiresAt string  `json:"expires_at"`
}

type CreateBookingResponse struct {
	ReservationID string `json:"reservation_id"`
	ScreeningID   int64  `json:"screening_id"`
	Status        string `json:"status"`
}

type CompletePaymentResponse struct {
	Payment *domain.Payment `json:"payment"`
	// AlreadySettled is true when a record for this imp_uid existed and was
	// refreshed in place rather than created.
	AlreadySettled bool `json:"already_settled"`
}

type CancelPaymentResponse struct {
	ImpUID        string `json:"imp_uid"`
	ReservationID string `json:"reservation_id,omitempty"`
	Reason        string `json:"reason"`
	SeatsReleased int64  `json:"seats_released"`
	CancelledAt   string `json:"cancelled_at"`
}

type CreateTheaterResponse struct {
	TheaterID int64 `json:"theater_id"`
}

type CreateScreeningResponse struct {
	ScreeningID int64 `json:"screening_id"`
}

func parseRFC3339(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}
