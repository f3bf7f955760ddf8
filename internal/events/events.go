// Package events publishes durable domain events to RabbitMQ for downstream
// consumers (notification, analytics). Publish failures are returned so the
// caller can log and move on; the booking flow never blocks on the broker.
package events

// BookingConfirmedEvent is published after a reservation commits.
type BookingConfirmedEvent struct {
	ReservationID string  `json:"reservation_id"`
	UserID        int64   `json:"user_id"`
	ScreeningID   int64   `json:"screening_id"`
	SeatIDs       []int64 `json:"seat_ids"`
	TotalAmount   int64   `json:"total_amount"`
	ConfirmedAt   string  `json:"confirmed_at"`
}

// PaymentCancelledEvent is published after a refund is confirmed by the
// gateway and applied locally.
type PaymentCancelledEvent struct {
	ImpUID        string `json:"imp_uid"`
	ReservationID string `json:"reservation_id,omitempty"`
	Reason        string `json:"reason"`
	SeatsReleased int64  `json:"seats_released"`
	CancelledAt   string `json:"cancelled_at"`
}
