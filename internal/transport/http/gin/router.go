package httpgin

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/cinepass/cinepass/internal/domain"
	redisrepo "github.com/cinepass/cinepass/internal/repository/redis"
	"github.com/cinepass/cinepass/internal/service"
	"github.com/cinepass/cinepass/internal/service/admin"
	"github.com/cinepass/cinepass/internal/service/booking"
	"github.com/cinepass/cinepass/internal/service/query"
	"github.com/cinepass/cinepass/internal/service/settlement"
)

func NewRouter(
	svcs *service.Services,
	idem *redisrepo.IdempotencyStore,
	logger *slog.Logger,
	middlewares ...gin.HandlerFunc,
) *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery(), LoggingMiddleware(logger), RequestIDMiddleware(), CORS())
	for _, m := range middlewares {
		if m != nil {
			r.Use(m)
		}
	}

	// Swagger UI
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// health
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Public API
	r.GET("/screenings/:id", handleGetScreening(svcs))
	r.GET("/screenings/:id/availability", handleGetAvailability(svcs))
	r.GET("/screenings/:id/seats", handleListScreeningSeats(svcs))

	r.POST("/screenings/:id/holds", handleCreateHold(svcs, idem))
	r.POST("/screenings/:id/holds/release", handleReleaseHold(svcs))

	r.POST("/bookings", handleCreateBooking(svcs))
	r.GET("/users/:id/reservations/latest", handleLatestReservation(svcs))

	r.POST("/payments/complete", handleCompletePayment(svcs))
	r.POST("/payments/:imp_uid/cancel", handleCancelPayment(svcs))

	// Admin-API
	// TODO: add admin middleware
	adm := r.Group("/admin")
	{
		adm.POST("/theaters", handleCreateTheater(svcs))
		adm.POST("/theaters/:id/seats", handleBatchCreateSeats(svcs))
		adm.POST("/screenings", handleCreateScreening(svcs))
	}

	return r
}

// --- Handlers with Swagger annotations ---

// @Summary  Get screening
// @Param    id  path  int  true  "Screening ID"
// @Success  200  {object}  domain.Screening
// @Failure  404  {object}  ErrorResponse
// @Router   /screenings/{id} [get]
func handleGetScreening(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		screeningID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		s, err := svcs.Query.GetScreening(c.Request.Context(), screeningID)
		if err != nil {
			respondErr(c, err)
			return
		}
		// ETag + Cache-Control 60s
		writeJSONWithCache(c, http.StatusOK, s, "public, max-age=60", true)
	}
}

// @Summary  Get availability counters
// @Param    id  path  int  true  "Screening ID"
// @Success  200  {object}  domain.ScreeningCounts
// @Router   /screenings/{id}/availability [get]
func handleGetAvailability(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		screeningID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		cnt, err := svcs.Query.CountsByStatus(c.Request.Context(), screeningID)
		if err != nil {
			respondErr(c, err)
			return
		}
		// ETag + Cache-Control 15s
		writeJSONWithCache(c, http.StatusOK, cnt, "public, max-age=15", true)
	}
}

// @Summary  List screening seats
// @Param    id     path   int     true  "Screening ID"
// @Param    only   query  string  false "available"
// @Param    limit  query  int     false "page size"
// @Param    offset query  int     false "offset"
// @Success  200  {array}   domain.SeatWithStatus
// @Router   /screenings/{id}/seats [get]
func handleListScreeningSeats(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		screeningID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		onlyAvailable := false
		if c.Query("only") == "available" ||
			c.Query("only_available") == "true" ||
			c.Query("onlyAvailable") == "true" {
			onlyAvailable = true
		}
		limit := parseIntDefault(c.Query("limit"), 100)
		offset := parseIntDefault(c.Query("offset"), 0)

		seats, err := svcs.Query.ListScreeningSeats(
			c.Request.Context(),
			screeningID,
			onlyAvailable,
			limit,
			offset,
		)
		if err != nil {
			respondErr(c, err)
			return
		}
		// ETag + Cache-Control 15s, seat lists go stale fast
		writeJSONWithCache(c, http.StatusOK, seats, "public, max-age=15", true)
	}
}

// @Summary  Create hold (idempotent)
// @Param    id  path  int  true  "Screening ID"
// @Param    req body  CreateHoldRequest true "payload"
// @Header   201 {string} Idempotency-Key "echo"
// @Success  201 {object} CreateHoldResponse
// @Failure  400 {object} ErrorResponse
// @Failure  409 {object} ErrorResponse "seats unavailable / idem in progress"
// @Failure  429 {object} ErrorResponse "rate limited"
// @Router   /screenings/{id}/holds [post]
func handleCreateHold(
	svcs *service.Services,
	idem *redisrepo.IdempotencyStore,
) gin.HandlerFunc {
	return func(c *gin.Context) {
		screeningID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		var req CreateHoldRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		idemKey := strings.TrimSpace(c.GetHeader("Idempotency-Key"))
		var idemStorageKey string
		if idem != nil && idemKey != "" {
			idemStorageKey = redisrepo.KeyIdemHold(screeningID, idemKey)

			if payload, ok, _ := idem.GetResult(
				c.Request.Context(),
				idemStorageKey,
			); ok {
				c.Header("Idempotency-Key", idemKey)
				c.Data(
					http.StatusCreated,
					"application/json; charset=utf-8",
					[]byte(payload),
				)
				return
			}

			locked, err := idem.AcquireLock(
				c.Request.Context(),
				idemStorageKey,
				60*time.Second,
			)
			if err != nil {
				respondErr(c, err)
				return
			}
			if !locked {
				if payload, ok, _ := idem.GetResult(
					c.Request.Context(),
					idemStorageKey,
				); ok {
					c.Header("Idempotency-Key", idemKey)
					c.Data(
						http.StatusCreated,
						"application/json; charset=utf-8",
						[]byte(payload),
					)
					return
				}
				c.Header("Retry-After", "1")
				c.JSON(
					http.StatusConflict,
					ErrorResponse{Error: "idempotency key in progress"},
				)
				return
			}
		}

		ttl := time.Duration(req.TTLSec) * time.Second
		rlKey := "ip:" + c.ClientIP()

		hold, err := svcs.Booking.HoldSeats(
			c.Request.Context(),
			req.UserID,
			screeningID,
			req.SeatIDs,
			ttl,
			rlKey,
		)
		if err != nil {
			if idemStorageKey != "" && idem != nil {
				_ = idem.Release(c.Request.Context(), idemStorageKey)
			}
			if isRateLimitedErr(err) {
				c.Header("Retry-After", "60")
				c.JSON(
					http.StatusTooManyRequests,
					ErrorResponse{Error: err.Error()},
				)
				return
			}
			respondErr(c, err)
			return
		}

		resp := CreateHoldResponse{
			HoldToken: hold.Token.String(),
			SeatIDs:   hold.SeatIDs,
			ExpiresAt: hold.ExpiresAt.UTC().Format(time.RFC3339),
		}

		if idemStorageKey != "" && idem != nil {
			b, _ := json.Marshal(resp)
			_ = idem.SaveResult(c.Request.Context(), idemStorageKey, string(b))
			c.Header("Idempotency-Key", idemKey)
		}

		c.JSON(http.StatusCreated, resp)
	}
}

// @Summary  Release hold
// @Param    id  path  int  true  "Screening ID"
// @Param    req body  ReleaseHoldRequest true "payload"
// @Success  204
// @Failure  409 {object} ErrorResponse "seat not locked by this token"
// @Router   /screenings/{id}/holds/release [post]
func handleReleaseHold(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		screeningID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		var req ReleaseHoldRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		token, err := uuid.Parse(req.HoldToken)
		if err != nil {
			badRequest(c, "invalid hold_token")
			return
		}
		if err := svcs.Booking.ReleaseHold(
			c.Request.Context(),
			screeningID,
			req.SeatIDs,
			token,
		); err != nil {
			respondErr(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// @Summary  Create booking
// @Param    req body  CreateBookingRequest true "payload"
// @Success  201 {object} CreateBookingResponse
// @Failure  409 {object} ErrorResponse "seats unavailable"
// @Router   /bookings [post]
func handleCreateBooking(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateBookingRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		var holdToken *uuid.UUID
		if req.HoldToken != "" {
			t, err := uuid.Parse(req.HoldToken)
			if err != nil {
				badRequest(c, "invalid hold_token")
				return
			}
			holdToken = &t
		}

		res, err := svcs.Booking.CreateBooking(
			c.Request.Context(),
			req.UserID,
			req.ScreeningID,
			req.SeatIDs,
			req.TotalAmount,
			holdToken,
		)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusCreated, CreateBookingResponse{
			ReservationID: res.ID.String(),
			ScreeningID:   res.ScreeningID,
			Status:        string(res.Status),
		})
	}
}

// @Summary  Latest reservation for user
// @Param    id  path  int  true  "User ID"
// @Success  200 {object} domain.Reservation
// @Failure  404 {object} ErrorResponse
// @Router   /users/{id}/reservations/latest [get]
func handleLatestReservation(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		res, err := svcs.Booking.LatestReservationForUser(c.Request.Context(), userID)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, res)
	}
}

// @Summary  Record payment settlement
// @Param    req body  CompletePaymentRequest true "payload"
// @Success  200 {object} CompletePaymentResponse
// @Failure  404 {object} ErrorResponse "reservation not found"
// @Router   /payments/complete [post]
func handleCompletePayment(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CompletePaymentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		reservationID, err := uuid.Parse(req.ReservationID)
		if err != nil {
			badRequest(c, "invalid reservation_id")
			return
		}
		p, alreadySettled, err := svcs.Settlement.CompletePayment(
			c.Request.Context(),
			req.ImpUID,
			req.MerchantUID,
			req.UserID,
			reservationID,
		)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, CompletePaymentResponse{
			Payment:        p,
			AlreadySettled: alreadySettled,
		})
	}
}

// @Summary  Cancel payment and release seats
// @Param    imp_uid  path  string  true  "Gateway payment ID"
// @Param    req body  CancelPaymentRequest true "payload"
// @Success  200 {object} CancelPaymentResponse
// @Failure  404 {object} ErrorResponse
// @Failure  409 {object} ErrorResponse "already cancelled"
// @Failure  502 {object} ErrorResponse "gateway refund failed"
// @Router   /payments/{imp_uid}/cancel [post]
func handleCancelPayment(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		impUID := c.Param("imp_uid")
		if impUID == "" {
			badRequest(c, "missing imp_uid")
			return
		}
		// body is optional, reason defaults inside the service
		var req CancelPaymentRequest
		_ = c.ShouldBindJSON(&req)

		out, err := svcs.Settlement.CancelPayment(c.Request.Context(), impUID, req.Reason)
		if err != nil {
			respondErr(c, err)
			return
		}

		resp := CancelPaymentResponse{
			ImpUID:        out.ImpUID,
			Reason:        out.Reason,
			SeatsReleased: out.SeatsReleased,
			CancelledAt:   out.CancelledAt.UTC().Format(time.RFC3339),
		}
		if out.ReservationID != nil {
			resp.ReservationID = out.ReservationID.String()
		}
		c.JSON(http.StatusOK, resp)
	}
}

// @Summary  Create theater
// @Param    req body  CreateTheaterRequest true "payload"
// @Success  201 {object} CreateTheaterResponse
// @Router   /admin/theaters [post]
func handleCreateTheater(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateTheaterRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		id, err := svcs.Admin.CreateTheater(c.Request.Context(), req.Name)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusCreated, CreateTheaterResponse{TheaterID: id})
	}
}

// @Summary  Batch create seats
// @Param    id  path  int  true  "Theater ID"
// @Param    req body  BatchCreateSeatsRequest true "payload"
// @Success  201 {object} map[string]int
// @Router   /admin/theaters/{id}/seats [post]
func handleBatchCreateSeats(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		theaterID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		var req BatchCreateSeatsRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		var seats []domain.Seat
		for _, s := range req.Seats {
			seats = append(seats, domain.Seat{
				TheaterID: theaterID,
				Row:       s.Row,
				Number:    s.Number,
			})
		}
		if err := svcs.Admin.BatchCreateSeats(
			c.Request.Context(),
			theaterID,
			seats,
		); err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"created": len(seats)})
	}
}

// @Summary  Create screening and init seats
// @Param    req body  CreateScreeningRequest true "payload"
// @Success  201 {object} CreateScreeningResponse
// @Router   /admin/screenings [post]
func handleCreateScreening(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateScreeningRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		starts, err := parseRFC3339(req.StartsAt)
		if err != nil {
			badRequest(c, "invalid starts_at (RFC3339)")
			return
		}
		id, err := svcs.Admin.CreateScreeningWithSeats(
			c.Request.Context(),
			req.TheaterID,
			req.Title,
			starts,
		)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusCreated, CreateScreeningResponse{ScreeningID: id})
	}
}

// --- Helpers ---

func parseInt64Param(c *gin.Context, name string) (int64, bool) {
	s := c.Param(name)
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		badRequest(c, "invalid "+name)
		return 0, false
	}
	return v, true
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: msg})
}

func isRateLimitedErr(err error) bool {
	return err != nil && strings.Contains(err.Error(), "rate limited")
}

func respondErr(c *gin.Context, err error) {
	if err == nil {
		c.Status(http.StatusNoContent)
		return
	}

	switch {
	// admin service
	case errors.Is(err, admin.ErrTheaterConflict):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "theater conflict"})
	case errors.Is(err, admin.ErrSeatsConflict):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "seats conflict"})
	case errors.Is(err, admin.ErrScreeningConflict):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "screening conflict"})
	case errors.Is(err, admin.ErrFailedToInitSeats):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "theater does not exist"})
	// query service
	case errors.Is(err, query.ErrScreeningNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "screening not found"})
	// booking service
	case errors.Is(err, booking.ErrInvalidSeatCount),
		errors.Is(err, booking.ErrInvalidAmount),
		errors.Is(err, booking.ErrInvalidHoldToken):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	case errors.Is(err, booking.ErrScreeningNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "screening not found"})
	case errors.Is(err, booking.ErrUserNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "user not found"})
	case errors.Is(err, booking.ErrSeatNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "seat not found"})
	case errors.Is(err, booking.ErrNoReservations):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "no reservations"})
	case errors.Is(err, booking.ErrSeatsUnavailable):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "seats unavailable"})
	case errors.Is(err, booking.ErrSeatNotLocked):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "seat not locked by this hold"})
	// settlement service
	case errors.Is(err, settlement.ErrPaymentNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "payment not found"})
	case errors.Is(err, settlement.ErrReservationNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "reservation not found"})
	case errors.Is(err, settlement.ErrAlreadyCancelled):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "payment already cancelled"})
	case errors.Is(err, settlement.ErrRefundFailed):
		c.JSON(http.StatusBadGateway, ErrorResponse{Error: "gateway refund failed"})
	default:
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
	}
}
