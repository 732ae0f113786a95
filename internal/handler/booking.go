package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/vfsbus/bus-booking/internal/model"
	"github.com/vfsbus/bus-booking/internal/repository"
)

// BookingHandler owns the reservation endpoints.  All seat accounting
// happens inside BookingRepo transactions; the handler validates input
// and maps repository errors onto HTTP responses.
type BookingHandler struct {
	Bookings *repository.BookingRepo
}

func NewBookingHandler(b *repository.BookingRepo) *BookingHandler {
	return &BookingHandler{Bookings: b}
}

type createBookingReq struct {
	ScheduleID  uint64   `json:"schedule_id"`
	SeatNumbers []string `json:"seat_numbers"`
}

// normalizeSeats trims and de-duplicates the requested seat numbers.
// Seat identifiers are free-form, case-sensitive labels; capacity is
// enforced by the reservation transaction, not here.  Returns an error
// message for invalid input.
func normalizeSeats(in []string) ([]string, string) {
	if len(in) == 0 {
		return nil, "seat_numbers required"
	}
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" || len(s) > 8 {
			return nil, "seat numbers must be 1-8 characters"
		}
		if seen[s] {
			return nil, "duplicate seat number: " + s
		}
		seen[s] = true
		out = append(out, s)
	}
	return out, ""
}

// Create reserves seats on a schedule.  The booking starts PENDING and
// is confirmed by payment; an unpaid PENDING booking keeps its seats
// until it is cancelled.
func (h *BookingHandler) Create(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req createBookingReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.ScheduleID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "schedule_id required"})
	}
	seats, msg := normalizeSeats(req.SeatNumbers)
	if msg != "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	b, err := h.Bookings.Reserve(ctx, uid, req.ScheduleID, seats)
	if err != nil {
		var conflict *repository.SeatConflictError
		switch {
		case errors.As(err, &conflict):
			return c.JSON(http.StatusConflict, echo.Map{
				"error":             "seats already taken",
				"conflicting_seats": conflict.Seats,
			})
		case err == repository.ErrNotFound:
			return c.JSON(http.StatusNotFound, echo.Map{"error": "schedule not found"})
		case err == repository.ErrScheduleNotBookable:
			return c.JSON(http.StatusConflict, echo.Map{"error": "schedule is not open for booking"})
		case err == repository.ErrInsufficientSeats:
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "not enough seats available"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "booking failed"})
	}

	detail, err := h.Bookings.GetDetail(ctx, b.ID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load booking failed"})
	}
	return c.JSON(http.StatusCreated, detail)
}

// Get returns one booking with schedule, seat and payment detail.
// Customers may only read their own bookings; admins may read any.
func (h *BookingHandler) Get(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id := pathID(c, "id")
	if id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	detail, err := h.Bookings.GetDetail(ctx, id)
	if err != nil {
		if err == repository.ErrNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "booking not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if detail.UserID != uid && !isAdmin(c) {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}
	return c.JSON(http.StatusOK, detail)
}

// Cancel releases a booking's seats and refunds a settled payment.
// Cancelling an already-cancelled booking is a no-op success so retried
// requests do not error.
func (h *BookingHandler) Cancel(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id := pathID(c, "id")
	if id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	res, err := h.Bookings.Cancel(ctx, id, uid, isAdmin(c))
	if err != nil {
		switch err {
		case repository.ErrNotFound:
			return c.JSON(http.StatusNotFound, echo.Map{"error": "booking not found"})
		case repository.ErrForbidden:
			return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
		case repository.ErrInvalidState:
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "completed bookings cannot be cancelled"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "cancel failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"booking_id":       res.Booking.ID,
		"status":           model.BookingStatusCancelled,
		"seats_released":   res.SeatsReleased,
		"payment_refunded": res.PaymentRefunded,
	})
}

// ListAll returns bookings across all users, optionally filtered by
// status and schedule (admin).
func (h *BookingHandler) ListAll(c echo.Context) error {
	status := strings.ToUpper(strings.TrimSpace(c.QueryParam("status")))
	switch status {
	case "", model.BookingStatusPending, model.BookingStatusConfirmed,
		model.BookingStatusCancelled, model.BookingStatusCompleted:
	default:
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid status"})
	}
	var scheduleID uint64
	if v := c.QueryParam("schedule_id"); v != "" {
		n, err := parseUintParam(v)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid schedule_id"})
		}
		scheduleID = n
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	list, err := h.Bookings.ListAll(ctx, status, scheduleID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"bookings": list})
}
