package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/vfsbus/bus-booking/internal/model"
	"github.com/vfsbus/bus-booking/internal/repository"
)

// ScheduleHandler covers public departure browsing/search plus the
// admin endpoints that manage departures.
type ScheduleHandler struct {
	Schedules *repository.ScheduleRepo
	Routes    *repository.RouteRepo
}

func NewScheduleHandler(s *repository.ScheduleRepo, r *repository.RouteRepo) *ScheduleHandler {
	return &ScheduleHandler{Schedules: s, Routes: r}
}

type scheduleReq struct {
	RouteID    uint64    `json:"route_id"`
	BusNumber  string    `json:"bus_number"`
	DepartsAt  time.Time `json:"departs_at"`
	ArrivesAt  time.Time `json:"arrives_at"`
	TotalSeats uint32    `json:"total_seats"`
	PriceCents uint32    `json:"price_cents"`
}

type scheduleUpdateReq struct {
	BusNumber  *string    `json:"bus_number"`
	DepartsAt  *time.Time `json:"departs_at"`
	ArrivesAt  *time.Time `json:"arrives_at"`
	PriceCents *uint32    `json:"price_cents"`
	Status     *string    `json:"status"`
}

type schedulePart struct {
	ID             uint64 `json:"id"`
	RouteID        uint64 `json:"route_id"`
	BusNumber      string `json:"bus_number"`
	DepartsAt      string `json:"departs_at"`
	ArrivesAt      string `json:"arrives_at"`
	TotalSeats     uint32 `json:"total_seats"`
	AvailableSeats uint32 `json:"available_seats"`
	PriceCents     uint32 `json:"price_cents"`
	Status         string `json:"status"`
}

func toSchedulePart(s model.Schedule) schedulePart {
	return schedulePart{
		ID: s.ID, RouteID: s.RouteID, BusNumber: s.BusNumber,
		DepartsAt: s.DepartsAt.UTC().Format(time.RFC3339),
		ArrivesAt: s.ArrivesAt.UTC().Format(time.RFC3339),
		TotalSeats: s.TotalSeats, AvailableSeats: s.AvailableSeats,
		PriceCents: s.PriceCents, Status: s.Status,
	}
}

// parseDay accepts a YYYY-MM-DD query value.
func parseDay(s string) (time.Time, bool) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// List returns schedules filtered by optional route_id, date
// (YYYY-MM-DD, UTC day) and status query parameters.
func (h *ScheduleHandler) List(c echo.Context) error {
	var routeID uint64
	if v := c.QueryParam("route_id"); v != "" {
		n, err := parseUintParam(v)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid route_id"})
		}
		routeID = n
	}
	var day *time.Time
	if v := c.QueryParam("date"); v != "" {
		d, ok := parseDay(v)
		if !ok {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "date must be YYYY-MM-DD"})
		}
		day = &d
	}
	status := strings.ToUpper(strings.TrimSpace(c.QueryParam("status")))
	switch status {
	case "", model.ScheduleStatusScheduled, model.ScheduleStatusCancelled, model.ScheduleStatusCompleted:
	default:
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid status"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	scheds, err := h.Schedules.List(ctx, routeID, day, status)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	out := make([]schedulePart, 0, len(scheds))
	for _, s := range scheds {
		out = append(out, toSchedulePart(s))
	}
	return c.JSON(http.StatusOK, echo.Map{"schedules": out})
}

// Search finds bookable departures by origin, destination and travel
// date.  All three parameters are required.
func (h *ScheduleHandler) Search(c echo.Context) error {
	origin := strings.TrimSpace(c.QueryParam("origin"))
	destination := strings.TrimSpace(c.QueryParam("destination"))
	dateStr := strings.TrimSpace(c.QueryParam("date"))
	if origin == "" || destination == "" || dateStr == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "origin/destination/date required"})
	}
	day, ok := parseDay(dateStr)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "date must be YYYY-MM-DD"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	scheds, err := h.Schedules.Search(ctx, origin, destination, day)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	out := make([]schedulePart, 0, len(scheds))
	for _, s := range scheds {
		out = append(out, toSchedulePart(s))
	}
	return c.JSON(http.StatusOK, echo.Map{"schedules": out})
}

// Get returns one schedule plus the seat numbers already held, so
// clients can render seat selection.
func (h *ScheduleHandler) Get(c echo.Context) error {
	id := pathID(c, "id")
	if id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid schedule id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	s, err := h.Schedules.GetByID(ctx, id)
	if err != nil {
		if err == repository.ErrNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "schedule not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	booked, err := h.Schedules.BookedSeats(ctx, id)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	rt, err := h.Routes.GetByID(ctx, s.RouteID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"schedule":     toSchedulePart(s),
		"route":        toRoutePart(rt),
		"booked_seats": booked,
	})
}

// Create adds a departure on a route (admin).
func (h *ScheduleHandler) Create(c echo.Context) error {
	var req scheduleReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.BusNumber = strings.TrimSpace(req.BusNumber)
	if req.RouteID == 0 || req.BusNumber == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "route_id/bus_number required"})
	}
	if req.TotalSeats == 0 || req.PriceCents == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "total_seats/price_cents must be positive"})
	}
	if req.DepartsAt.IsZero() || req.ArrivesAt.IsZero() || !req.ArrivesAt.After(req.DepartsAt) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "arrives_at must be after departs_at"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	s := model.Schedule{
		RouteID: req.RouteID, BusNumber: req.BusNumber,
		DepartsAt: req.DepartsAt, ArrivesAt: req.ArrivesAt,
		TotalSeats: req.TotalSeats, PriceCents: req.PriceCents,
	}
	if err := h.Schedules.Create(ctx, &s); err != nil {
		if err == repository.ErrNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "route not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create schedule failed"})
	}
	return c.JSON(http.StatusCreated, toSchedulePart(s))
}

// Update applies partial changes to a departure (admin).  Seat capacity
// is fixed at creation; only timing, bus, price and status may change.
func (h *ScheduleHandler) Update(c echo.Context) error {
	id := pathID(c, "id")
	if id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid schedule id"})
	}
	var req scheduleUpdateReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.BusNumber == nil && req.DepartsAt == nil && req.ArrivesAt == nil && req.PriceCents == nil && req.Status == nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "nothing to update"})
	}
	if req.Status != nil {
		s := strings.ToUpper(strings.TrimSpace(*req.Status))
		switch s {
		case model.ScheduleStatusScheduled, model.ScheduleStatusCancelled, model.ScheduleStatusCompleted:
			req.Status = &s
		default:
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid status"})
		}
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	s, err := h.Schedules.Update(ctx, id, req.BusNumber, req.DepartsAt, req.ArrivesAt, req.PriceCents, req.Status)
	if err != nil {
		if err == repository.ErrNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "schedule not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update failed"})
	}
	return c.JSON(http.StatusOK, toSchedulePart(s))
}

// Cancel marks a departure CANCELLED (admin).  Bookings on it keep
// their state; refunds go through the booking cancellation flow.
func (h *ScheduleHandler) Cancel(c echo.Context) error {
	id := pathID(c, "id")
	if id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid schedule id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Schedules.CancelSchedule(ctx, id); err != nil {
		if err == repository.ErrNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "schedule not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "cancel failed"})
	}
	return c.NoContent(http.StatusNoContent)
}
