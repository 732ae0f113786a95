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

// RouteHandler covers the public route catalog and the admin CRUD
// endpoints behind it.
type RouteHandler struct {
	Routes    *repository.RouteRepo
	Schedules *repository.ScheduleRepo
}

func NewRouteHandler(r *repository.RouteRepo, s *repository.ScheduleRepo) *RouteHandler {
	return &RouteHandler{Routes: r, Schedules: s}
}

type routeReq struct {
	Name           string  `json:"name"`
	Origin         string  `json:"origin"`
	Destination    string  `json:"destination"`
	DistanceKM     float64 `json:"distance_km"`
	DurationMin    uint32  `json:"duration_min"`
	BasePriceCents uint32  `json:"base_price_cents"`
}

type routeUpdateReq struct {
	Name           *string  `json:"name"`
	Origin         *string  `json:"origin"`
	Destination    *string  `json:"destination"`
	DistanceKM     *float64 `json:"distance_km"`
	DurationMin    *uint32  `json:"duration_min"`
	BasePriceCents *uint32  `json:"base_price_cents"`
	IsActive       *bool    `json:"is_active"`
}

type routePart struct {
	ID             uint64  `json:"id"`
	Name           string  `json:"name"`
	Origin         string  `json:"origin"`
	Destination    string  `json:"destination"`
	DistanceKM     float64 `json:"distance_km"`
	DurationMin    uint32  `json:"duration_min"`
	BasePriceCents uint32  `json:"base_price_cents"`
	IsActive       bool    `json:"is_active"`
}

func toRoutePart(r model.Route) routePart {
	return routePart{
		ID: r.ID, Name: r.Name, Origin: r.Origin, Destination: r.Destination,
		DistanceKM: r.DistanceKM, DurationMin: r.DurationMin,
		BasePriceCents: r.BasePriceCents, IsActive: r.IsActive,
	}
}

// List returns all active routes.
func (h *RouteHandler) List(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	routes, err := h.Routes.ListActive(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	out := make([]routePart, 0, len(routes))
	for _, r := range routes {
		out = append(out, toRoutePart(r))
	}
	return c.JSON(http.StatusOK, echo.Map{"routes": out})
}

// Get returns one route together with its upcoming schedules.
func (h *RouteHandler) Get(c echo.Context) error {
	id := pathID(c, "id")
	if id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid route id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	r, err := h.Routes.GetByID(ctx, id)
	if err != nil {
		if err == repository.ErrNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "route not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	upcoming, err := h.Schedules.UpcomingByRoute(ctx, id, 20)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	scheds := make([]schedulePart, 0, len(upcoming))
	for _, s := range upcoming {
		scheds = append(scheds, toSchedulePart(s))
	}
	return c.JSON(http.StatusOK, echo.Map{"route": toRoutePart(r), "schedules": scheds})
}

// Create adds a route to the catalog (admin).
func (h *RouteHandler) Create(c echo.Context) error {
	var req routeReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Origin = strings.TrimSpace(req.Origin)
	req.Destination = strings.TrimSpace(req.Destination)
	if req.Name == "" || req.Origin == "" || req.Destination == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name/origin/destination required"})
	}
	if strings.EqualFold(req.Origin, req.Destination) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "origin and destination must differ"})
	}
	if req.DurationMin == 0 || req.BasePriceCents == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "duration_min/base_price_cents must be positive"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	rt := model.Route{
		Name: req.Name, Origin: req.Origin, Destination: req.Destination,
		DistanceKM: req.DistanceKM, DurationMin: req.DurationMin,
		BasePriceCents: req.BasePriceCents,
	}
	if err := h.Routes.Create(ctx, &rt); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create route failed"})
	}
	return c.JSON(http.StatusCreated, toRoutePart(rt))
}

// Update applies partial changes to a route (admin).
func (h *RouteHandler) Update(c echo.Context) error {
	id := pathID(c, "id")
	if id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid route id"})
	}
	var req routeUpdateReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.Name == nil && req.Origin == nil && req.Destination == nil &&
		req.DistanceKM == nil && req.DurationMin == nil && req.BasePriceCents == nil && req.IsActive == nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "nothing to update"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	rt, err := h.Routes.Update(ctx, id, req.Name, req.Origin, req.Destination, req.DistanceKM, req.DurationMin, req.BasePriceCents, req.IsActive)
	if err != nil {
		if err == repository.ErrNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "route not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update failed"})
	}
	return c.JSON(http.StatusOK, toRoutePart(rt))
}

// Deactivate soft-deletes a route (admin).  Existing schedules and
// bookings keep their references.
func (h *RouteHandler) Deactivate(c echo.Context) error {
	id := pathID(c, "id")
	if id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid route id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Routes.Deactivate(ctx, id); err != nil {
		if err == repository.ErrNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "route not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "deactivate failed"})
	}
	return c.NoContent(http.StatusNoContent)
}
