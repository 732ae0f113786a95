package model

import "time"

// Route describes a fixed origin/destination pair served by the
// operator.  Routes carry a base price that schedules may override
// per departure.  Inactive routes are hidden from public listings
// but keep their historical schedules and bookings.
//
// Fields:
//  ID             – primary key identifier.
//  Name           – human readable route name (e.g. "Express 12").
//  Origin         – departure city or terminal.
//  Destination    – arrival city or terminal.
//  DistanceKM     – route length in kilometres.
//  DurationMin    – typical travel time in minutes.
//  BasePriceCents – default ticket price in cents.
//  IsActive       – whether the route is currently offered.
//  CreatedAt      – creation timestamp.
//  UpdatedAt      – last update timestamp.
type Route struct {
	ID             uint64    // routes.id
	Name           string    // routes.name
	Origin         string    // routes.origin
	Destination    string    // routes.destination
	DistanceKM     float64   // routes.distance_km
	DurationMin    uint32    // routes.duration_min
	BasePriceCents uint32    // routes.base_price_cents
	IsActive       bool      // routes.is_active
	CreatedAt      time.Time // routes.created_at
	UpdatedAt      time.Time // routes.updated_at
}
