package model

import "time"

// Schedule represents one bookable departure of a bus on a route.
// It owns the seat inventory for that departure: TotalSeats is fixed
// at creation and AvailableSeats is decremented and restored only by
// the booking reserve/release transactions.  The invariant
// 0 <= AvailableSeats <= TotalSeats must hold at all times.
//
// Fields:
//  ID             – primary key identifier.
//  RouteID        – route being served.
//  BusNumber      – vehicle identifier shown on tickets.
//  DepartsAt      – departure time (UTC).
//  ArrivesAt      – arrival time (UTC, after DepartsAt).
//  TotalSeats     – total seat capacity (> 0).
//  AvailableSeats – seats not claimed by PENDING/CONFIRMED bookings.
//  PriceCents     – per-seat price in cents for this departure.
//  Status         – SCHEDULED, CANCELLED or COMPLETED.
//  CreatedAt      – creation timestamp.
//  UpdatedAt      – last update timestamp.
type Schedule struct {
	ID             uint64    // schedules.id
	RouteID        uint64    // schedules.route_id
	BusNumber      string    // schedules.bus_number
	DepartsAt      time.Time // schedules.departs_at
	ArrivesAt      time.Time // schedules.arrives_at
	TotalSeats     uint32    // schedules.total_seats
	AvailableSeats uint32    // schedules.available_seats
	PriceCents     uint32    // schedules.price_cents
	Status         string    // schedules.status
	CreatedAt      time.Time // schedules.created_at
	UpdatedAt      time.Time // schedules.updated_at
}

// Schedule lifecycle states.  CANCELLED terminates future
// bookability but leaves already-confirmed bookings untouched.
const (
	ScheduleStatusScheduled = "SCHEDULED"
	ScheduleStatusCancelled = "CANCELLED"
	ScheduleStatusCompleted = "COMPLETED"
)
