package model

import "time"

// Booking records a user's claim on one or more seats of a schedule.
// The seat numbers booked under it live in the booking_seats table.
// Bookings are never deleted; cancellation is a status change so the
// audit trail and the linked payment survive.
//
// Fields:
//  ID               – primary key identifier.
//  UserID           – user who made the booking.
//  ScheduleID       – schedule being booked.
//  Status           – PENDING, CONFIRMED, CANCELLED or COMPLETED.
//  TotalAmountCents – price_cents × seat count, captured at reserve time.
//  CreatedAt        – creation timestamp.
//  UpdatedAt        – last update timestamp.
type Booking struct {
	ID               uint64    // bookings.id
	UserID           uint64    // bookings.user_id
	ScheduleID       uint64    // bookings.schedule_id
	Status           string    // bookings.status
	TotalAmountCents uint32    // bookings.total_amount_cents
	CreatedAt        time.Time // bookings.created_at
	UpdatedAt        time.Time // bookings.updated_at
}

// BookingSeat links a booking to a single seat number on a schedule.
// Seat numbers are free-form labels (e.g. "12A"); the system does not
// validate them against a physical seat map, only against other
// PENDING/CONFIRMED bookings of the same schedule.
//
// Fields:
//  ID         – primary key identifier.
//  BookingID  – booking that claims the seat.
//  ScheduleID – schedule the seat belongs to (denormalized for lookups).
//  SeatNumber – free-form seat label, unique within the booking.
//  CreatedAt  – creation timestamp.
type BookingSeat struct {
	ID         uint64    // booking_seats.id
	BookingID  uint64    // booking_seats.booking_id
	ScheduleID uint64    // booking_seats.schedule_id
	SeatNumber string    // booking_seats.seat_number
	CreatedAt  time.Time // booking_seats.created_at
}

// Booking lifecycle states.  COMPLETED is set by an external
// schedule-completion process, never by the API itself.
const (
	BookingStatusPending   = "PENDING"
	BookingStatusConfirmed = "CONFIRMED"
	BookingStatusCancelled = "CANCELLED"
	BookingStatusCompleted = "COMPLETED"
)
