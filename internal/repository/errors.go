// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// handlers to distinguish between different failure scenarios without
// leaking storage-engine-specific codes. For example, ErrForbidden
// indicates that the current user is not authorized to perform an
// operation on a resource owned by someone else, while
// ErrInsufficientSeats signals that a reservation asked for more
// seats than the schedule has left.
package repository

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned when a requested route, schedule, booking or
// payment does not exist. Handlers should translate this into an
// HTTP 404 response.
var ErrNotFound = errors.New("not found")

// ErrForbidden is returned when the caller attempts an operation
// on a resource they do not own. Handlers should translate this
// into an HTTP 403 response.
var ErrForbidden = errors.New("forbidden")

// ErrEmailExists is returned by UserRepo.Create when the email is
// already registered.
var ErrEmailExists = errors.New("email already exists")

// ErrScheduleNotBookable is returned when a reservation targets a
// schedule whose status is not SCHEDULED.
var ErrScheduleNotBookable = errors.New("schedule is not available for booking")

// ErrInsufficientSeats is returned when a reservation requests more
// seats than the schedule currently has available. The reservation
// leaves no trace; capacity is unchanged.
var ErrInsufficientSeats = errors.New("not enough available seats")

// ErrInvalidState is returned when a lifecycle transition is not
// allowed from the current status, e.g. cancelling a COMPLETED
// booking or confirming a payment whose booking is no longer PENDING.
var ErrInvalidState = errors.New("invalid state transition")

// SeatConflictError reports which requested seat numbers are already
// held by PENDING or CONFIRMED bookings on the same schedule. The
// handler surfaces the list so clients can re-offer seat selection
// without a full re-search.
type SeatConflictError struct {
	Seats []string
}

func (e *SeatConflictError) Error() string {
	return fmt.Sprintf("seats already booked: %s", strings.Join(e.Seats, ","))
}

// IsDuplicateEntry reports whether err is a MySQL duplicate-key
// violation (error 1062). Repositories use it to translate
// uniqueness failures into domain errors.
func IsDuplicateEntry(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "1062")
}
