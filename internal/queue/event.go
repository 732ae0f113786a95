// Package queue defines message payloads exchanged over the message broker.
package queue

// BookingConfirmedEvent is published when a booking's payment settles
// and the booking flips to CONFIRMED.  It carries enough information
// for downstream consumers to log, notify, or feed analytics without
// querying the primary database.
type BookingConfirmedEvent struct {
	BookingID        uint64   `json:"booking_id"`
	UserID           uint64   `json:"user_id"`
	ScheduleID       uint64   `json:"schedule_id"`
	RouteName        string   `json:"route_name"`
	Origin           string   `json:"origin"`
	Destination      string   `json:"destination"`
	BusNumber        string   `json:"bus_number"`
	DepartsAt        string   `json:"departs_at"`
	ArrivesAt        string   `json:"arrives_at"`
	SeatNumbers      []string `json:"seats"`
	TotalAmountCents uint32   `json:"total_amount_cents"`
	ConfirmedAt      string   `json:"confirmed_at"`
}
