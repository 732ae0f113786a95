package model

import "time"

// Payment records a settlement attempt for exactly one booking.  The
// booking_id column carries a unique constraint so a booking can
// never accumulate more than one payment row; re-initiating checkout
// rotates ProviderRef on the existing row instead.  A payment moves
// to COMPLETED at most once, and only from PENDING.
//
// Fields:
//  ID          – primary key identifier.
//  BookingID   – booking being settled (unique).
//  AmountCents – amount in cents, mirrors the booking total at creation.
//  Currency    – ISO 4217 currency code (lowercase, e.g. "usd").
//  ProviderRef – payment-intent id issued by the external processor.
//  Status      – PENDING, COMPLETED, FAILED or REFUNDED.
//  PaidAt      – settlement timestamp (null until COMPLETED).
//  CreatedAt   – creation timestamp.
//  UpdatedAt   – last update timestamp.
type Payment struct {
	ID          uint64     // payments.id
	BookingID   uint64     // payments.booking_id
	AmountCents uint32     // payments.amount_cents
	Currency    string     // payments.currency
	ProviderRef string     // payments.provider_ref
	Status      string     // payments.status
	PaidAt      *time.Time // payments.paid_at (nullable)
	CreatedAt   time.Time  // payments.created_at
	UpdatedAt   time.Time  // payments.updated_at
}

// Payment lifecycle states.
const (
	PaymentStatusPending   = "PENDING"
	PaymentStatusCompleted = "COMPLETED"
	PaymentStatusFailed    = "FAILED"
	PaymentStatusRefunded  = "REFUNDED"
)
