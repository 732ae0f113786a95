package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/vfsbus/bus-booking/internal/model"
)

// BookingRepo provides operations on bookings and their seats.  The
// reserve and cancel flows mutate the owning schedule's seat counter
// and therefore always run inside a single transaction: the counter
// update and the booking row commit together or not at all.
type BookingRepo struct {
	db *sql.DB
}

// NewBookingRepo returns a new BookingRepo bound to the given database.
func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

// DB exposes the underlying sql.DB.  It allows callers to begin
// transactions spanning multiple repositories.
func (r *BookingRepo) DB() *sql.DB { return r.db }

// Reserve atomically claims the requested seat numbers on a schedule
// and creates a PENDING booking for them.  Within one transaction it
// locks the schedule row, loads the seat numbers already held by
// PENDING or CONFIRMED bookings, and fails with *SeatConflictError or
// ErrInsufficientSeats before touching anything.  On success the
// schedule's available_seats is decremented by the seat count and the
// booking total is computed from the schedule's current price.
//
// The operation is safe to retry as a whole: every attempt
// re-validates from scratch.
func (r *BookingRepo) Reserve(ctx context.Context, userID, scheduleID uint64, seatNumbers []string) (*model.Booking, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	// Lock the schedule row for the duration of the transaction.  This
	// serializes concurrent reservations on the same schedule.
	const schedQ = `SELECT status, available_seats, price_cents FROM schedules WHERE id = ? FOR UPDATE`
	var status string
	var available, priceCents uint32
	if err := tx.QueryRowContext(ctx, schedQ, scheduleID).Scan(&status, &available, &priceCents); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if status != model.ScheduleStatusScheduled {
		return nil, ErrScheduleNotBookable
	}

	// Union of seat numbers held by live bookings on this schedule.
	const heldQ = `SELECT bs.seat_number
                   FROM booking_seats bs
                   JOIN bookings b ON b.id = bs.booking_id
                   WHERE bs.schedule_id = ? AND b.status IN ('PENDING','CONFIRMED')`
	rows, err := tx.QueryContext(ctx, heldQ, scheduleID)
	if err != nil {
		return nil, err
	}
	held := make(map[string]struct{})
	for rows.Next() {
		var sn string
		if err := rows.Scan(&sn); err != nil {
			rows.Close()
			return nil, err
		}
		held[sn] = struct{}{}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	conflicts := make([]string, 0)
	for _, sn := range seatNumbers {
		if _, taken := held[sn]; taken {
			conflicts = append(conflicts, sn)
		}
	}
	if len(conflicts) > 0 {
		return nil, &SeatConflictError{Seats: conflicts}
	}
	if uint32(len(seatNumbers)) > available {
		return nil, ErrInsufficientSeats
	}

	total := priceCents * uint32(len(seatNumbers))
	const insQ = `INSERT INTO bookings (user_id, schedule_id, status, total_amount_cents) VALUES (?, ?, 'PENDING', ?)`
	res, err := tx.ExecContext(ctx, insQ, userID, scheduleID, total)
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	bookingID := uint64(id)

	// Bulk-insert the seat rows in a single statement.
	seatQ := `INSERT INTO booking_seats (booking_id, schedule_id, seat_number) VALUES `
	args := make([]interface{}, 0, len(seatNumbers)*3)
	for i, sn := range seatNumbers {
		if i > 0 {
			seatQ += ","
		}
		seatQ += "(?, ?, ?)"
		args = append(args, bookingID, scheduleID, sn)
	}
	if _, err := tx.ExecContext(ctx, seatQ, args...); err != nil {
		return nil, err
	}

	const decQ = `UPDATE schedules SET available_seats = available_seats - ? WHERE id = ?`
	if _, err := tx.ExecContext(ctx, decQ, len(seatNumbers), scheduleID); err != nil {
		return nil, err
	}

	// Query back the full row to populate timestamps and defaults.
	const sel = `SELECT id, user_id, schedule_id, status, total_amount_cents, created_at, updated_at FROM bookings WHERE id = ?`
	var b model.Booking
	if err := tx.QueryRowContext(ctx, sel, bookingID).Scan(
		&b.ID, &b.UserID, &b.ScheduleID, &b.Status, &b.TotalAmountCents, &b.CreatedAt, &b.UpdatedAt,
	); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true
	return &b, nil
}

// CancelResult reports what a cancel operation changed.
type CancelResult struct {
	Booking       model.Booking
	SeatsReleased int
	// PaymentRefunded is true when a COMPLETED payment was marked
	// REFUNDED as part of the cancellation.
	PaymentRefunded bool
}

// Cancel transitions a booking to CANCELLED, restores the schedule's
// available seats by the booking's seat count, and marks a COMPLETED
// payment REFUNDED, all in one transaction.  Ownership is verified
// inside the transaction: callers that are not the booking's owner and
// not administrators receive ErrForbidden.
//
// Cancelling an already-CANCELLED booking is a no-op success so
// duplicate cancel requests never release capacity twice.  Cancelling
// a COMPLETED booking fails with ErrInvalidState.
func (r *BookingRepo) Cancel(ctx context.Context, bookingID, callerID uint64, isAdmin bool) (*CancelResult, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	const q = `SELECT id, user_id, schedule_id, status, total_amount_cents, created_at, updated_at
               FROM bookings WHERE id = ? FOR UPDATE`
	var b model.Booking
	if err := tx.QueryRowContext(ctx, q, bookingID).Scan(
		&b.ID, &b.UserID, &b.ScheduleID, &b.Status, &b.TotalAmountCents, &b.CreatedAt, &b.UpdatedAt,
	); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if !isAdmin && b.UserID != callerID {
		return nil, ErrForbidden
	}

	switch b.Status {
	case model.BookingStatusCancelled:
		// Idempotent: the seats were already released on the first cancel.
		if err := tx.Commit(); err != nil {
			return nil, err
		}
		committed = true
		return &CancelResult{Booking: b}, nil
	case model.BookingStatusCompleted:
		return nil, ErrInvalidState
	}

	const countQ = `SELECT COUNT(*) FROM booking_seats WHERE booking_id = ?`
	var seatCount int
	if err := tx.QueryRowContext(ctx, countQ, bookingID).Scan(&seatCount); err != nil {
		return nil, err
	}

	const upd = `UPDATE bookings SET status = 'CANCELLED' WHERE id = ?`
	if _, err := tx.ExecContext(ctx, upd, bookingID); err != nil {
		return nil, err
	}
	const release = `UPDATE schedules SET available_seats = available_seats + ? WHERE id = ?`
	if _, err := tx.ExecContext(ctx, release, seatCount, b.ScheduleID); err != nil {
		return nil, err
	}

	// A settled payment is recorded as refunded; executing the refund
	// against the processor is out of scope for this service.
	const refund = `UPDATE payments SET status = 'REFUNDED' WHERE booking_id = ? AND status = 'COMPLETED'`
	refRes, err := tx.ExecContext(ctx, refund, bookingID)
	if err != nil {
		return nil, err
	}
	refunded, err := refRes.RowsAffected()
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true
	b.Status = model.BookingStatusCancelled
	return &CancelResult{Booking: b, SeatsReleased: seatCount, PaymentRefunded: refunded > 0}, nil
}

// BookingDetail aggregates a booking with its schedule, route, seat
// numbers and payment status for display.  It is returned by the
// read paths used by customers and administrators.
type BookingDetail struct {
	ID               uint64   `json:"id"`
	UserID           uint64   `json:"user_id"`
	ScheduleID       uint64   `json:"schedule_id"`
	Status           string   `json:"status"`
	TotalAmountCents uint32   `json:"total_amount_cents"`
	SeatNumbers      []string `json:"seat_numbers"`
	CreatedAt        string   `json:"created_at"`
	RouteName        string   `json:"route_name"`
	Origin           string   `json:"origin"`
	Destination      string   `json:"destination"`
	BusNumber        string   `json:"bus_number"`
	DepartsAt        string   `json:"departs_at"`
	ArrivesAt        string   `json:"arrives_at"`
	PaymentStatus    *string  `json:"payment_status,omitempty"`
}

const bookingDetailQ = `SELECT b.id, b.user_id, b.schedule_id, b.status, b.total_amount_cents, b.created_at,
                               rt.name, rt.origin, rt.destination,
                               s.bus_number, s.departs_at, s.arrives_at,
                               p.status
                        FROM bookings b
                        JOIN schedules s ON s.id = b.schedule_id
                        JOIN routes rt ON rt.id = s.route_id
                        LEFT JOIN payments p ON p.booking_id = b.id`

func scanBookingDetail(scan func(dest ...interface{}) error) (BookingDetail, error) {
	var d BookingDetail
	var createdAt, departsAt, arrivesAt time.Time
	var payStatus sql.NullString
	err := scan(
		&d.ID, &d.UserID, &d.ScheduleID, &d.Status, &d.TotalAmountCents, &createdAt,
		&d.RouteName, &d.Origin, &d.Destination,
		&d.BusNumber, &departsAt, &arrivesAt,
		&payStatus,
	)
	if err != nil {
		return d, err
	}
	d.CreatedAt = createdAt.UTC().Format(time.RFC3339)
	d.DepartsAt = departsAt.UTC().Format(time.RFC3339)
	d.ArrivesAt = arrivesAt.UTC().Format(time.RFC3339)
	if payStatus.Valid {
		ps := payStatus.String
		d.PaymentStatus = &ps
	}
	d.SeatNumbers = []string{}
	return d, nil
}

// GetDetail returns a single booking with schedule, route, payment and
// seat information.  It returns ErrNotFound when the booking does not
// exist.  Ownership is not checked here; callers decide who may see it.
func (r *BookingRepo) GetDetail(ctx context.Context, bookingID uint64) (*BookingDetail, error) {
	q := bookingDetailQ + ` WHERE b.id = ?`
	d, err := scanBookingDetail(r.db.QueryRowContext(ctx, q, bookingID).Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	seats, err := r.seatNumbers(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	d.SeatNumbers = seats
	return &d, nil
}

func (r *BookingRepo) seatNumbers(ctx context.Context, bookingID uint64) ([]string, error) {
	const q = `SELECT seat_number FROM booking_seats WHERE booking_id = ? ORDER BY seat_number`
	rows, err := r.db.QueryContext(ctx, q, bookingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []string{}
	for rows.Next() {
		var sn string
		if err := rows.Scan(&sn); err != nil {
			return nil, err
		}
		out = append(out, sn)
	}
	return out, rows.Err()
}

// ListByUser returns all bookings of a user, newest first.
func (r *BookingRepo) ListByUser(ctx context.Context, userID uint64) ([]BookingDetail, error) {
	q := bookingDetailQ + ` WHERE b.user_id = ? ORDER BY b.created_at DESC`
	return r.listDetails(ctx, q, userID)
}

// ListAll returns bookings across all users for administrators.
// Optional status and schedule filters narrow the result.
func (r *BookingRepo) ListAll(ctx context.Context, status string, scheduleID uint64) ([]BookingDetail, error) {
	q := bookingDetailQ
	conds := make([]string, 0, 2)
	args := make([]interface{}, 0, 2)
	if status != "" {
		conds = append(conds, "b.status = ?")
		args = append(args, status)
	}
	if scheduleID != 0 {
		conds = append(conds, "b.schedule_id = ?")
		args = append(args, scheduleID)
	}
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " ORDER BY b.created_at DESC"
	return r.listDetails(ctx, q, args...)
}

func (r *BookingRepo) listDetails(ctx context.Context, q string, args ...interface{}) ([]BookingDetail, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	details := make([]BookingDetail, 0)
	index := make(map[uint64]int)
	for rows.Next() {
		d, err := scanBookingDetail(rows.Scan)
		if err != nil {
			return nil, err
		}
		index[d.ID] = len(details)
		details = append(details, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(details) == 0 {
		return details, nil
	}
	// Populate seats for all bookings in a single query.
	ids := make([]interface{}, 0, len(details))
	placeholders := make([]string, 0, len(details))
	for _, d := range details {
		ids = append(ids, d.ID)
		placeholders = append(placeholders, "?")
	}
	seatQ := `SELECT booking_id, seat_number FROM booking_seats
              WHERE booking_id IN (` + strings.Join(placeholders, ",") + `)
              ORDER BY booking_id, seat_number`
	srows, err := r.db.QueryContext(ctx, seatQ, ids...)
	if err != nil {
		return nil, err
	}
	defer srows.Close()
	for srows.Next() {
		var bid uint64
		var sn string
		if err := srows.Scan(&bid, &sn); err != nil {
			return nil, err
		}
		if idx, ok := index[bid]; ok {
			details[idx].SeatNumbers = append(details[idx].SeatNumbers, sn)
		}
	}
	return details, srows.Err()
}

// GetByID returns the bare booking row.  It is used by the payment
// flow, which needs the owner and status without the display joins.
func (r *BookingRepo) GetByID(ctx context.Context, bookingID uint64) (model.Booking, error) {
	const q = `SELECT id, user_id, schedule_id, status, total_amount_cents, created_at, updated_at
               FROM bookings WHERE id = ?`
	var b model.Booking
	err := r.db.QueryRowContext(ctx, q, bookingID).Scan(
		&b.ID, &b.UserID, &b.ScheduleID, &b.Status, &b.TotalAmountCents, &b.CreatedAt, &b.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return b, ErrNotFound
	}
	return b, err
}
