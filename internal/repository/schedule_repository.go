package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/vfsbus/bus-booking/internal/model"
)

// ScheduleRepo manages persistence for schedules.  Schedules own the
// seat inventory; the available_seats column is mutated only by the
// booking reserve/cancel transactions in BookingRepo, never here.
type ScheduleRepo struct {
	db *sql.DB
}

// NewScheduleRepo constructs a ScheduleRepo with the given DB handle.
func NewScheduleRepo(db *sql.DB) *ScheduleRepo { return &ScheduleRepo{db: db} }

// DB exposes the underlying sql.DB for transaction control.
func (r *ScheduleRepo) DB() *sql.DB { return r.db }

const scheduleCols = "id, route_id, bus_number, departs_at, arrives_at, total_seats, available_seats, price_cents, status, created_at, updated_at"

func scanSchedule(scan func(dest ...interface{}) error) (model.Schedule, error) {
	var s model.Schedule
	err := scan(&s.ID, &s.RouteID, &s.BusNumber, &s.DepartsAt, &s.ArrivesAt,
		&s.TotalSeats, &s.AvailableSeats, &s.PriceCents, &s.Status, &s.CreatedAt, &s.UpdatedAt)
	return s, err
}

// Create inserts a new schedule with available_seats initialised to
// total_seats and status SCHEDULED.  The route must exist; a missing
// route surfaces as ErrNotFound via the foreign key pre-check.
func (r *ScheduleRepo) Create(ctx context.Context, s *model.Schedule) error {
	var exists int
	if err := r.db.QueryRowContext(ctx, "SELECT 1 FROM routes WHERE id = ?", s.RouteID).Scan(&exists); err != nil {
		if err == sql.ErrNoRows {
			return ErrNotFound
		}
		return err
	}
	const q = `INSERT INTO schedules (route_id, bus_number, departs_at, arrives_at, total_seats, available_seats, price_cents)
               VALUES (?, ?, ?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q, s.RouteID, s.BusNumber, s.DepartsAt.UTC(), s.ArrivesAt.UTC(),
		s.TotalSeats, s.TotalSeats, s.PriceCents)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	s.ID = uint64(id)
	got, err := r.GetByID(ctx, s.ID)
	if err != nil {
		return err
	}
	*s = got
	return nil
}

// GetByID retrieves a schedule by its ID.  It returns ErrNotFound if
// there is no matching row.
func (r *ScheduleRepo) GetByID(ctx context.Context, id uint64) (model.Schedule, error) {
	s, err := scanSchedule(r.db.QueryRowContext(ctx,
		"SELECT "+scheduleCols+" FROM schedules WHERE id = ?", id).Scan)
	if err == sql.ErrNoRows {
		return s, ErrNotFound
	}
	return s, err
}

// BookedSeats returns the seat numbers currently held by PENDING or
// CONFIRMED bookings on a schedule.  The public schedule view exposes
// this list so clients can render seat selection.
func (r *ScheduleRepo) BookedSeats(ctx context.Context, scheduleID uint64) ([]string, error) {
	const q = `SELECT bs.seat_number
               FROM booking_seats bs
               JOIN bookings b ON b.id = bs.booking_id
               WHERE bs.schedule_id = ? AND b.status IN ('PENDING','CONFIRMED')
               ORDER BY bs.seat_number`
	rows, err := r.db.QueryContext(ctx, q, scheduleID)
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

// List returns schedules ordered by departure, optionally filtered by
// route, calendar day (UTC) and status.
func (r *ScheduleRepo) List(ctx context.Context, routeID uint64, day *time.Time, status string) ([]model.Schedule, error) {
	q := "SELECT " + scheduleCols + " FROM schedules"
	conds := make([]string, 0, 3)
	args := make([]interface{}, 0, 4)
	if routeID != 0 {
		conds = append(conds, "route_id = ?")
		args = append(args, routeID)
	}
	if day != nil {
		start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
		conds = append(conds, "departs_at >= ? AND departs_at < ?")
		args = append(args, start, start.Add(24*time.Hour))
	}
	if status != "" {
		conds = append(conds, "status = ?")
		args = append(args, status)
	}
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " ORDER BY departs_at ASC"
	return r.list(ctx, q, args...)
}

// Search finds bookable departures: SCHEDULED schedules with seats
// left on active routes matching origin/destination substrings on the
// given day.  This backs the public trip search.
func (r *ScheduleRepo) Search(ctx context.Context, origin, destination string, day time.Time) ([]model.Schedule, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	const q = `SELECT s.id, s.route_id, s.bus_number, s.departs_at, s.arrives_at,
                      s.total_seats, s.available_seats, s.price_cents, s.status, s.created_at, s.updated_at
               FROM schedules s
               JOIN routes rt ON rt.id = s.route_id
               WHERE rt.is_active = 1
                 AND LOWER(rt.origin) LIKE ?
                 AND LOWER(rt.destination) LIKE ?
                 AND s.departs_at >= ? AND s.departs_at < ?
                 AND s.status = 'SCHEDULED'
                 AND s.available_seats > 0
               ORDER BY s.departs_at ASC`
	return r.list(ctx, q,
		"%"+strings.ToLower(origin)+"%", "%"+strings.ToLower(destination)+"%",
		start, start.Add(24*time.Hour))
}

// UpcomingByRoute returns the next departures of a route, used by the
// public route detail view.
func (r *ScheduleRepo) UpcomingByRoute(ctx context.Context, routeID uint64, limit int) ([]model.Schedule, error) {
	const q = `SELECT ` + scheduleCols + ` FROM schedules
               WHERE route_id = ? AND departs_at >= UTC_TIMESTAMP() AND status = 'SCHEDULED'
               ORDER BY departs_at ASC LIMIT ?`
	return r.list(ctx, q, routeID, limit)
}

func (r *ScheduleRepo) list(ctx context.Context, q string, args ...interface{}) ([]model.Schedule, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Schedule, 0)
	for rows.Next() {
		s, err := scanSchedule(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Update applies the non-nil fields to a schedule.  Seat capacity is
// deliberately not updatable here: total_seats is fixed at creation
// and available_seats belongs to the booking transactions.
func (r *ScheduleRepo) Update(ctx context.Context, id uint64, busNumber *string, departsAt, arrivesAt *time.Time, priceCents *uint32, status *string) (model.Schedule, error) {
	sets := make([]string, 0, 5)
	args := make([]interface{}, 0, 6)
	if busNumber != nil {
		sets = append(sets, "bus_number=?")
		args = append(args, *busNumber)
	}
	if departsAt != nil {
		sets = append(sets, "departs_at=?")
		args = append(args, departsAt.UTC())
	}
	if arrivesAt != nil {
		sets = append(sets, "arrives_at=?")
		args = append(args, arrivesAt.UTC())
	}
	if priceCents != nil {
		sets = append(sets, "price_cents=?")
		args = append(args, *priceCents)
	}
	if status != nil {
		sets = append(sets, "status=?")
		args = append(args, *status)
	}
	if len(sets) > 0 {
		args = append(args, id)
		q := "UPDATE schedules SET " + strings.Join(sets, ", ") + " WHERE id=?"
		if _, err := r.db.ExecContext(ctx, q, args...); err != nil {
			return model.Schedule{}, err
		}
	}
	return r.GetByID(ctx, id)
}

// CancelSchedule marks a schedule CANCELLED, terminating future
// bookability.  Already-confirmed bookings are unaffected.
func (r *ScheduleRepo) CancelSchedule(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE schedules SET status = 'CANCELLED' WHERE id = ?", id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		var exists int
		if err := r.db.QueryRowContext(ctx, "SELECT 1 FROM schedules WHERE id = ?", id).Scan(&exists); err != nil {
			if err == sql.ErrNoRows {
				return ErrNotFound
			}
			return err
		}
	}
	return nil
}
