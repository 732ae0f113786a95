package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/vfsbus/bus-booking/internal/model"
)

// RouteRepo manages persistence for routes.
type RouteRepo struct {
	db *sql.DB
}

// NewRouteRepo constructs a RouteRepo with the given DB handle.
func NewRouteRepo(db *sql.DB) *RouteRepo { return &RouteRepo{db: db} }

const routeCols = "id, name, origin, destination, distance_km, duration_min, base_price_cents, is_active, created_at, updated_at"

func scanRoute(scan func(dest ...interface{}) error) (model.Route, error) {
	var rt model.Route
	err := scan(&rt.ID, &rt.Name, &rt.Origin, &rt.Destination, &rt.DistanceKM,
		&rt.DurationMin, &rt.BasePriceCents, &rt.IsActive, &rt.CreatedAt, &rt.UpdatedAt)
	return rt, err
}

// Create inserts a new route and populates the generated ID and
// DB-default fields on the given struct.
func (r *RouteRepo) Create(ctx context.Context, rt *model.Route) error {
	const q = `INSERT INTO routes (name, origin, destination, distance_km, duration_min, base_price_cents)
               VALUES (?, ?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q, rt.Name, rt.Origin, rt.Destination,
		rt.DistanceKM, rt.DurationMin, rt.BasePriceCents)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	rt.ID = uint64(id)
	const sel = `SELECT ` + routeCols + ` FROM routes WHERE id = ?`
	got, err := scanRoute(r.db.QueryRowContext(ctx, sel, rt.ID).Scan)
	if err != nil {
		return err
	}
	*rt = got
	return nil
}

// GetByID retrieves a route by its ID.  It returns ErrNotFound if
// there is no matching row.
func (r *RouteRepo) GetByID(ctx context.Context, id uint64) (model.Route, error) {
	rt, err := scanRoute(r.db.QueryRowContext(ctx,
		"SELECT "+routeCols+" FROM routes WHERE id = ?", id).Scan)
	if err == sql.ErrNoRows {
		return rt, ErrNotFound
	}
	return rt, err
}

// ListActive returns all active routes ordered by name.  Inactive
// routes are hidden from the public catalog but keep their data.
func (r *RouteRepo) ListActive(ctx context.Context) ([]model.Route, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+routeCols+" FROM routes WHERE is_active = 1 ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Route, 0)
	for rows.Next() {
		rt, err := scanRoute(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, rt)
	}
	return out, rows.Err()
}

// Update applies the non-nil fields to a route and returns the
// updated record.  ErrNotFound is returned when the route does not
// exist.
func (r *RouteRepo) Update(ctx context.Context, id uint64, name, origin, destination *string, distanceKM *float64, durationMin, basePriceCents *uint32, isActive *bool) (model.Route, error) {
	sets := make([]string, 0, 7)
	args := make([]interface{}, 0, 8)
	add := func(col string, v interface{}) {
		sets = append(sets, col+"=?")
		args = append(args, v)
	}
	if name != nil {
		add("name", *name)
	}
	if origin != nil {
		add("origin", *origin)
	}
	if destination != nil {
		add("destination", *destination)
	}
	if distanceKM != nil {
		add("distance_km", *distanceKM)
	}
	if durationMin != nil {
		add("duration_min", *durationMin)
	}
	if basePriceCents != nil {
		add("base_price_cents", *basePriceCents)
	}
	if isActive != nil {
		add("is_active", *isActive)
	}
	if len(sets) > 0 {
		args = append(args, id)
		q := "UPDATE routes SET " + strings.Join(sets, ", ") + " WHERE id=?"
		if _, err := r.db.ExecContext(ctx, q, args...); err != nil {
			return model.Route{}, err
		}
	}
	return r.GetByID(ctx, id)
}

// Deactivate soft-deletes a route.  Existing schedules and bookings
// are untouched; the route simply disappears from public listings.
func (r *RouteRepo) Deactivate(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, "UPDATE routes SET is_active = 0 WHERE id = ?", id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		// Distinguish missing row from already-inactive route.
		var exists int
		if err := r.db.QueryRowContext(ctx, "SELECT 1 FROM routes WHERE id = ?", id).Scan(&exists); err != nil {
			if err == sql.ErrNoRows {
				return ErrNotFound
			}
			return err
		}
	}
	return nil
}
