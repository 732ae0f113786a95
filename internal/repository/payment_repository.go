package repository

import (
	"context"
	"database/sql"

	"github.com/vfsbus/bus-booking/internal/model"
)

// PaymentRepo provides operations on the payments table.  A booking
// has at most one payment row (unique key on booking_id); checkout
// re-initiation rotates the provider reference on the existing row.
// The COMPLETED transition is a compare-and-set keyed on PENDING so
// the direct-confirm path and the webhook path can race safely:
// whichever commits first wins and the other observes a no-op.
type PaymentRepo struct {
	db *sql.DB
}

// NewPaymentRepo returns a new PaymentRepo bound to the given database.
func NewPaymentRepo(db *sql.DB) *PaymentRepo { return &PaymentRepo{db: db} }

// DB exposes the underlying sql.DB for transaction control.
func (r *PaymentRepo) DB() *sql.DB { return r.db }

const paymentCols = "id, booking_id, amount_cents, currency, provider_ref, status, paid_at, created_at, updated_at"

func scanPayment(scan func(dest ...interface{}) error) (model.Payment, error) {
	var p model.Payment
	var paidAt sql.NullTime
	err := scan(&p.ID, &p.BookingID, &p.AmountCents, &p.Currency, &p.ProviderRef,
		&p.Status, &paidAt, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return p, err
	}
	if paidAt.Valid {
		t := paidAt.Time
		p.PaidAt = &t
	}
	return p, nil
}

// Upsert creates the payment row for a booking or, if one already
// exists, resets it to PENDING with a fresh provider reference and
// amount.  Callers must first verify the existing payment is not
// COMPLETED.  The persisted row is returned.
func (r *PaymentRepo) Upsert(ctx context.Context, bookingID uint64, amountCents uint32, currency, providerRef string) (*model.Payment, error) {
	const q = `INSERT INTO payments (booking_id, amount_cents, currency, provider_ref, status)
               VALUES (?, ?, ?, ?, 'PENDING')
               ON DUPLICATE KEY UPDATE
                 amount_cents = VALUES(amount_cents),
                 currency     = VALUES(currency),
                 provider_ref = VALUES(provider_ref),
                 status       = 'PENDING',
                 paid_at      = NULL`
	if _, err := r.db.ExecContext(ctx, q, bookingID, amountCents, currency, providerRef); err != nil {
		return nil, err
	}
	p, err := r.GetByBookingID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetByID fetches a payment by primary key.
func (r *PaymentRepo) GetByID(ctx context.Context, id uint64) (model.Payment, error) {
	p, err := scanPayment(r.db.QueryRowContext(ctx,
		"SELECT "+paymentCols+" FROM payments WHERE id = ?", id).Scan)
	if err == sql.ErrNoRows {
		return p, ErrNotFound
	}
	return p, err
}

// GetByBookingID fetches the payment attached to a booking.
func (r *PaymentRepo) GetByBookingID(ctx context.Context, bookingID uint64) (model.Payment, error) {
	p, err := scanPayment(r.db.QueryRowContext(ctx,
		"SELECT "+paymentCols+" FROM payments WHERE booking_id = ?", bookingID).Scan)
	if err == sql.ErrNoRows {
		return p, ErrNotFound
	}
	return p, err
}

// GetByProviderRef fetches the payment carrying the given external
// payment-intent id.  The webhook path uses it to map processor
// events back to local state.
func (r *PaymentRepo) GetByProviderRef(ctx context.Context, ref string) (model.Payment, error) {
	p, err := scanPayment(r.db.QueryRowContext(ctx,
		"SELECT "+paymentCols+" FROM payments WHERE provider_ref = ?", ref).Scan)
	if err == sql.ErrNoRows {
		return p, ErrNotFound
	}
	return p, err
}

// Complete settles a payment: within one transaction it moves the
// payment from PENDING to COMPLETED (recording paid_at) and the linked
// booking from PENDING to CONFIRMED.  The payment update is a
// compare-and-set on status='PENDING'; when another caller already
// completed the payment, Complete returns (false, nil) and changes
// nothing, which both notification channels treat as success.
//
// A payment in any other non-PENDING state (FAILED, REFUNDED) cannot
// be completed and yields ErrInvalidState.
func (r *PaymentRepo) Complete(ctx context.Context, paymentID uint64) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	const cas = `UPDATE payments SET status = 'COMPLETED', paid_at = UTC_TIMESTAMP()
                 WHERE id = ? AND status = 'PENDING'`
	res, err := tx.ExecContext(ctx, cas, paymentID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		// Lost the race or illegal transition; look at the current status.
		var status string
		if err := tx.QueryRowContext(ctx,
			"SELECT status FROM payments WHERE id = ?", paymentID).Scan(&status); err != nil {
			if err == sql.ErrNoRows {
				return false, ErrNotFound
			}
			return false, err
		}
		if status == model.PaymentStatusCompleted {
			return false, nil // already settled, no-op success
		}
		return false, ErrInvalidState
	}

	const confirm = `UPDATE bookings SET status = 'CONFIRMED'
                     WHERE id = (SELECT booking_id FROM payments WHERE id = ?) AND status = 'PENDING'`
	if _, err := tx.ExecContext(ctx, confirm, paymentID); err != nil {
		return false, err
	}

	if err := tx.Commit(); err != nil {
		return false, err
	}
	committed = true
	return true, nil
}

// MarkFailed records a failed settlement reported by the processor.
// Only a PENDING payment is touched; the booking stays PENDING so the
// user can retry checkout or cancel.  Completed payments are never
// downgraded by a late failure event.
func (r *PaymentRepo) MarkFailed(ctx context.Context, paymentID uint64) error {
	const q = `UPDATE payments SET status = 'FAILED' WHERE id = ? AND status = 'PENDING'`
	_, err := r.db.ExecContext(ctx, q, paymentID)
	return err
}
