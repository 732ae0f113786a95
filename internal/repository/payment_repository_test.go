package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vfsbus/bus-booking/internal/model"
)

func newMockPaymentRepo(t *testing.T) (*PaymentRepo, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPaymentRepo(db), mock
}

const (
	casQ     = `UPDATE payments SET status = 'COMPLETED', paid_at = UTC_TIMESTAMP()`
	confirmQ = `UPDATE bookings SET status = 'CONFIRMED'`
	statusQ  = `SELECT status FROM payments WHERE id = ?`
)

func TestCompleteSettlesPendingPayment(t *testing.T) {
	repo, mock := newMockPaymentRepo(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(casQ)).
		WithArgs(uint64(5)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(confirmQ)).
		WithArgs(uint64(5)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	flipped, err := repo.Complete(context.Background(), 5)
	require.NoError(t, err)
	assert.True(t, flipped)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCompleteIsIdempotent(t *testing.T) {
	repo, mock := newMockPaymentRepo(t)

	// The CAS misses because a concurrent caller settled first; the
	// second caller must observe a clean no-op, not an error.
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(casQ)).
		WithArgs(uint64(5)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta(statusQ)).
		WithArgs(uint64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow(model.PaymentStatusCompleted))
	mock.ExpectRollback()

	flipped, err := repo.Complete(context.Background(), 5)
	require.NoError(t, err)
	assert.False(t, flipped)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCompleteUnknownPayment(t *testing.T) {
	repo, mock := newMockPaymentRepo(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(casQ)).
		WithArgs(uint64(99)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta(statusQ)).
		WithArgs(uint64(99)).
		WillReturnRows(sqlmock.NewRows([]string{"status"}))
	mock.ExpectRollback()

	_, err := repo.Complete(context.Background(), 99)
	assert.Equal(t, ErrNotFound, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCompleteRejectsFailedPayment(t *testing.T) {
	repo, mock := newMockPaymentRepo(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(casQ)).
		WithArgs(uint64(5)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta(statusQ)).
		WithArgs(uint64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow(model.PaymentStatusFailed))
	mock.ExpectRollback()

	_, err := repo.Complete(context.Background(), 5)
	assert.Equal(t, ErrInvalidState, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertResetsExistingRow(t *testing.T) {
	repo, mock := newMockPaymentRepo(t)
	now := time.Now().UTC()

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO payments`)).
		WithArgs(uint64(42), uint32(5000), "usd", "pi_123").
		WillReturnResult(sqlmock.NewResult(5, 2)) // 2 affected rows on MySQL upsert-update
	mock.ExpectQuery(regexp.QuoteMeta(`FROM payments WHERE booking_id = ?`)).
		WithArgs(uint64(42)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "booking_id", "amount_cents", "currency", "provider_ref", "status", "paid_at", "created_at", "updated_at"}).
			AddRow(5, 42, 5000, "usd", "pi_123", model.PaymentStatusPending, nil, now, now))

	p, err := repo.Upsert(context.Background(), 42, 5000, "usd", "pi_123")
	require.NoError(t, err)
	assert.Equal(t, uint64(5), p.ID)
	assert.Equal(t, model.PaymentStatusPending, p.Status)
	assert.Nil(t, p.PaidAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkFailedOnlyTouchesPending(t *testing.T) {
	repo, mock := newMockPaymentRepo(t)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE payments SET status = 'FAILED' WHERE id = ? AND status = 'PENDING'`)).
		WithArgs(uint64(5)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.MarkFailed(context.Background(), 5))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByProviderRef(t *testing.T) {
	repo, mock := newMockPaymentRepo(t)
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta(`FROM payments WHERE provider_ref = ?`)).
		WithArgs("pi_123").
		WillReturnRows(sqlmock.NewRows([]string{"id", "booking_id", "amount_cents", "currency", "provider_ref", "status", "paid_at", "created_at", "updated_at"}).
			AddRow(5, 42, 5000, "usd", "pi_123", model.PaymentStatusPending, nil, now, now))

	p, err := repo.GetByProviderRef(context.Background(), "pi_123")
	require.NoError(t, err)
	assert.Equal(t, uint64(42), p.BookingID)

	mock.ExpectQuery(regexp.QuoteMeta(`FROM payments WHERE provider_ref = ?`)).
		WithArgs("pi_missing").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err = repo.GetByProviderRef(context.Background(), "pi_missing")
	assert.Equal(t, ErrNotFound, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
