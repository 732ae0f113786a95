package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vfsbus/bus-booking/internal/model"
)

func newMockBookingRepo(t *testing.T) (*BookingRepo, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewBookingRepo(db), mock
}

const (
	lockScheduleQ = `SELECT status, available_seats, price_cents FROM schedules WHERE id = ? FOR UPDATE`
	heldSeatsQ    = `SELECT bs.seat_number`
	insertQ       = `INSERT INTO bookings`
	seatInsertQ   = `INSERT INTO booking_seats`
	decrementQ    = `UPDATE schedules SET available_seats = available_seats - ?`
	selectBackQ   = `SELECT id, user_id, schedule_id, status, total_amount_cents, created_at, updated_at FROM bookings WHERE id = ?`
)

func TestReserveCreatesPendingBooking(t *testing.T) {
	repo, mock := newMockBookingRepo(t)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(lockScheduleQ)).
		WithArgs(uint64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"status", "available_seats", "price_cents"}).
			AddRow(model.ScheduleStatusScheduled, 10, 2500))
	mock.ExpectQuery(regexp.QuoteMeta(heldSeatsQ)).
		WithArgs(uint64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"seat_number"}).AddRow("1A"))
	mock.ExpectExec(regexp.QuoteMeta(insertQ)).
		WithArgs(uint64(7), uint64(3), uint32(5000)).
		WillReturnResult(sqlmock.NewResult(42, 1))
	mock.ExpectExec(regexp.QuoteMeta(seatInsertQ)).
		WithArgs(uint64(42), uint64(3), "2A", uint64(42), uint64(3), "2B").
		WillReturnResult(sqlmock.NewResult(1, 2))
	mock.ExpectExec(regexp.QuoteMeta(decrementQ)).
		WithArgs(2, uint64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta(selectBackQ)).
		WithArgs(uint64(42)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "schedule_id", "status", "total_amount_cents", "created_at", "updated_at"}).
			AddRow(42, 7, 3, model.BookingStatusPending, 5000, now, now))
	mock.ExpectCommit()

	b, err := repo.Reserve(context.Background(), 7, 3, []string{"2A", "2B"})
	require.NoError(t, err)
	assert.Equal(t, uint64(42), b.ID)
	assert.Equal(t, model.BookingStatusPending, b.Status)
	assert.Equal(t, uint32(5000), b.TotalAmountCents)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReserveReportsConflictingSeats(t *testing.T) {
	repo, mock := newMockBookingRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(lockScheduleQ)).
		WithArgs(uint64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"status", "available_seats", "price_cents"}).
			AddRow(model.ScheduleStatusScheduled, 10, 2500))
	mock.ExpectQuery(regexp.QuoteMeta(heldSeatsQ)).
		WithArgs(uint64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"seat_number"}).AddRow("2A").AddRow("4C"))
	mock.ExpectRollback()

	_, err := repo.Reserve(context.Background(), 7, 3, []string{"2A", "2B", "4C"})
	var conflict *SeatConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, []string{"2A", "4C"}, conflict.Seats)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReserveRejectsWhenCapacityExhausted(t *testing.T) {
	repo, mock := newMockBookingRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(lockScheduleQ)).
		WithArgs(uint64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"status", "available_seats", "price_cents"}).
			AddRow(model.ScheduleStatusScheduled, 1, 2500))
	mock.ExpectQuery(regexp.QuoteMeta(heldSeatsQ)).
		WithArgs(uint64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"seat_number"}))
	mock.ExpectRollback()

	_, err := repo.Reserve(context.Background(), 7, 3, []string{"2A", "2B"})
	assert.Equal(t, ErrInsufficientSeats, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReserveRejectsCancelledSchedule(t *testing.T) {
	repo, mock := newMockBookingRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(lockScheduleQ)).
		WithArgs(uint64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"status", "available_seats", "price_cents"}).
			AddRow(model.ScheduleStatusCancelled, 10, 2500))
	mock.ExpectRollback()

	_, err := repo.Reserve(context.Background(), 7, 3, []string{"2A"})
	assert.Equal(t, ErrScheduleNotBookable, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReserveUnknownSchedule(t *testing.T) {
	repo, mock := newMockBookingRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(lockScheduleQ)).
		WithArgs(uint64(99)).
		WillReturnRows(sqlmock.NewRows([]string{"status", "available_seats", "price_cents"}))
	mock.ExpectRollback()

	_, err := repo.Reserve(context.Background(), 7, 99, []string{"2A"})
	assert.Equal(t, ErrNotFound, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

const lockBookingQ = `FROM bookings WHERE id = ? FOR UPDATE`

func bookingRow(id, userID, scheduleID uint64, status string) *sqlmock.Rows {
	now := time.Now().UTC()
	return sqlmock.NewRows([]string{"id", "user_id", "schedule_id", "status", "total_amount_cents", "created_at", "updated_at"}).
		AddRow(id, userID, scheduleID, status, 5000, now, now)
}

func TestCancelReleasesSeatsAndRefunds(t *testing.T) {
	repo, mock := newMockBookingRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(lockBookingQ)).
		WithArgs(uint64(42)).
		WillReturnRows(bookingRow(42, 7, 3, model.BookingStatusConfirmed))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM booking_seats WHERE booking_id = ?`)).
		WithArgs(uint64(42)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE bookings SET status = 'CANCELLED' WHERE id = ?`)).
		WithArgs(uint64(42)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE schedules SET available_seats = available_seats + ?`)).
		WithArgs(2, uint64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE payments SET status = 'REFUNDED' WHERE booking_id = ? AND status = 'COMPLETED'`)).
		WithArgs(uint64(42)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	res, err := repo.Cancel(context.Background(), 42, 7, false)
	require.NoError(t, err)
	assert.Equal(t, 2, res.SeatsReleased)
	assert.True(t, res.PaymentRefunded)
	assert.Equal(t, model.BookingStatusCancelled, res.Booking.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCancelTwiceIsNoOp(t *testing.T) {
	repo, mock := newMockBookingRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(lockBookingQ)).
		WithArgs(uint64(42)).
		WillReturnRows(bookingRow(42, 7, 3, model.BookingStatusCancelled))
	mock.ExpectCommit()

	res, err := repo.Cancel(context.Background(), 42, 7, false)
	require.NoError(t, err)
	assert.Equal(t, 0, res.SeatsReleased)
	assert.False(t, res.PaymentRefunded)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCancelForbiddenForOtherCustomer(t *testing.T) {
	repo, mock := newMockBookingRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(lockBookingQ)).
		WithArgs(uint64(42)).
		WillReturnRows(bookingRow(42, 7, 3, model.BookingStatusPending))
	mock.ExpectRollback()

	_, err := repo.Cancel(context.Background(), 42, 8, false)
	assert.Equal(t, ErrForbidden, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCancelAllowedForAdmin(t *testing.T) {
	repo, mock := newMockBookingRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(lockBookingQ)).
		WithArgs(uint64(42)).
		WillReturnRows(bookingRow(42, 7, 3, model.BookingStatusPending))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*)`)).
		WithArgs(uint64(42)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE bookings SET status = 'CANCELLED'`)).
		WithArgs(uint64(42)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE schedules SET available_seats = available_seats + ?`)).
		WithArgs(1, uint64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE payments SET status = 'REFUNDED'`)).
		WithArgs(uint64(42)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	res, err := repo.Cancel(context.Background(), 42, 1, true)
	require.NoError(t, err)
	assert.False(t, res.PaymentRefunded)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCancelCompletedBookingFails(t *testing.T) {
	repo, mock := newMockBookingRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(lockBookingQ)).
		WithArgs(uint64(42)).
		WillReturnRows(bookingRow(42, 7, 3, model.BookingStatusCompleted))
	mock.ExpectRollback()

	_, err := repo.Cancel(context.Background(), 42, 7, false)
	assert.Equal(t, ErrInvalidState, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
