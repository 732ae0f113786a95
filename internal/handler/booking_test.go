package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vfsbus/bus-booking/internal/model"
	"github.com/vfsbus/bus-booking/internal/repository"
)

func bookingDetailRows() *sqlmock.Rows {
	now := time.Now().UTC()
	return sqlmock.NewRows([]string{"id", "user_id", "schedule_id", "status", "total_amount_cents", "created_at",
		"name", "origin", "destination", "bus_number", "departs_at", "arrives_at", "status"}).
		AddRow(42, 7, 3, model.BookingStatusPending, 5000, now,
			"Capital Express", "Springfield", "Shelbyville", "BUS-12", now, now.Add(2*time.Hour), nil)
}

func TestNormalizeSeats(t *testing.T) {
	seats, msg := normalizeSeats([]string{" 2A", "2B ", "12C"})
	assert.Empty(t, msg)
	assert.Equal(t, []string{"2A", "2B", "12C"}, seats)

	// Seat labels are case-sensitive: "a1" and "A1" are distinct seats.
	seats, msg = normalizeSeats([]string{"a1", "A1"})
	assert.Empty(t, msg)
	assert.Equal(t, []string{"a1", "A1"}, seats)

	// No cap on the number of seats; capacity bounds the reservation.
	seats, msg = normalizeSeats([]string{"A1", "A2", "A3", "A4", "B1", "B2", "B3"})
	assert.Empty(t, msg)
	assert.Len(t, seats, 7)

	_, msg = normalizeSeats(nil)
	assert.Equal(t, "seat_numbers required", msg)

	_, msg = normalizeSeats([]string{"1A", " 1A "})
	assert.Contains(t, msg, "duplicate seat number")

	_, msg = normalizeSeats([]string{""})
	assert.Contains(t, msg, "1-8 characters")

	_, msg = normalizeSeats([]string{"WAY-TOO-LONG-SEAT"})
	assert.Contains(t, msg, "1-8 characters")
}

func TestCreateBookingSeatConflictResponse(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	h := NewBookingHandler(repository.NewBookingRepo(db))

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`FROM schedules WHERE id = ? FOR UPDATE`)).
		WithArgs(uint64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"status", "available_seats", "price_cents"}).
			AddRow(model.ScheduleStatusScheduled, 10, 2500))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT bs.seat_number`)).
		WithArgs(uint64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"seat_number"}).AddRow("2A"))
	mock.ExpectRollback()

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/v1/bookings",
		strings.NewReader(`{"schedule_id":3,"seat_numbers":["2A","2B"]}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set("user_id", uint64(7))
	c.Set("role", "CUSTOMER")

	require.NoError(t, h.Create(c))
	assert.Equal(t, http.StatusConflict, rec.Code)

	var body struct {
		Error            string   `json:"error"`
		ConflictingSeats []string `json:"conflicting_seats"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, []string{"2A"}, body.ConflictingSeats)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCancelCompletedBookingIsBadRequest(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	h := NewBookingHandler(repository.NewBookingRepo(db))

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`FROM bookings WHERE id = ? FOR UPDATE`)).
		WithArgs(uint64(42)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "schedule_id", "status", "total_amount_cents", "created_at", "updated_at"}).
			AddRow(42, 7, 3, model.BookingStatusCompleted, 5000, time.Now().UTC(), time.Now().UTC()))
	mock.ExpectRollback()

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/v1/bookings/42/cancel", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath("/v1/bookings/:id/cancel")
	c.SetParamNames("id")
	c.SetParamValues("42")
	c.Set("user_id", uint64(7))
	c.Set("role", "CUSTOMER")

	require.NoError(t, h.Cancel(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetBookingForbiddenForOtherCustomer(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	h := NewBookingHandler(repository.NewBookingRepo(db))

	mock.ExpectQuery(regexp.QuoteMeta(`FROM bookings b`)).
		WithArgs(uint64(42)).
		WillReturnRows(bookingDetailRows())
	mock.ExpectQuery(regexp.QuoteMeta(`FROM booking_seats WHERE booking_id = ?`)).
		WithArgs(uint64(42)).
		WillReturnRows(sqlmock.NewRows([]string{"seat_number"}).AddRow("2A"))

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/v1/bookings/42", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath("/v1/bookings/:id")
	c.SetParamNames("id")
	c.SetParamValues("42")
	c.Set("user_id", uint64(8)) // not the owner
	c.Set("role", "CUSTOMER")

	require.NoError(t, h.Get(c))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}
