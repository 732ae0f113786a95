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
	"github.com/go-sql-driver/mysql"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vfsbus/bus-booking/internal/config"
	"github.com/vfsbus/bus-booking/internal/repository"
	"github.com/vfsbus/bus-booking/internal/utils"
)

func newAuthTestHandler(t *testing.T) (*AuthHandler, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	cfg := config.Config{
		JWTSecret:      "test-secret",
		AccessTTLMin:   15,
		RefreshTTLDays: 30,
		BcryptCost:     4, // low cost keeps tests fast
	}
	return NewAuthHandler(cfg, repository.NewUserRepo(db), repository.NewTokenRepo(db)), mock
}

func postJSON(h echo.HandlerFunc, target, body string) *httptest.ResponseRecorder {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	_ = h(e.NewContext(req, rec))
	return rec
}

func TestRegisterReturnsTokenPair(t *testing.T) {
	h, mock := newAuthTestHandler(t)

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO users`)).
		WithArgs("rider@example.com", sqlmock.AnyArg(), "Ada", "Rider", nil, "CUSTOMER").
		WillReturnResult(sqlmock.NewResult(7, 1))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO refresh_tokens`)).
		WithArgs(uint64(7), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	rec := postJSON(h.Register, "/v1/auth/register",
		`{"email":"Rider@Example.com","password":"long-enough","first_name":"Ada","last_name":"Rider"}`)

	require.Equal(t, http.StatusCreated, rec.Code)
	var resp authResp
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, uint64(7), resp.User.ID)
	assert.Equal(t, "rider@example.com", resp.User.Email)
	assert.Equal(t, "CUSTOMER", resp.User.Role)
	assert.NotEmpty(t, resp.Access.Token)
	assert.NotEmpty(t, resp.Refresh.Token)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRegisterDuplicateEmail(t *testing.T) {
	h, mock := newAuthTestHandler(t)

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO users`)).
		WithArgs("rider@example.com", sqlmock.AnyArg(), "Ada", "Rider", nil, "CUSTOMER").
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"})

	rec := postJSON(h.Register, "/v1/auth/register",
		`{"email":"rider@example.com","password":"long-enough","first_name":"Ada","last_name":"Rider"}`)

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRegisterValidation(t *testing.T) {
	h, _ := newAuthTestHandler(t)

	rec := postJSON(h.Register, "/v1/auth/register", `{"email":"","password":""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postJSON(h.Register, "/v1/auth/register",
		`{"email":"rider@example.com","password":"short","first_name":"Ada","last_name":"Rider"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postJSON(h.Register, "/v1/auth/register",
		`{"email":"rider@example.com","password":"long-enough"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLoginWrongPassword(t *testing.T) {
	h, mock := newAuthTestHandler(t)
	now := time.Now().UTC()

	hash, err := utils.HashPassword("correct-pass", 4)
	require.NoError(t, err)
	mock.ExpectQuery(regexp.QuoteMeta(`FROM users WHERE email=?`)).
		WithArgs("rider@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "password_hash", "first_name", "last_name", "phone", "role", "is_active", "created_at", "updated_at"}).
			AddRow(7, "rider@example.com", hash, "Ada", "Rider", nil, "CUSTOMER", true, now, now))

	rec := postJSON(h.Login, "/v1/auth/login",
		`{"email":"rider@example.com","password":"wrong-pass"}`)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoginUnknownEmail(t *testing.T) {
	h, mock := newAuthTestHandler(t)

	mock.ExpectQuery(regexp.QuoteMeta(`FROM users WHERE email=?`)).
		WithArgs("ghost@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	rec := postJSON(h.Login, "/v1/auth/login",
		`{"email":"ghost@example.com","password":"whatever"}`)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoginDeactivatedAccount(t *testing.T) {
	h, mock := newAuthTestHandler(t)
	now := time.Now().UTC()

	hash, err := utils.HashPassword("correct-pass", 4)
	require.NoError(t, err)
	mock.ExpectQuery(regexp.QuoteMeta(`FROM users WHERE email=?`)).
		WithArgs("rider@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "password_hash", "first_name", "last_name", "phone", "role", "is_active", "created_at", "updated_at"}).
			AddRow(7, "rider@example.com", hash, "Ada", "Rider", nil, "CUSTOMER", false, now, now))

	rec := postJSON(h.Login, "/v1/auth/login",
		`{"email":"rider@example.com","password":"correct-pass"}`)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}
