package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vfsbus/bus-booking/internal/utils"
)

func callProtected(t *testing.T, authHeader string, mws ...echo.MiddlewareFunc) *httptest.ResponseRecorder {
	e := echo.New()
	var h echo.HandlerFunc = func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{"user_id": c.Get("user_id"), "role": c.Get("role")})
	}
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	req := httptest.NewRequest(http.MethodGet, "/v1/me", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	require.NoError(t, h(e.NewContext(req, rec)))
	return rec
}

func TestJWTAuthAcceptsValidToken(t *testing.T) {
	at, err := utils.NewAccessToken("secret", 7, "CUSTOMER", 15)
	require.NoError(t, err)

	rec := callProtected(t, "Bearer "+at.Token, JWTAuth("secret"))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestJWTAuthRejectsMissingAndBadTokens(t *testing.T) {
	rec := callProtected(t, "", JWTAuth("secret"))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = callProtected(t, "Bearer garbage", JWTAuth("secret"))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	at, err := utils.NewAccessToken("other-secret", 7, "CUSTOMER", 15)
	require.NoError(t, err)
	rec = callProtected(t, "Bearer "+at.Token, JWTAuth("secret"))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireRoleEnforcesAdmin(t *testing.T) {
	admin, err := utils.NewAccessToken("secret", 1, "ADMIN", 15)
	require.NoError(t, err)
	customer, err := utils.NewAccessToken("secret", 7, "CUSTOMER", 15)
	require.NoError(t, err)

	rec := callProtected(t, "Bearer "+admin.Token, JWTAuth("secret"), RequireRole("ADMIN"))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = callProtected(t, "Bearer "+customer.Token, JWTAuth("secret"), RequireRole("ADMIN"))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
