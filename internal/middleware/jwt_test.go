package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autoparc/fleet-reservation/internal/utils"
)

const testSecret = "test-secret"

func runProtected(t *testing.T, authHeader string) (*httptest.ResponseRecorder, echo.Context) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/v1/me", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	h := JWTAuth(testSecret)(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})
	require.NoError(t, h(c))
	return rec, c
}

func TestJWTAuthMissingToken(t *testing.T) {
	rec, _ := runProtected(t, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), `"success":false`)
}

func TestJWTAuthMalformedToken(t *testing.T) {
	rec, _ := runProtected(t, "Bearer not.a.jwt")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestJWTAuthWrongSecret(t *testing.T) {
	tok, err := utils.NewAccessToken("other-secret", 7, "sam@parc.example", "etudiant", 15)
	require.NoError(t, err)
	rec, _ := runProtected(t, "Bearer "+tok.Token)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestJWTAuthValidTokenInjectsClaims(t *testing.T) {
	tok, err := utils.NewAccessToken(testSecret, 7, "sam@parc.example", "etudiant", 15)
	require.NoError(t, err)

	rec, c := runProtected(t, "Bearer "+tok.Token)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "sam@parc.example", c.Get("email"))
	assert.Equal(t, "etudiant", c.Get("role"))
	// Numeric claims round-trip as float64 through MapClaims.
	assert.Equal(t, float64(7), c.Get("user_id"))
}

func TestJWTAuthExpiredToken(t *testing.T) {
	tok, err := utils.NewAccessToken(testSecret, 7, "sam@parc.example", "etudiant", -1)
	require.NoError(t, err)
	rec, _ := runProtected(t, "Bearer "+tok.Token)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireRole(t *testing.T) {
	handler := RequireRole("manager", "admin")(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})

	run := func(role any) *httptest.ResponseRecorder {
		e := echo.New()
		req := httptest.NewRequest(http.MethodGet, "/v1/dashboard", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		if role != nil {
			c.Set("role", role)
		}
		require.NoError(t, handler(c))
		return rec
	}

	assert.Equal(t, http.StatusOK, run("manager").Code)
	assert.Equal(t, http.StatusOK, run("admin").Code)
	assert.Equal(t, http.StatusForbidden, run("etudiant").Code)
	assert.Equal(t, http.StatusForbidden, run(nil).Code)
	assert.Equal(t, http.StatusForbidden, run(42).Code)
}
