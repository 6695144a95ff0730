package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/foodbridge/backend/internal/models"
	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signToken(t *testing.T, secret string, claims *models.JwtCustomClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func volunteerClaims(expiresAt time.Time) *models.JwtCustomClaims {
	return &models.JwtCustomClaims{
		UserID: 42,
		Email:  "v@example.com",
		Role:   models.RoleVolunteer,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
}

func runJWT(t *testing.T, authHeader string) (error, echo.Context) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	c := e.NewContext(req, httptest.NewRecorder())
	handler := JWTAuthMiddleware()(func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	return handler(c), c
}

func TestJWTAuthMiddleware(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")

	t.Run("valid token stores claims", func(t *testing.T) {
		token := signToken(t, "test-secret", volunteerClaims(time.Now().Add(time.Hour)))
		err, c := runJWT(t, "Bearer "+token)
		require.NoError(t, err)
		claims, ok := c.Get("user").(*models.JwtCustomClaims)
		require.True(t, ok)
		assert.Equal(t, uint(42), claims.UserID)
		assert.Equal(t, models.RoleVolunteer, claims.Role)
	})

	t.Run("missing header", func(t *testing.T) {
		err, _ := runJWT(t, "")
		var httpErr *echo.HTTPError
		require.ErrorAs(t, err, &httpErr)
		assert.Equal(t, http.StatusUnauthorized, httpErr.Code)
	})

	t.Run("expired token", func(t *testing.T) {
		token := signToken(t, "test-secret", volunteerClaims(time.Now().Add(-time.Hour)))
		err, _ := runJWT(t, "Bearer "+token)
		var httpErr *echo.HTTPError
		require.ErrorAs(t, err, &httpErr)
		assert.Equal(t, http.StatusUnauthorized, httpErr.Code)
		assert.Equal(t, "Token has expired", httpErr.Message)
	})

	t.Run("wrong secret", func(t *testing.T) {
		token := signToken(t, "other-secret", volunteerClaims(time.Now().Add(time.Hour)))
		err, _ := runJWT(t, "Bearer "+token)
		var httpErr *echo.HTTPError
		require.ErrorAs(t, err, &httpErr)
		assert.Equal(t, http.StatusUnauthorized, httpErr.Code)
	})

	t.Run("token without identity", func(t *testing.T) {
		claims := volunteerClaims(time.Now().Add(time.Hour))
		claims.UserID = 0
		token := signToken(t, "test-secret", claims)
		err, _ := runJWT(t, "Bearer "+token)
		var httpErr *echo.HTTPError
		require.ErrorAs(t, err, &httpErr)
		assert.Equal(t, http.StatusUnauthorized, httpErr.Code)
		assert.Equal(t, "Token missing user identity", httpErr.Message)
	})
}

func runRoleGuard(t *testing.T, claims *models.JwtCustomClaims, roles ...models.Role) error {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	c := e.NewContext(req, httptest.NewRecorder())
	if claims != nil {
		c.Set("user", claims)
	}
	handler := RequireRole(roles...)(func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	return handler(c)
}

func TestRequireRole(t *testing.T) {
	volunteer := &models.JwtCustomClaims{UserID: 1, Role: models.RoleVolunteer}
	donor := &models.JwtCustomClaims{UserID: 2, Role: models.RoleDonor}

	t.Run("matching role passes", func(t *testing.T) {
		assert.NoError(t, runRoleGuard(t, volunteer, models.RoleVolunteer))
	})

	t.Run("any listed role passes", func(t *testing.T) {
		assert.NoError(t, runRoleGuard(t, donor, models.RoleDonor, models.RoleAdmin))
	})

	t.Run("other role is forbidden", func(t *testing.T) {
		err := runRoleGuard(t, donor, models.RoleVolunteer)
		var httpErr *echo.HTTPError
		require.ErrorAs(t, err, &httpErr)
		assert.Equal(t, http.StatusForbidden, httpErr.Code)
	})

	t.Run("missing claims are unauthorized", func(t *testing.T) {
		err := runRoleGuard(t, nil, models.RoleVolunteer)
		var httpErr *echo.HTTPError
		require.ErrorAs(t, err, &httpErr)
		assert.Equal(t, http.StatusUnauthorized, httpErr.Code)
	})
}
