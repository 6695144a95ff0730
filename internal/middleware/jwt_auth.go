package middleware

import (
	"errors"
	"net/http"
	"os"
	"strings"

	"github.com/foodbridge/backend/internal/models"
	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"
)

// JWTAuthMiddleware checks for a valid bearer token and stores the parsed
// claims for the role guards and handlers downstream.
func JWTAuthMiddleware() echo.MiddlewareFunc {
	// Must match the secret the auth handler signs with
	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		jwtSecret = "supersecretjwtkey"
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "Missing Authorization header")
			}

			// Expecting "Bearer <token>"
			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid Authorization header format")
			}
			tokenString := parts[1]

			claims := &models.JwtCustomClaims{}
			token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, echo.NewHTTPError(http.StatusUnauthorized, "Unexpected signing method")
				}
				return []byte(jwtSecret), nil
			})

			switch {
			case err == nil && token.Valid:
			case errors.Is(err, jwt.ErrTokenExpired):
				return echo.NewHTTPError(http.StatusUnauthorized, "Token has expired")
			case errors.Is(err, jwt.ErrSignatureInvalid):
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid token signature")
			default:
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid token")
			}

			// A token signed by us always carries the user id and role.
			if claims.UserID == 0 || claims.Role == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "Token missing user identity")
			}

			c.Set("user", claims)

			return next(c)
		}
	}
}
