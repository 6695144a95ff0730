package handlers

import (
	"errors"
	"net/http"

	"github.com/foodbridge/backend/internal/models"
	"github.com/labstack/echo/v4"
)

// getClaimsFromContext extracts the JWT claims the auth middleware stored.
func getClaimsFromContext(c echo.Context) *models.JwtCustomClaims {
	claims, ok := c.Get("user").(*models.JwtCustomClaims)
	if !ok {
		return nil
	}
	return claims
}

// getUserIDFromContext returns the authenticated user's ID, or 0.
func getUserIDFromContext(c echo.Context) uint {
	claims := getClaimsFromContext(c)
	if claims == nil {
		return 0
	}
	return claims.UserID
}

// domainHTTPError maps lifecycle sentinels onto HTTP errors. Race losses and
// precondition failures are conflicts, not server faults.
func domainHTTPError(err error) *echo.HTTPError {
	switch {
	case errors.Is(err, models.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "Resource not found")
	case errors.Is(err, models.ErrAlreadyAssigned):
		return echo.NewHTTPError(http.StatusConflict, "Donation already assigned to another volunteer")
	case errors.Is(err, models.ErrInvalidTransition):
		return echo.NewHTTPError(http.StatusConflict, "Donation status does not allow this operation")
	case errors.Is(err, models.ErrInvalidAssignment):
		return echo.NewHTTPError(http.StatusForbidden, "You do not hold this assignment")
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
