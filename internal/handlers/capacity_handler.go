package handlers

import (
	"net/http"

	"github.com/foodbridge/backend/internal/models"
	"github.com/foodbridge/backend/internal/repositories"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

// CapacityHandler lets organizations view and tune their intake settings
type CapacityHandler struct {
	capacityRepository repositories.CapacityRepository
}

// NewCapacityHandler creates a new CapacityHandler
func NewCapacityHandler(capacityRepo repositories.CapacityRepository) *CapacityHandler {
	return &CapacityHandler{capacityRepository: capacityRepo}
}

// RegisterCapacityRoutes registers capacity routes
func (h *CapacityHandler) RegisterCapacityRoutes(g *echo.Group) {
	g.GET("/organizations/capacity", h.GetCapacity)
	g.PUT("/organizations/capacity", h.UpdateCapacity)
}

// GetCapacity returns the caller's capacity settings and live counters
func (h *CapacityHandler) GetCapacity(c echo.Context) error {
	currentUserID := getUserIDFromContext(c)
	if currentUserID == 0 {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	capacity, err := h.capacityRepository.GetByOrganizationID(currentUserID)
	if err != nil {
		return domainHTTPError(err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": echo.Map{"capacity": capacity}})
}

// UpdateCapacity applies partial settings changes. Load counters are not
// writable here; only the matcher and supervisor move them.
func (h *CapacityHandler) UpdateCapacity(c echo.Context) error {
	currentUserID := getUserIDFromContext(c)
	if currentUserID == 0 {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	var req models.UpdateCapacityRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	validate := validator.New()
	if err := validate.Struct(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	capacity, err := h.capacityRepository.GetByOrganizationID(currentUserID)
	if err != nil {
		return domainHTTPError(err)
	}

	if req.MaxDailyDonations != nil {
		capacity.MaxDailyDonations = *req.MaxDailyDonations
	}
	if req.MaxServingsPerDay != nil {
		capacity.MaxServingsPerDay = *req.MaxServingsPerDay
	}
	if req.OpenHour != nil {
		capacity.OpenHour = *req.OpenHour
	}
	if req.CloseHour != nil {
		capacity.CloseHour = *req.CloseHour
	}
	if req.PreferredFoodTypes != nil {
		capacity.PreferredFoodTypes = *req.PreferredFoodTypes
	}
	if req.AutoAccept != nil {
		capacity.AutoAccept = *req.AutoAccept
	}
	if req.ConfirmationTimeoutMinutes != nil {
		capacity.ConfirmationTimeoutMinutes = *req.ConfirmationTimeoutMinutes
	}
	if req.Active != nil {
		capacity.Active = *req.Active
	}

	if err := h.capacityRepository.UpdateSettings(capacity); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": echo.Map{"capacity": capacity}})
}
