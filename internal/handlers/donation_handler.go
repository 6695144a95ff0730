package handlers

import (
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/foodbridge/backend/internal/middleware"
	"github.com/foodbridge/backend/internal/models"
	"github.com/foodbridge/backend/internal/repositories"
	"github.com/foodbridge/backend/internal/services"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

// DonationHandler handles donation lifecycle HTTP requests
type DonationHandler struct {
	donationRepository repositories.DonationRepository
	matcher            *services.Matcher
	supervisor         *services.TimeoutSupervisor
	notifier           services.NotificationPort
}

// NewDonationHandler creates a new DonationHandler
func NewDonationHandler(donationRepo repositories.DonationRepository, matcher *services.Matcher, supervisor *services.TimeoutSupervisor, notifier services.NotificationPort) *DonationHandler {
	return &DonationHandler{
		donationRepository: donationRepo,
		matcher:            matcher,
		supervisor:         supervisor,
		notifier:           notifier,
	}
}

// RegisterDonationRoutes registers donation-related routes
func (h *DonationHandler) RegisterDonationRoutes(g *echo.Group) {
	g.POST("/donations", h.CreateDonation, middleware.RequireRole(models.RoleDonor, models.RoleAdmin))
	g.GET("/donations/available", h.GetAvailableDonations)
	g.GET("/donations/mine", h.GetMyDonations)
	g.GET("/donations/assigned", h.GetAssignedDonations)
	g.GET("/donations/:id", h.GetDonation)
	g.POST("/donations/:id/auto-assign", h.AutoAssign, middleware.RequireRole(models.RoleDonor, models.RoleAdmin))
	g.POST("/donations/:id/cancel", h.CancelDonation, middleware.RequireRole(models.RoleDonor, models.RoleAdmin))
	g.POST("/donations/:id/reject", h.RejectDonation, middleware.RequireRole(models.RoleVolunteer, models.RoleOrganization, models.RoleAdmin))
}

// CreateDonation creates a pending donation; bulk donations are handed to
// the matcher right away.
func (h *DonationHandler) CreateDonation(c echo.Context) error {
	currentUserID := getUserIDFromContext(c)
	if currentUserID == 0 {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	var req models.CreateDonationRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}

	validate := validator.New()
	if err := validate.Struct(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	bestBefore, err := time.Parse(time.RFC3339, req.BestBefore)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "best_before must be RFC3339")
	}
	if !bestBefore.After(time.Now()) {
		return echo.NewHTTPError(http.StatusBadRequest, "best_before must be in the future")
	}

	priority := models.DonationPriority(req.Priority)
	if priority == "" {
		priority = models.PriorityFromBestBefore(bestBefore, time.Now())
	}

	donation := &models.Donation{
		DonorID:    currentUserID,
		FoodType:   req.FoodType,
		Quantity:   req.Quantity,
		BestBefore: bestBefore,
		PhotoURL:   req.PhotoURL,
		Latitude:   req.Latitude,
		Longitude:  req.Longitude,
		Priority:   priority,
	}

	if err := h.donationRepository.CreateDonation(c.Request().Context(), donation); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	var match *services.MatchResult
	if donation.IsBulk() {
		match, err = h.matcher.AutoAssign(c.Request().Context(), donation.ID.Hex())
		if err != nil {
			// The donation exists and stays pending; matching can be retried.
			log.Printf("auto-assign failed for donation %s: %v", donation.ID.Hex(), err)
		} else if match.Assigned {
			donation = match.Donation
		}
	}

	return c.JSON(http.StatusCreated, echo.Map{
		"success": true,
		"data":    echo.Map{"donation": donation, "match": match},
	})
}

// GetDonation returns a donation with its full tracking history
func (h *DonationHandler) GetDonation(c echo.Context) error {
	donation, err := h.donationRepository.GetDonationByID(c.Request().Context(), c.Param("id"))
	if err != nil {
		return domainHTTPError(err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": echo.Map{"donation": donation}})
}

// GetAvailableDonations lists pending donations open to volunteer claims
func (h *DonationHandler) GetAvailableDonations(c echo.Context) error {
	skip, limit := paginationParams(c)
	donations, err := h.donationRepository.GetAvailableDonations(c.Request().Context(), skip, limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": echo.Map{"donations": donations}})
}

// GetMyDonations lists the authenticated donor's donations
func (h *DonationHandler) GetMyDonations(c echo.Context) error {
	currentUserID := getUserIDFromContext(c)
	if currentUserID == 0 {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	skip, limit := paginationParams(c)
	donations, err := h.donationRepository.GetDonationsByDonorID(c.Request().Context(), currentUserID, skip, limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": echo.Map{"donations": donations}})
}

// GetAssignedDonations lists donations currently assigned to the caller
func (h *DonationHandler) GetAssignedDonations(c echo.Context) error {
	currentUserID := getUserIDFromContext(c)
	if currentUserID == 0 {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	donations, err := h.donationRepository.GetDonationsByAssignee(c.Request().Context(), currentUserID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": echo.Map{"donations": donations}})
}

// AutoAssign runs the capacity-aware matcher for a bulk donation
func (h *DonationHandler) AutoAssign(c echo.Context) error {
	result, err := h.matcher.AutoAssign(c.Request().Context(), c.Param("id"))
	if err != nil {
		return domainHTTPError(err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": result})
}

// CancelDonation lets the donor cancel a donation before delivery
func (h *DonationHandler) CancelDonation(c echo.Context) error {
	currentUserID := getUserIDFromContext(c)
	if currentUserID == 0 {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	reason := "Cancelled by donor"
	var req struct {
		Reason string `json:"reason,omitempty"`
	}
	if err := c.Bind(&req); err == nil && req.Reason != "" {
		reason = req.Reason
	}

	donation, err := h.donationRepository.CancelDonation(c.Request().Context(), c.Param("id"), currentUserID, reason)
	if err != nil {
		return domainHTTPError(err)
	}

	if donation.AssignedTo != nil {
		// Matcher assignments reserved organization capacity; hand the
		// rollback to the supervisor so the counters match again.
		if donation.AutoAssigned {
			h.supervisor.ReleaseReservation(donation.ID.Hex(), *donation.AssignedTo, donation.Quantity)
		} else {
			h.supervisor.Cancel(donation.ID.Hex())
		}
		h.notifier.Notify(*donation.AssignedTo, "cancellation", "Donation cancelled",
			"A donation assigned to you has been cancelled by the donor", "high", donation.ID.Hex())
	}

	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": echo.Map{"donation": donation}})
}

// RejectDonation marks a pending donation as rejected (spoiled, unsuitable)
func (h *DonationHandler) RejectDonation(c echo.Context) error {
	currentUserID := getUserIDFromContext(c)
	if currentUserID == 0 {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	var req models.DeclineAssignmentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	validate := validator.New()
	if err := validate.Struct(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	donation, err := h.donationRepository.RejectDonation(c.Request().Context(), c.Param("id"), currentUserID, req.Reason)
	if err != nil {
		return domainHTTPError(err)
	}

	h.notifier.Notify(donation.DonorID, "rejection", "Donation rejected", req.Reason, "normal", donation.ID.Hex())

	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": echo.Map{"donation": donation}})
}

// paginationParams reads skip/limit style pagination from query parameters.
func paginationParams(c echo.Context) (skip, limit int64) {
	page, _ := strconv.Atoi(c.QueryParam("page"))
	perPage, _ := strconv.Atoi(c.QueryParam("limit"))
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 50 {
		perPage = 20
	}
	return int64((page - 1) * perPage), int64(perPage)
}
