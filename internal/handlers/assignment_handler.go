package handlers

import (
	"fmt"
	"log"
	"net/http"

	"github.com/foodbridge/backend/internal/middleware"
	"github.com/foodbridge/backend/internal/models"
	"github.com/foodbridge/backend/internal/repositories"
	"github.com/foodbridge/backend/internal/services"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

// AssignmentHandler handles the accept/confirm/pickup/delivery flow
type AssignmentHandler struct {
	donationRepository repositories.DonationRepository
	userRepository     repositories.UserRepository
	capacityRepository repositories.CapacityRepository
	rewardService      *services.RewardService
	certificates       *services.CertificateService
	supervisor         *services.TimeoutSupervisor
	notifier           services.NotificationPort
}

// NewAssignmentHandler creates a new AssignmentHandler
func NewAssignmentHandler(
	donationRepo repositories.DonationRepository,
	userRepo repositories.UserRepository,
	capacityRepo repositories.CapacityRepository,
	rewardService *services.RewardService,
	certificates *services.CertificateService,
	supervisor *services.TimeoutSupervisor,
	notifier services.NotificationPort,
) *AssignmentHandler {
	return &AssignmentHandler{
		donationRepository: donationRepo,
		userRepository:     userRepo,
		capacityRepository: capacityRepo,
		rewardService:      rewardService,
		certificates:       certificates,
		supervisor:         supervisor,
		notifier:           notifier,
	}
}

// RegisterAssignmentRoutes registers assignment flow routes. Pickup and
// delivery carry no role guard: the repository's assigned_to filter already
// restricts them to the current assignee, whatever their role.
func (h *AssignmentHandler) RegisterAssignmentRoutes(g *echo.Group) {
	g.POST("/donations/:id/accept", h.AcceptDonation, middleware.RequireRole(models.RoleVolunteer))
	g.POST("/donations/:id/confirm", h.ConfirmAssignment, middleware.RequireRole(models.RoleOrganization))
	g.POST("/donations/:id/decline", h.DeclineAssignment, middleware.RequireRole(models.RoleVolunteer, models.RoleOrganization))
	g.POST("/donations/:id/pickup", h.ConfirmPickup)
	g.POST("/donations/:id/deliver", h.ConfirmDelivery)
}

// AcceptDonation lets a volunteer claim a pending donation. The claim is a
// single conditional update, so when several volunteers race for the same
// donation exactly one wins and the rest get a conflict.
func (h *AssignmentHandler) AcceptDonation(c echo.Context) error {
	currentUserID := getUserIDFromContext(c)
	if currentUserID == 0 {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	donation, err := h.donationRepository.AssignIfPending(
		c.Request().Context(), c.Param("id"), currentUserID, nil, false, "Accepted by volunteer")
	if err != nil {
		return domainHTTPError(err)
	}

	h.notifier.Notify(donation.DonorID, "assignment", "Volunteer found",
		"A volunteer has accepted your donation and will pick it up soon", "normal", donation.ID.Hex())

	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": echo.Map{"donation": donation}})
}

// ConfirmAssignment lets the assigned organization confirm before the
// deadline. The supervisor's deferred check is cancelled as an
// optimization; a timer that fires anyway sees the cleared deadline and
// does nothing.
func (h *AssignmentHandler) ConfirmAssignment(c echo.Context) error {
	currentUserID := getUserIDFromContext(c)
	if currentUserID == 0 {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	donation, err := h.donationRepository.ConfirmAssignment(c.Request().Context(), c.Param("id"), currentUserID)
	if err != nil {
		return domainHTTPError(err)
	}

	h.supervisor.Cancel(donation.ID.Hex())

	h.notifier.Notify(donation.DonorID, "assignment", "Donation confirmed",
		"The recipient organization has confirmed your donation", "normal", donation.ID.Hex())

	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": echo.Map{"donation": donation}})
}

// DeclineAssignment reverts an assignment, reopening the donation. If the
// decliner was an organization, the capacity the assignment reserved is
// released by exactly the reserved amounts.
func (h *AssignmentHandler) DeclineAssignment(c echo.Context) error {
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

	donation, err := h.donationRepository.DeclineAssignment(c.Request().Context(), c.Param("id"), currentUserID, req.Reason)
	if err != nil {
		return domainHTTPError(err)
	}

	h.supervisor.Cancel(donation.ID.Hex())

	// Organizations held reserved capacity; volunteers did not.
	claims := getClaimsFromContext(c)
	if claims != nil && claims.Role == models.RoleOrganization {
		if err := h.capacityRepository.ReleaseCapacity(currentUserID, donation.Quantity); err != nil {
			log.Printf("data integrity warning: capacity rollback failed for organization %d after decline: %v", currentUserID, err)
		}
	}

	h.notifier.Notify(donation.DonorID, "assignment", "Assignment declined",
		"The assignee declined your donation; it is open for new claims", "normal", donation.ID.Hex())

	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": echo.Map{"donation": donation}})
}

// ConfirmPickup transitions an assigned donation to picked up
func (h *AssignmentHandler) ConfirmPickup(c echo.Context) error {
	currentUserID := getUserIDFromContext(c)
	if currentUserID == 0 {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	var req models.ConfirmPickupRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	validate := validator.New()
	if err := validate.Struct(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	donation, err := h.donationRepository.MarkPickedUp(c.Request().Context(), c.Param("id"), currentUserID, req.PhotoURL)
	if err != nil {
		return domainHTTPError(err)
	}

	h.supervisor.Cancel(donation.ID.Hex())

	h.notifier.Notify(donation.DonorID, "pickup", "Donation picked up",
		"Your donation has been picked up and is on its way", "normal", donation.ID.Hex())

	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": echo.Map{"donation": donation}})
}

// ConfirmDelivery completes the lifecycle: the delivered transition commits
// first, then the reward ledger is updated for the confirming volunteer and
// the donor receives a certificate. Reward or notification failures are
// logged, never rolled back into the transition.
func (h *AssignmentHandler) ConfirmDelivery(c echo.Context) error {
	currentUserID := getUserIDFromContext(c)
	if currentUserID == 0 {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	var req models.ConfirmDeliveryRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	validate := validator.New()
	if err := validate.Struct(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	donation, err := h.donationRepository.MarkDelivered(
		c.Request().Context(), c.Param("id"), currentUserID, req.RecipientInfo, req.PhotoURL)
	if err != nil {
		return domainHTTPError(err)
	}

	var reward *services.DeliveryReward
	claims := getClaimsFromContext(c)
	if claims != nil && claims.Role == models.RoleVolunteer {
		reward, err = h.rewardService.ApplyDelivery(c.Request().Context(), currentUserID, donation)
		if err != nil {
			log.Printf("reward update failed for volunteer %d on donation %s: %v", currentUserID, donation.ID.Hex(), err)
		} else {
			h.notifier.Notify(currentUserID, "reward", "Points earned",
				fmt.Sprintf("You earned %d points for this delivery", reward.Points), "low", donation.ID.Hex())
		}
	}

	h.notifier.Notify(donation.DonorID, "delivery", "Donation delivered",
		"Your donation has reached its recipients. Thank you!", "normal", donation.ID.Hex())

	if donor, err := h.userRepository.GetUserByID(donation.DonorID); err == nil {
		h.certificates.IssueAndEmail(donor, donation)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"data":    echo.Map{"donation": donation, "reward": reward},
	})
}
