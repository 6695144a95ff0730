package handlers

import (
	"net/http"
	"strconv"

	"github.com/foodbridge/backend/internal/middleware"
	"github.com/foodbridge/backend/internal/models"
	"github.com/foodbridge/backend/internal/repositories"
	"github.com/foodbridge/backend/internal/services"
	"github.com/labstack/echo/v4"
)

// GamificationHandler serves leaderboards, achievements and ledger profiles
type GamificationHandler struct {
	ledgerRepository repositories.LedgerRepository
	userRepository   repositories.UserRepository
}

// NewGamificationHandler creates a new GamificationHandler
func NewGamificationHandler(ledgerRepo repositories.LedgerRepository, userRepo repositories.UserRepository) *GamificationHandler {
	return &GamificationHandler{
		ledgerRepository: ledgerRepo,
		userRepository:   userRepo,
	}
}

// RegisterGamificationRoutes registers gamification routes
func (h *GamificationHandler) RegisterGamificationRoutes(g *echo.Group) {
	g.GET("/gamification/leaderboard", h.GetLeaderboard)
	g.GET("/gamification/achievements", h.GetAchievements, middleware.RequireRole(models.RoleVolunteer))
	g.GET("/gamification/profile", h.GetProfile, middleware.RequireRole(models.RoleVolunteer))
	g.PUT("/gamification/visibility", h.SetVisibility, middleware.RequireRole(models.RoleVolunteer))
}

// GetLeaderboard returns ranked volunteer summaries for a period
func (h *GamificationHandler) GetLeaderboard(c echo.Context) error {
	period := models.LeaderboardPeriod(c.QueryParam("period"))
	switch period {
	case models.PeriodMonthly, models.PeriodWeekly, models.PeriodAllTime:
	case "":
		period = models.PeriodAllTime
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "period must be one of all, monthly, weekly")
	}

	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	if limit < 1 || limit > 100 {
		limit = 10
	}

	ledgers, err := h.ledgerRepository.GetLeaderboard(c.Request().Context(), period, int64(limit))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	entries := make([]models.LeaderboardEntry, 0, len(ledgers))
	for i, ledger := range ledgers {
		entry := models.LeaderboardEntry{
			Rank:            i + 1,
			VolunteerID:     ledger.VolunteerID,
			Level:           ledger.Level,
			TotalDeliveries: ledger.Stats.TotalDeliveries,
			StreakDays:      ledger.Stats.StreakDays,
		}
		switch period {
		case models.PeriodMonthly:
			entry.Points = ledger.MonthlyPoints
		case models.PeriodWeekly:
			entry.Points = ledger.WeeklyPoints
		default:
			entry.Points = ledger.TotalPoints
		}
		if user, err := h.userRepository.GetUserByID(ledger.VolunteerID); err == nil {
			entry.Name = user.Name
		}
		entries = append(entries, entry)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"data":    echo.Map{"period": period, "leaderboard": entries},
	})
}

// GetAchievements returns all known badges with the caller's earned state
func (h *GamificationHandler) GetAchievements(c echo.Context) error {
	currentUserID := getUserIDFromContext(c)
	if currentUserID == 0 {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	ledger, err := h.ledgerRepository.GetOrCreate(c.Request().Context(), currentUserID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"data":    echo.Map{"achievements": services.AchievementStatuses(ledger)},
	})
}

// GetProfile returns the caller's full ledger, creating it on first fetch
func (h *GamificationHandler) GetProfile(c echo.Context) error {
	currentUserID := getUserIDFromContext(c)
	if currentUserID == 0 {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	ledger, err := h.ledgerRepository.GetOrCreate(c.Request().Context(), currentUserID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": echo.Map{"ledger": ledger}})
}

// SetVisibility toggles leaderboard visibility for the caller
func (h *GamificationHandler) SetVisibility(c echo.Context) error {
	currentUserID := getUserIDFromContext(c)
	if currentUserID == 0 {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	var req struct {
		Visible bool `json:"visible"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}

	if err := h.ledgerRepository.SetLeaderboardVisibility(c.Request().Context(), currentUserID, req.Visible); err != nil {
		return domainHTTPError(err)
	}

	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": echo.Map{"visible": req.Visible}})
}
