package services

import (
	"fmt"

	"github.com/foodbridge/backend/internal/models"
)

// BadgeDef is one threshold→badge mapping. The tables below are the single
// source of truth for every badge the system can award; awarding logic only
// ever does ordered lookups against them.
type BadgeDef struct {
	Threshold   int
	BadgeID     string
	Name        string
	Description string
	Icon        string
}

var levelBadges = []BadgeDef{
	{5, "level_5", "Rising Star", "Reached level 5", "⭐"},
	{10, "level_10", "Dedicated Helper", "Reached level 10", "🌟"},
	{25, "level_25", "Community Pillar", "Reached level 25", "🏆"},
	{50, "level_50", "Legend", "Reached level 50", "👑"},
}

var streakBadges = []BadgeDef{
	{7, "streak_7", "Week Warrior", "Delivered on 7 consecutive days", "🔥"},
	{30, "streak_30", "Monthly Marathon", "Delivered on 30 consecutive days", "💪"},
	{100, "streak_100", "Century Streak", "Delivered on 100 consecutive days", "🚀"},
}

var deliveryBadges = []BadgeDef{
	{1, "deliveries_1", "First Delivery", "Completed your first delivery", "🎉"},
	{10, "deliveries_10", "Regular Runner", "Completed 10 deliveries", "🚚"},
	{50, "deliveries_50", "Delivery Pro", "Completed 50 deliveries", "📦"},
	{100, "deliveries_100", "Delivery Master", "Completed 100 deliveries", "🎖️"},
	{500, "deliveries_500", "Delivery Hero", "Completed 500 deliveries", "🦸"},
}

var servingBadges = []BadgeDef{
	{100, "servings_100", "Hunger Fighter", "Delivered 100 servings", "🍲"},
	{500, "servings_500", "Meal Mover", "Delivered 500 servings", "🍱"},
	{1000, "servings_1000", "Feast Bringer", "Delivered 1000 servings", "🍛"},
}

// crossed returns the defs whose thresholds the value has met or passed.
func crossed(defs []BadgeDef, value int) []BadgeDef {
	var out []BadgeDef
	for _, def := range defs {
		if value >= def.Threshold {
			out = append(out, def)
		}
	}
	return out
}

// AllBadges returns every badge definition in a stable presentation order.
func AllBadges() []BadgeDef {
	all := make([]BadgeDef, 0, len(deliveryBadges)+len(servingBadges)+len(levelBadges)+len(streakBadges))
	all = append(all, deliveryBadges...)
	all = append(all, servingBadges...)
	all = append(all, levelBadges...)
	all = append(all, streakBadges...)
	return all
}

// AchievementStatuses pairs every known badge with the volunteer's earned state.
func AchievementStatuses(ledger *models.VolunteerLedger) []models.AchievementStatus {
	earned := make(map[string]models.Achievement, len(ledger.Achievements))
	for _, a := range ledger.Achievements {
		earned[a.BadgeID] = a
	}

	statuses := make([]models.AchievementStatus, 0, len(AllBadges()))
	for _, def := range AllBadges() {
		status := models.AchievementStatus{
			BadgeID:     def.BadgeID,
			Name:        def.Name,
			Description: def.Description,
			Icon:        def.Icon,
		}
		if a, ok := earned[def.BadgeID]; ok {
			status.Earned = true
			earnedAt := a.EarnedAt
			status.EarnedAt = &earnedAt
		}
		statuses = append(statuses, status)
	}
	return statuses
}

func (d BadgeDef) String() string {
	return fmt.Sprintf("%s (%s)", d.Name, d.BadgeID)
}
