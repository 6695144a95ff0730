package services

import (
	"context"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/foodbridge/backend/internal/models"
	"github.com/foodbridge/backend/internal/repositories"
)

const basePoints = 10

// DeliveryReward summarizes what a completed delivery earned the volunteer.
type DeliveryReward struct {
	Points          int                  `json:"points_earned"`
	Level           int                  `json:"level"`
	LeveledUp       bool                 `json:"leveled_up"`
	StreakDays      int                  `json:"streak_days"`
	NewAchievements []models.Achievement `json:"new_achievements"`
}

// RewardService converts completed deliveries into ledger updates:
// points, level changes, streaks and achievement unlocks.
type RewardService struct {
	ledgerRepo repositories.LedgerRepository
	now        func() time.Time
}

// NewRewardService creates a new RewardService
func NewRewardService(ledgerRepo repositories.LedgerRepository) *RewardService {
	return &RewardService{ledgerRepo: ledgerRepo, now: time.Now}
}

// PointsFor computes the points a delivery is worth.
func PointsFor(quantity int, priority models.DonationPriority) int {
	return basePoints + (quantity/5)*2 + models.PriorityBonus(priority)
}

// requiredXP is the experience needed to leave a level: floor(100 * 1.5^(L-1)).
func requiredXP(level int) int {
	return int(math.Floor(100 * math.Pow(1.5, float64(level-1))))
}

// levelForExperience finds the smallest level whose requirement exceeds the
// experience, counting up from 1. Experience exactly at a requirement has
// already crossed it.
func levelForExperience(xp int) (level, nextThreshold int) {
	level = 1
	for requiredXP(level) <= xp {
		level++
	}
	return level, requiredXP(level)
}

// sameCalendarDay reports whether two instants fall on one calendar day.
func sameCalendarDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// nextStreak applies the calendar-day streak rules: first activity starts at
// 1, a gap of exactly one day extends the streak, a longer gap resets it,
// and a same-day repeat leaves it untouched.
func nextStreak(stats models.LedgerStats, now time.Time) (streak, longest int) {
	streak = stats.StreakDays
	if stats.LastActivityDate == nil {
		streak = 1
	} else {
		last := *stats.LastActivityDate
		switch {
		case sameCalendarDay(last, now):
			// unchanged
		case sameCalendarDay(last.AddDate(0, 0, 1), now):
			streak++
		default:
			streak = 1
		}
	}
	longest = stats.LongestStreak
	if streak > longest {
		longest = streak
	}
	return streak, longest
}

// ApplyDelivery records one delivered donation against the volunteer's
// ledger and returns the earned points, level change and any badges that
// unlocked. Awarding is idempotent per badge id, so recomputing the same
// milestones never duplicates an achievement. Level and streak derive from a
// read taken before the increment; under concurrent deliveries the stored
// level can lag the accumulated experience until the next delivery
// recomputes it from the full total.
func (s *RewardService) ApplyDelivery(ctx context.Context, volunteerID uint, donation *models.Donation) (*DeliveryReward, error) {
	ledger, err := s.ledgerRepo.GetOrCreate(ctx, volunteerID)
	if err != nil {
		return nil, fmt.Errorf("load ledger: %w", err)
	}

	now := s.now()
	points := PointsFor(donation.Quantity, donation.Priority)
	newLevel, nextThreshold := levelForExperience(ledger.ExperiencePoints + points)
	streak, longest := nextStreak(ledger.Stats, now)

	update := repositories.LedgerDeliveryUpdate{
		Points:             points,
		Servings:           donation.Quantity,
		Level:              newLevel,
		NextLevelThreshold: nextThreshold,
		StreakDays:         streak,
		LongestStreak:      longest,
		ActivityDate:       now,
	}
	if err := s.ledgerRepo.RecordDelivery(ctx, volunteerID, update); err != nil {
		return nil, fmt.Errorf("record delivery: %w", err)
	}

	reward := &DeliveryReward{
		Points:     points,
		Level:      newLevel,
		LeveledUp:  newLevel > ledger.Level,
		StreakDays: streak,
	}

	totalDeliveries := ledger.Stats.TotalDeliveries + 1
	totalServings := ledger.Stats.TotalServings + donation.Quantity

	var candidates []BadgeDef
	candidates = append(candidates, crossed(levelBadges, newLevel)...)
	candidates = append(candidates, crossed(streakBadges, streak)...)
	candidates = append(candidates, crossed(deliveryBadges, totalDeliveries)...)
	candidates = append(candidates, crossed(servingBadges, totalServings)...)

	for _, def := range candidates {
		achievement := models.Achievement{
			BadgeID:     def.BadgeID,
			Name:        def.Name,
			Description: def.Description,
			Icon:        def.Icon,
			EarnedAt:    now,
		}
		awarded, err := s.ledgerRepo.AwardAchievement(ctx, volunteerID, achievement)
		if err != nil {
			log.Printf("failed to award %s to volunteer %d: %v", def.BadgeID, volunteerID, err)
			continue
		}
		if awarded {
			reward.NewAchievements = append(reward.NewAchievements, achievement)
		}
	}

	return reward, nil
}
