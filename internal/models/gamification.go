package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Achievement is a milestone badge earned once per volunteer.
type Achievement struct {
	BadgeID     string    `json:"badge_id" bson:"badge_id"`
	Name        string    `json:"name" bson:"name"`
	Description string    `json:"description" bson:"description"`
	Icon        string    `json:"icon" bson:"icon"`
	EarnedAt    time.Time `json:"earned_at" bson:"earned_at"`
}

// LedgerStats aggregates a volunteer's delivery activity.
type LedgerStats struct {
	TotalDeliveries  int        `json:"total_deliveries" bson:"total_deliveries"`
	TotalServings    int        `json:"total_servings" bson:"total_servings"`
	StreakDays       int        `json:"streak_days" bson:"streak_days"`
	LongestStreak    int        `json:"longest_streak" bson:"longest_streak"`
	LastActivityDate *time.Time `json:"last_activity_date,omitempty" bson:"last_activity_date,omitempty"`
}

// VolunteerLedger is the per-volunteer points, level and achievement record
// stored in MongoDB. Created lazily on first delivery or profile fetch and
// mutated only by the reward service.
type VolunteerLedger struct {
	ID                 primitive.ObjectID `json:"id,omitempty" bson:"_id,omitempty"`
	VolunteerID        uint               `json:"volunteer_id" bson:"volunteer_id"`
	TotalPoints        int                `json:"total_points" bson:"total_points"`
	MonthlyPoints      int                `json:"monthly_points" bson:"monthly_points"`
	WeeklyPoints       int                `json:"weekly_points" bson:"weekly_points"`
	ExperiencePoints   int                `json:"experience_points" bson:"experience_points"`
	Level              int                `json:"level" bson:"level"`
	NextLevelThreshold int                `json:"next_level_threshold" bson:"next_level_threshold"`
	Stats              LedgerStats        `json:"stats" bson:"stats"`
	Achievements       []Achievement      `json:"achievements" bson:"achievements"`
	ShowOnLeaderboard  bool               `json:"show_on_leaderboard" bson:"show_on_leaderboard"`
	CreatedAt          time.Time          `json:"created_at" bson:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at" bson:"updated_at"`
}

// HasAchievement reports whether the badge id has already been earned.
func (l *VolunteerLedger) HasAchievement(badgeID string) bool {
	for _, a := range l.Achievements {
		if a.BadgeID == badgeID {
			return true
		}
	}
	return false
}

// LeaderboardPeriod selects which points column ranks the leaderboard.
type LeaderboardPeriod string

const (
	PeriodAllTime LeaderboardPeriod = "all"
	PeriodMonthly LeaderboardPeriod = "monthly"
	PeriodWeekly  LeaderboardPeriod = "weekly"
)

// LeaderboardEntry is one ranked row returned by the leaderboard query.
type LeaderboardEntry struct {
	Rank            int    `json:"rank"`
	VolunteerID     uint   `json:"volunteer_id"`
	Name            string `json:"name"`
	Points          int    `json:"points"`
	Level           int    `json:"level"`
	TotalDeliveries int    `json:"total_deliveries"`
	StreakDays      int    `json:"streak_days"`
}

// AchievementStatus pairs a badge definition with whether it has been earned.
type AchievementStatus struct {
	BadgeID     string     `json:"badge_id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Icon        string     `json:"icon"`
	Earned      bool       `json:"earned"`
	EarnedAt    *time.Time `json:"earned_at,omitempty"`
}
