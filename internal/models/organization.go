package models

import (
	"strings"
	"time"
)

// OrganizationCapacity holds an NGO's intake configuration and live load
// counters (PostgreSQL). Counters are only changed through guarded SQL
// updates so that currentLoad never exceeds maxCapacity.
type OrganizationCapacity struct {
	ID                         uint      `json:"id" gorm:"primaryKey"`
	OrganizationID             uint      `json:"organization_id" gorm:"uniqueIndex"`
	MaxDailyDonations          int       `json:"max_daily_donations" gorm:"default:5"`
	MaxServingsPerDay          int       `json:"max_servings_per_day" gorm:"default:200"`
	CurrentDailyLoad           int       `json:"current_daily_load" gorm:"default:0"`
	CurrentServingsLoad        int       `json:"current_servings_load" gorm:"default:0"`
	LastResetDate              time.Time `json:"last_reset_date"`
	OpenHour                   int       `json:"open_hour" gorm:"default:8"`   // inclusive, 0-23
	CloseHour                  int       `json:"close_hour" gorm:"default:20"` // exclusive, 0-23
	PreferredFoodTypes         string    `json:"preferred_food_types"`         // comma separated
	AutoAccept                 bool      `json:"auto_accept" gorm:"default:false"`
	ConfirmationTimeoutMinutes int       `json:"confirmation_timeout_minutes" gorm:"default:30"`
	ReliabilityScore           float64   `json:"reliability_score" gorm:"default:1"`
	Active                     bool      `json:"active" gorm:"default:true;index"`
	CreatedAt                  time.Time `json:"created_at"`
	UpdatedAt                  time.Time `json:"updated_at"`
}

// PrefersFoodType reports whether the food type appears in the organization's
// preference list. Matching is case-insensitive.
func (c *OrganizationCapacity) PrefersFoodType(foodType string) bool {
	for _, pref := range strings.Split(c.PreferredFoodTypes, ",") {
		if pref != "" && strings.EqualFold(strings.TrimSpace(pref), foodType) {
			return true
		}
	}
	return false
}

// IsOpenAt reports whether the wall-clock time falls inside the operating
// window [OpenHour, CloseHour). A window with open == close is treated as
// closed; open > close wraps past midnight.
func (c *OrganizationCapacity) IsOpenAt(t time.Time) bool {
	h := t.Hour()
	switch {
	case c.OpenHour == c.CloseHour:
		return false
	case c.OpenHour < c.CloseHour:
		return h >= c.OpenHour && h < c.CloseHour
	default:
		return h >= c.OpenHour || h < c.CloseHour
	}
}

// ConfirmationTimeout returns the configured confirmation window as a duration.
func (c *OrganizationCapacity) ConfirmationTimeout() time.Duration {
	return time.Duration(c.ConfirmationTimeoutMinutes) * time.Minute
}

// UpdateCapacityRequest defines the request body for updating capacity settings
type UpdateCapacityRequest struct {
	MaxDailyDonations          *int    `json:"max_daily_donations,omitempty" validate:"omitempty,min=1,max=1000"`
	MaxServingsPerDay          *int    `json:"max_servings_per_day,omitempty" validate:"omitempty,min=1,max=100000"`
	OpenHour                   *int    `json:"open_hour,omitempty" validate:"omitempty,min=0,max=23"`
	CloseHour                  *int    `json:"close_hour,omitempty" validate:"omitempty,min=0,max=23"`
	PreferredFoodTypes         *string `json:"preferred_food_types,omitempty"`
	AutoAccept                 *bool   `json:"auto_accept,omitempty"`
	ConfirmationTimeoutMinutes *int    `json:"confirmation_timeout_minutes,omitempty" validate:"omitempty,min=5,max=1440"`
	Active                     *bool   `json:"active,omitempty"`
}
