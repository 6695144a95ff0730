package models

import "time"

// Notification represents an actor-facing notification (PostgreSQL).
// Write-once except for the read flag.
type Notification struct {
	ID          uint       `json:"id" gorm:"primaryKey"`
	Type        string     `json:"type" gorm:"size:40;index"` // assignment, assignment_timeout, runner_up, pickup, delivery, reward
	RecipientID uint       `json:"recipient_id" gorm:"index"`
	Title       string     `json:"title"`
	Message     string     `json:"message"`
	Priority    string     `json:"priority" gorm:"size:10;default:normal"` // low, normal, high
	DonationID  string     `json:"donation_id,omitempty"`                  // hex ObjectID of the related donation, if any
	IsRead      bool       `json:"is_read" gorm:"default:false;index"`
	ReadAt      *time.Time `json:"read_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at" gorm:"index"`
}
