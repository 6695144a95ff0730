package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DonationStatus is the lifecycle state of a donation.
type DonationStatus string

const (
	StatusPending   DonationStatus = "pending"
	StatusAssigned  DonationStatus = "assigned"
	StatusPickedUp  DonationStatus = "picked_up"
	StatusDelivered DonationStatus = "delivered"
	StatusRejected  DonationStatus = "rejected"
	StatusCancelled DonationStatus = "cancelled"
	StatusTimeout   DonationStatus = "timeout"
)

// DonationPriority reflects how soon the food must be moved.
type DonationPriority string

const (
	PriorityLow    DonationPriority = "low"
	PriorityMedium DonationPriority = "medium"
	PriorityHigh   DonationPriority = "high"
	PriorityUrgent DonationPriority = "urgent"
)

// BulkThreshold is the serving count at or above which a donation is routed
// to organization auto-matching instead of open volunteer claiming.
const BulkThreshold = 10

// TrackingEntry is one immutable audit record in a donation's history.
type TrackingEntry struct {
	Status    DonationStatus `json:"status" bson:"status"`
	Timestamp time.Time      `json:"timestamp" bson:"timestamp"`
	ActorID   uint           `json:"actor_id" bson:"actor_id"`
	Note      string         `json:"note" bson:"note"`
}

// Donation represents a surplus-food donation stored in MongoDB.
// Status is only ever mutated through the repository's conditional updates;
// assigned_to is non-nil exactly while status is assigned, picked_up or delivered.
type Donation struct {
	ID                   primitive.ObjectID `json:"id,omitempty" bson:"_id,omitempty"`
	DonorID              uint               `json:"donor_id" bson:"donor_id"`
	FoodType             string             `json:"food_type" bson:"food_type"`
	Quantity             int                `json:"quantity" bson:"quantity"` // servings
	BestBefore           time.Time          `json:"best_before" bson:"best_before"`
	PhotoURL             string             `json:"photo_url,omitempty" bson:"photo_url,omitempty"`
	Latitude             float64            `json:"latitude" bson:"latitude"`
	Longitude            float64            `json:"longitude" bson:"longitude"`
	Priority             DonationPriority   `json:"priority" bson:"priority"`
	Status               DonationStatus     `json:"status" bson:"status"`
	AssignedTo           *uint              `json:"assigned_to,omitempty" bson:"assigned_to,omitempty"`
	AssignedAt           *time.Time         `json:"assigned_at,omitempty" bson:"assigned_at,omitempty"`
	ConfirmationDeadline *time.Time         `json:"confirmation_deadline,omitempty" bson:"confirmation_deadline,omitempty"`
	AutoAssigned         bool               `json:"auto_assigned" bson:"auto_assigned"`
	DeliveryPhotoURL     string             `json:"delivery_photo_url,omitempty" bson:"delivery_photo_url,omitempty"`
	RecipientInfo        string             `json:"recipient_info,omitempty" bson:"recipient_info,omitempty"`
	Tracking             []TrackingEntry    `json:"tracking" bson:"tracking"`
	CreatedAt            time.Time          `json:"created_at" bson:"created_at"`
	UpdatedAt            time.Time          `json:"updated_at" bson:"updated_at"`
}

// IsBulk reports whether the donation qualifies for organization auto-matching.
func (d *Donation) IsBulk() bool {
	return d.Quantity >= BulkThreshold
}

// validTransitions lists the legal next states for each lifecycle state.
// Terminal states have no entry.
var validTransitions = map[DonationStatus][]DonationStatus{
	StatusPending:  {StatusAssigned, StatusRejected, StatusCancelled},
	StatusAssigned: {StatusPickedUp, StatusPending, StatusCancelled},
	StatusPickedUp: {StatusDelivered, StatusCancelled},
}

// CanTransition reports whether moving from one status to another is legal.
func CanTransition(from, to DonationStatus) bool {
	for _, next := range validTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

var allStatuses = []DonationStatus{
	StatusPending, StatusAssigned, StatusPickedUp,
	StatusDelivered, StatusRejected, StatusCancelled, StatusTimeout,
}

// TransitionSources returns the states from which a move to the target is
// legal. Repository update filters build their status preconditions from
// this, so the filters and the transition table cannot drift apart.
func TransitionSources(to DonationStatus) []DonationStatus {
	var sources []DonationStatus
	for _, from := range allStatuses {
		if CanTransition(from, to) {
			sources = append(sources, from)
		}
	}
	return sources
}

// PriorityFromBestBefore derives a priority from how close the best-before
// timestamp is. Used when the donor does not supply one.
func PriorityFromBestBefore(bestBefore, now time.Time) DonationPriority {
	remaining := bestBefore.Sub(now)
	switch {
	case remaining < 6*time.Hour:
		return PriorityUrgent
	case remaining < 24*time.Hour:
		return PriorityHigh
	case remaining < 72*time.Hour:
		return PriorityMedium
	default:
		return PriorityLow
	}
}

// PriorityBonus returns the reward-point bonus for a priority.
func PriorityBonus(p DonationPriority) int {
	switch p {
	case PriorityUrgent:
		return 15
	case PriorityHigh:
		return 10
	case PriorityMedium:
		return 5
	default:
		return 0
	}
}

// CreateDonationRequest defines the request body for creating a donation
type CreateDonationRequest struct {
	FoodType   string  `json:"food_type" validate:"required,min=2,max=100"`
	Quantity   int     `json:"quantity" validate:"required,min=1"`
	BestBefore string  `json:"best_before" validate:"required"` // RFC3339
	PhotoURL   string  `json:"photo_url,omitempty" validate:"omitempty,url"`
	Latitude   float64 `json:"latitude" validate:"min=-90,max=90"`
	Longitude  float64 `json:"longitude" validate:"min=-180,max=180"`
	Priority   string  `json:"priority,omitempty" validate:"omitempty,oneof=low medium high urgent"`
}

// DeclineAssignmentRequest defines the request body for declining an assignment
type DeclineAssignmentRequest struct {
	Reason string `json:"reason" validate:"required,min=3,max=500"`
}

// ConfirmPickupRequest defines the request body for confirming a pickup
type ConfirmPickupRequest struct {
	PhotoURL string `json:"photo_url,omitempty" validate:"omitempty,url"`
}

// ConfirmDeliveryRequest defines the request body for confirming a delivery
type ConfirmDeliveryRequest struct {
	RecipientInfo string `json:"recipient_info" validate:"required,min=3,max=500"`
	PhotoURL      string `json:"photo_url,omitempty" validate:"omitempty,url"`
}
