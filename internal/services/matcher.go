package services

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/foodbridge/backend/internal/models"
	"github.com/foodbridge/backend/internal/repositories"
)

// NotificationPort is the outbound notification channel the core depends on
// abstractly; *Notifier is the production implementation.
type NotificationPort interface {
	Notify(recipientID uint, notifType, title, message, priority, donationID string)
}

// Scheduler arms a deferred timeout check for a non-auto-accepted
// assignment; *TimeoutSupervisor is the production implementation.
type Scheduler interface {
	Schedule(donationID string, organizationID uint, quantity int, at time.Time)
}

// MatchResult reports the outcome of an auto-assignment attempt.
type MatchResult struct {
	Assigned       bool             `json:"assigned"`
	OrganizationID uint             `json:"organization_id,omitempty"`
	AutoAccepted   bool             `json:"auto_accepted,omitempty"`
	Reason         string           `json:"reason,omitempty"`
	Donation       *models.Donation `json:"donation,omitempty"`
}

// candidate pairs an organization with its computed match score.
type candidate struct {
	capacity models.OrganizationCapacity
	score    float64
}

// Matcher selects the best recipient organization for a bulk donation.
type Matcher struct {
	donationRepo repositories.DonationRepository
	capacityRepo repositories.CapacityRepository
	notifier     NotificationPort
	scheduler    Scheduler
	now          func() time.Time
}

// NewMatcher creates a new Matcher
func NewMatcher(donationRepo repositories.DonationRepository, capacityRepo repositories.CapacityRepository, notifier NotificationPort, scheduler Scheduler) *Matcher {
	return &Matcher{
		donationRepo: donationRepo,
		capacityRepo: capacityRepo,
		notifier:     notifier,
		scheduler:    scheduler,
		now:          time.Now,
	}
}

// scoreCandidate computes the match score for one eligible organization.
// Remaining capacity in both dimensions is normalized to [0,1] and scaled by
// 50; preference, operating-hours and auto-accept add fixed bonuses.
func scoreCandidate(capacity *models.OrganizationCapacity, donation *models.Donation, now time.Time) float64 {
	slotRatio := float64(capacity.MaxDailyDonations-capacity.CurrentDailyLoad) / float64(capacity.MaxDailyDonations)
	servingRatio := float64(capacity.MaxServingsPerDay-capacity.CurrentServingsLoad) / float64(capacity.MaxServingsPerDay)

	score := 50 * (slotRatio + servingRatio)
	if capacity.PrefersFoodType(donation.FoodType) {
		score += 30
	}
	if capacity.IsOpenAt(now) {
		score += 20
	}
	if capacity.AutoAccept {
		score += 10
	}
	return score
}

// rankCandidates builds the scored, eligible candidate pool in descending
// score order. Daily counters are reset lazily here, the first time an
// organization is considered on a new day. Ties keep the original query
// order (stable sort over id-ordered rows).
func (m *Matcher) rankCandidates(ctx context.Context, donation *models.Donation) ([]candidate, error) {
	capacities, err := m.capacityRepo.ListActive()
	if err != nil {
		return nil, fmt.Errorf("list organizations: %w", err)
	}

	now := m.now()
	var candidates []candidate
	for _, capacity := range capacities {
		if err := m.capacityRepo.ResetIfNewDay(capacity.OrganizationID, now); err != nil {
			log.Printf("daily reset failed for organization %d: %v", capacity.OrganizationID, err)
			continue
		}
		fresh, err := m.capacityRepo.GetByOrganizationID(capacity.OrganizationID)
		if err != nil {
			log.Printf("failed to load capacity for organization %d: %v", capacity.OrganizationID, err)
			continue
		}
		if fresh.CurrentDailyLoad >= fresh.MaxDailyDonations {
			continue
		}
		if fresh.CurrentServingsLoad+donation.Quantity > fresh.MaxServingsPerDay {
			continue
		}
		candidates = append(candidates, candidate{capacity: *fresh, score: scoreCandidate(fresh, donation, now)})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})
	return candidates, nil
}

// AutoAssign finds the best eligible organization for a bulk donation and
// assigns it. Capacity is reserved before the status flips so that a
// concurrent claim can be rolled back exactly; if the donation was taken in
// the meantime the reservation is released and the attempt reports the race.
func (m *Matcher) AutoAssign(ctx context.Context, donationID string) (*MatchResult, error) {
	donation, err := m.donationRepo.GetDonationByID(ctx, donationID)
	if err != nil {
		return nil, err
	}
	if !donation.IsBulk() {
		return &MatchResult{Assigned: false, Reason: "donation below bulk threshold"}, nil
	}
	if donation.Status != models.StatusPending {
		return &MatchResult{Assigned: false, Reason: "donation is not pending"}, nil
	}

	candidates, err := m.rankCandidates(ctx, donation)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return &MatchResult{Assigned: false, Reason: "no eligible organizations"}, nil
	}

	for i, cand := range candidates {
		capacity := cand.capacity
		orgID := capacity.OrganizationID

		if err := m.capacityRepo.ReserveCapacity(orgID, donation.Quantity); err != nil {
			if err == models.ErrCapacityExhausted {
				continue // filled up since ranking; try the next candidate
			}
			return nil, fmt.Errorf("reserve capacity for organization %d: %w", orgID, err)
		}

		var deadline *time.Time
		note := "Auto-assigned by matcher (auto-accept)"
		if !capacity.AutoAccept {
			d := m.now().Add(capacity.ConfirmationTimeout())
			deadline = &d
			note = "Auto-assigned by matcher; awaiting confirmation"
		}

		assigned, err := m.donationRepo.AssignIfPending(ctx, donationID, orgID, deadline, true, note)
		if err != nil {
			if rollbackErr := m.capacityRepo.ReleaseCapacity(orgID, donation.Quantity); rollbackErr != nil {
				log.Printf("capacity rollback failed for organization %d: %v", orgID, rollbackErr)
			}
			if err == models.ErrAlreadyAssigned {
				return &MatchResult{Assigned: false, Reason: "donation was claimed concurrently"}, nil
			}
			return nil, err
		}

		m.notifier.Notify(orgID, "assignment", "New donation assigned",
			fmt.Sprintf("%d servings of %s have been assigned to your organization", donation.Quantity, donation.FoodType),
			"high", donationID)

		if capacity.AutoAccept {
			return &MatchResult{Assigned: true, OrganizationID: orgID, AutoAccepted: true, Donation: assigned}, nil
		}

		m.scheduler.Schedule(donationID, orgID, donation.Quantity, *deadline)

		// Runner-ups are informed, not reserved.
		for _, runnerUp := range runnerUps(candidates, i, 2) {
			m.notifier.Notify(runnerUp.capacity.OrganizationID, "runner_up", "Donation may become available",
				fmt.Sprintf("You may receive %d servings of %s if the primary organization does not confirm", donation.Quantity, donation.FoodType),
				"low", donationID)
		}

		return &MatchResult{Assigned: true, OrganizationID: orgID, Donation: assigned}, nil
	}

	return &MatchResult{Assigned: false, Reason: "no eligible organizations"}, nil
}

// runnerUps returns up to n candidates ranked after the winner.
func runnerUps(candidates []candidate, winner, n int) []candidate {
	start := winner + 1
	if start >= len(candidates) {
		return nil
	}
	end := start + n
	if end > len(candidates) {
		end = len(candidates)
	}
	return candidates[start:end]
}
