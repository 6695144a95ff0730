package services

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/foodbridge/backend/internal/models"
	"github.com/foodbridge/backend/internal/repositories"
)

// TimeoutSupervisor arms one deferred check per non-auto-accepted
// assignment, keyed by donation id. The timer only decides when to look;
// correctness comes from re-checking the stored status at fire time, so a
// confirmation that lands first turns the check into a no-op. Cancel exists
// as an optimization to release the timer early.
type TimeoutSupervisor struct {
	donationRepo repositories.DonationRepository
	capacityRepo repositories.CapacityRepository
	notifier     NotificationPort

	mu      sync.Mutex
	timers  map[string]*time.Timer
	matcher *Matcher // set via SetMatcher; nil disables the cascade
}

// NewTimeoutSupervisor creates a new TimeoutSupervisor
func NewTimeoutSupervisor(donationRepo repositories.DonationRepository, capacityRepo repositories.CapacityRepository, notifier NotificationPort) *TimeoutSupervisor {
	return &TimeoutSupervisor{
		donationRepo: donationRepo,
		capacityRepo: capacityRepo,
		notifier:     notifier,
		timers:       make(map[string]*time.Timer),
	}
}

// SetMatcher wires the matcher used for the reassignment cascade. The
// supervisor and matcher reference each other, so this happens after both
// are constructed.
func (s *TimeoutSupervisor) SetMatcher(matcher *Matcher) {
	s.matcher = matcher
}

// Schedule arms a deferred expiry check for a donation's confirmation
// deadline. Re-scheduling the same donation replaces the previous timer.
func (s *TimeoutSupervisor) Schedule(donationID string, organizationID uint, quantity int, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.timers[donationID]; ok {
		existing.Stop()
	}
	s.timers[donationID] = time.AfterFunc(time.Until(at), func() {
		s.expire(donationID, organizationID, quantity)
	})
}

// Cancel stops a pending check after an early confirmation. Safe to call
// whether or not a timer is armed; the fire-time status check makes a
// missed cancellation harmless.
func (s *TimeoutSupervisor) Cancel(donationID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if timer, ok := s.timers[donationID]; ok {
		timer.Stop()
		delete(s.timers, donationID)
	}
}

// ReleaseReservation stops any pending check and returns the reserved
// capacity after an assignment ends outside the normal flow, such as a donor
// cancelling a matcher-assigned donation. Without this the reservation would
// stay counted for the rest of the day: the armed timer finds the donation no
// longer assigned and backs off without touching the counters.
func (s *TimeoutSupervisor) ReleaseReservation(donationID string, organizationID uint, quantity int) {
	s.Cancel(donationID)
	if err := s.capacityRepo.ReleaseCapacity(organizationID, quantity); err != nil {
		log.Printf("data integrity warning: capacity rollback failed for organization %d after cancellation of donation %s: %v",
			organizationID, donationID, err)
	}
}

// expire performs the rollback-and-cascade for a deadline that passed
// unconfirmed: revert the donation to pending, subtract exactly the
// capacity the assignment reserved, notify the organization and re-run the
// matcher for the next-best candidate.
func (s *TimeoutSupervisor) expire(donationID string, organizationID uint, quantity int) {
	s.mu.Lock()
	delete(s.timers, donationID)
	s.mu.Unlock()

	ctx := context.Background()
	donation, err := s.donationRepo.ReleaseIfExpired(ctx, donationID, time.Now())
	if err != nil {
		if err == models.ErrInvalidTransition || err == models.ErrNotFound {
			// Confirmed, picked up or reassigned before we fired.
			return
		}
		log.Printf("timeout check failed for donation %s: %v", donationID, err)
		return
	}

	if err := s.capacityRepo.ReleaseCapacity(organizationID, quantity); err != nil {
		log.Printf("data integrity warning: capacity rollback failed for organization %d after timeout of donation %s: %v",
			organizationID, donationID, err)
	}

	s.notifier.Notify(organizationID, "assignment_timeout", "Assignment expired",
		"The confirmation window for an assigned donation has passed; it has been released", "normal", donationID)

	if s.matcher == nil {
		return
	}
	result, err := s.matcher.AutoAssign(ctx, donationID)
	if err != nil {
		log.Printf("reassignment cascade failed for donation %s: %v", donationID, err)
		return
	}
	if !result.Assigned {
		// Pool exhausted: the donation stays pending for manual claims.
		log.Printf("donation %s left pending after timeout: %s", donation.ID.Hex(), result.Reason)
	}
}
