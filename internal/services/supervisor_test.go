package services

import (
	"context"
	"testing"
	"time"

	"github.com/foodbridge/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// assignWithDeadline claims the donation for the organization, reserving its
// capacity the way the matcher does.
func assignWithDeadline(t *testing.T, donationRepo *memDonationRepo, capacityRepo *memCapacityRepo, d *models.Donation, orgID uint, deadline time.Time) {
	t.Helper()
	require.NoError(t, capacityRepo.ReserveCapacity(orgID, d.Quantity))
	_, err := donationRepo.AssignIfPending(context.Background(), d.ID.Hex(), orgID, &deadline, true, "Auto-assigned by matcher; awaiting confirmation")
	require.NoError(t, err)
}

func TestSupervisorExpiryRollsBack(t *testing.T) {
	donationRepo := newMemDonationRepo()
	capacityRepo := newMemCapacityRepo()
	notifier := &recorderNotifier{}
	supervisor := NewTimeoutSupervisor(donationRepo, capacityRepo, notifier)

	capacityRepo.add(testOrg(1, nil))
	d := createBulkDonation(t, donationRepo, 30)
	assignWithDeadline(t, donationRepo, capacityRepo, d, 1, time.Now().Add(-time.Second))

	supervisor.Schedule(d.ID.Hex(), 1, 30, time.Now())

	require.Eventually(t, func() bool {
		stored, err := donationRepo.GetDonationByID(context.Background(), d.ID.Hex())
		return err == nil && stored.Status == models.StatusPending
	}, 2*time.Second, 10*time.Millisecond)

	stored, err := donationRepo.GetDonationByID(context.Background(), d.ID.Hex())
	require.NoError(t, err)
	assert.Nil(t, stored.AssignedTo)
	assert.Nil(t, stored.ConfirmationDeadline)

	// Exactly the reserved amounts were released.
	capacity, err := capacityRepo.GetByOrganizationID(1)
	require.NoError(t, err)
	assert.Equal(t, 0, capacity.CurrentDailyLoad)
	assert.Equal(t, 0, capacity.CurrentServingsLoad)

	require.Eventually(t, func() bool {
		return len(notifier.byType("assignment_timeout")) == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, uint(1), notifier.byType("assignment_timeout")[0].RecipientID)
}

func TestSupervisorExpiryCascadesToNextOrganization(t *testing.T) {
	donationRepo := newMemDonationRepo()
	capacityRepo := newMemCapacityRepo()
	notifier := &recorderNotifier{}
	supervisor := NewTimeoutSupervisor(donationRepo, capacityRepo, notifier)
	matcher := NewMatcher(donationRepo, capacityRepo, notifier, supervisor)
	supervisor.SetMatcher(matcher)

	capacityRepo.add(testOrg(1, nil))
	capacityRepo.add(testOrg(2, func(c *models.OrganizationCapacity) {
		c.AutoAccept = true
	}))

	d := createBulkDonation(t, donationRepo, 30)
	assignWithDeadline(t, donationRepo, capacityRepo, d, 1, time.Now().Add(-time.Second))

	supervisor.Schedule(d.ID.Hex(), 1, 30, time.Now())

	// The cascade re-runs the matcher; org 2 auto-accepts.
	require.Eventually(t, func() bool {
		stored, err := donationRepo.GetDonationByID(context.Background(), d.ID.Hex())
		return err == nil && stored.Status == models.StatusAssigned &&
			stored.AssignedTo != nil && *stored.AssignedTo == 2
	}, 2*time.Second, 10*time.Millisecond)

	org1, err := capacityRepo.GetByOrganizationID(1)
	require.NoError(t, err)
	assert.Equal(t, 0, org1.CurrentDailyLoad)
	assert.Equal(t, 0, org1.CurrentServingsLoad)

	org2, err := capacityRepo.GetByOrganizationID(2)
	require.NoError(t, err)
	assert.Equal(t, 1, org2.CurrentDailyLoad)
	assert.Equal(t, 30, org2.CurrentServingsLoad)
}

func TestSupervisorCancelStopsCheck(t *testing.T) {
	donationRepo := newMemDonationRepo()
	capacityRepo := newMemCapacityRepo()
	notifier := &recorderNotifier{}
	supervisor := NewTimeoutSupervisor(donationRepo, capacityRepo, notifier)

	capacityRepo.add(testOrg(1, nil))
	d := createBulkDonation(t, donationRepo, 30)
	assignWithDeadline(t, donationRepo, capacityRepo, d, 1, time.Now().Add(50*time.Millisecond))

	supervisor.Schedule(d.ID.Hex(), 1, 30, time.Now().Add(50*time.Millisecond))
	supervisor.Cancel(d.ID.Hex())

	time.Sleep(150 * time.Millisecond)

	stored, err := donationRepo.GetDonationByID(context.Background(), d.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, models.StatusAssigned, stored.Status)
	assert.Empty(t, notifier.byType("assignment_timeout"))
}

func TestSupervisorConfirmationBeatsTimer(t *testing.T) {
	donationRepo := newMemDonationRepo()
	capacityRepo := newMemCapacityRepo()
	notifier := &recorderNotifier{}
	supervisor := NewTimeoutSupervisor(donationRepo, capacityRepo, notifier)

	capacityRepo.add(testOrg(1, nil))
	d := createBulkDonation(t, donationRepo, 30)
	assignWithDeadline(t, donationRepo, capacityRepo, d, 1, time.Now().Add(-time.Second))

	// The organization confirms before the (late) timer fires: the stored
	// deadline is cleared, so the fire-time re-check is a no-op even though
	// Cancel was never called.
	_, err := donationRepo.ConfirmAssignment(context.Background(), d.ID.Hex(), 1)
	require.NoError(t, err)

	supervisor.Schedule(d.ID.Hex(), 1, 30, time.Now())
	time.Sleep(150 * time.Millisecond)

	stored, err := donationRepo.GetDonationByID(context.Background(), d.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, models.StatusAssigned, stored.Status)
	require.NotNil(t, stored.AssignedTo)
	assert.Equal(t, uint(1), *stored.AssignedTo)

	// Capacity stays reserved for the confirmed assignment.
	capacity, err := capacityRepo.GetByOrganizationID(1)
	require.NoError(t, err)
	assert.Equal(t, 1, capacity.CurrentDailyLoad)
	assert.Equal(t, 30, capacity.CurrentServingsLoad)
	assert.Empty(t, notifier.byType("assignment_timeout"))
}

func TestSupervisorReleaseReservationAfterDonorCancel(t *testing.T) {
	donationRepo := newMemDonationRepo()
	capacityRepo := newMemCapacityRepo()
	notifier := &recorderNotifier{}
	supervisor := NewTimeoutSupervisor(donationRepo, capacityRepo, notifier)

	capacityRepo.add(testOrg(1, nil))
	d := createBulkDonation(t, donationRepo, 30)
	assignWithDeadline(t, donationRepo, capacityRepo, d, 1, time.Now().Add(time.Hour))
	supervisor.Schedule(d.ID.Hex(), 1, 30, time.Now().Add(time.Hour))

	// The donor cancels the matcher-assigned donation: the fired timer would
	// find the status no longer assigned and back off, so the reservation
	// must be released here.
	_, err := donationRepo.CancelDonation(context.Background(), d.ID.Hex(), d.DonorID, "Cancelled by donor")
	require.NoError(t, err)
	supervisor.ReleaseReservation(d.ID.Hex(), 1, 30)

	capacity, err := capacityRepo.GetByOrganizationID(1)
	require.NoError(t, err)
	assert.Equal(t, 0, capacity.CurrentDailyLoad)
	assert.Equal(t, 0, capacity.CurrentServingsLoad)

	stored, err := donationRepo.GetDonationByID(context.Background(), d.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, stored.Status)

	// The pending check is gone; nothing fires later.
	time.Sleep(100 * time.Millisecond)
	assert.Empty(t, notifier.byType("assignment_timeout"))
}

func TestSupervisorRescheduleReplacesTimer(t *testing.T) {
	donationRepo := newMemDonationRepo()
	capacityRepo := newMemCapacityRepo()
	notifier := &recorderNotifier{}
	supervisor := NewTimeoutSupervisor(donationRepo, capacityRepo, notifier)

	capacityRepo.add(testOrg(1, nil))
	d := createBulkDonation(t, donationRepo, 30)
	assignWithDeadline(t, donationRepo, capacityRepo, d, 1, time.Now().Add(-time.Second))

	// The first timer is far out; rescheduling replaces it with one that
	// fires immediately, and only one expiry runs.
	supervisor.Schedule(d.ID.Hex(), 1, 30, time.Now().Add(time.Hour))
	supervisor.Schedule(d.ID.Hex(), 1, 30, time.Now())

	require.Eventually(t, func() bool {
		return len(notifier.byType("assignment_timeout")) == 1
	}, 2*time.Second, 10*time.Millisecond)

	capacity, err := capacityRepo.GetByOrganizationID(1)
	require.NoError(t, err)
	assert.Equal(t, 0, capacity.CurrentDailyLoad)
}
