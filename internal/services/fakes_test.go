package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/foodbridge/backend/internal/models"
	"github.com/foodbridge/backend/internal/repositories"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// memDonationRepo is an in-memory DonationRepository with the same
// conditional-update semantics as the MongoDB implementation: every status
// mutation re-checks the stored state under the lock and returns the same
// sentinel errors on a miss.
type memDonationRepo struct {
	mu        sync.Mutex
	donations map[string]*models.Donation
}

func newMemDonationRepo() *memDonationRepo {
	return &memDonationRepo{donations: make(map[string]*models.Donation)}
}

func (r *memDonationRepo) CreateDonation(_ context.Context, d *models.Donation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	d.ID = primitive.NewObjectID()
	d.Status = models.StatusPending
	d.CreatedAt = now
	d.UpdatedAt = now
	d.Tracking = []models.TrackingEntry{{Status: models.StatusPending, Timestamp: now, ActorID: d.DonorID, Note: "Donation created"}}
	stored := *d
	r.donations[d.ID.Hex()] = &stored
	return nil
}

func (r *memDonationRepo) GetDonationByID(_ context.Context, id string) (*models.Donation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.donations[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	out := *d
	return &out, nil
}

func (r *memDonationRepo) GetDonationsByDonorID(_ context.Context, donorID uint, _, _ int64) ([]models.Donation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Donation
	for _, d := range r.donations {
		if d.DonorID == donorID {
			out = append(out, *d)
		}
	}
	return out, nil
}

func (r *memDonationRepo) GetDonationsByAssignee(_ context.Context, actorID uint) ([]models.Donation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Donation
	for _, d := range r.donations {
		if d.AssignedTo != nil && *d.AssignedTo == actorID &&
			(d.Status == models.StatusAssigned || d.Status == models.StatusPickedUp) {
			out = append(out, *d)
		}
	}
	return out, nil
}

func (r *memDonationRepo) GetAvailableDonations(_ context.Context, _, _ int64) ([]models.Donation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Donation
	for _, d := range r.donations {
		if d.Status == models.StatusPending && d.BestBefore.After(time.Now()) {
			out = append(out, *d)
		}
	}
	return out, nil
}

func (r *memDonationRepo) AssignIfPending(_ context.Context, id string, actorID uint, deadline *time.Time, autoAssigned bool, note string) (*models.Donation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.donations[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	if d.Status != models.StatusPending {
		return nil, models.ErrAlreadyAssigned
	}
	now := time.Now()
	d.Status = models.StatusAssigned
	d.AssignedTo = &actorID
	d.AssignedAt = &now
	d.ConfirmationDeadline = deadline
	d.AutoAssigned = autoAssigned
	d.UpdatedAt = now
	d.Tracking = append(d.Tracking, models.TrackingEntry{Status: models.StatusAssigned, Timestamp: now, ActorID: actorID, Note: note})
	out := *d
	return &out, nil
}

func (r *memDonationRepo) ConfirmAssignment(_ context.Context, id string, organizationID uint) (*models.Donation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.donations[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	if d.Status != models.StatusAssigned {
		return nil, models.ErrInvalidTransition
	}
	if d.AssignedTo == nil || *d.AssignedTo != organizationID {
		return nil, models.ErrInvalidAssignment
	}
	d.ConfirmationDeadline = nil
	d.UpdatedAt = time.Now()
	out := *d
	return &out, nil
}

func (r *memDonationRepo) ReleaseIfExpired(_ context.Context, id string, now time.Time) (*models.Donation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.donations[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	if d.Status != models.StatusAssigned || d.ConfirmationDeadline == nil || d.ConfirmationDeadline.After(now) {
		return nil, models.ErrInvalidTransition
	}
	d.Status = models.StatusPending
	d.AssignedTo = nil
	d.AssignedAt = nil
	d.ConfirmationDeadline = nil
	d.UpdatedAt = now
	d.Tracking = append(d.Tracking, models.TrackingEntry{Status: models.StatusTimeout, Timestamp: now, Note: "Assignment confirmation window expired"})
	out := *d
	return &out, nil
}

func (r *memDonationRepo) DeclineAssignment(_ context.Context, id string, actorID uint, reason string) (*models.Donation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.donations[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	if d.Status != models.StatusAssigned {
		return nil, models.ErrInvalidTransition
	}
	if d.AssignedTo == nil || *d.AssignedTo != actorID {
		return nil, models.ErrInvalidAssignment
	}
	now := time.Now()
	d.Status = models.StatusPending
	d.AssignedTo = nil
	d.AssignedAt = nil
	d.ConfirmationDeadline = nil
	d.UpdatedAt = now
	d.Tracking = append(d.Tracking, models.TrackingEntry{Status: models.StatusPending, Timestamp: now, ActorID: actorID, Note: "Assignment declined: " + reason})
	out := *d
	return &out, nil
}

func (r *memDonationRepo) MarkPickedUp(_ context.Context, id string, actorID uint, photoURL string) (*models.Donation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.donations[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	if d.Status != models.StatusAssigned {
		return nil, models.ErrInvalidTransition
	}
	if d.AssignedTo == nil || *d.AssignedTo != actorID {
		return nil, models.ErrInvalidAssignment
	}
	d.Status = models.StatusPickedUp
	d.ConfirmationDeadline = nil
	if photoURL != "" {
		d.PhotoURL = photoURL
	}
	d.UpdatedAt = time.Now()
	out := *d
	return &out, nil
}

func (r *memDonationRepo) MarkDelivered(_ context.Context, id string, actorID uint, recipientInfo, photoURL string) (*models.Donation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.donations[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	if d.Status != models.StatusPickedUp {
		return nil, models.ErrInvalidTransition
	}
	if d.AssignedTo == nil || *d.AssignedTo != actorID {
		return nil, models.ErrInvalidAssignment
	}
	d.Status = models.StatusDelivered
	d.RecipientInfo = recipientInfo
	if photoURL != "" {
		d.DeliveryPhotoURL = photoURL
	}
	d.UpdatedAt = time.Now()
	out := *d
	return &out, nil
}

func (r *memDonationRepo) RejectDonation(_ context.Context, id string, actorID uint, reason string) (*models.Donation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.donations[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	if d.Status != models.StatusPending {
		return nil, models.ErrInvalidTransition
	}
	d.Status = models.StatusRejected
	d.UpdatedAt = time.Now()
	d.Tracking = append(d.Tracking, models.TrackingEntry{Status: models.StatusRejected, Timestamp: time.Now(), ActorID: actorID, Note: reason})
	out := *d
	return &out, nil
}

func (r *memDonationRepo) CancelDonation(_ context.Context, id string, donorID uint, reason string) (*models.Donation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.donations[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	if d.DonorID != donorID {
		return nil, models.ErrInvalidAssignment
	}
	switch d.Status {
	case models.StatusPending, models.StatusAssigned, models.StatusPickedUp:
	default:
		return nil, models.ErrInvalidTransition
	}
	d.Status = models.StatusCancelled
	d.ConfirmationDeadline = nil
	d.UpdatedAt = time.Now()
	d.Tracking = append(d.Tracking, models.TrackingEntry{Status: models.StatusCancelled, Timestamp: time.Now(), ActorID: donorID, Note: reason})
	out := *d
	return &out, nil
}

// memCapacityRepo is an in-memory CapacityRepository whose counter updates
// apply the same guards as the SQL implementation.
type memCapacityRepo struct {
	mu   sync.Mutex
	rows map[uint]*models.OrganizationCapacity
}

func newMemCapacityRepo() *memCapacityRepo {
	return &memCapacityRepo{rows: make(map[uint]*models.OrganizationCapacity)}
}

func (r *memCapacityRepo) add(c models.OrganizationCapacity) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[c.OrganizationID] = &c
}

func (r *memCapacityRepo) GetByOrganizationID(organizationID uint) (*models.OrganizationCapacity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[organizationID]
	if !ok {
		return nil, models.ErrNotFound
	}
	out := *row
	return &out, nil
}

func (r *memCapacityRepo) CreateCapacity(capacity *models.OrganizationCapacity) error {
	r.add(*capacity)
	return nil
}

func (r *memCapacityRepo) UpdateSettings(capacity *models.OrganizationCapacity) error {
	r.add(*capacity)
	return nil
}

func (r *memCapacityRepo) ListActive() ([]models.OrganizationCapacity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.OrganizationCapacity
	for _, row := range r.rows {
		if row.Active {
			out = append(out, *row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memCapacityRepo) ResetIfNewDay(organizationID uint, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[organizationID]
	if !ok {
		return nil
	}
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if row.LastResetDate.Before(startOfDay) {
		row.CurrentDailyLoad = 0
		row.CurrentServingsLoad = 0
		row.LastResetDate = startOfDay
	}
	return nil
}

func (r *memCapacityRepo) ReserveCapacity(organizationID uint, servings int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[organizationID]
	if !ok {
		return models.ErrCapacityExhausted
	}
	if row.CurrentDailyLoad >= row.MaxDailyDonations || row.CurrentServingsLoad+servings > row.MaxServingsPerDay {
		return models.ErrCapacityExhausted
	}
	row.CurrentDailyLoad++
	row.CurrentServingsLoad += servings
	return nil
}

func (r *memCapacityRepo) ReleaseCapacity(organizationID uint, servings int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[organizationID]
	if !ok {
		return nil
	}
	if row.CurrentDailyLoad > 0 {
		row.CurrentDailyLoad--
	}
	row.CurrentServingsLoad -= servings
	if row.CurrentServingsLoad < 0 {
		row.CurrentServingsLoad = 0
	}
	return nil
}

// memLedgerRepo is an in-memory LedgerRepository.
type memLedgerRepo struct {
	mu      sync.Mutex
	ledgers map[uint]*models.VolunteerLedger
}

func newMemLedgerRepo() *memLedgerRepo {
	return &memLedgerRepo{ledgers: make(map[uint]*models.VolunteerLedger)}
}

func (r *memLedgerRepo) GetOrCreate(_ context.Context, volunteerID uint) (*models.VolunteerLedger, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ledger, ok := r.ledgers[volunteerID]
	if !ok {
		now := time.Now()
		ledger = &models.VolunteerLedger{
			ID:                 primitive.NewObjectID(),
			VolunteerID:        volunteerID,
			Level:              1,
			NextLevelThreshold: 100,
			Achievements:       []models.Achievement{},
			ShowOnLeaderboard:  true,
			CreatedAt:          now,
			UpdatedAt:          now,
		}
		r.ledgers[volunteerID] = ledger
	}
	out := *ledger
	return &out, nil
}

func (r *memLedgerRepo) GetByVolunteerID(_ context.Context, volunteerID uint) (*models.VolunteerLedger, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ledger, ok := r.ledgers[volunteerID]
	if !ok {
		return nil, models.ErrNotFound
	}
	out := *ledger
	return &out, nil
}

func (r *memLedgerRepo) RecordDelivery(_ context.Context, volunteerID uint, u repositories.LedgerDeliveryUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ledger, ok := r.ledgers[volunteerID]
	if !ok {
		return models.ErrNotFound
	}
	ledger.TotalPoints += u.Points
	ledger.MonthlyPoints += u.Points
	ledger.WeeklyPoints += u.Points
	ledger.ExperiencePoints += u.Points
	ledger.Level = u.Level
	ledger.NextLevelThreshold = u.NextLevelThreshold
	ledger.Stats.TotalDeliveries++
	ledger.Stats.TotalServings += u.Servings
	ledger.Stats.StreakDays = u.StreakDays
	ledger.Stats.LongestStreak = u.LongestStreak
	activity := u.ActivityDate
	ledger.Stats.LastActivityDate = &activity
	ledger.UpdatedAt = time.Now()
	return nil
}

func (r *memLedgerRepo) AwardAchievement(_ context.Context, volunteerID uint, achievement models.Achievement) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ledger, ok := r.ledgers[volunteerID]
	if !ok {
		return false, models.ErrNotFound
	}
	if ledger.HasAchievement(achievement.BadgeID) {
		return false, nil
	}
	ledger.Achievements = append(ledger.Achievements, achievement)
	return true, nil
}

func (r *memLedgerRepo) GetLeaderboard(_ context.Context, period models.LeaderboardPeriod, limit int64) ([]models.VolunteerLedger, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.VolunteerLedger
	for _, ledger := range r.ledgers {
		if ledger.ShowOnLeaderboard {
			out = append(out, *ledger)
		}
	}
	points := func(l models.VolunteerLedger) int {
		switch period {
		case models.PeriodMonthly:
			return l.MonthlyPoints
		case models.PeriodWeekly:
			return l.WeeklyPoints
		default:
			return l.TotalPoints
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if points(out[i]) != points(out[j]) {
			return points(out[i]) > points(out[j])
		}
		return out[i].VolunteerID < out[j].VolunteerID
	})
	if int64(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memLedgerRepo) SetLeaderboardVisibility(_ context.Context, volunteerID uint, visible bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ledger, ok := r.ledgers[volunteerID]
	if !ok {
		return models.ErrNotFound
	}
	ledger.ShowOnLeaderboard = visible
	return nil
}

// notice is one captured outbound notification.
type notice struct {
	RecipientID uint
	Type        string
	Title       string
	Message     string
	Priority    string
	DonationID  string
}

// recorderNotifier captures notifications instead of delivering them. Safe
// for use from timer goroutines.
type recorderNotifier struct {
	mu      sync.Mutex
	notices []notice
}

func (n *recorderNotifier) Notify(recipientID uint, notifType, title, message, priority, donationID string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices = append(n.notices, notice{recipientID, notifType, title, message, priority, donationID})
}

func (n *recorderNotifier) byType(notifType string) []notice {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []notice
	for _, nt := range n.notices {
		if nt.Type == notifType {
			out = append(out, nt)
		}
	}
	return out
}

// scheduleCall is one captured Schedule invocation.
type scheduleCall struct {
	DonationID     string
	OrganizationID uint
	Quantity       int
	At             time.Time
}

// recorderScheduler captures Schedule calls instead of arming timers.
type recorderScheduler struct {
	mu    sync.Mutex
	calls []scheduleCall
}

func (s *recorderScheduler) Schedule(donationID string, organizationID uint, quantity int, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, scheduleCall{donationID, organizationID, quantity, at})
}

func (s *recorderScheduler) all() []scheduleCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]scheduleCall(nil), s.calls...)
}
