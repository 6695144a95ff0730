package repositories

import (
	"errors"
	"log"
	"time"

	"github.com/foodbridge/backend/internal/models"
	"gorm.io/gorm"
)

// CapacityRepository defines the interface for organization capacity operations.
// Load counters are changed only through guarded single-statement updates so
// that concurrent reservations can never push a counter past its ceiling.
type CapacityRepository interface {
	GetByOrganizationID(organizationID uint) (*models.OrganizationCapacity, error)
	CreateCapacity(capacity *models.OrganizationCapacity) error
	UpdateSettings(capacity *models.OrganizationCapacity) error
	ListActive() ([]models.OrganizationCapacity, error)
	ResetIfNewDay(organizationID uint, now time.Time) error
	ReserveCapacity(organizationID uint, servings int) error
	ReleaseCapacity(organizationID uint, servings int) error
}

// PostgresCapacityRepository implements CapacityRepository for PostgreSQL
type PostgresCapacityRepository struct {
	db *gorm.DB
}

// NewPostgresCapacityRepository creates a new PostgresCapacityRepository
func NewPostgresCapacityRepository(db *gorm.DB) *PostgresCapacityRepository {
	return &PostgresCapacityRepository{db: db}
}

// GetByOrganizationID retrieves capacity settings for an organization
func (r *PostgresCapacityRepository) GetByOrganizationID(organizationID uint) (*models.OrganizationCapacity, error) {
	var capacity models.OrganizationCapacity
	if err := r.db.Where("organization_id = ?", organizationID).First(&capacity).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.ErrNotFound
		}
		return nil, err
	}
	return &capacity, nil
}

// CreateCapacity creates capacity settings for an organization
func (r *PostgresCapacityRepository) CreateCapacity(capacity *models.OrganizationCapacity) error {
	return r.db.Create(capacity).Error
}

// UpdateSettings persists configuration changes (not load counters)
func (r *PostgresCapacityRepository) UpdateSettings(capacity *models.OrganizationCapacity) error {
	return r.db.Save(capacity).Error
}

// ListActive retrieves all active organization capacities in insertion order.
// The matcher relies on this order for stable tie-breaking.
func (r *PostgresCapacityRepository) ListActive() ([]models.OrganizationCapacity, error) {
	var capacities []models.OrganizationCapacity
	if err := r.db.Where("active = ?", true).Order("id ASC").Find(&capacities).Error; err != nil {
		return nil, err
	}
	return capacities, nil
}

// ResetIfNewDay zeroes the daily counters if the last reset was before the
// current calendar day. The date guard is in the WHERE clause, so concurrent
// callers reset at most once per organization per day.
func (r *PostgresCapacityRepository) ResetIfNewDay(organizationID uint, now time.Time) error {
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return r.db.Model(&models.OrganizationCapacity{}).
		Where("organization_id = ? AND last_reset_date < ?", organizationID, startOfDay).
		Updates(map[string]interface{}{
			"current_daily_load":    0,
			"current_servings_load": 0,
			"last_reset_date":       startOfDay,
		}).Error
}

// ReserveCapacity atomically claims one donation slot and the given servings.
// Both ceilings are enforced inside the UPDATE itself; zero rows affected
// means the organization had no room at the moment of commit.
func (r *PostgresCapacityRepository) ReserveCapacity(organizationID uint, servings int) error {
	res := r.db.Model(&models.OrganizationCapacity{}).
		Where("organization_id = ? AND current_daily_load < max_daily_donations AND current_servings_load + ? <= max_servings_per_day",
			organizationID, servings).
		Updates(map[string]interface{}{
			"current_daily_load":    gorm.Expr("current_daily_load + 1"),
			"current_servings_load": gorm.Expr("current_servings_load + ?", servings),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return models.ErrCapacityExhausted
	}
	return nil
}

// ReleaseCapacity subtracts exactly what a prior reservation added. The
// GREATEST guard only protects against going negative after an out-of-band
// daily reset; it never changes the amount subtracted otherwise.
func (r *PostgresCapacityRepository) ReleaseCapacity(organizationID uint, servings int) error {
	res := r.db.Model(&models.OrganizationCapacity{}).
		Where("organization_id = ?", organizationID).
		Updates(map[string]interface{}{
			"current_daily_load":    gorm.Expr("GREATEST(current_daily_load - 1, 0)"),
			"current_servings_load": gorm.Expr("GREATEST(current_servings_load - ?, 0)", servings),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		log.Printf("capacity rollback matched no row for organization %d; counters need reconciliation", organizationID)
	}
	return nil
}
