package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/anonto42/meta-v/backend/internal/models"
	"gorm.io/gorm"
)

// RepairRepository stores relationship operations left half-applied
type RepairRepository interface {
	RecordRepair(ctx context.Context, rec *models.RepairRecord) error
	ListUnresolved(ctx context.Context) ([]models.RepairRecord, error)
	MarkResolved(ctx context.Context, id uint) error
}

// PostgresRepairRepository implements RepairRepository for PostgreSQL
type PostgresRepairRepository struct {
	db *gorm.DB
}

// NewPostgresRepairRepository creates a new PostgresRepairRepository
func NewPostgresRepairRepository(db *gorm.DB) *PostgresRepairRepository {
	return &PostgresRepairRepository{db: db}
}

// RecordRepair inserts a repair record
func (r *PostgresRepairRepository) RecordRepair(ctx context.Context, rec *models.RepairRecord) error {
	return r.db.WithContext(ctx).Create(rec).Error
}

// ListUnresolved retrieves open repair records, oldest first
func (r *PostgresRepairRepository) ListUnresolved(ctx context.Context) ([]models.RepairRecord, error) {
	var records []models.RepairRecord
	err := r.db.WithContext(ctx).
		Where("resolved_at IS NULL").
		Order("created_at asc").
		Find(&records).Error
	return records, err
}

// MarkResolved closes a repair record
func (r *PostgresRepairRepository) MarkResolved(ctx context.Context, id uint) error {
	var rec models.RepairRecord
	if err := r.db.WithContext(ctx).First(&rec, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	}
	now := time.Now()
	return r.db.WithContext(ctx).Model(&rec).Update("resolved_at", &now).Error
}
