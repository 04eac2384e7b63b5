package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/retrofails/backend/internal/apperrors"
	"github.com/retrofails/backend/internal/logger"
	"github.com/retrofails/backend/internal/models"
	"gorm.io/gorm"
)

// IncidentRepository serves incidents straight from Postgres.
type IncidentRepository struct {
	db *gorm.DB
}

func NewIncidentRepository(db *gorm.DB) *IncidentRepository {
	return &IncidentRepository{db: db}
}

func (ir *IncidentRepository) List(ctx context.Context) ([]models.Incident, error) {
	var incidents []models.Incident
	if err := ir.db.WithContext(ctx).Order("created_at asc, id asc").Find(&incidents).Error; err != nil {
		logger.WithError(err, "incident_repository").Error("Failed to list incidents")
		return nil, apperrors.Internal("Failed to fetch incidents", err)
	}
	return incidents, nil
}

func (ir *IncidentRepository) Get(ctx context.Context, id models.IncidentID) (*models.Incident, error) {
	var incident models.Incident
	err := ir.db.WithContext(ctx).Where("id = ?", id.String()).First(&incident).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NotFound("Incident not found")
	}
	if err != nil {
		return nil, apperrors.Internal("Failed to fetch incident", err)
	}
	return &incident, nil
}

func (ir *IncidentRepository) Create(ctx context.Context, _ string, inc models.Incident) (*models.Incident, error) {
	if inc.ID == "" {
		inc.ID = models.IncidentID(uuid.NewString())
	}
	if err := ir.db.WithContext(ctx).Create(&inc).Error; err != nil {
		logger.WithIncident(inc.ID.String(), "incident_repository").WithError(err).Error("Failed to create incident")
		return nil, apperrors.Internal("Failed to create incident", err)
	}
	return &inc, nil
}

func (ir *IncidentRepository) Update(ctx context.Context, _ string, id models.IncidentID, patch IncidentPatch) (*models.Incident, error) {
	var incident models.Incident
	err := ir.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", id.String()).First(&incident).Error; err != nil {
			return err
		}
		return tx.Model(&incident).Updates(patch.Changes()).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NotFound("Incident not found")
	}
	if err != nil {
		logger.WithIncident(id.String(), "incident_repository").WithError(err).Error("Failed to update incident")
		return nil, apperrors.Internal("Failed to update incident", err)
	}
	return ir.Get(ctx, id)
}

func (ir *IncidentRepository) Delete(ctx context.Context, _ string, ids []models.IncidentID) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	raw := make([]string, len(ids))
	for i, id := range ids {
		raw[i] = id.String()
	}
	result := ir.db.WithContext(ctx).Where("id IN ?", raw).Delete(&models.Incident{})
	if result.Error != nil {
		return 0, apperrors.Internal("Failed to delete incidents", result.Error)
	}
	return int(result.RowsAffected), nil
}

func (ir *IncidentRepository) Ping(ctx context.Context) error {
	sqlDB, err := ir.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database handle: %w", err)
	}
	return sqlDB.PingContext(ctx)
}
