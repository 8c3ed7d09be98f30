package repository

import (
	"lifeline-plus/internal/domain/entity"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type EmergencyAlertRepository interface {
	Create(db *gorm.DB, alert *entity.EmergencyAlert) error
	FindByID(db *gorm.DB, id uuid.UUID) (*entity.EmergencyAlert, error)
	FindAll(db *gorm.DB, filter entity.AlertFilter) ([]entity.EmergencyAlert, error)
	// UpdateStatus applies fields only while the alert still matches guard.
	// Returns affected rows: 0 means another writer moved the alert first.
	UpdateStatus(db *gorm.DB, id uuid.UUID, guard entity.AlertGuard, fields map[string]interface{}) (int64, error)
	// UpdateNotification records a dispatch result unless the alert already
	// carries a provider message id. Returns affected rows.
	UpdateNotification(db *gorm.DB, id uuid.UUID, sid, dispatchErr string) (int64, error)
}
