package repository

import (
	"errors"

	"lifeline-plus/internal/domain/entity"
	domainRepo "lifeline-plus/internal/domain/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type emergencyAlertRepository struct{}

func NewEmergencyAlertRepository() domainRepo.EmergencyAlertRepository {
	return &emergencyAlertRepository{}
}

func (r *emergencyAlertRepository) Create(db *gorm.DB, alert *entity.EmergencyAlert) error {
	return db.Create(alert).Error
}

func (r *emergencyAlertRepository) FindByID(db *gorm.DB, id uuid.UUID) (*entity.EmergencyAlert, error) {
	var alert entity.EmergencyAlert
	err := db.Where("id = ?", id).First(&alert).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &alert, nil
}

func (r *emergencyAlertRepository) FindAll(db *gorm.DB, filter entity.AlertFilter) ([]entity.EmergencyAlert, error) {
	var alerts []entity.EmergencyAlert
	query := db.Model(&entity.EmergencyAlert{})
	if len(filter.Statuses) > 0 {
		query = query.Where("status IN ?", filter.Statuses)
	}
	if filter.AssignedDoctorID != nil {
		query = query.Where("assigned_doctor_id = ?", *filter.AssignedDoctorID)
	}
	if filter.PatientID != nil {
		query = query.Where("patient_id = ?", *filter.PatientID)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if err := query.Order("created_at DESC").Find(&alerts).Error; err != nil {
		return nil, err
	}
	return alerts, nil
}

// UpdateStatus is a compare-and-set on status, so two doctors racing for the
// same alert cannot both win.
func (r *emergencyAlertRepository) UpdateStatus(db *gorm.DB, id uuid.UUID, guard entity.AlertGuard, fields map[string]interface{}) (int64, error) {
	query := db.Model(&entity.EmergencyAlert{}).Where("id = ? AND status = ?", id, guard.Status)
	if guard.AssignedDoctorID != nil {
		query = query.Where("assigned_doctor_id = ?", *guard.AssignedDoctorID)
	}
	result := query.Updates(fields)
	return result.RowsAffected, result.Error
}

func (r *emergencyAlertRepository) UpdateNotification(db *gorm.DB, id uuid.UUID, sid, dispatchErr string) (int64, error) {
	result := db.Model(&entity.EmergencyAlert{}).
		Where("id = ? AND (notification_sid IS NULL OR notification_sid = '')", id).
		Updates(map[string]interface{}{
			"notification_sid":   sid,
			"notification_error": dispatchErr,
		})
	return result.RowsAffected, result.Error
}
