package service

import (
	"context"

	"lifeline-plus/internal/domain/entity"
	"lifeline-plus/internal/domain/repository"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// AuditService records who changed which alert, appointment or account.
type AuditService interface {
	LogCreate(ctx context.Context, tx *gorm.DB, actorID *uuid.UUID, action string, entityName string, entityID string, newValue interface{}) error
	LogTransition(ctx context.Context, tx *gorm.DB, actorID *uuid.UUID, action string, entityName string, entityID string, from, to string) error
	LogUpdate(ctx context.Context, tx *gorm.DB, actorID *uuid.UUID, action string, entityName string, entityID string, oldValue, newValue interface{}) error
}

type auditService struct {
	db        *gorm.DB
	log       *logrus.Logger
	auditRepo repository.AuditLogRepository
}

func NewAuditService(db *gorm.DB, log *logrus.Logger, auditRepo repository.AuditLogRepository) AuditService {
	return &auditService{
		db:        db,
		log:       log,
		auditRepo: auditRepo,
	}
}

func (s *auditService) LogCreate(ctx context.Context, tx *gorm.DB, actorID *uuid.UUID, action string, entityName string, entityID string, newValue interface{}) error {
	return s.write(ctx, tx, actorID, action, entity.AuditMetadata{
		"entity":    entityName,
		"entity_id": entityID,
		"new_value": newValue,
	})
}

// LogTransition records a status change such as active -> assigned
func (s *auditService) LogTransition(ctx context.Context, tx *gorm.DB, actorID *uuid.UUID, action string, entityName string, entityID string, from, to string) error {
	return s.write(ctx, tx, actorID, action, entity.AuditMetadata{
		"entity":    entityName,
		"entity_id": entityID,
		"from":      from,
		"to":        to,
	})
}

func (s *auditService) LogUpdate(ctx context.Context, tx *gorm.DB, actorID *uuid.UUID, action string, entityName string, entityID string, oldValue, newValue interface{}) error {
	return s.write(ctx, tx, actorID, action, entity.AuditMetadata{
		"entity":    entityName,
		"entity_id": entityID,
		"old_value": oldValue,
		"new_value": newValue,
	})
}

func (s *auditService) write(ctx context.Context, tx *gorm.DB, actorID *uuid.UUID, action string, metadata entity.AuditMetadata) error {
	if tx == nil {
		tx = s.db
	}

	auditLog := &entity.AuditLog{
		UserID:   actorID,
		Action:   action,
		Metadata: metadata,
	}

	if err := s.auditRepo.Create(tx.WithContext(ctx), auditLog); err != nil {
		s.log.Warnf("Failed to create audit log %s: %+v", action, err)
		return err
	}

	return nil
}
