package usecase

import (
	"testing"

	"lifeline-plus/internal/delivery/dto"
	"lifeline-plus/internal/domain/entity"
	"lifeline-plus/internal/repository"
	"lifeline-plus/internal/service"
	"lifeline-plus/internal/testutil"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpdateSelfProfile(t *testing.T) {
	db := testutil.NewDB(t)
	log := testutil.QuietLogger()
	uc := NewPatientProfileUsecase(db, log,
		repository.NewPatientProfileRepository(),
		service.NewAuditService(db, log, repository.NewAuditLogRepository()),
	)

	user := testutil.SeedUser(t, db, "jo@example.com", entity.RoleIDPatient)
	require.NoError(t, db.Create(&entity.PatientProfile{UserID: user.ID, PhoneNumber: "555-1000", Address: "1 Main St"}).Error)

	resp, err := uc.UpdateSelfProfile(patientCtx(user.ID), &dto.PatientUpdateSelfRequest{PhoneNumber: " 555-2000 "})
	require.NoError(t, err)
	assert.Equal(t, "555-2000", resp.PhoneNumber)
	assert.Equal(t, "1 Main St", resp.Address)

	var stored entity.PatientProfile
	require.NoError(t, db.First(&stored, "user_id = ?", user.ID).Error)
	assert.Equal(t, "555-2000", stored.PhoneNumber)

	var count int64
	db.Model(&entity.AuditLog{}).Where("action = ?", entity.AuditActionPatientUpdate).Count(&count)
	assert.Equal(t, int64(1), count)

	// nothing to change: no write, no audit entry
	_, err = uc.UpdateSelfProfile(patientCtx(user.ID), &dto.PatientUpdateSelfRequest{})
	require.NoError(t, err)
	db.Model(&entity.AuditLog{}).Where("action = ?", entity.AuditActionPatientUpdate).Count(&count)
	assert.Equal(t, int64(1), count)

	_, err = uc.UpdateSelfProfile(patientCtx(uuid.New()), &dto.PatientUpdateSelfRequest{Address: "x"})
	assert.ErrorIs(t, err, ErrPatientNotFound)
}

func TestGetSelfPatientProfile(t *testing.T) {
	db := testutil.NewDB(t)
	log := testutil.QuietLogger()
	uc := NewPatientProfileUsecase(db, log,
		repository.NewPatientProfileRepository(),
		service.NewAuditService(db, log, repository.NewAuditLogRepository()),
	)

	user := testutil.SeedUser(t, db, "sam@example.com", entity.RoleIDPatient)
	require.NoError(t, db.Create(&entity.PatientProfile{UserID: user.ID, PhoneNumber: "555-3000"}).Error)

	resp, err := uc.GetSelfProfile(patientCtx(user.ID))
	require.NoError(t, err)
	assert.Equal(t, user.ID, resp.UserID)
	assert.Equal(t, "555-3000", resp.PhoneNumber)

	_, err = uc.GetSelfProfile(patientCtx(uuid.New()))
	assert.ErrorIs(t, err, ErrPatientNotFound)
}
