package usecase

import (
	"context"
	"errors"
	"strings"

	"lifeline-plus/internal/converter"
	"lifeline-plus/internal/delivery/dto"
	"lifeline-plus/internal/delivery/http/middleware"
	"lifeline-plus/internal/domain/entity"
	"lifeline-plus/internal/domain/repository"
	"lifeline-plus/internal/service"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

var (
	ErrDoctorNotFound     = errors.New("doctor not found")
	ErrIncompleteLocation = errors.New("latitude and longitude must be sent together")
)

type DoctorProfileUsecase interface {
	GetAvailableDoctors(ctx context.Context, specialization string) (*dto.DoctorListResponse, error)
	GetSelfProfile(ctx context.Context) (*dto.DoctorProfileResponse, error)
	UpdateSelfStatus(ctx context.Context, req *dto.UpdateDoctorStatusRequest) (*dto.DoctorProfileResponse, error)
}

type doctorProfileUsecase struct {
	db                *gorm.DB
	log               *logrus.Logger
	doctorProfileRepo repository.DoctorProfileRepository
	auditService      service.AuditService
}

func NewDoctorProfileUsecase(
	db *gorm.DB,
	log *logrus.Logger,
	doctorProfileRepo repository.DoctorProfileRepository,
	auditService service.AuditService,
) DoctorProfileUsecase {
	return &doctorProfileUsecase{
		db:                db,
		log:               log,
		doctorProfileRepo: doctorProfileRepo,
		auditService:      auditService,
	}
}

// GetAvailableDoctors lists doctors patients can book, optionally filtered by specialization.
func (u *doctorProfileUsecase) GetAvailableDoctors(ctx context.Context, specialization string) (*dto.DoctorListResponse, error) {
	profiles, err := u.doctorProfileRepo.FindAvailable(u.db.WithContext(ctx), strings.TrimSpace(specialization))
	if err != nil {
		u.log.Warnf("Failed to find available doctors: %+v", err)
		return nil, err
	}

	return &dto.DoctorListResponse{
		Doctors: converter.DoctorsToResponses(profiles),
		Total:   len(profiles),
	}, nil
}

func (u *doctorProfileUsecase) GetSelfProfile(ctx context.Context) (*dto.DoctorProfileResponse, error) {
	userID, ok := middleware.GetUserIDFromContext(ctx)
	if !ok {
		return nil, errors.New("user not found in context")
	}

	profile, err := u.doctorProfileRepo.FindByUserID(u.db.WithContext(ctx), userID)
	if err != nil {
		u.log.Warnf("Failed to find doctor profile: %+v", err)
		return nil, err
	}
	if profile == nil {
		return nil, ErrDoctorNotFound
	}

	return converter.DoctorProfileToResponse(profile), nil
}

// UpdateSelfStatus changes availability, contact phone and the position
// used to rank alerts by distance. Nil fields are left unchanged.
func (u *doctorProfileUsecase) UpdateSelfStatus(ctx context.Context, req *dto.UpdateDoctorStatusRequest) (*dto.DoctorProfileResponse, error) {
	userID, ok := middleware.GetUserIDFromContext(ctx)
	if !ok {
		return nil, errors.New("user not found in context")
	}
	if (req.Latitude == nil) != (req.Longitude == nil) {
		return nil, ErrIncompleteLocation
	}

	tx := u.db.WithContext(ctx).Begin()
	defer tx.Rollback()

	profile, err := u.doctorProfileRepo.FindByUserID(tx, userID)
	if err != nil {
		u.log.Warnf("Failed to find doctor profile: %+v", err)
		return nil, err
	}
	if profile == nil {
		return nil, ErrDoctorNotFound
	}

	oldValue := converter.DoctorProfileToResponse(profile)

	if req.IsAvailable != nil {
		profile.IsAvailable = *req.IsAvailable
	}
	if phone := strings.TrimSpace(req.PhoneNumber); phone != "" {
		profile.PhoneNumber = phone
	}
	if req.Latitude != nil {
		profile.Latitude = req.Latitude
		profile.Longitude = req.Longitude
	}

	if err := u.doctorProfileRepo.Update(tx, profile); err != nil {
		u.log.Warnf("Failed to update doctor profile: %+v", err)
		return nil, err
	}

	newValue := converter.DoctorProfileToResponse(profile)
	if err := u.auditService.LogUpdate(ctx, tx, &userID, entity.AuditActionDoctorUpdate, "doctor_profile", userID.String(), oldValue, newValue); err != nil {
		u.log.Warnf("Failed to create audit log: %+v", err)
	}

	if err := tx.Commit().Error; err != nil {
		u.log.Warnf("Failed commit transaction: %+v", err)
		return nil, err
	}

	return newValue, nil
}
