package usecase

import (
	"context"
	"errors"
	"time"

	"lifeline-plus/internal/converter"
	"lifeline-plus/internal/delivery/dto"
	"lifeline-plus/internal/delivery/http/middleware"
	"lifeline-plus/internal/domain/entity"
	"lifeline-plus/internal/domain/repository"
	"lifeline-plus/internal/service"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

var (
	ErrAppointmentNotFound      = errors.New("appointment not found")
	ErrAppointmentNotOwned      = errors.New("appointment does not belong to you")
	ErrAppointmentInPast        = errors.New("cannot book an appointment in the past")
	ErrAppointmentNotPending    = errors.New("appointment is not pending")
	ErrAppointmentNotCancelable = errors.New("appointment is already cancelled")
	ErrDoctorUnavailable        = errors.New("doctor is not accepting appointments")
)

const appointmentEntityName = "appointment"

type AppointmentUsecase interface {
	BookAppointment(ctx context.Context, req *dto.CreateAppointmentRequest) (*dto.AppointmentResponse, error)
	GetMyAppointments(ctx context.Context) (*dto.AppointmentListResponse, error)
	CancelAppointment(ctx context.Context, appointmentID uuid.UUID) error
	GetDoctorAppointments(ctx context.Context) (*dto.AppointmentListResponse, error)
	ConfirmAppointment(ctx context.Context, appointmentID uuid.UUID) (*dto.AppointmentResponse, error)
}

type appointmentUsecase struct {
	db                *gorm.DB
	log               *logrus.Logger
	appointmentRepo   repository.AppointmentRepository
	doctorProfileRepo repository.DoctorProfileRepository
	auditService      service.AuditService
	now               func() time.Time
}

func NewAppointmentUsecase(
	db *gorm.DB,
	log *logrus.Logger,
	appointmentRepo repository.AppointmentRepository,
	doctorProfileRepo repository.DoctorProfileRepository,
	auditService service.AuditService,
) AppointmentUsecase {
	return &appointmentUsecase{
		db:                db,
		log:               log,
		appointmentRepo:   appointmentRepo,
		doctorProfileRepo: doctorProfileRepo,
		auditService:      auditService,
		now:               time.Now,
	}
}

// BookAppointment creates a pending appointment with an available doctor.
//
// Flow:
//  1. Validate the date is in the future
//  2. Validate the doctor exists and is available
//  3. Insert appointment and audit entry in one transaction
func (u *appointmentUsecase) BookAppointment(ctx context.Context, req *dto.CreateAppointmentRequest) (*dto.AppointmentResponse, error) {
	userID, ok := middleware.GetUserIDFromContext(ctx)
	if !ok {
		return nil, errors.New("user not found in context")
	}

	if !req.AppointmentDate.After(u.now()) {
		return nil, ErrAppointmentInPast
	}

	tx := u.db.WithContext(ctx).Begin()
	defer tx.Rollback()

	doctor, err := u.doctorProfileRepo.FindByUserID(tx, req.DoctorID)
	if err != nil {
		u.log.Warnf("Failed to find doctor %s: %+v", req.DoctorID, err)
		return nil, err
	}
	if doctor == nil {
		return nil, ErrDoctorNotFound
	}
	if !doctor.IsAvailable {
		return nil, ErrDoctorUnavailable
	}

	appointment := &entity.Appointment{
		PatientID:       userID,
		DoctorID:        req.DoctorID,
		AppointmentDate: req.AppointmentDate.UTC(),
		Notes:           req.Notes,
		Status:          entity.AppointmentStatusPending,
	}

	if err := u.appointmentRepo.Create(tx, appointment); err != nil {
		u.log.Warnf("Failed to create appointment: %+v", err)
		return nil, err
	}

	if err := u.auditService.LogCreate(ctx, tx, &userID, entity.AuditActionAppointmentCreate, appointmentEntityName, appointment.ID.String(), map[string]interface{}{
		"doctor_id":        req.DoctorID,
		"appointment_date": appointment.AppointmentDate,
	}); err != nil {
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		u.log.Warnf("Failed commit transaction: %+v", err)
		return nil, err
	}

	appointment.Doctor = *doctor
	u.log.Infof("Appointment booked: id=%s, doctor=%s, date=%s", appointment.ID, req.DoctorID, appointment.AppointmentDate.Format(time.RFC3339))
	return converter.AppointmentToResponse(appointment), nil
}

func (u *appointmentUsecase) GetMyAppointments(ctx context.Context) (*dto.AppointmentListResponse, error) {
	userID, ok := middleware.GetUserIDFromContext(ctx)
	if !ok {
		return nil, errors.New("user not found in context")
	}

	appointments, err := u.appointmentRepo.FindByPatientID(u.db.WithContext(ctx), userID)
	if err != nil {
		u.log.Warnf("Failed to find appointments for patient %s: %+v", userID, err)
		return nil, err
	}

	return &dto.AppointmentListResponse{
		Appointments: converter.AppointmentsToResponses(appointments),
		Total:        len(appointments),
	}, nil
}

// CancelAppointment cancels the patient's own pending or confirmed appointment.
func (u *appointmentUsecase) CancelAppointment(ctx context.Context, appointmentID uuid.UUID) error {
	userID, ok := middleware.GetUserIDFromContext(ctx)
	if !ok {
		return errors.New("user not found in context")
	}

	tx := u.db.WithContext(ctx).Begin()
	defer tx.Rollback()

	appointment, err := u.appointmentRepo.FindByID(tx, appointmentID)
	if err != nil {
		u.log.Warnf("Failed to find appointment %s: %+v", appointmentID, err)
		return err
	}
	if appointment == nil {
		return ErrAppointmentNotFound
	}
	if appointment.PatientID != userID {
		return ErrAppointmentNotOwned
	}

	rows, err := u.appointmentRepo.UpdateStatus(tx, appointmentID,
		[]entity.AppointmentStatus{entity.AppointmentStatusPending, entity.AppointmentStatusConfirmed},
		entity.AppointmentStatusCancelled)
	if err != nil {
		u.log.Warnf("Failed to cancel appointment %s: %+v", appointmentID, err)
		return err
	}
	if rows == 0 {
		return ErrAppointmentNotCancelable
	}

	if err := u.auditService.LogTransition(ctx, tx, &userID, entity.AuditActionAppointmentCancel, appointmentEntityName, appointmentID.String(), string(appointment.Status), string(entity.AppointmentStatusCancelled)); err != nil {
		return err
	}

	if err := tx.Commit().Error; err != nil {
		u.log.Warnf("Failed commit transaction: %+v", err)
		return err
	}

	u.log.Infof("Appointment cancelled: id=%s", appointmentID)
	return nil
}

func (u *appointmentUsecase) GetDoctorAppointments(ctx context.Context) (*dto.AppointmentListResponse, error) {
	doctorID, ok := middleware.GetUserIDFromContext(ctx)
	if !ok {
		return nil, errors.New("user not found in context")
	}

	appointments, err := u.appointmentRepo.FindByDoctorID(u.db.WithContext(ctx), doctorID)
	if err != nil {
		u.log.Warnf("Failed to find appointments for doctor %s: %+v", doctorID, err)
		return nil, err
	}

	return &dto.AppointmentListResponse{
		Appointments: converter.AppointmentsToResponses(appointments),
		Total:        len(appointments),
	}, nil
}

// ConfirmAppointment confirms a pending appointment booked with the calling doctor.
func (u *appointmentUsecase) ConfirmAppointment(ctx context.Context, appointmentID uuid.UUID) (*dto.AppointmentResponse, error) {
	doctorID, ok := middleware.GetUserIDFromContext(ctx)
	if !ok {
		return nil, errors.New("user not found in context")
	}

	tx := u.db.WithContext(ctx).Begin()
	defer tx.Rollback()

	appointment, err := u.appointmentRepo.FindByID(tx, appointmentID)
	if err != nil {
		u.log.Warnf("Failed to find appointment %s: %+v", appointmentID, err)
		return nil, err
	}
	if appointment == nil {
		return nil, ErrAppointmentNotFound
	}
	if appointment.DoctorID != doctorID {
		return nil, ErrAppointmentNotOwned
	}

	rows, err := u.appointmentRepo.UpdateStatus(tx, appointmentID,
		[]entity.AppointmentStatus{entity.AppointmentStatusPending},
		entity.AppointmentStatusConfirmed)
	if err != nil {
		u.log.Warnf("Failed to confirm appointment %s: %+v", appointmentID, err)
		return nil, err
	}
	if rows == 0 {
		return nil, ErrAppointmentNotPending
	}

	if err := u.auditService.LogTransition(ctx, tx, &doctorID, entity.AuditActionAppointmentConfirm, appointmentEntityName, appointmentID.String(), string(entity.AppointmentStatusPending), string(entity.AppointmentStatusConfirmed)); err != nil {
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		u.log.Warnf("Failed commit transaction: %+v", err)
		return nil, err
	}

	appointment.Status = entity.AppointmentStatusConfirmed
	return converter.AppointmentToResponse(appointment), nil
}
