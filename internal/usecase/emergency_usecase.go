package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"lifeline-plus/internal/converter"
	"lifeline-plus/internal/delivery/dto"
	"lifeline-plus/internal/delivery/http/middleware"
	"lifeline-plus/internal/domain/entity"
	"lifeline-plus/internal/domain/repository"
	"lifeline-plus/internal/infrastructure/geocoder"
	"lifeline-plus/internal/infrastructure/sms"
	"lifeline-plus/internal/service"
	"lifeline-plus/internal/service/alertfeed"
	"lifeline-plus/internal/service/location"
	"lifeline-plus/pkg/geo"
	"lifeline-plus/pkg/metrics"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

var (
	ErrAlertFieldsRequired  = errors.New("patient name and phone are required")
	ErrInvalidEmergencyType = errors.New("invalid emergency type")
	ErrAlertNotFound        = errors.New("alert not found")
	ErrAlertNotAssignable   = errors.New("alert is no longer active")
	ErrAlertNotResolvable   = errors.New("alert is not assigned to you")
	ErrMissingCoordinates   = errors.New("Missing coordinates")
	ErrInvalidCoordinates   = errors.New("invalid coordinates")
)

// AlertOutcome is where an alert submission ended up.
type AlertOutcome string

const (
	OutcomeSuccess AlertOutcome = "success"
	OutcomePartial AlertOutcome = "partial"
	OutcomeFailure AlertOutcome = "failure"
)

const (
	openAlertsLimit = 100
	notifyTimeout   = 15 * time.Second
	unknownLocation = "Unknown Location"
	alertEntityName = "emergency_alert"
)

// LocationAcquirer resolves a best-effort position for an alert.
type LocationAcquirer interface {
	Acquire(ctx context.Context, req location.Request) (location.Position, error)
}

type EmergencyUsecase interface {
	SubmitAlert(ctx context.Context, req *dto.SubmitAlertRequest) (*dto.SubmitAlertResponse, error)
	ListMyAlerts(ctx context.Context) (*dto.AlertListResponse, error)
	ListOpenAlerts(ctx context.Context) (*dto.AlertListResponse, error)
	AssignAlert(ctx context.Context, alertID uuid.UUID) (*dto.AlertResponse, error)
	ResolveAlert(ctx context.Context, alertID uuid.UUID) (*dto.AlertResponse, error)
	SendSOS(ctx context.Context, req *dto.SendSOSRequest) (string, error)
	SendRawAlert(ctx context.Context, req *dto.SendAlertRequest) (string, error)
	NotifyEmergencySMS(ctx context.Context, req *dto.EmergencySMSRequest) (string, error)
}

type emergencyUsecase struct {
	db                *gorm.DB
	log               *logrus.Logger
	alertRepo         repository.EmergencyAlertRepository
	doctorProfileRepo repository.DoctorProfileRepository
	auditService      service.AuditService
	locator           LocationAcquirer
	dispatcher        sms.Dispatcher
	geocoder          geocoder.ReverseGeocoder
	publisher         alertfeed.Publisher
	metrics           *metrics.Metrics
	receiverPhone     string
}

func NewEmergencyUsecase(
	db *gorm.DB,
	log *logrus.Logger,
	alertRepo repository.EmergencyAlertRepository,
	doctorProfileRepo repository.DoctorProfileRepository,
	auditService service.AuditService,
	locator LocationAcquirer,
	dispatcher sms.Dispatcher,
	geocoder geocoder.ReverseGeocoder,
	publisher alertfeed.Publisher,
	metrics *metrics.Metrics,
	receiverPhone string,
) EmergencyUsecase {
	return &emergencyUsecase{
		db:                db,
		log:               log,
		alertRepo:         alertRepo,
		doctorProfileRepo: doctorProfileRepo,
		auditService:      auditService,
		locator:           locator,
		dispatcher:        dispatcher,
		geocoder:          geocoder,
		publisher:         publisher,
		metrics:           metrics,
		receiverPhone:     receiverPhone,
	}
}

// SubmitAlert runs one emergency submission.
//
// Flow:
//  1. Validate input (no side effects on failure)
//  2. Acquire a location; on failure continue with 0,0
//  3. Persist the alert; on failure stop, nothing is sent
//  4. Publish to the feed and audit (best effort)
//  5. Send one SMS to the receiver; on failure the alert stays active and
//     the outcome is partial
func (u *emergencyUsecase) SubmitAlert(ctx context.Context, req *dto.SubmitAlertRequest) (*dto.SubmitAlertResponse, error) {
	name := strings.TrimSpace(req.PatientName)
	phone := strings.TrimSpace(req.PatientPhone)
	if name == "" || phone == "" {
		return nil, ErrAlertFieldsRequired
	}
	emergencyType := entity.EmergencyType(strings.ToLower(strings.TrimSpace(req.EmergencyType)))
	if !emergencyType.Valid() {
		return nil, ErrInvalidEmergencyType
	}

	pos, err := u.locator.Acquire(ctx, location.Request{
		Latitude:   req.Latitude,
		Longitude:  req.Longitude,
		CapturedAt: req.CapturedAt,
		Phone:      phone,
		ClientIP:   req.ClientIP,
	})
	if err != nil {
		u.log.Warnf("Location unavailable for alert from %s, continuing with 0,0: %v", name, err)
		pos = location.Degraded
	}
	u.metrics.LocationSource(string(pos.Source))

	alert := &entity.EmergencyAlert{
		PatientName:    name,
		PatientPhone:   phone,
		EmergencyType:  emergencyType,
		Description:    strings.TrimSpace(req.Description),
		Address:        strings.TrimSpace(req.Address),
		Latitude:       pos.Latitude,
		Longitude:      pos.Longitude,
		LocationSource: pos.Source,
		Status:         entity.AlertStatusActive,
	}
	if userID, ok := middleware.GetUserIDFromContext(ctx); ok {
		if role, _ := middleware.GetRoleFromContext(ctx); role == entity.RolePatient {
			alert.PatientID = &userID
		}
	}

	if err := u.alertRepo.Create(u.db.WithContext(ctx), alert); err != nil {
		u.metrics.AlertOutcome(string(OutcomeFailure))
		u.log.Errorf("Failed to persist emergency alert from %s: %+v", name, err)
		return nil, err
	}

	// The alert exists now, so a client hanging up must not skip the follow-up.
	// notifyTimeout bounds the audit, feed and store writes; the SMS call only
	// checks the context before it starts.
	notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()

	u.auditService.LogCreate(notifyCtx, nil, alert.PatientID, entity.AuditActionAlertCreate, alertEntityName, alert.ID.String(), map[string]interface{}{
		"emergency_type":  alert.EmergencyType,
		"location_source": alert.LocationSource,
	})
	u.publish(notifyCtx, alertfeed.EventAlertCreated, alert)

	resp := &dto.SubmitAlertResponse{Outcome: string(OutcomeSuccess)}

	sid, dispatchErr := u.dispatcher.Send(notifyCtx, u.receiverPhone, formatAlertMessage(alert))
	if dispatchErr != nil {
		u.log.Warnf("Alert %s saved but SMS failed: %+v", alert.ID, dispatchErr)
		alert.NotificationError = dispatchErr.Error()
		resp.Outcome = string(OutcomePartial)
		resp.Warning = "Alert saved but the SMS notification could not be sent"
	} else {
		alert.NotificationSID = sid
		resp.MessageSID = sid
	}

	if _, err := u.alertRepo.UpdateNotification(u.db.WithContext(notifyCtx), alert.ID, alert.NotificationSID, alert.NotificationError); err != nil {
		u.log.Warnf("Failed to record notification result for alert %s: %+v", alert.ID, err)
	}

	u.metrics.AlertOutcome(resp.Outcome)
	u.log.Infof("Emergency alert %s: type=%s source=%s outcome=%s", alert.ID, alert.EmergencyType, alert.LocationSource, resp.Outcome)

	resp.Alert = *converter.AlertToResponse(alert)
	return resp, nil
}

// ListMyAlerts returns the logged-in patient's alerts, newest first
func (u *emergencyUsecase) ListMyAlerts(ctx context.Context) (*dto.AlertListResponse, error) {
	userID, ok := middleware.GetUserIDFromContext(ctx)
	if !ok {
		return nil, errors.New("user not found in context")
	}

	alerts, err := u.alertRepo.FindAll(u.db.WithContext(ctx), entity.AlertFilter{PatientID: &userID})
	if err != nil {
		u.log.Warnf("Failed to find alerts for patient %s: %+v", userID, err)
		return nil, err
	}

	return &dto.AlertListResponse{
		Alerts: converter.AlertsToResponses(alerts),
		Total:  len(alerts),
	}, nil
}

// ListOpenAlerts is the doctor dashboard: active and assigned alerts,
// newest first, with the distance from the doctor when both positions are known.
func (u *emergencyUsecase) ListOpenAlerts(ctx context.Context) (*dto.AlertListResponse, error) {
	doctorID, ok := middleware.GetUserIDFromContext(ctx)
	if !ok {
		return nil, errors.New("user not found in context")
	}

	alerts, err := u.alertRepo.FindAll(u.db.WithContext(ctx), entity.AlertFilter{
		Statuses: []entity.AlertStatus{entity.AlertStatusActive, entity.AlertStatusAssigned},
		Limit:    openAlertsLimit,
	})
	if err != nil {
		u.log.Warnf("Failed to find open alerts: %+v", err)
		return nil, err
	}

	profile, err := u.doctorProfileRepo.FindByUserID(u.db.WithContext(ctx), doctorID)
	if err != nil {
		u.log.Warnf("Failed to find doctor profile %s: %+v", doctorID, err)
		return nil, err
	}

	responses := converter.AlertsToResponses(alerts)
	if profile != nil && profile.HasLocation() {
		for i := range alerts {
			if !alerts[i].HasLocation() {
				continue
			}
			km := geo.HaversineKm(*profile.Latitude, *profile.Longitude, alerts[i].Latitude, alerts[i].Longitude)
			responses[i].DistanceKm = &km
		}
	}

	return &dto.AlertListResponse{
		Alerts: responses,
		Total:  len(responses),
	}, nil
}

// AssignAlert claims an active alert for the calling doctor.
// The first doctor to claim wins; later claims get ErrAlertNotAssignable.
func (u *emergencyUsecase) AssignAlert(ctx context.Context, alertID uuid.UUID) (*dto.AlertResponse, error) {
	doctorID, ok := middleware.GetUserIDFromContext(ctx)
	if !ok {
		return nil, errors.New("user not found in context")
	}

	rows, err := u.alertRepo.UpdateStatus(u.db.WithContext(ctx), alertID,
		entity.AlertGuard{Status: entity.AlertStatusActive},
		map[string]interface{}{
			"status":             entity.AlertStatusAssigned,
			"assigned_doctor_id": doctorID,
		})
	if err != nil {
		u.log.Warnf("Failed to assign alert %s: %+v", alertID, err)
		return nil, err
	}
	if rows == 0 {
		return nil, u.transitionRejected(ctx, alertID, ErrAlertNotAssignable)
	}

	return u.afterTransition(ctx, alertID, doctorID, entity.AuditActionAlertAssign, entity.AlertStatusActive, entity.AlertStatusAssigned, alertfeed.EventAlertAssigned)
}

// ResolveAlert closes an alert. Only the assigned doctor can resolve it.
func (u *emergencyUsecase) ResolveAlert(ctx context.Context, alertID uuid.UUID) (*dto.AlertResponse, error) {
	doctorID, ok := middleware.GetUserIDFromContext(ctx)
	if !ok {
		return nil, errors.New("user not found in context")
	}

	rows, err := u.alertRepo.UpdateStatus(u.db.WithContext(ctx), alertID,
		entity.AlertGuard{Status: entity.AlertStatusAssigned, AssignedDoctorID: &doctorID},
		map[string]interface{}{
			"status":      entity.AlertStatusResolved,
			"resolved_at": time.Now().UTC(),
		})
	if err != nil {
		u.log.Warnf("Failed to resolve alert %s: %+v", alertID, err)
		return nil, err
	}
	if rows == 0 {
		return nil, u.transitionRejected(ctx, alertID, ErrAlertNotResolvable)
	}

	return u.afterTransition(ctx, alertID, doctorID, entity.AuditActionAlertResolve, entity.AlertStatusAssigned, entity.AlertStatusResolved, alertfeed.EventAlertResolved)
}

// transitionRejected tells a missing alert apart from one in the wrong state.
func (u *emergencyUsecase) transitionRejected(ctx context.Context, alertID uuid.UUID, conflict error) error {
	alert, err := u.alertRepo.FindByID(u.db.WithContext(ctx), alertID)
	if err != nil {
		u.log.Warnf("Failed to find alert %s: %+v", alertID, err)
		return err
	}
	if alert == nil {
		return ErrAlertNotFound
	}
	return conflict
}

func (u *emergencyUsecase) afterTransition(ctx context.Context, alertID, doctorID uuid.UUID, action string, from, to entity.AlertStatus, event alertfeed.EventType) (*dto.AlertResponse, error) {
	alert, err := u.alertRepo.FindByID(u.db.WithContext(ctx), alertID)
	if err != nil {
		u.log.Warnf("Failed to reload alert %s: %+v", alertID, err)
		return nil, err
	}
	if alert == nil {
		return nil, ErrAlertNotFound
	}

	u.auditService.LogTransition(ctx, nil, &doctorID, action, alertEntityName, alertID.String(), string(from), string(to))
	u.publish(ctx, event, alert)
	u.metrics.AlertTransition(string(to))

	u.log.Infof("Alert %s moved %s -> %s by doctor %s", alertID, from, to, doctorID)
	return converter.AlertToResponse(alert), nil
}

// SendSOS is the coordinates-only SOS: reverse geocode, then text the receiver.
// Nothing is persisted.
func (u *emergencyUsecase) SendSOS(ctx context.Context, req *dto.SendSOSRequest) (string, error) {
	if req.Latitude == nil || req.Longitude == nil {
		return "", ErrMissingCoordinates
	}
	lat, lng := *req.Latitude, *req.Longitude
	if !location.ValidCoordinates(lat, lng) {
		return "", ErrInvalidCoordinates
	}

	place, err := u.geocoder.Reverse(ctx, lat, lng)
	if err != nil {
		if !errors.Is(err, geocoder.ErrNoResult) {
			u.log.Warnf("Reverse geocoding failed for %.5f,%.5f: %+v", lat, lng, err)
		}
		place = unknownLocation
	}

	message := fmt.Sprintf("🚨 SOS Alert!\n📍 Location: %s\n🌐 %s", place, geo.MapsLink(lat, lng))
	sid, err := u.dispatcher.Send(ctx, u.receiverPhone, message)
	if err != nil {
		u.log.Errorf("SOS SMS failed: %+v", err)
		return "", err
	}

	return sid, nil
}

// SendRawAlert relays a caller-composed message to any number.
func (u *emergencyUsecase) SendRawAlert(ctx context.Context, req *dto.SendAlertRequest) (string, error) {
	sid, err := u.dispatcher.Send(ctx, strings.TrimSpace(req.To), req.Message)
	if err != nil {
		u.log.Warnf("Failed to send alert message: %+v", err)
		return "", err
	}
	return sid, nil
}

// NotifyEmergencySMS texts the emergency details for an alert that the
// client already saved. When the alert id is known and the alert has no
// delivered notification yet, the outcome is recorded on the alert.
func (u *emergencyUsecase) NotifyEmergencySMS(ctx context.Context, req *dto.EmergencySMSRequest) (string, error) {
	message := fmt.Sprintf("🚨 EMERGENCY ALERT 🚨\n\nType: %s\nLocation: %s\nContact: %s\n\nAlert ID: %s\n\nImmediate medical attention required!",
		req.EmergencyType, req.Location, req.Phone, req.AlertID)

	sid, sendErr := u.dispatcher.Send(ctx, strings.TrimSpace(req.Phone), message)

	if alertID, err := uuid.Parse(req.AlertID); err == nil {
		var dispatchErr string
		if sendErr != nil {
			dispatchErr = sendErr.Error()
		}
		rows, err := u.alertRepo.UpdateNotification(u.db.WithContext(context.WithoutCancel(ctx)), alertID, sid, dispatchErr)
		if err != nil {
			u.log.Warnf("Failed to record notification result for alert %s: %+v", alertID, err)
		} else if rows == 0 {
			u.log.Infof("Alert %s already has a delivered notification, result not recorded", alertID)
		}
	}

	if sendErr != nil {
		u.log.Errorf("Emergency SMS for alert %s failed: %+v", req.AlertID, sendErr)
		return "", sendErr
	}
	return sid, nil
}

func (u *emergencyUsecase) publish(ctx context.Context, eventType alertfeed.EventType, alert *entity.EmergencyAlert) {
	if u.publisher == nil {
		return
	}
	if err := u.publisher.Publish(ctx, alertfeed.Event{Type: eventType, Alert: *alert}); err != nil {
		u.log.Warnf("Failed to publish %s for alert %s: %+v", eventType, alert.ID, err)
	}
}

// formatAlertMessage builds the SMS sent to the alert receiver.
func formatAlertMessage(alert *entity.EmergencyAlert) string {
	var b strings.Builder
	b.WriteString("🚨 EMERGENCY ALERT 🚨\n\n")
	fmt.Fprintf(&b, "Type: %s\n", alert.EmergencyType)
	fmt.Fprintf(&b, "Patient: %s\n", alert.PatientName)

	switch {
	case alert.Address != "" && alert.HasLocation():
		fmt.Fprintf(&b, "Location: %s (%s)\n", alert.Address, geo.FormatPair(alert.Latitude, alert.Longitude))
	case alert.Address != "":
		fmt.Fprintf(&b, "Location: %s\n", alert.Address)
	case alert.HasLocation():
		fmt.Fprintf(&b, "Location: %s\n", geo.FormatPair(alert.Latitude, alert.Longitude))
	default:
		b.WriteString("Location: unavailable\n")
	}
	if alert.HasLocation() {
		fmt.Fprintf(&b, "Map: %s\n", geo.MapsLink(alert.Latitude, alert.Longitude))
	}

	fmt.Fprintf(&b, "Contact: %s\n", alert.PatientPhone)
	if alert.Description != "" {
		fmt.Fprintf(&b, "Details: %s\n", alert.Description)
	}
	fmt.Fprintf(&b, "\nAlert ID: %s\n\nImmediate medical attention required!", alert.ID)
	return b.String()
}
