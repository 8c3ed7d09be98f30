package dto

import (
	"time"

	"github.com/google/uuid"
)

// Request DTOs

// SubmitAlertRequest is an SOS report. Coordinates are optional: when the
// device could not produce them the server falls back to other sources.
type SubmitAlertRequest struct {
	PatientName   string     `json:"patient_name" validate:"required,notblank,max=255"`
	PatientPhone  string     `json:"patient_phone" validate:"required,notblank,max=30"`
	EmergencyType string     `json:"emergency_type" validate:"required,oneof=cardiac breathing injury stroke allergic other"`
	Description   string     `json:"description" validate:"omitempty,max=2000"`
	Address       string     `json:"address" validate:"omitempty,max=500"`
	Latitude      *float64   `json:"latitude" validate:"omitempty,latitude"`
	Longitude     *float64   `json:"longitude" validate:"omitempty,longitude"`
	CapturedAt    *time.Time `json:"captured_at" validate:"omitempty"`

	// set by the handler, never bound from JSON
	ClientIP string `json:"-"`
}

// Response DTOs

type AlertResponse struct {
	ID               uuid.UUID  `json:"id"`
	PatientID        *uuid.UUID `json:"patient_id,omitempty"`
	PatientName      string     `json:"patient_name"`
	PatientPhone     string     `json:"patient_phone"`
	EmergencyType    string     `json:"emergency_type"`
	Description      string     `json:"description,omitempty"`
	Address          string     `json:"address,omitempty"`
	Latitude         float64    `json:"latitude"`
	Longitude        float64    `json:"longitude"`
	LocationSource   string     `json:"location_source"`
	Status           string     `json:"status"`
	AssignedDoctorID *uuid.UUID `json:"assigned_doctor_id,omitempty"`
	NotificationSID  string     `json:"notification_sid,omitempty"`
	DistanceKm       *float64   `json:"distance_km,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
	ResolvedAt       *time.Time `json:"resolved_at,omitempty"`
}

// SubmitAlertResponse reports how far the submission got. Outcome is
// "success" or "partial"; partial carries a Warning for the caller.
type SubmitAlertResponse struct {
	Alert      AlertResponse `json:"alert"`
	Outcome    string        `json:"outcome"`
	MessageSID string        `json:"message_sid,omitempty"`
	Warning    string        `json:"warning,omitempty"`
}

type AlertListResponse struct {
	Alerts []AlertResponse `json:"alerts"`
	Total  int             `json:"total"`
}

// Legacy endpoint DTOs. Field names and bodies are fixed by existing clients.

type SendSOSRequest struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

type SendSOSResponse struct {
	Success bool   `json:"success"`
	SID     string `json:"sid,omitempty"`
	Error   string `json:"error,omitempty"`
}

type SendAlertRequest struct {
	To      string `json:"to" validate:"required"`
	Message string `json:"message" validate:"required"`
}

type SendAlertErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details"`
}

type EmergencySMSRequest struct {
	AlertID       string `json:"alertId"`
	Phone         string `json:"phone"`
	EmergencyType string `json:"emergencyType"`
	Location      string `json:"location"`
}

type EmergencySMSResponse struct {
	Success    bool   `json:"success"`
	MessageSID string `json:"messageSid,omitempty"`
	Error      string `json:"error,omitempty"`
	Message    string `json:"message"`
}

// AlertEventResponse is one message on the dashboard alert stream.
type AlertEventResponse struct {
	Type  string        `json:"type"`
	Alert AlertResponse `json:"alert"`
	At    time.Time     `json:"at"`
}
