package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AlertStatus represents the lifecycle state of an emergency alert
type AlertStatus string

const (
	AlertStatusActive   AlertStatus = "active"
	AlertStatusAssigned AlertStatus = "assigned"
	AlertStatusResolved AlertStatus = "resolved"
)

// EmergencyType is the fixed set of emergencies a patient can report
type EmergencyType string

const (
	EmergencyTypeCardiac   EmergencyType = "cardiac"
	EmergencyTypeBreathing EmergencyType = "breathing"
	EmergencyTypeInjury    EmergencyType = "injury"
	EmergencyTypeStroke    EmergencyType = "stroke"
	EmergencyTypeAllergic  EmergencyType = "allergic"
	EmergencyTypeOther     EmergencyType = "other"
)

// EmergencyTypes lists every accepted emergency type in display order.
var EmergencyTypes = []EmergencyType{
	EmergencyTypeCardiac,
	EmergencyTypeBreathing,
	EmergencyTypeInjury,
	EmergencyTypeStroke,
	EmergencyTypeAllergic,
	EmergencyTypeOther,
}

func (t EmergencyType) Valid() bool {
	for _, known := range EmergencyTypes {
		if t == known {
			return true
		}
	}
	return false
}

// LocationSource records where an alert's coordinates came from
type LocationSource string

const (
	LocationSourceDevice LocationSource = "device"
	LocationSourceCached LocationSource = "cached"
	LocationSourceIP     LocationSource = "ip"
	LocationSourceNone   LocationSource = "none"
)

// EmergencyAlert is a single emergency report.
// Status only moves forward: active -> assigned -> resolved.
type EmergencyAlert struct {
	ID                uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	PatientID         *uuid.UUID     `gorm:"type:uuid;index" json:"patient_id,omitempty"`
	PatientName       string         `gorm:"type:varchar(255);not null" json:"patient_name"`
	PatientPhone      string         `gorm:"type:varchar(30);not null" json:"patient_phone"`
	EmergencyType     EmergencyType  `gorm:"type:varchar(20);not null;index" json:"emergency_type"`
	Description       string         `gorm:"type:text" json:"description,omitempty"`
	Address           string         `gorm:"type:text" json:"address,omitempty"`
	Latitude          float64        `gorm:"not null;default:0" json:"latitude"`
	Longitude         float64        `gorm:"not null;default:0" json:"longitude"`
	LocationSource    LocationSource `gorm:"type:varchar(10);not null;default:'none'" json:"location_source"`
	Status            AlertStatus    `gorm:"type:varchar(20);not null;default:'active';index" json:"status"`
	AssignedDoctorID  *uuid.UUID     `gorm:"type:uuid;index" json:"assigned_doctor_id,omitempty"`
	NotificationSID   string         `gorm:"column:notification_sid;type:varchar(64)" json:"notification_sid,omitempty"`
	NotificationError string         `gorm:"type:text" json:"notification_error,omitempty"`
	CreatedAt         time.Time      `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt         time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	ResolvedAt        *time.Time     `json:"resolved_at,omitempty"`
}

func (EmergencyAlert) TableName() string {
	return "emergency_alerts"
}

func (a *EmergencyAlert) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.Status == "" {
		a.Status = AlertStatusActive
	}
	if a.LocationSource == "" {
		a.LocationSource = LocationSourceNone
	}
	return nil
}

// IsOpen reports whether the alert still needs a doctor's attention
func (a *EmergencyAlert) IsOpen() bool {
	return a.Status == AlertStatusActive || a.Status == AlertStatusAssigned
}

// HasLocation is false for alerts stored with the degraded 0,0 position
func (a *EmergencyAlert) HasLocation() bool {
	return a.LocationSource != LocationSourceNone
}

// AlertFilter is a domain-level filter for querying alerts.
// Used by repository layer to avoid coupling with delivery DTOs.
type AlertFilter struct {
	Statuses         []AlertStatus
	AssignedDoctorID *uuid.UUID
	PatientID        *uuid.UUID
	Limit            int
}

// AlertGuard is the precondition a status update must match
type AlertGuard struct {
	Status           AlertStatus
	AssignedDoctorID *uuid.UUID
}
