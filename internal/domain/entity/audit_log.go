package entity

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AuditLog records one state change and the user who made it.
type AuditLog struct {
	ID        int64         `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    *uuid.UUID    `gorm:"type:uuid;index" json:"user_id,omitempty"`
	Action    string        `gorm:"type:varchar(100);not null;index" json:"action"`
	Metadata  AuditMetadata `gorm:"type:jsonb" json:"metadata,omitempty"`
	CreatedAt time.Time     `gorm:"autoCreateTime;index" json:"created_at"`

	// Relationships
	User *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

func (AuditLog) TableName() string {
	return "audit_logs"
}

// AuditMetadata is stored as JSONB; an empty map is written as NULL.
type AuditMetadata map[string]interface{}

func (m AuditMetadata) Value() (driver.Value, error) {
	if len(m) == 0 {
		return nil, nil
	}
	return json.Marshal(m)
}

func (m *AuditMetadata) Scan(value interface{}) error {
	var raw []byte
	switch v := value.(type) {
	case nil:
		*m = nil
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("audit metadata: unsupported column type %T", value)
	}
	return json.Unmarshal(raw, (*map[string]interface{})(m))
}

// Audit actions
const (
	AuditActionUserRegister       = "user.register"
	AuditActionAlertCreate        = "alert.create"
	AuditActionAlertAssign        = "alert.assign"
	AuditActionAlertResolve       = "alert.resolve"
	AuditActionAppointmentCreate  = "appointment.create"
	AuditActionAppointmentConfirm = "appointment.confirm"
	AuditActionAppointmentCancel  = "appointment.cancel"
	AuditActionDoctorUpdate       = "doctor.update"
	AuditActionPatientUpdate      = "patient.update"
)
