package entity

import "github.com/google/uuid"

// DoctorProfile represents doctor-specific profile data.
// Latitude/Longitude hold the doctor's last reported position and are used to
// rank emergency alerts by distance.
type DoctorProfile struct {
	UserID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"user_id"`
	LicenseNumber  string    `gorm:"type:varchar(50);uniqueIndex;not null" json:"license_number"`
	Specialization string    `gorm:"type:varchar(100);not null;index" json:"specialization"`
	PhoneNumber    string    `gorm:"type:varchar(20)" json:"phone_number,omitempty"`
	IsAvailable    bool      `gorm:"not null;default:true;index" json:"is_available"`
	Latitude       *float64  `json:"latitude,omitempty"`
	Longitude      *float64  `json:"longitude,omitempty"`

	// Relationships
	User User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

func (DoctorProfile) TableName() string {
	return "doctor_profiles"
}

// HasLocation reports whether the doctor has shared a position.
func (p *DoctorProfile) HasLocation() bool {
	return p.Latitude != nil && p.Longitude != nil
}
