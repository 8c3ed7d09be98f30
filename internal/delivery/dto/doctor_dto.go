package dto

import (
	"github.com/google/uuid"
)

// Request DTOs

// UpdateDoctorStatusRequest lets a doctor toggle availability and share the
// position used to rank alerts by distance.
type UpdateDoctorStatusRequest struct {
	IsAvailable *bool    `json:"is_available" validate:"omitempty"`
	PhoneNumber string   `json:"phone_number" validate:"omitempty,min=7,max=20"`
	Latitude    *float64 `json:"latitude" validate:"omitempty,latitude"`
	Longitude   *float64 `json:"longitude" validate:"omitempty,longitude"`
}

// Response DTOs

type DoctorProfileResponse struct {
	UserID         uuid.UUID `json:"user_id"`
	LicenseNumber  string    `json:"license_number"`
	Specialization string    `json:"specialization"`
	PhoneNumber    string    `json:"phone_number,omitempty"`
	IsAvailable    bool      `json:"is_available"`
	Latitude       *float64  `json:"latitude,omitempty"`
	Longitude      *float64  `json:"longitude,omitempty"`
}

type DoctorResponse struct {
	ID             uuid.UUID `json:"id"`
	FullName       string    `json:"full_name"`
	Specialization string    `json:"specialization"`
	IsAvailable    bool      `json:"is_available"`
}

type DoctorListResponse struct {
	Doctors []DoctorResponse `json:"doctors"`
	Total   int              `json:"total"`
}
