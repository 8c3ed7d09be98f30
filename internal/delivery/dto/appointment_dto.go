package dto

import (
	"time"

	"github.com/google/uuid"
)

// Request DTOs

type CreateAppointmentRequest struct {
	DoctorID        uuid.UUID `json:"doctor_id" validate:"required"`
	AppointmentDate time.Time `json:"appointment_date" validate:"required"`
	Notes           string    `json:"notes" validate:"omitempty,max=1000"`
}

// Response DTOs

type AppointmentResponse struct {
	ID              uuid.UUID       `json:"id"`
	PatientID       uuid.UUID       `json:"patient_id"`
	PatientName     string          `json:"patient_name,omitempty"`
	DoctorID        uuid.UUID       `json:"doctor_id"`
	Doctor          *DoctorResponse `json:"doctor,omitempty"`
	AppointmentDate time.Time       `json:"appointment_date"`
	Notes           string          `json:"notes,omitempty"`
	Status          string          `json:"status"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

type AppointmentListResponse struct {
	Appointments []AppointmentResponse `json:"appointments"`
	Total        int                   `json:"total"`
}
