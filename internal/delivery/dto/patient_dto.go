package dto

import (
	"github.com/google/uuid"
)

// PatientProfileResponse represents patient profile data in responses
type PatientProfileResponse struct {
	UserID      uuid.UUID `json:"user_id"`
	PhoneNumber string    `json:"phone_number,omitempty"`
	DateOfBirth string    `json:"date_of_birth,omitempty"`
	Address     string    `json:"address,omitempty"`
}

// PatientUpdateSelfRequest holds the fields a patient may change. The
// phone number is the one alerts and the location cache are keyed on.
type PatientUpdateSelfRequest struct {
	PhoneNumber string `json:"phone_number" validate:"omitempty,min=7,max=20"`
	Address     string `json:"address" validate:"omitempty,max=500"`
}
