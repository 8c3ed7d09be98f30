package converter

import (
	"lifeline-plus/internal/delivery/dto"
	"lifeline-plus/internal/domain/entity"
)

func PatientProfileToResponse(profile *entity.PatientProfile) *dto.PatientProfileResponse {
	if profile == nil {
		return nil
	}

	response := &dto.PatientProfileResponse{
		UserID:      profile.UserID,
		PhoneNumber: profile.PhoneNumber,
		Address:     profile.Address,
	}
	if profile.DateOfBirth != nil {
		response.DateOfBirth = profile.DateOfBirth.Format("2006-01-02")
	}
	return response
}
