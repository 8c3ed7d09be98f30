package converter

import (
	"lifeline-plus/internal/delivery/dto"
	"lifeline-plus/internal/domain/entity"
)

func DoctorProfileToResponse(profile *entity.DoctorProfile) *dto.DoctorProfileResponse {
	if profile == nil {
		return nil
	}

	return &dto.DoctorProfileResponse{
		UserID:         profile.UserID,
		LicenseNumber:  profile.LicenseNumber,
		Specialization: profile.Specialization,
		PhoneNumber:    profile.PhoneNumber,
		IsAvailable:    profile.IsAvailable,
		Latitude:       profile.Latitude,
		Longitude:      profile.Longitude,
	}
}

// DoctorToResponse is the public listing view: no license or contact data
func DoctorToResponse(profile *entity.DoctorProfile) *dto.DoctorResponse {
	if profile == nil {
		return nil
	}

	return &dto.DoctorResponse{
		ID:             profile.UserID,
		FullName:       profile.User.FullName,
		Specialization: profile.Specialization,
		IsAvailable:    profile.IsAvailable,
	}
}

func DoctorsToResponses(profiles []entity.DoctorProfile) []dto.DoctorResponse {
	responses := make([]dto.DoctorResponse, len(profiles))
	for i := range profiles {
		responses[i] = *DoctorToResponse(&profiles[i])
	}
	return responses
}
