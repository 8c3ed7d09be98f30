package converter

import (
	"lifeline-plus/internal/delivery/dto"
	"lifeline-plus/internal/domain/entity"
)

func AlertToResponse(alert *entity.EmergencyAlert) *dto.AlertResponse {
	if alert == nil {
		return nil
	}

	return &dto.AlertResponse{
		ID:               alert.ID,
		PatientID:        alert.PatientID,
		PatientName:      alert.PatientName,
		PatientPhone:     alert.PatientPhone,
		EmergencyType:    string(alert.EmergencyType),
		Description:      alert.Description,
		Address:          alert.Address,
		Latitude:         alert.Latitude,
		Longitude:        alert.Longitude,
		LocationSource:   string(alert.LocationSource),
		Status:           string(alert.Status),
		AssignedDoctorID: alert.AssignedDoctorID,
		NotificationSID:  alert.NotificationSID,
		CreatedAt:        alert.CreatedAt,
		UpdatedAt:        alert.UpdatedAt,
		ResolvedAt:       alert.ResolvedAt,
	}
}

func AlertsToResponses(alerts []entity.EmergencyAlert) []dto.AlertResponse {
	responses := make([]dto.AlertResponse, len(alerts))
	for i := range alerts {
		responses[i] = *AlertToResponse(&alerts[i])
	}
	return responses
}
