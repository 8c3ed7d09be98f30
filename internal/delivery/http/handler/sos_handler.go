package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"lifeline-plus/internal/delivery/dto"
	"lifeline-plus/internal/usecase"
	"lifeline-plus/pkg/response"
	"lifeline-plus/pkg/validator"
)

// SOSHandler serves the endpoints existing mobile and web clients call
// directly. Their bodies are fixed and do not use the response envelope.
type SOSHandler struct {
	emergencyUsecase usecase.EmergencyUsecase
	validator        *validator.CustomValidator
}

func NewSOSHandler(emergencyUsecase usecase.EmergencyUsecase, validator *validator.CustomValidator) *SOSHandler {
	return &SOSHandler{
		emergencyUsecase: emergencyUsecase,
		validator:        validator,
	}
}

// SendSOS texts the receiver a map link for the given coordinates
// @Summary Send a coordinates-only SOS
// @Tags Legacy
// @Accept json
// @Produce json
// @Param request body dto.SendSOSRequest true "Coordinates"
// @Success 200 {object} dto.SendSOSResponse
// @Failure 400 {object} dto.SendSOSResponse
// @Failure 500 {object} dto.SendSOSResponse
// @Router /send-sos [post]
func (h *SOSHandler) SendSOS(w http.ResponseWriter, r *http.Request) {
	var req dto.SendSOSRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.JSON(w, http.StatusBadRequest, dto.SendSOSResponse{Error: usecase.ErrMissingCoordinates.Error()})
		return
	}

	sid, err := h.emergencyUsecase.SendSOS(r.Context(), &req)
	if err != nil {
		switch {
		case errors.Is(err, usecase.ErrMissingCoordinates), errors.Is(err, usecase.ErrInvalidCoordinates):
			response.JSON(w, http.StatusBadRequest, dto.SendSOSResponse{Error: err.Error()})
		default:
			response.JSON(w, http.StatusInternalServerError, dto.SendSOSResponse{Error: err.Error()})
		}
		return
	}

	response.JSON(w, http.StatusOK, dto.SendSOSResponse{Success: true, SID: sid})
}

// SendAlert relays a caller-composed SMS
// @Summary Send a raw alert SMS
// @Tags Legacy
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body dto.SendAlertRequest true "Message"
// @Success 200 {object} dto.SendSOSResponse
// @Failure 500 {object} dto.SendAlertErrorResponse
// @Router /api/alert/send [post]
func (h *SOSHandler) SendAlert(w http.ResponseWriter, r *http.Request) {
	var req dto.SendAlertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.JSON(w, http.StatusBadRequest, dto.SendAlertErrorResponse{Error: "Failed to send alert", Details: "Invalid request body"})
		return
	}

	if err := h.validator.Validate(&req); err != nil {
		response.JSON(w, http.StatusBadRequest, dto.SendAlertErrorResponse{Error: "Failed to send alert", Details: err.Error()})
		return
	}

	sid, err := h.emergencyUsecase.SendRawAlert(r.Context(), &req)
	if err != nil {
		response.JSON(w, http.StatusInternalServerError, dto.SendAlertErrorResponse{Error: "Failed to send alert", Details: err.Error()})
		return
	}

	response.JSON(w, http.StatusOK, dto.SendSOSResponse{Success: true, SID: sid})
}

// SendEmergencySMS texts the details of an alert the client already saved
// @Summary Send the emergency SMS for a saved alert
// @Tags Legacy
// @Accept json
// @Produce json
// @Param request body dto.EmergencySMSRequest true "Alert details"
// @Success 200 {object} dto.EmergencySMSResponse
// @Failure 500 {object} dto.EmergencySMSResponse
// @Router /functions/send-emergency-sms [post]
func (h *SOSHandler) SendEmergencySMS(w http.ResponseWriter, r *http.Request) {
	var req dto.EmergencySMSRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.JSON(w, http.StatusInternalServerError, dto.EmergencySMSResponse{
			Error:   err.Error(),
			Message: "Failed to send SMS, but alert was saved to database",
		})
		return
	}

	sid, err := h.emergencyUsecase.NotifyEmergencySMS(r.Context(), &req)
	if err != nil {
		response.JSON(w, http.StatusInternalServerError, dto.EmergencySMSResponse{
			Error:   err.Error(),
			Message: "Failed to send SMS, but alert was saved to database",
		})
		return
	}

	response.JSON(w, http.StatusOK, dto.EmergencySMSResponse{
		Success:    true,
		MessageSID: sid,
		Message:    "Emergency alert sent successfully",
	})
}
