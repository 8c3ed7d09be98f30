package handler

import (
	"encoding/json"
	"net/http"

	"lifeline-plus/internal/delivery/dto"
	"lifeline-plus/internal/usecase"
	"lifeline-plus/pkg/response"
	"lifeline-plus/pkg/validator"
)

// PatientHandler serves the patient's own emergency contact details.
type PatientHandler struct {
	patientUsecase usecase.PatientProfileUsecase
	validator      *validator.CustomValidator
}

func NewPatientHandler(patientUsecase usecase.PatientProfileUsecase, validator *validator.CustomValidator) *PatientHandler {
	return &PatientHandler{
		patientUsecase: patientUsecase,
		validator:      validator,
	}
}

func (h *PatientHandler) GetSelfProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := h.patientUsecase.GetSelfProfile(r.Context())
	if err != nil {
		h.writeProfileError(w, err, "Failed to load contact details")
		return
	}

	response.Success(w, http.StatusOK, "Contact details retrieved", profile)
}

// UpdateSelfProfile changes the phone number and address used when the
// patient raises an alert. Blank fields keep their current value.
// @Summary Update emergency contact details
// @Tags Patients
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body dto.PatientUpdateSelfRequest true "Contact details"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /patient/profile [patch]
func (h *PatientHandler) UpdateSelfProfile(w http.ResponseWriter, r *http.Request) {
	var req dto.PatientUpdateSelfRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Contact details must be a JSON object")
		return
	}

	if err := h.validator.Validate(&req); err != nil {
		response.ValidationError(w, h.validator.FormatValidationErrors(err))
		return
	}

	profile, err := h.patientUsecase.UpdateSelfProfile(r.Context(), &req)
	if err != nil {
		h.writeProfileError(w, err, "Failed to update contact details")
		return
	}

	response.Success(w, http.StatusOK, "Contact details updated", profile)
}

func (h *PatientHandler) writeProfileError(w http.ResponseWriter, err error, fallback string) {
	switch err {
	case usecase.ErrPatientNotFound:
		response.NotFound(w, "No patient profile for this account")
	default:
		response.InternalServerError(w, fallback)
	}
}
