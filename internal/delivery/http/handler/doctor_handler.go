package handler

import (
	"encoding/json"
	"net/http"

	"lifeline-plus/internal/delivery/dto"
	"lifeline-plus/internal/usecase"
	"lifeline-plus/pkg/response"
	"lifeline-plus/pkg/validator"
)

type DoctorHandler struct {
	doctorUsecase usecase.DoctorProfileUsecase
	validator     *validator.CustomValidator
}

func NewDoctorHandler(doctorUsecase usecase.DoctorProfileUsecase, validator *validator.CustomValidator) *DoctorHandler {
	return &DoctorHandler{
		doctorUsecase: doctorUsecase,
		validator:     validator,
	}
}

// GetAvailableDoctors lists doctors accepting appointments
// @Summary List available doctors
// @Tags Doctors
// @Security BearerAuth
// @Produce json
// @Param specialization query string false "Filter by specialization"
// @Success 200 {object} response.Response
// @Router /doctors [get]
func (h *DoctorHandler) GetAvailableDoctors(w http.ResponseWriter, r *http.Request) {
	doctors, err := h.doctorUsecase.GetAvailableDoctors(r.Context(), r.URL.Query().Get("specialization"))
	if err != nil {
		response.InternalServerError(w, "Failed to get doctors")
		return
	}

	response.Success(w, http.StatusOK, "Doctors retrieved successfully", doctors)
}

func (h *DoctorHandler) GetSelfProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := h.doctorUsecase.GetSelfProfile(r.Context())
	if err != nil {
		switch err {
		case usecase.ErrDoctorNotFound:
			response.NotFound(w, "Doctor profile not found")
		default:
			response.InternalServerError(w, "Failed to get profile")
		}
		return
	}

	response.Success(w, http.StatusOK, "Profile retrieved successfully", profile)
}

// UpdateSelfStatus updates availability and the doctor's current position
// @Summary Update doctor status
// @Tags Doctors
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body dto.UpdateDoctorStatusRequest true "Status"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Router /doctor/profile [patch]
func (h *DoctorHandler) UpdateSelfStatus(w http.ResponseWriter, r *http.Request) {
	var req dto.UpdateDoctorStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid request body", nil)
		return
	}

	if err := h.validator.Validate(&req); err != nil {
		response.ValidationError(w, h.validator.FormatValidationErrors(err))
		return
	}

	profile, err := h.doctorUsecase.UpdateSelfStatus(r.Context(), &req)
	if err != nil {
		switch err {
		case usecase.ErrIncompleteLocation:
			response.BadRequest(w, err.Error())
		case usecase.ErrDoctorNotFound:
			response.NotFound(w, "Doctor profile not found")
		default:
			response.InternalServerError(w, "Failed to update profile")
		}
		return
	}

	response.Success(w, http.StatusOK, "Profile updated successfully", profile)
}
