package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"lifeline-plus/internal/delivery/dto"
	"lifeline-plus/internal/usecase"
	"lifeline-plus/pkg/validator"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEmergencyUsecase answers with whatever the test sets and records calls.
type fakeEmergencyUsecase struct {
	submitResp *dto.SubmitAlertResponse
	alertResp  *dto.AlertResponse
	sid        string
	err        error
	calls      int
	lastSubmit *dto.SubmitAlertRequest
}

func (f *fakeEmergencyUsecase) SubmitAlert(ctx context.Context, req *dto.SubmitAlertRequest) (*dto.SubmitAlertResponse, error) {
	f.calls++
	f.lastSubmit = req
	return f.submitResp, f.err
}

func (f *fakeEmergencyUsecase) ListMyAlerts(ctx context.Context) (*dto.AlertListResponse, error) {
	f.calls++
	return &dto.AlertListResponse{}, f.err
}

func (f *fakeEmergencyUsecase) ListOpenAlerts(ctx context.Context) (*dto.AlertListResponse, error) {
	f.calls++
	return &dto.AlertListResponse{}, f.err
}

func (f *fakeEmergencyUsecase) AssignAlert(ctx context.Context, alertID uuid.UUID) (*dto.AlertResponse, error) {
	f.calls++
	return f.alertResp, f.err
}

func (f *fakeEmergencyUsecase) ResolveAlert(ctx context.Context, alertID uuid.UUID) (*dto.AlertResponse, error) {
	f.calls++
	return f.alertResp, f.err
}

func (f *fakeEmergencyUsecase) SendSOS(ctx context.Context, req *dto.SendSOSRequest) (string, error) {
	f.calls++
	if req.Latitude == nil || req.Longitude == nil {
		return "", usecase.ErrMissingCoordinates
	}
	return f.sid, f.err
}

func (f *fakeEmergencyUsecase) SendRawAlert(ctx context.Context, req *dto.SendAlertRequest) (string, error) {
	f.calls++
	return f.sid, f.err
}

func (f *fakeEmergencyUsecase) NotifyEmergencySMS(ctx context.Context, req *dto.EmergencySMSRequest) (string, error) {
	f.calls++
	return f.sid, f.err
}

func postJSON(t *testing.T, h http.HandlerFunc, path, body string, vars map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	if vars != nil {
		req = mux.SetURLVars(req, vars)
	}
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestSubmitAlertHandler(t *testing.T) {
	validAlert := `{"patient_name":"Jo","patient_phone":"555-1000","emergency_type":"cardiac","latitude":40,"longitude":-74}`

	t.Run("success", func(t *testing.T) {
		uc := &fakeEmergencyUsecase{submitResp: &dto.SubmitAlertResponse{Outcome: "success", MessageSID: "SM1"}}
		h := NewEmergencyHandler(uc, nil, validator.NewValidator(), nil)

		req := httptest.NewRequest(http.MethodPost, "/api/v1/emergency/alerts", bytes.NewBufferString(validAlert))
		req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
		rec := httptest.NewRecorder()
		h.SubmitAlert(rec, req)

		assert.Equal(t, http.StatusCreated, rec.Code)
		body := decodeEnvelope(t, rec)
		assert.Equal(t, true, body["success"])
		assert.Equal(t, "success", body["data"].(map[string]interface{})["outcome"])
		assert.Equal(t, "203.0.113.7", uc.lastSubmit.ClientIP)
	})

	t.Run("partial is still created", func(t *testing.T) {
		uc := &fakeEmergencyUsecase{submitResp: &dto.SubmitAlertResponse{Outcome: "partial", Warning: "Alert saved but the SMS notification could not be sent"}}
		rec := postJSON(t, NewEmergencyHandler(uc, nil, validator.NewValidator(), nil).SubmitAlert, "/", validAlert, nil)

		assert.Equal(t, http.StatusCreated, rec.Code)
		assert.Equal(t, "Alert saved but the SMS notification could not be sent", decodeEnvelope(t, rec)["message"])
	})

	t.Run("validation failure never reaches the usecase", func(t *testing.T) {
		uc := &fakeEmergencyUsecase{}
		rec := postJSON(t, NewEmergencyHandler(uc, nil, validator.NewValidator(), nil).SubmitAlert, "/",
			`{"patient_name":"Jo","patient_phone":"  ","emergency_type":"cardiac"}`, nil)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Zero(t, uc.calls)
		errs := decodeEnvelope(t, rec)["error"].(map[string]interface{})
		assert.Contains(t, errs, "patient_phone")
	})

	t.Run("unknown emergency type", func(t *testing.T) {
		uc := &fakeEmergencyUsecase{}
		rec := postJSON(t, NewEmergencyHandler(uc, nil, validator.NewValidator(), nil).SubmitAlert, "/",
			`{"patient_name":"Jo","patient_phone":"555","emergency_type":"sneeze"}`, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Zero(t, uc.calls)
	})

	t.Run("store failure", func(t *testing.T) {
		uc := &fakeEmergencyUsecase{err: errors.New("db down")}
		rec := postJSON(t, NewEmergencyHandler(uc, nil, validator.NewValidator(), nil).SubmitAlert, "/", validAlert, nil)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

func TestAlertTransitionHandlers(t *testing.T) {
	id := uuid.New().String()

	cases := []struct {
		name string
		err  error
		want int
	}{
		{"ok", nil, http.StatusOK},
		{"not found", usecase.ErrAlertNotFound, http.StatusNotFound},
		{"already taken", usecase.ErrAlertNotAssignable, http.StatusConflict},
		{"not yours", usecase.ErrAlertNotResolvable, http.StatusConflict},
		{"store error", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			uc := &fakeEmergencyUsecase{alertResp: &dto.AlertResponse{Status: "assigned"}, err: tc.err}
			h := NewEmergencyHandler(uc, nil, validator.NewValidator(), nil)

			assert.Equal(t, tc.want, postJSON(t, h.AssignAlert, "/", "", map[string]string{"id": id}).Code)
			assert.Equal(t, tc.want, postJSON(t, h.ResolveAlert, "/", "", map[string]string{"id": id}).Code)
		})
	}

	uc := &fakeEmergencyUsecase{}
	h := NewEmergencyHandler(uc, nil, validator.NewValidator(), nil)
	assert.Equal(t, http.StatusBadRequest, postJSON(t, h.AssignAlert, "/", "", map[string]string{"id": "nope"}).Code)
	assert.Zero(t, uc.calls)
}

func TestSendSOSHandler(t *testing.T) {
	t.Run("missing coordinates", func(t *testing.T) {
		h := NewSOSHandler(&fakeEmergencyUsecase{}, validator.NewValidator())
		rec := postJSON(t, h.SendSOS, "/send-sos", `{"latitude":40}`, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.JSONEq(t, `{"success":false,"error":"Missing coordinates"}`, rec.Body.String())
	})

	t.Run("sent", func(t *testing.T) {
		h := NewSOSHandler(&fakeEmergencyUsecase{sid: "SM123"}, validator.NewValidator())
		rec := postJSON(t, h.SendSOS, "/send-sos", `{"latitude":40,"longitude":-74}`, nil)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"success":true,"sid":"SM123"}`, rec.Body.String())
	})

	t.Run("provider error", func(t *testing.T) {
		h := NewSOSHandler(&fakeEmergencyUsecase{err: errors.New("unverified number")}, validator.NewValidator())
		rec := postJSON(t, h.SendSOS, "/send-sos", `{"latitude":40,"longitude":-74}`, nil)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.JSONEq(t, `{"success":false,"error":"unverified number"}`, rec.Body.String())
	})
}

func TestSendAlertHandler(t *testing.T) {
	h := NewSOSHandler(&fakeEmergencyUsecase{sid: "SM9"}, validator.NewValidator())
	rec := postJSON(t, h.SendAlert, "/api/alert/send", `{"to":"+15550001111","message":"help"}`, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true,"sid":"SM9"}`, rec.Body.String())

	h = NewSOSHandler(&fakeEmergencyUsecase{err: errors.New("invalid To")}, validator.NewValidator())
	rec = postJSON(t, h.SendAlert, "/api/alert/send", `{"to":"x","message":"help"}`, nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"Failed to send alert","details":"invalid To"}`, rec.Body.String())
}

func TestSendEmergencySMSHandler(t *testing.T) {
	body := `{"alertId":"a1","phone":"+15550001111","emergencyType":"cardiac","location":"40,-74"}`

	h := NewSOSHandler(&fakeEmergencyUsecase{sid: "SM7"}, validator.NewValidator())
	rec := postJSON(t, h.SendEmergencySMS, "/functions/send-emergency-sms", body, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true,"messageSid":"SM7","message":"Emergency alert sent successfully"}`, rec.Body.String())

	h = NewSOSHandler(&fakeEmergencyUsecase{err: errors.New("twilio 400")}, validator.NewValidator())
	rec = postJSON(t, h.SendEmergencySMS, "/functions/send-emergency-sms", body, nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"success":false,"error":"twilio 400","message":"Failed to send SMS, but alert was saved to database"}`, rec.Body.String())
}
