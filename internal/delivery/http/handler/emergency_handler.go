package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"lifeline-plus/internal/converter"
	"lifeline-plus/internal/delivery/dto"
	"lifeline-plus/internal/service/alertfeed"
	"lifeline-plus/internal/usecase"
	"lifeline-plus/pkg/response"
	"lifeline-plus/pkg/validator"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	streamWriteWait  = 10 * time.Second
	streamPongWait   = 60 * time.Second
	streamPingPeriod = (streamPongWait * 9) / 10
)

// AlertSubscriber opens a live view of the alert feed.
type AlertSubscriber interface {
	Subscribe(ctx context.Context) (*alertfeed.Subscription, error)
}

type EmergencyHandler struct {
	emergencyUsecase usecase.EmergencyUsecase
	subscriber       AlertSubscriber
	validator        *validator.CustomValidator
	upgrader         websocket.Upgrader
	log              *logrus.Logger
}

func NewEmergencyHandler(emergencyUsecase usecase.EmergencyUsecase, subscriber AlertSubscriber, validator *validator.CustomValidator, log *logrus.Logger) *EmergencyHandler {
	return &EmergencyHandler{
		emergencyUsecase: emergencyUsecase,
		subscriber:       subscriber,
		validator:        validator,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// dashboards are served from other origins; the token is the gate
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		log: log,
	}
}

// SubmitAlert handles an SOS submission
// @Summary Submit an emergency alert
// @Description Saves the alert and texts the on-call receiver. A failed SMS
// @Description still returns 201 with outcome "partial".
// @Tags Emergency
// @Accept json
// @Produce json
// @Param request body dto.SubmitAlertRequest true "Alert"
// @Success 201 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 500 {object} response.Response
// @Router /emergency/alerts [post]
func (h *EmergencyHandler) SubmitAlert(w http.ResponseWriter, r *http.Request) {
	var req dto.SubmitAlertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid request body", nil)
		return
	}

	if err := h.validator.Validate(&req); err != nil {
		response.ValidationError(w, h.validator.FormatValidationErrors(err))
		return
	}
	req.ClientIP = clientIP(r)

	result, err := h.emergencyUsecase.SubmitAlert(r.Context(), &req)
	if err != nil {
		switch err {
		case usecase.ErrAlertFieldsRequired, usecase.ErrInvalidEmergencyType:
			response.BadRequest(w, err.Error())
		default:
			response.InternalServerError(w, "Failed to save emergency alert")
		}
		return
	}

	message := "Emergency alert sent"
	if result.Outcome == string(usecase.OutcomePartial) {
		message = result.Warning
	}
	response.Success(w, http.StatusCreated, message, result)
}

func (h *EmergencyHandler) ListMyAlerts(w http.ResponseWriter, r *http.Request) {
	alerts, err := h.emergencyUsecase.ListMyAlerts(r.Context())
	if err != nil {
		response.InternalServerError(w, "Failed to get alerts")
		return
	}

	response.Success(w, http.StatusOK, "Alerts retrieved successfully", alerts)
}

func (h *EmergencyHandler) ListOpenAlerts(w http.ResponseWriter, r *http.Request) {
	alerts, err := h.emergencyUsecase.ListOpenAlerts(r.Context())
	if err != nil {
		response.InternalServerError(w, "Failed to get alerts")
		return
	}

	response.Success(w, http.StatusOK, "Alerts retrieved successfully", alerts)
}

// AssignAlert claims an active alert
// @Summary Assign an alert to the calling doctor
// @Tags Emergency
// @Security BearerAuth
// @Produce json
// @Param id path string true "Alert ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /doctor/alerts/{id}/assign [patch]
func (h *EmergencyHandler) AssignAlert(w http.ResponseWriter, r *http.Request) {
	alertID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid alert ID", nil)
		return
	}

	alert, err := h.emergencyUsecase.AssignAlert(r.Context(), alertID)
	if err != nil {
		h.transitionError(w, err)
		return
	}

	response.Success(w, http.StatusOK, "Alert assigned", alert)
}

// ResolveAlert closes an alert assigned to the calling doctor
// @Summary Resolve an alert
// @Tags Emergency
// @Security BearerAuth
// @Produce json
// @Param id path string true "Alert ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /doctor/alerts/{id}/resolve [patch]
func (h *EmergencyHandler) ResolveAlert(w http.ResponseWriter, r *http.Request) {
	alertID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid alert ID", nil)
		return
	}

	alert, err := h.emergencyUsecase.ResolveAlert(r.Context(), alertID)
	if err != nil {
		h.transitionError(w, err)
		return
	}

	response.Success(w, http.StatusOK, "Alert resolved", alert)
}

func (h *EmergencyHandler) transitionError(w http.ResponseWriter, err error) {
	switch err {
	case usecase.ErrAlertNotFound:
		response.NotFound(w, "Alert not found")
	case usecase.ErrAlertNotAssignable, usecase.ErrAlertNotResolvable:
		response.Conflict(w, err.Error())
	default:
		response.InternalServerError(w, "Failed to update alert")
	}
}

// StreamAlerts pushes alert feed events to a doctor dashboard over a
// WebSocket until either side hangs up.
func (h *EmergencyHandler) StreamAlerts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	sub, err := h.subscriber.Subscribe(ctx)
	if err != nil {
		h.log.Warnf("Failed to subscribe to alert feed: %+v", err)
		response.Error(w, http.StatusServiceUnavailable, "Alert stream unavailable", nil)
		return
	}
	defer sub.Close()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied to the client
		return
	}
	defer conn.Close()

	// the read loop only exists to notice the client leaving and to handle pongs
	go func() {
		defer cancel()
		conn.SetReadDeadline(time.Now().Add(streamPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(streamPongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(streamPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-sub.Events():
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := conn.WriteJSON(dto.AlertEventResponse{
				Type:  string(event.Type),
				Alert: *converter.AlertToResponse(&event.Alert),
				At:    event.At,
			}); err != nil {
				if !errors.Is(err, net.ErrClosed) {
					h.log.Debugf("Alert stream write failed: %v", err)
				}
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(streamWriteWait)); err != nil {
				return
			}
		}
	}
}

// clientIP prefers the first X-Forwarded-For hop, as the service usually
// runs behind a proxy.
func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
