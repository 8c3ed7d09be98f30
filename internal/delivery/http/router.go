package http

import (
	"net/http"

	"lifeline-plus/internal/delivery/http/handler"
	"lifeline-plus/internal/delivery/http/middleware"

	"github.com/gorilla/mux"
)

type Router struct {
	router             *mux.Router
	authHandler        *handler.AuthHandler
	emergencyHandler   *handler.EmergencyHandler
	sosHandler         *handler.SOSHandler
	appointmentHandler *handler.AppointmentHandler
	doctorHandler      *handler.DoctorHandler
	patientHandler     *handler.PatientHandler
	auditLogHandler    *handler.AuditLogHandler
	authMiddleware     *middleware.AuthMiddleware
	corsMiddleware     *middleware.CORSMiddleware
	requestLogger      *middleware.RequestLogger
	loginLimit         func(http.Handler) http.Handler
	metricsHandler     http.Handler
}

func NewRouter(
	authHandler *handler.AuthHandler,
	emergencyHandler *handler.EmergencyHandler,
	sosHandler *handler.SOSHandler,
	appointmentHandler *handler.AppointmentHandler,
	doctorHandler *handler.DoctorHandler,
	patientHandler *handler.PatientHandler,
	auditLogHandler *handler.AuditLogHandler,
	authMiddleware *middleware.AuthMiddleware,
	corsMiddleware *middleware.CORSMiddleware,
	requestLogger *middleware.RequestLogger,
	loginLimit func(http.Handler) http.Handler,
	metricsHandler http.Handler,
) *Router {
	return &Router{
		router:             mux.NewRouter(),
		authHandler:        authHandler,
		emergencyHandler:   emergencyHandler,
		sosHandler:         sosHandler,
		appointmentHandler: appointmentHandler,
		doctorHandler:      doctorHandler,
		patientHandler:     patientHandler,
		auditLogHandler:    auditLogHandler,
		authMiddleware:     authMiddleware,
		corsMiddleware:     corsMiddleware,
		requestLogger:      requestLogger,
		loginLimit:         loginLimit,
		metricsHandler:     metricsHandler,
	}
}

// Setup registers every route. CORS wraps the whole router so preflight
// requests are answered even though no route matches OPTIONS.
func (r *Router) Setup() http.Handler {
	r.router.Use(r.requestLogger.Handle)

	r.router.HandleFunc("/health", r.healthCheck).Methods(http.MethodGet)
	if r.metricsHandler != nil {
		r.router.Handle("/metrics", r.metricsHandler).Methods(http.MethodGet)
	}

	login := http.Handler(http.HandlerFunc(r.authHandler.Login))
	if r.loginLimit != nil {
		login = r.loginLimit(login)
	}

	// Endpoints existing clients call with fixed bodies
	r.router.HandleFunc("/send-sos", r.sosHandler.SendSOS).Methods(http.MethodPost)
	r.router.Handle("/login", login).Methods(http.MethodPost)
	r.router.HandleFunc("/functions/send-emergency-sms", r.sosHandler.SendEmergencySMS).Methods(http.MethodPost)
	legacyProtected := r.router.PathPrefix("/api/alert").Subrouter()
	legacyProtected.Use(r.authMiddleware.Authenticate)
	legacyProtected.HandleFunc("/send", r.sosHandler.SendAlert).Methods(http.MethodPost)

	// API versioning
	api := r.router.PathPrefix("/api/v1").Subrouter()

	// Health check
	api.HandleFunc("/health", r.healthCheck).Methods(http.MethodGet)

	// Auth routes (public)
	auth := api.PathPrefix("/auth").Subrouter()
	auth.HandleFunc("/register/patient", r.authHandler.RegisterPatient).Methods(http.MethodPost)
	auth.HandleFunc("/register/doctor", r.authHandler.RegisterDoctor).Methods(http.MethodPost)
	auth.Handle("/login", login).Methods(http.MethodPost)

	// Auth routes (protected)
	authProtected := api.PathPrefix("/auth").Subrouter()
	authProtected.Use(r.authMiddleware.Authenticate)
	authProtected.HandleFunc("/logout", r.authHandler.Logout).Methods(http.MethodPost)
	authProtected.HandleFunc("/me", r.authHandler.GetCurrentUser).Methods(http.MethodGet)

	// SOS submission never requires a login; a patient token only links the alert
	emergency := api.PathPrefix("/emergency").Subrouter()
	emergency.Use(r.authMiddleware.OptionalAuthenticate)
	emergency.HandleFunc("/alerts", r.emergencyHandler.SubmitAlert).Methods(http.MethodPost)

	// Patient routes
	patient := api.PathPrefix("/patient").Subrouter()
	patient.Use(r.authMiddleware.Authenticate)
	patient.Use(middleware.RequirePatient)
	patient.HandleFunc("/profile", r.patientHandler.GetSelfProfile).Methods(http.MethodGet)
	patient.HandleFunc("/profile", r.patientHandler.UpdateSelfProfile).Methods(http.MethodPatch)
	patient.HandleFunc("/alerts", r.emergencyHandler.ListMyAlerts).Methods(http.MethodGet)
	patient.HandleFunc("/doctors", r.doctorHandler.GetAvailableDoctors).Methods(http.MethodGet)
	patient.HandleFunc("/appointments", r.appointmentHandler.BookAppointment).Methods(http.MethodPost)
	patient.HandleFunc("/appointments", r.appointmentHandler.GetMyAppointments).Methods(http.MethodGet)
	patient.HandleFunc("/appointments/{id}/cancel", r.appointmentHandler.CancelAppointment).Methods(http.MethodPatch)

	// Doctor routes
	doctor := api.PathPrefix("/doctor").Subrouter()
	doctor.Use(r.authMiddleware.Authenticate)
	doctor.Use(middleware.RequireDoctor)
	doctor.HandleFunc("/profile", r.doctorHandler.GetSelfProfile).Methods(http.MethodGet)
	doctor.HandleFunc("/profile", r.doctorHandler.UpdateSelfStatus).Methods(http.MethodPatch)
	doctor.HandleFunc("/alerts", r.emergencyHandler.ListOpenAlerts).Methods(http.MethodGet)
	doctor.HandleFunc("/alerts/stream", r.emergencyHandler.StreamAlerts).Methods(http.MethodGet)
	doctor.HandleFunc("/alerts/{id}/assign", r.emergencyHandler.AssignAlert).Methods(http.MethodPatch)
	doctor.HandleFunc("/alerts/{id}/resolve", r.emergencyHandler.ResolveAlert).Methods(http.MethodPatch)
	doctor.HandleFunc("/appointments", r.appointmentHandler.GetDoctorAppointments).Methods(http.MethodGet)
	doctor.HandleFunc("/appointments/{id}/confirm", r.appointmentHandler.ConfirmAppointment).Methods(http.MethodPatch)

	// Admin routes (protected - admin only)
	admin := api.PathPrefix("/admin").Subrouter()
	admin.Use(r.authMiddleware.Authenticate)
	admin.Use(middleware.RequireAdmin)
	admin.HandleFunc("/audit-logs", r.auditLogHandler.GetAllAuditLogs).Methods(http.MethodGet)
	admin.HandleFunc("/audit-logs/{id}", r.auditLogHandler.GetAuditLog).Methods(http.MethodGet)

	return r.corsMiddleware.Handle(r.router)
}

func (r *Router) healthCheck(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status": "ok"}`))
}
