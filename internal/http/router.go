package http

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"otplink/internal/handlers"
	"otplink/internal/middleware"
	"otplink/internal/realtime"
)

// NewRouter wires every route. authMiddleware may be nil, in which case the
// API is served without authentication.
func NewRouter(
	otpHandler *handlers.OTPHandler,
	configHandler *handlers.ConfigHandler,
	smsHandler *handlers.SMSHandler,
	healthHandler *handlers.HealthHandler,
	hub *realtime.Hub,
	authMiddleware *middleware.AuthMiddleware,
	logger *zap.Logger,
) *mux.Router {
	r := mux.NewRouter()

	// run after route matching so labels carry the path template
	r.Use(middleware.MetricsMiddleware)
	r.Use(middleware.RequestLogger(logger))

	protect := func(h http.Handler) http.Handler { return h }
	if authMiddleware != nil {
		protect = authMiddleware.Authenticate
	}

	api := r.PathPrefix("/api").Subrouter()
	if authMiddleware != nil {
		api.Use(authMiddleware.Authenticate)
	}

	// OTP history
	api.HandleFunc("/otps", otpHandler.List).Methods("GET")
	api.HandleFunc("/otps", otpHandler.Clear).Methods("DELETE")
	api.HandleFunc("/otps/detect", otpHandler.Detect).Methods("POST")
	api.HandleFunc("/otps/{id}/forward", otpHandler.Forward).Methods("POST")

	// Inbound SMS
	api.HandleFunc("/sms/incoming", smsHandler.Incoming).Methods("POST")

	// Configuration
	api.HandleFunc("/config", configHandler.Get).Methods("GET")
	api.HandleFunc("/config", configHandler.Update).Methods("PUT")
	api.HandleFunc("/config/keywords", configHandler.AddKeyword).Methods("POST")
	api.HandleFunc("/config/keywords/reset", configHandler.ResetKeywords).Methods("POST")
	api.HandleFunc("/config/keywords/{keyword}", configHandler.RemoveKeyword).Methods("DELETE")
	api.HandleFunc("/config/webhook/test", configHandler.TestWebhook).Methods("POST")

	// Listener
	api.HandleFunc("/listener", smsHandler.Status).Methods("GET")
	api.HandleFunc("/listener/start", smsHandler.Start).Methods("POST")
	api.HandleFunc("/listener/stop", smsHandler.Stop).Methods("POST")

	// Live record events
	r.Handle("/ws", protect(http.HandlerFunc(hub.ServeWS)))

	// Health endpoints (no auth required - for Kubernetes probes)
	r.HandleFunc("/health", healthHandler.BasicHealth).Methods("GET")
	r.HandleFunc("/health/ready", healthHandler.ReadinessHealth).Methods("GET")
	r.HandleFunc("/health/detailed", healthHandler.DetailedHealth).Methods("GET")

	// Metrics endpoint (Prometheus format)
	r.Handle("/metrics", promhttp.Handler())

	return r
}
