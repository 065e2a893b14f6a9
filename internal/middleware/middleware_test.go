package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"otplink/internal/auth"
	"otplink/internal/config"
)

func jwtConfig() *config.Config {
	cfg := &config.Config{}
	cfg.JWT.Secret = "s3cret"
	cfg.JWT.ExpirationHours = 1
	cfg.JWT.Issuer = "otplink"
	return cfg
}

func subjectEcho(w http.ResponseWriter, r *http.Request) {
	subject, _ := GetSubjectFromContext(r.Context())
	w.Write([]byte(subject))
}

func TestAuthenticate(t *testing.T) {
	manager := auth.NewJWTManager(jwtConfig())
	token, err := manager.GenerateToken("ops")
	require.NoError(t, err)
	h := NewAuthMiddleware(manager).Authenticate(http.HandlerFunc(subjectEcho))

	tests := []struct {
		name   string
		setup  func(r *http.Request)
		status int
	}{
		{"missing header", func(r *http.Request) {}, http.StatusUnauthorized},
		{"wrong scheme", func(r *http.Request) { r.Header.Set("Authorization", "Basic abc") }, http.StatusUnauthorized},
		{"bad token", func(r *http.Request) { r.Header.Set("Authorization", "Bearer nope") }, http.StatusUnauthorized},
		{"valid", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/otps", nil)
			tt.setup(req)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.status, rec.Code)
			if tt.status == http.StatusOK {
				assert.Equal(t, "ops", rec.Body.String())
			}
		})
	}
}

func TestAuthenticateWebSocketQueryToken(t *testing.T) {
	manager := auth.NewJWTManager(jwtConfig())
	token, err := manager.GenerateToken("browser")
	require.NoError(t, err)
	h := NewAuthMiddleware(manager).Authenticate(http.HandlerFunc(subjectEcho))

	req := httptest.NewRequest(http.MethodGet, "/ws?token="+token, nil)
	req.Header.Set("Upgrade", "websocket")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	// plain requests must use the header
	req = httptest.NewRequest(http.MethodGet, "/api/otps?token="+token, nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestPanicRecovery(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	h := PanicRecovery(zap.New(core))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error": "Internal server error"}`, rec.Body.String())
	assert.Equal(t, 1, logs.FilterMessage("panic recovered").Len())
}

func TestRouteLabelUsesTemplate(t *testing.T) {
	var label string
	r := mux.NewRouter()
	r.HandleFunc("/api/otps/{id}/forward", func(w http.ResponseWriter, req *http.Request) {
		label = routeLabel(req)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/otps/abc/forward", nil))
	assert.Equal(t, "/api/otps/{id}/forward", label)
}

func TestRequestLogger(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	h := RequestLogger(zap.New(core))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		w.Write([]byte("hi"))
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, 0, logs.Len())

	req := httptest.NewRequest(http.MethodGet, "/api/otps", nil)
	req.Header.Set("X-Forwarded-For", "10.0.0.1, 10.0.0.2")
	h.ServeHTTP(httptest.NewRecorder(), req)

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, zap.WarnLevel, entry.Level)
	fields := entry.ContextMap()
	assert.Equal(t, int64(http.StatusTeapot), fields["status"])
	assert.Equal(t, "10.0.0.1", fields["ip"])
	assert.Equal(t, int64(2), fields["bytes"])
}

func TestNewCORS(t *testing.T) {
	cfg := &config.Config{}
	cfg.Server.CorsAllowedOrigins = []string{"https://app.example.com"}
	cfg.Server.CorsAllowedMethods = []string{"GET", "POST"}
	cfg.Server.CorsAllowedHeaders = []string{"Authorization"}
	h := NewCORS(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/api/otps", nil)
	req.Header.Set("Origin", "https://app.example.com")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/api/otps", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
