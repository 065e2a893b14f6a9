package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"otplink/internal/models"
	"otplink/internal/services"
	"otplink/pkg/utils"
)

// passwordMask replaces the SMTP password in responses. Sending it back
// unchanged keeps the stored password.
const passwordMask = "********"

type ConfigHandler struct {
	Config    *services.ConfigService
	Forwarder *services.ForwardingService
	logger    *zap.Logger
}

func NewConfigHandler(config *services.ConfigService, forwarder *services.ForwardingService, logger *zap.Logger) *ConfigHandler {
	return &ConfigHandler{Config: config, Forwarder: forwarder, logger: logger.Named("config-handler")}
}

func redact(cfg *models.Configuration) *models.Configuration {
	out := cfg.Clone()
	if out.EmailSettings.Password != "" {
		out.EmailSettings.Password = passwordMask
	}
	return out
}

func (h *ConfigHandler) Get(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.Config.Load(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	utils.JSON(w, http.StatusOK, redact(cfg))
}

// Update replaces the whole configuration document. Missing fields take
// their defaults.
func (h *ConfigHandler) Update(w http.ResponseWriter, r *http.Request) {
	var cfg models.Configuration
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		utils.Error(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if cfg.EmailSettings.Password == passwordMask {
		current, err := h.Config.Load(r.Context())
		if err != nil {
			writeError(w, h.logger, err)
			return
		}
		cfg.EmailSettings.Password = current.EmailSettings.Password
	}

	if err := h.Config.Save(r.Context(), &cfg); err != nil {
		writeError(w, h.logger, err)
		return
	}
	utils.JSON(w, http.StatusOK, redact(&cfg))
}

type keywordRequest struct {
	Keyword string `json:"keyword"`
}

func (h *ConfigHandler) AddKeyword(w http.ResponseWriter, r *http.Request) {
	var req keywordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.Error(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	cfg, err := h.Config.AddKeyword(r.Context(), req.Keyword)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	utils.JSON(w, http.StatusCreated, cfg.Keywords)
}

func (h *ConfigHandler) RemoveKeyword(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.Config.RemoveKeyword(r.Context(), mux.Vars(r)["keyword"])
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	utils.JSON(w, http.StatusOK, cfg.Keywords)
}

func (h *ConfigHandler) ResetKeywords(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.Config.ResetKeywords(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	utils.JSON(w, http.StatusOK, cfg.Keywords)
}

type webhookTestRequest struct {
	URL string `json:"url"`
}

// TestWebhook posts the sample payload to the given URL, or to the
// configured webhook when the body names none.
func (h *ConfigHandler) TestWebhook(w http.ResponseWriter, r *http.Request) {
	var req webhookTestRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			utils.Error(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	}

	url := req.URL
	if url == "" {
		cfg, err := h.Config.Load(r.Context())
		if err != nil {
			writeError(w, h.logger, err)
			return
		}
		url = cfg.WebhookURL
	}

	if err := h.Forwarder.TestWebhook(r.Context(), url); err != nil {
		writeError(w, h.logger, err)
		return
	}
	utils.JSON(w, http.StatusOK, map[string]string{"message": "Test webhook sent successfully"})
}
