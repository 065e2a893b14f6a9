package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"otplink/internal/models"
	"otplink/internal/services"
	"otplink/internal/sms"
	"otplink/pkg/utils"
)

type SMSHandler struct {
	Inbox  *sms.Inbox // nil when a remote gateway is the source
	Poller *sms.Poller
	Config *services.ConfigService
	logger *zap.Logger
}

func NewSMSHandler(inbox *sms.Inbox, poller *sms.Poller, config *services.ConfigService, logger *zap.Logger) *SMSHandler {
	return &SMSHandler{Inbox: inbox, Poller: poller, Config: config, logger: logger.Named("sms-handler")}
}

type incomingSMS struct {
	Sender  string `json:"sender"`
	Address string `json:"address"`
	Body    string `json:"body"`
	Date    int64  `json:"date"` // unix millis, optional
}

// Incoming queues a message pushed by a device. The poller picks it up on
// its next tick.
func (h *SMSHandler) Incoming(w http.ResponseWriter, r *http.Request) {
	if h.Inbox == nil {
		utils.Error(w, http.StatusConflict, "SMS source is a remote gateway; push is disabled")
		return
	}

	var req incomingSMS
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.Error(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.Body) == "" {
		utils.Error(w, http.StatusBadRequest, "body is required")
		return
	}

	msg := models.SMSMessage{Sender: req.Sender, Body: req.Body}
	if msg.Sender == "" {
		msg.Sender = req.Address
	}
	if req.Date > 0 {
		msg.Date = time.UnixMilli(req.Date).UTC()
	}
	queued := h.Inbox.Push(msg)

	utils.JSON(w, http.StatusAccepted, map[string]interface{}{
		"queued": true,
		"date":   queued.Date.UnixMilli(),
	})
}

type listenerResponse struct {
	Enabled bool `json:"enabled"`
	sms.Status
}

func (h *SMSHandler) respond(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.Config.Load(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	utils.JSON(w, http.StatusOK, listenerResponse{Enabled: cfg.SMSListenerEnabled, Status: h.Poller.Status()})
}

func (h *SMSHandler) Status(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r)
}

// Start enables the persisted toggle and starts polling.
func (h *SMSHandler) Start(w http.ResponseWriter, r *http.Request) {
	if err := h.Poller.Start(r.Context()); err != nil {
		if errors.Is(err, sms.ErrPermissionDenied) {
			utils.Error(w, http.StatusForbidden, err.Error())
			return
		}
		writeError(w, h.logger, err)
		return
	}
	if err := h.Config.SetListenerEnabled(r.Context(), true); err != nil {
		writeError(w, h.logger, err)
		return
	}
	h.respond(w, r)
}

// Stop halts polling and disables the persisted toggle.
func (h *SMSHandler) Stop(w http.ResponseWriter, r *http.Request) {
	h.Poller.Stop()
	if err := h.Config.SetListenerEnabled(r.Context(), false); err != nil {
		writeError(w, h.logger, err)
		return
	}
	h.respond(w, r)
}
