package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"otplink/internal/services"
	"otplink/pkg/utils"
)

type OTPHandler struct {
	Pipeline *services.Pipeline
	logger   *zap.Logger
}

func NewOTPHandler(pipeline *services.Pipeline, logger *zap.Logger) *OTPHandler {
	return &OTPHandler{Pipeline: pipeline, logger: logger.Named("otp-handler")}
}

// List returns the record history, newest first.
func (h *OTPHandler) List(w http.ResponseWriter, r *http.Request) {
	records, err := h.Pipeline.Records(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	utils.JSON(w, http.StatusOK, records)
}

func (h *OTPHandler) Clear(w http.ResponseWriter, r *http.Request) {
	if err := h.Pipeline.ClearRecords(r.Context()); err != nil {
		writeError(w, h.logger, err)
		return
	}
	utils.JSON(w, http.StatusOK, map[string]string{"message": "History cleared"})
}

// Forward retries delivery of one stored record.
func (h *OTPHandler) Forward(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	rec, forwarded, err := h.Pipeline.ForwardNow(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	utils.JSON(w, http.StatusOK, map[string]interface{}{
		"forwarded": forwarded,
		"record":    rec,
	})
}

type detectRequest struct {
	Message string `json:"message"`
}

// Detect runs keyword matching and extraction without recording anything.
func (h *OTPHandler) Detect(w http.ResponseWriter, r *http.Request) {
	var req detectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.Error(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		utils.Error(w, http.StatusBadRequest, "message is required")
		return
	}

	result, err := h.Pipeline.Detect(r.Context(), req.Message)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	utils.JSON(w, http.StatusOK, result)
}
