package handlers

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"otplink/internal/apperrors"
	"otplink/internal/store"
	"otplink/pkg/utils"
)

// statusFor maps service errors onto HTTP statuses.
func statusFor(err error) int {
	if errors.Is(err, store.ErrNotFound) {
		return http.StatusNotFound
	}
	switch apperrors.KindOf(err) {
	case apperrors.InvalidConfig:
		return http.StatusBadRequest
	case apperrors.DeliveryFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, logger *zap.Logger, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", zap.Error(err))
		utils.Error(w, status, "Internal server error")
		return
	}
	utils.Error(w, status, err.Error())
}
