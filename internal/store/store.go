// Package store defines the configuration and OTP history persistence
// contract shared by the bolt and postgres backends.
package store

import (
	"context"
	"errors"

	"otplink/internal/models"
)

// MaxRecords caps the stored OTP history.
const MaxRecords = 100

// Keys used by key-value backends.
const (
	ConfigKey  = "otp_link_config"
	RecordsKey = "otp_link_records"
)

var ErrNotFound = errors.New("record not found")

// RecordStore persists the configuration document and OTP history. History
// is newest first and never longer than MaxRecords.
type RecordStore interface {
	// LoadConfiguration returns nil, nil when nothing has been saved yet.
	LoadConfiguration(ctx context.Context) (*models.Configuration, error)
	SaveConfiguration(ctx context.Context, cfg *models.Configuration) error

	SaveOTPRecord(ctx context.Context, rec *models.OTPRecord) error
	LoadOTPRecords(ctx context.Context) ([]models.OTPRecord, error)
	GetOTPRecord(ctx context.Context, id string) (*models.OTPRecord, error)
	// UpdateOTPRecord replaces the stored record with the same ID.
	// Returns ErrNotFound when the ID is not in history.
	UpdateOTPRecord(ctx context.Context, rec *models.OTPRecord) error
	ClearOTPRecords(ctx context.Context) error

	Ping(ctx context.Context) error
	Close() error
}

// Prepend puts rec in front of history and applies the cap.
func Prepend(history []models.OTPRecord, rec models.OTPRecord) []models.OTPRecord {
	out := make([]models.OTPRecord, 0, len(history)+1)
	out = append(out, rec)
	out = append(out, history...)
	if len(out) > MaxRecords {
		out = out[:MaxRecords]
	}
	return out
}
