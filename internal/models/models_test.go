package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOTPRecordJSONShape(t *testing.T) {
	rec := OTPRecord{
		ID:        "abc",
		OTP:       "123456",
		Source:    SourceSMS,
		Sender:    "+15550001",
		Message:   "Your OTP is 123456",
		Timestamp: time.Date(2024, 2, 3, 4, 5, 6, 789_000_000, time.UTC),
	}

	data, err := json.Marshal(rec)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"id": "abc",
		"otp": "123456",
		"source": "sms",
		"sender": "+15550001",
		"message": "Your OTP is 123456",
		"timestamp": "2024-02-03T04:05:06.789Z",
		"forwarded": false,
		"forwardingMethod": null
	}`, string(data))

	rec.MarkForwarded(MethodWebhook)
	data, err = json.Marshal(rec)
	require.NoError(t, err)

	var back OTPRecord
	require.NoError(t, json.Unmarshal(data, &back))
	assert.True(t, back.Timestamp.Equal(rec.Timestamp))
	assert.True(t, back.Forwarded)
	assert.Equal(t, MethodWebhook, back.Method())
}

func TestOTPRecordUnforwardedDropsMethod(t *testing.T) {
	var rec OTPRecord
	err := json.Unmarshal([]byte(`{"id":"x","timestamp":"2024-01-01T00:00:00.000Z","forwarded":false,"forwardingMethod":"email"}`), &rec)
	require.NoError(t, err)
	assert.Nil(t, rec.ForwardingMethod)
}

func TestOTPRecordBadTimestamp(t *testing.T) {
	var rec OTPRecord
	err := json.Unmarshal([]byte(`{"id":"x","timestamp":"yesterday"}`), &rec)
	assert.Error(t, err)
}

func TestConfigurationDefaultsOnLoad(t *testing.T) {
	var cfg Configuration
	err := json.Unmarshal([]byte(`{"keywords":["otp"],"webhookUrl":"https://example.com/hook","emailSettings":{"recipient":"me@example.com"}}`), &cfg)
	require.NoError(t, err)

	assert.True(t, cfg.SMSListenerEnabled)
	assert.Equal(t, 4, cfg.OTPMinLength)
	assert.Equal(t, 8, cfg.OTPMaxLength)
	assert.Equal(t, 587, cfg.EmailSettings.SMTPPort)
	assert.Equal(t, "me@example.com", cfg.EmailSettings.Recipient)
}

func TestConfigurationKeepsExplicitFalse(t *testing.T) {
	var cfg Configuration
	err := json.Unmarshal([]byte(`{"keywords":[],"otpMinLength":6,"otpMaxLength":6,"smsListenerEnabled":false}`), &cfg)
	require.NoError(t, err)
	assert.False(t, cfg.SMSListenerEnabled)
	assert.Equal(t, 6, cfg.OTPMinLength)
	assert.Equal(t, 6, cfg.OTPMaxLength)
	assert.Empty(t, cfg.Keywords)
}

func TestConfigurationValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Configuration)
		wantErr bool
	}{
		{"defaults", func(c *Configuration) {}, false},
		{"min zero", func(c *Configuration) { c.OTPMinLength = 0 }, true},
		{"max over bound", func(c *Configuration) { c.OTPMaxLength = 21 }, true},
		{"min above max", func(c *Configuration) { c.OTPMinLength = 9 }, true},
		{"relative webhook", func(c *Configuration) { c.WebhookURL = "/hook" }, true},
		{"ftp webhook", func(c *Configuration) { c.WebhookURL = "ftp://example.com" }, true},
		{"https webhook", func(c *Configuration) { c.WebhookURL = "https://example.com/hook" }, false},
		{"recipient without host", func(c *Configuration) { c.EmailSettings.Recipient = "me@example.com" }, true},
		{"recipient with host", func(c *Configuration) {
			c.EmailSettings.Recipient = "me@example.com"
			c.EmailSettings.SMTPHost = "smtp.example.com"
		}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfiguration()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfigurationClone(t *testing.T) {
	cfg := DefaultConfiguration()
	cp := cfg.Clone()
	cp.Keywords[0] = "bank"
	assert.Equal(t, "otp", cfg.Keywords[0])
}
