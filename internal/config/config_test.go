package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	t.Setenv("OTPLINK_CONFIG", path)
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	t.Setenv("OTPLINK_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "bolt", cfg.Storage.Driver)
	assert.Equal(t, "inbox", cfg.SMS.Source)
	assert.Equal(t, 2*time.Second, cfg.SMS.PollInterval)
	assert.Equal(t, 10*time.Second, cfg.SMS.HeartbeatInterval)
	assert.Equal(t, 10*time.Second, cfg.Forwarding.Timeout)
	assert.Equal(t, "otplink.key", cfg.Secrets.KeyFile)
	assert.Empty(t, cfg.Secrets.Key)
}

func TestLoadSecretKeyFromEnv(t *testing.T) {
	t.Setenv("OTPLINK_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("OTPLINK_SECRET_KEY", "from-env")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Secrets.Key)
}

func TestLoadFileAndEnv(t *testing.T) {
	writeConfig(t, `
storage:
  driver: postgres
sms:
  source: gateway
  gateway_url: http://phone.local:8081/sms
  poll_interval: 5s
database:
  name: otp_test
`)
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("DB_HOST", "db.internal")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "postgres", cfg.Storage.Driver)
	assert.Equal(t, 5*time.Second, cfg.SMS.PollInterval)
	assert.Equal(t, "postgres://postgres:@db.internal:5432/otp_test?sslmode=disable", cfg.DatabaseURL())
}

func TestLoadRejectsBadValues(t *testing.T) {
	writeConfig(t, "storage:\n  driver: sqlite\n")
	_, err := Load()
	assert.Error(t, err)

	writeConfig(t, "sms:\n  source: gateway\n")
	_, err = Load()
	assert.Error(t, err)

	writeConfig(t, "secrets:\n  key_file: \"\"\n")
	_, err = Load()
	assert.Error(t, err)

	writeConfig(t, "jwt:\n  enabled: true\n")
	t.Setenv("JWT_SECRET", "")
	_, err = Load()
	assert.Error(t, err)
}
