package services

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"otplink/internal/apperrors"
	"otplink/internal/cache"
	"otplink/internal/models"
	"otplink/internal/otp"
	"otplink/internal/persistence"
	"otplink/internal/secret"
)

func TestConfigLoadDefaults(t *testing.T) {
	svc := NewConfigService(newTestStore(t), newTestBox(t), zap.NewNop())

	cfg, err := svc.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, otp.DefaultKeywords(), cfg.Keywords)
	assert.Equal(t, 4, cfg.OTPMinLength)
	assert.Equal(t, 8, cfg.OTPMaxLength)
	assert.True(t, cfg.SMSListenerEnabled)
	assert.Equal(t, 587, cfg.EmailSettings.SMTPPort)
}

func TestConfigSaveValidates(t *testing.T) {
	ctx := context.Background()
	svc := NewConfigService(newTestStore(t), newTestBox(t), zap.NewNop())

	cfg, err := svc.Load(ctx)
	require.NoError(t, err)
	cfg.EmailSettings.Recipient = "me@example.com"

	err = svc.Save(ctx, cfg)
	assert.True(t, apperrors.Is(err, apperrors.InvalidConfig))

	// nothing persisted
	again, err := svc.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, again.EmailSettings.Recipient)

	cfg.EmailSettings.SMTPHost = " smtp.example.com "
	cfg.Keywords = []string{"OTP", " Bank ", "otp"}
	require.NoError(t, svc.Save(ctx, cfg))

	again, err = svc.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "smtp.example.com", again.EmailSettings.SMTPHost)
	assert.Equal(t, []string{"otp", "bank"}, again.Keywords)
}

func TestConfigKeywordManagement(t *testing.T) {
	ctx := context.Background()
	svc := NewConfigService(newTestStore(t), newTestBox(t), zap.NewNop())

	cfg, err := svc.AddKeyword(ctx, "  PIN ")
	require.NoError(t, err)
	assert.Contains(t, cfg.Keywords, "pin")

	_, err = svc.AddKeyword(ctx, "pin")
	assert.True(t, apperrors.Is(err, apperrors.InvalidConfig))

	_, err = svc.AddKeyword(ctx, "   ")
	assert.True(t, apperrors.Is(err, apperrors.InvalidConfig))

	cfg, err = svc.RemoveKeyword(ctx, "OTP")
	require.NoError(t, err)
	assert.NotContains(t, cfg.Keywords, "otp")

	cfg, err = svc.ResetKeywords(ctx)
	require.NoError(t, err)
	assert.Equal(t, otp.DefaultKeywords(), cfg.Keywords)
}

func TestConfigListenerToggle(t *testing.T) {
	ctx := context.Background()
	svc := NewConfigService(newTestStore(t), newTestBox(t), zap.NewNop())

	require.NoError(t, svc.SetListenerEnabled(ctx, false))
	cfg, err := svc.Load(ctx)
	require.NoError(t, err)
	assert.False(t, cfg.SMSListenerEnabled)
}

func TestConfigLoadStorageFailure(t *testing.T) {
	svc := NewConfigService(brokenStore{}, newTestBox(t), zap.NewNop())
	_, err := svc.Load(context.Background())
	assert.True(t, apperrors.Is(err, apperrors.StorageFailed))
}

func emailSettingsConfig(password string) *models.Configuration {
	cfg := models.DefaultConfiguration()
	cfg.EmailSettings.SMTPHost = "smtp.example.com"
	cfg.EmailSettings.Recipient = "me@example.com"
	cfg.EmailSettings.Password = password
	return cfg
}

func TestConfigPasswordSealedAtRest(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "otplink.db")
	s, err := persistence.OpenBolt(path)
	require.NoError(t, err)
	svc := NewConfigService(s, newTestBox(t), zap.NewNop())

	cfg := emailSettingsConfig("hunter2-plaintext")
	require.NoError(t, svc.Save(ctx, cfg))
	assert.Equal(t, "hunter2-plaintext", cfg.EmailSettings.Password, "caller copy stays usable")

	loaded, err := svc.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "hunter2-plaintext", loaded.EmailSettings.Password)

	stored, err := s.LoadConfiguration(ctx)
	require.NoError(t, err)
	assert.True(t, secret.IsSealed(stored.EmailSettings.Password))

	require.NoError(t, s.Close())
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "hunter2-plaintext")
}

func TestConfigPasswordUnderOtherKeyIsDropped(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	require.NoError(t, NewConfigService(s, newTestBox(t), zap.NewNop()).Save(ctx, emailSettingsConfig("hunter2")))

	other, err := secret.Load("rotated-key", "")
	require.NoError(t, err)
	cfg, err := NewConfigService(s, other, zap.NewNop()).Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, cfg.EmailSettings.Password)
	assert.Equal(t, "me@example.com", cfg.EmailSettings.Recipient)
}

func TestConfigLegacyPlaintextIsResealed(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	require.NoError(t, s.SaveConfiguration(ctx, emailSettingsConfig("hunter2")))

	cfg, err := NewConfigService(s, newTestBox(t), zap.NewNop()).Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "hunter2", cfg.EmailSettings.Password)

	stored, err := s.LoadConfiguration(ctx)
	require.NoError(t, err)
	assert.True(t, secret.IsSealed(stored.EmailSettings.Password))
}

// Set OTPLINK_TEST_REDIS_ADDR to check the cached document against a live Redis.
func TestConfigCacheHoldsSealedPassword(t *testing.T) {
	addr := os.Getenv("OTPLINK_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("OTPLINK_TEST_REDIS_ADDR not set")
	}
	require.NoError(t, cache.Init(addr, "", 0))
	t.Cleanup(func() { cache.Close() })

	ctx := context.Background()
	cache.InvalidateConfig(ctx)
	svc := NewConfigService(newTestStore(t), newTestBox(t), zap.NewNop())
	require.NoError(t, svc.Save(ctx, emailSettingsConfig("hunter2-plaintext")))

	_, err := svc.Load(ctx)
	require.NoError(t, err)
	data, ok := cache.GetCached(ctx, cache.ConfigKey)
	require.True(t, ok)
	assert.NotContains(t, string(data), "hunter2-plaintext")

	var cached models.Configuration
	require.NoError(t, json.Unmarshal(data, &cached))
	assert.True(t, secret.IsSealed(cached.EmailSettings.Password))

	// served from the cache, still opened for callers
	again, err := svc.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "hunter2-plaintext", again.EmailSettings.Password)
	cache.InvalidateConfig(ctx)
}
