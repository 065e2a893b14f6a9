package services

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"otplink/internal/apperrors"
	"otplink/internal/cache"
	"otplink/internal/models"
	"otplink/internal/otp"
	"otplink/internal/secret"
	"otplink/internal/store"
)

// ConfigService reads and writes the user configuration document, with a
// Redis read-through when a cache is connected. The SMTP password is sealed
// with box everywhere outside this service: the store and the cache only
// ever see the sealed form.
type ConfigService struct {
	store  store.RecordStore
	box    *secret.Box
	logger *zap.Logger
}

func NewConfigService(recordStore store.RecordStore, box *secret.Box, logger *zap.Logger) *ConfigService {
	return &ConfigService{store: recordStore, box: box, logger: logger.Named("config")}
}

// Load returns the saved configuration, or defaults when none exists.
func (s *ConfigService) Load(ctx context.Context) (*models.Configuration, error) {
	if data, ok := cache.GetCached(ctx, cache.ConfigKey); ok {
		var cfg models.Configuration
		if err := json.Unmarshal(data, &cfg); err == nil {
			s.open(&cfg)
			return &cfg, nil
		}
		cache.InvalidateConfig(ctx)
	}

	cfg, err := s.store.LoadConfiguration(ctx)
	if err != nil {
		return nil, apperrors.Storage("config.load", err)
	}
	if cfg == nil {
		cfg = models.DefaultConfiguration()
	}

	legacy := cfg.EmailSettings.Password != "" && !secret.IsSealed(cfg.EmailSettings.Password)
	stored, err := s.seal(cfg)
	if err != nil {
		return nil, apperrors.Storage("config.load", err)
	}
	if legacy {
		if err := s.store.SaveConfiguration(ctx, stored); err != nil {
			s.logger.Warn("could not reseal stored SMTP password", zap.Error(err))
		} else {
			s.logger.Info("sealed plaintext SMTP password in store")
		}
	}

	if data, err := json.Marshal(stored); err == nil {
		cache.SetCached(ctx, cache.ConfigKey, data, cache.ConfigTTL)
	}
	s.open(cfg)
	return cfg, nil
}

// seal returns a copy of cfg whose SMTP password is sealed.
func (s *ConfigService) seal(cfg *models.Configuration) (*models.Configuration, error) {
	out := cfg.Clone()
	if pw := out.EmailSettings.Password; pw != "" && !secret.IsSealed(pw) {
		sealed, err := s.box.Seal(pw)
		if err != nil {
			return nil, err
		}
		out.EmailSettings.Password = sealed
	}
	return out, nil
}

// open unseals the SMTP password in place. A password sealed under another
// key is dropped so the rest of the configuration stays usable.
func (s *ConfigService) open(cfg *models.Configuration) {
	plain, err := s.box.Open(cfg.EmailSettings.Password)
	if err != nil {
		s.logger.Warn("stored SMTP password cannot be opened with the current key; re-enter it", zap.Error(err))
		plain = ""
	}
	cfg.EmailSettings.Password = plain
}

// Save normalizes, validates and persists cfg. Nothing is written when
// validation fails.
func (s *ConfigService) Save(ctx context.Context, cfg *models.Configuration) error {
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return apperrors.E(apperrors.InvalidConfig, "config.save", err)
	}
	stored, err := s.seal(cfg)
	if err != nil {
		return apperrors.Storage("config.save", err)
	}
	if err := s.store.SaveConfiguration(ctx, stored); err != nil {
		return apperrors.Storage("config.save", err)
	}
	cache.InvalidateConfig(ctx)
	s.logger.Info("configuration saved",
		zap.Int("keywords", len(cfg.Keywords)),
		zap.Bool("webhook", cfg.WebhookURL != ""),
		zap.Bool("email", cfg.EmailSettings.Enabled()),
		zap.Bool("listener", cfg.SMSListenerEnabled))
	return nil
}

// AddKeyword appends kw (trimmed, lowercased). Empty or already present
// keywords are rejected.
func (s *ConfigService) AddKeyword(ctx context.Context, kw string) (*models.Configuration, error) {
	kw = otp.NormalizeKeyword(kw)
	if kw == "" {
		return nil, apperrors.Invalid("config.keywords.add", "keyword is empty")
	}
	cfg, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}
	for _, existing := range cfg.Keywords {
		if existing == kw {
			return nil, apperrors.Invalid("config.keywords.add", "keyword %q already exists", kw)
		}
	}
	cfg.Keywords = append(cfg.Keywords, kw)
	if err := s.Save(ctx, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (s *ConfigService) RemoveKeyword(ctx context.Context, kw string) (*models.Configuration, error) {
	kw = otp.NormalizeKeyword(kw)
	cfg, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}
	kept := cfg.Keywords[:0]
	for _, existing := range cfg.Keywords {
		if existing != kw {
			kept = append(kept, existing)
		}
	}
	cfg.Keywords = kept
	if err := s.Save(ctx, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ResetKeywords restores the built-in keyword list.
func (s *ConfigService) ResetKeywords(ctx context.Context) (*models.Configuration, error) {
	cfg, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}
	cfg.Keywords = otp.DefaultKeywords()
	if err := s.Save(ctx, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SetListenerEnabled persists the listener toggle.
func (s *ConfigService) SetListenerEnabled(ctx context.Context, enabled bool) error {
	cfg, err := s.Load(ctx)
	if err != nil {
		return err
	}
	if cfg.SMSListenerEnabled == enabled {
		return nil
	}
	cfg.SMSListenerEnabled = enabled
	return s.Save(ctx, cfg)
}
