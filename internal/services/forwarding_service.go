package services

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"otplink/internal/apperrors"
	"otplink/internal/dedup"
	"otplink/internal/email"
	"otplink/internal/metrics"
	"otplink/internal/models"
	"otplink/internal/store"
	"otplink/internal/timeutil"
	"otplink/internal/webhook"
)

// ForwardingService delivers OTP records to the configured webhook and
// email recipient, at most once per record.
type ForwardingService struct {
	store    store.RecordStore
	webhook  *webhook.Client
	mailer   email.Sender
	sessions *dedup.Set
	flight   singleflight.Group
	clock    timeutil.Clock
	logger   *zap.Logger
}

func NewForwardingService(
	recordStore store.RecordStore,
	webhookClient *webhook.Client,
	mailer email.Sender,
	clock timeutil.Clock,
	logger *zap.Logger,
) *ForwardingService {
	if clock == nil {
		clock = timeutil.SystemClock{}
	}
	return &ForwardingService{
		store:    recordStore,
		webhook:  webhookClient,
		mailer:   mailer,
		sessions: dedup.New(clock, DuplicateWindow),
		clock:    clock,
		logger:   logger.Named("forwarder"),
	}
}

// Sessions exposes the session suppression set so callers can sweep it.
func (s *ForwardingService) Sessions() *dedup.Set {
	return s.sessions
}

type forwardResult struct {
	delivered bool
	rec       models.OTPRecord
}

// ForwardOTP returns true when at least one channel delivered rec or rec was
// already forwarded. Channel failures are logged and yield false with a nil
// error; the error is reserved for invalid configuration and storage faults.
// On success rec is updated in place.
func (s *ForwardingService) ForwardOTP(ctx context.Context, rec *models.OTPRecord, cfg *models.Configuration) (bool, error) {
	if rec.Forwarded {
		metrics.ForwardSkipped.WithLabelValues("already_forwarded").Inc()
		return true, nil
	}
	if rec.ID == "" {
		return false, apperrors.Invalid("forward", "record has no id")
	}

	v, err, shared := s.flight.Do(rec.ID, func() (interface{}, error) {
		work := *rec
		ok, err := s.forward(ctx, &work, cfg)
		return forwardResult{delivered: ok, rec: work}, err
	})
	res := v.(forwardResult)
	if shared {
		s.logger.Debug("joined in-flight forward", zap.String("id", rec.ID))
	}
	if res.rec.Forwarded {
		rec.Forwarded = true
		rec.ForwardingMethod = res.rec.ForwardingMethod
	}
	return res.delivered, err
}

func (s *ForwardingService) forward(ctx context.Context, rec *models.OTPRecord, cfg *models.Configuration) (bool, error) {
	stored, err := s.store.GetOTPRecord(ctx, rec.ID)
	switch {
	case err == nil && stored.Forwarded:
		metrics.ForwardSkipped.WithLabelValues("stored_forwarded").Inc()
		rec.Forwarded = true
		rec.ForwardingMethod = stored.ForwardingMethod
		return true, nil
	case err != nil && !errors.Is(err, store.ErrNotFound):
		return false, apperrors.Storage("forward.lookup", err)
	}

	if cfg.EmailSettings.Enabled() && cfg.EmailSettings.SMTPHost == "" {
		return false, apperrors.Invalid("forward", "SMTP host is required when email forwarding is enabled")
	}
	if cfg.WebhookURL == "" && !cfg.EmailSettings.Enabled() {
		s.logger.Warn("no forwarding channel configured", zap.String("id", rec.ID))
		return false, nil
	}

	key := rec.OTP + "|" + rec.Sender
	if !s.sessions.Claim(key) {
		metrics.ForwardSkipped.WithLabelValues("session_duplicate").Inc()
		s.logger.Info("otp already forwarded this session", zap.String("id", rec.ID))
		return true, nil
	}

	delivered := false

	if cfg.WebhookURL != "" {
		if err := s.webhook.Post(ctx, cfg.WebhookURL, webhook.PayloadFor(rec)); err != nil {
			metrics.ForwardAttempts.WithLabelValues(models.MethodWebhook, "failure").Inc()
			s.logger.Warn("webhook delivery failed", zap.String("id", rec.ID), zap.Error(err))
		} else {
			metrics.ForwardAttempts.WithLabelValues(models.MethodWebhook, "success").Inc()
			delivered = true
			rec.MarkForwarded(models.MethodWebhook)
			if err := s.persist(ctx, rec); err != nil {
				return true, err
			}
		}
	}

	if cfg.EmailSettings.Enabled() {
		msg := email.Compose(rec, cfg.EmailSettings)
		if err := s.mailer.Send(ctx, cfg.EmailSettings, msg); err != nil {
			metrics.ForwardAttempts.WithLabelValues(models.MethodEmail, "failure").Inc()
			s.logger.Warn("email delivery failed", zap.String("id", rec.ID), zap.Error(err))
		} else {
			metrics.ForwardAttempts.WithLabelValues(models.MethodEmail, "success").Inc()
			delivered = true
			rec.MarkForwarded(models.MethodEmail)
			if err := s.persist(ctx, rec); err != nil {
				return true, err
			}
		}
	}

	if !delivered {
		// let a manual retry through
		s.sessions.Remove(key)
		return false, nil
	}
	s.logger.Info("otp forwarded", zap.String("id", rec.ID), zap.String("method", rec.Method()))
	return true, nil
}

func (s *ForwardingService) persist(ctx context.Context, rec *models.OTPRecord) error {
	err := s.store.UpdateOTPRecord(ctx, rec)
	if errors.Is(err, store.ErrNotFound) {
		s.logger.Warn("forwarded record no longer in history", zap.String("id", rec.ID))
		return nil
	}
	if err != nil {
		return apperrors.Storage("forward.persist", err)
	}
	return nil
}

// TestWebhook posts the fixed test payload to url.
func (s *ForwardingService) TestWebhook(ctx context.Context, url string) error {
	if url == "" {
		return apperrors.Invalid("webhook.test", "webhook URL is empty")
	}
	return s.webhook.Post(ctx, url, webhook.TestPayload(s.clock.Now()))
}
