package services

import (
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"otplink/internal/dedup"
	"otplink/internal/metrics"
	"otplink/internal/models"
	"otplink/internal/otp"
	"otplink/internal/timeutil"
)

// DuplicateWindow is how long a sender+code pair is suppressed after it
// first produces a record.
const DuplicateWindow = 5 * time.Minute

// MessageProcessor turns an SMS into at most one new OTP record per
// sender+code pair within DuplicateWindow.
type MessageProcessor struct {
	seen   *dedup.Set
	clock  timeutil.Clock
	newID  func() string
	logger *zap.Logger
}

func NewMessageProcessor(clock timeutil.Clock, logger *zap.Logger) *MessageProcessor {
	if clock == nil {
		clock = timeutil.SystemClock{}
	}
	return &MessageProcessor{
		seen:   dedup.New(clock, DuplicateWindow),
		clock:  clock,
		newID:  uuid.NewString,
		logger: logger.Named("processor"),
	}
}

// Cache exposes the duplicate cache so callers can sweep it.
func (p *MessageProcessor) Cache() *dedup.Set {
	return p.seen
}

// Release forgets the duplicate claim made for rec.
func (p *MessageProcessor) Release(rec *models.OTPRecord) {
	p.seen.Remove(dedupKey(rec.Sender, rec.OTP))
}

func dedupKey(sender, code string) string {
	return sender + ":" + code
}

// ProcessMessage returns a new record, or nil when the message has no
// keyword, no qualifying code, or repeats a recent sender+code pair.
func (p *MessageProcessor) ProcessMessage(sender, message string, keywords []string, minLength, maxLength int) *models.OTPRecord {
	if !otp.ContainsKeywords(message, keywords) {
		metrics.MessagesProcessed.WithLabelValues("no_keyword").Inc()
		p.logger.Debug("no keyword match", zap.String("sender", sender))
		return nil
	}

	code, ok := otp.ExtractOTP(message, minLength, maxLength)
	if !ok {
		metrics.MessagesProcessed.WithLabelValues("no_otp").Inc()
		p.logger.Debug("keyword matched but no code in range",
			zap.String("sender", sender),
			zap.Int("min", minLength),
			zap.Int("max", maxLength))
		return nil
	}

	if !p.seen.Claim(dedupKey(sender, code)) {
		metrics.MessagesProcessed.WithLabelValues("duplicate").Inc()
		p.logger.Debug("duplicate otp suppressed", zap.String("sender", sender))
		return nil
	}

	metrics.MessagesProcessed.WithLabelValues("detected").Inc()
	rec := &models.OTPRecord{
		ID:        p.newID(),
		OTP:       code,
		Source:    models.SourceSMS,
		Sender:    sender,
		Message:   message,
		Timestamp: timeutil.Millis(p.clock.Now()),
		Forwarded: false,
	}
	p.logger.Info("otp detected", zap.String("id", rec.ID), zap.String("sender", sender))
	return rec
}
