package services

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"otplink/internal/apperrors"
	"otplink/internal/models"
	"otplink/internal/otp"
	"otplink/internal/store"
)

// Event stream names
const (
	EventOTPDetected = "otp_detected"
	EventOTPUpdated  = "otp_updated"
	EventOTPsCleared = "otps_cleared"
)

// Broadcaster pushes events to connected listeners.
type Broadcaster interface {
	Broadcast(event string, payload interface{})
}

type nopBroadcaster struct{}

func (nopBroadcaster) Broadcast(string, interface{}) {}

// Pipeline is the single entry point for inbound SMS: detect, record,
// announce, forward.
type Pipeline struct {
	config    *ConfigService
	processor *MessageProcessor
	forwarder *ForwardingService
	store     store.RecordStore
	events    Broadcaster
	logger    *zap.Logger
}

func NewPipeline(
	config *ConfigService,
	processor *MessageProcessor,
	forwarder *ForwardingService,
	recordStore store.RecordStore,
	events Broadcaster,
	logger *zap.Logger,
) *Pipeline {
	if events == nil {
		events = nopBroadcaster{}
	}
	return &Pipeline{
		config:    config,
		processor: processor,
		forwarder: forwarder,
		store:     recordStore,
		events:    events,
		logger:    logger.Named("pipeline"),
	}
}

// HandleSMS runs one message through the pipeline. It returns the new
// record, or nil when nothing was detected or the listener is disabled.
func (p *Pipeline) HandleSMS(ctx context.Context, msg models.SMSMessage) (*models.OTPRecord, error) {
	cfg, err := p.config.Load(ctx)
	if err != nil {
		return nil, err
	}
	if !cfg.SMSListenerEnabled {
		p.logger.Debug("listener disabled, message ignored")
		return nil, nil
	}

	sender := strings.TrimSpace(msg.Sender)
	if sender == "" {
		sender = "Unknown"
	}

	rec := p.processor.ProcessMessage(sender, msg.Body, cfg.Keywords, cfg.OTPMinLength, cfg.OTPMaxLength)
	if rec == nil {
		return nil, nil
	}

	if err := p.store.SaveOTPRecord(ctx, rec); err != nil {
		// unsaved, so a redelivery of the same SMS must be detected again
		p.processor.Release(rec)
		return nil, apperrors.Storage("pipeline.save", err)
	}
	p.events.Broadcast(EventOTPDetected, rec)

	forwarded, err := p.forwarder.ForwardOTP(ctx, rec, cfg)
	if err != nil {
		p.logger.Error("auto-forward failed", zap.String("id", rec.ID), zap.Error(err))
		return rec, err
	}
	if forwarded && rec.Forwarded {
		p.events.Broadcast(EventOTPUpdated, rec)
	}
	return rec, nil
}

// Handle adapts HandleSMS to the poller callback.
func (p *Pipeline) Handle(ctx context.Context, msg models.SMSMessage) error {
	_, err := p.HandleSMS(ctx, msg)
	return err
}

// ForwardNow forwards a stored record on demand.
func (p *Pipeline) ForwardNow(ctx context.Context, id string) (*models.OTPRecord, bool, error) {
	rec, err := p.store.GetOTPRecord(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, false, err
	}
	if err != nil {
		return nil, false, apperrors.Storage("records.get", err)
	}
	cfg, err := p.config.Load(ctx)
	if err != nil {
		return nil, false, err
	}
	wasForwarded := rec.Forwarded
	ok, err := p.forwarder.ForwardOTP(ctx, rec, cfg)
	if err != nil {
		return rec, ok, err
	}
	if ok && rec.Forwarded && !wasForwarded {
		p.events.Broadcast(EventOTPUpdated, rec)
	}
	return rec, ok, nil
}

// Detection is the outcome of a dry run.
type Detection struct {
	KeywordMatch bool   `json:"keywordMatch"`
	OTP          string `json:"otp,omitempty"`
	Found        bool   `json:"found"`
}

// Detect checks message against the current configuration without touching
// the duplicate cache or the store.
func (p *Pipeline) Detect(ctx context.Context, message string) (Detection, error) {
	cfg, err := p.config.Load(ctx)
	if err != nil {
		return Detection{}, err
	}
	d := Detection{KeywordMatch: otp.ContainsKeywords(message, cfg.Keywords)}
	if d.KeywordMatch {
		d.OTP, d.Found = otp.ExtractOTP(message, cfg.OTPMinLength, cfg.OTPMaxLength)
	}
	return d, nil
}

func (p *Pipeline) Records(ctx context.Context) ([]models.OTPRecord, error) {
	recs, err := p.store.LoadOTPRecords(ctx)
	if err != nil {
		return nil, apperrors.Storage("records.list", err)
	}
	return recs, nil
}

func (p *Pipeline) ClearRecords(ctx context.Context) error {
	if err := p.store.ClearOTPRecords(ctx); err != nil {
		return apperrors.Storage("records.clear", err)
	}
	p.events.Broadcast(EventOTPsCleared, nil)
	return nil
}
