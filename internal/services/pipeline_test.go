package services

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"otplink/internal/apperrors"
	"otplink/internal/models"
	"otplink/internal/persistence"
	"otplink/internal/store"
	"otplink/internal/timeutil"
	"otplink/internal/webhook"
)

type pipelineFixture struct {
	store  *persistence.BoltStore
	config *ConfigService
	events *recordingBroadcaster
	p      *Pipeline
}

func newPipelineFixture(t *testing.T) *pipelineFixture {
	s := newTestStore(t)
	clock := timeutil.NewManualClock(testEpoch)
	logger := zap.NewNop()
	config := NewConfigService(s, newTestBox(t), logger)
	events := &recordingBroadcaster{}
	p := NewPipeline(
		config,
		NewMessageProcessor(clock, logger),
		NewForwardingService(s, webhook.NewClient(2*time.Second), &fakeMailer{}, clock, logger),
		s,
		events,
		logger,
	)
	return &pipelineFixture{store: s, config: config, events: events, p: p}
}

func (f *pipelineFixture) useWebhook(t *testing.T, url string) {
	cfg, err := f.config.Load(context.Background())
	require.NoError(t, err)
	cfg.WebhookURL = url
	require.NoError(t, f.config.Save(context.Background(), cfg))
}

func TestHandleSMSDetectsStoresAndForwards(t *testing.T) {
	f := newPipelineFixture(t)
	hook := newHookServer(t, http.StatusOK)
	f.useWebhook(t, hook.URL)

	rec, err := f.p.HandleSMS(context.Background(), models.SMSMessage{Sender: "+1555", Body: "Your OTP is 482913"})
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "482913", rec.OTP)
	assert.True(t, rec.Forwarded)

	history, err := f.store.LoadOTPRecords(context.Background())
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, models.MethodWebhook, history[0].Method())
	assert.Equal(t, []string{EventOTPDetected, EventOTPUpdated}, f.events.names())
}

func TestHandleSMSUnknownSender(t *testing.T) {
	f := newPipelineFixture(t)

	rec, err := f.p.HandleSMS(context.Background(), models.SMSMessage{Body: "login code 7781"})
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "Unknown", rec.Sender)
	assert.False(t, rec.Forwarded)
	assert.Equal(t, []string{EventOTPDetected}, f.events.names())
}

func TestHandleSMSIgnoredWhenListenerDisabled(t *testing.T) {
	f := newPipelineFixture(t)
	require.NoError(t, f.config.SetListenerEnabled(context.Background(), false))

	rec, err := f.p.HandleSMS(context.Background(), models.SMSMessage{Sender: "+1555", Body: "Your OTP is 482913"})
	require.NoError(t, err)
	assert.Nil(t, rec)

	history, err := f.store.LoadOTPRecords(context.Background())
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestHandleSMSNoOTP(t *testing.T) {
	f := newPipelineFixture(t)
	rec, err := f.p.HandleSMS(context.Background(), models.SMSMessage{Sender: "+1555", Body: "Lunch at 12?"})
	require.NoError(t, err)
	assert.Nil(t, rec)
	assert.Empty(t, f.events.names())
}

func TestForwardNow(t *testing.T) {
	f := newPipelineFixture(t)
	rec, err := f.p.HandleSMS(context.Background(), models.SMSMessage{Sender: "+1555", Body: "Your OTP is 482913"})
	require.NoError(t, err)
	require.False(t, rec.Forwarded)

	hook := newHookServer(t, http.StatusOK)
	f.useWebhook(t, hook.URL)

	got, ok, err := f.p.ForwardNow(context.Background(), rec.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, got.Forwarded)
	assert.Equal(t, 1, hook.count())

	_, _, err = f.p.ForwardNow(context.Background(), "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestDetectIsSideEffectFree(t *testing.T) {
	f := newPipelineFixture(t)

	d, err := f.p.Detect(context.Background(), "Your verification code is 5521")
	require.NoError(t, err)
	assert.True(t, d.KeywordMatch)
	assert.True(t, d.Found)
	assert.Equal(t, "5521", d.OTP)

	// detection did not claim the duplicate key
	rec, err := f.p.HandleSMS(context.Background(), models.SMSMessage{Sender: "x", Body: "Your verification code is 5521"})
	require.NoError(t, err)
	assert.NotNil(t, rec)

	d, err = f.p.Detect(context.Background(), "see you at 1830")
	require.NoError(t, err)
	assert.False(t, d.KeywordMatch)
	assert.False(t, d.Found)
}

func TestClearRecords(t *testing.T) {
	f := newPipelineFixture(t)
	_, err := f.p.HandleSMS(context.Background(), models.SMSMessage{Sender: "+1555", Body: "otp 123456"})
	require.NoError(t, err)

	require.NoError(t, f.p.ClearRecords(context.Background()))
	recs, err := f.p.Records(context.Background())
	require.NoError(t, err)
	assert.Empty(t, recs)
	assert.Contains(t, f.events.names(), EventOTPsCleared)
}

func TestHandleSMSStorageFailure(t *testing.T) {
	logger := zap.NewNop()
	p := NewPipeline(NewConfigService(brokenStore{}, newTestBox(t), logger), NewMessageProcessor(nil, logger), nil, brokenStore{}, nil, logger)
	_, err := p.HandleSMS(context.Background(), models.SMSMessage{Sender: "x", Body: "otp 1234"})
	assert.True(t, apperrors.Is(err, apperrors.StorageFailed))
}

func TestForwardNowSessionDuplicateIsNotAnnouncedAsUpdate(t *testing.T) {
	f := newPipelineFixture(t)
	hook := newHookServer(t, http.StatusOK)
	f.useWebhook(t, hook.URL)
	ctx := context.Background()

	first, err := f.p.HandleSMS(ctx, models.SMSMessage{Sender: "+1555", Body: "Your OTP is 482913"})
	require.NoError(t, err)
	require.True(t, first.Forwarded)

	// same code and sender, stored separately and never delivered
	twin := &models.OTPRecord{
		ID:        "twin",
		OTP:       first.OTP,
		Source:    models.SourceSMS,
		Sender:    first.Sender,
		Message:   first.Message,
		Timestamp: first.Timestamp,
	}
	require.NoError(t, f.store.SaveOTPRecord(ctx, twin))

	got, ok, err := f.p.ForwardNow(ctx, twin.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.False(t, got.Forwarded)
	assert.Equal(t, 1, hook.count())
	assert.Equal(t, []string{EventOTPDetected, EventOTPUpdated}, f.events.names())
}

// failingSaves is a bolt store whose next n SaveOTPRecord calls fail.
type failingSaves struct {
	*persistence.BoltStore
	n int
}

func (s *failingSaves) SaveOTPRecord(ctx context.Context, rec *models.OTPRecord) error {
	if s.n > 0 {
		s.n--
		return errDiskGone
	}
	return s.BoltStore.SaveOTPRecord(ctx, rec)
}

func TestHandleSMSSaveFailureAllowsRedelivery(t *testing.T) {
	logger := zap.NewNop()
	s := &failingSaves{BoltStore: newTestStore(t), n: 1}
	p := NewPipeline(
		NewConfigService(s, newTestBox(t), logger),
		NewMessageProcessor(timeutil.NewManualClock(testEpoch), logger),
		NewForwardingService(s, webhook.NewClient(time.Second), &fakeMailer{}, nil, logger),
		s,
		nil,
		logger,
	)
	msg := models.SMSMessage{Sender: "+1555", Body: "Your OTP is 482913"}

	_, err := p.HandleSMS(context.Background(), msg)
	require.True(t, apperrors.Is(err, apperrors.StorageFailed))

	rec, err := p.HandleSMS(context.Background(), msg)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "482913", rec.OTP)

	history, err := s.LoadOTPRecords(context.Background())
	require.NoError(t, err)
	assert.Len(t, history, 1)
}
