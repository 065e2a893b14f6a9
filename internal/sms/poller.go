package sms

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"otplink/internal/metrics"
	"otplink/internal/models"
	"otplink/internal/timeutil"
)

const (
	DefaultPollInterval      = 2 * time.Second
	DefaultHeartbeatInterval = 10 * time.Second
)

// Handler consumes one message. Errors are logged and do not stop the loop.
type Handler func(ctx context.Context, msg models.SMSMessage) error

// Status is a snapshot of the poll loop.
type Status struct {
	Active            bool       `json:"active"`
	PermissionGranted bool       `json:"permissionGranted"`
	LastSeen          *time.Time `json:"lastSeen,omitempty"`
	LastPoll          *time.Time `json:"lastPoll,omitempty"`
	LastHeartbeat     *time.Time `json:"lastHeartbeat,omitempty"`
	Processed         int64      `json:"processed"`
}

// Poller checks a Source on a fixed interval and hands every new message to
// the handler, oldest first, one at a time.
type Poller struct {
	source            Source
	permission        PermissionProvider
	handle            Handler
	clock             timeutil.Clock
	pollInterval      time.Duration
	heartbeatInterval time.Duration
	logger            *zap.Logger

	mu            sync.Mutex
	running       bool
	granted       bool
	stopChan      chan struct{}
	wg            sync.WaitGroup
	lastSeen      time.Time
	lastPoll      time.Time
	lastHeartbeat time.Time
	processed     int64

	// serializes poll passes
	pollMu sync.Mutex
}

// PollerConfig carries the optional knobs of NewPoller. Zero values take the
// defaults.
type PollerConfig struct {
	PollInterval      time.Duration
	HeartbeatInterval time.Duration
	Clock             timeutil.Clock
}

func NewPoller(source Source, permission PermissionProvider, handle Handler, cfg PollerConfig, logger *zap.Logger) *Poller {
	if permission == nil {
		permission = StaticPermission(true)
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if cfg.Clock == nil {
		cfg.Clock = timeutil.SystemClock{}
	}
	return &Poller{
		source:            source,
		permission:        permission,
		handle:            handle,
		clock:             cfg.Clock,
		pollInterval:      cfg.PollInterval,
		heartbeatInterval: cfg.HeartbeatInterval,
		logger:            logger.Named("sms-poller"),
	}
}

// Start begins polling. Messages dated before the call are never delivered.
// Calling Start on a running poller is a no-op.
func (p *Poller) Start(ctx context.Context) error {
	granted, err := p.permission.EnsureGranted(ctx)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.granted = granted
	if !granted {
		p.logger.Warn("SMS permission denied, listener not started")
		return ErrPermissionDenied
	}
	if p.running {
		return nil
	}

	p.running = true
	p.lastSeen = p.clock.Now()
	p.stopChan = make(chan struct{})
	metrics.ListenerActive.Set(1)

	// the loop outlives the request that started it
	runCtx := context.WithoutCancel(ctx)
	stop := p.stopChan

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		pollTicker := time.NewTicker(p.pollInterval)
		defer pollTicker.Stop()
		heartbeat := time.NewTicker(p.heartbeatInterval)
		defer heartbeat.Stop()

		for {
			select {
			case <-pollTicker.C:
				p.PollOnce(runCtx)
			case <-heartbeat.C:
				p.beat()
			case <-stop:
				p.logger.Info("SMS listener stopped")
				return
			}
		}
	}()

	p.logger.Info("SMS listener started",
		zap.Duration("poll_interval", p.pollInterval),
		zap.Duration("heartbeat_interval", p.heartbeatInterval))
	return nil
}

// Stop halts the loop and waits for the current pass to finish. In-flight
// handler calls are not cancelled.
func (p *Poller) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	close(p.stopChan)
	p.mu.Unlock()

	p.wg.Wait()
	metrics.ListenerActive.Set(0)
}

// Running reports whether the loop is active.
func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// PollOnce runs a single pass: list messages newer than the last seen one,
// advance the cursor, then process them in date order.
func (p *Poller) PollOnce(ctx context.Context) int {
	p.pollMu.Lock()
	defer p.pollMu.Unlock()

	p.mu.Lock()
	since := p.lastSeen
	p.lastPoll = p.clock.Now()
	p.mu.Unlock()

	msgs, err := p.source.ListSince(ctx, since)
	if err != nil {
		metrics.SMSPolls.WithLabelValues("error").Inc()
		p.logger.Warn("failed to list SMS", zap.Error(err))
		return 0
	}
	if len(msgs) == 0 {
		metrics.SMSPolls.WithLabelValues("empty").Inc()
		return 0
	}
	metrics.SMSPolls.WithLabelValues("messages").Inc()

	sortByDate(msgs)
	p.mu.Lock()
	if latest := msgs[len(msgs)-1].Date; latest.After(p.lastSeen) {
		p.lastSeen = latest
	}
	p.mu.Unlock()

	for _, msg := range msgs {
		if err := p.handle(ctx, msg); err != nil {
			p.logger.Error("failed to process SMS",
				zap.String("sender", msg.Sender),
				zap.Error(err))
		}
	}

	p.mu.Lock()
	p.processed += int64(len(msgs))
	p.mu.Unlock()
	return len(msgs)
}

func (p *Poller) beat() {
	p.mu.Lock()
	p.lastHeartbeat = p.clock.Now()
	p.mu.Unlock()
	p.logger.Debug("SMS listener heartbeat")
}

func (p *Poller) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Status{
		Active:            p.running,
		PermissionGranted: p.granted,
		LastSeen:          timePtr(p.lastSeen),
		LastPoll:          timePtr(p.lastPoll),
		LastHeartbeat:     timePtr(p.lastHeartbeat),
		Processed:         p.processed,
	}
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	t = timeutil.Millis(t)
	return &t
}
