package sms

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"otplink/internal/models"
	"otplink/internal/timeutil"
)

// DefaultInboxCapacity bounds the push inbox.
const DefaultInboxCapacity = 500

// Source lists SMS messages received strictly after since.
type Source interface {
	ListSince(ctx context.Context, since time.Time) ([]models.SMSMessage, error)
}

// Inbox is a push-fed Source. Devices or gateways POST messages into it and
// the poller drains them by timestamp. Oldest messages are dropped once the
// capacity is reached.
type Inbox struct {
	mu       sync.Mutex
	clock    timeutil.Clock
	capacity int
	messages []models.SMSMessage
}

func NewInbox(clock timeutil.Clock, capacity int) *Inbox {
	if clock == nil {
		clock = timeutil.SystemClock{}
	}
	if capacity <= 0 {
		capacity = DefaultInboxCapacity
	}
	return &Inbox{clock: clock, capacity: capacity}
}

// Push stores msg. A zero Date is stamped with the receive time.
func (b *Inbox) Push(msg models.SMSMessage) models.SMSMessage {
	msg.Sender = strings.TrimSpace(msg.Sender)
	if msg.Date.IsZero() {
		msg.Date = b.clock.Now()
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.messages = append(b.messages, msg)
	if over := len(b.messages) - b.capacity; over > 0 {
		b.messages = append([]models.SMSMessage(nil), b.messages[over:]...)
	}
	return msg
}

func (b *Inbox) ListSince(ctx context.Context, since time.Time) ([]models.SMSMessage, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var out []models.SMSMessage
	for _, m := range b.messages {
		if m.Date.After(since) {
			out = append(out, m)
		}
	}
	return out, nil
}

// Len reports buffered messages.
func (b *Inbox) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.messages)
}

// sortByDate orders messages oldest first, keeping arrival order for ties.
func sortByDate(msgs []models.SMSMessage) {
	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].Date.Before(msgs[j].Date)
	})
}
