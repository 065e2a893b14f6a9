package timeutil

import (
	"sync"
	"time"
)

// ISOLayout is the wire format for record and webhook timestamps
// (millisecond precision, always UTC).
const ISOLayout = "2006-01-02T15:04:05.000Z"

// Clock is the time source used by caches, processors and pollers.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now()
}

// Now returns the current UTC time truncated to milliseconds
func Now() time.Time {
	return Millis(time.Now())
}

// Millis truncates t to millisecond precision in UTC.
func Millis(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}

// FormatISO formats t using ISOLayout
func FormatISO(t time.Time) string {
	return t.UTC().Format(ISOLayout)
}

// ParseISO parses an ISO-8601 timestamp. Offsets other than Z are accepted
// and converted to UTC.
func ParseISO(value string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, err
	}
	return Millis(t), nil
}

// FromUnixMillis converts epoch milliseconds to a UTC time.
func FromUnixMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

// ManualClock is a Clock that only moves when told to.
type ManualClock struct {
	mu  sync.Mutex
	now time.Time
}

func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{now: start}
}

func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// Set jumps the clock to t.
func (c *ManualClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}
