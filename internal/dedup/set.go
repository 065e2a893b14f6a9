// Package dedup provides an expiring key set used for duplicate suppression.
package dedup

import (
	"context"
	"sync"
	"time"

	"otplink/internal/timeutil"
)

// Set maps keys to expiry times. Expired keys are treated as absent on
// lookup and are dropped lazily or by PurgeExpired.
type Set struct {
	mu      sync.Mutex
	clock   timeutil.Clock
	ttl     time.Duration
	entries map[string]time.Time
}

func New(clock timeutil.Clock, ttl time.Duration) *Set {
	if clock == nil {
		clock = timeutil.SystemClock{}
	}
	return &Set{
		clock:   clock,
		ttl:     ttl,
		entries: make(map[string]time.Time),
	}
}

// Contains reports whether key is present and unexpired.
func (s *Set) Contains(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.liveLocked(key, s.clock.Now())
}

// Add inserts key with the set's TTL, replacing any previous expiry
func (s *Set) Add(key string) {
	s.mu.Lock()
	s.entries[key] = s.clock.Now().Add(s.ttl)
	s.mu.Unlock()
}

// Claim inserts key if it is absent or expired and reports whether it did.
// A false return means another caller holds the key.
func (s *Set) Claim(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock.Now()
	if s.liveLocked(key, now) {
		return false
	}
	s.entries[key] = now.Add(s.ttl)
	return true
}

func (s *Set) Remove(key string) {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
}

// PurgeExpired drops every entry whose expiry is at or before now and
// returns how many were removed.
func (s *Set) PurgeExpired(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for k, exp := range s.entries {
		if !now.Before(exp) {
			delete(s.entries, k)
			n++
		}
	}
	return n
}

// Len counts stored entries, expired or not.
func (s *Set) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// StartSweeper purges expired entries every interval until ctx is done.
func (s *Set) StartSweeper(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.PurgeExpired(s.clock.Now())
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (s *Set) liveLocked(key string, now time.Time) bool {
	exp, ok := s.entries[key]
	if !ok {
		return false
	}
	if !now.Before(exp) {
		delete(s.entries, key)
		return false
	}
	return true
}
