// Package ratelimit provides a fixed-window rate limiter with a block period.
package ratelimit

import (
	"fmt"
	"sync"
	"time"
)

// Policy configures a Limiter.
type Policy struct {
	// MaxEvents is the number of events allowed per window.
	MaxEvents int `mapstructure:"max_events"`
	// Window is the length of one counting window.
	Window time.Duration `mapstructure:"window"`
	// BlockFor is how long a key is refused after exceeding MaxEvents.
	BlockFor time.Duration `mapstructure:"block_for"`
}

// Validate checks the policy.
func (p Policy) Validate() error {
	if p.MaxEvents < 1 {
		return fmt.Errorf("max_events must be >= 1, got %d", p.MaxEvents)
	}
	if p.Window <= 0 {
		return fmt.Errorf("window must be > 0, got %s", p.Window)
	}
	if p.BlockFor < 0 {
		return fmt.Errorf("block_for must be >= 0, got %s", p.BlockFor)
	}
	return nil
}

type window struct {
	start        time.Time
	count        int
	blockedUntil time.Time
}

// Limiter counts events per key. All methods are safe for concurrent use.
type Limiter struct {
	policy Policy
	now    func() time.Time

	mu   sync.Mutex
	keys map[string]*window
}

// New creates a Limiter. A nil clock selects time.Now.
//
// Precondition: policy must pass Validate.
func New(policy Policy, clock func() time.Time) *Limiter {
	if clock == nil {
		clock = time.Now
	}
	return &Limiter{policy: policy, now: clock, keys: make(map[string]*window)}
}

// Allow records one event for key.
//
// Postcondition: Returns (true, 0) if the event is within the policy. Otherwise returns false
// and how long the caller should wait before retrying.
func (l *Limiter) Allow(key string) (bool, time.Duration) {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()

	w := l.keys[key]
	if w == nil {
		w = &window{}
		l.keys[key] = w
	}
	if now.Before(w.blockedUntil) {
		return false, w.blockedUntil.Sub(now)
	}
	if w.start.IsZero() || now.Sub(w.start) >= l.policy.Window {
		w.start = now
		w.count = 0
	}
	w.count++
	if w.count > l.policy.MaxEvents {
		if l.policy.BlockFor > 0 {
			w.blockedUntil = now.Add(l.policy.BlockFor)
			return false, l.policy.BlockFor
		}
		return false, w.start.Add(l.policy.Window).Sub(now)
	}
	return true, 0
}

// Reset forgets key, e.g. after a successful login.
func (l *Limiter) Reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.keys, key)
}

// Prune drops keys whose window and block have both elapsed and returns how many were dropped.
func (l *Limiter) Prune() int {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for k, w := range l.keys {
		if now.Before(w.blockedUntil) || now.Sub(w.start) < l.policy.Window {
			continue
		}
		delete(l.keys, k)
		n++
	}
	return n
}
