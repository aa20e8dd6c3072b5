// Package limiter throttles failed logins per client address.
//
// An address may fail MaxAttempts times within Window; the attempt that
// reaches the threshold locks it for Lockout. State is in-memory and local
// to the process.
package limiter

import (
	"sync"
	"time"
)

const (
	DefaultMaxAttempts = 5
	DefaultWindow      = 15 * time.Minute
	DefaultLockout     = 15 * time.Minute
)

// Config controls thresholds. Non-positive fields fall back to the defaults.
type Config struct {
	MaxAttempts int
	Window      time.Duration
	Lockout     time.Duration
}

// Decision is the outcome of a check.
type Decision struct {
	Allowed    bool
	RetryAfter time.Duration
}

// RetryAfterSeconds returns RetryAfter in whole seconds, rounded up.
func (d Decision) RetryAfterSeconds() int64 {
	if d.RetryAfter <= 0 {
		return 0
	}
	return int64((d.RetryAfter + time.Second - 1) / time.Second)
}

type record struct {
	attempts    int
	lastAttempt time.Time
	lockedUntil time.Time
}

// Limiter is safe for concurrent use.
type Limiter struct {
	mu      sync.Mutex
	records map[string]*record
	cfg     Config
}

// New constructs a Limiter with safe defaults when inputs are invalid.
func New(cfg Config) *Limiter {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	if cfg.Lockout <= 0 {
		cfg.Lockout = DefaultLockout
	}
	return &Limiter{
		records: make(map[string]*record),
		cfg:     cfg,
	}
}

// Config returns the effective thresholds.
func (l *Limiter) Config() Config { return l.cfg }

// Check reports whether addr may attempt a login at now. It never counts as
// an attempt.
func (l *Limiter) Check(addr string, now time.Time) Decision {
	l.mu.Lock()
	defer l.mu.Unlock()

	r, ok := l.records[addr]
	if !ok {
		return Decision{Allowed: true}
	}
	if l.stale(r, now) {
		delete(l.records, addr)
		return Decision{Allowed: true}
	}
	if !r.lockedUntil.IsZero() {
		return denied(r.lockedUntil.Sub(now))
	}
	return Decision{Allowed: true}
}

// RecordFailure counts a failed attempt from addr and returns the resulting
// state, so callers can tell when this failure triggered the lockout.
func (l *Limiter) RecordFailure(addr string, now time.Time) Decision {
	l.mu.Lock()
	defer l.mu.Unlock()

	r, ok := l.records[addr]
	if !ok || l.stale(r, now) {
		r = &record{}
		l.records[addr] = r
	}

	r.attempts++
	r.lastAttempt = now

	if r.lockedUntil.IsZero() && r.attempts >= l.cfg.MaxAttempts {
		r.lockedUntil = now.Add(l.cfg.Lockout)
	}
	if !r.lockedUntil.IsZero() {
		return denied(r.lockedUntil.Sub(now))
	}
	return Decision{Allowed: true}
}

// Clear forgets addr, typically after a successful login.
func (l *Limiter) Clear(addr string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.records, addr)
}

// Sweep evicts every record Check would evict at now and returns how many
// were removed.
func (l *Limiter) Sweep(now time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	n := 0
	for addr, r := range l.records {
		if l.stale(r, now) {
			delete(l.records, addr)
			n++
		}
	}
	return n
}

// Len returns the number of tracked addresses.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records)
}

// stale: an expired lock, or an unlocked record idle for longer than Window.
func (l *Limiter) stale(r *record, now time.Time) bool {
	if !r.lockedUntil.IsZero() {
		return !r.lockedUntil.After(now)
	}
	return now.Sub(r.lastAttempt) > l.cfg.Window
}

func denied(remaining time.Duration) Decision {
	// Round up to whole seconds; never advertise zero while still locked.
	secs := (remaining + time.Second - 1) / time.Second
	if secs < 1 {
		secs = 1
	}
	return Decision{Allowed: false, RetryAfter: secs * time.Second}
}
