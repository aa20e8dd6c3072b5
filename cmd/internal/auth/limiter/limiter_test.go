package limiter

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestLimiter_LocksAfterMaxAttempts(t *testing.T) {
	l := New(Config{})
	const addr = "203.0.113.7"

	for i := 1; i < DefaultMaxAttempts; i++ {
		d := l.RecordFailure(addr, t0.Add(time.Duration(i)*time.Second))
		require.True(t, d.Allowed, "failure %d must not lock", i)
		require.True(t, l.Check(addr, t0.Add(time.Duration(i)*time.Second)).Allowed)
	}

	fifth := t0.Add(DefaultMaxAttempts * time.Second)
	d := l.RecordFailure(addr, fifth)
	require.False(t, d.Allowed)
	assert.Equal(t, DefaultLockout, d.RetryAfter)

	d = l.Check(addr, fifth.Add(500*time.Millisecond))
	require.False(t, d.Allowed)
	assert.Greater(t, d.RetryAfterSeconds(), int64(0))
	assert.Equal(t, int64(DefaultLockout/time.Second), d.RetryAfterSeconds(), "rounded up to whole seconds")
}

func TestLimiter_ClearResets(t *testing.T) {
	l := New(Config{})
	const addr = "203.0.113.7"

	for i := 0; i < DefaultMaxAttempts; i++ {
		l.RecordFailure(addr, t0)
	}
	require.False(t, l.Check(addr, t0).Allowed)

	l.Clear(addr)
	assert.True(t, l.Check(addr, t0).Allowed)
	assert.Equal(t, 0, l.Len())

	// Counting restarts from zero.
	for i := 1; i < DefaultMaxAttempts; i++ {
		require.True(t, l.RecordFailure(addr, t0).Allowed)
	}
}

func TestLimiter_WindowResetsCount(t *testing.T) {
	l := New(Config{})
	const addr = "198.51.100.1"

	for i := 0; i < DefaultMaxAttempts-1; i++ {
		l.RecordFailure(addr, t0)
	}

	later := t0.Add(DefaultWindow + time.Second)
	require.True(t, l.Check(addr, later).Allowed)
	assert.Equal(t, 0, l.Len(), "stale record evicted on check")

	// One more failure after the window starts a new count instead of locking.
	assert.True(t, l.RecordFailure(addr, later).Allowed)
}

func TestLimiter_WindowMeasuredFromLastAttempt(t *testing.T) {
	l := New(Config{})
	const addr = "198.51.100.1"

	// Failures spread so each is within Window of the previous one.
	step := DefaultWindow - time.Minute
	var d Decision
	for i := 0; i < DefaultMaxAttempts; i++ {
		d = l.RecordFailure(addr, t0.Add(time.Duration(i)*step))
	}
	assert.False(t, d.Allowed)
}

func TestLimiter_LockExpires(t *testing.T) {
	l := New(Config{MaxAttempts: 2, Window: time.Minute, Lockout: 10 * time.Minute})
	const addr = "192.0.2.10"

	l.RecordFailure(addr, t0)
	require.False(t, l.RecordFailure(addr, t0).Allowed)

	require.False(t, l.Check(addr, t0.Add(10*time.Minute-time.Millisecond)).Allowed)

	d := l.Check(addr, t0.Add(10*time.Minute))
	assert.True(t, d.Allowed)
	assert.Equal(t, 0, l.Len())

	// Fresh count after expiry.
	assert.True(t, l.RecordFailure(addr, t0.Add(11*time.Minute)).Allowed)
}

func TestLimiter_AddressesAreIndependent(t *testing.T) {
	l := New(Config{MaxAttempts: 1})

	require.False(t, l.RecordFailure("a", t0).Allowed)
	assert.True(t, l.Check("b", t0).Allowed)
}

func TestLimiter_RetryAfterRoundsUp(t *testing.T) {
	l := New(Config{MaxAttempts: 1, Lockout: time.Minute})
	l.RecordFailure("a", t0)

	d := l.Check("a", t0.Add(59*time.Second+time.Millisecond))
	require.False(t, d.Allowed)
	assert.Equal(t, int64(1), d.RetryAfterSeconds())

	d = l.Check("a", t0.Add(30*time.Second-time.Millisecond))
	assert.Equal(t, int64(31), d.RetryAfterSeconds())
}

func TestLimiter_Sweep(t *testing.T) {
	l := New(Config{MaxAttempts: 2, Window: time.Minute, Lockout: 5 * time.Minute})

	l.RecordFailure("idle", t0)
	l.RecordFailure("locked", t0)
	l.RecordFailure("locked", t0)
	l.RecordFailure("recent", t0.Add(90*time.Second))

	removed := l.Sweep(t0.Add(2 * time.Minute))
	assert.Equal(t, 1, removed)
	assert.Equal(t, 2, l.Len())

	removed = l.Sweep(t0.Add(10 * time.Minute))
	assert.Equal(t, 2, removed)
	assert.Equal(t, 0, l.Len())
}

func TestLimiter_ConcurrentFailuresCountExactly(t *testing.T) {
	l := New(Config{MaxAttempts: 1000, Window: time.Hour, Lockout: time.Hour})
	const addr = "203.0.113.99"

	var wg sync.WaitGroup
	for g := 0; g < 10; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 99; i++ {
				l.RecordFailure(addr, t0)
				_ = l.Check(addr, t0)
			}
		}()
	}
	wg.Wait()

	require.True(t, l.Check(addr, t0).Allowed, "990 failures stay under 1000")
	for i := 991; i < 1000; i++ {
		require.True(t, l.RecordFailure(addr, t0).Allowed, "failure %d", i)
	}
	assert.False(t, l.RecordFailure(addr, t0).Allowed, "failure 1000 locks")
}

func TestNew_Defaults(t *testing.T) {
	cfg := New(Config{MaxAttempts: -1}).Config()
	assert.Equal(t, Config{MaxAttempts: 5, Window: 15 * time.Minute, Lockout: 15 * time.Minute}, cfg)
}

func TestDecision_RetryAfterSecondsRoundsUp(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want int64
	}{
		{0, 0},
		{-time.Second, 0},
		{time.Millisecond, 1},
		{time.Second, 1},
		{1500 * time.Millisecond, 2},
		{30*time.Second + time.Nanosecond, 31},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Decision{RetryAfter: tt.in}.RetryAfterSeconds(), "RetryAfter=%v", tt.in)
	}
}
