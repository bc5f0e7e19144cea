package vendorapi

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiterAllowsBurstWithinWindow(t *testing.T) {
	now := time.Unix(1000, 0)
	l := newLimiter(5, time.Minute)
	l.now = func() time.Time { return now }
	l.sleep = func(time.Duration) { t.Fatal("unexpected sleep") }

	for i := 0; i < 5; i++ {
		l.wait()
		now = now.Add(time.Second)
	}
}

func TestLimiterSleepsOnSixthCall(t *testing.T) {
	now := time.Unix(1000, 0)
	var slept time.Duration
	l := newLimiter(5, time.Minute)
	l.now = func() time.Time { return now }
	l.sleep = func(d time.Duration) {
		slept = d
		now = now.Add(d)
	}

	for i := 0; i < 5; i++ {
		l.wait()
		now = now.Add(2 * time.Second)
	}
	// Oldest call is 10s in the past: wait 60 - 10 + 1 = 51s.
	l.wait()
	assert.Equal(t, 51*time.Second, slept)
}

func TestLimiterForgetsExpiredCalls(t *testing.T) {
	now := time.Unix(1000, 0)
	l := newLimiter(5, time.Minute)
	l.now = func() time.Time { return now }
	l.sleep = func(time.Duration) { t.Fatal("unexpected sleep") }

	for i := 0; i < 5; i++ {
		l.wait()
	}
	now = now.Add(61 * time.Second)
	l.wait()
	require.Len(t, l.calls, 1)
}
