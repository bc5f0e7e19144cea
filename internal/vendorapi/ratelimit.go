package vendorapi

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// limiter is a sliding-window rate gate over the vendor API. The free tier
// allows 5 calls per rolling minute; when the window is full the caller
// sleeps until the oldest call leaves it, plus one second of slack.
type limiter struct {
	mu     sync.Mutex
	limit  int
	window time.Duration
	calls  []time.Time

	now   func() time.Time
	sleep func(time.Duration)
}

func newLimiter(limit int, window time.Duration) *limiter {
	return &limiter{
		limit:  limit,
		window: window,
		now:    time.Now,
		sleep:  time.Sleep,
	}
}

// wait blocks until the next call fits the window, then records it.
func (l *limiter) wait() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.prune(now)

	if len(l.calls) >= l.limit {
		d := l.window - now.Sub(l.calls[0]) + time.Second
		if d > 0 {
			log.Info().Dur("wait", d).Msg("vendor rate limit reached")
			l.sleep(d)
			now = l.now()
			l.prune(now)
		}
	}
	l.calls = append(l.calls, now)
}

func (l *limiter) prune(now time.Time) {
	kept := l.calls[:0]
	for _, t := range l.calls {
		if now.Sub(t) < l.window {
			kept = append(kept, t)
		}
	}
	l.calls = kept
}
