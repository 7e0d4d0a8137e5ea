package stubserver

import (
	"math"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// defaultIdleTTL is how long an idle client keeps its bucket.
const defaultIdleTTL = 10 * time.Minute

// ipLimiter applies a token bucket per client key and periodically evicts
// idle entries.
type ipLimiter struct {
	limit   rate.Limit
	burst   int
	idleTTL time.Duration

	mu    sync.Mutex
	byKey map[string]*limiterEntry
	hits  uint64
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// newIPLimiter allows rps requests per second per key, with a burst of the
// same size rounded up.
func newIPLimiter(rps float64) *ipLimiter {
	return &ipLimiter{
		limit:   rate.Limit(rps),
		burst:   max(1, int(math.Ceil(rps))),
		idleTTL: defaultIdleTTL,
		byKey:   make(map[string]*limiterEntry),
	}
}

// Allow reports whether key may make one request at now. An empty key is
// never limited.
func (l *ipLimiter) Allow(key string, now time.Time) bool {
	key = strings.TrimSpace(key)
	if key == "" {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.byKey[key]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.byKey[key] = e
	}
	e.lastSeen = now
	allowed := e.limiter.AllowN(now, 1)

	l.hits++
	if l.hits%512 == 0 {
		l.evictLocked(now)
	}
	return allowed
}

func (l *ipLimiter) evictLocked(now time.Time) {
	cutoff := now.Add(-l.idleTTL)
	for k, v := range l.byKey {
		if v.lastSeen.Before(cutoff) {
			delete(l.byKey, k)
		}
	}
}

func (l *ipLimiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.byKey)
}
