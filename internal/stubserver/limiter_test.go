package stubserver

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIPLimiter_BurstRoundsUp(t *testing.T) {
	l := newIPLimiter(2.5)
	now := time.Now()

	for i := 0; i < 3; i++ {
		assert.True(t, l.Allow("10.0.0.1", now), "request %d within burst", i)
	}
	assert.False(t, l.Allow("10.0.0.1", now))
}

func TestIPLimiter_EmptyKeyNeverLimited(t *testing.T) {
	l := newIPLimiter(1)
	now := time.Now()
	for i := 0; i < 5; i++ {
		assert.True(t, l.Allow("  ", now))
	}
	assert.Equal(t, 0, l.size())
}

func TestIPLimiter_EvictsIdleClients(t *testing.T) {
	l := newIPLimiter(1000)
	start := time.Now()

	for i := 0; i < 10; i++ {
		l.Allow(fmt.Sprintf("10.0.0.%d", i), start)
	}
	assert.Equal(t, 10, l.size())

	// Eviction runs every 512 hits; a single active client drives it.
	later := start.Add(defaultIdleTTL + time.Second)
	for i := 0; i < 512; i++ {
		l.Allow("10.0.1.1", later)
	}
	assert.Equal(t, 1, l.size())
}
