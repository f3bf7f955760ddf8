package redis

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeysShareNamespace(t *testing.T) {
	assert.Equal(t, "cinepass:v1:screening:7:summary", KeyScreeningSummary(7))
	assert.Equal(t, "cinepass:v1:screening:7:availability", KeyScreeningAvailability(7))
	assert.Equal(t, "cinepass:v1:screening:7:seatmap", KeyScreeningSeatMap(7))
	assert.Equal(t, "cinepass:v1:idem:holds:7:abc", KeyIdemHold(7, "abc"))
	assert.Equal(t, "cinepass:v1:rl:holds:42", KeyRateLimit("holds", "42"))
	assert.Equal(t, "cinepass:v1:screenings:changed", ChannelScreeningsChanged())
}

// The limiter must bucket under the shared namespace so keys are discoverable
// alongside the cache and idempotency entries.
func TestSlidingWindowLimiterKeyUsesNamespace(t *testing.T) {
	l := NewSlidingWindowLimiter(nil, "holds", 30, 0)
	assert.Equal(t, KeyRateLimit("holds", "user:42"), l.key("user:42"))
}
