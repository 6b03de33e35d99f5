// ABOUTME: Tests for the seen-key cache backing stream suppression.
// ABOUTME: Validates TTL expiration, eviction, forget, and close semantics.

package stream

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSeenCache_CheckUnknownKey(t *testing.T) {
	cache := newSeenCache(5*time.Minute, 100)
	defer cache.Close()

	assert.False(t, cache.Check("never-marked"))
}

func TestSeenCache_MarkThenCheck(t *testing.T) {
	cache := newSeenCache(5*time.Minute, 100)
	defer cache.Close()

	cache.Mark("conv-1/msg-1")

	assert.True(t, cache.Check("conv-1/msg-1"))
	assert.False(t, cache.Check("conv-1/msg-2"))
}

func TestSeenCache_CheckAndMark(t *testing.T) {
	cache := newSeenCache(5*time.Minute, 100)
	defer cache.Close()

	assert.False(t, cache.CheckAndMark("conv-1/msg-1"), "first sighting should report unseen")
	assert.True(t, cache.CheckAndMark("conv-1/msg-1"), "second sighting should report seen")
}

func TestSeenCache_Forget(t *testing.T) {
	cache := newSeenCache(5*time.Minute, 100)
	defer cache.Close()

	cache.Mark("conv-1/msg-1")
	cache.Forget("conv-1/msg-1")

	assert.False(t, cache.Check("conv-1/msg-1"))

	// Forgetting an absent key is harmless.
	cache.Forget("conv-1/msg-9")
}

func TestSeenCache_TTLExpiry(t *testing.T) {
	cache := newSeenCache(10*time.Millisecond, 100)
	defer cache.Close()

	cache.Mark("expiring")
	assert.True(t, cache.Check("expiring"))

	time.Sleep(20 * time.Millisecond)

	assert.False(t, cache.Check("expiring"))
}

func TestSeenCache_EvictsOldestAtCapacity(t *testing.T) {
	cache := newSeenCache(5*time.Minute, 2)
	defer cache.Close()

	cache.Mark("first")
	cache.Mark("second")
	cache.Mark("third")

	assert.False(t, cache.Check("first"), "oldest entry should be evicted")
	assert.True(t, cache.Check("second"))
	assert.True(t, cache.Check("third"))
}

func TestSeenCache_MarkRefreshesOrder(t *testing.T) {
	cache := newSeenCache(5*time.Minute, 2)
	defer cache.Close()

	cache.Mark("first")
	cache.Mark("second")
	cache.Mark("first") // refresh, so "second" is now oldest
	cache.Mark("third")

	assert.True(t, cache.Check("first"))
	assert.False(t, cache.Check("second"))
	assert.True(t, cache.Check("third"))
}

func TestSeenCache_CloseIsIdempotent(t *testing.T) {
	cache := newSeenCache(5*time.Minute, 100)

	cache.Close()
	cache.Close()
}
