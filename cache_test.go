package main

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock returns a now func that advances one second per call, so every
// entry gets a distinct timestamp.
func fakeClock(base time.Time) (func() time.Time, *time.Duration) {
	offset := new(time.Duration)
	return func() time.Time {
		*offset += time.Second
		return base.Add(*offset)
	}, offset
}

func TestCacheGetSet(t *testing.T) {
	c := NewCacheStore()

	_, ok := c.Get("ns", "missing")
	assert.False(t, ok)

	c.Set("ns", "k", 42)
	v, ok := c.Get("ns", "k")
	require.True(t, ok)
	assert.Equal(t, 42, v)

	// Namespaces are independent.
	_, ok = c.Get("other", "k")
	assert.False(t, ok)
}

func TestCacheTTLExpiry(t *testing.T) {
	c := NewCacheStore()
	base := time.Now()
	now, offset := fakeClock(base)
	c.now = now

	c.Set("ns", "k", "v")
	_, ok := c.Get("ns", "k")
	require.True(t, ok)

	// Entries past the TTL are absent even if never accessed again.
	*offset += cacheTTL
	_, ok = c.Get("ns", "k")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len("ns"))
}

func TestCacheEvictionLowestAccessCount(t *testing.T) {
	c := NewCacheStore()
	now, _ := fakeClock(time.Now())
	c.now = now

	for i := 0; i < cacheMaxEntries; i++ {
		c.Set("ns", fmt.Sprintf("k%02d", i), i)
	}
	// Bump every key except k00, leaving it with the lowest access count.
	for i := 1; i < cacheMaxEntries; i++ {
		_, ok := c.Get("ns", fmt.Sprintf("k%02d", i))
		require.True(t, ok)
	}

	// The 51st distinct key pushes the namespace over the bound; exactly one
	// entry goes, and it is k00.
	c.Set("ns", "k50", 50)
	assert.Equal(t, cacheMaxEntries, c.Len("ns"))
	_, ok := c.Get("ns", "k00")
	assert.False(t, ok)
	_, ok = c.Get("ns", "k50")
	assert.True(t, ok)
	_, ok = c.Get("ns", "k01")
	assert.True(t, ok)
}

func TestCacheEvictionTieBreaksOldest(t *testing.T) {
	c := NewCacheStore()
	now, _ := fakeClock(time.Now())
	c.now = now

	// All entries share accessCount=1; timestamps strictly increase, so the
	// first inserted key is the tie-break victim.
	for i := 0; i <= cacheMaxEntries; i++ {
		c.Set("ns", fmt.Sprintf("k%02d", i), i)
	}
	assert.Equal(t, cacheMaxEntries, c.Len("ns"))
	_, ok := c.Get("ns", "k00")
	assert.False(t, ok)
	_, ok = c.Get("ns", "k01")
	assert.True(t, ok)
}

func TestCacheSetPurgesExpiredFirst(t *testing.T) {
	c := NewCacheStore()
	now, offset := fakeClock(time.Now())
	c.now = now

	c.Set("ns", "old", 1)
	*offset += cacheTTL
	// The expired entry is purged during set; no live entry is evicted even
	// though the namespace was nominally full of stale keys.
	c.Set("ns", "fresh", 2)
	assert.Equal(t, 1, c.Len("ns"))
	_, ok := c.Get("ns", "fresh")
	assert.True(t, ok)
}

func TestCacheClear(t *testing.T) {
	c := NewCacheStore()
	assert.True(t, c.LastCleared().IsZero())

	c.Set("a", "k", 1)
	c.Set("b", "k", 2)
	c.Clear()

	_, ok := c.Get("a", "k")
	assert.False(t, ok)
	_, ok = c.Get("b", "k")
	assert.False(t, ok)
	assert.False(t, c.LastCleared().IsZero())
}
