package presence

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterAndLookup(t *testing.T) {
	r := NewRegistry()

	_, ok := r.Lookup(5)
	assert.False(t, ok)

	r.Register(5, "s1")
	sessionID, ok := r.Lookup(5)
	require.True(t, ok)
	assert.Equal(t, "s1", sessionID)
}

func TestReRegisterOverwrites(t *testing.T) {
	r := NewRegistry()
	r.Register(5, "s1")
	r.Register(5, "s2")

	sessionID, ok := r.Lookup(5)
	require.True(t, ok)
	assert.Equal(t, "s2", sessionID)
	assert.Equal(t, 1, r.Count())
}

func TestRemoveRequiresMatchingSession(t *testing.T) {
	r := NewRegistry()
	r.Register(5, "s1")
	r.Register(5, "s2")

	// The stale session's teardown must not evict the fresher binding.
	r.Remove(5, "s1")
	sessionID, ok := r.Lookup(5)
	require.True(t, ok)
	assert.Equal(t, "s2", sessionID)

	r.Remove(5, "s2")
	_, ok = r.Lookup(5)
	assert.False(t, ok)

	// Removing an absent entry is a no-op.
	r.Remove(5, "s2")
	assert.Equal(t, 0, r.Count())
}

func TestRemoveBySession(t *testing.T) {
	r := NewRegistry()
	r.Register(5, "s1")
	r.Register(7, "s2")

	userID, ok := r.RemoveBySession("s1")
	require.True(t, ok)
	assert.Equal(t, int64(5), userID)
	assert.Equal(t, 1, r.Count())

	_, ok = r.RemoveBySession("unknown")
	assert.False(t, ok)
}

func TestRemoveBySessionIgnoresStaleSession(t *testing.T) {
	r := NewRegistry()
	r.Register(5, "s1")
	r.Register(5, "s2")

	// s1 was orphaned by the re-registration; its disconnect finds nothing.
	_, ok := r.RemoveBySession("s1")
	assert.False(t, ok)

	userID, ok := r.RemoveBySession("s2")
	require.True(t, ok)
	assert.Equal(t, int64(5), userID)
}

func TestConcurrentAccess(t *testing.T) {
	r := NewRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			userID := int64(n % 10)
			sessionID := fmt.Sprintf("s%d", n)
			r.Register(userID, sessionID)
			r.Lookup(userID)
			r.Remove(userID, sessionID)
			r.RemoveBySession(sessionID)
		}(i)
	}
	wg.Wait()
}
