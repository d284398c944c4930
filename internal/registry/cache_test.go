package registry

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModelCache(t *testing.T) {
	t.Parallel()

	cache := NewModelCache(10 * time.Minute)
	base := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	listing := json.RawMessage(`[{"id":"openai/gpt-5"}]`)

	t.Run("empty cache misses", func(t *testing.T) {
		_, ok := cache.Get(base)
		assert.False(t, ok)
	})

	t.Run("fresh entry hits", func(t *testing.T) {
		cache.Set(listing, base)

		got, ok := cache.Get(base.Add(9 * time.Minute))
		require.True(t, ok)
		assert.Equal(t, listing, got)
	})

	t.Run("expired entry misses", func(t *testing.T) {
		cache.Set(listing, base)

		_, ok := cache.Get(base.Add(10 * time.Minute))
		assert.False(t, ok)
	})

	t.Run("refresh restores freshness", func(t *testing.T) {
		cache.Set(listing, base)
		later := base.Add(time.Hour)
		cache.Set(listing, later)

		_, ok := cache.Get(later.Add(time.Minute))
		assert.True(t, ok)
	})
}
