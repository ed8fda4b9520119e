package llm

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestModelCacheLifecycle(t *testing.T) {
	cache := NewModelCache(time.Minute)

	_, ok := cache.Get()
	assert.False(t, ok)

	cache.Set("gemini-2.0-flash")
	model, ok := cache.Get()
	assert.True(t, ok)
	assert.Equal(t, "gemini-2.0-flash", model)

	cache.Invalidate()
	_, ok = cache.Get()
	assert.False(t, ok)
}

func TestModelCacheExpires(t *testing.T) {
	cache := NewModelCache(10 * time.Millisecond)
	cache.Set("gemini-2.0-flash")

	time.Sleep(20 * time.Millisecond)
	_, ok := cache.Get()
	assert.False(t, ok)
}
