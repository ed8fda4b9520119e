package llm

import (
	"sync"
	"time"
)

// ModelCache remembers the last model that produced a successful generation.
// It is deliberately process-scoped with an explicit lifecycle (set on
// success, expired after a TTL, gone on restart) and hidden behind this
// interface so a distributed cache could replace it.
type ModelCache interface {
	Get() (string, bool)
	Set(model string)
	Invalidate()
}

type ttlModelCache struct {
	mu    sync.Mutex
	model string
	setAt time.Time
	ttl   time.Duration
}

func NewModelCache(ttl time.Duration) ModelCache {
	return &ttlModelCache{ttl: ttl}
}

func (c *ttlModelCache) Get() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.model == "" || time.Since(c.setAt) > c.ttl {
		return "", false
	}
	return c.model, true
}

func (c *ttlModelCache) Set(model string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.model = model
	c.setAt = time.Now()
}

func (c *ttlModelCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.model = ""
}
