package predictor

import (
	"sync"
	"time"

	"github.com/agentflow/agentflow/internal/models"
)

type cachedPrediction struct {
	prediction *models.TaskPrediction
	cachedAt   time.Time
}

// PredictionCache provides TTL-based in-process caching of predictions keyed
// by task signature. Entries older than the TTL are treated as misses.
type PredictionCache struct {
	cache  map[string]*cachedPrediction
	mu     sync.RWMutex
	ttl    time.Duration
	stopCh chan struct{}
}

// NewPredictionCache creates a new cache with the specified TTL
func NewPredictionCache(ttl time.Duration) *PredictionCache {
	c := &PredictionCache{
		cache:  make(map[string]*cachedPrediction),
		ttl:    ttl,
		stopCh: make(chan struct{}),
	}
	// Background cleanup keeps memory bounded
	go c.cleanup()
	return c
}

// Get retrieves a cached prediction if still fresh
func (c *PredictionCache) Get(signature string) (*models.TaskPrediction, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if entry, ok := c.cache[signature]; ok {
		if time.Since(entry.cachedAt) < c.ttl {
			return entry.prediction, true
		}
	}
	return nil, false
}

// Set stores a prediction with the current time as insertion timestamp
func (c *PredictionCache) Set(signature string, prediction *models.TaskPrediction) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cache[signature] = &cachedPrediction{
		prediction: prediction,
		cachedAt:   time.Now(),
	}
}

// Len returns the number of entries, fresh or stale
func (c *PredictionCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.cache)
}

// Stop terminates the background cleanup goroutine
func (c *PredictionCache) Stop() {
	close(c.stopCh)
}

// cleanup removes expired entries periodically
func (c *PredictionCache) cleanup() {
	ticker := time.NewTicker(c.ttl)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.mu.Lock()
			now := time.Now()
			for key, entry := range c.cache {
				if now.Sub(entry.cachedAt) > c.ttl {
					delete(c.cache, key)
				}
			}
			c.mu.Unlock()
		case <-c.stopCh:
			return
		}
	}
}
