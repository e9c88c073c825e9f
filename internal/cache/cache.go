package cache

import (
	"sync"
	"time"

	"github.com/curiobot/curio/internal/models"
)

// Cache is a TTL cache of verification results keyed by URL. A URL
// probed once during a cycle is not probed again until its entry
// expires.
type Cache struct {
	mu            sync.RWMutex
	results       map[string]entry
	retention     time.Duration
	cleanupTicker *time.Ticker
	stopChan      chan struct{}
}

type entry struct {
	result   models.VerificationResult
	storedAt time.Time
}

func New(retention time.Duration) *Cache {
	c := &Cache{
		results:   make(map[string]entry),
		retention: retention,
		stopChan:  make(chan struct{}),
	}

	c.cleanupTicker = time.NewTicker(10 * time.Minute)
	go c.cleanup()

	return c
}

func (c *Cache) Get(url string) (models.VerificationResult, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, exists := c.results[url]
	if !exists || time.Since(e.storedAt) > c.retention {
		return models.VerificationResult{}, false
	}
	return e.result, true
}

func (c *Cache) Set(url string, result models.VerificationResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.results[url] = entry{result: result, storedAt: time.Now()}
}

func (c *Cache) cleanup() {
	for {
		select {
		case <-c.cleanupTicker.C:
			c.performCleanup()
		case <-c.stopChan:
			return
		}
	}
}

func (c *Cache) performCleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	cutoff := time.Now().Add(-c.retention)

	for url, e := range c.results {
		if e.storedAt.Before(cutoff) {
			delete(c.results, url)
		}
	}
}

func (c *Cache) Close() {
	c.cleanupTicker.Stop()
	close(c.stopChan)
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.results)
}
