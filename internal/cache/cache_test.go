package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/curiobot/curio/internal/models"
)

func TestCache_SetGet(t *testing.T) {
	c := New(time.Minute)
	defer c.Close()

	result := models.VerificationResult{IsValid: true, Confidence: models.ConfidenceHigh}
	c.Set("https://example.com/a", result)

	got, ok := c.Get("https://example.com/a")
	assert.True(t, ok)
	assert.Equal(t, result, got)

	_, ok = c.Get("https://example.com/missing")
	assert.False(t, ok)
}

func TestCache_Expiry(t *testing.T) {
	c := New(10 * time.Millisecond)
	defer c.Close()

	c.Set("https://example.com/a", models.VerificationResult{IsValid: true})
	time.Sleep(30 * time.Millisecond)

	_, ok := c.Get("https://example.com/a")
	assert.False(t, ok)
}

func TestCache_CleanupRemovesExpired(t *testing.T) {
	c := New(10 * time.Millisecond)
	defer c.Close()

	c.Set("https://example.com/a", models.VerificationResult{})
	time.Sleep(30 * time.Millisecond)
	c.performCleanup()

	assert.Equal(t, 0, c.Len())
}
