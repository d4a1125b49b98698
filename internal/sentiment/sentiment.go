// Package sentiment scores headline batches on a [-1, 1] scale. Any failure
// degrades to a neutral 0.0 so a broken scorer can never stall a cycle.
package sentiment

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Scorer rates the mood of a symbol's headlines: -1 very bearish, +1 very
// bullish, 0 neutral or unknown.
type Scorer interface {
	Score(ctx context.Context, symbol string, headlines []string) float64
}

// Neutral always returns 0. Used when sentiment is disabled in config.
type Neutral struct{}

func (Neutral) Score(context.Context, string, []string) float64 { return 0 }

type cacheEntry struct {
	score   float64
	expires time.Time
}

// Cached wraps a Scorer with a per-symbol TTL cache so repeated lookups
// within one cycle (and across close cycles) reuse one model call.
type Cached struct {
	inner Scorer
	ttl   time.Duration

	mu      sync.Mutex
	entries map[string]cacheEntry
}

func NewCached(inner Scorer, ttl time.Duration) *Cached {
	return &Cached{
		inner:   inner,
		ttl:     ttl,
		entries: make(map[string]cacheEntry),
	}
}

func (c *Cached) Score(ctx context.Context, symbol string, headlines []string) float64 {
	c.mu.Lock()
	if e, ok := c.entries[symbol]; ok && time.Now().Before(e.expires) {
		c.mu.Unlock()
		return e.score
	}
	c.mu.Unlock()

	score := c.inner.Score(ctx, symbol, headlines)

	c.mu.Lock()
	c.entries[symbol] = cacheEntry{score: score, expires: time.Now().Add(c.ttl)}
	c.mu.Unlock()

	return score
}

// parseScore extracts a float in [-1, 1] from a model reply, tolerating
// surrounding prose. Returns 0 and false when nothing usable is found.
func parseScore(text string) (float64, bool) {
	for _, field := range strings.Fields(strings.ReplaceAll(text, ",", " ")) {
		field = strings.Trim(field, "`*.:;()[]")
		v, err := strconv.ParseFloat(field, 64)
		if err != nil {
			continue
		}
		if v < -1 {
			v = -1
		}
		if v > 1 {
			v = 1
		}
		return v, true
	}
	return 0, false
}
