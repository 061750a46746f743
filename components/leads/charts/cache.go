package charts

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// ChartKey identifies one rendered lead chart. Digest covers the status counts or funnel steps
// the chart was drawn from, so a reload that changes the numbers misses the cache.
type ChartKey struct {
	Kind   string
	Title  string
	Theme  string
	Digest string
}

func (k ChartKey) String() string {
	return k.Kind + "|" + k.Theme + "|" + k.Digest + "|" + k.Title
}

// RenderCache memoizes rendered chart HTML.
type RenderCache interface {
	GetOrRender(key ChartKey, render func() (string, error)) (string, error)
}

// ChartCache keeps rendered funnel, bar and pie HTML for a fixed TTL. Expired charts are swept
// whenever a new one is stored.
type ChartCache struct {
	ttl     time.Duration
	now     func() time.Time
	mu      sync.Mutex
	entries map[ChartKey]renderedChart
}

type renderedChart struct {
	html    string
	expires time.Time
}

// NewChartCache builds a cache. A non-positive TTL renders every call.
func NewChartCache(ttl time.Duration) *ChartCache {
	return &ChartCache{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[ChartKey]renderedChart),
	}
}

// GetOrRender returns the live chart for key or renders and stores it. Render errors are not cached.
func (c *ChartCache) GetOrRender(key ChartKey, render func() (string, error)) (string, error) {
	if c == nil || c.ttl <= 0 {
		return render()
	}
	now := c.now()
	c.mu.Lock()
	entry, ok := c.entries[key]
	c.mu.Unlock()
	if ok && now.Before(entry.expires) {
		return entry.html, nil
	}

	html, err := render()
	if err != nil {
		return "", err
	}
	c.mu.Lock()
	for k, e := range c.entries {
		if !now.Before(e.expires) {
			delete(c.entries, k)
		}
	}
	c.entries[key] = renderedChart{html: html, expires: now.Add(c.ttl)}
	c.mu.Unlock()
	return html, nil
}

// Len reports how many charts are held, including ones not swept yet.
func (c *ChartCache) Len() int {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Digest fingerprints the data a chart is drawn from. Map keys are encoded sorted.
func Digest(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		b = []byte(fmt.Sprintf("%#v", v))
	}
	sum := sha1.Sum(b)
	return hex.EncodeToString(sum[:])
}
