package cache

import (
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/ruslanbaba/azure-gcp-dr-orchestrator/internal/model"
)

const (
	keyOverallHealth = "health:overall"
	reportKeyPrefix  = "health:report:"
)

// HealthCache holds recently computed health data so that on-demand callers
// (the HTTP API between ticks) do not re-probe the sources.
type HealthCache struct {
	data *gocache.Cache
	ttl  time.Duration
}

// New creates a health cache with the given default TTL.
func New(defaultTTL time.Duration) *HealthCache {
	cleanupInterval := defaultTTL * 2
	return &HealthCache{
		data: gocache.New(defaultTTL, cleanupInterval),
		ttl:  defaultTTL,
	}
}

// SetOverall stores the latest composite snapshot.
func (c *HealthCache) SetOverall(h *model.OverallHealth) {
	c.data.Set(keyOverallHealth, h, c.ttl)
}

// Overall returns the cached composite snapshot, if still fresh.
func (c *HealthCache) Overall() (*model.OverallHealth, bool) {
	v, ok := c.data.Get(keyOverallHealth)
	if !ok {
		return nil, false
	}
	h, ok := v.(*model.OverallHealth)
	return h, ok
}

// SetReport stores the latest report from a named source.
func (c *HealthCache) SetReport(source string, r *model.HealthReport) {
	c.data.Set(reportKeyPrefix+source, r, c.ttl)
}

// Report returns the cached report for a named source, if still fresh.
func (c *HealthCache) Report(source string) (*model.HealthReport, bool) {
	v, ok := c.data.Get(reportKeyPrefix + source)
	if !ok {
		return nil, false
	}
	r, ok := v.(*model.HealthReport)
	return r, ok
}

// Clear removes all cached values.
func (c *HealthCache) Clear() {
	c.data.Flush()
}
