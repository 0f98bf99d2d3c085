package calendar

import (
	"sync"
	"time"

	"github.com/wonny/aegis-signal/pkg/logger"
)

type cacheEntry struct {
	version string
	index   *Index
	err     error
}

// Cache holds one Index per series for the lifetime of a backtest run.
// Entries are keyed by an explicit series id and validated against a caller supplied
// version token, so a replaced or mutated series is rebuilt instead of served stale.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
	builds  int
	logger  *logger.Logger
}

// NewCache creates an empty cache
func NewCache(log *logger.Logger) *Cache {
	if log == nil {
		log = logger.Nop()
	}
	return &Cache{
		entries: make(map[string]cacheEntry),
		logger:  log.Component("calendar"),
	}
}

// Get returns the index for seriesID, building it when absent or when version differs.
// An empty version falls back to VersionOf(sessions). A failed build is remembered
// for that version and returned again without rebuilding.
func (c *Cache) Get(seriesID, version string, sessions []time.Time) (*Index, error) {
	if version == "" {
		version = VersionOf(sessions)
	}

	c.mu.RLock()
	entry, ok := c.entries[seriesID]
	c.mu.RUnlock()
	if ok && entry.version == version {
		return entry.index, entry.err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// another goroutine may have built it while we waited
	if entry, ok := c.entries[seriesID]; ok && entry.version == version {
		return entry.index, entry.err
	}

	c.builds++
	idx, err := Build(sessions)
	if err != nil {
		c.entries[seriesID] = cacheEntry{version: version, err: err}
		c.logger.WithError(err).WithFields(map[string]interface{}{
			"series":  seriesID,
			"version": version,
		}).Warn("Calendar build failed")
		return nil, err
	}

	c.entries[seriesID] = cacheEntry{version: version, index: idx}

	c.logger.WithFields(map[string]interface{}{
		"series":   seriesID,
		"version":  version,
		"sessions": idx.Len(),
		"stale":    ok,
	}).Debug("Calendar index built")

	return idx, nil
}

// Reset drops every entry; call it at the start of a new run
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]cacheEntry)
}

// Builds is the number of build attempts since creation, failed ones included
func (c *Cache) Builds() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.builds
}
