package cache

import (
	"fmt"
	"time"

	"github.com/maypok86/otter/v2"
	"github.com/maypok86/otter/v2/stats"
)

const (
	defaultCapacity = 10000

	// Entries always receive an explicit TTL on write; this default only
	// exists because otter requires one at construction time.
	defaultExpiry = 24 * 365 * time.Hour
)

// Memory is the first cache tier: a bounded in-process store with
// per-entry TTLs and size-based eviction.
type Memory struct {
	cache    *otter.Cache[string, []byte]
	capacity int
}

func NewMemory(capacity int) (*Memory, error) {
	if capacity <= 0 {
		capacity = defaultCapacity
	}

	opts := &otter.Options[string, []byte]{
		MaximumSize:      capacity,
		StatsRecorder:    stats.NewCounter(),
		ExpiryCalculator: otter.ExpiryWriting[string, []byte](defaultExpiry),
	}

	cache, err := otter.New(opts)
	if err != nil {
		return nil, fmt.Errorf("building memory cache: %w", err)
	}

	return &Memory{
		cache:    cache,
		capacity: capacity,
	}, nil
}

func (m *Memory) Get(key string) ([]byte, bool) {
	return m.cache.GetIfPresent(key)
}

func (m *Memory) Set(key string, value []byte, ttl time.Duration) {
	m.cache.Set(key, value)
	if ttl > 0 {
		m.cache.SetExpiresAfter(key, ttl)
	}
}

func (m *Memory) Delete(key string) {
	m.cache.Invalidate(key)
}

// Len reports the current number of entries. The count is approximate
// while evictions are in progress.
func (m *Memory) Len() int {
	return m.cache.EstimatedSize()
}

func (m *Memory) Capacity() int {
	return m.capacity
}

func (m *Memory) Close() {
	m.cache.StopAllGoroutines()
}
