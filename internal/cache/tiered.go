package cache

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/wikigate/wikigate/internal/circuitbreaker"
)

const (
	guardThreshold = 5
	guardTimeout   = 30 * time.Second
)

// Tiered layers the in-process memory cache over an optional durable
// store. Reads check memory first and fall through to the durable tier;
// a durable hit is copied back into memory with its remaining TTL.
// Durable tier failures are logged and swallowed so a broken store
// degrades the cache instead of the request, and all durable access
// runs through a circuit breaker so a dead store stops costing a
// round-trip per miss.
type Tiered struct {
	memory  *Memory
	durable Store
	guard   *circuitbreaker.CircuitBreaker
	logger  *slog.Logger

	memoryHits    atomic.Int64
	memoryMisses  atomic.Int64
	durableHits   atomic.Int64
	durableMisses atomic.Int64
}

// Stats is a point-in-time view of both tiers.
type Stats struct {
	MemoryEntries  int    `json:"memory_entries"`
	MemoryCapacity int    `json:"memory_capacity"`
	MemoryHits     int64  `json:"memory_hits"`
	MemoryMisses   int64  `json:"memory_misses"`
	DurableEnabled bool   `json:"durable_enabled"`
	DurableState   string `json:"durable_state,omitempty"`
	DurableHits    int64  `json:"durable_hits"`
	DurableMisses  int64  `json:"durable_misses"`
}

// NewTiered builds the two-tier cache. A nil store disables the durable
// tier. A nil guard gets a breaker with default settings.
func NewTiered(memory *Memory, durable Store, guard *circuitbreaker.CircuitBreaker, logger *slog.Logger) *Tiered {
	if durable != nil && guard == nil {
		guard = circuitbreaker.NewCircuitBreaker(guardThreshold, guardTimeout)
	}

	return &Tiered{
		memory:  memory,
		durable: durable,
		guard:   guard,
		logger:  logger,
	}
}

// Get looks key up tier by tier. The second return value reports
// whether the key was found; a durable tier failure counts as absent.
func (t *Tiered) Get(ctx context.Context, key string) ([]byte, bool) {
	if value, ok := t.memory.Get(key); ok {
		t.memoryHits.Add(1)
		return value, true
	}
	t.memoryMisses.Add(1)

	if t.durable == nil {
		return nil, false
	}

	var (
		value     []byte
		remaining time.Duration
		missed    bool
	)
	err := t.guard.Execute(func() error {
		v, rem, err := t.durable.Get(ctx, key)
		if err != nil {
			if errors.Is(err, ErrMiss) {
				missed = true
				return nil
			}
			return err
		}
		value, remaining = v, rem
		return nil
	})
	if err != nil {
		if !errors.Is(err, circuitbreaker.ErrOpen) {
			t.logger.Warn("durable cache read failed",
				slog.String("key", key),
				slog.String("error", err.Error()),
			)
		}
		return nil, false
	}
	if missed {
		t.durableMisses.Add(1)
		return nil, false
	}

	t.durableHits.Add(1)
	if remaining > 0 {
		t.memory.Set(key, value, remaining)
	}
	return value, true
}

// Set writes through both tiers. The durable write is best effort.
func (t *Tiered) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	t.memory.Set(key, value, ttl)

	if t.durable == nil {
		return
	}

	err := t.guard.Execute(func() error {
		return t.durable.Set(ctx, key, value, ttl)
	})
	if err != nil && !errors.Is(err, circuitbreaker.ErrOpen) {
		t.logger.Warn("durable cache write failed",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
	}
}

func (t *Tiered) Stats() Stats {
	stats := Stats{
		MemoryEntries:  t.memory.Len(),
		MemoryCapacity: t.memory.Capacity(),
		MemoryHits:     t.memoryHits.Load(),
		MemoryMisses:   t.memoryMisses.Load(),
		DurableEnabled: t.durable != nil,
		DurableHits:    t.durableHits.Load(),
		DurableMisses:  t.durableMisses.Load(),
	}
	if t.durable != nil {
		stats.DurableState = t.guard.State().String()
	}
	return stats
}

func (t *Tiered) Close() error {
	t.memory.Close()
	if t.durable == nil {
		return nil
	}
	return t.durable.Close()
}
