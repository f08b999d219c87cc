// Package cache implements the two-tier response cache: a bounded
// in-process tier for hot entries and an optional Redis-backed durable
// tier that survives restarts. Callers supply TTLs per write; the cache
// never serves an expired entry and never fails a request because the
// durable tier is unreachable.
package cache
