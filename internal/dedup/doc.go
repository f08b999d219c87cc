// Package dedup deduplicates concurrent requests for the same key.
// Identical lookups that arrive while one is already being served share
// the first caller's outcome instead of hitting the upstream again.
package dedup
