// Package wikipedia is the service facade over the resilience core.
// It exposes the gateway's logical operations (search, page, summary,
// category, random) and composes cache, request deduplication,
// endpoint failover, circuit breaking and retries behind each one.
// Callers see typed results and three failure classes: invalid input,
// unknown language, and upstream failure.
package wikipedia
