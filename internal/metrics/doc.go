// Package metrics collects request, cache and upstream-fetch metrics
// through a buffered event channel consumed by a single collector
// goroutine, keeping aggregation off the request path. Snapshots
// report per-operation and per-endpoint counts, status codes and
// response time percentiles.
package metrics
