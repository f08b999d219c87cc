// Package upstream fetches resources from Wikipedia mirror endpoints.
// A Manager holds the ordered mirror list of one language edition and
// layers three resilience mechanisms around each fetch: a circuit
// breaker per endpoint, failover across the list within a sweep, and
// exponential backoff retries around whole sweeps. The endpoint that
// served the last success is tried first on the next call.
package upstream
