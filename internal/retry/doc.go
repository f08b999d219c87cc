// Package retry runs operations under an exponential backoff policy.
// Callers describe the loop with a Policy value (attempt budget, delay
// growth, transient/permanent classification) and hand Do a closure;
// permanent failures short-circuit while transient ones are repeated
// with growing delays.
package retry
