// Package circuitbreaker implements the circuit breaker pattern guarding
// Wikipedia mirror endpoints and the durable cache tier.
//
// A circuit breaker prevents wasted round trips to a consistently failing
// target by blocking requests until a cooldown elapses. It has three
// states:
//
//   - CLOSED: Normal operation, requests pass through
//   - OPEN: Target failing, requests blocked
//   - HALF-OPEN: Testing if the target recovered
//
// Usage:
//
//	registry := circuitbreaker.NewRegistry(5, 30*time.Second)
//	cb := registry.Get("https://en.wikipedia.org")
//	err := cb.Execute(func() error {
//	    // Make request...
//	    return err
//	})
//	if errors.Is(err, circuitbreaker.ErrOpen) {
//	    // Blocked without a network call; try another mirror.
//	}
package circuitbreaker
