package upstream

import (
	"strings"
	"time"

	"github.com/wikigate/wikigate/internal/circuitbreaker"
)

// Endpoint is one mirror base URL of a language edition, guarded by its
// own circuit breaker. Immutable once constructed.
type Endpoint struct {
	url     string
	breaker *circuitbreaker.CircuitBreaker
}

func newEndpoint(baseURL string, breaker *circuitbreaker.CircuitBreaker) *Endpoint {
	return &Endpoint{
		url:     strings.TrimRight(baseURL, "/"),
		breaker: breaker,
	}
}

func (e *Endpoint) URL() string {
	return e.url
}

// EndpointStatus is a read-only view of one endpoint's health.
type EndpointStatus struct {
	URL         string    `json:"url"`
	State       string    `json:"state"`
	Failures    int       `json:"failures"`
	LastFailure time.Time `json:"last_failure"`
}

func (e *Endpoint) status() EndpointStatus {
	snap := e.breaker.Snapshot()
	return EndpointStatus{
		URL:         e.url,
		State:       snap.State,
		Failures:    snap.Failures,
		LastFailure: snap.LastFailure,
	}
}
