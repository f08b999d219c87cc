package metrics

import (
	"context"
	"log/slog"
	"time"
)

type EventType string

const (
	EventRequestCompleted EventType = "request_completed"
	EventCacheLookup      EventType = "cache_lookup"
	EventFlightResolved   EventType = "flight_resolved"
	EventFetchCompleted   EventType = "fetch_completed"
)

type MetricEvent struct {
	Type       EventType
	Timestamp  time.Time
	Operation  string
	Endpoint   string
	Duration   time.Duration
	StatusCode int
	Hit        bool
	Joined     bool
}

// Collector aggregates metric events off the request path. Producers
// hand events to a buffered channel; a single goroutine folds them
// into the store. A full buffer drops events rather than blocking a
// request.
type Collector struct {
	eventCh chan MetricEvent
	metrics *Metrics
	logger  *slog.Logger
}

func NewCollector(bufferSize int, logger *slog.Logger) *Collector {
	return &Collector{
		eventCh: make(chan MetricEvent, bufferSize),
		metrics: NewMetrics(),
		logger:  logger,
	}
}

func (c *Collector) Start(ctx context.Context) {
	go c.run(ctx)
}

func (c *Collector) run(ctx context.Context) {
	c.logger.Info("metrics collector started")
	defer c.logger.Info("metrics collector stopped")

	for {
		select {
		case event := <-c.eventCh:
			c.processEvent(event)
		case <-ctx.Done():
			// Drain remaining events before shutdown
			c.drain()
			return
		}
	}
}

func (c *Collector) processEvent(event MetricEvent) {
	switch event.Type {
	case EventRequestCompleted:
		c.metrics.RecordRequest(event.Operation, event.Duration, event.StatusCode)

	case EventCacheLookup:
		c.metrics.RecordCacheLookup(event.Operation, event.Hit)

	case EventFlightResolved:
		c.metrics.RecordFlight(event.Operation, event.Joined)

	case EventFetchCompleted:
		c.metrics.RecordFetch(event.Endpoint, event.Duration, event.StatusCode)
	}
}

func (c *Collector) drain() {
	for {
		select {
		case event := <-c.eventCh:
			c.processEvent(event)
		default:
			return
		}
	}
}

// RequestCompleted records one client-facing request. Safe on a nil
// collector.
func (c *Collector) RequestCompleted(operation string, duration time.Duration, statusCode int) {
	c.emit(MetricEvent{
		Type:       EventRequestCompleted,
		Operation:  operation,
		Duration:   duration,
		StatusCode: statusCode,
	})
}

// CacheLookup records the outcome of one cache check.
func (c *Collector) CacheLookup(operation string, hit bool) {
	c.emit(MetricEvent{
		Type:      EventCacheLookup,
		Operation: operation,
		Hit:       hit,
	})
}

// FlightResolved records whether a caller led a new upstream flight or
// joined one already in progress.
func (c *Collector) FlightResolved(operation string, joined bool) {
	c.emit(MetricEvent{
		Type:      EventFlightResolved,
		Operation: operation,
		Joined:    joined,
	})
}

// FetchCompleted records one upstream attempt. Status code 0 stands
// for a transport-level failure.
func (c *Collector) FetchCompleted(endpoint string, duration time.Duration, statusCode int) {
	c.emit(MetricEvent{
		Type:       EventFetchCompleted,
		Endpoint:   endpoint,
		Duration:   duration,
		StatusCode: statusCode,
	})
}

func (c *Collector) emit(event MetricEvent) {
	if c == nil {
		return
	}

	event.Timestamp = time.Now()

	select {
	case c.eventCh <- event:
	default:
	}
}

func (c *Collector) Snapshot() Snapshot {
	return c.metrics.Snapshot()
}
