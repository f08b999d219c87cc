package metrics

import (
	"sort"
	"sync"
	"time"
)

const maxSamples = 1000

type Metrics struct {
	mutex          sync.RWMutex
	requests       map[string]int64
	requestTimes   map[string][]time.Duration
	requestStatus  map[string]map[int]int64
	cacheHits      map[string]int64
	cacheMisses    map[string]int64
	flightsLed     map[string]int64
	flightsJoined  map[string]int64
	fetchTimes     map[string][]time.Duration
	fetchStatus    map[string]map[int]int64
	startTime      time.Time
}

type Snapshot struct {
	TotalRequests int64                       `json:"total_requests"`
	Uptime        time.Duration               `json:"uptime"`
	Operations    map[string]OperationMetrics `json:"operations"`
	Endpoints     map[string]EndpointMetrics  `json:"endpoints"`
}

// OperationMetrics aggregates one logical operation (search, page,
// summary, category, random) as served to clients.
type OperationMetrics struct {
	Requests      int64         `json:"requests"`
	AvgResponse   time.Duration `json:"avg_response"`
	P50Response   time.Duration `json:"p50_response"`
	P95Response   time.Duration `json:"p95_response"`
	P99Response   time.Duration `json:"p99_response"`
	StatusCodes   map[int]int64 `json:"status_codes"`
	CacheHits     int64         `json:"cache_hits"`
	CacheMisses   int64         `json:"cache_misses"`
	FlightsLed    int64         `json:"flights_led"`
	FlightsJoined int64         `json:"flights_joined"`
}

// EndpointMetrics aggregates the upstream fetches against one mirror.
// Status code 0 counts transport-level failures.
type EndpointMetrics struct {
	Fetches     int64         `json:"fetches"`
	AvgResponse time.Duration `json:"avg_response"`
	P50Response time.Duration `json:"p50_response"`
	P95Response time.Duration `json:"p95_response"`
	P99Response time.Duration `json:"p99_response"`
	StatusCodes map[int]int64 `json:"status_codes"`
}

func NewMetrics() *Metrics {
	return &Metrics{
		requests:      make(map[string]int64),
		requestTimes:  make(map[string][]time.Duration),
		requestStatus: make(map[string]map[int]int64),
		cacheHits:     make(map[string]int64),
		cacheMisses:   make(map[string]int64),
		flightsLed:    make(map[string]int64),
		flightsJoined: make(map[string]int64),
		fetchTimes:    make(map[string][]time.Duration),
		fetchStatus:   make(map[string]map[int]int64),
		startTime:     time.Now(),
	}
}

func (m *Metrics) RecordRequest(operation string, duration time.Duration, statusCode int) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.requests[operation]++
	m.requestTimes[operation] = appendSample(m.requestTimes[operation], duration)

	if m.requestStatus[operation] == nil {
		m.requestStatus[operation] = make(map[int]int64)
	}
	m.requestStatus[operation][statusCode]++
}

func (m *Metrics) RecordCacheLookup(operation string, hit bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if hit {
		m.cacheHits[operation]++
	} else {
		m.cacheMisses[operation]++
	}
}

func (m *Metrics) RecordFlight(operation string, joined bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if joined {
		m.flightsJoined[operation]++
	} else {
		m.flightsLed[operation]++
	}
}

func (m *Metrics) RecordFetch(endpoint string, duration time.Duration, statusCode int) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.fetchTimes[endpoint] = appendSample(m.fetchTimes[endpoint], duration)

	if m.fetchStatus[endpoint] == nil {
		m.fetchStatus[endpoint] = make(map[int]int64)
	}
	m.fetchStatus[endpoint][statusCode]++
}

func (m *Metrics) Snapshot() Snapshot {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	snap := Snapshot{
		Uptime:     time.Since(m.startTime),
		Operations: make(map[string]OperationMetrics),
		Endpoints:  make(map[string]EndpointMetrics),
	}

	operations := make(map[string]bool)
	for op := range m.requests {
		operations[op] = true
	}
	for op := range m.cacheHits {
		operations[op] = true
	}
	for op := range m.cacheMisses {
		operations[op] = true
	}
	for op := range m.flightsLed {
		operations[op] = true
	}
	for op := range m.flightsJoined {
		operations[op] = true
	}

	for op := range operations {
		snap.TotalRequests += m.requests[op]

		om := OperationMetrics{
			Requests:      m.requests[op],
			StatusCodes:   m.requestStatus[op],
			CacheHits:     m.cacheHits[op],
			CacheMisses:   m.cacheMisses[op],
			FlightsLed:    m.flightsLed[op],
			FlightsJoined: m.flightsJoined[op],
		}

		if durations := m.requestTimes[op]; len(durations) > 0 {
			sorted := sortedCopy(durations)
			om.AvgResponse = average(sorted)
			om.P50Response = percentile(sorted, 0.50)
			om.P95Response = percentile(sorted, 0.95)
			om.P99Response = percentile(sorted, 0.99)
		}

		snap.Operations[op] = om
	}

	for endpoint, durations := range m.fetchTimes {
		em := EndpointMetrics{
			StatusCodes: m.fetchStatus[endpoint],
		}
		for _, count := range m.fetchStatus[endpoint] {
			em.Fetches += count
		}

		if len(durations) > 0 {
			sorted := sortedCopy(durations)
			em.AvgResponse = average(sorted)
			em.P50Response = percentile(sorted, 0.50)
			em.P95Response = percentile(sorted, 0.95)
			em.P99Response = percentile(sorted, 0.99)
		}

		snap.Endpoints[endpoint] = em
	}

	return snap
}

func appendSample(samples []time.Duration, d time.Duration) []time.Duration {
	samples = append(samples, d)
	if len(samples) > maxSamples {
		samples = samples[1:]
	}
	return samples
}

func sortedCopy(durations []time.Duration) []time.Duration {
	sorted := make([]time.Duration, len(durations))
	copy(sorted, durations)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i] < sorted[j]
	})
	return sorted
}

func average(durations []time.Duration) time.Duration {
	if len(durations) == 0 {
		return 0
	}

	var sum time.Duration
	for _, d := range durations {
		sum += d
	}

	return sum / time.Duration(len(durations))
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}

	index := int(float64(len(sorted)) * p)
	if index >= len(sorted) {
		index = len(sorted) - 1
	}

	return sorted[index]
}
