package upstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/wikigate/wikigate/internal/circuitbreaker"
	"github.com/wikigate/wikigate/internal/metrics"
	"github.com/wikigate/wikigate/internal/retry"
)

const (
	defaultTimeout      = 10 * time.Second
	defaultUserAgent    = "wikigate/1.0 (https://github.com/wikigate/wikigate)"
	defaultMaxBodyBytes = 8 << 20
)

// Doer issues HTTP requests. Satisfied by *http.Client; tests inject
// deterministic responders.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Options tunes a Manager. Zero fields fall back to defaults.
type Options struct {
	// Timeout bounds each individual HTTP attempt.
	Timeout time.Duration

	// UserAgent is attached to every request. Wikipedia asks API
	// clients to identify themselves.
	UserAgent string

	// Retry drives the outer loop around full endpoint sweeps. The
	// manager supplies its own failure classification.
	Retry retry.Policy

	// MaxBodyBytes caps how much of a response body is read.
	MaxBodyBytes int64

	Doer   Doer
	Logger *slog.Logger

	// Metrics receives one fetch record per endpoint attempt. Optional.
	Metrics *metrics.Collector
}

// Manager owns the ordered endpoint list of one language edition and
// turns a path into a response body despite failing mirrors. Every
// fetch runs one retry loop around full sweeps of the endpoint list;
// within a sweep each endpoint is attempted at most once, through its
// circuit breaker, starting at the endpoint that succeeded last.
type Manager struct {
	language  string
	endpoints []*Endpoint
	cursor    atomic.Int32

	timeout      time.Duration
	userAgent    string
	retryPolicy  retry.Policy
	maxBodyBytes int64
	doer         Doer
	logger       *slog.Logger
	metrics      *metrics.Collector
}

// NewManager builds a Manager for one language. Endpoint breakers come
// from the registry, keyed by base URL, so mirrors shared between
// languages share health state.
func NewManager(language string, baseURLs []string, registry *circuitbreaker.Registry, opts Options) (*Manager, error) {
	if language == "" {
		return nil, errors.New("language is required")
	}
	if len(baseURLs) == 0 {
		return nil, fmt.Errorf("no endpoints configured for language %q", language)
	}

	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = defaultMaxBodyBytes
	}
	if opts.Doer == nil {
		opts.Doer = &http.Client{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	endpoints := make([]*Endpoint, 0, len(baseURLs))
	for _, baseURL := range baseURLs {
		endpoints = append(endpoints, newEndpoint(baseURL, registry.Get(strings.TrimRight(baseURL, "/"))))
	}

	policy := opts.Retry
	policy.Classify = retryable
	policy.Logger = opts.Logger

	return &Manager{
		language:     language,
		endpoints:    endpoints,
		timeout:      opts.Timeout,
		userAgent:    opts.UserAgent,
		retryPolicy:  policy,
		maxBodyBytes: opts.MaxBodyBytes,
		doer:         opts.Doer,
		logger:       opts.Logger,
		metrics:      opts.Metrics,
	}, nil
}

func (m *Manager) Language() string {
	return m.language
}

// Fetch GETs path from the first endpoint that answers. A fatal
// failure (4xx, oversized body) is returned as-is; running out of
// retries on transient failures returns an ExhaustedError wrapping the
// last cause.
func (m *Manager) Fetch(ctx context.Context, path string) ([]byte, error) {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	attempts := 0
	body, err := retry.Do(ctx, m.retryPolicy, func() ([]byte, error) {
		return m.sweep(ctx, path, &attempts)
	})
	if err != nil {
		if retryable(err) {
			return nil, &ExhaustedError{Language: m.language, Attempts: attempts, Err: err}
		}
		return nil, err
	}
	return body, nil
}

// sweep walks the endpoint list once, starting at the cursor. The
// sweep itself does not classify failures; it hands its last error to
// the retry policy.
func (m *Manager) sweep(ctx context.Context, path string, attempts *int) ([]byte, error) {
	start := int(m.cursor.Load())
	var lastErr error

	for i := 0; i < len(m.endpoints); i++ {
		idx := (start + i) % len(m.endpoints)
		endpoint := m.endpoints[idx]
		*attempts++

		body, err := m.fetchOne(ctx, endpoint, path)
		if err != nil {
			lastErr = err
			m.logger.Debug("endpoint attempt failed",
				slog.String("language", m.language),
				slog.String("endpoint", endpoint.URL()),
				slog.String("error", err.Error()),
			)
			continue
		}

		m.cursor.Store(int32(idx))
		return body, nil
	}

	return nil, lastErr
}

func (m *Manager) fetchOne(ctx context.Context, endpoint *Endpoint, path string) ([]byte, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	var body []byte
	err := endpoint.breaker.Execute(func() error {
		req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, endpoint.URL()+path, nil)
		if err != nil {
			return fmt.Errorf("building request: %w", err)
		}
		req.Header.Set("User-Agent", m.userAgent)
		req.Header.Set("Accept", "application/json")

		start := time.Now()
		statusCode := 0
		defer func() {
			m.metrics.FetchCompleted(endpoint.URL(), time.Since(start), statusCode)
		}()

		resp, err := m.doer.Do(req)
		if err != nil {
			return fmt.Errorf("requesting %s: %w", endpoint.URL(), err)
		}
		defer resp.Body.Close()
		statusCode = resp.StatusCode

		if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
			return &StatusError{Code: resp.StatusCode, URL: endpoint.URL()}
		}

		data, err := io.ReadAll(io.LimitReader(resp.Body, m.maxBodyBytes+1))
		if err != nil {
			return fmt.Errorf("reading response from %s: %w", endpoint.URL(), err)
		}
		if int64(len(data)) > m.maxBodyBytes {
			return fmt.Errorf("%w: %s", ErrBodyTooLarge, endpoint.URL())
		}

		body = data
		return nil
	})
	if err != nil {
		return nil, err
	}
	return body, nil
}

// Status reports every endpoint's circuit state for health reporting.
func (m *Manager) Status() []EndpointStatus {
	statuses := make([]EndpointStatus, 0, len(m.endpoints))
	for _, endpoint := range m.endpoints {
		statuses = append(statuses, endpoint.status())
	}
	return statuses
}
