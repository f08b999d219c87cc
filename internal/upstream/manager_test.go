package upstream_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/wikigate/wikigate/internal/circuitbreaker"
	"github.com/wikigate/wikigate/internal/retry"
	"github.com/wikigate/wikigate/internal/upstream"
)

type doerFunc func(*http.Request) (*http.Response, error)

func (f doerFunc) Do(req *http.Request) (*http.Response, error) {
	return f(req)
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

var _ = Describe("Manager", func() {
	var (
		ctx      context.Context
		registry *circuitbreaker.Registry
		policy   retry.Policy
	)

	BeforeEach(func() {
		ctx = context.Background()
		registry = circuitbreaker.NewRegistry(100, time.Minute)
		policy = retry.Policy{
			MaxRetries: 2,
			BaseDelay:  time.Millisecond,
			MaxDelay:   4 * time.Millisecond,
			Multiplier: 2,
		}
	})

	newManager := func(urls []string, doer upstream.Doer) *upstream.Manager {
		manager, err := upstream.NewManager("en", urls, registry, upstream.Options{
			Retry: policy,
			Doer:  doer,
		})
		Expect(err).NotTo(HaveOccurred())
		return manager
	}

	Describe("NewManager", func() {
		It("should reject an empty language", func() {
			_, err := upstream.NewManager("", []string{"https://en.wikipedia.org"}, registry, upstream.Options{})
			Expect(err).To(HaveOccurred())
		})

		It("should reject an empty endpoint list", func() {
			_, err := upstream.NewManager("en", nil, registry, upstream.Options{})
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("Fetch", func() {
		It("should return the body from a healthy endpoint", func() {
			var calls []string
			doer := doerFunc(func(req *http.Request) (*http.Response, error) {
				calls = append(calls, req.URL.String())
				return jsonResponse(http.StatusOK, `{"query":"ok"}`), nil
			})

			manager := newManager([]string{"https://en.wikipedia.org"}, doer)
			body, err := manager.Fetch(ctx, "/w/rest.php/v1/search/page?q=go")

			Expect(err).NotTo(HaveOccurred())
			Expect(body).To(Equal([]byte(`{"query":"ok"}`)))
			Expect(calls).To(ConsistOf("https://en.wikipedia.org/w/rest.php/v1/search/page?q=go"))
		})

		It("should add a leading slash to the path when missing", func() {
			var requested string
			doer := doerFunc(func(req *http.Request) (*http.Response, error) {
				requested = req.URL.Path
				return jsonResponse(http.StatusOK, `{}`), nil
			})

			manager := newManager([]string{"https://en.wikipedia.org/"}, doer)
			_, err := manager.Fetch(ctx, "w/api.php")

			Expect(err).NotTo(HaveOccurred())
			Expect(requested).To(Equal("/w/api.php"))
		})

		It("should send the configured User-Agent", func() {
			var agent string
			doer := doerFunc(func(req *http.Request) (*http.Response, error) {
				agent = req.Header.Get("User-Agent")
				return jsonResponse(http.StatusOK, `{}`), nil
			})

			manager, err := upstream.NewManager("en", []string{"https://en.wikipedia.org"}, registry, upstream.Options{
				UserAgent: "wikigate-test/0.1",
				Retry:     policy,
				Doer:      doer,
			})
			Expect(err).NotTo(HaveOccurred())

			_, err = manager.Fetch(ctx, "/w/api.php")
			Expect(err).NotTo(HaveOccurred())
			Expect(agent).To(Equal("wikigate-test/0.1"))
		})

		Context("with a failing primary and a healthy mirror", func() {
			var (
				calls   []string
				manager *upstream.Manager
			)

			BeforeEach(func() {
				calls = nil
				doer := doerFunc(func(req *http.Request) (*http.Response, error) {
					calls = append(calls, req.URL.Host)
					if req.URL.Host == "en.wikipedia.org" {
						return jsonResponse(http.StatusBadGateway, ""), nil
					}
					return jsonResponse(http.StatusOK, `{"source":"mirror"}`), nil
				})
				manager = newManager([]string{"https://en.wikipedia.org", "https://en.m.wikipedia.org"}, doer)
			})

			It("should fail over within a single sweep", func() {
				body, err := manager.Fetch(ctx, "/w/api.php")

				Expect(err).NotTo(HaveOccurred())
				Expect(body).To(Equal([]byte(`{"source":"mirror"}`)))
				Expect(calls).To(Equal([]string{"en.wikipedia.org", "en.m.wikipedia.org"}))
			})

			It("should try the last successful endpoint first on the next call", func() {
				_, err := manager.Fetch(ctx, "/w/api.php")
				Expect(err).NotTo(HaveOccurred())

				calls = nil
				_, err = manager.Fetch(ctx, "/w/api.php")
				Expect(err).NotTo(HaveOccurred())
				Expect(calls).To(Equal([]string{"en.m.wikipedia.org"}))
			})
		})

		Context("when every endpoint keeps failing", func() {
			It("should sweep the list once per retry round and report exhaustion", func() {
				var calls int
				doer := doerFunc(func(req *http.Request) (*http.Response, error) {
					calls++
					return jsonResponse(http.StatusServiceUnavailable, ""), nil
				})

				manager := newManager([]string{"https://en.wikipedia.org", "https://en.m.wikipedia.org"}, doer)
				_, err := manager.Fetch(ctx, "/w/api.php")

				Expect(calls).To(Equal(6))

				var exhausted *upstream.ExhaustedError
				Expect(errors.As(err, &exhausted)).To(BeTrue())
				Expect(exhausted.Language).To(Equal("en"))
				Expect(exhausted.Attempts).To(Equal(6))

				var statusErr *upstream.StatusError
				Expect(errors.As(err, &statusErr)).To(BeTrue())
				Expect(statusErr.Code).To(Equal(http.StatusServiceUnavailable))
			})

			It("should recover when an endpoint comes back in a later round", func() {
				var calls int
				doer := doerFunc(func(req *http.Request) (*http.Response, error) {
					calls++
					if calls == 1 {
						return jsonResponse(http.StatusInternalServerError, ""), nil
					}
					return jsonResponse(http.StatusOK, `{"recovered":true}`), nil
				})

				manager := newManager([]string{"https://en.wikipedia.org"}, doer)
				body, err := manager.Fetch(ctx, "/w/api.php")

				Expect(err).NotTo(HaveOccurred())
				Expect(body).To(Equal([]byte(`{"recovered":true}`)))
				Expect(calls).To(Equal(2))
			})
		})

		Context("when the upstream answers with a client error", func() {
			It("should give up without retrying", func() {
				var calls int
				doer := doerFunc(func(req *http.Request) (*http.Response, error) {
					calls++
					return jsonResponse(http.StatusNotFound, ""), nil
				})

				manager := newManager([]string{"https://en.wikipedia.org"}, doer)
				_, err := manager.Fetch(ctx, "/w/rest.php/v1/page/Nope")

				Expect(calls).To(Equal(1))

				var statusErr *upstream.StatusError
				Expect(errors.As(err, &statusErr)).To(BeTrue())
				Expect(statusErr.Code).To(Equal(http.StatusNotFound))

				var exhausted *upstream.ExhaustedError
				Expect(errors.As(err, &exhausted)).To(BeFalse())
			})
		})

		Context("when an endpoint's breaker is open", func() {
			It("should fail fast without touching the network", func() {
				tight := circuitbreaker.NewRegistry(2, time.Minute)
				var calls int
				doer := doerFunc(func(req *http.Request) (*http.Response, error) {
					calls++
					return jsonResponse(http.StatusInternalServerError, ""), nil
				})

				manager, err := upstream.NewManager("en", []string{"https://en.wikipedia.org"}, tight, upstream.Options{
					Retry: retry.Policy{BaseDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1},
					Doer:  doer,
				})
				Expect(err).NotTo(HaveOccurred())

				_, _ = manager.Fetch(ctx, "/w/api.php")
				_, _ = manager.Fetch(ctx, "/w/api.php")
				Expect(calls).To(Equal(2))

				_, err = manager.Fetch(ctx, "/w/api.php")
				Expect(calls).To(Equal(2))
				Expect(errors.Is(err, circuitbreaker.ErrOpen)).To(BeTrue())

				var exhausted *upstream.ExhaustedError
				Expect(errors.As(err, &exhausted)).To(BeTrue())
			})
		})

		Context("when the endpoint is slower than the attempt timeout", func() {
			It("should cancel the attempt and classify it as transient", func() {
				server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					select {
					case <-r.Context().Done():
					case <-time.After(time.Second):
						w.WriteHeader(http.StatusOK)
					}
				}))
				defer server.Close()

				manager, err := upstream.NewManager("en", []string{server.URL}, registry, upstream.Options{
					Timeout: 50 * time.Millisecond,
					Retry:   retry.Policy{BaseDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1},
					Doer:    &http.Client{},
				})
				Expect(err).NotTo(HaveOccurred())

				_, err = manager.Fetch(ctx, "/slow")
				Expect(errors.Is(err, context.DeadlineExceeded)).To(BeTrue())

				var exhausted *upstream.ExhaustedError
				Expect(errors.As(err, &exhausted)).To(BeTrue())
			})
		})

		Context("when the body exceeds the size cap", func() {
			It("should fail without retrying", func() {
				var calls int
				doer := doerFunc(func(req *http.Request) (*http.Response, error) {
					calls++
					return jsonResponse(http.StatusOK, strings.Repeat("x", 64)), nil
				})

				manager, err := upstream.NewManager("en", []string{"https://en.wikipedia.org"}, registry, upstream.Options{
					Retry:        policy,
					MaxBodyBytes: 16,
					Doer:         doer,
				})
				Expect(err).NotTo(HaveOccurred())

				_, err = manager.Fetch(ctx, "/w/api.php")
				Expect(errors.Is(err, upstream.ErrBodyTooLarge)).To(BeTrue())
				Expect(calls).To(Equal(1))
			})
		})
	})

	Describe("Status", func() {
		It("should expose per-endpoint circuit state", func() {
			doer := doerFunc(func(req *http.Request) (*http.Response, error) {
				if req.URL.Host == "en.wikipedia.org" {
					return jsonResponse(http.StatusInternalServerError, ""), nil
				}
				return jsonResponse(http.StatusOK, `{}`), nil
			})

			manager := newManager([]string{"https://en.wikipedia.org", "https://en.m.wikipedia.org"}, doer)
			_, err := manager.Fetch(ctx, "/w/api.php")
			Expect(err).NotTo(HaveOccurred())

			statuses := manager.Status()
			Expect(statuses).To(HaveLen(2))
			Expect(statuses[0].URL).To(Equal("https://en.wikipedia.org"))
			Expect(statuses[0].State).To(Equal("CLOSED"))
			Expect(statuses[0].Failures).To(Equal(1))
			Expect(statuses[1].URL).To(Equal("https://en.m.wikipedia.org"))
			Expect(statuses[1].Failures).To(BeZero())
		})
	})
})
