package api_test

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/wikigate/wikigate/internal/api"
	"github.com/wikigate/wikigate/internal/cache"
	"github.com/wikigate/wikigate/internal/circuitbreaker"
	"github.com/wikigate/wikigate/internal/retry"
	"github.com/wikigate/wikigate/internal/upstream"
	"github.com/wikigate/wikigate/internal/wikipedia"
)

const (
	searchBody = `{"pages":[{"id":131539,"key":"Earth","title":"Earth",` +
		`"excerpt":"the <span>Earth</span>","description":"Third planet"}]}`

	summaryBody = `{"title":"Earth","description":"Third planet from the Sun",` +
		`"extract":"Earth is the third planet from the Sun.","lang":"en",` +
		`"timestamp":"2023-10-01T12:00:00Z"}`
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

func newMux(doer upstream.Doer) *http.ServeMux {
	registry := circuitbreaker.NewRegistry(100, time.Minute)
	manager, err := upstream.NewManager("en", []string{"https://en.wikipedia.org"}, registry, upstream.Options{
		Retry: retry.Policy{BaseDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1},
		Doer:  doer,
	})
	Expect(err).NotTo(HaveOccurred())

	memory, err := cache.NewMemory(100)
	Expect(err).NotTo(HaveOccurred())
	tiered := cache.NewTiered(memory, nil, nil, slog.Default())

	client := wikipedia.NewClient(
		map[string]*upstream.Manager{"en": manager},
		tiered,
		wikipedia.TTLs{},
		slog.Default(),
		nil,
	)

	mux := http.NewServeMux()
	api.NewHandler(slog.Default(), client, nil).Register(mux)
	return mux
}

func get(mux *http.ServeMux, target string) *httptest.ResponseRecorder {
	recorder := httptest.NewRecorder()
	mux.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, target, nil))
	return recorder
}

var _ = Describe("Handler", func() {
	Describe("Search", func() {
		It("should answer with the parsed result", func() {
			mux := newMux(doerFunc(func(req *http.Request) (*http.Response, error) {
				return jsonResponse(http.StatusOK, searchBody), nil
			}))

			recorder := get(mux, "/v1/en/search?q=earth")

			Expect(recorder.Code).To(Equal(http.StatusOK))
			Expect(recorder.Header().Get("Content-Type")).To(Equal("application/json"))

			var result wikipedia.SearchResult
			Expect(json.Unmarshal(recorder.Body.Bytes(), &result)).To(Succeed())
			Expect(result.Query).To(Equal("earth"))
			Expect(result.Results).To(HaveLen(1))
			Expect(result.Results[0].Title).To(Equal("Earth"))
		})

		It("should reject a missing query with 400", func() {
			mux := newMux(doerFunc(func(req *http.Request) (*http.Response, error) {
				return jsonResponse(http.StatusOK, searchBody), nil
			}))

			recorder := get(mux, "/v1/en/search")

			Expect(recorder.Code).To(Equal(http.StatusBadRequest))
			Expect(recorder.Body.String()).To(ContainSubstring("invalid_request"))
		})

		It("should reject a non-numeric limit with 400", func() {
			mux := newMux(doerFunc(func(req *http.Request) (*http.Response, error) {
				return jsonResponse(http.StatusOK, searchBody), nil
			}))

			recorder := get(mux, "/v1/en/search?q=earth&limit=many")

			Expect(recorder.Code).To(Equal(http.StatusBadRequest))
			Expect(recorder.Body.String()).To(ContainSubstring("invalid_request"))
		})

		It("should answer 404 for a language the gateway does not serve", func() {
			mux := newMux(doerFunc(func(req *http.Request) (*http.Response, error) {
				return jsonResponse(http.StatusOK, searchBody), nil
			}))

			recorder := get(mux, "/v1/xx/search?q=earth")

			Expect(recorder.Code).To(Equal(http.StatusNotFound))
			Expect(recorder.Body.String()).To(ContainSubstring("unknown_language"))
		})

		It("should answer 503 when every endpoint is down", func() {
			mux := newMux(doerFunc(func(req *http.Request) (*http.Response, error) {
				return jsonResponse(http.StatusServiceUnavailable, ""), nil
			}))

			recorder := get(mux, "/v1/en/search?q=earth")

			Expect(recorder.Code).To(Equal(http.StatusServiceUnavailable))
			Expect(recorder.Body.String()).To(ContainSubstring("upstream_unavailable"))
		})
	})

	Describe("Page", func() {
		It("should pass a missing article through as 404", func() {
			mux := newMux(doerFunc(func(req *http.Request) (*http.Response, error) {
				return jsonResponse(http.StatusNotFound, `{"httpCode":404}`), nil
			}))

			recorder := get(mux, "/v1/en/page/Missing")

			Expect(recorder.Code).To(Equal(http.StatusNotFound))
			Expect(recorder.Body.String()).To(ContainSubstring("upstream_rejected"))
		})

		It("should reject a title Wikipedia forbids with 400", func() {
			mux := newMux(doerFunc(func(req *http.Request) (*http.Response, error) {
				return jsonResponse(http.StatusOK, "{}"), nil
			}))

			recorder := get(mux, "/v1/en/page/Earth%7CMoon")

			Expect(recorder.Code).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("Summary", func() {
		It("should answer with the parsed summary", func() {
			mux := newMux(doerFunc(func(req *http.Request) (*http.Response, error) {
				return jsonResponse(http.StatusOK, summaryBody), nil
			}))

			recorder := get(mux, "/v1/en/summary/Earth")

			Expect(recorder.Code).To(Equal(http.StatusOK))

			var summary wikipedia.Summary
			Expect(json.Unmarshal(recorder.Body.Bytes(), &summary)).To(Succeed())
			Expect(summary.Title).To(Equal("Earth"))
			Expect(summary.Language).To(Equal("en"))
		})
	})

	Describe("Random", func() {
		It("should answer with a fresh summary", func() {
			mux := newMux(doerFunc(func(req *http.Request) (*http.Response, error) {
				Expect(req.URL.Path).To(Equal("/api/rest_v1/page/random/summary"))
				return jsonResponse(http.StatusOK, summaryBody), nil
			}))

			recorder := get(mux, "/v1/en/random")
			Expect(recorder.Code).To(Equal(http.StatusOK))
		})
	})

	Describe("Health", func() {
		It("should snapshot endpoints, cache and pending flights", func() {
			mux := newMux(doerFunc(func(req *http.Request) (*http.Response, error) {
				return jsonResponse(http.StatusOK, searchBody), nil
			}))

			recorder := get(mux, "/healthz")

			Expect(recorder.Code).To(Equal(http.StatusOK))

			var status wikipedia.Status
			Expect(json.Unmarshal(recorder.Body.Bytes(), &status)).To(Succeed())
			Expect(status.Languages).To(HaveKey("en"))
			Expect(status.Languages["en"]).To(HaveLen(1))
			Expect(status.Languages["en"][0].State).To(Equal("CLOSED"))
			Expect(status.PendingRequests).To(BeZero())
		})
	})

	Describe("routing", func() {
		It("should answer 404 for unknown routes", func() {
			mux := newMux(doerFunc(func(req *http.Request) (*http.Response, error) {
				return jsonResponse(http.StatusOK, searchBody), nil
			}))

			recorder := get(mux, "/v2/en/search?q=earth")
			Expect(recorder.Code).To(Equal(http.StatusNotFound))
		})
	})
})
