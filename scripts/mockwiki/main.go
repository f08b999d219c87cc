// Mockwiki is a local stand-in for a Wikipedia mirror, used to exercise
// the gateway's failover, retry and circuit breaker behavior without
// touching the real site. It serves the REST and Action API paths the
// gateway fetches and can inject failures and latency.
//
// Usage:
//
//	go run ./scripts/mockwiki -port 8081
//	go run ./scripts/mockwiki -port 8081 -fail-rate 0.5 -latency 200ms
//	go run ./scripts/mockwiki -port 8081 -down-for 30s
//
// Run two instances on different ports and point a language's endpoint
// list at both to watch the gateway rotate between them.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"strings"
	"time"
)

type injector struct {
	failRate float64
	latency  time.Duration
	upAfter  time.Time
}

// intercept applies the configured latency and failure injection,
// returning true when the request was already answered with an error.
func (in *injector) intercept(w http.ResponseWriter, r *http.Request) bool {
	if in.latency > 0 {
		time.Sleep(in.latency)
	}

	if time.Now().Before(in.upAfter) {
		log.Printf("injected outage: method=%s path=%s", r.Method, r.URL.Path)
		http.Error(w, "mirror down", http.StatusServiceUnavailable)
		return true
	}

	if in.failRate > 0 && rand.Float64() < in.failRate {
		log.Printf("injected failure: method=%s path=%s", r.Method, r.URL.Path)
		http.Error(w, "mirror hiccup", http.StatusInternalServerError)
		return true
	}

	return false
}

func main() {
	port := flag.Int("port", 8081, "port to listen on")
	failRate := flag.Float64("fail-rate", 0, "probability (0..1) of answering 500")
	latency := flag.Duration("latency", 0, "fixed delay before every response")
	downFor := flag.Duration("down-for", 0, "answer 503 for this long after startup")
	flag.Parse()

	in := &injector{
		failRate: *failRate,
		latency:  *latency,
		upAfter:  time.Now().Add(*downFor),
	}

	mux := http.NewServeMux()

	mux.HandleFunc("/w/rest.php/v1/search/page", func(w http.ResponseWriter, r *http.Request) {
		if in.intercept(w, r) {
			return
		}
		query := r.URL.Query().Get("q")
		log.Printf("search: q=%q from=%s", query, r.RemoteAddr)
		writeJSON(w, map[string]any{
			"pages": []map[string]any{
				{
					"id":          42,
					"key":         strings.ReplaceAll(query, " ", "_"),
					"title":       query,
					"excerpt":     fmt.Sprintf("mock result for <span>%s</span>", query),
					"description": "mockwiki search hit",
				},
			},
		})
	})

	mux.HandleFunc("/w/rest.php/v1/page/", func(w http.ResponseWriter, r *http.Request) {
		if in.intercept(w, r) {
			return
		}
		title := strings.TrimPrefix(r.URL.Path, "/w/rest.php/v1/page/")
		log.Printf("page: title=%q from=%s", title, r.RemoteAddr)
		writeJSON(w, map[string]any{
			"id":            42,
			"key":           strings.ReplaceAll(title, " ", "_"),
			"title":         title,
			"latest":        map[string]any{"id": 1, "timestamp": time.Now().UTC().Format(time.RFC3339)},
			"content_model": "wikitext",
			"source":        fmt.Sprintf("'''%s''' is a mock article.", title),
		})
	})

	summary := func(title string) map[string]any {
		return map[string]any{
			"title":       title,
			"description": "mockwiki summary",
			"extract":     fmt.Sprintf("%s is served by mockwiki.", title),
			"lang":        "en",
			"timestamp":   time.Now().UTC().Format(time.RFC3339),
		}
	}

	mux.HandleFunc("/api/rest_v1/page/summary/", func(w http.ResponseWriter, r *http.Request) {
		if in.intercept(w, r) {
			return
		}
		title := strings.TrimPrefix(r.URL.Path, "/api/rest_v1/page/summary/")
		log.Printf("summary: title=%q from=%s", title, r.RemoteAddr)
		writeJSON(w, summary(title))
	})

	mux.HandleFunc("/api/rest_v1/page/random/summary", func(w http.ResponseWriter, r *http.Request) {
		if in.intercept(w, r) {
			return
		}
		title := fmt.Sprintf("Random article %d", rand.Intn(1000))
		log.Printf("random: title=%q from=%s", title, r.RemoteAddr)
		writeJSON(w, summary(title))
	})

	mux.HandleFunc("/w/api.php", func(w http.ResponseWriter, r *http.Request) {
		if in.intercept(w, r) {
			return
		}
		category := r.URL.Query().Get("cmtitle")
		log.Printf("category: cmtitle=%q from=%s", category, r.RemoteAddr)
		writeJSON(w, map[string]any{
			"batchcomplete": true,
			"query": map[string]any{
				"categorymembers": []map[string]any{
					{"pageid": 1, "ns": 0, "title": "Mock member one"},
					{"pageid": 2, "ns": 0, "title": "Mock member two"},
				},
			},
		})
	})

	addr := fmt.Sprintf(":%d", *port)
	log.Printf("starting mockwiki on %s (fail-rate=%.2f latency=%s down-for=%s)", addr, *failRate, *latency, *downFor)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatalf("server failed: %v", err)
	}
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	b, _ := json.Marshal(payload)
	w.Write(b)
}
