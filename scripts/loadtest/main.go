// Loadtest is a concurrent HTTP load testing tool for the gateway. It
// measures throughput, latency percentiles and status code distribution,
// and can vary the search term per request to control the cache hit rate.
//
// Usage:
//
//	go run ./scripts/loadtest -url http://localhost:8080/v1/en/search -concurrency 10 -requests 1000
//	go run ./scripts/loadtest -url http://localhost:8080/v1/en/summary/Earth -concurrency 50 -requests 5000 -out summary.json
//
// With -terms N the search query cycles through N distinct terms, so
// N=1 exercises the hot cache path and a large N forces upstream
// fetches and request deduplication.
package main

import (
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

func main() {
	var (
		target      = flag.String("url", "http://localhost:8080/v1/en/search", "Target URL")
		concurrency = flag.Int("concurrency", 10, "Number of concurrent workers")
		requests    = flag.Int("requests", 100, "Total number of requests to send")
		terms       = flag.Int("terms", 1, "Number of distinct search terms to cycle through")
		timeoutSec  = flag.Int("timeout", 30, "Per-request timeout in seconds")
	)

	outJSON := flag.String("out", "", "Write JSON summary to this file (optional)")
	outCSV := flag.String("csv", "", "Write per-request CSV to this file (optional)")
	verbose := flag.Bool("v", false, "Verbose per-request logging to stdout")
	flag.Parse()

	client := &http.Client{Timeout: time.Duration(*timeoutSec) * time.Second}

	jobs := make(chan int)
	var wg sync.WaitGroup

	var total int32
	var success int32
	var failure int32

	var allLatencies []time.Duration
	var latMu sync.Mutex

	statusCodes := make(map[int]int32)
	var statusMu sync.Mutex

	var csvFile *os.File
	var csvWriter *csv.Writer
	var csvMu sync.Mutex
	if *outCSV != "" {
		f, err := os.Create(*outCSV)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to create csv file: %v\n", err)
			os.Exit(1)
		}
		csvFile = f
		csvWriter = csv.NewWriter(f)
		csvWriter.Write([]string{"idx", "timestamp", "status", "duration_ms"})
	}

	testStart := time.Now()

	for i := 0; i < *concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				atomic.AddInt32(&total, 1)

				requestURL := *target
				if *terms > 0 {
					u, err := url.Parse(*target)
					if err == nil {
						q := u.Query()
						q.Set("q", "term-"+strconv.Itoa(idx%*terms))
						u.RawQuery = q.Encode()
						requestURL = u.String()
					}
				}

				start := time.Now()
				resp, err := client.Get(requestURL)
				dur := time.Since(start)

				latMu.Lock()
				allLatencies = append(allLatencies, dur)
				latMu.Unlock()

				status := 0
				if err != nil {
					atomic.AddInt32(&failure, 1)
				} else {
					status = resp.StatusCode
					io.Copy(io.Discard, resp.Body)
					resp.Body.Close()
					if status >= 200 && status < 300 {
						atomic.AddInt32(&success, 1)
					} else {
						atomic.AddInt32(&failure, 1)
					}
				}

				statusMu.Lock()
				statusCodes[status]++
				statusMu.Unlock()

				if csvWriter != nil {
					csvMu.Lock()
					csvWriter.Write([]string{
						strconv.Itoa(idx),
						start.Format(time.RFC3339Nano),
						strconv.Itoa(status),
						fmt.Sprintf("%.2f", float64(dur.Microseconds())/1000),
					})
					csvMu.Unlock()
				}

				if *verbose {
					fmt.Printf("req %d: status=%d duration=%s\n", idx, status, dur)
				}
			}
		}()
	}

	for idx := 0; idx < *requests; idx++ {
		jobs <- idx
	}
	close(jobs)
	wg.Wait()

	elapsed := time.Since(testStart)

	if csvWriter != nil {
		csvWriter.Flush()
		csvFile.Close()
	}

	sort.Slice(allLatencies, func(i, j int) bool { return allLatencies[i] < allLatencies[j] })

	percentile := func(p float64) time.Duration {
		if len(allLatencies) == 0 {
			return 0
		}
		i := int(float64(len(allLatencies)) * p)
		if i >= len(allLatencies) {
			i = len(allLatencies) - 1
		}
		return allLatencies[i]
	}

	var sum time.Duration
	for _, d := range allLatencies {
		sum += d
	}
	var avg time.Duration
	if len(allLatencies) > 0 {
		avg = sum / time.Duration(len(allLatencies))
	}

	summary := map[string]any{
		"target":        *target,
		"requests":      atomic.LoadInt32(&total),
		"success":       atomic.LoadInt32(&success),
		"failure":       atomic.LoadInt32(&failure),
		"elapsed":       elapsed.String(),
		"rps":           fmt.Sprintf("%.1f", float64(total)/elapsed.Seconds()),
		"latency_avg":   avg.String(),
		"latency_p50":   percentile(0.50).String(),
		"latency_p90":   percentile(0.90).String(),
		"latency_p95":   percentile(0.95).String(),
		"latency_p99":   percentile(0.99).String(),
		"status_counts": statusCodes,
	}

	fmt.Printf("\n--- loadtest summary ---\n")
	fmt.Printf("requests: %d (ok=%d fail=%d) in %s (%.1f req/s)\n",
		total, success, failure, elapsed.Round(time.Millisecond), float64(total)/elapsed.Seconds())
	fmt.Printf("latency: avg=%s p50=%s p90=%s p95=%s p99=%s\n",
		avg, percentile(0.50), percentile(0.90), percentile(0.95), percentile(0.99))
	fmt.Printf("status codes: ")
	for code, count := range statusCodes {
		fmt.Printf("%d=%d ", code, count)
	}
	fmt.Println()

	if *outJSON != "" {
		b, _ := json.MarshalIndent(summary, "", "  ")
		if err := os.WriteFile(*outJSON, b, 0644); err != nil {
			fmt.Fprintf(os.Stderr, "failed to write summary: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("summary written to %s\n", *outJSON)
	}
}
