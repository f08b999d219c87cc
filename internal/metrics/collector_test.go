package metrics_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http/httptest"
	"os"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/wikigate/wikigate/internal/metrics"
)

var _ = Describe("Collector", func() {
	var (
		collector *metrics.Collector
		log       *slog.Logger
		ctx       context.Context
		cancel    context.CancelFunc
	)

	BeforeEach(func() {
		log = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelError, // Suppress logs in tests
		}))
		ctx, cancel = context.WithCancel(context.Background())
		collector = metrics.NewCollector(100, log)
	})

	AfterEach(func() {
		cancel()
		time.Sleep(10 * time.Millisecond) // Allow goroutine to finish
	})

	Describe("NewCollector", func() {
		It("should create a collector with the given buffer size", func() {
			c := metrics.NewCollector(500, log)
			Expect(c).NotTo(BeNil())
		})
	})

	Describe("event processing", func() {
		It("should fold request completions into the snapshot", func() {
			collector.Start(ctx)

			collector.RequestCompleted("search", 25*time.Millisecond, 200)

			Eventually(func() int64 {
				return collector.Snapshot().Operations["search"].Requests
			}).Should(Equal(int64(1)))
			Expect(collector.Snapshot().Operations["search"].StatusCodes[200]).To(Equal(int64(1)))
		})

		It("should fold cache lookups into the snapshot", func() {
			collector.Start(ctx)

			collector.CacheLookup("summary", true)
			collector.CacheLookup("summary", false)

			Eventually(func() int64 {
				return collector.Snapshot().Operations["summary"].CacheMisses
			}).Should(Equal(int64(1)))
			Expect(collector.Snapshot().Operations["summary"].CacheHits).To(Equal(int64(1)))
		})

		It("should fold flight resolutions into the snapshot", func() {
			collector.Start(ctx)

			collector.FlightResolved("page", false)
			collector.FlightResolved("page", true)

			Eventually(func() int64 {
				return collector.Snapshot().Operations["page"].FlightsJoined
			}).Should(Equal(int64(1)))
			Expect(collector.Snapshot().Operations["page"].FlightsLed).To(Equal(int64(1)))
		})

		It("should fold upstream fetches into the snapshot", func() {
			collector.Start(ctx)

			collector.FetchCompleted("https://en.wikipedia.org", 40*time.Millisecond, 200)

			Eventually(func() int64 {
				return collector.Snapshot().Endpoints["https://en.wikipedia.org"].Fetches
			}).Should(Equal(int64(1)))
		})

		It("should drain buffered events on shutdown", func() {
			collector.Start(ctx)

			for i := 0; i < 10; i++ {
				collector.RequestCompleted("search", time.Millisecond, 200)
			}
			cancel()

			Eventually(func() int64 {
				return collector.Snapshot().Operations["search"].Requests
			}).Should(Equal(int64(10)))
		})
	})

	Describe("nil collector", func() {
		It("should ignore records without panicking", func() {
			var none *metrics.Collector
			Expect(func() {
				none.RequestCompleted("search", time.Millisecond, 200)
				none.CacheLookup("search", true)
				none.FlightResolved("search", false)
				none.FetchCompleted("https://en.wikipedia.org", time.Millisecond, 200)
			}).NotTo(Panic())
		})
	})

	Describe("Handler", func() {
		It("should serve the snapshot as JSON", func() {
			collector.Start(ctx)
			collector.RequestCompleted("search", 25*time.Millisecond, 200)

			Eventually(func() int64 {
				return collector.Snapshot().TotalRequests
			}).Should(Equal(int64(1)))

			recorder := httptest.NewRecorder()
			request := httptest.NewRequest("GET", "/metrics", nil)
			collector.Handler()(recorder, request)

			Expect(recorder.Code).To(Equal(200))
			Expect(recorder.Header().Get("Content-Type")).To(Equal("application/json"))

			var snap metrics.Snapshot
			Expect(json.Unmarshal(recorder.Body.Bytes(), &snap)).To(Succeed())
			Expect(snap.TotalRequests).To(Equal(int64(1)))
		})
	})
})
