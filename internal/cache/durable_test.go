package cache_test

import (
	"context"
	"time"

	"github.com/alicebob/miniredis/v2"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/wikigate/wikigate/internal/cache"
)

var _ = Describe("RedisStore", func() {
	var (
		ctx       context.Context
		miniRedis *miniredis.Miniredis
		store     *cache.RedisStore
	)

	BeforeEach(func() {
		ctx = context.Background()

		var err error
		miniRedis, err = miniredis.Run()
		Expect(err).NotTo(HaveOccurred())

		store = cache.NewRedisStore(cache.RedisOptions{
			Addr:         miniRedis.Addr(),
			DialTimeout:  time.Second,
			ReadTimeout:  time.Second,
			WriteTimeout: time.Second,
		})
	})

	AfterEach(func() {
		Expect(store.Close()).To(Succeed())
		miniRedis.Close()
	})

	Describe("Get and Set", func() {
		It("should round-trip a value with its remaining TTL", func() {
			Expect(store.Set(ctx, "summary:en:go", []byte("payload"), 10*time.Second)).To(Succeed())

			value, remaining, err := store.Get(ctx, "summary:en:go")
			Expect(err).NotTo(HaveOccurred())
			Expect(value).To(Equal([]byte("payload")))
			Expect(remaining).To(BeNumerically(">", 0))
			Expect(remaining).To(BeNumerically("<=", 10*time.Second))
		})

		It("should report the TTL left after time passes", func() {
			Expect(store.Set(ctx, "summary:en:go", []byte("payload"), 10*time.Second)).To(Succeed())

			miniRedis.FastForward(6 * time.Second)

			_, remaining, err := store.Get(ctx, "summary:en:go")
			Expect(err).NotTo(HaveOccurred())
			Expect(remaining).To(BeNumerically("<=", 4*time.Second))
		})

		It("should return ErrMiss for an absent key", func() {
			_, _, err := store.Get(ctx, "summary:en:missing")
			Expect(err).To(MatchError(cache.ErrMiss))
		})

		It("should return ErrMiss once the entry expires", func() {
			Expect(store.Set(ctx, "summary:en:go", []byte("payload"), time.Second)).To(Succeed())

			miniRedis.FastForward(2 * time.Second)

			_, _, err := store.Get(ctx, "summary:en:go")
			Expect(err).To(MatchError(cache.ErrMiss))
		})

		It("should surface connection failures", func() {
			miniRedis.Close()

			_, _, err := store.Get(ctx, "summary:en:go")
			Expect(err).To(HaveOccurred())
			Expect(err).NotTo(MatchError(cache.ErrMiss))
		})
	})

	Describe("Ping", func() {
		It("should succeed against a reachable server", func() {
			Expect(store.Ping(ctx)).To(Succeed())
		})

		It("should fail against an unreachable server", func() {
			miniRedis.Close()
			Expect(store.Ping(ctx)).NotTo(Succeed())
		})
	})
})
