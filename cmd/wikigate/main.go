package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/wikigate/wikigate/config"
	"github.com/wikigate/wikigate/internal/api"
	"github.com/wikigate/wikigate/internal/cache"
	"github.com/wikigate/wikigate/internal/circuitbreaker"
	"github.com/wikigate/wikigate/internal/httpserver"
	"github.com/wikigate/wikigate/internal/metrics"
	"github.com/wikigate/wikigate/internal/retry"
	"github.com/wikigate/wikigate/internal/upstream"
	"github.com/wikigate/wikigate/internal/wikipedia"
	"github.com/wikigate/wikigate/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.Any("err", err))
		os.Exit(1)
	}

	log := logger.New(logger.Options{
		Level:       cfg.Logging.Level,
		Environment: cfg.Server.Environment,
	})

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	collector := metrics.NewCollector(cfg.Metrics.BufferSize, log)
	collector.Start(ctx)

	registry := circuitbreaker.NewRegistry(
		cfg.Upstream.Breaker.FailureThreshold,
		config.Duration(cfg.Upstream.Breaker.ResetTimeout),
	)

	managers, err := buildManagers(cfg, registry, collector, log)
	if err != nil {
		log.Error("Failed to initialize upstream managers", slog.Any("err", err))
		os.Exit(1)
	}

	tiered, err := buildCache(ctx, cfg, log)
	if err != nil {
		log.Error("Failed to initialize cache", slog.Any("err", err))
		os.Exit(1)
	}
	defer tiered.Close()

	client := wikipedia.NewClient(managers, tiered, wikipedia.TTLs{
		Search:   config.Duration(cfg.Cache.TTL.Search),
		Page:     config.Duration(cfg.Cache.TTL.Page),
		Summary:  config.Duration(cfg.Cache.TTL.Summary),
		Category: config.Duration(cfg.Cache.TTL.Category),
	}, log, collector)

	mux := setupRouter(api.NewHandler(log, client, collector), collector)

	srv, err := httpserver.New(cfg.Server.Address, mux, httpserver.Options{
		ReadTimeout:     config.Duration(cfg.Server.ReadTimeout),
		WriteTimeout:    config.Duration(cfg.Server.WriteTimeout),
		IdleTimeout:     config.Duration(cfg.Server.IdleTimeout),
		ShutdownTimeout: config.Duration(cfg.Server.ShutdownTimeout),
	})
	if err != nil {
		log.Error("Failed to create server", slog.Any("err", err))
		os.Exit(1)
	}

	log.Info("gateway listening",
		slog.String("address", cfg.Server.Address),
		slog.Any("languages", client.Languages()),
	)

	srvErrCh := make(chan error, 1)

	go func() {
		srvErrCh <- srv.Start()
	}()

	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
		if err := srv.Shutdown(context.Background()); err != nil {
			log.Error("Error during shutdown", slog.Any("err", err))
		}
	case err := <-srvErrCh:
		if err != nil {
			log.Error("Error starting gateway", slog.Any("err", err))
			os.Exit(1)
		}
	}
}

func buildManagers(cfg *config.Config, registry *circuitbreaker.Registry, collector *metrics.Collector, log *slog.Logger) (map[string]*upstream.Manager, error) {
	opts := upstream.Options{
		Timeout:   config.Duration(cfg.Upstream.Timeout),
		UserAgent: cfg.Upstream.UserAgent,
		Retry: retry.Policy{
			MaxRetries: cfg.Upstream.Retry.MaxRetries,
			BaseDelay:  config.Duration(cfg.Upstream.Retry.BaseDelay),
			MaxDelay:   config.Duration(cfg.Upstream.Retry.MaxDelay),
			Multiplier: cfg.Upstream.Retry.Multiplier,
		},
		Doer:    &http.Client{},
		Logger:  log,
		Metrics: collector,
	}

	managers := make(map[string]*upstream.Manager, len(cfg.Upstream.Languages))
	for _, lang := range cfg.Upstream.Languages {
		manager, err := upstream.NewManager(lang.Code, lang.Endpoints, registry, opts)
		if err != nil {
			return nil, err
		}
		managers[lang.Code] = manager
	}

	return managers, nil
}

func buildCache(ctx context.Context, cfg *config.Config, log *slog.Logger) (*cache.Tiered, error) {
	memory, err := cache.NewMemory(cfg.Cache.MemoryCapacity)
	if err != nil {
		return nil, err
	}

	var durable cache.Store
	if cfg.Cache.Redis.Enabled {
		store := cache.NewRedisStore(cache.RedisOptions{
			Addr:     cfg.Cache.Redis.Addr,
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
		})

		// An unreachable store is not fatal: the tiered cache degrades to
		// memory only and its breaker limits the slow-path cost.
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := store.Ping(pingCtx); err != nil {
			log.Warn("durable cache unreachable at startup",
				slog.String("addr", cfg.Cache.Redis.Addr),
				slog.String("error", err.Error()))
		}
		durable = store
	}

	return cache.NewTiered(memory, durable, nil, log), nil
}
