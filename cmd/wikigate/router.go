package main

import (
	"net/http"

	"github.com/wikigate/wikigate/internal/api"
	"github.com/wikigate/wikigate/internal/metrics"
)

func setupRouter(handler *api.Handler, metricsCollector *metrics.Collector) *http.ServeMux {
	mux := http.NewServeMux()

	handler.Register(mux)
	mux.HandleFunc("GET /metrics", metricsCollector.Handler())

	return mux
}
