package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/wikigate/wikigate/internal/metrics"
	"github.com/wikigate/wikigate/internal/upstream"
	"github.com/wikigate/wikigate/internal/wikipedia"
)

// Handler serves the gateway's JSON routes on top of the wikipedia
// facade.
type Handler struct {
	client           *wikipedia.Client
	logger           *slog.Logger
	metricsCollector *metrics.Collector
}

func NewHandler(logger *slog.Logger, client *wikipedia.Client, collector *metrics.Collector) *Handler {
	return &Handler{
		client:           client,
		logger:           logger,
		metricsCollector: collector,
	}
}

// Register mounts the content and health routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /v1/{lang}/search", h.Search)
	mux.HandleFunc("GET /v1/{lang}/page/{title}", h.Page)
	mux.HandleFunc("GET /v1/{lang}/summary/{title}", h.Summary)
	mux.HandleFunc("GET /v1/{lang}/category/{name}", h.Category)
	mux.HandleFunc("GET /v1/{lang}/random", h.Random)
	mux.HandleFunc("GET /healthz", h.Health)
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, "search", func(r *http.Request) (any, error) {
		limit, err := queryLimit(r)
		if err != nil {
			return nil, err
		}
		return h.client.Search(r.Context(), r.PathValue("lang"), r.URL.Query().Get("q"), limit)
	})
}

func (h *Handler) Page(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, "page", func(r *http.Request) (any, error) {
		return h.client.Page(r.Context(), r.PathValue("lang"), r.PathValue("title"))
	})
}

func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, "summary", func(r *http.Request) (any, error) {
		return h.client.Summary(r.Context(), r.PathValue("lang"), r.PathValue("title"))
	})
}

func (h *Handler) Category(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, "category", func(r *http.Request) (any, error) {
		limit, err := queryLimit(r)
		if err != nil {
			return nil, err
		}
		return h.client.Category(r.Context(), r.PathValue("lang"), r.PathValue("name"), limit)
	})
}

func (h *Handler) Random(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, "random", func(r *http.Request) (any, error) {
		return h.client.Random(r.Context(), r.PathValue("lang"))
	})
}

// Health reports the read-only status snapshot: per-endpoint circuit
// state, cache occupancy and pending deduplicated flights.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.client.Status())
}

func (h *Handler) serve(w http.ResponseWriter, r *http.Request, op string, fn func(*http.Request) (any, error)) {
	start := time.Now()

	result, err := fn(r)

	status := http.StatusOK
	if err != nil {
		var code string
		status, code = classify(err)
		h.writeError(w, r, op, status, code, err)
	} else {
		writeJSON(w, http.StatusOK, result)
	}

	duration := time.Since(start)
	h.metricsCollector.RequestCompleted(op, duration, status)

	h.logger.Info("request completed",
		slog.String("operation", op),
		slog.String("path", r.URL.Path),
		slog.Int("status", status),
		slog.Duration("duration", duration),
	)
}

// errorBody is the JSON shape of every failure response.
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// classify maps a facade error onto a response status and a stable
// error code. Upstream exhaustion is deliberately distinct from caller
// faults so clients can tell "try again later" from "fix your request".
func classify(err error) (int, string) {
	var invalid *wikipedia.ValidationError
	if errors.As(err, &invalid) {
		return http.StatusBadRequest, "invalid_request"
	}
	if errors.Is(err, wikipedia.ErrUnknownLanguage) {
		return http.StatusNotFound, "unknown_language"
	}

	var exhausted *upstream.ExhaustedError
	if errors.As(err, &exhausted) {
		return http.StatusServiceUnavailable, "upstream_unavailable"
	}

	// Pass 4xx answers from Wikipedia through, most commonly a missing
	// page. Anything else is a gateway-side upstream failure.
	var statusErr *upstream.StatusError
	if errors.As(err, &statusErr) && statusErr.Code >= 400 && statusErr.Code < 500 {
		return statusErr.Code, "upstream_rejected"
	}

	return http.StatusBadGateway, "upstream_error"
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, op string, status int, code string, err error) {
	if status >= http.StatusInternalServerError {
		h.logger.Warn("request failed",
			slog.String("operation", op),
			slog.String("path", r.URL.Path),
			slog.Int("status", status),
			slog.String("error", err.Error()),
		)
	}

	writeJSON(w, status, errorBody{Error: code, Message: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func queryLimit(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, nil
	}

	limit, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &wikipedia.ValidationError{Field: "limit", Message: "must be an integer"}
	}
	return limit, nil
}
