package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/aretw0/certvault/pkg/core"
)

// Config controls the HTTP façade.
type Config struct {
	// Legacy answers failed reads and writes with 200 and an empty body
	// instead of 4xx, for clients written against the first deployment.
	Legacy bool
	// RateLimit is the sustained requests per second. Zero disables limiting.
	RateLimit float64
	// Burst defaults to the rate limit rounded up.
	Burst int
	// Logger receives access logs. Nil means silent.
	Logger *slog.Logger
	// Registry receives the HTTP metrics. Nil creates a private registry.
	Registry *prometheus.Registry
}

// Handler serves the record store over HTTP.
type Handler struct {
	store   *core.Store
	config  Config
	logger  *slog.Logger
	metrics *metrics
	limiter *rate.Limiter
	root    http.Handler
}

// NewHandler constructs the HTTP handler with its middleware chain.
func NewHandler(store *core.Store, config Config) *Handler {
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	h := &Handler{
		store:   store,
		config:  config,
		logger:  logger,
		metrics: newMetrics(config.Registry, store),
	}

	if config.RateLimit > 0 {
		burst := config.Burst
		if burst <= 0 {
			burst = max(1, int(config.RateLimit+0.5))
		}
		h.limiter = rate.NewLimiter(rate.Limit(config.RateLimit), burst)
	}

	var next http.Handler = http.HandlerFunc(h.route)
	next = h.withRateLimit(next)
	next = h.withMetrics(next)
	next = h.withAccessLog(next)
	next = withCORS(next)
	next = withRequestID(next)
	h.root = next

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.root.ServeHTTP(w, r)
}

func (h *Handler) route(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	path := strings.TrimSuffix(r.URL.Path, "/")
	switch {
	case path == "/uisettings":
		h.onlyGet(w, r, h.handleSettings)
	case path == "/ssls":
		h.onlyGet(w, r, h.handleList)
	case path == "/search":
		h.onlyGet(w, r, h.handleSearch)
	case path == "/ssl":
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		h.handleCreate(w, r)
	case strings.HasPrefix(path, "/ssl/"):
		h.handleRecord(w, r, strings.TrimPrefix(path, "/ssl/"))
	case path == "/metrics":
		h.onlyGet(w, r, h.metrics.handler.ServeHTTP)
	case path == "/debug/state":
		h.onlyGet(w, r, h.handleState)
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

func (h *Handler) onlyGet(w http.ResponseWriter, r *http.Request, fn http.HandlerFunc) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	fn(w, r)
}

func (h *Handler) handleSettings(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.store.Schema().Document())
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.store.All(r.Context()))
}

func (h *Handler) handleState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.store.State())
}

func (h *Handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	values := r.URL.Query()
	if len(values) == 0 {
		writeError(w, http.StatusBadRequest, "empty search query")
		return
	}

	query := make(core.Query, len(values))
	for k, v := range values {
		if len(v) > 0 {
			query[k] = v[0]
		}
	}

	found, err := h.store.Search(r.Context(), query)
	if err != nil {
		if h.config.Legacy && core.IsValidation(err) {
			// An unreadable date never compares true.
			writeJSON(w, http.StatusOK, []core.Record{})
			return
		}
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, found)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	input, err := decodeInput(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rec, err := h.store.Create(r.Context(), input)
	if err != nil {
		h.fail(w, err)
		return
	}

	status := http.StatusCreated
	if h.config.Legacy {
		status = http.StatusOK
	}
	writeJSON(w, status, rec)
}

func (h *Handler) handleRecord(w http.ResponseWriter, r *http.Request, raw string) {
	serial, err := strconv.Atoi(raw)
	if err != nil || serial < 0 {
		if !h.config.Legacy {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid serial number %q", raw))
			return
		}
		// Legacy clients see an unknown serial.
		serial = -1
	}

	switch r.Method {
	case http.MethodGet, http.MethodHead:
		rec, err := h.store.Get(r.Context(), serial)
		if err != nil {
			h.fail(w, err)
			return
		}
		writeJSON(w, http.StatusOK, rec)

	case http.MethodPut:
		input, err := decodeInput(w, r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		rec, err := h.store.Update(r.Context(), serial, input)
		if err != nil {
			h.fail(w, err)
			return
		}
		writeJSON(w, http.StatusOK, rec)

	case http.MethodDelete:
		if _, err := h.store.Delete(r.Context(), serial); err != nil {
			if errors.Is(err, core.ErrNotFound) {
				writeStatus(w, http.StatusBadRequest)
				return
			}
			h.fail(w, err)
			return
		}
		writeStatus(w, http.StatusOK)

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// fail maps store errors onto responses.
func (h *Handler) fail(w http.ResponseWriter, err error) {
	var status int
	switch {
	case core.IsValidation(err):
		status = http.StatusBadRequest
	case errors.Is(err, core.ErrNotFound):
		status = http.StatusNotFound
	default:
		h.logger.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	if h.config.Legacy {
		w.WriteHeader(http.StatusOK)
		return
	}
	writeError(w, status, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": message})
}

func writeStatus(w http.ResponseWriter, status int) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(http.StatusText(status)))
}
