// Package proxy implements the same-origin pass-through that lets browser
// clients reach the upstream quest API.
package proxy

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-resty/resty/v2"
)

// DefaultUpstreamURL is the Vantient quest query endpoint.
const DefaultUpstreamURL = "https://cmty.space/api/query/quest"

const maxBodyBytes = 1 << 20

// Config configures the proxy.
type Config struct {
	UpstreamURL string
	// Path is where the proxy endpoint is served, "/quest" by default.
	Path string
}

// Option configures a Handler.
type Option func(*Handler)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) { h.logger = l }
}

// WithObserver registers a callback receiving the response status of every
// POST, including rejected request bodies.
func WithObserver(fn func(status int)) Option {
	return func(h *Handler) { h.observe = fn }
}

// Handler forwards quest queries to the upstream API.
type Handler struct {
	client   *resty.Client
	upstream string
	path     string
	logger   *slog.Logger
	observe  func(int)
}

// New creates a proxy handler.
func New(cfg Config, opts ...Option) *Handler {
	upstream := cfg.UpstreamURL
	if upstream == "" {
		upstream = DefaultUpstreamURL
	}
	path := cfg.Path
	if path == "" {
		path = "/quest"
	}
	h := &Handler{
		client:   resty.New().SetHeader("Content-Type", "application/json"),
		upstream: upstream,
		path:     path,
		logger:   slog.Default(),
		observe:  func(int) {},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Router returns a router serving only the proxy endpoint. Every response,
// including 404s, carries the CORS headers.
func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(corsHeaders)
	r.Options(h.path, h.Preflight)
	r.Post(h.path, h.Forward)
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusMethodNotAllowed)
	})
	return r
}

func corsHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hdr := w.Header()
		hdr.Set("Content-Type", "application/json")
		hdr.Set("Access-Control-Allow-Origin", "*")
		hdr.Set("Access-Control-Request-Method", "*")
		hdr.Set("Access-Control-Allow-Methods", "OPTIONS, POST")
		hdr.Set("Access-Control-Allow-Headers", "*")
		next.ServeHTTP(w, r)
	})
}

// Preflight handles OPTIONS with an empty 200.
func (h *Handler) Preflight(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// Forward posts the request's JSON body upstream and relays the JSON answer.
// Bodies over 1 MiB are answered with 413, like the document API.
func (h *Handler) Forward(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			h.observe(http.StatusRequestEntityTooLarge)
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		h.observe(http.StatusBadRequest)
		writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}
	if !json.Valid(body) {
		h.observe(http.StatusBadRequest)
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	resp, err := h.client.R().
		SetContext(r.Context()).
		SetBody(body).
		Post(h.upstream)
	if err != nil {
		h.logger.Error("proxy: upstream request failed", slog.String("error", err.Error()))
		h.observe(http.StatusBadGateway)
		writeError(w, http.StatusBadGateway, "upstream unavailable")
		return
	}
	if !resp.IsSuccess() {
		h.logger.Warn("proxy: upstream returned error",
			slog.Int("status", resp.StatusCode()))
		h.observe(http.StatusBadGateway)
		writeError(w, http.StatusBadGateway, fmt.Sprintf("upstream status %d", resp.StatusCode()))
		return
	}
	if !json.Valid(resp.Body()) {
		h.logger.Warn("proxy: upstream returned invalid JSON")
		h.observe(http.StatusBadGateway)
		writeError(w, http.StatusBadGateway, "invalid upstream response")
		return
	}

	h.observe(http.StatusOK)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(resp.Body())
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(map[string]string{"error": msg}); err != nil {
		slog.Error("json encode failed", slog.String("error", err.Error()))
	}
}
