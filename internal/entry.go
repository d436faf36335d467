// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/questcard/internal/api"
	"github.com/starford/questcard/internal/docservice"
	"github.com/starford/questcard/internal/index"
	"github.com/starford/questcard/internal/mcpserver"
	"github.com/starford/questcard/internal/metrics"
	"github.com/starford/questcard/internal/proxy"
	"github.com/starford/questcard/internal/quest"
	"github.com/starford/questcard/internal/sse"
	"github.com/starford/questcard/internal/storage"
)

func newApplication(opts []Option) (*application, error) {
	app := &application{out: os.Stdout}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
}

// backend is the document store and quest resolver shared by every command.
type backend struct {
	store    storage.Provider
	db       *index.DB
	svc      *docservice.Service
	resolver *quest.Resolver
}

func (a *application) openBackend(logger *slog.Logger, hooks ...quest.CommitHook) (*backend, error) {
	cfg := a.config

	// Ensure vault directory exists.
	if err := os.MkdirAll(cfg.Vault.Path, 0o755); err != nil {
		return nil, fmt.Errorf("create vault dir: %w", err)
	}

	store, err := storage.NewFS(cfg.Vault.Path)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}
	if n, err := store.SweepTemp(time.Hour); err != nil {
		logger.Warn("temp sweep failed", slog.String("error", err.Error()))
	} else if n > 0 {
		logger.Info("removed stale temp files", slog.Int("count", n))
	}

	db, err := index.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init index: %w", err)
	}

	if _, err := index.Sync(db, store, logger); err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}

	fetcher := a.fetcher
	if fetcher == nil {
		fetcher = quest.NewClient(quest.ClientConfig{
			ProxyURL:    cfg.Resolver.ProxyURL,
			KeyTemplate: cfg.Resolver.KeyTemplate,
		})
	}
	viewOpts := []quest.ViewOption{
		quest.WithLogger(logger),
		quest.WithLocation(cfg.Resolver.Location()),
	}
	for _, h := range hooks {
		viewOpts = append(viewOpts, quest.WithCommitHook(h))
	}

	return &backend{
		store: store,
		db:    db,
		svc:   docservice.NewService(store, db, nil),
		resolver: &quest.Resolver{
			Fetcher: fetcher,
			Theme:   cfg.Theme,
			Timeout: cfg.Resolver.RenderTimeout,
			Options: viewOpts,
		},
	}, nil
}

func (b *backend) Close() error {
	return b.db.Close()
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// Run starts the HTTP service and the quest proxy with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	// Initialize structured JSON logger.
	logger := newLogger(app.out, cfg.App.LogLevel)
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("vault_path", cfg.Vault.Path),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("proxy_url", cfg.Resolver.ProxyURL),
		slog.String("log_level", cfg.App.LogLevel.String()))

	m := metrics.New()

	// SSE broker.
	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	be, err := app.openBackend(logger, m.CommitHook(), broker.CommitHook())
	if err != nil {
		return err
	}
	defer be.Close()

	apiRouter := api.NewRouter(be.svc, be.resolver, broker)

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health/live", healthHandler)
	r.Get("/health/ready", healthHandler)
	r.Handle("/metrics", m.Handler())

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	servers := []*http.Server{httpServer}
	if cfg.Proxy.Enabled() {
		p := proxy.New(proxy.Config{
			UpstreamURL: cfg.Proxy.UpstreamURL,
			Path:        cfg.Proxy.Path,
		}, proxy.WithLogger(logger), proxy.WithObserver(m.ObserveProxy))

		pr := chi.NewRouter()
		pr.Use(middleware.RequestID)
		pr.Use(middleware.Recoverer)
		pr.Mount("/", p.Router())

		servers = append(servers, &http.Server{
			Addr:              cfg.Proxy.Address(),
			Handler:           pr,
			ReadHeaderTimeout: 10 * time.Second,
		})
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Start file watcher with SSE callback.
	g.Go(func() error {
		err := index.Watch(gCtx, be.db, be.store, cfg.Vault.Path, logger, func(kind, path string) {
			broker.PublishDocumentEvent(kind, docservice.IDOf(path))
		})
		if err != nil {
			logger.Warn("file watcher stopped", slog.String("error", err.Error()))
		}
		return nil
	})

	for _, srv := range servers {
		g.Go(func() error {
			logger.Info("Starting HTTP server", slog.String("address", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("HTTP server %s error: %w", srv.Addr, err)
			}
			return nil
		})
	}

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down servers...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		for _, srv := range servers {
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error("HTTP server shutdown error",
					slog.String("address", srv.Addr),
					slog.String("error", err.Error()))
			}
		}

		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// RunMCP serves the MCP tools on stdin/stdout. Logs go to stderr.
func RunMCP(_ context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	logger := newLogger(os.Stderr, app.config.App.LogLevel)
	slog.SetDefault(logger)

	be, err := app.openBackend(logger)
	if err != nil {
		return err
	}
	defer be.Close()

	logger.Info("MCP server starting", slog.String("vault_path", app.config.Vault.Path))
	return mcpserver.New(be.svc, be.resolver).ServeStdio()
}

// ExportHTML writes the interchange markup of document id to the configured output.
func ExportHTML(ctx context.Context, id string, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	logger := newLogger(os.Stderr, app.config.App.LogLevel)

	be, err := app.openBackend(logger)
	if err != nil {
		return err
	}
	defer be.Close()

	out, err := be.svc.ExportHTML(ctx, id)
	if err != nil {
		return fmt.Errorf("export %s: %w", id, err)
	}
	_, err = io.WriteString(app.out, out)
	return err
}
