package cli

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"

	"github.com/ashureev/memchat/internal/api"
	"github.com/ashureev/memchat/internal/chat"
	"github.com/ashureev/memchat/internal/identity"
	"github.com/ashureev/memchat/internal/middleware"
	"github.com/ashureev/memchat/internal/store"
	"github.com/ashureev/memchat/internal/stream"
	"github.com/ashureev/memchat/web"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the web chat server",
	Long: `Serve the chat page, its JSON API and WebSocket stream.

Each browser gets its own conversation, kept in memory and keyed by a cookie.
Sessions, runs and memories are persisted to SQLite.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment(), "provider", cfg.LLM.Provider, "model", cfg.LLM.Model)

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			slog.Error("Failed to close resources", "error", closeErr)
		}
	}()

	handler, cleanup := newRouter(a)
	defer cleanup()

	srv := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     handler,
		ReadTimeout: 30 * time.Second,
		// Model calls and WebSocket streams outlive any sensible write timeout.
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	startWorkers(ctx, a)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	slog.Info("Shutting down gracefully...")
	cleanup()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	slog.Info("Server stopped successfully")
	return nil
}

// startWorkers launches the background jobs that run until ctx is done.
func startWorkers(ctx context.Context, a *app) {
	store.StartRetentionWorker(ctx, a.repo, a.cfg.SessionRetention, store.DefaultRetentionInterval)
}

// newRouter builds the HTTP surface over a. The cleanup function closes live
// WebSocket streams and stops the rate limiters; it is safe to call twice.
func newRouter(a *app) (http.Handler, func()) {
	cfg := a.cfg

	registry := chat.NewRegistry(cfg.UISessions.Limit, cfg.UISessions.TTL)
	svc := chat.NewService(a.ctrl, registry)

	hub := stream.NewHub()
	apiHandler := api.NewHandler(svc, a.judge, a.repo, cfg, a.logger)
	apiHandler.SetPublisher(hub)

	wsLimiter := api.NewRateLimiter(cfg.RateLimit.RequestsPerWindow, cfg.RateLimit.Window)
	allowedOrigin := cfg.FrontendURL
	if allowedOrigin == "" {
		allowedOrigin = "*"
	}
	wsHandler := stream.NewHandler(svc, hub, wsLimiter, allowedOrigin, cfg.IsDevelopment())

	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.CORS(middleware.AllowedOrigins(cfg.FrontendURL)))
	r.Use(identity.Middleware(cfg.IsDevelopment()))

	apiHandler.RegisterRoutes(r)
	r.Get("/ws/chat", wsHandler.ServeHTTP)

	r.Handle("/*", web.Handler())

	var once sync.Once
	cleanup := func() {
		once.Do(func() {
			hub.CloseAll()
			apiHandler.Close()
			wsLimiter.Stop()
		})
	}
	return r, cleanup
}
