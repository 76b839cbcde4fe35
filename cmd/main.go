// cmd/main.go is the application entry point.
// It wires together all layers and starts the HTTP server.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"eventhub-gateway/internal/broker"
	"eventhub-gateway/internal/config"
	"eventhub-gateway/internal/database"
	"eventhub-gateway/internal/handler"
	"eventhub-gateway/internal/mapview"
	"eventhub-gateway/internal/push"
	"eventhub-gateway/internal/relay"
	"eventhub-gateway/internal/repository"
	"eventhub-gateway/internal/theme"
	"eventhub-gateway/internal/upstream"
	"eventhub-gateway/internal/worker"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── 1. Configuration and logging ──────────────────────────────────────
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found, using environment")
	}
	cfg := config.Load()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	// ── 2. Connect to PostgreSQL and Redis ────────────────────────────────
	pool, err := database.NewPool(ctx)
	if err != nil {
		logger.Error("database connection failed", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	logger.Info("connected to PostgreSQL")

	brokerClient, err := broker.NewClient(ctx, cfg.RedisURL, logger)
	if err != nil {
		logger.Error("redis connection failed", "error", err)
		os.Exit(1)
	}
	defer brokerClient.Close()
	logger.Info("connected to Redis")

	// ── 3. Upstream client ───────────────────────────────────────────────
	client, err := upstream.New(cfg.UpstreamURL, cfg.CSRFToken)
	if err != nil {
		logger.Error("invalid upstream URL", "error", err)
		os.Exit(1)
	}

	// ── 4. Theme manager with cross-instance broadcast ────────────────────
	themeStore := theme.NewFileStore(cfg.ThemeFile)
	themes := theme.NewManager(themeStore, theme.Light, brokerClient, logger)
	go brokerClient.SubscribeThemeChanges(ctx, themes)

	// ── 5. Push subscriptions mirrored upstream, copied to PostgreSQL ─────
	subRepo := repository.NewSubscriptionRepository(pool)
	pushService := push.NewEndpointService(cfg.UpstreamURL + "/push")
	pushes := push.NewManager(
		pushService,
		push.StaticPermission(push.PermissionGranted),
		client,
		subRepo,
		cfg.VAPIDPublicKey,
		logger,
	)
	if err := pushes.Register(ctx); err != nil {
		logger.Warn("push registration failed", "error", err)
	}

	// ── 6. Asset cache and background sync queue on Redis ─────────────────
	cache := worker.NewCache(worker.CacheName, worker.NewRedisCacheStore(brokerClient.Redis()), logger)
	fetcher, err := worker.NewOriginFetcher(cfg.StaticOrigin)
	if err != nil {
		logger.Error("invalid static origin", "error", err)
		os.Exit(1)
	}
	if err := cache.Install(ctx, fetcher, worker.StaticAssets); err != nil {
		logger.Warn("asset cache install failed, serving uncached", "error", err)
	}

	deadRepo := repository.NewDeadLetterRepository(pool)
	syncer := worker.NewSyncer(worker.NewRedisQueue(brokerClient.Redis()), deadRepo, logger)
	go syncer.Run(ctx, time.Duration(cfg.SyncInterval)*time.Second)

	// ── 7. Relay hub for worker and theme messages ────────────────────────
	hub := relay.NewHub(logger)
	go hub.Run()
	themes.Subscribe(func(t theme.Theme) {
		if err := hub.Publish(broker.TypeThemeChanged, map[string]string{"theme": string(t)}); err != nil {
			logger.Warn("theme relay failed", "error", err)
		}
	})

	// ── 8. Build the router ───────────────────────────────────────────────
	maps := mapview.NewRegistry(logger)
	gw := handler.NewGateway(maps, client, cfg.UpstreamURL, themes, pushes, syncer, hub, logger)

	r := chi.NewRouter()

	// Global middleware stack
	r.Use(chimiddleware.Recoverer) // recover from panics, return 500
	r.Use(chimiddleware.RequestID) // attach request IDs
	r.Use(chimiddleware.RealIP)    // trust X-Forwarded-For
	r.Use(handler.Logger)          // structured access log
	r.Use(handler.CORS)            // permissive CORS for browser pages

	// Health
	r.Get("/health", handler.HealthCheck)

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Route("/map", func(r chi.Router) {
			r.Get("/markers", gw.MapMarkers)
			r.Get("/markers/{id}/balloon", gw.MapBalloon)
			r.Post("/markers/{id}/click", gw.MapMarkerClick)
			r.Post("/markers/{id}/highlight", gw.MapHighlight)
			r.Delete("/markers/{id}/highlight", gw.MapHighlight)
			r.Get("/heatmap", gw.MapHeatmap)
			r.Get("/clusters", gw.MapClusters)
			r.Get("/stats", gw.MapStats)
			r.Post("/reload", gw.MapReload)
			r.Post("/locate", gw.MapLocate)
			r.Delete("/", gw.MapDestroy)
		})
		r.Route("/calendar", func(r chi.Router) {
			r.Get("/events", gw.CalendarEvents)
			r.Get("/feed.ics", gw.CalendarFeed)
		})
		r.Route("/theme", func(r chi.Router) {
			r.Get("/", gw.GetTheme)
			r.Post("/", gw.SetTheme)
			r.Post("/toggle", gw.ToggleTheme)
		})
		r.Route("/push", func(r chi.Router) {
			r.Get("/status", gw.PushStatus)
			r.Post("/subscribe", gw.PushSubscribe)
			r.Post("/unsubscribe", gw.PushUnsubscribe)
		})
		r.Route("/events/{id}", func(r chi.Router) {
			r.Post("/view", gw.TrackView)
			r.Post("/click", gw.TrackClick)
			r.Post("/favorite", gw.ToggleFavorite)
		})
		r.Route("/admin", func(r chi.Router) {
			admin := handler.NewAdmin(subRepo, deadRepo)
			r.Get("/subscriptions", admin.Subscriptions)
			r.Get("/dead-letters", admin.DeadLetters)
		})
	})

	// Worker relay socket
	r.Get("/ws", gw.ServeWS)

	// Static assets – cache-first with pass-through to the origin.
	origin, err := url.Parse(cfg.StaticOrigin)
	if err != nil {
		logger.Error("invalid static origin", "error", err)
		os.Exit(1)
	}
	proxy := httputil.NewSingleHostReverseProxy(origin)
	r.Handle("/*", cache.Handler(proxy))

	// ── 9. Start server with graceful shutdown ────────────────────────────
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Run in background goroutine so we can listen for shutdown signal.
	go func() {
		logger.Info("server listening", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
