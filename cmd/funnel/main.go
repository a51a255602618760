package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/AbdelrhmanRafat/Funnel-Pages-sub000/internal/catalog"
	"github.com/AbdelrhmanRafat/Funnel-Pages-sub000/internal/checkout"
	"github.com/AbdelrhmanRafat/Funnel-Pages-sub000/internal/handlers"
	"github.com/AbdelrhmanRafat/Funnel-Pages-sub000/internal/i18n"
	"github.com/AbdelrhmanRafat/Funnel-Pages-sub000/internal/platform/config"
	"github.com/AbdelrhmanRafat/Funnel-Pages-sub000/internal/platform/observability"
	"github.com/AbdelrhmanRafat/Funnel-Pages-sub000/internal/session"
	"github.com/AbdelrhmanRafat/Funnel-Pages-sub000/internal/validation"
	"github.com/AbdelrhmanRafat/Funnel-Pages-sub000/locales"
)

var supportedLocales = []string{"en", "ar"}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	baseLogger, err := observability.NewLogger(observability.LoggerOptions{
		Level:       cfg.Log.Level,
		Development: cfg.Log.Development,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()
	logger := baseLogger.Named("funnel")

	app, err := newApp(cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialise service", zap.Error(err))
	}
	defer app.registry.Close()

	sweepCtx, cancelSweep := context.WithCancel(context.Background())
	defer cancelSweep()
	go app.registry.Run(sweepCtx, cfg.Session.SweepInterval)

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverLogger := logger.Named("http").With(zap.String("addr", app.server.Addr))
	go func() {
		serverLogger.Info("funnel service listening", zap.String("environment", cfg.Environment), zap.Bool("fake_checkout", app.orders.Fake()))
		if err := app.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-shutdown
	logger.Info("shutdown signal received; draining requests")
	cancelSweep()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := app.server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

type app struct {
	server   *http.Server
	registry *session.Registry
	orders   *checkout.Client
}

func newApp(cfg config.Config, logger *zap.Logger) (*app, error) {
	bundle, err := i18n.Load(localeFS(cfg.Locale.Dir, logger), cfg.Locale.Default, supportedLocales)
	if err != nil {
		return nil, err
	}

	cat, err := catalog.Load(cfg.Catalog.Path, logger.Named("catalog"))
	if err != nil {
		return nil, err
	}
	logger.Info("catalog loaded", zap.Int("products", len(cat.Slugs())), zap.String("path", cfg.Catalog.Path))

	hashKey, blockKey := []byte(cfg.Session.HashKey), []byte(cfg.Session.BlockKey)
	if len(hashKey) == 0 && cfg.IsLocal() {
		// sessions do not survive a restart in this case
		logger.Warn("session keys not configured; generating ephemeral keys")
		hashKey, blockKey = session.GenerateKey(32), session.GenerateKey(32)
	}
	manager, err := session.NewManager(session.Config{
		CookieName:   cfg.Session.CookieName,
		HashKey:      hashKey,
		BlockKey:     blockKey,
		CookieSecure: cfg.Session.Secure,
		IdleTimeout:  cfg.Session.IdleTTL,
	})
	if err != nil {
		return nil, err
	}

	registry := session.NewRegistry(session.RegistryConfig{
		IdleTTL:    cfg.Session.IdleTTL,
		MaxFunnels: cfg.Session.MaxFunnels,
		Logger:     logger,
	})
	orders := checkout.NewClient(cfg.Checkout.BaseURL, checkout.Options{
		Timeout:           cfg.Checkout.Timeout,
		IdempotencyHeader: cfg.Checkout.IdempotencyHeader,
		Logger:            logger,
	})

	products := handlers.NewProductHandlers(cat, registry)
	funnels := handlers.NewFunnelHandlers(registry, validation.New(bundle), bundle, orders, handlers.FunnelOptions{
		RequestTimeout:    cfg.Server.RequestTimeout,
		IdempotencyHeader: cfg.Checkout.IdempotencyHeader,
		EventBuffer:       cfg.Events.Buffer,
		KeepAlive:         cfg.Events.KeepAlive,
		Logger:            logger,
	})
	health := handlers.NewHealthHandlers(
		handlers.WithVersion(os.Getenv("FUNNEL_BUILD_VERSION")),
		handlers.WithCheck("catalog", func(context.Context) error {
			if len(cat.Slugs()) == 0 {
				return errors.New("catalog is empty")
			}
			return nil
		}),
	)

	httpLogger := logger.Named("http")
	router := handlers.NewRouter(
		handlers.WithMiddlewares(
			observability.InjectLoggerMiddleware(httpLogger),
			observability.RecoveryMiddleware(httpLogger),
			observability.RequestLoggerMiddleware(),
			handlers.SessionMiddleware(manager, bundle),
		),
		handlers.WithHealthHandlers(health),
		handlers.WithProductRoutes(products.Routes),
		handlers.WithFunnelRoutes(funnels.Routes),
	)

	server := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}
	return &app{server: server, registry: registry, orders: orders}, nil
}

// localeFS prefers translations on disk and falls back to the bundled files.
func localeFS(dir string, logger *zap.Logger) fs.FS {
	dir = strings.TrimSpace(dir)
	if dir != "" {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			return os.DirFS(dir)
		}
		logger.Debug("locale directory not found; using bundled translations", zap.String("dir", dir))
	}
	return locales.FS
}
