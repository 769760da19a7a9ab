package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/Simplici0/pipe.works/internal/config"
	"github.com/Simplici0/pipe.works/internal/customvars"
	"github.com/Simplici0/pipe.works/internal/db"
	"github.com/Simplici0/pipe.works/internal/kvstore"
	"github.com/Simplici0/pipe.works/internal/migrations"
	"github.com/Simplici0/pipe.works/internal/observability"
	"github.com/Simplici0/pipe.works/internal/pricing"
	"github.com/Simplici0/pipe.works/internal/quote"
	"github.com/Simplici0/pipe.works/internal/settings"
)

const shutdownTimeout = 5 * time.Second

func main() {
	cfg := config.Load()

	logger, err := observability.NewLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	for _, warning := range cfg.Warnings() {
		logger.Warn(warning)
	}

	traceShutdown, err := observability.InitTracing(ctx, cfg.OTLPEndpoint)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() { _ = traceShutdown(context.Background()) }()

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer database.Close()

	if err := migrations.Up(database, observability.NewPrintfAdapter(logger.Named("migrations"))); err != nil {
		return fmt.Errorf("run database migrations: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	srv, err := newServer(ctx, cfg, logger, kvstore.NewSQLite(database), registry)
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", httpServer.Addr), zap.String("env", cfg.AppEnv))
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// newServer wires the stores, the pricing engine and the quote log over store.
func newServer(ctx context.Context, cfg config.Config, logger *zap.Logger, store kvstore.Store, reg *prometheus.Registry) (*server, error) {
	coefficients := settings.NewCoefficientStore(store, logger)
	formulas := settings.NewFormulaStore(store, logger)
	variables := customvars.Open(ctx, store, customvars.WithLogger(logger))

	metrics, err := pricing.NewMetrics(reg)
	if err != nil {
		return nil, err
	}

	engine, err := pricing.NewEngine(pricing.EngineDeps{
		Coefficients: coefficients,
		Formulas:     formulas,
		Variables:    variables,
		Logger:       logger,
		Metrics:      metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("build pricing engine: %w", err)
	}

	history, err := quote.NewHistory(quote.HistoryDeps{Store: store, Logger: logger})
	if err != nil {
		return nil, fmt.Errorf("build quote history: %w", err)
	}

	auth, err := newAuthService(cfg.AccessPassword, cfg.SessionSecret)
	if err != nil {
		return nil, err
	}

	return &server{
		auth:         auth,
		coefficients: coefficients,
		formulas:     formulas,
		variables:    variables,
		engine:       engine,
		history:      history,
		logger:       logger,
		metrics:      promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	}, nil
}
