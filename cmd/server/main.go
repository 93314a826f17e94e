package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"pharmapos/internal/accounting"
	"pharmapos/internal/config"
	"pharmapos/internal/db"
	httpapi "pharmapos/internal/http"
	"pharmapos/internal/jobs"
	"pharmapos/internal/logging"
	"pharmapos/internal/metrics"
	"pharmapos/internal/repository"
	"pharmapos/internal/service"

	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		return err
	}
	defer pool.Close()

	if _, err := db.RunMigrations(ctx, pool, logger); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}

	chart, err := accounting.LoadChart(cfg.ChartOfAccounts)
	if err != nil {
		return err
	}

	registry := metrics.New()
	svc := service.New(repository.New(pool), service.Options{
		Logger:             logger,
		Chart:              chart,
		AllowNegativeStock: cfg.AllowNegativeStock,
		LowStockDefault:    cfg.LowStockDefault,
		Recorder:           registry,
	})
	if _, err := svc.SeedChart(ctx); err != nil {
		return fmt.Errorf("seed chart of accounts: %w", err)
	}

	integrity := jobs.NewIntegrityJob(svc, logger, registry)
	if cfg.IntegrityCheckCron != "" {
		runner, err := jobs.Schedule(cfg.IntegrityCheckCron, integrity, logger)
		if err != nil {
			return err
		}
		runner.Start()
		defer func() { <-runner.Stop().Done() }()
		logger.Info("integrity check scheduled", zap.String("cron", cfg.IntegrityCheckCron))
	}

	stopCleanup := make(chan struct{})
	defer close(stopCleanup)
	limiter := httpapi.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, logger)
	limiter.StartCleanup(10*time.Minute, stopCleanup)

	handler := httpapi.NewHandler(svc, httpapi.Options{
		Logger:          logger,
		StoreName:       cfg.StoreName,
		LowStockDefault: cfg.LowStockDefault,
		Integrity:       integrity,
	})
	router := httpapi.NewRouter(handler, httpapi.RouterOptions{
		Logger:      logger,
		Metrics:     registry,
		RateLimiter: limiter,
	})

	server := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("pharmapos listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-serveErr:
		return fmt.Errorf("listen: %w", err)
	case sig := <-stop:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
		if closeErr := server.Close(); closeErr != nil {
			logger.Error("force close failed", zap.Error(closeErr))
		}
	}
	return nil
}
