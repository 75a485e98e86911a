// Package main wires together the lead detection service binary.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"leadwatch/internal/api"
	"leadwatch/internal/app"
	"leadwatch/internal/clock/system"
	"leadwatch/internal/config"
	"leadwatch/internal/lead"
	"leadwatch/internal/logging"
	"leadwatch/internal/metrics"
	"leadwatch/internal/notify"
	"leadwatch/internal/pipeline"
	"leadwatch/internal/scheduler"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	// A local .env is optional; environment variables win either way.
	_ = godotenv.Load()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if syncErr := logger.Sync(); syncErr != nil {
			fmt.Fprintf(os.Stderr, "logger sync failed: %v\n", syncErr)
		}
	}()
	zap.ReplaceGlobals(logger)

	metrics.Init()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("startup failed", zap.Error(err))
		return
	}
	defer a.Close()

	clock := system.New()
	scrape := pipeline.NewScrapeRunner(
		a.Store,
		a.Connectors(),
		a.Publisher,
		clock,
		logging.Component(logger, "scrape"),
		cfg.Scrape.MaxPostsPerSource,
	)
	dispatcher := notify.NewDispatcher(
		notify.NewEmailChannel(notify.SMTPConfig{
			Host:     cfg.Notify.SMTPHost,
			Port:     cfg.Notify.SMTPPort,
			Username: cfg.Notify.SMTPUsername,
			Password: cfg.Notify.SMTPPassword,
			From:     cfg.Notify.EmailFrom,
		}),
		notify.NewSlackChannel(),
		logging.Component(logger, "notify"),
	)
	notifyRunner := pipeline.NewNotifyRunner(
		a.Store,
		dispatcher,
		cfg.DefaultNotificationSettings(),
		logging.Component(logger, "notify"),
	)

	sched := scheduler.New(clock, logging.Component(logger, "scheduler"))
	for _, st := range lead.SourceTypes {
		sourceType := st
		if err := sched.Register(
			fmt.Sprintf("%s-scrape", sourceType),
			cfg.ScrapeInterval(),
			func(ctx context.Context) error { return scrape.Run(ctx, sourceType) },
		); err != nil {
			logger.Error("register scrape job failed", zap.Error(err))
			return
		}
	}
	if err := sched.Register("notify", cfg.NotifyInterval(), notifyRunner.Run); err != nil {
		logger.Error("register notify job failed", zap.Error(err))
		return
	}
	sched.Start(ctx)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           api.NewServer(sched, cfg, logging.Component(logger, "api")).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server failed", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	if err := sched.Stop(shutdownCtx); err != nil {
		logger.Warn("scheduler shutdown", zap.Error(err))
	}
	logger.Info("shutdown complete")
}
