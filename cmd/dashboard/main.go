package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	httpadapter "github.com/couchcryptid/crop-yield-dashboard/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/crop-yield-dashboard/internal/adapter/kafka"
	"github.com/couchcryptid/crop-yield-dashboard/internal/adapter/tabular"
	"github.com/couchcryptid/crop-yield-dashboard/internal/config"
	"github.com/couchcryptid/crop-yield-dashboard/internal/observability"
	"github.com/couchcryptid/crop-yield-dashboard/internal/pipeline"
	"github.com/couchcryptid/crop-yield-dashboard/internal/render"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	pages, err := render.NewHTML()
	if err != nil {
		logger.Error("failed to parse page template", "error", err)
		os.Exit(1)
	}

	// Report events are feature-flagged via REPORT_EVENTS_ENABLED.
	var (
		publisher pipeline.Publisher
		writer    *kafkaadapter.Publisher
	)
	if cfg.EventsEnabled {
		writer = kafkaadapter.NewPublisher(cfg, logger)
		publisher = writer
		metrics.EventsEnabled.Set(1)
		logger.Info("report events enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.ReportTopic)
	} else {
		logger.Info("report events disabled")
	}

	p := pipeline.New(tabular.NewLoader(logger), render.NewHeatmap(), publisher, logger, metrics, pipeline.Options{
		PreviewRows: cfg.PreviewRows,
		CacheSize:   cfg.ReportCacheSize,
	})

	srv := httpadapter.NewServer(cfg.HTTPAddr, p, pages, httpadapter.Options{
		MaxUploadBytes: cfg.MaxUploadBytes,
		DefaultPolicy:  cfg.InvalidRowPolicy,
	}, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()
	p.SetReady(true)

	<-ctx.Done()
	logger.Info("shutting down")
	p.SetReady(false)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
