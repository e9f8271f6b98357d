package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"LeadFlow/internal/api"
	"LeadFlow/internal/campaign"
	"LeadFlow/internal/config"
	"LeadFlow/internal/db"
	"LeadFlow/internal/email"
	"LeadFlow/internal/extractor"
	"LeadFlow/internal/generator"
	"LeadFlow/internal/metrics"
	"LeadFlow/internal/places"
	"LeadFlow/internal/progress"
	"LeadFlow/internal/sender"
)

func main() {

	// ------------------------------------------------
	// Logger
	// ------------------------------------------------
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	// ------------------------------------------------
	// Config
	// ------------------------------------------------
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	// ------------------------------------------------
	// Root Context + Shutdown
	// ------------------------------------------------
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		logger.Info("shutdown signal received", zap.String("signal", sig.String()))
		cancel()
	}()

	// ------------------------------------------------
	// Database
	// ------------------------------------------------
	store, err := db.New(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("database connection failed", zap.Error(err))
	}
	defer store.Close()

	// ------------------------------------------------
	// Metrics
	// ------------------------------------------------
	metrics.Init()

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())

	metricsServer := &http.Server{
		Addr:    ":" + cfg.MetricsPort,
		Handler: metricsMux,
	}

	go func() {
		logger.Info("metrics server started", zap.String("port", cfg.MetricsPort))
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("metrics server error", zap.Error(err))
		}
	}()

	// ------------------------------------------------
	// Place Search
	// ------------------------------------------------
	placesClient, err := places.New(places.Config{
		APIKey:       cfg.PlacesAPIKey,
		BaseURL:      cfg.PlacesBaseURL,
		LanguageCode: cfg.PlacesLanguage,
		RegionCode:   cfg.PlacesRegion,
	}, logger.Named("places"))
	if err != nil {
		logger.Fatal("place search client", zap.Error(err))
	}

	// ------------------------------------------------
	// Browser + Email Extractor
	// ------------------------------------------------
	browser, err := extractor.NewChrome(ctx, extractor.ChromeConfig{
		Headless: cfg.BrowserHeadless,
		ExecPath: cfg.ChromePath,
	})
	if err != nil {
		logger.Fatal("browser start failed", zap.Error(err))
	}
	defer browser.Close()

	finder := extractor.New(browser, extractor.Options{
		PageTimeout: cfg.BrowserPageTimeout,
		LeadDelay:   cfg.ExtractLeadDelay,
	}, logger.Named("extractor"))

	// ------------------------------------------------
	// Content Generator (optional)
	// ------------------------------------------------
	var contentGen campaign.ContentGenerator
	gemini, err := generator.New(ctx, generator.Config{
		APIKey: cfg.GeminiAPIKey,
		Model:  cfg.GeminiModel,
	}, logger.Named("generator"))
	switch {
	case errors.Is(err, generator.ErrMissingAPIKey):
		logger.Warn("GEMINI_API_KEY not set, content generation disabled")
	case err != nil:
		logger.Fatal("generator init failed", zap.Error(err))
	default:
		contentGen = gemini
	}

	// ------------------------------------------------
	// Email Sender
	// ------------------------------------------------
	mailer := email.NewSender(
		cfg.SMTPHost,
		cfg.SMTPPort,
		cfg.SMTPUser,
		cfg.SMTPPassword,
		cfg.SMTPFrom,
		cfg.RetryAttempts,
	)

	// ------------------------------------------------
	// Pipeline
	// ------------------------------------------------
	hub := progress.NewHub()
	runs := campaign.NewRuns()

	orchestrator := campaign.New(store, placesClient, finder, contentGen, hub, logger.Named("campaign"))
	bulk := sender.New(store, mailer, hub, logger.Named("sender"))

	// ------------------------------------------------
	// HTTP API Server
	// ------------------------------------------------
	apiHandler := &api.Handler{
		Store:    store,
		Pipeline: orchestrator,
		Sender:   bulk,
		Runs:     runs,
		Hub:      hub,
		Log:      logger.Named("api"),
		SendDefaults: sender.Config{
			DelaySeconds: cfg.SendDelaySeconds,
			DailyLimit:   cfg.SendDailyLimit,
		},
		CORSOrigins: cfg.CORSOrigins,
	}

	apiServer := &http.Server{
		Addr:              ":" + cfg.APIPort,
		Handler:           apiHandler.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("api server started", zap.String("port", cfg.APIPort))
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("api server error", zap.Error(err))
		}
	}()

	// ------------------------------------------------
	// Wait for shutdown
	// ------------------------------------------------
	<-ctx.Done()

	logger.Info("shutting down services...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("api shutdown failed", zap.Error(err))
	}

	// Abort running campaigns; sends in flight finish and statuses are written back
	if err := runs.Shutdown(shutdownCtx); err != nil {
		logger.Error("campaign runs did not stop in time", zap.Error(err))
	}

	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics shutdown failed", zap.Error(err))
	}

	logger.Info("application shutdown complete")
}
