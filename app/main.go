package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/castradar/castradar/app/api"
	"github.com/castradar/castradar/app/cfg"
	"github.com/castradar/castradar/app/chat"
	"github.com/castradar/castradar/app/database"
	"github.com/castradar/castradar/app/extract"
	"github.com/castradar/castradar/app/fetch"
	"github.com/castradar/castradar/app/publish"
	"github.com/castradar/castradar/app/review"
	"github.com/castradar/castradar/app/sources"
	"github.com/castradar/castradar/app/tasks"
)

func main() {
	appCfg, err := cfg.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if appCfg == nil {
		// Help was shown, exit gracefully
		return
	}

	logLevel := slog.LevelInfo
	if appCfg.Debug {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	slog.Info("Starting CastRadar server", "version", appCfg.Version)

	// Database connection and migrations
	db, err := database.NewConnection(appCfg.DBPath)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	defer db.Close()

	version, dirty, err := database.RunMigrations(db)
	if err != nil {
		log.Fatal("Failed to run migrations:", err)
	}
	slog.Info("Database ready", "path", appCfg.DBPath, "migration_version", version, "dirty", dirty)

	// Repositories
	sourceRepo := database.NewSourceRepository(db)
	candidateRepo := database.NewCandidateRepository(db)
	deadLetterRepo := database.NewDeadLetterRepository(db)
	auditRepo := database.NewAuditRepository(db)

	// Register configured ingestion sources
	loader := sources.NewLoader(appCfg.SourcesDir)
	definitions, err := loader.LoadAll()
	if err != nil {
		log.Fatal("Failed to load source definitions:", err)
	}

	registeredCount := 0
	for _, definition := range definitions {
		id, err := sourceRepo.UpsertSource(definition.Name, definition.Type, definition.Identifier, definition.Enabled)
		if err != nil {
			slog.Warn("Failed to register source", "source", definition.Name, "error", err)
			continue
		}
		slog.Info("Registered source", "source", definition.Name, "type", definition.Type, "id", id, "enabled", definition.Enabled)
		registeredCount++
	}
	slog.Info("Source registration complete", "registered", registeredCount, "configured", len(definitions))

	// Core components
	httpClient := &http.Client{}
	fetcher := fetch.NewContentFetcher(httpClient, appCfg.UserAgent)
	extractor := extract.NewLLMClient(appCfg.ExtractionURL, appCfg.ExtractionAPIKey, appCfg.ExtractionModel, httpClient)

	var chatClient chat.Client
	if appCfg.ChatAPIURL != "" {
		chatClient = chat.NewHTTPClient(appCfg.ChatAPIURL, appCfg.ChatAPIKey, httpClient)
	} else {
		slog.Warn("Chat history API not configured, chat sources will not be polled")
	}

	searchIndex := publish.NewHTTPSearchIndex(appCfg.SearchIndexURL, appCfg.SearchIndexKey, appCfg.SearchIndexName, httpClient)
	publisher := publish.NewPublisher(searchIndex, auditRepo)
	reviewService := review.NewService(candidateRepo, publisher)

	// Background scheduler and worker pool
	scheduler := tasks.NewScheduler(sourceRepo, candidateRepo, deadLetterRepo, auditRepo, fetcher, chatClient, extractor)
	scheduler.Start()
	defer scheduler.Stop()
	slog.Info("Background scheduler started", "workers", appCfg.WorkerCount, "interval_seconds", appCfg.SchedulerInterval)

	// HTTP server
	apiHandler := api.NewHandler(sourceRepo, candidateRepo, deadLetterRepo, auditRepo, reviewService, scheduler,
		appCfg.WebhookSecret, time.Duration(appCfg.WebhookFreshnessHours)*time.Hour)
	server := api.NewServer(apiHandler, appCfg.APIAccessKey, appCfg.WebhookSecret)

	httpServer := &http.Server{
		Addr:         ":" + appCfg.Port,
		Handler:      server,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "port", appCfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	// Wait for interrupt signal or server error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		slog.Info("Received signal", "signal", sig.String())
	case err := <-serverErrChan:
		slog.Error("Server error", "error", err)
	}

	slog.Info("Shutting down gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	} else {
		slog.Info("HTTP server stopped")
	}

	// Scheduler is stopped via defer
	slog.Info("Shutdown complete")
}
