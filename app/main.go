package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/lysyi3m/newsdigest/app/api"
	"github.com/lysyi3m/newsdigest/app/cfg"
	"github.com/lysyi3m/newsdigest/app/database"
	"github.com/lysyi3m/newsdigest/app/delivery"
	"github.com/lysyi3m/newsdigest/app/digest"
	"github.com/lysyi3m/newsdigest/app/fetch"
	"github.com/lysyi3m/newsdigest/app/scheduler"
	"github.com/lysyi3m/newsdigest/app/sources"
	"github.com/lysyi3m/newsdigest/app/summarize"
)

func main() {
	// Optional .env file for local development
	_ = godotenv.Load()

	c, err := cfg.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	if c == nil {
		// Help was shown, exit gracefully
		return
	}

	logLevel := slog.LevelInfo
	if c.Debug {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})))

	slog.Info("Starting News Digest", "version", c.Version)

	db, err := database.NewConnection(c.DBPath)
	if err != nil {
		slog.Error("Failed to open database", "path", c.DBPath, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	version, dirty, err := database.RunMigrations(db)
	if err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}
	slog.Info("Database ready", "schema_version", version, "dirty", dirty)

	sourcesCache := sources.NewCache(c.SourcesDir)
	if err := sourcesCache.Run(); err != nil {
		slog.Error("Failed to load source configurations", "dir", c.SourcesDir, "error", err)
		os.Exit(1)
	}
	slog.Info("Source configurations loaded", "count", sourcesCache.GetConfigCount(),
		"enabled", len(sourcesCache.GetEnabledConfigs()))

	itemRepo := database.NewItemRepository(db)
	cycleRepo := database.NewCycleRepository(db)
	digestRepo := database.NewDigestRepository(db)

	// A crash mid-cycle leaves a running row that would block StartCycle
	// forever; finalize any such leftovers before the scheduler starts.
	recovered, err := cycleRepo.RecoverStaleCycles()
	if err != nil {
		slog.Error("Failed to recover interrupted cycles", "error", err)
		os.Exit(1)
	}
	if recovered > 0 {
		slog.Warn("Recovered interrupted cycles from a previous run", "count", recovered)
	}

	httpClient := &http.Client{
		Timeout: time.Duration(c.FetchTimeout) * time.Second,
	}

	lookback := time.Duration(c.LookbackHours) * time.Hour
	adapterFactory := func(src *sources.Config) (fetch.Adapter, error) {
		return fetch.NewAdapter(src, httpClient, c.UserAgent, lookback)
	}

	orchestrator := scheduler.NewOrchestrator(itemRepo, adapterFactory,
		c.WorkerCount, c.MaxFetchRetries, time.Duration(c.FetchTimeout)*time.Second, nil)

	var summarizer digest.Summarizer
	if c.CohereAPIKey != "" {
		summarizer = summarize.NewCohereSummarizer(c.CohereAPIKey, c.CohereModel, httpClient)
		slog.Info("Summarization enabled", "model", c.CohereModel)
	} else {
		slog.Info("Summarization disabled (COHERE_API_KEY not set), using raw excerpts")
	}
	assembler := digest.NewAssembler(summarizer)

	sender := delivery.NewSMTPSender()
	dispatcher := delivery.NewDispatcher(sender, digestRepo, c.Recipients, c.MaxDeliveryRetries, time.Duration(c.DeliveryTimeout)*time.Second, nil)

	digestScheduler := scheduler.NewScheduler(sourcesCache, cycleRepo, digestRepo,
		orchestrator, assembler, dispatcher)
	digestScheduler.Start()
	defer digestScheduler.Stop()
	slog.Info("Scheduler started", "interval", fmt.Sprintf("%ds", c.ScheduleInterval), "workers", c.WorkerCount)

	apiHandler := api.NewHandler(sourcesCache, itemRepo, cycleRepo, digestRepo, dispatcher)
	server := api.NewServer(apiHandler, c.APIAccessKey)

	httpServer := &http.Server{
		Addr:         ":" + c.Port,
		Handler:      server,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "port", c.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		slog.Info("Received shutdown signal", "signal", sig.String())
	case err := <-serverErrChan:
		slog.Error("Server error", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	// Scheduler is stopped via defer
	slog.Info("Shutdown complete")
}
