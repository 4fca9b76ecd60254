package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/dhruv465/Project-Call-sub007/internal/api"
	"github.com/dhruv465/Project-Call-sub007/internal/carrier"
	"github.com/dhruv465/Project-Call-sub007/internal/config"
	"github.com/dhruv465/Project-Call-sub007/internal/database"
	"github.com/dhruv465/Project-Call-sub007/internal/dialog"
	"github.com/dhruv465/Project-Call-sub007/internal/emotion"
	"github.com/dhruv465/Project-Call-sub007/internal/metrics"
	"github.com/dhruv465/Project-Call-sub007/internal/script"
	"github.com/dhruv465/Project-Call-sub007/internal/session"
	"github.com/dhruv465/Project-Call-sub007/internal/synth"
)

const audioCacheTTL = 24 * time.Hour

func main() {
	// Optional .env for local development; real deployments use the
	// environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	// Configure structured logging.
	logger := slog.New(cfg.SlogHandler(os.Stdout))
	slog.SetDefault(logger)

	slog.Info("starting callengine",
		"http_port", cfg.HTTPPort,
		"carrier", cfg.CarrierProvider,
		"data_dir", cfg.DataDir,
	)

	// Open database and run migrations.
	db, err := database.Open(cfg.DataDir)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Application context for background goroutines.
	appCtx, appCancel := context.WithCancel(context.Background())
	defer appCancel()

	sessions := database.NewCallSessionRepository(db)
	turns := database.NewConversationTurnRepository(db)
	leads := database.NewLeadRepository(db)
	campaigns := database.NewCampaignRepository(db)
	assets := database.NewAudioAssetRepository(db)

	store := session.NewStore(sessions, turns, logger)

	// Synthesis pipeline: cache, sentence chunker, then providers in
	// fallback order.
	cache, err := synth.NewCache(assets, filepath.Join(cfg.DataDir, "audio"), audioCacheTTL)
	if err != nil {
		slog.Error("failed to create audio cache", "error", err)
		os.Exit(1)
	}
	go sweepAudioCache(appCtx, cache)

	chunker, err := synth.NewChunker(cfg.MaxChunkChars)
	if err != nil {
		slog.Error("failed to create chunker", "error", err)
		os.Exit(1)
	}
	var providers []synth.Provider
	if cfg.ElevenLabsAPIKey != "" {
		providers = append(providers, synth.NewElevenLabsProvider(cfg.ElevenLabsAPIKey, cfg.CollaboratorTimeout))
	}
	if cfg.OpenAIAPIKey != "" {
		providers = append(providers, synth.NewOpenAIProvider(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL))
	}
	orchestrator := synth.NewOrchestrator(providers, cache, chunker, cfg.CollaboratorTimeout, logger)

	// Script and emotion collaborators.
	var scripts script.Provider = script.NewStaticProvider()
	var scriptBreaker metrics.BreakerStateProvider
	if cfg.ScriptProvider == "openai" {
		p := script.NewOpenAIProvider(script.OpenAIConfig{
			APIKey:          cfg.OpenAIAPIKey,
			BaseURL:         cfg.OpenAIBaseURL,
			Timeout:         cfg.CollaboratorTimeout,
			BreakerFailures: cfg.BreakerFailures,
			BreakerCooldown: cfg.BreakerCooldown,
		}, logger)
		scripts = p
		scriptBreaker = p
	}
	emotions := emotion.NewClient(emotion.Config{
		BaseURL:         cfg.EmotionServiceURL,
		Timeout:         cfg.CollaboratorTimeout,
		BreakerFailures: cfg.BreakerFailures,
		BreakerCooldown: cfg.BreakerCooldown,
	}, logger)

	engine := dialog.NewEngine(store, leads, campaigns, scripts, emotions, orchestrator, dialog.Options{
		MinGatherConfidence: cfg.MinGatherConfidence,
		MaxGatherRetries:    cfg.MaxGatherRetries,
		MaxTurns:            cfg.MaxTurns,
		Voice:               cfg.ElevenLabsVoiceID,
	}, logger)

	secret, err := cfg.AudioTokenSecretBytes()
	if err != nil {
		slog.Error("failed to decode audio token secret", "error", err)
		os.Exit(1)
	}
	signer := api.NewAudioSigner(secret, cfg.AudioTokenTTL, cfg.PublicURL)
	renderer := dialog.NewRenderer(signer, cfg.WebhookURL("/webhooks/voice/gather"))

	var carrierClient carrier.Client
	if cfg.CarrierProvider == "twilio" {
		carrierClient = carrier.NewTwilioClient(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioFromNumber, logger)
	} else {
		carrierClient = carrier.NewMockClient(logger)
	}

	// Metrics registry with the engine collector.
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(metrics.NewCollector(
		sessions, sessions, sessions, cache,
		map[string]metrics.BreakerStateProvider{
			"emotion": emotions,
			"script":  scriptBreaker,
		},
		time.Now(),
	))

	handler := api.NewServer(api.Deps{
		Config:    cfg,
		Store:     store,
		Engine:    engine,
		Renderer:  renderer,
		Carrier:   carrierClient,
		Leads:     leads,
		Campaigns: campaigns,
		Cache:     cache,
		Signer:    signer,
		Registry:  registry,
		Logger:    logger,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine.
	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Wait for interrupt or server error.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		slog.Info("received shutdown signal", "signal", sig.String())
	case err := <-errCh:
		slog.Error("http server error", "error", err)
	}

	// Graceful shutdown with timeout.
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	slog.Info("shutting down server")
	appCancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("http server shutdown error", "error", err)
		os.Exit(1)
	}

	slog.Info("callengine stopped")
}

// sweepAudioCache evicts expired audio assets hourly.
func sweepAudioCache(ctx context.Context, cache *synth.Cache) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			removed, err := cache.Sweep(ctx)
			if err != nil {
				slog.Error("audio cache sweep failed", "error", err)
				continue
			}
			if removed > 0 {
				slog.Info("audio cache sweep", "removed", removed)
			}
		case <-ctx.Done():
			return
		}
	}
}
