// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package main is the entry point for the Design Drip editor service.
// It loads configuration, connects to services, wires the editor, and
// starts the HTTP server with graceful shutdown support.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"designdrip/internal/ai"
	"designdrip/internal/assets"
	"designdrip/internal/cache"
	"designdrip/internal/config"
	"designdrip/internal/database"
	"designdrip/internal/designs"
	"designdrip/internal/editor"
	"designdrip/internal/handlers"
	"designdrip/internal/imaging"
	"designdrip/internal/middleware"
	"designdrip/internal/router"
	"designdrip/internal/session"
	"designdrip/internal/storage"
	"designdrip/internal/store"
	"designdrip/web"
)

// Asset endpoints call paid services; each visitor gets this many calls
// per window.
const (
	assetRateLimit  = 20
	assetRateWindow = time.Minute
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	if !cfg.IsDev() {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
		slog.SetDefault(logger)
	}

	slog.Info("configuration loaded",
		"env", cfg.Env,
		"addr", cfg.Addr(),
		"clamp_mode", cfg.ClampMode,
	)

	// Database setup must finish within a minute.
	startup, cancelStartup := context.WithTimeout(context.Background(), time.Minute)
	defer cancelStartup()

	// Connect to PostgreSQL.
	db, err := database.Connect(startup, cfg.DSN())
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := database.Migrate(startup, db); err != nil {
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	// Seed the development catalog (no-op if data already exists).
	if cfg.IsDev() {
		if err := database.Seed(startup, db); err != nil {
			slog.Error("failed to seed database", "error", err)
			os.Exit(1)
		}
	}

	// Connect to Valkey (visitor identities, unsaved drafts, rate limits).
	valkeyClient, err := cache.ConnectValkey(cfg.ValkeyHost, cfg.ValkeyPort, cfg.ValkeyPassword)
	if err != nil {
		slog.Error("failed to connect to valkey", "error", err)
		os.Exit(1)
	}
	defer valkeyClient.Close()

	secureCookies := !cfg.IsDev()
	visitors := session.NewStore(valkeyClient, secureCookies)
	drafts := cache.NewDraftCache(valkeyClient, cache.DefaultDraftTTL)

	// Data stores.
	garmentStore := store.NewGarmentStore(db)
	designStore := store.NewDesignStore(db)
	templateStore := store.NewTemplateStore(db)
	assetStore := store.NewAssetStore(db)

	// S3-compatible object storage (optional; the editor works without
	// previews and asset uploads).
	storageClient, err := storage.New(
		cfg.S3Endpoint, cfg.S3Region, cfg.S3AccessKey, cfg.S3SecretKey,
		cfg.S3BucketPublic, cfg.S3PublicURL,
	)
	if err != nil {
		slog.Error("failed to initialize S3 storage", "error", err)
		os.Exit(1)
	}

	loader := imaging.NewSourceLoader(web.StaticFS, web.StaticPrefix)
	designCfg := designs.Config{
		Repository: designStore,
		Catalog:    garmentStore,
		Drafts:     drafts,
		Logger:     logger,
	}
	assetCfg := assets.Config{
		Records: assetStore,
		Loader:  loader,
		Logger:  logger,
	}
	imageSources := []string{web.StaticPrefix}
	if storageClient != nil {
		loader.Objects = storageClient
		designCfg.Renderer = imaging.NewRenderer(loader)
		designCfg.Uploader = storageClient
		assetCfg.Objects = storageClient
		imageSources = append(imageSources, storageClient.FileURL(""))
		slog.Info("s3 storage connected", "endpoint", cfg.S3Endpoint, "bucket", cfg.S3BucketPublic)
	} else {
		slog.Warn("s3 storage not configured; previews and asset uploads disabled")
	}

	// AI image generation with prompt moderation.
	aiRegistry := ai.NewRegistry(cfg.AIProvider, map[string]ai.ProviderConfig{
		"openai":  {APIKey: cfg.OpenAIKey, Model: cfg.OpenAIModel, BaseURL: cfg.OpenAIBaseURL},
		"gemini":  {APIKey: cfg.GeminiKey, Model: cfg.GeminiModel, BaseURL: cfg.GeminiBaseURL},
		"mistral": {APIKey: cfg.MistralKey, BaseURL: cfg.MistralBaseURL},
	})
	if aiRegistry.SupportsImageGeneration() {
		assetCfg.Generator = aiRegistry
	}
	slog.Info("ai providers initialized",
		"active", aiRegistry.ActiveName(),
		"available", aiRegistry.Available(),
	)

	if remover := assets.NewRemoveBGClient(cfg.BGRemoveKey, cfg.BGRemoveBaseURL); remover != nil {
		assetCfg.Remover = remover
	} else {
		slog.Warn("background removal not configured")
	}

	designService := designs.NewService(designCfg)
	sessions := editor.NewManager(designService, editor.Options{
		AutosaveQuiet: cfg.AutosaveQuiet,
		HistoryLimit:  cfg.HistoryLimit,
		ClampMode:     cfg.ClampMode,
	}, cfg.SessionIdle, logger)

	api := handlers.NewAPI(handlers.Deps{
		Sessions:     sessions,
		Catalog:      garmentStore,
		Templates:    templateStore,
		Designs:      designStore,
		Drafts:       drafts,
		Assets:       assets.NewService(assetCfg),
		OnDelete:     designService.Forget,
		ImageSources: imageSources,
	})

	limiter := middleware.NewRateLimiter(assetRateLimit, assetRateWindow, valkeyClient)
	defer limiter.Stop()

	r := router.New(visitors, api, limiter, secureCookies)

	// WriteTimeout must accommodate image generation and background
	// removal, which can take up to a minute.
	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("server starting", "addr", cfg.Addr())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown: wait for SIGINT or SIGTERM, drain connections,
	// then give every open editing session its final save.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	slog.Info("shutdown signal received", "signal", sig)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}
	sessions.Shutdown(ctx)

	slog.Info("server stopped gracefully")
}
