package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/openpantry/pantryscan/internal/auth"
	"github.com/openpantry/pantryscan/internal/barcode"
	"github.com/openpantry/pantryscan/internal/config"
	"github.com/openpantry/pantryscan/internal/events"
	"github.com/openpantry/pantryscan/internal/httpapi"
	"github.com/openpantry/pantryscan/internal/inventory"
	"github.com/openpantry/pantryscan/internal/logging"
	"github.com/openpantry/pantryscan/internal/product"
	"github.com/openpantry/pantryscan/internal/spool"
	"github.com/openpantry/pantryscan/internal/storage"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.LoadServer()
	logger := logging.New(cfg.LogLevel)

	if cfg.JWTSecret == "" {
		logger.Error("JWT_SECRET is required")
		os.Exit(1)
	}

	if err := os.MkdirAll(cfg.DBDir(), 0o755); err != nil {
		logger.Error("failed to create db directory", "err", err)
		os.Exit(1)
	}
	repo, err := storage.New(ctx, cfg.DBPath, logger)
	if err != nil {
		logger.Error("failed to initialize storage", "err", err)
		os.Exit(1)
	}
	defer repo.Close()

	var decoder barcode.Decoder
	if cfg.GeminiAPIKey != "" {
		gemini, err := barcode.NewGeminiDecoder(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, logger)
		if err != nil {
			logger.Error("failed to initialize gemini decoder", "err", err)
			os.Exit(1)
		}
		decoder = gemini
		logger.Info("barcode decoder ready", "backend", "gemini", "model", cfg.GeminiModel)
	} else {
		decoder = barcode.NewLocalDecoder(logger)
		logger.Info("barcode decoder ready", "backend", "local")
	}

	hub := events.NewHub(logger)
	defer hub.Close()

	products := product.NewClient(cfg.ProductBaseURL, cfg.ProductAPIKey)
	inv := inventory.New(repo, products, hub, logger)
	tokens := auth.NewTokens(cfg.JWTSecret, cfg.TokenTTL)

	if cfg.SpoolDir != "" {
		if err := os.MkdirAll(cfg.SpoolDir, 0o755); err != nil {
			logger.Error("failed to create spool directory", "err", err)
			os.Exit(1)
		}
		spoolWatcher := spool.NewWatcher(cfg.SpoolDir, decoder, repo, logger)
		go func() {
			if err := spoolWatcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("spool watcher stopped", "err", err)
			}
		}()
		logger.Info("scan spool enabled", "dir", cfg.SpoolDir)
	}

	api := httpapi.New(inv, repo, decoder, tokens, hub, logger)
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	logger.Info("server starting", "addr", httpServer.Addr)
	if err := httpapi.RunServer(ctx, httpServer, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("server terminated with error", "err", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}
