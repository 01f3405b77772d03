package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/do"

	"schedbot/internal/config"
	"schedbot/internal/conversation"
	"schedbot/internal/intent"
	"schedbot/internal/logging"
	"schedbot/internal/orchestrator"
)

func main() {
	config.LoadDotEnv()

	cfg, err := config.LoadServerConfig()
	if err != nil {
		slog.Error("load config failed", "error", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.Log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	di := do.New()
	defer func() {
		if err := di.Shutdown(); err != nil {
			logger.Error("shutdown failed", "error", err)
		}
	}()
	do.ProvideValue(di, ctx)
	do.ProvideValue(di, cfg)
	do.ProvideValue(di, logger)
	register(di)

	registry, err := do.Invoke[*intent.Registry](di)
	if err != nil {
		logger.Error("load intent catalog failed", "path", cfg.CatalogPath, "error", err)
		os.Exit(1)
	}
	conversations, err := do.Invoke[*conversation.Service](di)
	if err != nil {
		logger.Error("init conversation service failed", "store", cfg.Store, "error", err)
		os.Exit(1)
	}

	if ev := do.MustInvoke[*events](di); ev.hub != nil {
		if err := ev.hub.Start(ctx, conversations); err != nil {
			logger.Error("start mqtt hub failed", "error", err)
			os.Exit(1)
		}
		logger.Info("mqtt event bridge enabled", "broker", cfg.MQTT.BrokerURL, "prefix", cfg.MQTT.TopicPrefix)
	}

	go conversations.RunPollExpiry(ctx, cfg.PollExpiryInterval, cfg.PollTTL)
	logger.Info("poll expiry worker enabled", "interval", cfg.PollExpiryInterval, "ttl", cfg.PollTTL)

	a := &api{
		decider:       do.MustInvoke[*orchestrator.Service](di),
		conversations: conversations,
		registry:      registry,
		catalogPath:   cfg.CatalogPath,
		logger:        logger,
	}
	if b := do.MustInvoke[*backend](di); b.decisions != nil {
		a.decisions = b.decisions
	}

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           a.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("schedbot server started", "addr", cfg.HTTPAddr, "store", cfg.Store)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		logger.Info("received shutdown signal")
	case <-ctx.Done():
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown failed", "error", err)
	}
}
