// Copyright (C) 2026 Loomdeck
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/loomdeck/loomdeck/internal/config"
	"github.com/loomdeck/loomdeck/internal/livelog"
	"github.com/loomdeck/loomdeck/internal/logger"
	"github.com/loomdeck/loomdeck/internal/server"
	"github.com/loomdeck/loomdeck/internal/upstream"
)

func main() {
	cfg, err := config.NewConfig("config.yaml")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Initialize(&cfg.Log); err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.CloseGlobal()

	mainLog := logger.GetLogger("main")
	mainLog.Info().Msg("Starting loomdeck gateway")

	// This context drives the upstream consumers' lifetime.
	ctx, cancel := context.WithCancel(context.Background())

	registry := server.NewClientRegistry()
	chunks := livelog.NewChunkStore(cfg.Stream.MaxChunks)
	stages := livelog.NewStageStore(cfg.Stream.MaxStageEntries)
	cache := upstream.NewRecordCache()

	client := upstream.NewClient(cfg.Upstream.BaseURL, cfg.Upstream.PageSize)
	poller := upstream.NewPoller(client, cache, chunks, registry, cfg.Upstream.PollInterval)
	feed := upstream.NewLiveFeed(
		cfg.Upstream.WebSocketURL,
		chunks,
		stages,
		cache,
		registry,
		cfg.Upstream.ReconnectMinDelay,
		cfg.Upstream.ReconnectMaxDelay,
	)

	go func() {
		mainLog.Info().Str("url", cfg.Upstream.WebSocketURL).Msg("Starting live feed")
		feed.Run(ctx)
		mainLog.Info().Msg("Live feed stopped")
	}()

	go func() {
		poller.Run(ctx)
		mainLog.Info().Msg("Poller stopped")
	}()

	srv := server.New(&cfg.Server, registry, cache, poller, chunks, stages)

	serverErrChan := make(chan error, 1)
	go func() {
		serverErrChan <- srv.Run()
	}()

	// Wait for signal or server error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		mainLog.Info().Msgf("Received signal %v, shutting down...", sig)
	case err := <-serverErrChan:
		if err != nil {
			mainLog.Error().Err(err).Msg("Server error")
		}
	}

	// Graceful shutdown: fresh context with timeout, independent of the
	// upstream consumers' ctx.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		mainLog.Error().Err(err).Msg("Error shutting down server")
	}

	cancel()
	mainLog.Info().Msg("Gateway shut down")
}
