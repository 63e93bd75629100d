// Copyright (C) 2026 Loomdeck
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package server provides the gateway's REST + WebSocket API. REST handlers
// serve correlated timelines and live-log state; the WebSocket endpoint fans
// upstream chunk messages and fresh records out to dashboard clients.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/loomdeck/loomdeck/internal/config"
	"github.com/loomdeck/loomdeck/internal/livelog"
	"github.com/loomdeck/loomdeck/internal/logger"
	"github.com/loomdeck/loomdeck/internal/upstream"
)

var (
	log     *zerolog.Logger
	logOnce sync.Once
)

func getLog() *zerolog.Logger {
	logOnce.Do(func() {
		l := logger.GetAPILogger()
		log = &l
	})
	return log
}

// Server is the gateway's HTTP + WebSocket API server.
type Server struct {
	httpServer *http.Server
	registry   *ClientRegistry
}

// New creates and wires up the API server. It does NOT start listening —
// call Run() for that.
func New(
	cfg *config.ServerConfig,
	registry *ClientRegistry,
	cache *upstream.RecordCache,
	poller *upstream.Poller,
	chunks *livelog.ChunkStore,
	stages *livelog.StageStore,
) *Server {
	handlers := NewHandlers(cache, poller, chunks, stages)

	r := chi.NewRouter()

	// Global middleware
	r.Use(Recovery)
	r.Use(RequestID)
	r.Use(Logger)
	r.Use(CORS(cfg.AllowedOrigins))
	r.Use(MaxBodySize(1 << 20)) // 1 MB default

	// REST routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/tasks/{taskId}", func(r chi.Router) {
			r.Get("/timeline", handlers.GetTimeline)
			r.Get("/logs", handlers.GetTaskLogs)
			r.Delete("/logs", handlers.ClearTask)
		})

		r.Get("/stages/{stageId}/logs", handlers.GetStageLogs)

		r.Route("/logs/{logId}", func(r chi.Router) {
			r.Post("/watch", handlers.WatchLog)
			r.Delete("/watch", handlers.UnwatchLog)
			r.Get("/stream", handlers.GetStream)
		})
	})

	// WebSocket
	r.Get("/ws", HandleWebSocket(registry, cfg.AllowedOrigins))

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	return &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           r,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		registry: registry,
	}
}

// Run starts the HTTP server and blocks until it is shut down.
func (s *Server) Run() error {
	getLog().Info().Str("addr", s.httpServer.Addr).Msg("API server listening")
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
