// Copyright (C) 2026 Loomdeck
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package upstream consumes the orchestrator's two outbound channels: the
// paginated REST log listing (pull) and the live WebSocket channel (push).
// Fetched records land in an in-memory cache keyed by record ID; live chunk
// messages are routed into the livelog stores and re-broadcast to the
// gateway's own WebSocket clients.
package upstream

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/loomdeck/loomdeck/internal/logger"
	"github.com/loomdeck/loomdeck/internal/protocol"
)

var (
	log     *zerolog.Logger
	logOnce sync.Once
)

func getLog() *zerolog.Logger {
	logOnce.Do(func() {
		l := logger.GetUpstreamLogger()
		log = &l
	})
	return log
}

// Broadcaster fans gateway events out to connected dashboard clients.
// Implemented by the server's client registry.
type Broadcaster interface {
	Broadcast(event protocol.Event)
}

// nopBroadcaster discards events; used when no registry is wired (dev tools).
type nopBroadcaster struct{}

func (nopBroadcaster) Broadcast(protocol.Event) {}

// NopBroadcaster returns a Broadcaster that discards every event.
func NopBroadcaster() Broadcaster {
	return nopBroadcaster{}
}
