// Copyright (C) 2026 Loomdeck
// SPDX-License-Identifier: AGPL-3.0-or-later

package logger

import (
	"github.com/rs/zerolog"
)

// Static logger getters that map directly to config.yaml log.levels
// These ensure consistent logger names across the codebase

// GetTimelineLogger returns a logger for turn correlation
func GetTimelineLogger() zerolog.Logger {
	return GetLogger("timeline")
}

// GetLivelogLogger returns a logger for the live-log stores
func GetLivelogLogger() zerolog.Logger {
	return GetLogger("livelog")
}

// GetUpstreamLogger returns a logger for the orchestrator client
func GetUpstreamLogger() zerolog.Logger {
	return GetLogger("upstream")
}

// GetAPILogger returns a logger for API operations
func GetAPILogger() zerolog.Logger {
	return GetLogger("api")
}

// GetTUILogger returns a logger for TUI components
func GetTUILogger() zerolog.Logger {
	return GetLogger("tui")
}
