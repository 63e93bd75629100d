// Copyright (C) 2026 Loomdeck
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package common provides shared types used across multiple packages.
package common

// Metadata contains common fields for all messages the gateway pushes to
// connected dashboard clients.
type Metadata struct {
	// TaskID serves as the correlation ID for task-scoped messages.
	// Optional - only present for task-related events.
	TaskID string `json:"task_id,omitempty"`

	// IdempotencyKey is used for event deduplication when the upstream
	// channel redelivers after a reconnect.
	// Optional - events without this key will always be processed.
	IdempotencyKey string `json:"idempotency_key,omitempty"`

	// Version indicates the protocol version for backward compatibility.
	// Format: "v{major}.{minor}.{patch}" (e.g., "v1.0.0")
	Version string `json:"version"`
}

// CurrentProtocolVersion defines the current version of the protocol.
// This should be updated when making breaking changes to the protocol.
const CurrentProtocolVersion = "v1.0.0"

// Event represents messages that can be fanned out to dashboard clients.
// Any type implementing this interface can be sent through the event channel.
type Event interface {
	GetMetadata() Metadata
}
