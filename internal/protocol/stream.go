// Copyright (C) 2026 Loomdeck
// SPDX-License-Identifier: AGPL-3.0-or-later

package protocol

import "time"

// StreamChunkMessage is one message from the upstream live channel: an
// incremental piece of streamed output for a log record still in progress.
// The channel carries no sequence numbers; chunk order is send order as
// delivered.
type StreamChunkMessage struct {
	TaskID     string `json:"task_id"`
	StageID    string `json:"stage_id,omitempty"`
	StageName  string `json:"stage_name,omitempty"`
	LogID      string `json:"log_id"`
	ToolCallID string `json:"tool_call_id,omitempty"`

	Chunk    string       `json:"chunk,omitempty"`
	Finished bool         `json:"finished,omitempty"`
	Status   RecordStatus `json:"status,omitempty"`

	// Timestamp is the envelope timestamp set by the upstream when the
	// chunk was emitted. It is only compared against subscription time;
	// it does not order chunks.
	Timestamp time.Time `json:"timestamp"`
}
