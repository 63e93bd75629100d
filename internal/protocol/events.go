// Copyright (C) 2026 Loomdeck
// SPDX-License-Identifier: AGPL-3.0-or-later

// Here lies the definition of the data the gateway can push to dashboard
// clients over its own WebSocket. All data a client can receive from the
// gateway is named: Event. Events originate from the upstream live channel
// (chunk messages, stage records) or from REST poll results (record batches).
package protocol

// StreamChunkEvent fans a live chunk message out to dashboard clients.
type StreamChunkEvent struct {
	Metadata
	Message StreamChunkMessage `json:"message"`
}

func (e StreamChunkEvent) GetMetadata() Metadata {
	return e.Metadata
}

// GetTaskID implements taskScoped for subscription filtering.
func (e StreamChunkEvent) GetTaskID() string {
	return e.Message.TaskID
}

// GetStageID implements stageScoped for subscription filtering.
func (e StreamChunkEvent) GetStageID() string {
	return e.Message.StageID
}

// GetLogID implements logScoped for subscription filtering.
func (e StreamChunkEvent) GetLogID() string {
	return e.Message.LogID
}

// RecordBatchEvent is sent when new log records have been observed for a
// task, so clients can re-derive their timelines without re-fetching.
type RecordBatchEvent struct {
	Metadata
	TaskID  string       `json:"task_id"`
	Records []*LogRecord `json:"records"`
}

func (e RecordBatchEvent) GetMetadata() Metadata {
	return e.Metadata
}

func (e RecordBatchEvent) GetTaskID() string {
	return e.TaskID
}

// StageLogEvent is sent when a discrete execution-step record lands in a
// stage's live log.
type StageLogEvent struct {
	Metadata
	StageID string     `json:"stage_id"`
	Record  *LogRecord `json:"record"`
}

func (e StageLogEvent) GetMetadata() Metadata {
	return e.Metadata
}

func (e StageLogEvent) GetStageID() string {
	return e.StageID
}

// ErrorEvent reports a gateway-side failure to interested clients.
type ErrorEvent struct {
	Metadata
	Message string `json:"message"`
	Context string `json:"context,omitempty"`
	TaskID  string `json:"task_id,omitempty"` // Optional - identifies which task the error is related to
}

func (e ErrorEvent) GetMetadata() Metadata {
	return e.Metadata
}

func (e ErrorEvent) GetTaskID() string {
	return e.TaskID
}

// GetIdempotencyKey extracts the idempotency key from any event.
func GetIdempotencyKey(event Event) string {
	return event.GetMetadata().IdempotencyKey
}
