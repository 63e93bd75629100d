// Copyright (C) 2026 Loomdeck
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package protocol defines the data the upstream orchestrator exposes to the
// dashboard gateway (log records over REST, chunk messages over the live
// channel) and the events the gateway fans out to connected browser clients.
package protocol

import (
	"encoding/json"
	"time"
)

// RecordType classifies a log record as one step of agent/tool/LLM interaction.
type RecordType string

const (
	// ReAct turn records
	RecordPromptSent   RecordType = "prompt_sent"   // prompt delivered to the agent
	RecordTurnSent     RecordType = "turn_sent"     // LLM request started
	RecordTurnReceived RecordType = "turn_received" // resolved LLM response

	// Fallback chat records emitted by older orchestrator versions
	RecordChatSent     RecordType = "chat_sent"
	RecordChatReceived RecordType = "chat_received"

	// Tool records
	RecordToolCallExecuted RecordType = "tool_call_executed"

	// Stage lifecycle records (plain execution log, outside the ReAct view)
	RecordStageStarted  RecordType = "stage_started"
	RecordStageOutput   RecordType = "stage_output"
	RecordStageFinished RecordType = "stage_finished"
)

// RecordStatus is the lifecycle of the unit of work a record reports on.
type RecordStatus string

const (
	StatusSent      RecordStatus = "sent"
	StatusRunning   RecordStatus = "running"
	StatusSuccess   RecordStatus = "success"
	StatusFailed    RecordStatus = "failed"
	StatusCancelled RecordStatus = "cancelled"
)

// Terminal reports whether the status means the unit of work is done.
func (s RecordStatus) Terminal() bool {
	return s == StatusSuccess || s == StatusFailed || s == StatusCancelled
}

// LogRecord is one immutable log entry from the upstream orchestrator.
// The gateway only reads it; EventSeq is the single authoritative sort key
// (creation timestamps are not trusted for ordering).
type LogRecord struct {
	ID            string       `json:"id"`
	CorrelationID string       `json:"correlation_id,omitempty"`
	EventSeq      int64        `json:"event_seq"`
	EventType     RecordType   `json:"event_type"`
	Status        RecordStatus `json:"status,omitempty"`

	TaskID    string `json:"task_id,omitempty"`
	StageID   string `json:"stage_id,omitempty"`
	StageName string `json:"stage_name,omitempty"`

	// Payload
	Content     RecordContent `json:"content,omitempty"`
	Command     string        `json:"command,omitempty"`
	CommandArgs []string      `json:"command_args,omitempty"`
	Result      string        `json:"result,omitempty"`
	DurationMS  int64         `json:"duration_ms,omitempty"`

	CreatedAt time.Time `json:"created_at,omitempty"`
}

// GroupKey returns the key that groups records into one turn: the
// correlation ID when present, otherwise the record's own ID.
func (r *LogRecord) GroupKey() string {
	if r.CorrelationID != "" {
		return r.CorrelationID
	}
	return r.ID
}

// ContentBlock is one item of a structured record body. The upstream emits
// heterogeneous items: objects carrying a "text" field, objects carrying a
// "content" field, or bare strings.
type ContentBlock struct {
	Type    string `json:"type,omitempty"`
	Text    string `json:"text,omitempty"`
	Content string `json:"content,omitempty"`
}

// Flatten returns the displayable text of the block, preferring Text over
// Content.
func (b ContentBlock) Flatten() string {
	if b.Text != "" {
		return b.Text
	}
	return b.Content
}

// RecordContent is the free-form body of a log record. On the wire it is
// either a plain string or a list of content blocks; it decodes defensively
// into exactly one of the two variants. Malformed payloads degrade to an
// empty value rather than failing the whole record.
type RecordContent struct {
	Text   string
	Blocks []ContentBlock
	IsList bool
}

// UnmarshalJSON decodes the string-or-list variant.
func (c *RecordContent) UnmarshalJSON(data []byte) error {
	*c = RecordContent{}

	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		c.Text = s
		return nil
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		// Unknown shape: leave the content empty.
		return nil
	}

	c.IsList = true
	c.Blocks = make([]ContentBlock, 0, len(raw))
	for _, item := range raw {
		var str string
		if err := json.Unmarshal(item, &str); err == nil {
			c.Blocks = append(c.Blocks, ContentBlock{Text: str})
			continue
		}
		var block ContentBlock
		if err := json.Unmarshal(item, &block); err == nil {
			c.Blocks = append(c.Blocks, block)
		}
		// items of any other shape contribute nothing
	}
	return nil
}

// MarshalJSON re-encodes the variant in its original shape.
func (c RecordContent) MarshalJSON() ([]byte, error) {
	if c.IsList {
		return json.Marshal(c.Blocks)
	}
	return json.Marshal(c.Text)
}

// Empty reports whether the content carries no data at all.
func (c RecordContent) Empty() bool {
	return !c.IsList && c.Text == ""
}
