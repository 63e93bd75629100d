// Copyright (C) 2026 Loomdeck
// SPDX-License-Identifier: AGPL-3.0-or-later

package timeline

import (
	"strings"

	"github.com/loomdeck/loomdeck/internal/protocol"
)

// EntryKind classifies one display entry of the rendered timeline.
type EntryKind string

const (
	EntryPrompt      EntryKind = "prompt"
	EntryThought     EntryKind = "thought"
	EntryToolCall    EntryKind = "tool_call"
	EntryObservation EntryKind = "observation"
)

// Entry is one display-ready element of the timeline. This is the data
// contract the dashboard consumes; no layout concerns live here.
type Entry struct {
	Kind       EntryKind `json:"kind"`
	TurnNumber int       `json:"turn_number"`
	TurnID     string    `json:"turn_id"`

	Text        string                `json:"text,omitempty"`
	Command     string                `json:"command,omitempty"`
	CommandArgs []string              `json:"command_args,omitempty"`
	Result      string                `json:"result,omitempty"`
	Status      protocol.RecordStatus `json:"status,omitempty"`
	DurationMS  int64                 `json:"duration_ms,omitempty"`

	// Streaming marks a thought entry synthesized from the live buffer
	// because the turn's terminal response has not arrived yet.
	Streaming bool `json:"streaming,omitempty"`
}

// LiveFunc looks up the live stream buffer for a log ID. It returns the
// buffered chunks in receipt order, the last-known status, and whether a
// buffer exists.
type LiveFunc func(logID string) (chunks []string, status protocol.RecordStatus, ok bool)

// BuildEntries flattens correlated turns into the display sequence
// prompt / thought / tool-call / observation per turn. Live buffer content
// is merged into the thought slot only while the turn has no resolved
// response; once a turn_received record exists the ephemeral stream text is
// superseded.
func BuildEntries(turns []*Turn, live LiveFunc) []Entry {
	var entries []Entry

	for _, turn := range turns {
		if turn.Prompt != nil {
			entries = append(entries, Entry{
				Kind:       EntryPrompt,
				TurnNumber: turn.Number,
				TurnID:     turn.ID,
				Text:       ExtractText(turn.Prompt.Content),
				Status:     turn.Prompt.Status,
			})
		}

		if thought, ok := thoughtEntry(turn, live); ok {
			entries = append(entries, thought)
		}

		if turn.Action != nil {
			entries = append(entries, Entry{
				Kind:        EntryToolCall,
				TurnNumber:  turn.Number,
				TurnID:      turn.ID,
				Command:     turn.Action.Command,
				CommandArgs: turn.Action.CommandArgs,
				Status:      turn.Action.Status,
			})
		}

		if turn.Observation != nil {
			result := turn.Observation.Result
			if result == "" {
				result = ExtractText(turn.Observation.Content)
			}
			entries = append(entries, Entry{
				Kind:       EntryObservation,
				TurnNumber: turn.Number,
				TurnID:     turn.ID,
				Result:     result,
				Status:     turn.Observation.Status,
				DurationMS: turn.Observation.DurationMS,
			})
		}
	}

	return entries
}

// thoughtEntry resolves the thought slot for a turn: the resolved response
// when it carries text or has reached a terminal status, otherwise the live
// buffer keyed by the request-started record's ID. An empty response still in
// flight is a placeholder, not a resolution, so the stream stays visible.
func thoughtEntry(turn *Turn, live LiveFunc) (Entry, bool) {
	if turn.Thought != nil {
		text := ExtractThought(turn.Thought.Content)
		if text != "" || turn.Thought.Status.Terminal() {
			return Entry{
				Kind:       EntryThought,
				TurnNumber: turn.Number,
				TurnID:     turn.ID,
				Text:       text,
				Status:     turn.Thought.Status,
			}, true
		}
	}

	if turn.ThoughtSent == nil || live == nil {
		return Entry{}, false
	}

	chunks, status, ok := live(turn.ThoughtSent.ID)
	if !ok || len(chunks) == 0 {
		return Entry{}, false
	}
	return Entry{
		Kind:       EntryThought,
		TurnNumber: turn.Number,
		TurnID:     turn.ID,
		Text:       ScopeThought(strings.Join(chunks, "")),
		Status:     status,
		Streaming:  true,
	}, true
}
