// Copyright (C) 2026 Loomdeck
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package timeline reconstructs ReAct turns from the upstream log. It folds
// an unordered batch of log records into an ordered sequence of turns and
// produces the display-ready entry list the dashboard renders, merging live
// stream buffers for turns whose terminal response has not arrived yet.
package timeline

import (
	"sort"

	"github.com/loomdeck/loomdeck/internal/protocol"
)

// Turn is one reconstructed round trip: prompt → thought → action →
// observation, grouped by correlation ID. Turns are a pure projection over a
// record set; recorrelating the same records always yields the same turns.
type Turn struct {
	// ID is the grouping key: the correlation ID, or the record's own ID
	// for records without one.
	ID string

	// Number is 1-based and reflects first-occurrence order of the
	// grouping key in event_seq order, not key ordering.
	Number int

	Prompt      *protocol.LogRecord // prompt delivered to the agent
	ThoughtSent *protocol.LogRecord // request-started marker
	Thought     *protocol.LogRecord // resolved LLM response
	Action      *protocol.LogRecord // first tool invocation
	Observation *protocol.LogRecord // tool result

	// Records holds every record of the group in event_seq order,
	// including records whose type routed to no slot.
	Records []*protocol.LogRecord
}

// thoughtEmpty reports whether the thought slot has no displayable content.
// A slot holding a record whose extracted thought text is empty counts as
// empty, so a later richer record may still claim it.
func (t *Turn) thoughtEmpty() bool {
	return t.Thought == nil || ExtractThought(t.Thought.Content) == ""
}

// Correlate folds a batch of log records into turns, ordered by first
// occurrence of their grouping key. The input slice is not modified; records
// are sorted by event_seq (the authoritative order — wall-clock timestamps
// are never consulted). No record causes the operation to fail: malformed
// types still establish their group, they just occupy no slot.
func Correlate(records []*protocol.LogRecord) []*Turn {
	sorted := make([]*protocol.LogRecord, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].EventSeq < sorted[j].EventSeq
	})

	byKey := make(map[string]*Turn)
	var turns []*Turn

	for _, rec := range sorted {
		if rec == nil || rec.ID == "" && rec.CorrelationID == "" {
			continue
		}
		key := rec.GroupKey()
		turn, ok := byKey[key]
		if !ok {
			turn = &Turn{ID: key, Number: len(turns) + 1}
			byKey[key] = turn
			turns = append(turns, turn)
		}
		turn.Records = append(turn.Records, rec)
		route(turn, rec)
	}

	return turns
}

// route places a record into its turn slot, applying the precedence rules
// that keep rich responses from being clobbered by placeholders.
func route(turn *Turn, rec *protocol.LogRecord) {
	switch rec.EventType {
	case protocol.RecordPromptSent:
		// Last write wins when duplicated.
		turn.Prompt = rec

	case protocol.RecordTurnSent:
		turn.ThoughtSent = rec

	case protocol.RecordChatSent:
		// Fallback request marker: never displaces a real turn_sent.
		if turn.ThoughtSent == nil {
			turn.ThoughtSent = rec
		}

	case protocol.RecordTurnReceived:
		// An empty placeholder response must not overwrite a previously
		// captured rich response.
		if ExtractThought(rec.Content) != "" || turn.thoughtEmpty() {
			turn.Thought = rec
		}

	case protocol.RecordChatReceived:
		if turn.thoughtEmpty() {
			turn.Thought = rec
		}

	case protocol.RecordToolCallExecuted:
		if rec.Status == protocol.StatusRunning && turn.Action == nil {
			// Tool call in flight.
			turn.Action = rec
			return
		}
		turn.Observation = rec
		if turn.Action == nil {
			// Only the terminal record was observed (e.g. after a
			// page reload): it stands in for the call as well.
			turn.Action = rec
		}

	default:
		// Unrecognized type: stays in Records, occupies no slot.
	}
}
