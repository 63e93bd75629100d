// Copyright (C) 2026 Loomdeck
// SPDX-License-Identifier: AGPL-3.0-or-later

package timeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomdeck/loomdeck/internal/protocol"
)

func TestBuildEntries_FullTurn(t *testing.T) {
	records := []*protocol.LogRecord{
		rec("r1", "A", 1, protocol.RecordPromptSent, protocol.StatusSent, "list the files"),
		rec("r2", "A", 2, protocol.RecordTurnSent, protocol.StatusSent, "list the files"),
		{
			ID: "r3", CorrelationID: "A", EventSeq: 3,
			EventType: protocol.RecordToolCallExecuted, Status: protocol.StatusSuccess,
			TaskID: "task-1", Command: "ls", CommandArgs: []string{"-la"},
			Result: "main.go\nconfig.go", DurationMS: 12,
		},
		rec("r4", "A", 4, protocol.RecordTurnReceived, protocol.StatusSuccess, "<thought>thinking</thought>done"),
	}

	entries := BuildEntries(Correlate(records), nil)
	require.Len(t, entries, 4)

	assert.Equal(t, EntryPrompt, entries[0].Kind)
	assert.Equal(t, "list the files", entries[0].Text)
	assert.Equal(t, 1, entries[0].TurnNumber)

	assert.Equal(t, EntryThought, entries[1].Kind)
	assert.Equal(t, "thinking", entries[1].Text)
	assert.False(t, entries[1].Streaming)

	assert.Equal(t, EntryToolCall, entries[2].Kind)
	assert.Equal(t, "ls", entries[2].Command)
	assert.Equal(t, []string{"-la"}, entries[2].CommandArgs)

	assert.Equal(t, EntryObservation, entries[3].Kind)
	assert.Equal(t, "main.go\nconfig.go", entries[3].Result)
	assert.Equal(t, int64(12), entries[3].DurationMS)
}

func TestBuildEntries_LiveThoughtFallback(t *testing.T) {
	turnSent := rec("r2", "A", 2, protocol.RecordTurnSent, protocol.StatusSent, "request")

	t.Run("unresolved turn consults the live buffer keyed by turn_sent ID", func(t *testing.T) {
		turns := Correlate([]*protocol.LogRecord{turnSent})

		live := func(logID string) ([]string, protocol.RecordStatus, bool) {
			require.Equal(t, "r2", logID)
			return []string{"<thought>stream", "ing now"}, protocol.StatusRunning, true
		}

		entries := BuildEntries(turns, live)
		require.Len(t, entries, 1)
		assert.Equal(t, EntryThought, entries[0].Kind)
		assert.Equal(t, "streaming now", entries[0].Text)
		assert.True(t, entries[0].Streaming)
		assert.Equal(t, protocol.StatusRunning, entries[0].Status)
	})

	t.Run("resolved response supersedes the live buffer", func(t *testing.T) {
		turns := Correlate([]*protocol.LogRecord{
			turnSent,
			rec("r4", "A", 4, protocol.RecordTurnReceived, protocol.StatusSuccess, "final text"),
		})

		live := func(string) ([]string, protocol.RecordStatus, bool) {
			t.Fatal("live buffer must not be consulted once the response resolved")
			return nil, "", false
		}

		entries := BuildEntries(turns, live)
		require.Len(t, entries, 1)
		assert.Equal(t, "final text", entries[0].Text)
		assert.False(t, entries[0].Streaming)
	})

	t.Run("empty in-flight response does not hide the stream", func(t *testing.T) {
		turns := Correlate([]*protocol.LogRecord{
			turnSent,
			rec("r3", "A", 3, protocol.RecordTurnReceived, protocol.StatusRunning, ""),
		})

		live := func(logID string) ([]string, protocol.RecordStatus, bool) {
			require.Equal(t, "r2", logID)
			return []string{"streamed so far"}, protocol.StatusRunning, true
		}

		entries := BuildEntries(turns, live)
		require.Len(t, entries, 1)
		assert.Equal(t, "streamed so far", entries[0].Text)
		assert.True(t, entries[0].Streaming)
	})

	t.Run("empty terminal response supersedes the stream", func(t *testing.T) {
		turns := Correlate([]*protocol.LogRecord{
			turnSent,
			rec("r3", "A", 3, protocol.RecordTurnReceived, protocol.StatusFailed, ""),
		})

		live := func(string) ([]string, protocol.RecordStatus, bool) {
			t.Fatal("live buffer must not be consulted once the response reached a terminal status")
			return nil, "", false
		}

		entries := BuildEntries(turns, live)
		require.Len(t, entries, 1)
		assert.Equal(t, "", entries[0].Text)
		assert.Equal(t, protocol.StatusFailed, entries[0].Status)
		assert.False(t, entries[0].Streaming)
	})

	t.Run("no buffer and no response yields no thought entry", func(t *testing.T) {
		turns := Correlate([]*protocol.LogRecord{turnSent})

		live := func(string) ([]string, protocol.RecordStatus, bool) {
			return nil, "", false
		}

		entries := BuildEntries(turns, live)
		assert.Empty(t, entries)
	})

	t.Run("nil live func is tolerated", func(t *testing.T) {
		turns := Correlate([]*protocol.LogRecord{turnSent})
		assert.Empty(t, BuildEntries(turns, nil))
	})
}

func TestBuildEntries_ObservationResultFallback(t *testing.T) {
	// Some tools report output through the content body instead of result.
	records := []*protocol.LogRecord{
		{
			ID: "r1", CorrelationID: "A", EventSeq: 1,
			EventType: protocol.RecordToolCallExecuted, Status: protocol.StatusSuccess,
			TaskID: "task-1", Command: "cat",
			Content: protocol.RecordContent{Text: "body output"},
		},
	}

	entries := BuildEntries(Correlate(records), nil)
	require.Len(t, entries, 2) // backfilled action + observation
	assert.Equal(t, EntryToolCall, entries[0].Kind)
	assert.Equal(t, EntryObservation, entries[1].Kind)
	assert.Equal(t, "body output", entries[1].Result)
}

func TestBuildEntries_MultipleTurns(t *testing.T) {
	records := []*protocol.LogRecord{
		rec("r1", "A", 1, protocol.RecordPromptSent, protocol.StatusSent, "first"),
		rec("r2", "A", 2, protocol.RecordTurnReceived, protocol.StatusSuccess, "answer one"),
		rec("r3", "B", 3, protocol.RecordPromptSent, protocol.StatusSent, "second"),
		rec("r4", "B", 4, protocol.RecordTurnReceived, protocol.StatusSuccess, "answer two"),
	}

	entries := BuildEntries(Correlate(records), nil)
	require.Len(t, entries, 4)
	assert.Equal(t, 1, entries[0].TurnNumber)
	assert.Equal(t, 1, entries[1].TurnNumber)
	assert.Equal(t, 2, entries[2].TurnNumber)
	assert.Equal(t, 2, entries[3].TurnNumber)
}
