// Copyright (C) 2026 Loomdeck
// SPDX-License-Identifier: AGPL-3.0-or-later

package replay

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomdeck/loomdeck/internal/protocol"
)

const sampleScenario = `
name: demo
description: one resolved turn
task_id: task-1
records:
  - id: r1
    correlation_id: turn-1
    event_seq: 1
    event_type: prompt_sent
    status: sent
    content: "do the thing"
  - id: r2
    correlation_id: turn-1
    event_seq: 2
    event_type: turn_received
    status: success
    content: "<thought>ok</thought>done"
chunks:
  - log_id: r1
    chunk: "partial "
    offset_ms: 100
  - log_id: r1
    chunk: "output"
    finished: true
    offset_ms: 200
`

func TestLoadScenario(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleScenario), 0o644))

	sc, err := LoadScenario(path)
	require.NoError(t, err)
	assert.Equal(t, "demo", sc.Name)
	assert.Equal(t, "task-1", sc.TaskID)
	require.Len(t, sc.Records, 2)
	require.Len(t, sc.Chunks, 2)

	t.Run("records convert to protocol records", func(t *testing.T) {
		records := sc.LogRecords()
		require.Len(t, records, 2)
		assert.Equal(t, "task-1", records[0].TaskID)
		assert.Equal(t, protocol.RecordPromptSent, records[0].EventType)
		assert.Equal(t, "do the thing", records[0].Content.Text)
		assert.Equal(t, int64(2), records[1].EventSeq)
	})

	t.Run("chunks convert with offset timestamps", func(t *testing.T) {
		start := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
		msgs := sc.ChunkMessages(start)
		require.Len(t, msgs, 2)
		assert.Equal(t, "r1", msgs[0].LogID)
		assert.Equal(t, start.Add(100*time.Millisecond), msgs[0].Timestamp)
		assert.True(t, msgs[1].Finished)
	})
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestScenario_Validate(t *testing.T) {
	valid := func() *Scenario {
		return &Scenario{
			Name:   "s",
			TaskID: "task-1",
			Records: []RecordConfig{
				{ID: "r1", EventType: "turn_sent"},
			},
		}
	}

	t.Run("valid scenario passes", func(t *testing.T) {
		assert.NoError(t, valid().Validate())
	})

	t.Run("missing name", func(t *testing.T) {
		sc := valid()
		sc.Name = ""
		assert.ErrorContains(t, sc.Validate(), "name is required")
	})

	t.Run("missing task_id", func(t *testing.T) {
		sc := valid()
		sc.TaskID = ""
		assert.ErrorContains(t, sc.Validate(), "task_id is required")
	})

	t.Run("no records", func(t *testing.T) {
		sc := valid()
		sc.Records = nil
		assert.ErrorContains(t, sc.Validate(), "at least one record")
	})

	t.Run("duplicate record IDs", func(t *testing.T) {
		sc := valid()
		sc.Records = append(sc.Records, RecordConfig{ID: "r1", EventType: "turn_received"})
		assert.ErrorContains(t, sc.Validate(), "duplicate id")
	})

	t.Run("record without event type", func(t *testing.T) {
		sc := valid()
		sc.Records[0].EventType = ""
		assert.ErrorContains(t, sc.Validate(), "event_type is required")
	})

	t.Run("chunk without log_id", func(t *testing.T) {
		sc := valid()
		sc.Chunks = []ChunkConfig{{Chunk: "text"}}
		assert.ErrorContains(t, sc.Validate(), "log_id is required")
	})
}
