// Copyright (C) 2026 Loomdeck
// SPDX-License-Identifier: AGPL-3.0-or-later

package upstream

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomdeck/loomdeck/internal/protocol"
)

func cacheRec(id, taskID, corrID string, seq int64, eventType protocol.RecordType) *protocol.LogRecord {
	return &protocol.LogRecord{
		ID:            id,
		TaskID:        taskID,
		CorrelationID: corrID,
		EventSeq:      seq,
		EventType:     eventType,
	}
}

func TestRecordCache_Add(t *testing.T) {
	t.Run("first add is fresh, repeat is not", func(t *testing.T) {
		c := NewRecordCache()
		rec := cacheRec("r1", "task-1", "A", 1, protocol.RecordTurnSent)

		assert.True(t, c.Add(rec))
		assert.False(t, c.Add(rec), "same ID must dedupe")
	})

	t.Run("drops records without ID or task", func(t *testing.T) {
		c := NewRecordCache()
		assert.False(t, c.Add(nil))
		assert.False(t, c.Add(cacheRec("", "task-1", "A", 1, protocol.RecordTurnSent)))
		assert.False(t, c.Add(cacheRec("r1", "", "A", 1, protocol.RecordTurnSent)))
	})

	t.Run("same ID under different tasks does not collide", func(t *testing.T) {
		c := NewRecordCache()
		assert.True(t, c.Add(cacheRec("r1", "task-1", "A", 1, protocol.RecordTurnSent)))
		assert.True(t, c.Add(cacheRec("r1", "task-2", "A", 1, protocol.RecordTurnSent)))
	})
}

func TestRecordCache_AddBatch(t *testing.T) {
	c := NewRecordCache()
	c.Add(cacheRec("r1", "task-1", "A", 1, protocol.RecordTurnSent))

	fresh := c.AddBatch([]*protocol.LogRecord{
		cacheRec("r1", "task-1", "A", 1, protocol.RecordTurnSent),
		cacheRec("r2", "task-1", "A", 2, protocol.RecordTurnReceived),
		cacheRec("r3", "task-1", "B", 3, protocol.RecordTurnSent),
	})

	require.Len(t, fresh, 2)
	assert.Equal(t, "r2", fresh[0].ID)
	assert.Equal(t, "r3", fresh[1].ID)
}

func TestRecordCache_Task(t *testing.T) {
	c := NewRecordCache()
	c.Add(cacheRec("r3", "task-1", "B", 30, protocol.RecordTurnSent))
	c.Add(cacheRec("r1", "task-1", "A", 10, protocol.RecordTurnSent))
	c.Add(cacheRec("r2", "task-1", "A", 20, protocol.RecordTurnReceived))
	c.Add(cacheRec("x1", "task-2", "C", 1, protocol.RecordTurnSent))

	records := c.Task("task-1")
	require.Len(t, records, 3)
	assert.Equal(t, "r1", records[0].ID)
	assert.Equal(t, "r2", records[1].ID)
	assert.Equal(t, "r3", records[2].ID)

	assert.Empty(t, c.Task("task-unknown"))
}

func TestRecordCache_FindByType(t *testing.T) {
	c := NewRecordCache()
	c.Add(cacheRec("r2", "task-1", "A", 20, protocol.RecordTurnSent))
	c.Add(cacheRec("r1", "task-1", "A", 10, protocol.RecordTurnSent))
	c.Add(cacheRec("r3", "task-1", "A", 30, protocol.RecordTurnReceived))

	t.Run("returns earliest match by event_seq", func(t *testing.T) {
		found := c.FindByType("task-1", "A", protocol.RecordTurnSent)
		require.NotNil(t, found)
		assert.Equal(t, "r1", found.ID)
	})

	t.Run("nil when no match", func(t *testing.T) {
		assert.Nil(t, c.FindByType("task-1", "B", protocol.RecordTurnSent))
		assert.Nil(t, c.FindByType("task-1", "A", protocol.RecordPromptSent))
	})
}

func TestRecordCache_ClearTask(t *testing.T) {
	c := NewRecordCache()
	c.Add(cacheRec("r1", "task-1", "A", 1, protocol.RecordTurnSent))
	c.Add(cacheRec("r2", "task-2", "B", 2, protocol.RecordTurnSent))

	c.ClearTask("task-1")

	assert.Empty(t, c.Task("task-1"))
	assert.Len(t, c.Task("task-2"), 1)

	// Cleared records are fresh again.
	assert.True(t, c.Add(cacheRec("r1", "task-1", "A", 1, protocol.RecordTurnSent)))
}
