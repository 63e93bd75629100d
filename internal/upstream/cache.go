// Copyright (C) 2026 Loomdeck
// SPDX-License-Identifier: AGPL-3.0-or-later

package upstream

import (
	"sort"
	"sync"

	"github.com/loomdeck/loomdeck/internal/protocol"
)

// RecordCache is the in-memory merge of every log record observed for a
// task, over both channels. Records are immutable and keyed by ID, so
// re-polls, page overlaps, and live redelivery all dedupe to a single copy;
// the correlator re-derives turns from the full set on demand.
type RecordCache struct {
	mu     sync.RWMutex
	byTask map[string]map[string]*protocol.LogRecord
}

// NewRecordCache creates an empty cache.
func NewRecordCache() *RecordCache {
	return &RecordCache{
		byTask: make(map[string]map[string]*protocol.LogRecord),
	}
}

// Add merges one record, returning true when it was not seen before.
// Records without an ID or task are dropped.
func (c *RecordCache) Add(rec *protocol.LogRecord) bool {
	if rec == nil || rec.ID == "" || rec.TaskID == "" {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	task, ok := c.byTask[rec.TaskID]
	if !ok {
		task = make(map[string]*protocol.LogRecord)
		c.byTask[rec.TaskID] = task
	}
	if _, exists := task[rec.ID]; exists {
		return false
	}
	task[rec.ID] = rec
	return true
}

// AddBatch merges a polled batch and returns only the records that were new.
func (c *RecordCache) AddBatch(records []*protocol.LogRecord) []*protocol.LogRecord {
	var fresh []*protocol.LogRecord
	for _, rec := range records {
		if c.Add(rec) {
			fresh = append(fresh, rec)
		}
	}
	return fresh
}

// Task returns the task's records sorted by event_seq.
func (c *RecordCache) Task(taskID string) []*protocol.LogRecord {
	c.mu.RLock()
	defer c.mu.RUnlock()

	task := c.byTask[taskID]
	records := make([]*protocol.LogRecord, 0, len(task))
	for _, rec := range task {
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].EventSeq < records[j].EventSeq
	})
	return records
}

// Find returns the task's record with the given ID, or nil.
func (c *RecordCache) Find(taskID, recordID string) *protocol.LogRecord {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.byTask[taskID][recordID]
}

// FindByType returns the first record of the given group and type, in
// event_seq order, or nil.
func (c *RecordCache) FindByType(taskID, groupKey string, t protocol.RecordType) *protocol.LogRecord {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var found *protocol.LogRecord
	for _, rec := range c.byTask[taskID] {
		if rec.GroupKey() != groupKey || rec.EventType != t {
			continue
		}
		if found == nil || rec.EventSeq < found.EventSeq {
			found = rec
		}
	}
	return found
}

// ClearTask drops every cached record for a task (view teardown).
func (c *RecordCache) ClearTask(taskID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.byTask, taskID)
}
