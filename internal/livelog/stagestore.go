// Copyright (C) 2026 Loomdeck
// SPDX-License-Identifier: AGPL-3.0-or-later

package livelog

import (
	"sync"

	"github.com/loomdeck/loomdeck/internal/protocol"
)

// DefaultMaxStageEntries bounds each stage's ring of execution-step records.
const DefaultMaxStageEntries = 200

// StageStore is the per-stage ring buffer of discrete execution-step records
// backing the plain live execution log view, outside the ReAct timeline.
type StageStore struct {
	mu         sync.Mutex
	stages     map[string][]*protocol.LogRecord
	maxEntries int
}

// NewStageStore creates a store bounding each stage to maxEntries records.
// maxEntries <= 0 selects DefaultMaxStageEntries.
func NewStageStore(maxEntries int) *StageStore {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxStageEntries
	}
	return &StageStore{
		stages:     make(map[string][]*protocol.LogRecord),
		maxEntries: maxEntries,
	}
}

// Append adds a record to the stage's ring, evicting the oldest entries
// beyond the cap.
func (s *StageStore) Append(stageID string, rec *protocol.LogRecord) {
	if stageID == "" || rec == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entries := append(s.stages[stageID], rec)
	if excess := len(entries) - s.maxEntries; excess > 0 {
		entries = entries[excess:]
	}
	s.stages[stageID] = entries
}

// Entries returns a copy of the stage's buffered records in receipt order.
func (s *StageStore) Entries(stageID string) []*protocol.LogRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.stages[stageID]
	out := make([]*protocol.LogRecord, len(entries))
	copy(out, entries)
	return out
}

// ClearTask removes every stage buffer belonging to the given task, used
// when a task's view is torn down. A stage belongs to a task when its first
// buffered record carries that task ID.
func (s *StageStore) ClearTask(taskID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for stageID, entries := range s.stages {
		if len(entries) > 0 && entries[0].TaskID == taskID {
			delete(s.stages, stageID)
		}
	}
}
