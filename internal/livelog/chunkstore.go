// Copyright (C) 2026 Loomdeck
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package livelog holds the in-memory state for live-streaming output: one
// chunk buffer per watched log record, and one discrete-record ring per
// pipeline stage. Both stores are explicit state objects injected into their
// consumers; state is partitioned by log/stage ID so independent viewers do
// not interfere.
package livelog

import (
	"sync"
	"time"

	"github.com/loomdeck/loomdeck/internal/protocol"
)

// DefaultMaxChunks bounds each chunk buffer to the most recent entries.
const DefaultMaxChunks = 2000

// chunkBuffer is the per-log accumulation of streamed text.
type chunkBuffer struct {
	chunks       []string
	status       protocol.RecordStatus
	subscribed   bool
	subscribedAt time.Time
}

// ChunkStore is the ledger of live-streaming text for log records a viewer
// has chosen to watch. Chunks emitted before the subscription instant are
// never buffered, so a viewer never sees history replayed at it.
type ChunkStore struct {
	mu        sync.Mutex
	buffers   map[string]*chunkBuffer
	maxChunks int

	// now is swappable for tests.
	now func() time.Time
}

// NewChunkStore creates a store bounding each buffer to maxChunks entries.
// maxChunks <= 0 selects DefaultMaxChunks.
func NewChunkStore(maxChunks int) *ChunkStore {
	if maxChunks <= 0 {
		maxChunks = DefaultMaxChunks
	}
	return &ChunkStore{
		buffers:   make(map[string]*chunkBuffer),
		maxChunks: maxChunks,
		now:       time.Now,
	}
}

// Subscribe records the current instant as the subscription timestamp for
// logID and initializes an empty buffer if absent. Re-subscribing without an
// intervening Clear preserves buffered chunks and keeps the original
// timestamp; callers opening a truly fresh viewing session call Clear first.
func (s *ChunkStore) Subscribe(logID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.buffers[logID]
	if !ok {
		b = &chunkBuffer{status: protocol.StatusRunning}
		s.buffers[logID] = b
	}
	if !b.subscribed {
		b.subscribed = true
		b.subscribedAt = s.now()
	}
}

// Unsubscribe removes the subscription marker for logID. Buffered chunks and
// status remain until explicitly cleared, so a brief re-subscribe does not
// lose data. Unsubscribing an unknown log is a no-op.
func (s *ChunkStore) Unsubscribe(logID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if b, ok := s.buffers[logID]; ok {
		b.subscribed = false
	}
}

// Clear resets the chunk list to empty and the status to running. Used when
// a viewer opens a fresh viewing session for a log it may have seen before.
func (s *ChunkStore) Clear(logID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.buffers[logID]
	if !ok {
		b = &chunkBuffer{}
		s.buffers[logID] = b
	}
	b.chunks = nil
	b.status = protocol.StatusRunning
}

// SetStatus overwrites the last-known status for logID, reconciling the
// buffer with state observed through REST polling. Unknown logs are ignored.
func (s *ChunkStore) SetStatus(logID string, status protocol.RecordStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if b, ok := s.buffers[logID]; ok {
		b.status = status
	}
}

// Append accepts an incoming chunk message. Messages for unwatched logs are
// dropped rather than buffered, and chunks whose envelope timestamp predates
// the subscription instant are dropped as well. The buffer keeps only the
// most recent maxChunks entries.
func (s *ChunkStore) Append(msg protocol.StreamChunkMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.buffers[msg.LogID]
	if !ok || !b.subscribed {
		return
	}
	if msg.Timestamp.Before(b.subscribedAt) {
		return
	}

	if msg.Chunk != "" {
		b.chunks = append(b.chunks, msg.Chunk)
		if excess := len(b.chunks) - s.maxChunks; excess > 0 {
			b.chunks = b.chunks[excess:]
		}
	}

	switch {
	case msg.Status != "":
		b.status = msg.Status
	case msg.Finished:
		b.status = protocol.StatusSuccess
	}
}

// Snapshot returns a copy of the buffered chunks and the last-known status
// for logID. ok is false when no buffer exists.
func (s *ChunkStore) Snapshot(logID string) (chunks []string, status protocol.RecordStatus, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, found := s.buffers[logID]
	if !found {
		return nil, "", false
	}
	chunks = make([]string, len(b.chunks))
	copy(chunks, b.chunks)
	return chunks, b.status, true
}
