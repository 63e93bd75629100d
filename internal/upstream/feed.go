// Copyright (C) 2026 Loomdeck
// SPDX-License-Identifier: AGPL-3.0-or-later

package upstream

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"

	"github.com/loomdeck/loomdeck/internal/livelog"
	"github.com/loomdeck/loomdeck/internal/protocol"
)

const (
	feedPongWait   = 60 * time.Second
	feedPingPeriod = (feedPongWait * 9) / 10
	feedWriteWait  = 10 * time.Second
)

// liveMessage is the envelope the upstream live channel delivers: either a
// chunk of streamed output or a freshly created log record.
type liveMessage struct {
	Type      string                       `json:"type"` // "chunk" or "record"
	Chunk     *protocol.StreamChunkMessage `json:"chunk,omitempty"`
	Record    *protocol.LogRecord          `json:"record,omitempty"`
	Timestamp time.Time                    `json:"timestamp"`
}

// LiveFeed maintains the persistent connection to the upstream live channel
// and routes inbound messages: chunk messages into the chunk store, stage
// records into the stage store, everything into the record cache and out to
// the gateway's own clients.
type LiveFeed struct {
	url       string
	chunks    *livelog.ChunkStore
	stages    *livelog.StageStore
	cache     *RecordCache
	broadcast Broadcaster

	minDelay time.Duration
	maxDelay time.Duration
}

// NewLiveFeed wires a feed against the upstream WebSocket URL. Reconnect
// delays bound the exponential backoff between connection attempts.
func NewLiveFeed(url string, chunks *livelog.ChunkStore, stages *livelog.StageStore, cache *RecordCache, broadcast Broadcaster, minDelay, maxDelay time.Duration) *LiveFeed {
	if broadcast == nil {
		broadcast = NopBroadcaster()
	}
	return &LiveFeed{
		url:       url,
		chunks:    chunks,
		stages:    stages,
		cache:     cache,
		broadcast: broadcast,
		minDelay:  minDelay,
		maxDelay:  maxDelay,
	}
}

// Run connects and consumes the live channel until the context is cancelled,
// reconnecting with exponential backoff after failures.
func (f *LiveFeed) Run(ctx context.Context) {
	delay := f.minDelay

	for {
		if ctx.Err() != nil {
			return
		}

		conn, _, err := websocket.DefaultDialer.DialContext(ctx, f.url, nil)
		if err != nil {
			getLog().Warn().Err(err).Dur("retry_in", delay).Msg("Live channel dial failed")
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return
			}
			if delay *= 2; delay > f.maxDelay {
				delay = f.maxDelay
			}
			continue
		}

		getLog().Info().Str("url", f.url).Msg("Live channel connected")
		delay = f.minDelay
		f.readPump(ctx, conn)
		conn.Close()
	}
}

// readPump consumes one connection until it errors or the context ends.
func (f *LiveFeed) readPump(ctx context.Context, conn *websocket.Conn) {
	conn.SetReadDeadline(time.Now().Add(feedPongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(feedPongWait))
		return nil
	})

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(feedPingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				conn.SetWriteDeadline(time.Now().Add(feedWriteWait))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			case <-done:
				return
			case <-ctx.Done():
				conn.Close() // unblocks ReadMessage
				return
			}
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				getLog().Warn().Err(err).Msg("Live channel read error")
			}
			return
		}

		var msg liveMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			getLog().Warn().Err(err).Msg("Invalid live channel message")
			continue
		}
		f.dispatch(msg)
	}
}

// dispatch routes one inbound message.
func (f *LiveFeed) dispatch(msg liveMessage) {
	switch msg.Type {
	case "chunk":
		if msg.Chunk == nil {
			return
		}
		chunk := *msg.Chunk
		if chunk.Timestamp.IsZero() {
			chunk.Timestamp = msg.Timestamp
		}
		f.chunks.Append(chunk)
		f.broadcast.Broadcast(protocol.StreamChunkEvent{
			Metadata: protocol.Metadata{
				TaskID:  chunk.TaskID,
				Version: protocol.CurrentProtocolVersion,
			},
			Message: chunk,
		})

	case "record":
		if msg.Record == nil {
			return
		}
		f.dispatchRecord(msg.Record)

	default:
		// Unknown message kinds are expected steady-state noise from
		// newer upstream versions.
	}
}

func (f *LiveFeed) dispatchRecord(rec *protocol.LogRecord) {
	if rec.StageID != "" && isStageRecord(rec.EventType) {
		f.stages.Append(rec.StageID, rec)
		f.broadcast.Broadcast(protocol.StageLogEvent{
			Metadata: protocol.Metadata{
				TaskID:  rec.TaskID,
				Version: protocol.CurrentProtocolVersion,
			},
			StageID: rec.StageID,
			Record:  rec,
		})
	}

	if !f.cache.Add(rec) {
		return
	}

	reconcileStreamStatus(f.chunks, f.cache, rec)

	f.broadcast.Broadcast(protocol.RecordBatchEvent{
		Metadata: protocol.Metadata{
			TaskID:         rec.TaskID,
			IdempotencyKey: rec.ID,
			Version:        protocol.CurrentProtocolVersion,
		},
		TaskID:  rec.TaskID,
		Records: []*protocol.LogRecord{rec},
	})
}

// isStageRecord reports whether a record feeds the plain execution log view.
func isStageRecord(t protocol.RecordType) bool {
	switch t {
	case protocol.RecordStageStarted, protocol.RecordStageOutput, protocol.RecordStageFinished:
		return true
	}
	return false
}

// reconcileStreamStatus pushes a terminal response status into the chunk
// buffer that was streaming for its turn, keyed by the turn's request-started
// record. Either signal (REST-observed terminal record or live finished
// chunk) is sufficient evidence the unit of work finished.
func reconcileStreamStatus(chunks *livelog.ChunkStore, cache *RecordCache, rec *protocol.LogRecord) {
	if rec.EventType != protocol.RecordTurnReceived || !rec.Status.Terminal() {
		return
	}
	if sent := cache.FindByType(rec.TaskID, rec.GroupKey(), protocol.RecordTurnSent); sent != nil {
		chunks.SetStatus(sent.ID, rec.Status)
	}
}
