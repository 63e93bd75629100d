// Copyright (C) 2026 Loomdeck
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomdeck/loomdeck/internal/config"
	"github.com/loomdeck/loomdeck/internal/livelog"
	"github.com/loomdeck/loomdeck/internal/protocol"
	"github.com/loomdeck/loomdeck/internal/upstream"
)

// testGateway bundles the wired server handler with direct store access.
type testGateway struct {
	handler  http.Handler
	cache    *upstream.RecordCache
	chunks   *livelog.ChunkStore
	stages   *livelog.StageStore
	upstream *httptest.Server
}

// newTestGateway wires a gateway against a fake upstream serving the given
// records through the paged /logs listing.
func newTestGateway(t *testing.T, upstreamRecords []*protocol.LogRecord) *testGateway {
	t.Helper()

	fake := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		taskID := r.URL.Query().Get("task_id")
		var matched []*protocol.LogRecord
		for _, rec := range upstreamRecords {
			if taskID == "" || rec.TaskID == taskID {
				matched = append(matched, rec)
			}
		}
		json.NewEncoder(w).Encode(upstream.LogPage{
			Records:  matched,
			Page:     1,
			PageSize: 100,
			Total:    len(matched),
		})
	}))
	t.Cleanup(fake.Close)

	cache := upstream.NewRecordCache()
	chunks := livelog.NewChunkStore(0)
	stages := livelog.NewStageStore(0)
	client := upstream.NewClient(fake.URL, 100)
	poller := upstream.NewPoller(client, cache, chunks, nil, time.Second)

	srv := New(&config.ServerConfig{Host: "127.0.0.1", Port: 0}, NewClientRegistry(), cache, poller, chunks, stages)

	return &testGateway{
		handler:  srv.httpServer.Handler,
		cache:    cache,
		chunks:   chunks,
		stages:   stages,
		upstream: fake,
	}
}

func (g *testGateway) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rr := httptest.NewRecorder()
	g.handler.ServeHTTP(rr, req)
	return rr
}

func TestGetTimeline(t *testing.T) {
	records := []*protocol.LogRecord{
		{ID: "r1", TaskID: "task-1", CorrelationID: "A", EventSeq: 1, EventType: protocol.RecordPromptSent, Status: protocol.StatusSent, Content: protocol.RecordContent{Text: "do it"}},
		{ID: "r2", TaskID: "task-1", CorrelationID: "A", EventSeq: 2, EventType: protocol.RecordTurnReceived, Status: protocol.StatusSuccess, Content: protocol.RecordContent{Text: "<thought>plan</thought>done"}},
	}
	g := newTestGateway(t, records)

	rr := g.do(t, http.MethodGet, "/api/v1/tasks/task-1/timeline", "")
	require.Equal(t, http.StatusOK, rr.Code)

	var resp struct {
		TaskID    string `json:"task_id"`
		TurnCount int    `json:"turn_count"`
		Entries   []struct {
			Kind       string `json:"kind"`
			TurnNumber int    `json:"turn_number"`
			Text       string `json:"text"`
		} `json:"entries"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))

	assert.Equal(t, "task-1", resp.TaskID)
	assert.Equal(t, 1, resp.TurnCount)
	require.Len(t, resp.Entries, 2)
	assert.Equal(t, "prompt", resp.Entries[0].Kind)
	assert.Equal(t, "do it", resp.Entries[0].Text)
	assert.Equal(t, "thought", resp.Entries[1].Kind)
	assert.Equal(t, "plan", resp.Entries[1].Text)

	// The fetch populated the cache.
	assert.Len(t, g.cache.Task("task-1"), 2)
}

func TestGetTimeline_UpstreamFailure(t *testing.T) {
	g := newTestGateway(t, nil)
	g.upstream.Close() // upstream unreachable, cache empty

	rr := g.do(t, http.MethodGet, "/api/v1/tasks/task-1/timeline", "")
	assert.Equal(t, http.StatusBadGateway, rr.Code)
}

func TestGetTaskLogs(t *testing.T) {
	records := []*protocol.LogRecord{
		{ID: "r2", TaskID: "task-1", EventSeq: 2, EventType: protocol.RecordTurnReceived},
		{ID: "r1", TaskID: "task-1", EventSeq: 1, EventType: protocol.RecordTurnSent},
	}
	g := newTestGateway(t, records)

	rr := g.do(t, http.MethodGet, "/api/v1/tasks/task-1/logs", "")
	require.Equal(t, http.StatusOK, rr.Code)

	var resp struct {
		Records []*protocol.LogRecord `json:"records"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Len(t, resp.Records, 2)
	assert.Equal(t, "r1", resp.Records[0].ID, "records come back in event_seq order")
}

func TestClearTask(t *testing.T) {
	g := newTestGateway(t, nil)
	g.cache.Add(&protocol.LogRecord{ID: "r1", TaskID: "task-1", EventSeq: 1})
	g.stages.Append("stage-1", &protocol.LogRecord{ID: "s1", TaskID: "task-1", EventType: protocol.RecordStageOutput})

	rr := g.do(t, http.MethodDelete, "/api/v1/tasks/task-1/logs", "")
	require.Equal(t, http.StatusOK, rr.Code)

	assert.Empty(t, g.cache.Task("task-1"))
	assert.Empty(t, g.stages.Entries("stage-1"))
}

func TestGetStageLogs(t *testing.T) {
	g := newTestGateway(t, nil)
	g.stages.Append("stage-1", &protocol.LogRecord{ID: "s1", TaskID: "task-1", EventType: protocol.RecordStageOutput})

	rr := g.do(t, http.MethodGet, "/api/v1/stages/stage-1/logs", "")
	require.Equal(t, http.StatusOK, rr.Code)

	var resp struct {
		StageID string                `json:"stage_id"`
		Records []*protocol.LogRecord `json:"records"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "stage-1", resp.StageID)
	assert.Len(t, resp.Records, 1)
}

func TestWatchStreamLifecycle(t *testing.T) {
	g := newTestGateway(t, nil)

	t.Run("stream before watch is 404", func(t *testing.T) {
		rr := g.do(t, http.MethodGet, "/api/v1/logs/log-1/stream", "")
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("watch then stream returns buffered text", func(t *testing.T) {
		rr := g.do(t, http.MethodPost, "/api/v1/logs/log-1/watch", "")
		require.Equal(t, http.StatusOK, rr.Code)

		g.chunks.Append(protocol.StreamChunkMessage{
			LogID:     "log-1",
			Chunk:     "hello ",
			Timestamp: time.Now().Add(time.Second),
		})
		g.chunks.Append(protocol.StreamChunkMessage{
			LogID:     "log-1",
			Chunk:     "world",
			Finished:  true,
			Timestamp: time.Now().Add(2 * time.Second),
		})

		rr = g.do(t, http.MethodGet, "/api/v1/logs/log-1/stream", "")
		require.Equal(t, http.StatusOK, rr.Code)

		var resp struct {
			Text   string `json:"text"`
			Status string `json:"status"`
		}
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.Equal(t, "hello world", resp.Text)
		assert.Equal(t, "success", resp.Status)
	})

	t.Run("fresh watch clears the buffer", func(t *testing.T) {
		rr := g.do(t, http.MethodPost, "/api/v1/logs/log-1/watch", `{"fresh":true}`)
		require.Equal(t, http.StatusOK, rr.Code)

		rr = g.do(t, http.MethodGet, "/api/v1/logs/log-1/stream", "")
		require.Equal(t, http.StatusOK, rr.Code)

		var resp struct {
			Text   string `json:"text"`
			Status string `json:"status"`
		}
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.Empty(t, resp.Text)
		assert.Equal(t, "running", resp.Status)
	})

	t.Run("unwatch stops buffering but keeps the snapshot", func(t *testing.T) {
		g.chunks.Append(protocol.StreamChunkMessage{
			LogID:     "log-1",
			Chunk:     "kept",
			Timestamp: time.Now().Add(3 * time.Second),
		})

		rr := g.do(t, http.MethodDelete, "/api/v1/logs/log-1/watch", "")
		require.Equal(t, http.StatusOK, rr.Code)

		g.chunks.Append(protocol.StreamChunkMessage{
			LogID:     "log-1",
			Chunk:     "dropped",
			Timestamp: time.Now().Add(4 * time.Second),
		})

		rr = g.do(t, http.MethodGet, "/api/v1/logs/log-1/stream", "")
		require.Equal(t, http.StatusOK, rr.Code)

		var resp struct {
			Text string `json:"text"`
		}
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.Equal(t, "kept", resp.Text)
	})
}
