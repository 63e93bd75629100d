// Copyright (C) 2026 Loomdeck
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/loomdeck/loomdeck/internal/livelog"
	"github.com/loomdeck/loomdeck/internal/protocol"
	"github.com/loomdeck/loomdeck/internal/timeline"
	"github.com/loomdeck/loomdeck/internal/upstream"
)

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	cache  *upstream.RecordCache
	poller *upstream.Poller
	chunks *livelog.ChunkStore
	stages *livelog.StageStore
}

// NewHandlers creates the handler set.
func NewHandlers(cache *upstream.RecordCache, poller *upstream.Poller, chunks *livelog.ChunkStore, stages *livelog.StageStore) *Handlers {
	return &Handlers{cache: cache, poller: poller, chunks: chunks, stages: stages}
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		getLog().Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// liveFunc adapts the chunk store to the correlator's live lookup.
func (h *Handlers) liveFunc() timeline.LiveFunc {
	return func(logID string) ([]string, protocol.RecordStatus, bool) {
		return h.chunks.Snapshot(logID)
	}
}

// timelineResponse is the payload for GET /tasks/{taskId}/timeline.
type timelineResponse struct {
	TaskID    string           `json:"task_id"`
	TurnCount int              `json:"turn_count"`
	Entries   []timeline.Entry `json:"entries"`
}

// GetTimeline handles GET /api/v1/tasks/{taskId}/timeline.
// Viewing a timeline registers the task with the poller so the cache keeps
// following the upstream log until the view is torn down.
func (h *Handlers) GetTimeline(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskId")

	records := h.cache.Task(taskID)
	if len(records) == 0 {
		fetched, err := h.poller.PollTask(r.Context(), taskID)
		if err != nil {
			writeJSON(w, http.StatusBadGateway, map[string]string{"error": "Failed to load logs", "context": err.Error()})
			return
		}
		records = fetched
	}
	h.poller.Watch(taskID)

	turns := timeline.Correlate(records)
	writeJSON(w, http.StatusOK, timelineResponse{
		TaskID:    taskID,
		TurnCount: len(turns),
		Entries:   timeline.BuildEntries(turns, h.liveFunc()),
	})
}

// taskLogsResponse is the payload for GET /tasks/{taskId}/logs.
type taskLogsResponse struct {
	TaskID  string                `json:"task_id"`
	Records []*protocol.LogRecord `json:"records"`
}

// GetTaskLogs handles GET /api/v1/tasks/{taskId}/logs.
// Records come back in event_seq order.
func (h *Handlers) GetTaskLogs(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskId")

	records := h.cache.Task(taskID)
	if len(records) == 0 {
		fetched, err := h.poller.PollTask(r.Context(), taskID)
		if err != nil {
			writeJSON(w, http.StatusBadGateway, map[string]string{"error": "Failed to load logs", "context": err.Error()})
			return
		}
		records = fetched
	}

	writeJSON(w, http.StatusOK, taskLogsResponse{TaskID: taskID, Records: records})
}

// ClearTask handles DELETE /api/v1/tasks/{taskId}/logs. Used when a task's
// view is torn down: stops polling, drops cached records and stage buffers.
func (h *Handlers) ClearTask(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskId")

	h.poller.ClearTask(taskID)
	h.stages.ClearTask(taskID)

	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

// stageLogsResponse is the payload for GET /stages/{stageId}/logs.
type stageLogsResponse struct {
	StageID string                `json:"stage_id"`
	Records []*protocol.LogRecord `json:"records"`
}

// GetStageLogs handles GET /api/v1/stages/{stageId}/logs.
func (h *Handlers) GetStageLogs(w http.ResponseWriter, r *http.Request) {
	stageID := chi.URLParam(r, "stageId")
	writeJSON(w, http.StatusOK, stageLogsResponse{
		StageID: stageID,
		Records: h.stages.Entries(stageID),
	})
}

// watchRequest is the JSON body for POST /logs/{logId}/watch.
type watchRequest struct {
	// Fresh requests a clean viewing session: the buffer is cleared
	// before the subscription starts. Without it a re-watch keeps
	// previously buffered chunks.
	Fresh bool `json:"fresh,omitempty"`
}

// WatchLog handles POST /api/v1/logs/{logId}/watch.
func (h *Handlers) WatchLog(w http.ResponseWriter, r *http.Request) {
	logID := chi.URLParam(r, "logId")
	if strings.TrimSpace(logID) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "log id is required"})
		return
	}

	var body watchRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
			return
		}
	}

	if body.Fresh {
		h.chunks.Clear(logID)
	}
	h.chunks.Subscribe(logID)

	writeJSON(w, http.StatusOK, map[string]string{"status": "watching"})
}

// UnwatchLog handles DELETE /api/v1/logs/{logId}/watch.
func (h *Handlers) UnwatchLog(w http.ResponseWriter, r *http.Request) {
	logID := chi.URLParam(r, "logId")
	h.chunks.Unsubscribe(logID)
	writeJSON(w, http.StatusOK, map[string]string{"status": "unwatched"})
}

// streamResponse is the payload for GET /logs/{logId}/stream.
type streamResponse struct {
	LogID  string                `json:"log_id"`
	Chunks []string              `json:"chunks"`
	Text   string                `json:"text"`
	Status protocol.RecordStatus `json:"status"`
}

// GetStream handles GET /api/v1/logs/{logId}/stream.
func (h *Handlers) GetStream(w http.ResponseWriter, r *http.Request) {
	logID := chi.URLParam(r, "logId")

	chunks, status, ok := h.chunks.Snapshot(logID)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no stream buffer for log"})
		return
	}

	writeJSON(w, http.StatusOK, streamResponse{
		LogID:  logID,
		Chunks: chunks,
		Text:   strings.Join(chunks, ""),
		Status: status,
	})
}
