// Copyright (C) 2026 Loomdeck
// SPDX-License-Identifier: AGPL-3.0-or-later

package upstream

import (
	"context"
	"sync"
	"time"

	"github.com/loomdeck/loomdeck/internal/livelog"
	"github.com/loomdeck/loomdeck/internal/protocol"
)

// Poller re-fetches the authoritative log listing for watched tasks on a
// fixed cadence, merges the batches into the record cache, reconciles
// terminal statuses into the chunk store, and pushes fresh records to
// dashboard clients. Fetch failures are reported to clients as an error event
// and retried on the next tick.
type Poller struct {
	client    *Client
	cache     *RecordCache
	chunks    *livelog.ChunkStore
	broadcast Broadcaster
	interval  time.Duration

	mu      sync.Mutex
	watched map[string]struct{}
}

// NewPoller creates a poller. Nothing is fetched until a task is watched.
func NewPoller(client *Client, cache *RecordCache, chunks *livelog.ChunkStore, broadcast Broadcaster, interval time.Duration) *Poller {
	if broadcast == nil {
		broadcast = NopBroadcaster()
	}
	return &Poller{
		client:    client,
		cache:     cache,
		chunks:    chunks,
		broadcast: broadcast,
		interval:  interval,
		watched:   make(map[string]struct{}),
	}
}

// Watch starts polling logs for a task. Idempotent.
func (p *Poller) Watch(taskID string) {
	p.mu.Lock()
	p.watched[taskID] = struct{}{}
	p.mu.Unlock()
}

// Unwatch stops polling a task. Cached records stay until ClearTask.
func (p *Poller) Unwatch(taskID string) {
	p.mu.Lock()
	delete(p.watched, taskID)
	p.mu.Unlock()
}

// ClearTask drops the task's cached records (view teardown).
func (p *Poller) ClearTask(taskID string) {
	p.Unwatch(taskID)
	p.cache.ClearTask(taskID)
}

// Run polls until the context is cancelled.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.pollAll(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// PollTask fetches and merges a task's full log immediately, returning the
// task's complete record set. Used by handlers that need fresh data on a
// cold view.
func (p *Poller) PollTask(ctx context.Context, taskID string) ([]*protocol.LogRecord, error) {
	records, err := p.client.FetchAllLogs(ctx, LogFilter{TaskID: taskID})
	if err != nil {
		return nil, err
	}
	p.merge(taskID, records)
	return p.cache.Task(taskID), nil
}

func (p *Poller) pollAll(ctx context.Context) {
	p.mu.Lock()
	tasks := make([]string, 0, len(p.watched))
	for taskID := range p.watched {
		tasks = append(tasks, taskID)
	}
	p.mu.Unlock()

	for _, taskID := range tasks {
		records, err := p.client.FetchAllLogs(ctx, LogFilter{TaskID: taskID})
		if err != nil {
			getLog().Warn().Err(err).Str("taskID", taskID).Msg("Log poll failed")
			p.broadcast.Broadcast(protocol.ErrorEvent{
				Metadata: protocol.Metadata{
					TaskID:  taskID,
					Version: protocol.CurrentProtocolVersion,
				},
				Message: "Failed to poll task logs",
				Context: err.Error(),
				TaskID:  taskID,
			})
			continue
		}
		p.merge(taskID, records)
	}
}

// merge folds a polled batch into the cache and announces what was new.
func (p *Poller) merge(taskID string, records []*protocol.LogRecord) {
	fresh := p.cache.AddBatch(records)
	if len(fresh) == 0 {
		return
	}

	for _, rec := range fresh {
		reconcileStreamStatus(p.chunks, p.cache, rec)
	}

	p.broadcast.Broadcast(protocol.RecordBatchEvent{
		Metadata: protocol.Metadata{
			TaskID:  taskID,
			Version: protocol.CurrentProtocolVersion,
		},
		TaskID:  taskID,
		Records: fresh,
	})
}
