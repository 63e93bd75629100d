// Copyright (C) 2026 Loomdeck
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package replay loads recorded log scenarios from YAML files. Scenarios
// drive the dev TUI harness and tests without a running orchestrator.
package replay

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/loomdeck/loomdeck/internal/protocol"
)

// Scenario is a recorded slice of upstream traffic: the task's log records
// plus the scripted chunk messages that streamed alongside them.
type Scenario struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	TaskID      string         `yaml:"task_id"`
	Records     []RecordConfig `yaml:"records"`
	Chunks      []ChunkConfig  `yaml:"chunks"`
}

// RecordConfig is one recorded log record.
type RecordConfig struct {
	ID            string   `yaml:"id"`
	CorrelationID string   `yaml:"correlation_id"`
	EventSeq      int64    `yaml:"event_seq"`
	EventType     string   `yaml:"event_type"`
	Status        string   `yaml:"status"`
	StageID       string   `yaml:"stage_id"`
	StageName     string   `yaml:"stage_name"`
	Content       string   `yaml:"content"`
	Command       string   `yaml:"command"`
	CommandArgs   []string `yaml:"command_args"`
	Result        string   `yaml:"result"`
	DurationMS    int64    `yaml:"duration_ms"`
}

// ChunkConfig is one scripted live chunk message.
type ChunkConfig struct {
	LogID    string `yaml:"log_id"`
	Chunk    string `yaml:"chunk"`
	Finished bool   `yaml:"finished"`
	Status   string `yaml:"status"`
	// OffsetMS delays the chunk relative to replay start.
	OffsetMS int64 `yaml:"offset_ms"`
}

// LoadScenario loads and validates a scenario YAML file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("failed to parse scenario YAML: %w", err)
	}

	if err := sc.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &sc, nil
}

// Validate checks the scenario for errors.
func (s *Scenario) Validate() error {
	if s.Name == "" {
		return errors.New("scenario name is required")
	}
	if s.TaskID == "" {
		return errors.New("scenario task_id is required")
	}
	if len(s.Records) == 0 {
		return errors.New("scenario must have at least one record")
	}

	seenIDs := make(map[string]bool)
	for i, rec := range s.Records {
		if rec.ID == "" {
			return fmt.Errorf("record %d: id is required", i)
		}
		if seenIDs[rec.ID] {
			return fmt.Errorf("record %d: duplicate id %q", i, rec.ID)
		}
		seenIDs[rec.ID] = true
		if rec.EventType == "" {
			return fmt.Errorf("record %d: event_type is required", i)
		}
	}

	for i, ch := range s.Chunks {
		if ch.LogID == "" {
			return fmt.Errorf("chunk %d: log_id is required", i)
		}
	}

	return nil
}

// LogRecords converts the recorded entries into protocol records.
func (s *Scenario) LogRecords() []*protocol.LogRecord {
	records := make([]*protocol.LogRecord, len(s.Records))
	for i, rc := range s.Records {
		records[i] = &protocol.LogRecord{
			ID:            rc.ID,
			CorrelationID: rc.CorrelationID,
			EventSeq:      rc.EventSeq,
			EventType:     protocol.RecordType(rc.EventType),
			Status:        protocol.RecordStatus(rc.Status),
			TaskID:        s.TaskID,
			StageID:       rc.StageID,
			StageName:     rc.StageName,
			Content:       protocol.RecordContent{Text: rc.Content},
			Command:       rc.Command,
			CommandArgs:   rc.CommandArgs,
			Result:        rc.Result,
			DurationMS:    rc.DurationMS,
		}
	}
	return records
}

// ChunkMessages converts the scripted chunks into live channel messages,
// with timestamps offset from the given start instant.
func (s *Scenario) ChunkMessages(start time.Time) []protocol.StreamChunkMessage {
	msgs := make([]protocol.StreamChunkMessage, len(s.Chunks))
	for i, cc := range s.Chunks {
		msgs[i] = protocol.StreamChunkMessage{
			TaskID:    s.TaskID,
			LogID:     cc.LogID,
			Chunk:     cc.Chunk,
			Finished:  cc.Finished,
			Status:    protocol.RecordStatus(cc.Status),
			Timestamp: start.Add(time.Duration(cc.OffsetMS) * time.Millisecond),
		}
	}
	return msgs
}
