// Copyright (C) 2026 Loomdeck
// SPDX-License-Identifier: AGPL-3.0-or-later

// Dev harness for the timeline view component. Replays a recorded scenario
// (YAML path as first argument, built-in mock otherwise) step by step so the
// correlation and live-stream merging can be inspected in a terminal.
package main

import (
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/loomdeck/loomdeck/internal/livelog"
	"github.com/loomdeck/loomdeck/internal/protocol"
	"github.com/loomdeck/loomdeck/internal/replay"
	"github.com/loomdeck/loomdeck/internal/timeline"
	"github.com/loomdeck/loomdeck/internal/tui/components/timelineview"
)

const stepInterval = 300 * time.Millisecond

// step is one replay event: either a log record or a live chunk.
type step struct {
	record *protocol.LogRecord
	chunk  *replay.ChunkConfig
}

type tickMsg time.Time

type model struct {
	view    timelineview.Model
	chunks  *livelog.ChunkStore
	taskID  string
	steps   []step
	applied []*protocol.LogRecord
	pos     int
	done    bool
}

func main() {
	scenario := loadScenario()

	m := model{
		view:   timelineview.New(80, 24).SetTaskID(scenario.TaskID),
		chunks: livelog.NewChunkStore(livelog.DefaultMaxChunks),
		taskID: scenario.TaskID,
		steps:  buildSteps(scenario),
	}

	if _, err := tea.NewProgram(m, tea.WithAltScreen()).Run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func loadScenario() *replay.Scenario {
	if len(os.Args) > 1 {
		sc, err := replay.LoadScenario(os.Args[1])
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return sc
	}
	return mockScenario()
}

// buildSteps interleaves records and chunks by their replay order: records
// by event sequence, each chunk after the record whose stream it belongs to.
func buildSteps(sc *replay.Scenario) []step {
	records := sc.LogRecords()
	chunksByLog := make(map[string][]replay.ChunkConfig)
	for _, ch := range sc.Chunks {
		chunksByLog[ch.LogID] = append(chunksByLog[ch.LogID], ch)
	}

	var steps []step
	for _, rec := range records {
		steps = append(steps, step{record: rec})
		for i := range chunksByLog[rec.ID] {
			steps = append(steps, step{chunk: &chunksByLog[rec.ID][i]})
		}
	}
	return steps
}

func (m model) Init() tea.Cmd {
	return tick()
}

func tick() tea.Cmd {
	return tea.Tick(stepInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.view.SetSize(msg.Width, msg.Height-1)
	case tickMsg:
		if m.pos < len(m.steps) {
			m = m.apply(m.steps[m.pos])
			m.pos++
			m.refresh()
			return m, tick()
		}
		m.done = true
		return m, nil
	}

	var cmd tea.Cmd
	m.view, cmd = m.view.Update(msg)
	return m, cmd
}

func (m model) apply(s step) model {
	switch {
	case s.record != nil:
		if s.record.EventType == protocol.RecordTurnSent {
			m.chunks.Subscribe(s.record.ID)
		}
		m.applied = append(m.applied, s.record)
	case s.chunk != nil:
		m.chunks.Append(protocol.StreamChunkMessage{
			TaskID:    m.taskID,
			LogID:     s.chunk.LogID,
			Chunk:     s.chunk.Chunk,
			Finished:  s.chunk.Finished,
			Status:    protocol.RecordStatus(s.chunk.Status),
			Timestamp: time.Now(),
		})
	}
	return m
}

func (m *model) refresh() {
	turns := timeline.Correlate(m.applied)
	entries := timeline.BuildEntries(turns, m.chunks.Snapshot)
	m.view = m.view.SetEntries(entries)
}

func (m model) View() string {
	status := fmt.Sprintf("replaying %d/%d  (q to quit)", m.pos, len(m.steps))
	if m.done {
		status = "replay complete  (q to quit, enter to expand)"
	}
	return m.view.View() + "\n" + status
}

func mockScenario() *replay.Scenario {
	return &replay.Scenario{
		Name:   "mock",
		TaskID: "task-demo",
		Records: []replay.RecordConfig{
			{ID: "r1", CorrelationID: "turn-1", EventSeq: 1, EventType: "prompt_sent", Status: "sent", Content: "Find every caller of NewConfig and list the files."},
			{ID: "r2", CorrelationID: "turn-1", EventSeq: 2, EventType: "turn_sent", Status: "sent", Content: "Find every caller of NewConfig"},
			{ID: "r3", CorrelationID: "turn-1", EventSeq: 3, EventType: "tool_call_executed", Status: "success", Command: "grep", CommandArgs: []string{"-r", "NewConfig", "."}, Result: "internal/config/config.go\ncmd/server/main.go", DurationMS: 42},
			{ID: "r4", CorrelationID: "turn-1", EventSeq: 4, EventType: "turn_received", Status: "success", Content: "<thought>Two call sites, both expected.</thought>Found 2 callers."},
			{ID: "r5", CorrelationID: "turn-2", EventSeq: 5, EventType: "turn_sent", Status: "sent", Content: "Summarize the findings"},
		},
		Chunks: []replay.ChunkConfig{
			{LogID: "r2", Chunk: "<thought>Scanning the tree"},
			{LogID: "r2", Chunk: " for call sites...</thought>"},
			{LogID: "r5", Chunk: "<thought>Both callers pass a literal path"},
			{LogID: "r5", Chunk: ", so the default search list is unused."},
		},
	}
}
