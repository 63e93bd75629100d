// Copyright (C) 2026 Loomdeck
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package timelineview renders a reconstructed turn timeline as a
// scrollable terminal feed. It is used by the dev harness to inspect
// correlation output without a browser.
package timelineview

import (
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/loomdeck/loomdeck/internal/timeline"
)

// Model represents the timeline view component
type Model struct {
	taskID   string
	entries  []timeline.Entry
	viewport viewport.Model
	width    int
	height   int

	// Collapse long thoughts/observations above this many lines
	collapseAfter int
	expanded      map[int]bool

	styles Styles
}

// New creates a new timeline view model
func New(width, height int) Model {
	vp := viewport.New(width, height)
	vp.SetContent("Waiting for timeline...")

	return Model{
		viewport:      vp,
		width:         width,
		height:        height,
		collapseAfter: 8,
		expanded:      make(map[int]bool),
		styles:        DefaultStyles(),
	}
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "enter", " ":
			// Toggle expansion of every collapsed entry at once; per-entry
			// focus is not worth the complexity for a dev harness.
			m.toggleAll()
			m.refreshContent()
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.viewport.Width = msg.Width
		m.viewport.Height = msg.Height
		m.refreshContent()
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// SetTaskID sets the task identifier shown in the header
func (m Model) SetTaskID(taskID string) Model {
	m.taskID = taskID
	return m
}

// SetEntries replaces the rendered entries
func (m Model) SetEntries(entries []timeline.Entry) Model {
	m.entries = entries
	m.refreshContent()
	return m
}

// Entries returns the current entries
func (m Model) Entries() []timeline.Entry {
	return m.entries
}

// SetSize updates component dimensions
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.viewport.Width = width
	m.viewport.Height = height
	m.refreshContent()
}

// View renders the timeline
func (m Model) View() string {
	return m.viewport.View()
}

func (m *Model) refreshContent() {
	content := m.renderEntries()
	if content == "" {
		content = "Waiting for timeline..."
	}
	m.viewport.SetContent(content)
	m.viewport.GotoBottom()
}

func (m *Model) toggleAll() {
	for i := range m.entries {
		m.expanded[i] = !m.expanded[i]
	}
}
