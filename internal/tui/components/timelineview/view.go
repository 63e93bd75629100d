// Copyright (C) 2026 Loomdeck
// SPDX-License-Identifier: AGPL-3.0-or-later

package timelineview

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/loomdeck/loomdeck/internal/protocol"
	"github.com/loomdeck/loomdeck/internal/timeline"
)

// Styles holds all the styling for the component
type Styles struct {
	Header      lipgloss.Style
	TurnLabel   lipgloss.Style
	Prompt      lipgloss.Style
	Thought     lipgloss.Style
	ToolName    lipgloss.Style
	ToolArgs    lipgloss.Style
	Observation lipgloss.Style
	Success     lipgloss.Style
	Failed      lipgloss.Style
	Streaming   lipgloss.Style
	Dim         lipgloss.Style
}

// DefaultStyles returns the default color scheme
func DefaultStyles() Styles {
	return Styles{
		Header:      lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("75")),
		TurnLabel:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("241")),
		Prompt:      lipgloss.NewStyle().Foreground(lipgloss.Color("252")),
		Thought:     lipgloss.NewStyle().Foreground(lipgloss.Color("141")),
		ToolName:    lipgloss.NewStyle().Foreground(lipgloss.Color("75")).Bold(true),
		ToolArgs:    lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
		Observation: lipgloss.NewStyle().Foreground(lipgloss.Color("252")).PaddingLeft(4),
		Success:     lipgloss.NewStyle().Foreground(lipgloss.Color("35")),
		Failed:      lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		Streaming:   lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		Dim:         lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
	}
}

// renderEntries renders the whole timeline as a string
func (m Model) renderEntries() string {
	if len(m.entries) == 0 {
		return ""
	}

	var b strings.Builder

	if m.taskID != "" {
		b.WriteString(m.styles.Header.Render("Timeline: "+m.taskID) + "\n\n")
	}

	lastTurn := 0
	for i, e := range m.entries {
		if e.TurnNumber != lastTurn {
			if lastTurn != 0 {
				b.WriteString("\n")
			}
			b.WriteString(m.styles.TurnLabel.Render(fmt.Sprintf("── Turn %d ──", e.TurnNumber)) + "\n")
			lastTurn = e.TurnNumber
		}
		b.WriteString(m.renderEntry(i, e))
	}

	return b.String()
}

// renderEntry renders a single timeline entry
func (m Model) renderEntry(idx int, e timeline.Entry) string {
	switch e.Kind {
	case timeline.EntryPrompt:
		icon := m.styles.Dim.Render("»")
		return fmt.Sprintf("%s %s\n", icon, m.styles.Prompt.Render(m.clip(idx, e.Text)))

	case timeline.EntryThought:
		icon := m.styles.Thought.Render("◦")
		text := m.clip(idx, e.Text)
		if e.Streaming {
			text += " " + m.styles.Streaming.Render("▌")
		}
		return fmt.Sprintf("%s %s\n", icon, m.styles.Thought.Render(text))

	case timeline.EntryToolCall:
		icon := m.statusIcon(e.Status)
		name := m.styles.ToolName.Render(e.Command)
		args := ""
		if len(e.CommandArgs) > 0 {
			args = " " + m.styles.ToolArgs.Render(truncate(strings.Join(e.CommandArgs, " "), 60))
		}
		return fmt.Sprintf("%s %s%s\n", icon, name, args)

	case timeline.EntryObservation:
		text := m.clip(idx, e.Result)
		if text == "" {
			text = m.styles.Dim.Render("(no output)")
		}
		if e.DurationMS > 0 {
			text += " " + m.styles.Dim.Render(fmt.Sprintf("(%dms)", e.DurationMS))
		}
		return m.styles.Observation.Render(text) + "\n"

	default:
		return m.styles.Dim.Render(truncate(e.Text, 80)) + "\n"
	}
}

func (m Model) statusIcon(status protocol.RecordStatus) string {
	switch status {
	case protocol.StatusSuccess:
		return m.styles.Success.Render("✓")
	case protocol.StatusFailed, protocol.StatusCancelled:
		return m.styles.Failed.Render("✗")
	case protocol.StatusRunning:
		return m.styles.Streaming.Render("▸")
	default:
		return m.styles.Dim.Render("▸")
	}
}

// clip collapses long multi-line text unless the entry is expanded
func (m Model) clip(idx int, text string) string {
	lines := strings.Split(text, "\n")
	if m.expanded[idx] || len(lines) <= m.collapseAfter {
		return text
	}
	hidden := len(lines) - m.collapseAfter
	clipped := strings.Join(lines[:m.collapseAfter], "\n")
	return clipped + "\n" + m.styles.Dim.Render(fmt.Sprintf("... %d more lines (enter to expand)", hidden))
}

func truncate(s string, max int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.TrimSpace(s)
	// Cut on rune boundaries so multibyte text is never split mid-character.
	r := []rune(s)
	if len(r) > max {
		return string(r[:max-3]) + "..."
	}
	return s
}
