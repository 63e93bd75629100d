// Copyright (C) 2026 Loomdeck
// SPDX-License-Identifier: AGPL-3.0-or-later

package timelineview

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/loomdeck/loomdeck/internal/protocol"
	"github.com/loomdeck/loomdeck/internal/timeline"
)

func sampleEntries() []timeline.Entry {
	return []timeline.Entry{
		{Kind: timeline.EntryPrompt, TurnNumber: 1, TurnID: "A", Text: "list files"},
		{Kind: timeline.EntryThought, TurnNumber: 1, TurnID: "A", Text: "scanning"},
		{Kind: timeline.EntryToolCall, TurnNumber: 1, TurnID: "A", Command: "ls", CommandArgs: []string{"-la"}, Status: protocol.StatusSuccess},
		{Kind: timeline.EntryObservation, TurnNumber: 1, TurnID: "A", Result: "main.go", Status: protocol.StatusSuccess, DurationMS: 12},
		{Kind: timeline.EntryThought, TurnNumber: 2, TurnID: "B", Text: "still going", Streaming: true},
	}
}

func TestRenderEntries(t *testing.T) {
	m := New(120, 40).SetTaskID("task-1").SetEntries(sampleEntries())

	out := m.renderEntries()

	for _, want := range []string{"task-1", "Turn 1", "Turn 2", "list files", "scanning", "ls", "-la", "main.go", "(12ms)", "still going"} {
		if !strings.Contains(out, want) {
			t.Errorf("rendered timeline missing %q", want)
		}
	}
}

func TestRenderEntries_Empty(t *testing.T) {
	m := New(80, 24)
	if got := m.renderEntries(); got != "" {
		t.Errorf("expected empty render, got %q", got)
	}
	if !strings.Contains(m.View(), "Waiting for timeline...") {
		t.Error("empty model should show the waiting placeholder")
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Errorf("short input must pass through, got %q", got)
	}

	if got := truncate("abcdefghij", 8); got != "abcde..." {
		t.Errorf("expected %q, got %q", "abcde...", got)
	}

	// Multibyte text cuts on rune boundaries, never mid-character.
	got := truncate("日本語のテキストです", 8)
	if !utf8.ValidString(got) {
		t.Errorf("truncated output is not valid UTF-8: %q", got)
	}
	if got != "日本語のテ..." {
		t.Errorf("expected %q, got %q", "日本語のテ...", got)
	}

	if got := truncate("a\nb\nc", 80); got != "a b c" {
		t.Errorf("newlines must collapse to spaces, got %q", got)
	}
}

func TestClip(t *testing.T) {
	m := New(80, 24)
	m.collapseAfter = 2

	long := "l1\nl2\nl3\nl4"
	clipped := m.clip(0, long)
	if !strings.Contains(clipped, "2 more lines") {
		t.Errorf("expected collapse marker, got %q", clipped)
	}

	m.expanded[0] = true
	if got := m.clip(0, long); got != long {
		t.Errorf("expanded entry must render in full, got %q", got)
	}
}
