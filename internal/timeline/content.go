// Copyright (C) 2026 Loomdeck
// SPDX-License-Identifier: AGPL-3.0-or-later

package timeline

import (
	"regexp"
	"strings"

	"github.com/samber/lo"

	"github.com/loomdeck/loomdeck/internal/protocol"
)

// thoughtTagRe captures the first <thought>...</thought> pair. The closing
// tag is optional so a mid-stream body that has only opened the tag still
// scopes to end-of-text. First match wins; nested or repeated pairs are not
// interpreted further.
var thoughtTagRe = regexp.MustCompile(`(?s)<thought>(.*?)(</thought>|$)`)

// ExtractText flattens a record body into displayable text. Plain strings
// are trimmed and used as-is; block lists are flattened per item (text field
// first, then content field, bare strings count as text), empties dropped,
// and the rest joined with newlines. Malformed shapes degrade to "".
func ExtractText(c protocol.RecordContent) string {
	if !c.IsList {
		return strings.TrimSpace(c.Text)
	}
	parts := lo.FilterMap(c.Blocks, func(b protocol.ContentBlock, _ int) (string, bool) {
		s := strings.TrimSpace(b.Flatten())
		return s, s != ""
	})
	return strings.Join(parts, "\n")
}

// ExtractThought reads thought content from a record body: the flattened
// text, restricted to the first thought-tag pair when one is present.
func ExtractThought(c protocol.RecordContent) string {
	return ScopeThought(ExtractText(c))
}

// ScopeThought restricts text to the first thought-tag match. Text without
// an opening tag passes through unchanged.
func ScopeThought(text string) string {
	if !strings.Contains(text, "<thought>") {
		return text
	}
	m := thoughtTagRe.FindStringSubmatch(text)
	if m == nil {
		return text
	}
	return strings.TrimSpace(m[1])
}
