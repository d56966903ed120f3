// Copyright (c) 2025-2026 Seliware Labs
// SPDX-License-Identifier: AGPL-3.0-or-later

// render.go - Markdown rendering for completed replies.
//
// Deltas are always streamed raw as they arrive; once a reply is complete
// it can be re-rendered as markdown when stdout is a TTY. Piped output is
// never touched.

package cli

import (
	"fmt"

	"github.com/charmbracelet/glamour"
)

var markdownRenderer *glamour.TermRenderer

func init() {
	wrap := GetTerminalWidth()
	if wrap > 100 {
		wrap = 100
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(wrap),
	)
	if err != nil {
		// Plain text fallback.
		markdownRenderer = nil
		return
	}
	markdownRenderer = r
}

// renderMarkdown renders content for terminal display, returning the
// original text when rendering is unavailable or fails.
func renderMarkdown(content string) string {
	if markdownRenderer == nil {
		return content
	}
	rendered, err := markdownRenderer.Render(content)
	if err != nil {
		return content
	}
	return rendered
}

// displayReply prints a completed reply, markdown-rendered on a TTY.
func displayReply(reply string) {
	if IsStdoutTTY() && ColorsEnabled() {
		fmt.Print(renderMarkdown(reply))
		return
	}
	fmt.Print(reply)
}
