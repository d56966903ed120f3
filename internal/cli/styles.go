// Copyright (c) 2025-2026 Seliware Labs
// SPDX-License-Identifier: AGPL-3.0-or-later

// styles.go - Shared lipgloss styles for all opchat output.
//
// Colors are disabled automatically for piped output and when NO_COLOR is
// set; --no-color forces them off on a TTY as well.

package cli

import (
	"github.com/charmbracelet/lipgloss"
)

func init() {
	lipgloss.SetColorProfile(GetColorProfile())
}

// lipglossReprofile re-applies the color profile after DisableColors.
func lipglossReprofile() {
	lipgloss.SetColorProfile(GetColorProfile())
}

var (
	// HeaderStyle marks the USER and ASSISTANT turn headers.
	HeaderStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39")) // Cyan

	// PromptStyle styles the interactive input prompt.
	PromptStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39"))

	// TitleStyle is used for the template list heading.
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("255"))

	// NameStyle highlights template names in listings.
	NameStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("82")) // Bright green

	// ErrorStyle is used for error messages.
	ErrorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("196")) // Red

	// WarningStyle is used for non-fatal notices.
	WarningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")) // Yellow/Orange

	// DimStyle is used for hints and secondary information.
	DimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("242")) // Dim gray
)
