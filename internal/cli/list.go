// Copyright (c) 2025-2026 Seliware Labs
// SPDX-License-Identifier: AGPL-3.0-or-later

// list.go - Template listing and interactive selection.

package cli

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/seliware/opchat/internal/template"
	"github.com/seliware/opchat/internal/util"
)

// nameColumnWidth aligns descriptions in the template listing.
const nameColumnWidth = 18

// HandleList prints the available templates to stdout.
func HandleList(mgr *template.Manager) error {
	fmt.Println(TitleStyle.Render("Available templates"))
	for _, tpl := range mgr.List() {
		desc := tpl.Description
		if desc == "" {
			desc = util.FirstLine(systemPreview(tpl))
		}
		fmt.Printf("  %s %s\n",
			NameStyle.Render(util.PadWidth(tpl.Name, nameColumnWidth)),
			DimStyle.Render(util.FitWidth(desc, GetTerminalWidth()-nameColumnWidth-4)))
	}
	return nil
}

// systemPreview returns the first system message of a template, for
// listings where no description was given.
func systemPreview(tpl *template.Template) string {
	for _, msg := range tpl.Definition.Messages {
		if msg.Role == "system" {
			return msg.Content
		}
	}
	return ""
}

// PickTemplate prompts the user to choose a template interactively.
// An optional initial query narrows the candidates by substring match.
// Requires a TTY on stdin.
func PickTemplate(mgr *template.Manager, query string) (*template.Template, error) {
	if !IsTTY() {
		return nil, fmt.Errorf("interactive template selection requires a terminal")
	}

	candidates := mgr.List()
	if query != "" {
		candidates = mgr.Filter(query)
		if len(candidates) == 0 {
			return nil, fmt.Errorf("no template matches %q: %w", query, template.ErrNotFound)
		}
	}
	if len(candidates) == 1 {
		return candidates[0], nil
	}

	fmt.Println(TitleStyle.Render("Select a template"))
	for i, tpl := range candidates {
		fmt.Printf("  %s %s %s\n",
			DimStyle.Render(fmt.Sprintf("%2d)", i+1)),
			NameStyle.Render(util.PadWidth(tpl.Name, nameColumnWidth)),
			DimStyle.Render(util.FitWidth(tpl.Description, GetTerminalWidth()-nameColumnWidth-8)))
	}

	reader := bufio.NewReader(os.Stdin)
	for {
		fmt.Print(PromptStyle.Render("template> "))
		line, err := reader.ReadString('\n')
		if err != nil {
			return nil, ErrInterrupted
		}
		line = strings.TrimSpace(line)
		if line == "" {
			return nil, ErrInterrupted
		}

		// Accept a number or a name.
		if n, err := strconv.Atoi(line); err == nil {
			if n >= 1 && n <= len(candidates) {
				return candidates[n-1], nil
			}
			fmt.Fprintln(os.Stderr, WarningStyle.Render("out of range"))
			continue
		}
		if tpl, err := mgr.Get(line); err == nil {
			return tpl, nil
		}
		if matches := mgr.Filter(line); len(matches) == 1 {
			return matches[0], nil
		}
		fmt.Fprintln(os.Stderr, WarningStyle.Render("no such template"))
	}
}
