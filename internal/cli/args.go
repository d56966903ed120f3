// Copyright (c) 2025-2026 Seliware Labs
// SPDX-License-Identifier: AGPL-3.0-or-later

// args.go - Argument parsing for the opchat command line.
//
// opchat has no subcommands: the only positional argument is the template
// name. Flags are accepted in both --flag value and --flag=value form.

package cli

import (
	"fmt"
	"strconv"
	"strings"
)

// Args holds the parsed command line.
type Args struct {
	// TemplateName is the positional template argument. Empty means the
	// configured default.
	TemplateName string

	// List prints the available templates and exits.
	List bool
	// Pick opens the interactive template selector.
	Pick bool

	// Model overrides the template's model when non-empty.
	Model string
	// KeepMessages overrides the template's context window when set.
	KeepMessages *int
	// PinFirst overrides the template's pin-first count when set.
	PinFirst *int

	// Quiet suppresses hints; Silent additionally suppresses headers.
	Quiet  bool
	Silent bool

	// Debug dumps outgoing requests and skipped frames to stderr.
	Debug bool
	// NoColor disables ANSI styling.
	NoColor bool
	// Help and Version short-circuit normal operation.
	Help    bool
	Version bool
}

// usageText is printed for -h/--help and on usage errors.
const usageText = `opchat - streaming chat client for OpenAI-compatible APIs

Usage:
  opchat [flags] [template]

Flags:
  -t              Pick a template interactively
  -l              List available templates
  -m MODEL        Override the template's model
  -k N            Keep at most N unpinned messages as context
  -p N            Pin the first N added messages
  -q              Quiet mode (no hints)
  -s              Silent mode (reply text only)
      --debug     Dump requests and skipped frames to stderr
      --no-color  Disable colored output
  -h, --help      Show this help
      --version   Show version

With stdin redirected, opchat reads one prompt from stdin, prints the
reply, and exits. On a terminal it starts an interactive session; exit
with an empty line or Ctrl+D.`

// Usage returns the help text.
func Usage() string {
	return usageText
}

// ParseArgs parses raw command-line arguments into Args.
// Unknown flags and malformed values are usage errors.
func ParseArgs(raw []string) (Args, error) {
	var args Args

	i := 0
	for i < len(raw) {
		arg := raw[i]

		if !strings.HasPrefix(arg, "-") {
			if args.TemplateName != "" {
				return args, fmt.Errorf("unexpected argument %q (template %q already given)", arg, args.TemplateName)
			}
			args.TemplateName = arg
			i++
			continue
		}

		// Split --flag=value form.
		name := arg
		value := ""
		hasValue := false
		if idx := strings.Index(arg, "="); idx >= 0 {
			name = arg[:idx]
			value = arg[idx+1:]
			hasValue = true
		}

		// takeValue consumes the inline or following argument.
		takeValue := func() (string, error) {
			if hasValue {
				return value, nil
			}
			if i+1 >= len(raw) {
				return "", fmt.Errorf("flag %s requires a value", name)
			}
			i++
			return raw[i], nil
		}

		switch name {
		case "-t":
			args.Pick = true
		case "-l":
			args.List = true
		case "-q":
			args.Quiet = true
		case "-s":
			args.Silent = true
		case "--debug":
			args.Debug = true
		case "--no-color":
			args.NoColor = true
		case "-h", "--help":
			args.Help = true
		case "--version":
			args.Version = true
		case "-m", "--model":
			v, err := takeValue()
			if err != nil {
				return args, err
			}
			args.Model = v
		case "-k", "--keep", "--keep-messages":
			v, err := takeValue()
			if err != nil {
				return args, err
			}
			n, err := parseNonNegative(name, v)
			if err != nil {
				return args, err
			}
			args.KeepMessages = &n
		case "-p", "--pin-first":
			v, err := takeValue()
			if err != nil {
				return args, err
			}
			n, err := parseNonNegative(name, v)
			if err != nil {
				return args, err
			}
			args.PinFirst = &n
		default:
			return args, fmt.Errorf("unknown flag %s", name)
		}
		i++
	}

	// Silent implies quiet.
	if args.Silent {
		args.Quiet = true
	}

	return args, nil
}

func parseNonNegative(flag, value string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("flag %s must be an integer, got %q", flag, value)
	}
	if n < 0 {
		return 0, fmt.Errorf("flag %s must be >= 0, got %d", flag, n)
	}
	return n, nil
}
