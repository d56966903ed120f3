// Copyright (c) 2025-2026 Seliware Labs
// SPDX-License-Identifier: AGPL-3.0-or-later

// errors.go - Error display and exit-code mapping for the opchat CLI.
//
// Error taxonomy:
//   - configuration errors (missing key, unknown template): fatal before
//     any network call, exit 1
//   - transport errors (connect failure, non-2xx status): fatal for the
//     current run, exit 1
//   - user interruption: clean exit 0, never reported as a failure
//   - usage errors (bad flags): exit 2 with the usage text

package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/seliware/opchat/internal/config"
	"github.com/seliware/opchat/internal/openai"
	"github.com/seliware/opchat/internal/template"
)

const (
	// ExitSuccess indicates a normal run or a clean interrupt.
	ExitSuccess = 0
	// ExitError indicates a configuration, template, or transport failure.
	ExitError = 1
	// ExitUsageError indicates invalid flags or arguments.
	ExitUsageError = 2
)

// ErrInterrupted marks a user-initiated cancellation of the whole run.
var ErrInterrupted = errors.New("interrupted")

// ExitCode maps an error to the process exit code.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitSuccess
	case errors.Is(err, ErrInterrupted), errors.Is(err, context.Canceled):
		return ExitSuccess
	default:
		return ExitError
	}
}

// PrintError writes a styled error to stderr. Interrupts are silent.
func PrintError(err error) {
	if err == nil || ExitCode(err) == ExitSuccess {
		return
	}
	fmt.Fprintf(os.Stderr, "%s %v\n", ErrorStyle.Render("error:"), err)

	// Actionable hints for the common setup failures.
	switch {
	case errors.Is(err, config.ErrAPIKeyNotFound):
		fmt.Fprintln(os.Stderr, DimStyle.Render("hint: export OPCHAT_API_KEY=sk-... and retry"))
	case errors.Is(err, template.ErrNotFound):
		fmt.Fprintln(os.Stderr, DimStyle.Render("hint: run opchat -l to list available templates"))
	case errors.Is(err, openai.ErrAuthFailed):
		fmt.Fprintln(os.Stderr, DimStyle.Render("hint: the server rejected the API key"))
	case errors.Is(err, openai.ErrRateLimited):
		fmt.Fprintln(os.Stderr, DimStyle.Render("hint: rate limited, wait a moment and retry"))
	}
}
