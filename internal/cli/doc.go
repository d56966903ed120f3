// Copyright (c) 2025-2026 Seliware Labs
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the opchat command-line surface.
//
// It covers argument parsing, terminal detection, styled output, the
// interactive REPL, the one-shot stdin mode, and template listing and
// selection. The streaming and conversation logic lives in the openai and
// model packages; this package only drives them and renders their output.
package cli
