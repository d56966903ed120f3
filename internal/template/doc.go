// Copyright (c) 2025-2026 Seliware Labs
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package template loads named conversation presets.
//
// Presets live in chat_templates.yml in the user config directory and are
// decoded into explicit, validated structures at load time. A built-in
// default preset named "assistant" always exists, even with no file on disk.
// Presets are loaded once at startup and never mutated afterwards.
package template
