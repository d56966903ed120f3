// Copyright (c) 2025-2026 Seliware Labs
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package openai implements the streaming chat-completions client.
//
// Client.Complete snapshots a conversation into a request, opens a streaming
// HTTP exchange against an OpenAI-compatible endpoint and exposes the reply
// as a lazy, single-pass sequence of text deltas. The assembled reply is
// appended back into the conversation exactly once, when the stream is
// exhausted successfully.
package openai
