// Copyright (c) 2025-2026 Seliware Labs
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations and messages.
//
// A Conversation owns an ordered message history together with the context
// window selection policy: pinned messages are always transmitted, unpinned
// ones only while a bounded tail budget lasts. BuildRequest produces the
// exact payload sent to the chat-completions endpoint without mutating the
// stored history.
package model
