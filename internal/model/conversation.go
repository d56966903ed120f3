// Copyright (c) 2025-2026 Seliware Labs
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import "time"

// Defaults applied when a conversation is created without explicit values.
const (
	// DefaultModel is the model used when no template or flag names one.
	DefaultModel = "gpt-4o-mini"

	// DefaultTemperature is the sampling temperature used by the built-in
	// template.
	DefaultTemperature = 0.42
)

// =============================================================================
// CONVERSATION TYPE
// =============================================================================

// Conversation holds an ordered chat history and its request parameters.
//
// Insertion order is chronological order and is the order used for request
// construction. The conversation exclusively owns its message list; the only
// external mutation is the streaming client appending the assembled assistant
// reply through Add.
type Conversation struct {
	// Model is the identifier sent in every request.
	Model string

	// Temperature is the sampling temperature, conventionally in [0,2].
	// It is not enforced at this layer.
	Temperature float64

	// KeepMessages bounds how many unpinned messages are transmitted per
	// request. 0 means unlimited, 1 keeps only the most recent unpinned
	// message. Pinned messages are always transmitted and never counted.
	KeepMessages int

	// PinFirst forces the first PinFirst messages added through Add to be
	// pinned. It is consulted at insertion time only and never applies
	// retroactively.
	PinFirst int

	messages []*Message
	added    int // messages inserted through Add, drives PinFirst

	updatedAt time.Time
}

// Params carries the initial parameters for a conversation, typically
// produced by a template. Seed messages become the initial history without
// passing through the Add counter, so PinFirst applies only to messages
// added afterwards.
type Params struct {
	Model        string
	Temperature  float64
	KeepMessages int
	PinFirst     int
	Seed         []*Message
}

// New creates a conversation from the given parameters, applying defaults
// for an empty model name.
func New(p Params) *Conversation {
	model := p.Model
	if model == "" {
		model = DefaultModel
	}

	conv := &Conversation{
		Model:        model,
		Temperature:  p.Temperature,
		KeepMessages: p.KeepMessages,
		PinFirst:     p.PinFirst,
		messages:     make([]*Message, 0, len(p.Seed)+8),
		updatedAt:    time.Now(),
	}
	conv.messages = append(conv.messages, p.Seed...)
	return conv
}

// =============================================================================
// MESSAGE MANAGEMENT
// =============================================================================

// Add appends a message to the end of the history. While fewer than PinFirst
// messages have been added this way, the message is force-pinned before it
// is appended. Any role and content are accepted.
func (c *Conversation) Add(msg *Message) {
	if c.added < c.PinFirst {
		msg.Pin = true
	}
	c.messages = append(c.messages, msg)
	c.added++
	c.updatedAt = time.Now()
}

// AddUser creates and appends a user message.
func (c *Conversation) AddUser(content string) *Message {
	msg := NewUserMessage(content)
	c.Add(msg)
	return msg
}

// AddAssistant creates and appends an assistant message.
func (c *Conversation) AddAssistant(content string) *Message {
	msg := NewAssistantMessage(content)
	c.Add(msg)
	return msg
}

// AddSystem creates and appends a system message.
func (c *Conversation) AddSystem(content string) *Message {
	msg := NewSystemMessage(content)
	c.Add(msg)
	return msg
}

// Messages returns the full chronological history.
func (c *Conversation) Messages() []*Message {
	return c.messages
}

// Len returns the number of messages in the history.
func (c *Conversation) Len() int {
	return len(c.messages)
}

// IsEmpty returns true if there are no messages.
func (c *Conversation) IsEmpty() bool {
	return len(c.messages) == 0
}

// LastAssistant returns the most recent assistant message, or nil.
func (c *Conversation) LastAssistant() *Message {
	for i := len(c.messages) - 1; i >= 0; i-- {
		if c.messages[i].Role == RoleAssistant {
			return c.messages[i]
		}
	}
	return nil
}

// Clear drops all unpinned messages. Pinned messages survive, so a
// cleared conversation keeps its persona.
func (c *Conversation) Clear() {
	kept := c.messages[:0]
	for _, msg := range c.messages {
		if msg.Pin {
			kept = append(kept, msg)
		}
	}
	c.messages = kept
	c.updatedAt = time.Now()
}

// UpdatedAt returns the time of the last history mutation.
func (c *Conversation) UpdatedAt() time.Time {
	return c.updatedAt
}

// =============================================================================
// REQUEST CONSTRUCTION
// =============================================================================

// RequestMessage is a role/content pair as serialized on the wire.
type RequestMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is the chat-completions request payload built from a conversation
// snapshot.
type Request struct {
	Model       string           `json:"model"`
	Temperature float64          `json:"temperature"`
	Messages    []RequestMessage `json:"messages"`
	Stream      bool             `json:"stream"`
}

// BuildRequest selects the message subset to transmit and packages it with
// the scalar parameters. The stored history is never mutated or reordered.
//
// Selection is a single backward scan: pinned messages are always included;
// an unpinned message is included only while the running count of included
// unpinned messages is below KeepMessages (or unconditionally when
// KeepMessages <= 0). Exclusion is per-message, so pinned messages older
// than an excluded one are still picked up. The result is emitted oldest
// first.
func (c *Conversation) BuildRequest() Request {
	selected := make([]*Message, 0, len(c.messages))
	kept := 0
	for i := len(c.messages) - 1; i >= 0; i-- {
		msg := c.messages[i]
		if msg.Pin {
			selected = append(selected, msg)
			continue
		}
		if c.KeepMessages <= 0 || kept < c.KeepMessages {
			selected = append(selected, msg)
			kept++
		}
	}

	// selected is newest-first; restore chronological order.
	out := make([]RequestMessage, 0, len(selected))
	for i := len(selected) - 1; i >= 0; i-- {
		out = append(out, RequestMessage{
			Role:    selected[i].Role.String(),
			Content: selected[i].Content,
		})
	}

	return Request{
		Model:       c.Model,
		Temperature: c.Temperature,
		Messages:    out,
		Stream:      true,
	}
}
