// Copyright (c) 2025-2026 Seliware Labs
// SPDX-License-Identifier: AGPL-3.0-or-later

package template

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seliware/opchat/internal/model"
)

const sampleTemplates = `
- name: reviewer
  description: Code review persona
  template:
    model: gpt-4o
    temperature: 0.2
    keep_messages: 6
    pin_first: 1
    messages:
      - role: system
        pin: true
        content: You review code.
- name: translator
  description: English to German
  template:
    messages:
      - role: system
        pin: true
        content: Translate everything to German.
      - role: user
        content: "Hello"
      - role: assistant
        content: "Hallo"
`

func writeTemplates(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "chat_templates.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

// =============================================================================
// LOADING
// =============================================================================

func TestLoadMissingFileGivesBuiltin(t *testing.T) {
	mgr, err := Load(filepath.Join(t.TempDir(), "nope.yml"))
	require.NoError(t, err)

	assert.Equal(t, 1, mgr.Len())
	tpl, err := mgr.Get(DefaultName)
	require.NoError(t, err)
	assert.Equal(t, DefaultName, tpl.Name)
}

func TestLoadFileAddsBuiltinFirst(t *testing.T) {
	mgr, err := Load(writeTemplates(t, sampleTemplates))
	require.NoError(t, err)

	require.Equal(t, 3, mgr.Len())
	list := mgr.List()
	assert.Equal(t, DefaultName, list[0].Name, "built-in preset stays first")
	assert.Equal(t, "reviewer", list[1].Name)
	assert.Equal(t, "translator", list[2].Name)
}

func TestLoadFileOverridesBuiltin(t *testing.T) {
	mgr, err := Load(writeTemplates(t, `
- name: assistant
  description: Custom default
  template:
    messages:
      - role: system
        pin: true
        content: Custom persona.
`))
	require.NoError(t, err)

	require.Equal(t, 1, mgr.Len())
	tpl, err := mgr.Get(DefaultName)
	require.NoError(t, err)
	assert.Equal(t, "Custom default", tpl.Description)
}

func TestLoadRejectsInvalidTemplates(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"missing name", "- template:\n    model: x\n"},
		{"negative keep", "- name: bad\n  template:\n    keep_messages: -1\n"},
		{"temperature out of range", "- name: bad\n  template:\n    temperature: 3.5\n"},
		{"unknown role", "- name: bad\n  template:\n    messages:\n      - role: robot\n        content: hi\n"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeTemplates(t, tc.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	// A typo'd parameter must fail loudly rather than silently running
	// with the default value.
	_, err := Load(writeTemplates(t, `
- name: typo
  template:
    keep_message: 5
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "keep_message")
}

func TestLoadRejectsEmptyListEntry(t *testing.T) {
	// A stray bare "-" line decodes to a nil entry; it must surface as a
	// load error, not a crash.
	_, err := Load(writeTemplates(t, "- name: ok\n  template: {}\n-\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty")
}

func TestLoadEmptyFileGivesBuiltin(t *testing.T) {
	mgr, err := Load(writeTemplates(t, ""))
	require.NoError(t, err)

	assert.Equal(t, 1, mgr.Len())
	_, err = mgr.Get(DefaultName)
	assert.NoError(t, err)
}

// =============================================================================
// LOOKUP
// =============================================================================

func TestGetUnknownName(t *testing.T) {
	mgr, err := Load(writeTemplates(t, sampleTemplates))
	require.NoError(t, err)

	_, err = mgr.Get("nonexistent")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFilter(t *testing.T) {
	mgr, err := Load(writeTemplates(t, sampleTemplates))
	require.NoError(t, err)

	matches := mgr.Filter("german")
	require.Len(t, matches, 1)
	assert.Equal(t, "translator", matches[0].Name)

	assert.Len(t, mgr.Filter(""), 3)
	assert.Empty(t, mgr.Filter("zzz"))
}

// =============================================================================
// CONVERSATION INSTANTIATION
// =============================================================================

func TestConversationFromTemplate(t *testing.T) {
	mgr, err := Load(writeTemplates(t, sampleTemplates))
	require.NoError(t, err)

	tpl, err := mgr.Get("reviewer")
	require.NoError(t, err)

	conv := tpl.Conversation(Overrides{})
	assert.Equal(t, "gpt-4o", conv.Model)
	assert.InDelta(t, 0.2, conv.Temperature, 1e-9)
	assert.Equal(t, 6, conv.KeepMessages)
	assert.Equal(t, 1, conv.PinFirst)

	require.Equal(t, 1, conv.Len())
	seed := conv.Messages()[0]
	assert.Equal(t, model.RoleSystem, seed.Role)
	assert.True(t, seed.Pin)
}

func TestConversationDefaultsTemperature(t *testing.T) {
	mgr, err := Load(writeTemplates(t, sampleTemplates))
	require.NoError(t, err)

	tpl, err := mgr.Get("translator")
	require.NoError(t, err)

	conv := tpl.Conversation(Overrides{})
	assert.InDelta(t, model.DefaultTemperature, conv.Temperature, 1e-9)
	assert.Equal(t, 3, conv.Len(), "all seed messages become history")
}

func TestConversationAppliesOverrides(t *testing.T) {
	keep := 2
	pin := 0
	tpl := Default()

	conv := tpl.Conversation(Overrides{
		Model:        "gpt-4o",
		KeepMessages: &keep,
		PinFirst:     &pin,
	})

	assert.Equal(t, "gpt-4o", conv.Model)
	assert.Equal(t, 2, conv.KeepMessages)
	assert.Equal(t, 0, conv.PinFirst)
}

func TestDefaultBuildsUsableConversation(t *testing.T) {
	conv := Default().Conversation(Overrides{})

	assert.Equal(t, model.DefaultModel, conv.Model)
	require.Equal(t, 1, conv.Len())
	assert.True(t, conv.Messages()[0].Pin, "persona message must be pinned")

	req := conv.BuildRequest()
	require.Len(t, req.Messages, 1)
	assert.Equal(t, "system", req.Messages[0].Role)
}
