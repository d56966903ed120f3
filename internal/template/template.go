// Copyright (c) 2025-2026 Seliware Labs
// SPDX-License-Identifier: AGPL-3.0-or-later

package template

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/seliware/opchat/internal/model"
)

// DefaultName is the name of the built-in preset.
const DefaultName = "assistant"

// defaultSystemPrompt seeds the built-in preset's conversation.
const defaultSystemPrompt = `Opal is a helpful assistant.
Opal answers as truthfully as possible and asks for more context when the user's intention is unclear.
Opal keeps answers concise unless the user asks for detail.`

// Error variables for preset lookup and loading.
var (
	// ErrNotFound indicates the requested preset name does not exist.
	ErrNotFound = errors.New("template not found")
)

// =============================================================================
// PRESET STRUCTURES
// =============================================================================

// MessageDef is a seed message as written in the template file.
type MessageDef struct {
	Role    string `yaml:"role"`
	Content string `yaml:"content"`
	Pin     bool   `yaml:"pin"`
}

// Definition enumerates the recognized conversation parameters of a preset.
// Unknown keys in the file are rejected at decode time rather than silently
// carried along.
type Definition struct {
	Model        string       `yaml:"model"`
	Temperature  *float64     `yaml:"temperature"`
	KeepMessages int          `yaml:"keep_messages"`
	PinFirst     int          `yaml:"pin_first"`
	Messages     []MessageDef `yaml:"messages"`
}

// Template is a named preset producing initial conversation parameters.
type Template struct {
	Name        string     `yaml:"name"`
	Description string     `yaml:"description"`
	Definition  Definition `yaml:"template"`
}

// validate checks a decoded preset and normalizes its parameters.
func (t *Template) validate() error {
	if t.Name == "" {
		return errors.New("template has no name")
	}
	if t.Definition.KeepMessages < 0 {
		return fmt.Errorf("template %q: keep_messages must be >= 0", t.Name)
	}
	if t.Definition.PinFirst < 0 {
		return fmt.Errorf("template %q: pin_first must be >= 0", t.Name)
	}
	if temp := t.Definition.Temperature; temp != nil && (*temp < 0 || *temp > 2) {
		return fmt.Errorf("template %q: temperature %v outside [0,2]", t.Name, *temp)
	}
	for i, msg := range t.Definition.Messages {
		if !model.Role(msg.Role).Valid() {
			return fmt.Errorf("template %q: message %d has unknown role %q", t.Name, i, msg.Role)
		}
	}
	return nil
}

// Overrides carries command-line values that take precedence over the
// preset's own parameters. Pointer fields distinguish "not given" from an
// explicit zero.
type Overrides struct {
	Model        string
	KeepMessages *int
	PinFirst     *int
}

// Conversation instantiates a fresh conversation from the preset. Seed
// messages become the initial history without consuming the pin-first
// insertion budget.
func (t *Template) Conversation(ov Overrides) *model.Conversation {
	def := t.Definition

	temperature := model.DefaultTemperature
	if def.Temperature != nil {
		temperature = *def.Temperature
	}

	params := model.Params{
		Model:        def.Model,
		Temperature:  temperature,
		KeepMessages: def.KeepMessages,
		PinFirst:     def.PinFirst,
	}
	if ov.Model != "" {
		params.Model = ov.Model
	}
	if ov.KeepMessages != nil {
		params.KeepMessages = *ov.KeepMessages
	}
	if ov.PinFirst != nil {
		params.PinFirst = *ov.PinFirst
	}

	for _, seed := range def.Messages {
		msg := model.NewMessage(model.Role(seed.Role), seed.Content)
		msg.Pin = seed.Pin
		params.Seed = append(params.Seed, msg)
	}

	return model.New(params)
}

// Default returns the built-in preset.
func Default() *Template {
	temperature := model.DefaultTemperature
	return &Template{
		Name:        DefaultName,
		Description: "A conversation with the assistant",
		Definition: Definition{
			Model:       model.DefaultModel,
			Temperature: &temperature,
			Messages: []MessageDef{
				{Role: "system", Pin: true, Content: defaultSystemPrompt},
			},
		},
	}
}

// =============================================================================
// MANAGER
// =============================================================================

// Manager holds the ordered collection of presets for one process run.
type Manager struct {
	order []string
	tpls  map[string]*Template
}

// Load reads presets from the given YAML file. A missing file is not an
// error: the manager then contains only the built-in preset. The built-in
// preset is always present and always listed first, but a file entry with
// the same name replaces its contents.
func Load(path string) (*Manager, error) {
	mgr := &Manager{tpls: make(map[string]*Template)}

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			mgr.insert(Default())
			return mgr, nil
		}
		return nil, fmt.Errorf("read templates: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)

	var loaded []*Template
	if err := dec.Decode(&loaded); err != nil {
		// An empty file decodes to nothing at all.
		if !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("parse templates: %w", err)
		}
	}

	for i, tpl := range loaded {
		if tpl == nil {
			return nil, fmt.Errorf("templates: entry %d is empty", i+1)
		}
		if err := tpl.validate(); err != nil {
			return nil, err
		}
	}

	if !containsName(loaded, DefaultName) {
		mgr.insert(Default())
	}
	for _, tpl := range loaded {
		mgr.insert(tpl)
	}

	// Keep the default preset first regardless of file order.
	for i, name := range mgr.order {
		if name == DefaultName && i > 0 {
			mgr.order = append(mgr.order[:i], mgr.order[i+1:]...)
			mgr.order = append([]string{DefaultName}, mgr.order...)
			break
		}
	}

	return mgr, nil
}

func containsName(tpls []*Template, name string) bool {
	for _, tpl := range tpls {
		if tpl.Name == name {
			return true
		}
	}
	return false
}

func (m *Manager) insert(tpl *Template) {
	if _, exists := m.tpls[tpl.Name]; !exists {
		m.order = append(m.order, tpl.Name)
	}
	m.tpls[tpl.Name] = tpl
}

// List returns all presets in display order.
func (m *Manager) List() []*Template {
	out := make([]*Template, 0, len(m.order))
	for _, name := range m.order {
		out = append(out, m.tpls[name])
	}
	return out
}

// Get returns the preset with the given name.
func (m *Manager) Get(name string) (*Template, error) {
	tpl, ok := m.tpls[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return tpl, nil
}

// Filter returns the presets whose name or description contains the query,
// case-insensitively. An empty query matches everything.
func (m *Manager) Filter(query string) []*Template {
	if query == "" {
		return m.List()
	}
	query = strings.ToLower(query)

	var out []*Template
	for _, name := range m.order {
		tpl := m.tpls[name]
		if strings.Contains(strings.ToLower(tpl.Name), query) ||
			strings.Contains(strings.ToLower(tpl.Description), query) {
			out = append(out, tpl)
		}
	}
	return out
}

// Len returns the number of presets.
func (m *Manager) Len() int {
	return len(m.order)
}
