// Copyright (c) 2025-2026 Seliware Labs
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and credential discovery.
//
// Supports both TOML and JSON configuration formats with sensible defaults
// and environment variable overrides.
//
// Configuration file locations (in order of precedence):
//   - $OPCHAT_CONFIG_DIR/config.toml
//   - ~/.opchat/config.toml
//   - ~/.opchat/config.json
//   - Built-in defaults
//
// The loaded Config is an explicit value handed to the driver; there is no
// process-global mutable settings state.
package config

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

// File names inside the config directory.
const (
	tomlFileName      = "config.toml"
	jsonFileName      = "config.json"
	envFileName       = "env"
	templatesFileName = "chat_templates.yml"
	historyFileName   = "chat_history"
)

// envKeyPrimary and envKeyFallback are the environment variables consulted
// for the API key, in that order, before the env file is read.
const (
	envKeyPrimary  = "OPCHAT_API_KEY"
	envKeyFallback = "OPENAI_API_KEY"
)

// ErrAPIKeyNotFound indicates no credential could be discovered. This is
// fatal at startup: no network call is attempted without a key.
var ErrAPIKeyNotFound = errors.New("API key not found (set " + envKeyPrimary + ", " + envKeyFallback +
	", or add a line to the env file in the config directory)")

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete opchat configuration.
type Config struct {
	API  APIConfig  `toml:"api" json:"api"`
	Chat ChatConfig `toml:"chat" json:"chat"`
	UI   UIConfig   `toml:"ui" json:"ui"`
}

// APIConfig contains transport configuration.
type APIConfig struct {
	// BaseURL is the API server, without the /v1 path.
	BaseURL string `toml:"base_url" json:"base_url"`
	// Key is the bearer token. Usually left empty in the file in favor of
	// the environment or the env file.
	Key string `toml:"key" json:"key"`
	// ConnectTimeoutSecs bounds connection establishment.
	ConnectTimeoutSecs int `toml:"connect_timeout_secs" json:"connect_timeout_secs"`
	// HeaderTimeoutSecs bounds the wait for the first response byte.
	HeaderTimeoutSecs int `toml:"header_timeout_secs" json:"header_timeout_secs"`
	// RequestsPerMinute throttles completion requests. 0 disables.
	RequestsPerMinute int `toml:"requests_per_minute" json:"requests_per_minute"`
}

// ChatConfig contains conversation defaults.
type ChatConfig struct {
	// DefaultTemplate is the preset used when none is named on the
	// command line.
	DefaultTemplate string `toml:"default_template" json:"default_template"`
	// Model overrides the template's model when set.
	Model string `toml:"model" json:"model"`
}

// UIConfig contains presentation defaults, overridable by flags.
type UIConfig struct {
	// Quiet suppresses hints.
	Quiet bool `toml:"quiet" json:"quiet"`
	// Silent suppresses everything except the assistant reply. Implies
	// Quiet.
	Silent bool `toml:"silent" json:"silent"`
	// NoColor disables ANSI styling even on a TTY.
	NoColor bool `toml:"no_color" json:"no_color"`
	// Debug dumps outgoing requests and frame-decode failures to stderr.
	Debug bool `toml:"debug" json:"debug"`
	// Markdown re-renders completed replies as markdown on a TTY.
	Markdown bool `toml:"markdown" json:"markdown"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		API: APIConfig{
			BaseURL:            "https://api.openai.com",
			ConnectTimeoutSecs: 3,
			HeaderTimeoutSecs:  10,
		},
		Chat: ChatConfig{
			DefaultTemplate: "assistant",
		},
		UI: UIConfig{
			Markdown: true,
		},
	}
}

// =============================================================================
// LOADING
// =============================================================================

// Load reads the configuration file, falling back to defaults when none
// exists, and applies environment overrides.
func Load() (*Config, error) {
	cfg := Default()

	dir, err := Dir()
	if err != nil {
		return nil, err
	}

	tomlPath := filepath.Join(dir, tomlFileName)
	jsonPath := filepath.Join(dir, jsonFileName)

	switch {
	case fileExists(tomlPath):
		if _, err := toml.DecodeFile(tomlPath, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", tomlPath, err)
		}
	case fileExists(jsonPath):
		raw, err := os.ReadFile(jsonPath)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", jsonPath, err)
		}
		if err := json.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", jsonPath, err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides lets OPCHAT_* environment variables take precedence over
// file values.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("OPCHAT_BASE_URL"); v != "" {
		c.API.BaseURL = v
	}
	if v := os.Getenv("OPCHAT_DEFAULT_TEMPLATE"); v != "" {
		c.Chat.DefaultTemplate = v
	}
	if v := os.Getenv("OPCHAT_MODEL"); v != "" {
		c.Chat.Model = v
	}
	if v := os.Getenv("OPCHAT_REQUESTS_PER_MINUTE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			c.API.RequestsPerMinute = n
		}
	}
	if v := os.Getenv("NO_COLOR"); v != "" {
		c.UI.NoColor = true
	}
	if v := os.Getenv("OPCHAT_DEBUG"); v == "1" || strings.EqualFold(v, "true") {
		c.UI.Debug = true
	}
}

func (c *Config) validate() error {
	if c.API.BaseURL == "" {
		return errors.New("api.base_url must not be empty")
	}
	if !strings.HasPrefix(c.API.BaseURL, "http://") && !strings.HasPrefix(c.API.BaseURL, "https://") {
		return fmt.Errorf("api.base_url %q must be an http(s) URL", c.API.BaseURL)
	}
	if c.API.ConnectTimeoutSecs <= 0 {
		return errors.New("api.connect_timeout_secs must be positive")
	}
	if c.API.HeaderTimeoutSecs <= 0 {
		return errors.New("api.header_timeout_secs must be positive")
	}
	if c.API.RequestsPerMinute < 0 {
		return errors.New("api.requests_per_minute must be >= 0")
	}
	return nil
}

// =============================================================================
// CREDENTIAL DISCOVERY
// =============================================================================

// APIKey resolves the bearer token: environment first, then the config file
// value, then the env file in the config directory. A key that cannot be
// found is ErrAPIKeyNotFound.
func (c *Config) APIKey() (string, error) {
	if v := strings.TrimSpace(os.Getenv(envKeyPrimary)); v != "" {
		return v, nil
	}
	if v := strings.TrimSpace(os.Getenv(envKeyFallback)); v != "" {
		return v, nil
	}
	if v := strings.TrimSpace(c.API.Key); v != "" {
		return v, nil
	}

	dir, err := Dir()
	if err != nil {
		return "", err
	}
	key, err := keyFromEnvFile(filepath.Join(dir, envFileName))
	if err != nil {
		return "", err
	}
	return key, nil
}

// keyFromEnvFile scans a KEY=VALUE file for one of the recognized key names.
func keyFromEnvFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", ErrAPIKeyNotFound
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		name, value, ok := strings.Cut(scanner.Text(), "=")
		if !ok {
			continue
		}
		name = strings.TrimSpace(name)
		if name == envKeyPrimary || name == envKeyFallback {
			if value = strings.TrimSpace(value); value != "" {
				return value, nil
			}
		}
	}
	return "", ErrAPIKeyNotFound
}

// =============================================================================
// PATHS
// =============================================================================

// Dir returns the opchat configuration directory, honoring
// OPCHAT_CONFIG_DIR for tests and unusual setups.
func Dir() (string, error) {
	if dir := os.Getenv("OPCHAT_CONFIG_DIR"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, ".opchat"), nil
}

// EnsureDir creates the configuration directory if needed.
func EnsureDir() error {
	dir, err := Dir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0700)
}

// TemplatesPath returns the path of the preset file.
func TemplatesPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, templatesFileName), nil
}

// HistoryPath returns the path of the interactive input history file.
func HistoryPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, historyFileName), nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
