// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for slipstream.
//
// Supports TOML configuration with sensible defaults, environment variable
// overrides, and validation.
//
// Configuration file locations (in order of precedence):
//   - Environment variables (OPENAI_API_KEY, SLIPSTREAM_*)
//   - ~/.slipstream/config.toml
//   - Built-in defaults
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete slipstream configuration.
type Config struct {
	// General settings
	Version string `toml:"version"`

	// API configuration
	API APIConfig `toml:"api"`

	// Chat defaults
	Chat ChatConfig `toml:"chat"`

	// Media generation defaults
	Media MediaConfig `toml:"media"`

	// UI configuration
	UI UIConfig `toml:"ui"`
}

// APIConfig contains remote endpoint configuration.
type APIConfig struct {
	// BaseURL is the API root used for completions, speech and images.
	BaseURL string `toml:"base_url"`
	// Key is the client-held API credential. Prefer OPENAI_API_KEY over
	// storing this on disk.
	Key string `toml:"key"`
	// TimeoutSecs bounds non-streaming requests. Streaming requests are
	// unbounded and rely on cancellation instead.
	TimeoutSecs int `toml:"timeout_secs"`
	// RateLimitRPS caps outbound requests per second. Zero disables the cap.
	RateLimitRPS float64 `toml:"rate_limit_rps"`
}

// ChatConfig contains completion defaults.
type ChatConfig struct {
	// Model is the completion model used when no selection is persisted.
	Model string `toml:"model"`
	// TitleModel is the model used for conversation title generation.
	TitleModel string `toml:"title_model"`
	// SystemRole is the default system prompt for new conversations.
	SystemRole string `toml:"system_role"`
	// Mode selects the client mode, e.g. "GPT".
	Mode string `toml:"mode"`
}

// MediaConfig contains speech and image generation defaults.
type MediaConfig struct {
	// Voice is the default speech synthesis voice.
	Voice string `toml:"voice"`
	// SpeechModel is the text-to-speech model.
	SpeechModel string `toml:"speech_model"`
	// ImageModel is the image generation model.
	ImageModel string `toml:"image_model"`
	// Size is the default generated image size.
	Size string `toml:"size"`
	// Quality is the default generated image quality.
	Quality string `toml:"quality"`
}

// UIConfig contains terminal UI configuration.
type UIConfig struct {
	Theme      string `toml:"theme"`
	ShowTokens bool   `toml:"show_tokens"`
	Markdown   bool   `toml:"markdown"`
}

// =============================================================================
// DEFAULTS
// =============================================================================

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Version: "1.0.0",

		API: APIConfig{
			BaseURL:      "https://api.openai.com/v1",
			Key:          "",
			TimeoutSecs:  120,
			RateLimitRPS: 0,
		},

		Chat: ChatConfig{
			Model:      "gpt-3.5-turbo",
			TitleModel: "gpt-4-turbo-preview",
			SystemRole: "You are a helpful assistant.",
			Mode:       "GPT",
		},

		Media: MediaConfig{
			Voice:       "alloy",
			SpeechModel: "tts-1",
			ImageModel:  "dall-e-3",
			Size:        "1024x1024",
			Quality:     "standard",
		},

		UI: UIConfig{
			Theme:      "dark",
			ShowTokens: false,
			Markdown:   true,
		},
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the slipstream configuration directory path.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".slipstream"), nil
}

// ConfigPath returns the path to the TOML config file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// EnsureConfigDir ensures the config directory exists.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0755)
}

// ensureSecurePermissions checks and fixes permissions on config files.
// SECURITY: Config files should be 0600 (owner read/write only) to protect API keys.
func ensureSecurePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}

	mode := info.Mode().Perm()
	if mode != 0600 {
		if err := os.Chmod(path, 0600); err != nil {
			return fmt.Errorf("failed to fix insecure permissions (was %o): %w", mode, err)
		}
	}

	return nil
}

// =============================================================================
// LOAD / SAVE
// =============================================================================

// Load loads configuration from the config file, falling back to defaults.
// Environment overrides are applied last.
func Load() (*Config, error) {
	cfg := Default()

	path, err := ConfigPath()
	if err == nil {
		if _, statErr := os.Stat(path); statErr == nil {
			if err := LoadTOML(cfg, path); err != nil {
				return nil, fmt.Errorf("failed to load config: %w", err)
			}
		}
	}

	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// LoadTOML loads configuration from a TOML file.
// SECURITY: Checks and fixes file permissions on load.
func LoadTOML(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		// Log warning but don't fail - permissions might not be fixable on all systems
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	return nil
}

// LoadFromPath loads configuration from a specific file path with full validation.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()
	if err := LoadTOML(cfg, path); err != nil {
		return nil, err
	}
	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Save saves the configuration to the default TOML file.
// SECURITY: Creates config files with 0600 permissions (owner read/write only).
func Save(cfg *Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML saves the configuration to a TOML file.
func SaveTOML(cfg *Config, path string) error {
	if err := EnsureConfigDir(); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// SECURITY: Create file with restrictive permissions (0600 = owner read/write only)
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer file.Close()

	// SECURITY: Ensure permissions are correct even if file already existed
	if err := os.Chmod(path, 0600); err != nil {
		return fmt.Errorf("failed to set config file permissions: %w", err)
	}

	fmt.Fprintln(file, "# slipstream configuration file")
	fmt.Fprintln(file, "# Generated by slipstream - edit with care")
	fmt.Fprintln(file, "")

	encoder := toml.NewEncoder(file)
	if err := encoder.Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	return nil
}

// =============================================================================
// DEFAULTS / ENV OVERRIDES
// =============================================================================

// SetDefaults fills in zero-valued fields left blank by a partial config file.
func (c *Config) SetDefaults() {
	def := Default()

	if c.API.BaseURL == "" {
		c.API.BaseURL = def.API.BaseURL
	}
	if c.API.TimeoutSecs <= 0 {
		c.API.TimeoutSecs = def.API.TimeoutSecs
	}
	if c.Chat.Model == "" {
		c.Chat.Model = def.Chat.Model
	}
	if c.Chat.TitleModel == "" {
		c.Chat.TitleModel = def.Chat.TitleModel
	}
	if c.Chat.SystemRole == "" {
		c.Chat.SystemRole = def.Chat.SystemRole
	}
	if c.Chat.Mode == "" {
		c.Chat.Mode = def.Chat.Mode
	}
	if c.Media.Voice == "" {
		c.Media.Voice = def.Media.Voice
	}
	if c.Media.SpeechModel == "" {
		c.Media.SpeechModel = def.Media.SpeechModel
	}
	if c.Media.ImageModel == "" {
		c.Media.ImageModel = def.Media.ImageModel
	}
	if c.Media.Size == "" {
		c.Media.Size = def.Media.Size
	}
	if c.Media.Quality == "" {
		c.Media.Quality = def.Media.Quality
	}
	if c.UI.Theme == "" {
		c.UI.Theme = def.UI.Theme
	}
}

// ApplyEnvOverrides applies environment variable overrides to the config.
func (c *Config) ApplyEnvOverrides() {
	// OPENAI_API_KEY
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		c.API.Key = key
	}

	// SLIPSTREAM_API_KEY takes precedence over OPENAI_API_KEY
	if key := os.Getenv("SLIPSTREAM_API_KEY"); key != "" {
		c.API.Key = key
	}

	// SLIPSTREAM_BASE_URL
	if base := os.Getenv("SLIPSTREAM_BASE_URL"); base != "" {
		c.API.BaseURL = base
	}

	// SLIPSTREAM_MODEL
	if model := os.Getenv("SLIPSTREAM_MODEL"); model != "" {
		c.Chat.Model = model
	}

	// SLIPSTREAM_SHOW_TOKENS
	if show := os.Getenv("SLIPSTREAM_SHOW_TOKENS"); show != "" {
		c.UI.ShowTokens = show == "1" || strings.ToLower(show) == "true"
	}
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	var errs ValidateErrors

	// Validate base URL
	if c.API.BaseURL == "" {
		errs = append(errs, ValidationError{
			Field:   "api.base_url",
			Message: "must not be empty",
		})
	} else if u, err := url.Parse(c.API.BaseURL); err != nil || u.Scheme == "" {
		errs = append(errs, ValidationError{
			Field:   "api.base_url",
			Message: fmt.Sprintf("invalid URL '%s'", c.API.BaseURL),
		})
	}

	// Validate request timeout
	if c.API.TimeoutSecs < 0 {
		errs = append(errs, ValidationError{
			Field:   "api.timeout_secs",
			Message: "cannot be negative",
		})
	}

	// Validate rate limit
	if c.API.RateLimitRPS < 0 {
		errs = append(errs, ValidationError{
			Field:   "api.rate_limit_rps",
			Message: "cannot be negative",
		})
	}

	// Validate image size
	validSizes := map[string]bool{
		"256x256": true, "512x512": true,
		"1024x1024": true, "1792x1024": true, "1024x1792": true,
	}
	if c.Media.Size != "" && !validSizes[c.Media.Size] {
		errs = append(errs, ValidationError{
			Field:   "media.size",
			Message: fmt.Sprintf("invalid size '%s', must be one of: 256x256, 512x512, 1024x1024, 1792x1024, 1024x1792", c.Media.Size),
		})
	}

	// Validate image quality
	validQualities := map[string]bool{"standard": true, "hd": true}
	if c.Media.Quality != "" && !validQualities[strings.ToLower(c.Media.Quality)] {
		errs = append(errs, ValidationError{
			Field:   "media.quality",
			Message: fmt.Sprintf("invalid quality '%s', must be one of: standard, hd", c.Media.Quality),
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}
