package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/voxway/voxway/pkg/capability"
)

// KnownAdapters lists known adapter names per capability role.
// Used by [Validate] to warn about unrecognised adapter names.
var KnownAdapters = map[string][]string{
	"asr": {"openai"},
	"llm": {"openai", "anthropic", "gemini", "ollama", "deepseek", "mistral", "groq", "llamacpp", "llamafile"},
	"tts": {"elevenlabs"},
	"vad": {"energy"},
}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Logging.Level != "" && !cfg.Logging.Level.IsValid() {
		errs = append(errs, fmt.Errorf("logging.level %q is invalid; valid values: debug, info, warn, error", cfg.Logging.Level))
	}
	if cfg.Logging.Format != "" && !cfg.Logging.Format.IsValid() {
		errs = append(errs, fmt.Errorf("logging.format %q is invalid; valid values: text, json", cfg.Logging.Format))
	}

	for role, mod := range cfg.Modules {
		if !capability.Role(role).IsValid() {
			errs = append(errs, fmt.Errorf("modules.%s: unknown role; valid values: asr, llm, tts, vad", role))
			continue
		}
		if mod.Enabled() && mod.AdapterType == "" {
			errs = append(errs, fmt.Errorf("modules.%s.adapter_type is required when the module is enabled", role))
			continue
		}
		validateAdapterName(role, mod.AdapterType)
	}

	if llm, ok := cfg.Modules["llm"]; !ok || !llm.Enabled() {
		slog.Warn("no LLM module configured; sessions will not be able to generate responses")
	}
	if tts, ok := cfg.Modules["tts"]; !ok || !tts.Enabled() {
		slog.Warn("no TTS module configured; responses will be text-only")
	}

	return errors.Join(errs...)
}

// validateAdapterName logs a warning if name is non-empty and not found in
// the [KnownAdapters] list for the given role.
func validateAdapterName(role, name string) {
	if name == "" {
		return
	}
	known, ok := KnownAdapters[role]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown adapter name — may be a typo or third-party adapter",
		"role", role,
		"name", name,
		"known", known,
	)
}
