package config

import (
	"fmt"
	"sync"

	"github.com/voxway/voxway/pkg/capability"
)

// Store holds the live configuration and serves the management surface:
// CONFIG_GET reads a masked snapshot, CONFIG_SET merges a patch into the
// per-module config maps. It is safe for concurrent use.
//
// Only the `modules` section is mutable at runtime; server and logging
// settings require a restart (or a file change picked up by [Watcher]).
type Store struct {
	mu  sync.RWMutex
	cfg *Config
}

// NewStore wraps an already-validated Config.
func NewStore(cfg *Config) *Store {
	return &Store{cfg: cfg}
}

// Current returns the live config. Callers must not mutate it.
func (s *Store) Current() *Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// Replace swaps in a new config wholesale, used by the file watcher.
func (s *Store) Replace(cfg *Config) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = cfg
}

// Snapshot renders the config as a CONFIG_SNAPSHOT payload with every
// sensitive field masked.
func (s *Store) Snapshot() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	modules := make(map[string]any, len(s.cfg.Modules))
	for role, mod := range s.cfg.Modules {
		modules[role] = map[string]any{
			"adapter_type":  mod.AdapterType,
			"enable_module": mod.Enabled(),
			"config":        maskMap(mod.Config),
		}
	}
	return map[string]any{
		"modules": modules,
		"conversation": map[string]any{
			"system_prompt":       s.cfg.Conversation.SystemPrompt,
			"concat_on_interrupt": s.cfg.Conversation.Concat(),
		},
	}
}

// Apply merges a CONFIG_SET payload into the live config. The patch mirrors
// the snapshot shape: a top-level "modules" mapping of role → {"config": ...}.
// Patch values equal to [MaskedValue] keep the stored value. Unknown roles
// are rejected; nothing is applied when any part of the patch is invalid.
func (s *Store) Apply(patch map[string]any) error {
	modPatch, ok := patch["modules"].(map[string]any)
	if !ok {
		return fmt.Errorf("config: set payload must carry a modules mapping")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Validate before touching anything.
	for role := range modPatch {
		if !capability.Role(role).IsValid() {
			return fmt.Errorf("config: set unknown module role %q", role)
		}
		if _, ok := s.cfg.Modules[role]; !ok {
			return fmt.Errorf("config: set unconfigured module role %q", role)
		}
		if _, ok := modPatch[role].(map[string]any); !ok {
			return fmt.Errorf("config: set modules.%s must be a mapping", role)
		}
	}

	next := *s.cfg
	next.Modules = make(map[string]ModuleConfig, len(s.cfg.Modules))
	for role, mod := range s.cfg.Modules {
		next.Modules[role] = mod
	}

	for role, raw := range modPatch {
		entry := raw.(map[string]any)
		mod := next.Modules[role]
		if cfgPatch, ok := entry["config"].(map[string]any); ok {
			mod.Config = mergeKeepMasked(mod.Config, cfgPatch)
		}
		if enabled, ok := entry["enable_module"].(bool); ok {
			mod.EnableModule = &enabled
		}
		next.Modules[role] = mod
	}

	s.cfg = &next
	return nil
}
