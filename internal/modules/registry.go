// Package modules holds the process-wide capability registry.
//
// The registry maps each capability role ("asr", "llm", "tts", "vad") to the
// single module instance serving that role. It is populated at startup from
// configuration, torn down at shutdown, and queried by the orchestrator at
// turn time — not at session creation — so a module can be hot-swapped
// between turns without touching live sessions.
package modules

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/voxway/voxway/pkg/capability"
	"github.com/voxway/voxway/pkg/capability/asr"
	"github.com/voxway/voxway/pkg/capability/llm"
	"github.com/voxway/voxway/pkg/capability/tts"
	"github.com/voxway/voxway/pkg/capability/vad"
)

// ErrNotRegistered is returned by typed getters when no module is registered
// under the requested role.
var ErrNotRegistered = errors.New("modules: not registered")

// entry pairs a module with the adapter name it was built from, for status
// reporting.
type entry struct {
	module  capability.Lifecycle
	adapter string
	ready   bool
}

// Status describes one registered module in a MODULE_STATUS_REPORT.
type Status struct {
	Role    string `json:"role"`
	Adapter string `json:"adapter"`
	Ready   bool   `json:"ready"`
}

// Registry is the process-wide role → module map. It is safe for concurrent
// use; lookups take a read lock so turn-time resolution stays cheap.
type Registry struct {
	mu      sync.RWMutex
	entries map[capability.Role]*entry
}

// NewRegistry returns an empty, ready-to-use Registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[capability.Role]*entry)}
}

// Register installs m under role, replacing any previous registration. The
// adapter name is kept for status reporting. Register does not call Setup;
// use SetupAll or set up the module before registering when hot-swapping.
func (r *Registry) Register(role capability.Role, adapter string, m capability.Lifecycle) error {
	if !role.IsValid() {
		return fmt.Errorf("modules: unknown role %q", role)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if old, ok := r.entries[role]; ok {
		if err := old.module.Close(); err != nil {
			slog.Warn("modules: close replaced module", "role", role, "adapter", old.adapter, "err", err)
		}
	}
	r.entries[role] = &entry{module: m, adapter: adapter}
	return nil
}

// SetupAll calls Setup on every registered module. The first failure aborts
// and is returned; a capability that cannot become ready at startup is fatal.
func (r *Registry) SetupAll(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for role, e := range r.entries {
		if err := e.module.Setup(ctx); err != nil {
			return fmt.Errorf("modules: setup %s (%s): %w", role, e.adapter, err)
		}
		e.ready = true
		slog.Info("module ready", "role", role, "adapter", e.adapter)
	}
	return nil
}

// CloseAll closes every registered module and clears the registry. Errors are
// joined; close continues past failures.
func (r *Registry) CloseAll() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var errs []error
	for role, e := range r.entries {
		if err := e.module.Close(); err != nil {
			errs = append(errs, fmt.Errorf("modules: close %s: %w", role, err))
		}
	}
	r.entries = make(map[capability.Role]*entry)
	return errors.Join(errs...)
}

// StatusReport returns one Status per registered role, for the management
// surface and the readiness probe.
func (r *Registry) StatusReport() []Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Status, 0, len(r.entries))
	for _, role := range []capability.Role{capability.RoleASR, capability.RoleLLM, capability.RoleTTS, capability.RoleVAD} {
		if e, ok := r.entries[role]; ok {
			out = append(out, Status{Role: string(role), Adapter: e.adapter, Ready: e.ready})
		}
	}
	return out
}

// lookup returns the module registered under role.
func (r *Registry) lookup(role capability.Role) (capability.Lifecycle, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[role]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotRegistered, role)
	}
	return e.module, nil
}

// ASR returns the registered speech recognition provider.
func (r *Registry) ASR() (asr.Provider, error) {
	m, err := r.lookup(capability.RoleASR)
	if err != nil {
		return nil, err
	}
	p, ok := m.(asr.Provider)
	if !ok {
		return nil, fmt.Errorf("modules: %s module does not implement asr.Provider", capability.RoleASR)
	}
	return p, nil
}

// LLM returns the registered chat model provider.
func (r *Registry) LLM() (llm.Provider, error) {
	m, err := r.lookup(capability.RoleLLM)
	if err != nil {
		return nil, err
	}
	p, ok := m.(llm.Provider)
	if !ok {
		return nil, fmt.Errorf("modules: %s module does not implement llm.Provider", capability.RoleLLM)
	}
	return p, nil
}

// TTS returns the registered speech synthesis provider.
func (r *Registry) TTS() (tts.Provider, error) {
	m, err := r.lookup(capability.RoleTTS)
	if err != nil {
		return nil, err
	}
	p, ok := m.(tts.Provider)
	if !ok {
		return nil, fmt.Errorf("modules: %s module does not implement tts.Provider", capability.RoleTTS)
	}
	return p, nil
}

// VAD returns the registered voice activity detector.
func (r *Registry) VAD() (vad.Detector, error) {
	m, err := r.lookup(capability.RoleVAD)
	if err != nil {
		return nil, err
	}
	d, ok := m.(vad.Detector)
	if !ok {
		return nil, fmt.Errorf("modules: %s module does not implement vad.Detector", capability.RoleVAD)
	}
	return d, nil
}
