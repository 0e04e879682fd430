package modules

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/voxway/voxway/internal/config"
	"github.com/voxway/voxway/pkg/capability"
)

// ErrFactoryNotRegistered is returned by Build when a configured adapter has
// no registered constructor.
var ErrFactoryNotRegistered = errors.New("modules: factory not registered")

// Factory builds one capability module from its configuration block. The
// root config is passed alongside so adapters can pick up cross-cutting
// settings such as the conversation system prompt.
type Factory func(mod config.ModuleConfig, root *config.Config) (capability.Lifecycle, error)

// Factories maps role/adapter pairs to constructors. The server core
// registers no concrete adapters itself; main wires them in, so the core
// never imports adapter packages. Safe for concurrent use.
type Factories struct {
	mu sync.RWMutex
	m  map[capability.Role]map[string]Factory
}

// NewFactories returns an empty, ready-to-use Factories.
func NewFactories() *Factories {
	return &Factories{m: make(map[capability.Role]map[string]Factory)}
}

// Register installs a constructor for the role/adapter pair. Subsequent
// calls with the same pair overwrite the previous registration.
func (f *Factories) Register(role capability.Role, adapter string, fn Factory) {
	f.mu.Lock()
	defer f.mu.Unlock()
	byAdapter, ok := f.m[role]
	if !ok {
		byAdapter = make(map[string]Factory)
		f.m[role] = byAdapter
	}
	byAdapter[adapter] = fn
}

// Build instantiates every enabled module named in cfg and registers it in
// reg. Roles absent from the config are skipped; a configured adapter with
// no factory is an error.
func (f *Factories) Build(reg *Registry, cfg *config.Config) error {
	for _, role := range []capability.Role{capability.RoleASR, capability.RoleLLM, capability.RoleTTS, capability.RoleVAD} {
		mod, ok := cfg.Modules[string(role)]
		if !ok {
			continue
		}
		if !mod.Enabled() {
			slog.Info("module disabled", "role", role, "adapter", mod.AdapterType)
			continue
		}

		f.mu.RLock()
		fn, ok := f.m[role][mod.AdapterType]
		f.mu.RUnlock()
		if !ok {
			return fmt.Errorf("%w: %s/%q", ErrFactoryNotRegistered, role, mod.AdapterType)
		}

		m, err := fn(mod, cfg)
		if err != nil {
			return fmt.Errorf("modules: build %s/%q: %w", role, mod.AdapterType, err)
		}
		if err := reg.Register(role, mod.AdapterType, m); err != nil {
			return err
		}
		slog.Info("module built", "role", role, "adapter", mod.AdapterType)
	}
	return nil
}
