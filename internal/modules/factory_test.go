package modules

import (
	"errors"
	"testing"

	"github.com/voxway/voxway/internal/config"
	"github.com/voxway/voxway/pkg/capability"
	llmmock "github.com/voxway/voxway/pkg/capability/llm/mock"
	vadmock "github.com/voxway/voxway/pkg/capability/vad/mock"
)

func TestFactories_Build(t *testing.T) {
	t.Parallel()
	f := NewFactories()

	var gotModel string
	f.Register(capability.RoleLLM, "openai", func(mod config.ModuleConfig, _ *config.Config) (capability.Lifecycle, error) {
		gotModel, _ = mod.Config["model"].(string)
		return &llmmock.Provider{}, nil
	})
	f.Register(capability.RoleVAD, "energy", func(config.ModuleConfig, *config.Config) (capability.Lifecycle, error) {
		return &vadmock.Detector{}, nil
	})

	disabled := false
	cfg := &config.Config{
		Modules: map[string]config.ModuleConfig{
			"llm": {
				AdapterType: "openai",
				Config:      map[string]any{"model": "gpt-4o-mini"},
			},
			"vad": {
				AdapterType:  "energy",
				EnableModule: &disabled,
			},
		},
	}

	reg := NewRegistry()
	if err := f.Build(reg, cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gotModel != "gpt-4o-mini" {
		t.Errorf("factory saw model %q, want gpt-4o-mini", gotModel)
	}
	if _, err := reg.LLM(); err != nil {
		t.Errorf("llm not registered: %v", err)
	}
	if _, err := reg.VAD(); !errors.Is(err, ErrNotRegistered) {
		t.Error("disabled module must not be registered")
	}
}

func TestFactories_MissingFactory(t *testing.T) {
	t.Parallel()
	f := NewFactories()
	cfg := &config.Config{
		Modules: map[string]config.ModuleConfig{
			"llm": {AdapterType: "unknown-adapter"},
		},
	}
	err := f.Build(NewRegistry(), cfg)
	if !errors.Is(err, ErrFactoryNotRegistered) {
		t.Errorf("err = %v, want ErrFactoryNotRegistered", err)
	}
}

func TestFactories_ConstructorError(t *testing.T) {
	t.Parallel()
	f := NewFactories()
	boom := errors.New("missing api key")
	f.Register(capability.RoleLLM, "openai", func(config.ModuleConfig, *config.Config) (capability.Lifecycle, error) {
		return nil, boom
	})
	cfg := &config.Config{
		Modules: map[string]config.ModuleConfig{
			"llm": {AdapterType: "openai"},
		},
	}
	if err := f.Build(NewRegistry(), cfg); !errors.Is(err, boom) {
		t.Errorf("err = %v, want the constructor error wrapped", err)
	}
}

func TestFactories_AbsentRolesSkipped(t *testing.T) {
	t.Parallel()
	f := NewFactories()
	reg := NewRegistry()
	if err := f.Build(reg, &config.Config{}); err != nil {
		t.Fatalf("unexpected error for empty config: %v", err)
	}
	if got := len(reg.StatusReport()); got != 0 {
		t.Errorf("registry has %d modules, want 0", got)
	}
}
