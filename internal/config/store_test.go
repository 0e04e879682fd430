package config

import (
	"testing"
)

func storeFixture() *Store {
	return NewStore(&Config{
		Modules: map[string]ModuleConfig{
			"llm": {
				AdapterType: "openai",
				Config: map[string]any{
					"model":   "gpt-4o-mini",
					"api_key": "sk-real",
				},
			},
			"tts": {
				AdapterType: "elevenlabs",
				Config: map[string]any{
					"voice_id": "v1",
					"api_key":  "el-real",
				},
			},
		},
		Conversation: ConversationConfig{SystemPrompt: "be brief"},
	})
}

func TestStore_SnapshotMasksCredentials(t *testing.T) {
	t.Parallel()
	s := storeFixture()

	snap := s.Snapshot()
	mods := snap["modules"].(map[string]any)
	llm := mods["llm"].(map[string]any)

	if llm["adapter_type"] != "openai" {
		t.Errorf("adapter_type = %v, want openai", llm["adapter_type"])
	}
	if llm["enable_module"] != true {
		t.Errorf("enable_module = %v, want true", llm["enable_module"])
	}
	cfg := llm["config"].(map[string]any)
	if cfg["api_key"] != MaskedValue {
		t.Errorf("api_key = %v, want masked", cfg["api_key"])
	}
	if cfg["model"] != "gpt-4o-mini" {
		t.Errorf("model = %v, want cleartext", cfg["model"])
	}

	conv := snap["conversation"].(map[string]any)
	if conv["system_prompt"] != "be brief" {
		t.Errorf("system_prompt = %v", conv["system_prompt"])
	}
	if conv["concat_on_interrupt"] != true {
		t.Errorf("concat_on_interrupt = %v, want true", conv["concat_on_interrupt"])
	}
}

func TestStore_ApplyMergesPatch(t *testing.T) {
	t.Parallel()
	s := storeFixture()

	err := s.Apply(map[string]any{
		"modules": map[string]any{
			"llm": map[string]any{
				"config": map[string]any{
					"model":   "gpt-4o",
					"api_key": MaskedValue, // round-tripped snapshot
				},
			},
			"tts": map[string]any{
				"enable_module": false,
			},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cur := s.Current()
	if got := cur.Modules["llm"].Config["model"]; got != "gpt-4o" {
		t.Errorf("model = %v, want gpt-4o", got)
	}
	if got := cur.Modules["llm"].Config["api_key"]; got != "sk-real" {
		t.Errorf("api_key = %v, want the stored credential kept", got)
	}
	if cur.Modules["tts"].Enabled() {
		t.Error("tts should be disabled after the patch")
	}
}

func TestStore_ApplyRejectsInvalidPatches(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		patch map[string]any
	}{
		{
			name:  "no modules mapping",
			patch: map[string]any{"conversation": map[string]any{}},
		},
		{
			name: "unknown role",
			patch: map[string]any{
				"modules": map[string]any{"stt": map[string]any{}},
			},
		},
		{
			name: "unconfigured role",
			patch: map[string]any{
				"modules": map[string]any{"vad": map[string]any{}},
			},
		},
		{
			name: "module entry not a mapping",
			patch: map[string]any{
				"modules": map[string]any{"llm": "openai"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s := storeFixture()
			if err := s.Apply(tt.patch); err == nil {
				t.Fatal("expected error, got nil")
			}
			// Nothing may have been applied.
			if got := s.Current().Modules["llm"].Config["model"]; got != "gpt-4o-mini" {
				t.Errorf("model = %v, config changed by a rejected patch", got)
			}
		})
	}
}

func TestStore_ApplyAllOrNothing(t *testing.T) {
	t.Parallel()
	s := storeFixture()

	// One valid entry plus one invalid: the whole patch must be rejected.
	err := s.Apply(map[string]any{
		"modules": map[string]any{
			"llm": map[string]any{
				"config": map[string]any{"model": "gpt-4o"},
			},
			"asr": map[string]any{},
		},
	})
	if err == nil {
		t.Fatal("expected error for partially invalid patch")
	}
	if got := s.Current().Modules["llm"].Config["model"]; got != "gpt-4o-mini" {
		t.Errorf("model = %v, valid part of a rejected patch was applied", got)
	}
}

func TestStore_Replace(t *testing.T) {
	t.Parallel()
	s := storeFixture()
	next := &Config{Modules: map[string]ModuleConfig{}}
	s.Replace(next)
	if s.Current() != next {
		t.Error("Replace did not swap the config")
	}
}
