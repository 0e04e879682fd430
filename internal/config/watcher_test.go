package config

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

const watcherInitialYAML = `
logging:
  level: info
modules:
  llm:
    adapter_type: openai
    config:
      model: gpt-4o-mini
`

const watcherUpdatedYAML = `
logging:
  level: debug
modules:
  llm:
    adapter_type: openai
    config:
      model: gpt-4o
`

func writeConfigFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	// Polling compares mtimes; make sure successive writes do not share one.
	now := time.Now()
	if err := os.Chtimes(path, now, now); err != nil {
		t.Fatal(err)
	}
}

func waitForCondition(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met within deadline")
}

func TestWatcher_ReloadsOnChange(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeConfigFile(t, path, watcherInitialYAML)

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	store := NewStore(cfg)

	var mu sync.Mutex
	var changes int
	w, err := NewWatcher(path, store,
		WithInterval(20*time.Millisecond),
		WithOnChange(func(old, new *Config) {
			mu.Lock()
			defer mu.Unlock()
			changes++
			if old.Logging.Level != LogInfo {
				t.Errorf("old level = %q, want info", old.Logging.Level)
			}
			if new.Logging.Level != LogDebug {
				t.Errorf("new level = %q, want debug", new.Logging.Level)
			}
		}),
	)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	// Let the first poll observe the unchanged file, then edit it.
	time.Sleep(50 * time.Millisecond)
	writeConfigFile(t, path, watcherUpdatedYAML)

	waitForCondition(t, func() bool {
		return store.Current().Logging.Level == LogDebug
	})

	if got := store.Current().Modules["llm"].Config["model"]; got != "gpt-4o" {
		t.Errorf("model = %v, want gpt-4o after reload", got)
	}
	mu.Lock()
	defer mu.Unlock()
	if changes != 1 {
		t.Errorf("onChange fired %d times, want 1", changes)
	}
}

func TestWatcher_InvalidFileKeepsPrevious(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeConfigFile(t, path, watcherInitialYAML)

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	store := NewStore(cfg)

	w, err := NewWatcher(path, store, WithInterval(20*time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	writeConfigFile(t, path, "logging:\n  level: loud\n")
	time.Sleep(150 * time.Millisecond)

	if got := store.Current().Logging.Level; got != LogInfo {
		t.Errorf("level = %q, invalid file replaced the live config", got)
	}
}

func TestWatcher_MissingFile(t *testing.T) {
	t.Parallel()
	_, err := NewWatcher(filepath.Join(t.TempDir(), "absent.yaml"), NewStore(&Config{}))
	if err == nil {
		t.Fatal("expected error for a missing file")
	}
}
