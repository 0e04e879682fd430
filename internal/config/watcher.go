package config

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"
)

// Watcher polls a config file for changes and pushes each valid new version
// into a [Store]. Polling keeps the dependency surface flat; the interval is
// coarse because config edits are rare.
type Watcher struct {
	path     string
	interval time.Duration
	store    *Store
	onChange func(old, new *Config)

	mu       sync.Mutex
	done     chan struct{}
	stopOnce sync.Once

	lastMtime time.Time
	lastHash  [sha256.Size]byte
}

// WatcherOption configures a [Watcher].
type WatcherOption func(*Watcher)

// WithInterval sets the polling interval. The default is 5 seconds.
func WithInterval(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.interval = d
		}
	}
}

// WithOnChange registers a callback invoked after each reload, outside the
// watcher lock. Used to re-level the logger when logging.level changes.
func WithOnChange(fn func(old, new *Config)) WatcherOption {
	return func(w *Watcher) { w.onChange = fn }
}

// NewWatcher starts watching path and feeding reloads into store. The store
// must already hold the initial config; the watcher records the file's
// current state so only subsequent edits trigger a reload.
func NewWatcher(path string, store *Store, opts ...WatcherOption) (*Watcher, error) {
	w := &Watcher{
		path:     path,
		interval: 5 * time.Second,
		store:    store,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	data, info, err := readFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: watcher initial read: %w", err)
	}
	w.lastHash = sha256.Sum256(data)
	w.lastMtime = info.ModTime()

	go w.poll()
	return w, nil
}

// Stop stops the file watcher.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
	})
}

func (w *Watcher) poll() {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
			w.check()
		}
	}
}

// check reads the config file and, if its content changed and parses as a
// valid config, swaps it into the store. An invalid file keeps the previous
// config live.
func (w *Watcher) check() {
	info, err := os.Stat(w.path)
	if err != nil {
		slog.Warn("config watcher: cannot stat file", "path", w.path, "err", err)
		return
	}

	w.mu.Lock()
	mtime := w.lastMtime
	w.mu.Unlock()

	if info.ModTime().Equal(mtime) {
		return
	}

	data, info, err := readFile(w.path)
	if err != nil {
		slog.Warn("config watcher: cannot read file", "path", w.path, "err", err)
		return
	}
	hash := sha256.Sum256(data)

	w.mu.Lock()
	if hash == w.lastHash {
		// Touched but identical content.
		w.lastMtime = info.ModTime()
		w.mu.Unlock()
		return
	}
	w.lastHash = hash
	w.lastMtime = info.ModTime()
	w.mu.Unlock()

	cfg, err := LoadFromReader(bytes.NewReader(data))
	if err != nil {
		slog.Warn("config watcher: invalid config, keeping previous", "path", w.path, "err", err)
		return
	}

	old := w.store.Current()
	w.store.Replace(cfg)
	slog.Info("config watcher: configuration reloaded", "path", w.path)

	if w.onChange != nil {
		w.onChange(old, cfg)
	}
}

func readFile(path string) ([]byte, os.FileInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, nil, err
	}
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, nil, err
	}
	return data, info, nil
}
