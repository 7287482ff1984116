package config

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/jonboulle/clockwork"
)

// DefaultPollInterval is how often a Watcher checks its file.
const DefaultPollInterval = time.Second

// Watcher polls a configuration file and reloads it when its content
// changes. Files that fail to load are logged and skipped; the previous
// configuration stays in effect.
type Watcher struct {
	path     string
	loader   *Loader
	clock    clockwork.Clock
	interval time.Duration
	last     []byte
}

// NewWatcher creates a watcher for path. A nil clock means the real clock.
func NewWatcher(path string, loader *Loader, clock clockwork.Clock, interval time.Duration) *Watcher {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Watcher{path: path, loader: loader, clock: clock, interval: interval}
}

// Prime records the current file content as already loaded, so the first
// poll only reports later changes.
func (w *Watcher) Prime() {
	if src, err := os.ReadFile(w.path); err == nil {
		w.last = src
	}
}

// Run polls until ctx is done, calling onChange with every configuration
// that loads successfully after a content change.
func (w *Watcher) Run(ctx context.Context, onChange func(*Config)) error {
	ticker := w.clock.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.Chan():
			if cfg := w.poll(); cfg != nil {
				onChange(cfg)
			}
		}
	}
}

func (w *Watcher) poll() *Config {
	src, err := os.ReadFile(w.path)
	if err != nil {
		slog.Warn("config watch: read failed", "path", w.path, "error", err)
		return nil
	}
	if w.last != nil && bytes.Equal(src, w.last) {
		return nil
	}
	w.last = src

	cfg, err := w.loader.Parse(src, w.path)
	if err != nil {
		slog.Warn("config watch: reload rejected", "path", w.path, "error", err)
		return nil
	}
	slog.Info("config reloaded", "path", w.path, "keymaps", len(cfg.Set.KeyMaps))
	return cfg
}
