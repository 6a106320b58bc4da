package settings

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// snapshot is one parsed version of the settings file: the typed value, the
// raw document (to preserve unknown keys on write), and the file mtime it
// was parsed from.
type snapshot struct {
	value Settings
	raw   map[string]json.RawMessage
	mtime time.Time
}

// Store serves hot-reloaded settings snapshots. Readers compare the file
// mtime and only re-parse when it advanced; an optional fsnotify watcher
// marks the snapshot dirty so quiet periods skip the stat entirely.
// Writers serialize through the store lock and write atomically.
type Store struct {
	path string

	mu    sync.Mutex
	snap  snapshot
	dirty atomic.Bool
}

// NewStore creates a Store for the settings file at path. The file does not
// need to exist; Default() applies until it does.
func NewStore(path string) *Store {
	s := &Store{path: path}
	s.dirty.Store(true)
	return s
}

// Path returns the backing file path.
func (s *Store) Path() string { return s.path }

// Current returns the freshest settings, re-reading the file when its
// modification time advanced since the last parse.
func (s *Store) Current() Settings {
	s.mu.Lock()
	defer s.mu.Unlock()

	fi, err := os.Stat(s.path)
	if err != nil {
		// Missing file is normal on first run.
		if s.snap.mtime.IsZero() {
			s.snap = snapshot{value: Default()}
		}
		return s.snap.value
	}

	if !s.dirty.Load() && !fi.ModTime().After(s.snap.mtime) {
		return s.snap.value
	}
	s.dirty.Store(false)

	data, err := os.ReadFile(s.path)
	if err != nil {
		slog.Warn("settings: read failed, keeping last snapshot", "path", s.path, "err", err)
		return s.snap.value
	}

	value, err := merge(data)
	if err != nil {
		slog.Warn("settings: parse failed, keeping last snapshot", "path", s.path, "err", err)
		return s.snap.value
	}

	var raw map[string]json.RawMessage
	_ = json.Unmarshal(data, &raw)

	s.snap = snapshot{value: value, raw: raw, mtime: fi.ModTime()}
	slog.Debug("settings: reloaded", "path", s.path)
	return s.snap.value
}

// Update applies fn to the current settings and writes the result back
// atomically (temp file + rename), preserving unknown keys the typed schema
// does not model. An error from fn aborts without touching the file.
func (s *Store) Update(fn func(*Settings) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw := map[string]json.RawMessage{}
	value := Default()
	if data, err := os.ReadFile(s.path); err == nil {
		if v, err := merge(data); err == nil {
			value = v
			_ = json.Unmarshal(data, &raw)
		}
	}

	if err := fn(&value); err != nil {
		return err
	}

	// Fold the typed fields over the raw document so unknown keys survive.
	typed, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}
	var typedMap map[string]json.RawMessage
	if err := json.Unmarshal(typed, &typedMap); err != nil {
		return fmt.Errorf("remarshal settings: %w", err)
	}
	for k, v := range typedMap {
		raw[k] = v
	}

	out, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal settings document: %w", err)
	}
	out = append(out, '\n')

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create settings dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".settings-*.json")
	if err != nil {
		return fmt.Errorf("create temp settings: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(out); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp settings: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp settings: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace settings: %w", err)
	}

	s.dirty.Store(true)
	return nil
}

// Watch runs an fsnotify watcher on the settings file until ctx is
// cancelled. It only marks the snapshot dirty; Current() remains correct
// without it via the mtime comparison.
func (s *Store) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("settings watcher: %w", err)
	}
	defer w.Close()

	// Watch the directory: editors and the atomic writer replace the file,
	// which drops a watch placed on the file itself.
	if err := w.Add(filepath.Dir(s.path)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(s.path), err)
	}
	slog.Info("settings: watching", "path", s.path)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Name != s.path {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				s.dirty.Store(true)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			slog.Warn("settings: watcher error", "err", err)
		}
	}
}
