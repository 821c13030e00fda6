package profile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
)

// Store holds the active profile. Readers get an immutable snapshot; a reload
// replaces the whole value.
type Store struct {
	path       string
	expectedID string
	logger     *slog.Logger
	active     atomic.Pointer[LogProfile]

	// OnReload, if set, is called after every reload Watch triggers.
	OnReload func(error)
}

// NewStore returns a store pinned to p. It has no backing file, so Reload
// and Watch are no-ops.
func NewStore(p *LogProfile) *Store {
	s := &Store{logger: slog.Default()}
	s.active.Store(p)
	return s
}

// OpenStore loads the profile at path and returns a store that can reload it.
func OpenStore(path, expectedID string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	p, err := Load(path, expectedID)
	if err != nil {
		return nil, err
	}
	s := &Store{path: path, expectedID: expectedID, logger: logger}
	s.active.Store(p)
	return s, nil
}

// Active returns the current profile snapshot.
func (s *Store) Active() *LogProfile {
	return s.active.Load()
}

// Reload re-reads the profile file. On failure the previous profile stays active.
func (s *Store) Reload() error {
	if s.path == "" {
		return nil
	}
	p, err := Load(s.path, s.expectedID)
	if err != nil {
		return err
	}
	prev := s.active.Swap(p)
	s.logger.Info("log profile reloaded",
		"path", s.path,
		"id", p.ID,
		"version", p.Version,
		"previousVersion", prev.Version,
	)
	return nil
}

// Watch reloads the profile whenever its file changes, until ctx is done.
// The parent directory is watched so editors that replace the file are seen.
func (s *Store) Watch(ctx context.Context) error {
	if s.path == "" {
		<-ctx.Done()
		return nil
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create profile watcher: %w", err)
	}
	defer w.Close()

	target := filepath.Clean(s.path)
	if err := w.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(target), err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return errors.New("profile watcher closed")
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			err := s.Reload()
			if err != nil {
				s.logger.Warn("log profile reload failed, keeping previous profile", "path", s.path, "error", err)
			}
			if s.OnReload != nil {
				s.OnReload(err)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return errors.New("profile watcher closed")
			}
			s.logger.Warn("log profile watcher error", "error", err)
		}
	}
}
