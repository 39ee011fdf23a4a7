package store

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watch reloads the store whenever its files change, until ctx is done.
// Bursts of events within debounce are coalesced into one reload.
func (s *FileStore) Watch(ctx context.Context, debounce time.Duration) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	defer w.Close()

	// Editors replace files by rename, so a single file is watched through
	// its directory.
	dir := s.path
	if !s.isDir {
		dir = filepath.Dir(s.path)
	}
	if err := w.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %q: %w", dir, err)
	}

	d := newDebouncer(debounce)
	defer d.stop()

	s.logger.Info("policy watcher started", "path", s.path, "debounce_ms", debounce.Milliseconds())

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("policy watcher stopped")
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return fmt.Errorf("watcher events channel closed")
			}
			if !s.relevant(ev) {
				continue
			}
			s.logger.Debug("policy file event", "path", ev.Name, "op", ev.Op.String())
			d.trigger(func() {
				_ = s.Reload()
			})

		case err, ok := <-w.Errors:
			if !ok {
				return fmt.Errorf("watcher errors channel closed")
			}
			s.logger.Error("policy watcher error", "error", err)
		}
	}
}

func (s *FileStore) relevant(ev fsnotify.Event) bool {
	if ev.Op == fsnotify.Chmod {
		return false
	}
	if s.isDir {
		return isPolicyFile(ev.Name)
	}
	return filepath.Clean(ev.Name) == filepath.Clean(s.path)
}

// debouncer runs the most recent callback once no trigger has arrived for
// the interval.
type debouncer struct {
	interval time.Duration

	mu      sync.Mutex
	timer   *time.Timer
	stopped bool
}

func newDebouncer(interval time.Duration) *debouncer {
	return &debouncer{interval: interval}
}

func (d *debouncer) trigger(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.interval, func() {
		d.mu.Lock()
		stopped := d.stopped
		d.mu.Unlock()
		if !stopped {
			fn()
		}
	})
}

func (d *debouncer) stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
	}
}
