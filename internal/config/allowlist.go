package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// AllowList holds the Discord user ids allowed to trigger the runner.
// An empty list allows everyone.
type AllowList struct {
	mu       sync.RWMutex
	path     string
	ids      map[string]struct{}
	debounce time.Duration
}

// LoadAllowList reads a YAML file of the form `user_ids: [...]`. An empty
// path yields an empty list.
func LoadAllowList(path string) (*AllowList, error) {
	a := &AllowList{ids: map[string]struct{}{}, debounce: 300 * time.Millisecond}
	if path == "" {
		return a, nil
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	a.path = abs
	if err := a.Reload(); err != nil {
		return nil, err
	}
	return a, nil
}

// Reload re-reads the backing file; on error the current ids are kept.
func (a *AllowList) Reload() error {
	if a.path == "" {
		return nil
	}
	data, err := os.ReadFile(a.path)
	if err != nil {
		return fmt.Errorf("read allowlist: %w", err)
	}
	var doc struct {
		UserIDs []string `yaml:"user_ids"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parse allowlist: %w", err)
	}
	if doc.UserIDs == nil {
		return errors.New("allowlist must contain user_ids list")
	}
	set := make(map[string]struct{}, len(doc.UserIDs))
	for _, id := range doc.UserIDs {
		id = strings.TrimSpace(id)
		if id != "" {
			set[id] = struct{}{}
		}
	}
	a.mu.Lock()
	a.ids = set
	a.mu.Unlock()
	return nil
}

func (a *AllowList) Allowed(userID string) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if len(a.ids) == 0 {
		return true
	}
	_, ok := a.ids[userID]
	return ok
}

func (a *AllowList) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.ids)
}

// Watch reloads the list whenever its file is written, until ctx is done.
// It returns once the watcher is installed.
func (a *AllowList) Watch(ctx context.Context, logger *zap.Logger) error {
	if a.path == "" {
		return nil
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	// Watch the directory: editors often replace the file instead of writing it.
	if err := w.Add(filepath.Dir(a.path)); err != nil {
		w.Close()
		return fmt.Errorf("watch %s: %w", a.path, err)
	}
	go a.watch(ctx, w, logger)
	return nil
}

func (a *AllowList) watch(ctx context.Context, w *fsnotify.Watcher, logger *zap.Logger) {
	defer w.Close()
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != a.path || ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			fire = time.After(a.debounce)
		case <-fire:
			fire = nil
			if err := a.Reload(); err != nil {
				logger.Warn("allowlist reload failed", zap.String("path", a.path), zap.Error(err))
				continue
			}
			logger.Info("allowlist reloaded", zap.String("path", a.path), zap.Int("user_ids", a.Len()))
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			logger.Warn("allowlist watcher error", zap.Error(err))
		}
	}
}
