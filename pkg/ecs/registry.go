package ecs

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/Wunderbyte-GmbH/moodle-auth-campusconnect/pkg/observability"
)

// Registry holds the configured hubs, loaded from a JSON file. Reloads swap
// the hub list atomically; a broken file never replaces a good configuration.
type Registry struct {
	path    string
	logger  *observability.Logger
	metrics *observability.Metrics

	mu   sync.RWMutex
	hubs []*Hub
}

// hubsFile is the on-disk shape of the hub configuration.
type hubsFile struct {
	Hubs []*Hub `json:"hubs"`
}

// NewRegistry loads the hub configuration from path. metrics may be nil.
func NewRegistry(path string, logger *observability.Logger, metrics *observability.Metrics) (*Registry, error) {
	r := &Registry{
		path:    path,
		logger:  logger,
		metrics: metrics,
	}
	if err := r.Load(); err != nil {
		return nil, err
	}
	return r, nil
}

// Load reads and validates the hubs file, replacing the current hub list on
// success.
func (r *Registry) Load() error {
	data, err := os.ReadFile(r.path)
	if err != nil {
		return fmt.Errorf("failed to read hubs file: %w", err)
	}

	var file hubsFile
	if err := json.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to parse hubs file: %w", err)
	}

	seen := make(map[string]bool, len(file.Hubs))
	for _, hub := range file.Hubs {
		if err := hub.Validate(); err != nil {
			return err
		}
		if seen[hub.ID] {
			return fmt.Errorf("duplicate hub id %q", hub.ID)
		}
		seen[hub.ID] = true
	}

	r.mu.Lock()
	r.hubs = file.Hubs
	r.mu.Unlock()

	if r.metrics != nil {
		r.metrics.HubsConfigured.Set(float64(len(file.Hubs)))
	}
	return nil
}

// All returns the configured hubs in file order.
func (r *Registry) All() []*Hub {
	r.mu.RLock()
	defer r.mu.RUnlock()
	hubs := make([]*Hub, len(r.hubs))
	copy(hubs, r.hubs)
	return hubs
}

// ByID returns the hub with the given id.
func (r *Registry) ByID(id string) (*Hub, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, hub := range r.hubs {
		if hub.ID == id {
			return hub, true
		}
	}
	return nil, false
}

// Watch reloads the registry when the hubs file changes, until ctx is done.
// A failed reload is logged and counted; the last good configuration stays
// active.
func (r *Registry) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory rather than the file itself: editors and config
	// management tools replace files by rename, which drops a file-level watch.
	if err := watcher.Add(filepath.Dir(r.path)); err != nil {
		return fmt.Errorf("failed to watch hubs directory: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filepath.Clean(r.path) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if err := r.Load(); err != nil {
				r.logger.WithError(err).Error("hub config reload failed, keeping previous configuration")
				if r.metrics != nil {
					r.metrics.HubConfigReloadTotal.WithLabelValues("error").Inc()
				}
				continue
			}
			r.logger.Infof("hub config reloaded, %d hubs", len(r.All()))
			if r.metrics != nil {
				r.metrics.HubConfigReloadTotal.WithLabelValues("ok").Inc()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			r.logger.WithError(err).Warn("hub config watcher error")
		}
	}
}
