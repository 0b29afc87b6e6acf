package plugin

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/ayusman/shotcoach/internal/log"
)

// ErrPluginNotFound is returned by Get for unknown names.
var ErrPluginNotFound = errors.New("plugin not found")

// Manager discovers plugins below a directory. Each plugin is a
// subdirectory holding a plugin.json manifest.
type Manager struct {
	mu      sync.RWMutex
	dir     string
	plugins map[string]*Plugin
}

// NewManager returns a Manager for dir.
func NewManager(dir string) *Manager {
	return &Manager{dir: dir, plugins: make(map[string]*Plugin)}
}

// Discover rescans the plugin directory. A missing directory is not an
// error; unreadable or invalid manifests are skipped.
func (m *Manager) Discover() error {
	found := make(map[string]*Plugin)

	entries, err := os.ReadDir(m.dir)
	if err != nil && !os.IsNotExist(err) {
		return err
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		dir := filepath.Join(m.dir, entry.Name())
		data, err := os.ReadFile(filepath.Join(dir, "plugin.json"))
		if err != nil {
			continue
		}

		var mf Manifest
		if err := json.Unmarshal(data, &mf); err != nil {
			log.Warn("skipping plugin with invalid manifest", "dir", dir, "err", err)
			continue
		}
		if mf.Name == "" || mf.Executable == "" {
			log.Warn("skipping plugin without name or executable", "dir", dir)
			continue
		}

		found[mf.Name] = &Plugin{
			Manifest:   mf,
			Path:       dir,
			Executable: filepath.Join(dir, mf.Executable),
		}
	}

	m.mu.Lock()
	m.plugins = found
	m.mu.Unlock()

	log.Debug("plugins discovered", "dir", m.dir, "count", len(found))
	return nil
}

// Get returns the plugin called name.
func (m *Manager) Get(name string) (*Plugin, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.plugins[name]
	if !ok {
		return nil, ErrPluginNotFound
	}
	return p, nil
}

// List returns every plugin sorted by name.
func (m *Manager) List() []*Plugin {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Plugin, 0, len(m.plugins))
	for _, p := range m.plugins {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Manifest.Name < out[j].Manifest.Name })
	return out
}

// Subscribers returns the plugins listening for event, sorted by name.
func (m *Manager) Subscribers(event string) []*Plugin {
	var out []*Plugin
	for _, p := range m.List() {
		if p.Manifest.Subscribes(event) {
			out = append(out, p)
		}
	}
	return out
}

// Dir returns the plugin directory.
func (m *Manager) Dir() string {
	return m.dir
}
