package core

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/sliink/tuner/internal/model"
)

type visitState int

const (
	unvisited visitState = iota
	inProgress
	done
)

// PluginRegistry keeps track of available plugins in registration order
type PluginRegistry struct {
	plugins map[string]model.Plugin
	order   []string
	mutex   sync.RWMutex
	BaseComponent
}

// NewPluginRegistry creates a new plugin registry
func NewPluginRegistry() *PluginRegistry {
	return &PluginRegistry{
		plugins:       make(map[string]model.Plugin),
		order:         make([]string, 0),
		BaseComponent: NewBaseComponent("plugin_registry", "Plugin Registry"),
	}
}

// Initialize prepares the plugin registry for operation
func (r *PluginRegistry) Initialize() bool {
	r.SetStatus(model.StatusInitialized)
	return true
}

// Start begins plugin registry operation
func (r *PluginRegistry) Start() bool {
	r.SetStatus(model.StatusRunning)
	return true
}

// Stop halts plugin registry operation
func (r *PluginRegistry) Stop() bool {
	r.SetStatus(model.StatusStopped)
	return true
}

// Register adds a plugin to the registry. Registering a name again replaces
// the entry and keeps its original position.
func (r *PluginRegistry) Register(p model.Plugin) error {
	if p == nil {
		return errors.New("cannot register nil plugin")
	}
	name := p.Name()
	if name == "" {
		return errors.New("plugin name is required")
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, exists := r.plugins[name]; !exists {
		r.order = append(r.order, name)
	}
	r.plugins[name] = p
	return nil
}

// Unregister removes a plugin from the registry
func (r *PluginRegistry) Unregister(name string) bool {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, exists := r.plugins[name]; !exists {
		return false
	}

	delete(r.plugins, name)
	for i, n := range r.order {
		if n == name {
			r.order = append(r.order[:i:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

// Get retrieves a plugin by name
func (r *PluginRegistry) Get(name string) (model.Plugin, error) {
	p, ok := r.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPluginNotFound, name)
	}
	return p, nil
}

// Lookup retrieves a plugin by name
func (r *PluginRegistry) Lookup(name string) (model.Plugin, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	p, exists := r.plugins[name]
	return p, exists
}

// Exists reports whether a plugin is registered under name
func (r *PluginRegistry) Exists(name string) bool {
	_, ok := r.Lookup(name)
	return ok
}

// Count returns the number of registered plugins
func (r *PluginRegistry) Count() int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	return len(r.plugins)
}

// Clear removes every plugin
func (r *PluginRegistry) Clear() {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.plugins = make(map[string]model.Plugin)
	r.order = make([]string, 0)
}

// GetAll retrieves all registered plugins in registration order
func (r *PluginRegistry) GetAll() []model.Plugin {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	return r.allLocked()
}

// GetEnabled retrieves enabled plugins in registration order
func (r *PluginRegistry) GetEnabled() []model.Plugin {
	result := make([]model.Plugin, 0)
	for _, p := range r.GetAll() {
		if p.Enabled() {
			result = append(result, p)
		}
	}
	return result
}

// sortNode holds what ordering needs from a plugin, read once outside the lock
type sortNode struct {
	plugin   model.Plugin
	name     string
	priority int
	deps     []string
}

// GetSorted returns enabled plugins in execution order: ascending priority
// with ties kept in registration order, and every enabled dependency placed
// before its dependents. Unknown and disabled dependencies are ignored.
//
// Plugin methods are called without the registry lock held, so a plugin may
// consult the registry from Enabled, Priority or Dependencies.
func (r *PluginRegistry) GetSorted() ([]model.Plugin, error) {
	candidates := make([]*sortNode, 0)
	byName := make(map[string]*sortNode)
	for _, p := range r.GetAll() {
		if !p.Enabled() {
			continue
		}
		n := &sortNode{plugin: p, name: p.Name(), priority: p.Priority(), deps: p.Dependencies()}
		candidates = append(candidates, n)
		byName[n.name] = n
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].priority < candidates[j].priority
	})

	states := make(map[string]visitState, len(candidates))
	sorted := make([]model.Plugin, 0, len(candidates))
	stack := make([]string, 0)

	var visit func(n *sortNode) error
	visit = func(n *sortNode) error {
		switch states[n.name] {
		case done:
			return nil
		case inProgress:
			start := 0
			for i, name := range stack {
				if name == n.name {
					start = i
					break
				}
			}
			path := append(append([]string{}, stack[start:]...), n.name)
			return &DependencyCycleError{Path: path}
		}

		states[n.name] = inProgress
		stack = append(stack, n.name)
		for _, dep := range n.deps {
			d, ok := byName[dep]
			if !ok {
				continue
			}
			if err := visit(d); err != nil {
				return err
			}
		}
		stack = stack[:len(stack)-1]
		states[n.name] = done
		sorted = append(sorted, n.plugin)
		return nil
	}

	for _, n := range candidates {
		if err := visit(n); err != nil {
			return nil, err
		}
	}
	return sorted, nil
}

// allLocked assumes the lock is held
func (r *PluginRegistry) allLocked() []model.Plugin {
	result := make([]model.Plugin, 0, len(r.order))
	for _, name := range r.order {
		result = append(result, r.plugins[name])
	}
	return result
}
