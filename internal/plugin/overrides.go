package plugin

import (
	"sort"

	"github.com/sliink/tuner/internal/model"
)

// Configurable is implemented by plugins whose metadata can be changed
// from configuration
type Configurable interface {
	model.Plugin
	SetEnabled(enabled bool)
	SetPriority(priority int)
}

// ApplyOverrides applies the per-plugin enabled and priority settings from
// cfg and returns the names of plugins that were changed. Overrides for
// unknown plugins are ignored.
func ApplyOverrides(plugins []model.Plugin, cfg *model.Config) []string {
	if cfg == nil || len(cfg.Plugins) == 0 {
		return nil
	}

	var changed []string
	for _, p := range plugins {
		override, exists := cfg.Plugins[p.Name()]
		if !exists {
			continue
		}
		configurable, ok := p.(Configurable)
		if !ok {
			continue
		}

		touched := false
		if override.Enabled != nil && *override.Enabled != p.Enabled() {
			configurable.SetEnabled(*override.Enabled)
			touched = true
		}
		if override.Priority != nil && *override.Priority != p.Priority() {
			configurable.SetPriority(*override.Priority)
			touched = true
		}
		if touched {
			changed = append(changed, p.Name())
		}
	}
	return changed
}

// UnknownOverrides returns the sorted override names that match no plugin
func UnknownOverrides(plugins []model.Plugin, cfg *model.Config) []string {
	if cfg == nil {
		return nil
	}

	known := make(map[string]bool, len(plugins))
	for _, p := range plugins {
		known[p.Name()] = true
	}

	var unknown []string
	for name := range cfg.Plugins {
		if !known[name] {
			unknown = append(unknown, name)
		}
	}
	sort.Strings(unknown)
	return unknown
}
