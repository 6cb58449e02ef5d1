package plugin

import (
	"sync"

	"github.com/sliink/tuner/internal/model"
)

// BasePlugin provides the metadata and default behavior shared by all
// optimizers. Embedders override the capability methods they support.
type BasePlugin struct {
	name         string
	description  string
	enabled      bool
	priority     int
	dependencies []string
	publisher    model.EventPublisher
	mutex        sync.RWMutex
}

// NewBasePlugin creates a new enabled base plugin
func NewBasePlugin(name, description string, priority int, dependencies ...string) BasePlugin {
	return BasePlugin{
		name:         name,
		description:  description,
		enabled:      true,
		priority:     priority,
		dependencies: append([]string(nil), dependencies...),
	}
}

// Name returns the plugin's unique name
func (p *BasePlugin) Name() string {
	return p.name
}

// Description returns the plugin's description
func (p *BasePlugin) Description() string {
	return p.description
}

// Enabled reports whether the plugin takes part in runs
func (p *BasePlugin) Enabled() bool {
	p.mutex.RLock()
	defer p.mutex.RUnlock()
	return p.enabled
}

// SetEnabled updates the enabled flag
func (p *BasePlugin) SetEnabled(enabled bool) {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.enabled = enabled
}

// Priority returns the plugin's execution priority
func (p *BasePlugin) Priority() int {
	p.mutex.RLock()
	defer p.mutex.RUnlock()
	return p.priority
}

// SetPriority updates the execution priority
func (p *BasePlugin) SetPriority(priority int) {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.priority = priority
}

// Dependencies returns a copy of the dependency names
func (p *BasePlugin) Dependencies() []string {
	return append([]string(nil), p.dependencies...)
}

// Attach stores the publisher used by Publish
func (p *BasePlugin) Attach(publisher model.EventPublisher) {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.publisher = publisher
}

// Publish sends an event with the plugin as source. Without an attached
// publisher the event is dropped.
func (p *BasePlugin) Publish(eventType model.EventType, data map[string]interface{}) {
	p.mutex.RLock()
	publisher := p.publisher
	p.mutex.RUnlock()

	if publisher != nil {
		publisher.PublishEvent(eventType, p.name, data)
	}
}

// CanOptimize accepts every configuration
func (p *BasePlugin) CanOptimize(cfg *model.Config) bool {
	return true
}

// Validate reports no errors
func (p *BasePlugin) Validate(cfg *model.Config) []string {
	return nil
}

// Backup has nothing to capture
func (p *BasePlugin) Backup() (model.Snapshot, error) {
	return nil, nil
}

// Restore cannot reverse anything
func (p *BasePlugin) Restore(snapshot model.Snapshot) (bool, error) {
	return false, nil
}

// Info returns the plugin's listing entry
func (p *BasePlugin) Info() model.PluginInfo {
	deps := p.Dependencies()
	if deps == nil {
		deps = []string{}
	}
	return model.PluginInfo{
		Name:         p.Name(),
		Description:  p.Description(),
		Enabled:      p.Enabled(),
		Priority:     p.Priority(),
		Dependencies: deps,
	}
}
