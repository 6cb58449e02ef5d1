package model

import "encoding/json"

// EventPublisher is the slice of the core that plugins may use to announce
// their own changes
type EventPublisher interface {
	// PublishEvent publishes an event to the event bus
	PublishEvent(eventType EventType, source string, data map[string]interface{})
}

// PublisherAware is implemented by plugins that publish their own events.
// The core attaches itself when the plugin is registered.
type PublisherAware interface {
	Attach(publisher EventPublisher)
}

// Snapshot is a plugin-defined value capturing enough state to reverse the
// plugin's changes. It must survive a JSON round trip.
type Snapshot map[string]interface{}

// IsEmpty reports whether there is nothing to back up
func (s Snapshot) IsEmpty() bool {
	return len(s) == 0
}

// Decode converts the snapshot into a typed value through JSON
func (s Snapshot) Decode(v interface{}) error {
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// EncodeSnapshot converts a typed value into a snapshot through JSON
func EncodeSnapshot(v interface{}) (Snapshot, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return s, nil
}

// Plugin is the capability contract every optimization unit implements
type Plugin interface {
	// Name returns the plugin's unique name
	Name() string

	// Description returns a human-readable description
	Description() string

	// Enabled reports whether the plugin takes part in runs
	Enabled() bool

	// Priority orders plugins; lower values run earlier
	Priority() int

	// Dependencies names plugins that must run before this one
	Dependencies() []string

	// CanOptimize is a pure predicate; false skips the plugin
	CanOptimize(cfg *Config) bool

	// Validate returns validation errors; any error blocks Optimize
	Validate(cfg *Config) []string

	// Optimize performs the plugin's changes. Expected failures belong in
	// the result; a returned error is treated as an unexpected failure.
	Optimize(cfg *Config) (*OptimizationResult, error)

	// Backup captures state needed to reverse Optimize. An empty snapshot
	// means there is nothing to back up.
	Backup() (Snapshot, error)

	// Restore reverses Optimize from a snapshot on a best-effort basis
	Restore(snapshot Snapshot) (bool, error)
}

// Info builds a listing entry for a plugin
func Info(p Plugin) PluginInfo {
	deps := p.Dependencies()
	if deps == nil {
		deps = []string{}
	}
	return PluginInfo{
		Name:         p.Name(),
		Description:  p.Description(),
		Enabled:      p.Enabled(),
		Priority:     p.Priority(),
		Dependencies: deps,
	}
}
