package model

import "time"

// ComponentStatus represents the current status of a component
type ComponentStatus string

const (
	// StatusUninitialized indicates the component has not been initialized
	StatusUninitialized ComponentStatus = "UNINITIALIZED"
	// StatusInitialized indicates the component has been initialized but not started
	StatusInitialized ComponentStatus = "INITIALIZED"
	// StatusRunning indicates the component is currently running
	StatusRunning ComponentStatus = "RUNNING"
	// StatusStopped indicates the component has been stopped
	StatusStopped ComponentStatus = "STOPPED"
	// StatusError indicates the component is in an error state
	StatusError ComponentStatus = "ERROR"
)

// EventType represents the type of system event
type EventType string

const (
	// EventOptimizationStarted is published when a run begins
	EventOptimizationStarted EventType = "OPTIMIZATION_STARTED"
	// EventOptimizationCompleted is published with the run summary
	EventOptimizationCompleted EventType = "OPTIMIZATION_COMPLETED"
	// EventOptimizationFailed is published when a run cannot be ordered
	EventOptimizationFailed EventType = "OPTIMIZATION_FAILED"
	// EventOptimizerStarted is published before a plugin runs
	EventOptimizerStarted EventType = "OPTIMIZER_STARTED"
	// EventOptimizerCompleted is published after a plugin runs
	EventOptimizerCompleted EventType = "OPTIMIZER_COMPLETED"
	// EventBackupStarted is published when a bundle is being assembled
	EventBackupStarted EventType = "BACKUP_STARTED"
	// EventBackupCompleted is published once a bundle is on disk
	EventBackupCompleted EventType = "BACKUP_COMPLETED"
	// EventRestoreStarted is published when a bundle replay begins
	EventRestoreStarted EventType = "RESTORE_STARTED"
	// EventRestoreCompleted is published with the restore aggregate
	EventRestoreCompleted EventType = "RESTORE_COMPLETED"
	// EventServiceDisabled indicates a plugin changed a service start type
	EventServiceDisabled EventType = "SERVICE_DISABLED"
	// EventRegistryChanged indicates a plugin wrote a setting
	EventRegistryChanged EventType = "REGISTRY_CHANGED"
	// EventProgressUpdate carries free-form progress
	EventProgressUpdate EventType = "PROGRESS_UPDATE"
	// EventErrorOccurred indicates an error has occurred
	EventErrorOccurred EventType = "ERROR_OCCURRED"
	// EventWarningOccurred indicates a non-fatal problem
	EventWarningOccurred EventType = "WARNING_OCCURRED"
)

// AllEventTypes lists every event type in declaration order
var AllEventTypes = []EventType{
	EventOptimizationStarted,
	EventOptimizationCompleted,
	EventOptimizationFailed,
	EventOptimizerStarted,
	EventOptimizerCompleted,
	EventBackupStarted,
	EventBackupCompleted,
	EventRestoreStarted,
	EventRestoreCompleted,
	EventServiceDisabled,
	EventRegistryChanged,
	EventProgressUpdate,
	EventErrorOccurred,
	EventWarningOccurred,
}

// ParseEventType converts a string into a known event type
func ParseEventType(s string) (EventType, bool) {
	for _, t := range AllEventTypes {
		if string(t) == s {
			return t, true
		}
	}
	return "", false
}

// HealthStatus represents the health status of the system or a component
type HealthStatus struct {
	Status     ComponentStatus         `json:"status"`
	Timestamp  time.Time               `json:"timestamp"`
	Message    string                  `json:"message,omitempty"`
	Details    map[string]any          `json:"details,omitempty"`
	Components map[string]HealthStatus `json:"components,omitempty"`
}

// PluginInfo describes a registered plugin for listings
type PluginInfo struct {
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	Enabled      bool     `json:"enabled"`
	Priority     int      `json:"priority"`
	Dependencies []string `json:"dependencies"`
}

// BackupInfo describes a bundle file on disk
type BackupInfo struct {
	Path     string    `json:"path"`
	Name     string    `json:"name"`
	Size     int64     `json:"size"`
	Modified time.Time `json:"modified"`
}
