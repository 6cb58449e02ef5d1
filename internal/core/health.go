package core

import (
	"fmt"
	"sync"
	"time"

	"github.com/sliink/tuner/internal/model"
)

// HealthMonitor tracks system and component health
type HealthMonitor struct {
	components map[string]Component
	order      []string
	details    map[string]interface{}
	mutex      sync.RWMutex
	BaseComponent
}

// NewHealthMonitor creates a new health monitor
func NewHealthMonitor() *HealthMonitor {
	return &HealthMonitor{
		components:    make(map[string]Component),
		order:         make([]string, 0),
		details:       make(map[string]interface{}),
		BaseComponent: NewBaseComponent("health_monitor", "Health Monitor"),
	}
}

// Initialize prepares the health monitor for operation
func (h *HealthMonitor) Initialize() bool {
	h.SetStatus(model.StatusInitialized)
	return true
}

// Start begins health monitor operation
func (h *HealthMonitor) Start() bool {
	h.SetStatus(model.StatusRunning)
	return true
}

// Stop halts health monitor operation
func (h *HealthMonitor) Stop() bool {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	h.details = make(map[string]interface{})

	h.SetStatus(model.StatusStopped)
	return true
}

// RegisterComponent adds a component to be monitored
func (h *HealthMonitor) RegisterComponent(component Component) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if _, exists := h.components[component.ID()]; !exists {
		h.order = append(h.order, component.ID())
	}
	h.components[component.ID()] = component
}

// Components returns the monitored components in registration order
func (h *HealthMonitor) Components() []Component {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	out := make([]Component, 0, len(h.order))
	for _, id := range h.order {
		out = append(out, h.components[id])
	}
	return out
}

// SetDetail records a named value reported with the health status
func (h *HealthMonitor) SetDetail(name string, value interface{}) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	h.details[name] = map[string]interface{}{
		"value":     value,
		"timestamp": time.Now(),
	}
}

// GetDetail retrieves a recorded value
func (h *HealthMonitor) GetDetail(name string) (interface{}, bool) {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	detail, exists := h.details[name]
	if !exists {
		return nil, false
	}
	return detail.(map[string]interface{})["value"], true
}

// GetHealthStatus rolls component statuses up into a system status
func (h *HealthMonitor) GetHealthStatus() model.HealthStatus {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	now := time.Now()
	components := make(map[string]model.HealthStatus, len(h.components))
	statusCounts := make(map[model.ComponentStatus]int)
	for id, component := range h.components {
		status := component.GetStatus()
		statusCounts[status]++
		components[id] = model.HealthStatus{
			Status:    status,
			Timestamp: now,
			Message:   fmt.Sprintf("%s status: %s", component.Name(), status),
		}
	}

	total := len(components)
	systemStatus := model.StatusRunning
	var statusMessage string

	switch {
	case statusCounts[model.StatusError] > 0:
		systemStatus = model.StatusError
		statusMessage = fmt.Sprintf("System has errors: %d components in ERROR state", statusCounts[model.StatusError])
	case total > 0 && statusCounts[model.StatusStopped] == total:
		systemStatus = model.StatusStopped
		statusMessage = "System is stopped"
	case statusCounts[model.StatusRunning] == 0:
		systemStatus = model.StatusInitialized
		statusMessage = "System is initializing"
	case statusCounts[model.StatusRunning] < total:
		statusMessage = fmt.Sprintf("System is partially running: %d of %d components running", statusCounts[model.StatusRunning], total)
	default:
		statusMessage = "System is healthy: all components running"
	}

	details := make(map[string]interface{}, len(h.details))
	for k, v := range h.details {
		details[k] = v
	}

	return model.HealthStatus{
		Status:     systemStatus,
		Timestamp:  now,
		Message:    statusMessage,
		Components: components,
		Details:    details,
	}
}
