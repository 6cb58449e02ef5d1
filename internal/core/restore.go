package core

import (
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/sliink/tuner/internal/model"
)

const restoreSource = "restore_manager"

// RestoreManager replays bundle snapshots into the registered plugins
type RestoreManager struct {
	registry *PluginRegistry
	bus      *EventBus
	logger   zerolog.Logger
	BaseComponent
}

// NewRestoreManager creates a new restore manager
func NewRestoreManager(registry *PluginRegistry, bus *EventBus, logger zerolog.Logger) *RestoreManager {
	return &RestoreManager{
		registry:      registry,
		bus:           bus,
		logger:        ComponentLogger(logger, restoreSource),
		BaseComponent: NewBaseComponent(restoreSource, "Restore Manager"),
	}
}

// Initialize prepares the restore manager for operation
func (m *RestoreManager) Initialize() bool {
	m.SetStatus(model.StatusInitialized)
	return true
}

// Start begins restore manager operation
func (m *RestoreManager) Start() bool {
	m.SetStatus(model.StatusRunning)
	return true
}

// Stop halts restore manager operation
func (m *RestoreManager) Stop() bool {
	m.SetStatus(model.StatusStopped)
	return true
}

// RestoreFromBackup hands every snapshot in the bundle to its plugin, in
// plugin name order. One plugin's failure is recorded and the rest continue.
// A bundle that cannot be read or parsed fails before any event is published.
func (m *RestoreManager) RestoreFromBackup(path string) (*model.RestoreReport, error) {
	bundle, err := LoadBundle(path)
	if err != nil {
		m.logger.Error().Err(err).Str("backup_file", path).Msg("cannot load backup")
		return nil, &RestoreIOError{Path: path, Err: err}
	}

	m.publish(model.EventRestoreStarted, map[string]interface{}{
		"backup_file": path,
	})
	m.logger.Info().Str("backup_file", path).Msg("restoring from backup")

	names := make([]string, 0, len(bundle.Plugins))
	for name := range bundle.Plugins {
		names = append(names, name)
	}
	sort.Strings(names)

	report := &model.RestoreReport{
		BackupFile: path,
		Errors:     make([]string, 0),
	}

	for _, name := range names {
		report.Total++

		p, ok := m.registry.Lookup(name)
		if !ok {
			m.logger.Warn().Str("plugin", name).Msg("plugin not found, skipping restore")
			report.Failed++
			report.Errors = append(report.Errors, fmt.Sprintf("Plugin %s not found", name))
			continue
		}

		var restored bool
		err := safeCall(func() error {
			var restoreErr error
			restored, restoreErr = p.Restore(bundle.Plugins[name])
			return restoreErr
		})

		switch {
		case err != nil:
			m.logger.Error().Err(err).Str("plugin", name).Msg("failed to restore plugin")
			report.Failed++
			report.Errors = append(report.Errors, fmt.Sprintf("Plugin %s: %v", name, err))
		case !restored:
			report.Failed++
			report.Errors = append(report.Errors, fmt.Sprintf("Plugin %s restore returned false", name))
		default:
			m.logger.Info().Str("plugin", name).Msg("restored plugin")
			report.Successful++
		}
	}

	m.publish(model.EventRestoreCompleted, report.ToMap())
	m.logger.Info().
		Int("successful", report.Successful).
		Int("failed", report.Failed).
		Msg("restore completed")

	return report, nil
}

// RestoreLatest restores the newest bundle known to backups
func (m *RestoreManager) RestoreLatest(backups *BackupManager) (*model.RestoreReport, error) {
	path, ok := backups.GetLatestBackup()
	if !ok {
		return nil, fmt.Errorf("%w in %s", ErrNoBackups, backups.Directory())
	}
	return m.RestoreFromBackup(path)
}

func (m *RestoreManager) publish(eventType model.EventType, data map[string]interface{}) {
	m.bus.Publish(NewEvent(eventType, restoreSource, data))
}
