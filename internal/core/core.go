package core

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/sliink/tuner/internal/model"
)

// Options configures a Core
type Options struct {
	// Config is the initial configuration; defaults are used when nil
	Config *model.Config
	Logger zerolog.Logger
	// BackupDir overrides the configured backup directory
	BackupDir string
	// HistorySize bounds the event history
	HistorySize int
}

// Core is the central coordinator of the system. It owns every component
// and is passed explicitly to whatever needs it.
type Core struct {
	eventBus      *EventBus
	registry      *PluginRegistry
	orchestrator  *Orchestrator
	backups       *BackupManager
	restores      *RestoreManager
	configManager *ConfigManager
	healthMonitor *HealthMonitor
	metrics       *Metrics
	logger        zerolog.Logger
	runMutex      sync.Mutex
	BaseComponent
}

// NewCore creates a new core system with all components wired together
func NewCore(opts Options) *Core {
	cfg := opts.Config
	if cfg == nil {
		cfg = model.DefaultConfig()
	}
	backupDir := opts.BackupDir
	if backupDir == "" {
		backupDir = cfg.Backup.Directory
	}

	logger := opts.Logger
	eventBus := NewEventBusWithHistory(logger, opts.HistorySize)
	registry := NewPluginRegistry()
	configManager := NewConfigManager(logger)
	// The defaults are valid, so only a bad caller config can fail here
	if err := configManager.SetConfig(cfg); err != nil {
		logger.Warn().Err(err).Msg("initial configuration rejected, using defaults")
	}

	return &Core{
		eventBus:      eventBus,
		registry:      registry,
		orchestrator:  NewOrchestrator(registry, eventBus, logger),
		backups:       NewBackupManager(backupDir, registry, eventBus, logger),
		restores:      NewRestoreManager(registry, eventBus, logger),
		configManager: configManager,
		healthMonitor: NewHealthMonitor(),
		metrics:       NewMetrics(cfg.Metrics),
		logger:        ComponentLogger(logger, "core"),
		BaseComponent: NewBaseComponent("core", "Core System"),
	}
}

// Initialize prepares the core system for operation
func (c *Core) Initialize() bool {
	for _, component := range c.components() {
		if !component.Initialize() {
			c.logger.Error().Str("component", component.ID()).Msg("component failed to initialize")
			c.SetStatus(model.StatusError)
			return false
		}
	}

	c.healthMonitor.RegisterComponent(c)
	for _, component := range c.components() {
		c.healthMonitor.RegisterComponent(component)
	}

	for _, eventType := range model.AllEventTypes {
		c.eventBus.Subscribe(eventType, c.metrics)
	}

	c.SetStatus(model.StatusInitialized)
	return true
}

// Start begins core system operation
func (c *Core) Start() bool {
	for _, component := range c.components() {
		if !component.Start() {
			c.logger.Error().Str("component", component.ID()).Msg("component failed to start")
			c.SetStatus(model.StatusError)
			return false
		}
	}

	c.SetStatus(model.StatusRunning)
	return true
}

// Stop halts core system operation in reverse start order
func (c *Core) Stop() bool {
	components := c.components()
	for i := len(components) - 1; i >= 0; i-- {
		components[i].Stop()
	}

	c.SetStatus(model.StatusStopped)
	return true
}

func (c *Core) components() []Component {
	return []Component{
		c.eventBus,
		c.registry,
		c.configManager,
		c.healthMonitor,
		c.orchestrator,
		c.backups,
		c.restores,
	}
}

// GetComponent returns a component by ID
func (c *Core) GetComponent(id string) (Component, bool) {
	if id == c.ID() {
		return c, true
	}
	for _, component := range c.components() {
		if component.ID() == id {
			return component, true
		}
	}
	return nil, false
}

// EventBus returns the event bus
func (c *Core) EventBus() *EventBus {
	return c.eventBus
}

// Registry returns the plugin registry
func (c *Core) Registry() *PluginRegistry {
	return c.registry
}

// Orchestrator returns the orchestrator
func (c *Core) Orchestrator() *Orchestrator {
	return c.orchestrator
}

// Backups returns the backup manager
func (c *Core) Backups() *BackupManager {
	return c.backups
}

// Restores returns the restore manager
func (c *Core) Restores() *RestoreManager {
	return c.restores
}

// ConfigManager returns the configuration manager
func (c *Core) ConfigManager() *ConfigManager {
	return c.configManager
}

// HealthMonitor returns the health monitor
func (c *Core) HealthMonitor() *HealthMonitor {
	return c.healthMonitor
}

// Metrics returns the metrics collector
func (c *Core) Metrics() *Metrics {
	return c.metrics
}

// Logger returns the root logger
func (c *Core) Logger() zerolog.Logger {
	return c.logger
}

// RegisterPlugin registers a plugin with the core system
func (c *Core) RegisterPlugin(p model.Plugin) error {
	if p == nil {
		return fmt.Errorf("cannot register nil plugin")
	}

	if aware, ok := p.(model.PublisherAware); ok {
		aware.Attach(c)
	}

	if err := c.registry.Register(p); err != nil {
		return fmt.Errorf("plugin registration failed: %w", err)
	}

	c.logger.Debug().Str("plugin", p.Name()).Msg("plugin registered")
	return nil
}

// PublishEvent publishes an event to the event bus
func (c *Core) PublishEvent(eventType model.EventType, source string, data map[string]interface{}) {
	c.eventBus.Publish(NewEvent(eventType, source, data))
}

// Optimize takes a safety backup when requested and enabled, runs every
// plugin, then applies backup retention. A failed backup aborts the run.
// A nil cfg uses the current configuration.
func (c *Core) Optimize(cfg *model.Config, withBackup bool) (*model.RunReport, error) {
	c.runMutex.Lock()
	defer c.runMutex.Unlock()

	if cfg == nil {
		cfg = c.configManager.GetConfig()
	}

	var backupFile string
	if withBackup && cfg.Backup.Enabled {
		path, err := c.backups.CreateBackup(cfg)
		if err != nil {
			return nil, fmt.Errorf("pre-run backup failed: %w", err)
		}
		backupFile = path
		c.healthMonitor.SetDetail("last_backup", path)
	}

	report, err := c.orchestrator.Run(cfg)
	if err != nil {
		return nil, err
	}
	report.BackupFile = backupFile
	c.healthMonitor.SetDetail("last_run", report.Summary)

	if cfg.Backup.MaxBackups > 0 {
		c.backups.CleanupOldBackups(cfg.Backup.MaxBackups)
	}

	return report, nil
}

// Backup creates a bundle of the current plugin state
func (c *Core) Backup(cfg *model.Config) (string, error) {
	c.runMutex.Lock()
	defer c.runMutex.Unlock()

	if cfg == nil {
		cfg = c.configManager.GetConfig()
	}

	path, err := c.backups.CreateBackup(cfg)
	if err != nil {
		return "", err
	}
	c.healthMonitor.SetDetail("last_backup", path)
	return path, nil
}

// Restore replays a bundle. An empty path restores the newest bundle.
func (c *Core) Restore(path string) (*model.RestoreReport, error) {
	c.runMutex.Lock()
	defer c.runMutex.Unlock()

	var report *model.RestoreReport
	var err error
	if path == "" {
		report, err = c.restores.RestoreLatest(c.backups)
	} else {
		report, err = c.restores.RestoreFromBackup(path)
	}
	if err != nil {
		return nil, err
	}
	c.healthMonitor.SetDetail("last_restore", report.ToMap())
	return report, nil
}
