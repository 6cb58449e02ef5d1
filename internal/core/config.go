package core

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/sliink/tuner/internal/model"
)

// ConfigWatcher is called with the new configuration after every change
type ConfigWatcher func(*model.Config)

// ConfigManager handles loading, storing, validating and watching configuration
type ConfigManager struct {
	config     *model.Config
	configFile string
	watchers   []ConfigWatcher
	validate   *validator.Validate
	fsWatcher  *fsnotify.Watcher
	logger     zerolog.Logger
	mutex      sync.RWMutex
	BaseComponent
}

// NewConfigManager creates a configuration manager holding the defaults
func NewConfigManager(logger zerolog.Logger) *ConfigManager {
	return &ConfigManager{
		config:        model.DefaultConfig(),
		watchers:      make([]ConfigWatcher, 0),
		validate:      validator.New(),
		logger:        ComponentLogger(logger, "config_manager"),
		BaseComponent: NewBaseComponent("config_manager", "Configuration Manager"),
	}
}

// Initialize prepares the configuration manager for operation
func (m *ConfigManager) Initialize() bool {
	m.SetStatus(model.StatusInitialized)
	return true
}

// Start begins configuration manager operation
func (m *ConfigManager) Start() bool {
	m.SetStatus(model.StatusRunning)
	return true
}

// Stop halts configuration manager operation
func (m *ConfigManager) Stop() bool {
	_ = m.StopWatching()

	m.mutex.Lock()
	m.watchers = make([]ConfigWatcher, 0)
	m.mutex.Unlock()

	m.SetStatus(model.StatusStopped)
	return true
}

// LoadConfig loads configuration from a YAML or JSON file. Values missing
// from the file keep their defaults, after the mode preset is applied.
func (m *ConfigManager) LoadConfig(configFile string) error {
	data, err := os.ReadFile(configFile)
	if err != nil {
		return fmt.Errorf("error reading config file: %w", err)
	}

	cfg, err := m.parse(configFile, data)
	if err != nil {
		return err
	}

	m.mutex.Lock()
	m.config = cfg
	m.configFile = configFile
	m.mutex.Unlock()

	m.logger.Info().Str("file", configFile).Str("mode", string(cfg.Mode)).Msg("configuration loaded")
	m.notify(cfg)
	return nil
}

func (m *ConfigManager) parse(configFile string, data []byte) (*model.Config, error) {
	var modeOnly struct {
		Mode model.OptimizationMode `json:"mode" yaml:"mode"`
	}
	if err := decode(configFile, data, &modeOnly); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	cfg := model.DefaultConfig()
	if modeOnly.Mode != "" {
		ApplyModePreset(cfg, modeOnly.Mode)
	}
	if err := decode(configFile, data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}
	if cfg.Plugins == nil {
		cfg.Plugins = make(map[string]model.PluginOverride)
	}

	if err := m.Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SaveConfig writes the current configuration. An empty path reuses the
// file the configuration was loaded from.
func (m *ConfigManager) SaveConfig(configFile string) error {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	if configFile == "" {
		configFile = m.configFile
	}
	if configFile == "" {
		return fmt.Errorf("no config file specified")
	}

	var data []byte
	var err error
	if isJSON(configFile) {
		data, err = json.MarshalIndent(m.config, "", "  ")
	} else {
		data, err = yaml.Marshal(m.config)
	}
	if err != nil {
		return fmt.Errorf("error encoding config: %w", err)
	}

	if err := os.WriteFile(configFile, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}
	return nil
}

// GetConfig returns a copy of the current configuration
func (m *ConfigManager) GetConfig() *model.Config {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	return m.config.Clone()
}

// ConfigFile returns the path the configuration was loaded from
func (m *ConfigManager) ConfigFile() string {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	return m.configFile
}

// SetConfig validates and replaces the configuration
func (m *ConfigManager) SetConfig(cfg *model.Config) error {
	if err := m.Validate(cfg); err != nil {
		return err
	}

	m.mutex.Lock()
	m.config = cfg.Clone()
	m.mutex.Unlock()

	m.notify(cfg.Clone())
	return nil
}

// Validate checks a configuration against its struct constraints
func (m *ConfigManager) Validate(cfg *model.Config) error {
	if cfg == nil {
		return fmt.Errorf("invalid config: nil")
	}
	if err := m.validate.Struct(cfg); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// WatchConfig registers a callback for configuration changes
func (m *ConfigManager) WatchConfig(callback ConfigWatcher) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.watchers = append(m.watchers, callback)
}

func (m *ConfigManager) notify(cfg *model.Config) {
	m.mutex.RLock()
	watchers := make([]ConfigWatcher, len(m.watchers))
	copy(watchers, m.watchers)
	m.mutex.RUnlock()

	for _, callback := range watchers {
		callback(cfg.Clone())
	}
}

// Watch reloads the configuration file whenever it changes on disk until
// ctx is done. An invalid file is logged and the previous configuration kept.
func (m *ConfigManager) Watch(ctx context.Context) error {
	configFile := m.ConfigFile()
	if configFile == "" {
		return fmt.Errorf("no config file loaded")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	// Editors often replace the file, so watch the directory
	if err := watcher.Add(filepath.Dir(configFile)); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("failed to watch config directory: %w", err)
	}

	m.mutex.Lock()
	m.fsWatcher = watcher
	m.mutex.Unlock()

	go m.processEvents(ctx, watcher, filepath.Clean(configFile))

	m.logger.Info().Str("file", configFile).Msg("watching configuration")
	return nil
}

func (m *ConfigManager) processEvents(ctx context.Context, watcher *fsnotify.Watcher, configFile string) {
	var reloadTimer *time.Timer
	reloadDelay := 200 * time.Millisecond

	for {
		select {
		case <-ctx.Done():
			if reloadTimer != nil {
				reloadTimer.Stop()
			}
			_ = watcher.Close()
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != configFile {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}

			m.logger.Debug().Str("op", event.Op.String()).Msg("config file changed")
			if reloadTimer != nil {
				reloadTimer.Stop()
			}
			reloadTimer = time.AfterFunc(reloadDelay, func() {
				if err := m.LoadConfig(configFile); err != nil {
					m.logger.Error().Err(err).Msg("failed to reload configuration")
				}
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			m.logger.Error().Err(err).Msg("watcher error")
		}
	}
}

// StopWatching stops watching the configuration file
func (m *ConfigManager) StopWatching() error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if m.fsWatcher == nil {
		return nil
	}
	err := m.fsWatcher.Close()
	m.fsWatcher = nil
	return err
}

// ApplyModePreset adjusts section defaults for an optimization mode
func ApplyModePreset(cfg *model.Config, mode model.OptimizationMode) {
	cfg.Mode = mode
	switch mode {
	case model.ModeGaming:
		cfg.Services.DisableXboxServices = false
		cfg.Services.DisableSearch = true
		cfg.Registry.EnableGameMode = true
		cfg.Registry.EnableGPUScheduling = true
	case model.ModeDevelopment:
		cfg.Services.DisableSearch = false
		cfg.Registry.EnableGameMode = false
		cfg.Registry.EnableGPUScheduling = false
		cfg.Registry.DisableFastStartup = false
	}
}

func decode(configFile string, data []byte, v interface{}) error {
	if isJSON(configFile) {
		return json.Unmarshal(data, v)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func isJSON(configFile string) bool {
	return strings.EqualFold(filepath.Ext(configFile), ".json")
}
