package model

// OptimizationMode selects a preset of section defaults
type OptimizationMode string

const (
	// ModeBalanced keeps both gaming and development tooling usable
	ModeBalanced OptimizationMode = "balanced"
	// ModeGaming favours latency and foreground performance
	ModeGaming OptimizationMode = "gaming"
	// ModeDevelopment keeps indexing and background services developers rely on
	ModeDevelopment OptimizationMode = "development"
	// ModeCustom applies no preset
	ModeCustom OptimizationMode = "custom"
)

// ServiceConfig controls which service groups get disabled
type ServiceConfig struct {
	DisableTelemetry    bool `json:"disable_telemetry" yaml:"disable_telemetry"`
	DisableXboxServices bool `json:"disable_xbox_services" yaml:"disable_xbox_services"`
	DisableSearch       bool `json:"disable_search" yaml:"disable_search"`
	// DisablePrintSpooler is an opt-in; printing stops working
	DisablePrintSpooler bool `json:"disable_print_spooler" yaml:"disable_print_spooler"`
}

// RegistryConfig controls system setting tweaks
type RegistryConfig struct {
	EnableGameMode      bool `json:"enable_game_mode" yaml:"enable_game_mode"`
	EnableGPUScheduling bool `json:"enable_gpu_scheduling" yaml:"enable_gpu_scheduling"`
	DisableAdvertising  bool `json:"disable_advertising" yaml:"disable_advertising"`
	OptimizePrefetch    bool `json:"optimize_prefetch" yaml:"optimize_prefetch"`
	DisableFastStartup  bool `json:"disable_fast_startup" yaml:"disable_fast_startup"`
}

// PrivacyConfig controls privacy settings
type PrivacyConfig struct {
	DisableTelemetry        bool `json:"disable_telemetry" yaml:"disable_telemetry"`
	DisableAdvertisingID    bool `json:"disable_advertising_id" yaml:"disable_advertising_id"`
	DisableLocationServices bool `json:"disable_location_services" yaml:"disable_location_services"`
	DisableCortana          bool `json:"disable_cortana" yaml:"disable_cortana"`
	// Aggressive also turns off activity history and feedback prompts
	Aggressive bool `json:"aggressive" yaml:"aggressive"`
}

// SecurityConfig holds opt-in switches that weaken malware protection.
// Every flag defaults to off.
type SecurityConfig struct {
	DisableWindowsDefender  bool `json:"disable_windows_defender" yaml:"disable_windows_defender"`
	DisableDefenderRealtime bool `json:"disable_defender_realtime" yaml:"disable_defender_realtime"`
	// DisableDefenderCloud only applies alongside one of the other two
	DisableDefenderCloud bool `json:"disable_defender_cloud" yaml:"disable_defender_cloud"`
}

// BackupConfig controls bundle creation and retention
type BackupConfig struct {
	Enabled    bool   `json:"enabled" yaml:"enabled"`
	Directory  string `json:"directory" yaml:"directory" validate:"required"`
	MaxBackups int    `json:"max_backups" yaml:"max_backups" validate:"gte=0"`
}

// LoggingConfig configures structured logging
type LoggingConfig struct {
	Level  string `json:"level" yaml:"level" validate:"oneof=debug info warn error"`
	Format string `json:"format" yaml:"format" validate:"oneof=console json"`
	// Output is stdout, stderr or a file path
	Output string `json:"output" yaml:"output" validate:"required"`
}

// APIConfig configures the REST server
type APIConfig struct {
	Host string `json:"host" yaml:"host" validate:"required"`
	Port int    `json:"port" yaml:"port" validate:"min=1,max=65535"`
}

// MetricsConfig configures prometheus collection
type MetricsConfig struct {
	Enabled   bool   `json:"enabled" yaml:"enabled"`
	Namespace string `json:"namespace" yaml:"namespace"`
}

// StateConfig locates the host state file the optimizers act on
type StateConfig struct {
	Path string `json:"path" yaml:"path" validate:"required"`
}

// PluginOverride replaces a plugin's static metadata
type PluginOverride struct {
	Enabled  *bool `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	Priority *int  `json:"priority,omitempty" yaml:"priority,omitempty"`
}

// Config is the active configuration handed to every plugin
type Config struct {
	Mode     OptimizationMode          `json:"mode" yaml:"mode" validate:"oneof=balanced gaming development custom"`
	Services ServiceConfig             `json:"services" yaml:"services"`
	Registry RegistryConfig            `json:"registry" yaml:"registry"`
	Privacy  PrivacyConfig             `json:"privacy" yaml:"privacy"`
	Security SecurityConfig            `json:"security" yaml:"security"`
	Backup   BackupConfig              `json:"backup" yaml:"backup"`
	Logging  LoggingConfig             `json:"logging" yaml:"logging"`
	API      APIConfig                 `json:"api" yaml:"api"`
	Metrics  MetricsConfig             `json:"metrics" yaml:"metrics"`
	State    StateConfig               `json:"state" yaml:"state"`
	Plugins  map[string]PluginOverride `json:"plugins,omitempty" yaml:"plugins,omitempty"`
}

// DefaultConfig returns the balanced configuration
func DefaultConfig() *Config {
	return &Config{
		Mode: ModeBalanced,
		Services: ServiceConfig{
			DisableTelemetry:    true,
			DisableXboxServices: true,
			DisableSearch:       true,
		},
		Registry: RegistryConfig{
			EnableGameMode:      true,
			EnableGPUScheduling: true,
			DisableAdvertising:  true,
			OptimizePrefetch:    true,
			DisableFastStartup:  true,
		},
		Privacy: PrivacyConfig{
			DisableTelemetry:        true,
			DisableAdvertisingID:    true,
			DisableLocationServices: true,
			DisableCortana:          true,
		},
		Backup: BackupConfig{
			Enabled:    true,
			Directory:  "backups",
			MaxBackups: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
			Output: "stderr",
		},
		API: APIConfig{
			Host: "localhost",
			Port: 8080,
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Namespace: "tuner",
		},
		State: StateConfig{
			Path: "state.yaml",
		},
		Plugins: make(map[string]PluginOverride),
	}
}

// Clone returns a deep copy of the configuration
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	out := *c
	out.Plugins = make(map[string]PluginOverride, len(c.Plugins))
	for name, o := range c.Plugins {
		cp := PluginOverride{}
		if o.Enabled != nil {
			v := *o.Enabled
			cp.Enabled = &v
		}
		if o.Priority != nil {
			v := *o.Priority
			cp.Priority = &v
		}
		out.Plugins[name] = cp
	}
	return &out
}
