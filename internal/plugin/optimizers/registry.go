package optimizers

import (
	"github.com/sliink/tuner/internal/hoststate"
	"github.com/sliink/tuner/internal/model"
	"github.com/sliink/tuner/internal/plugin"
)

// RegistryOptimizerName is the registered name of the registry optimizer
const RegistryOptimizerName = "RegistryOptimizer"

var registryGroups = []tweakGroup{
	{
		label:   "game_mode",
		enabled: func(cfg *model.Config) bool { return cfg.Registry.EnableGameMode },
		tweaks: []tweak{
			{`HKCU\SOFTWARE\Microsoft\GameBar`, "AllowAutoGameMode", 1},
			{`HKCU\SOFTWARE\Microsoft\GameBar`, "AutoGameModeEnabled", 1},
		},
	},
	{
		label:   "gpu_scheduling",
		enabled: func(cfg *model.Config) bool { return cfg.Registry.EnableGPUScheduling },
		tweaks: []tweak{
			{`HKLM\SYSTEM\CurrentControlSet\Control\GraphicsDrivers`, "HwSchMode", 2},
		},
	},
	{
		label:   "advertising",
		enabled: func(cfg *model.Config) bool { return cfg.Registry.DisableAdvertising },
		tweaks: []tweak{
			{`HKCU\SOFTWARE\Microsoft\Windows\CurrentVersion\ContentDeliveryManager`, "SilentInstalledAppsEnabled", 0},
			{`HKCU\SOFTWARE\Microsoft\Windows\CurrentVersion\ContentDeliveryManager`, "SystemPaneSuggestionsEnabled", 0},
		},
	},
	{
		label:   "prefetch",
		enabled: func(cfg *model.Config) bool { return cfg.Registry.OptimizePrefetch },
		tweaks: []tweak{
			{`HKLM\SYSTEM\CurrentControlSet\Control\Session Manager\Memory Management\PrefetchParameters`, "EnablePrefetcher", 3},
			{`HKLM\SYSTEM\CurrentControlSet\Control\Session Manager\Memory Management\PrefetchParameters`, "EnableSuperfetch", 0},
		},
	},
	{
		label:   "fast_startup",
		enabled: func(cfg *model.Config) bool { return cfg.Registry.DisableFastStartup },
		tweaks: []tweak{
			{`HKLM\SYSTEM\CurrentControlSet\Control\Session Manager\Power`, "HiberbootEnabled", 0},
		},
	},
}

// RegistryOptimizer applies performance related system settings
type RegistryOptimizer struct {
	plugin.BasePlugin
	host hoststate.Host
}

// NewRegistryOptimizer creates a registry optimizer acting on host
func NewRegistryOptimizer(host hoststate.Host) *RegistryOptimizer {
	return &RegistryOptimizer{
		BasePlugin: plugin.NewBasePlugin(RegistryOptimizerName, "Applies performance related system settings", 2),
		host:       host,
	}
}

// CanOptimize reports whether any setting group is enabled
func (o *RegistryOptimizer) CanOptimize(cfg *model.Config) bool {
	return anyGroupEnabled(registryGroups, cfg)
}

// Optimize writes the settings of every enabled group
func (o *RegistryOptimizer) Optimize(cfg *model.Config) (*model.OptimizationResult, error) {
	result := model.NewOptimizationResult(o.Name())
	result.Start()

	applyTweaks(&o.BasePlugin, o.host, registryGroups, cfg, result)
	finish(result, "All settings already applied")
	return result, nil
}

// Backup records every setting the optimizer can change
func (o *RegistryOptimizer) Backup() (model.Snapshot, error) {
	return backupTweaks(o.host, registryGroups)
}

// Restore puts the recorded settings back
func (o *RegistryOptimizer) Restore(snapshot model.Snapshot) (bool, error) {
	return restoreTweaks(o.host, snapshot)
}
