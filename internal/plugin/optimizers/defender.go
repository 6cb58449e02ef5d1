package optimizers

import (
	"github.com/sliink/tuner/internal/hoststate"
	"github.com/sliink/tuner/internal/model"
	"github.com/sliink/tuner/internal/plugin"
)

// DefenderOptimizerName is the registered name of the Defender optimizer
const DefenderOptimizerName = "DefenderOptimizer"

const (
	defenderPolicyKey   = `HKLM\SOFTWARE\Policies\Microsoft\Windows Defender`
	defenderRealtimeKey = defenderPolicyKey + `\Real-Time Protection`
)

var defenderGroups = []tweakGroup{
	{
		label:   "realtime",
		enabled: func(cfg *model.Config) bool { return cfg.Security.DisableDefenderRealtime },
		tweaks: []tweak{
			{defenderRealtimeKey, "DisableRealtimeMonitoring", 1},
		},
	},
	{
		label:   "cloud",
		enabled: func(cfg *model.Config) bool { return cfg.Security.DisableDefenderCloud },
		tweaks: []tweak{
			{defenderPolicyKey, "DisableRealtimeMonitoring", 1},
			{defenderPolicyKey, "DisableIOAVProtection", 1},
		},
	},
}

var defenderServices = []string{"WinDefend", "WdNisSvc", "Sense"}

type defenderSnapshot struct {
	Settings []savedSetting                   `json:"settings"`
	Services map[string]hoststate.StartupType `json:"services"`
}

// DefenderOptimizer turns off Windows Defender protections. Nothing happens
// unless the security section opts in, and it runs last.
type DefenderOptimizer struct {
	plugin.BasePlugin
	host hoststate.Host
}

// NewDefenderOptimizer creates a Defender optimizer acting on host
func NewDefenderOptimizer(host hoststate.Host) *DefenderOptimizer {
	return &DefenderOptimizer{
		BasePlugin: plugin.NewBasePlugin(DefenderOptimizerName, "Turns off Windows Defender protections (opt-in)", 10),
		host:       host,
	}
}

// CanOptimize requires the Defender services or real-time protection to be
// switched off; the cloud flag alone does nothing
func (o *DefenderOptimizer) CanOptimize(cfg *model.Config) bool {
	return cfg.Security.DisableWindowsDefender || cfg.Security.DisableDefenderRealtime
}

// Optimize applies the enabled security switches
func (o *DefenderOptimizer) Optimize(cfg *model.Config) (*model.OptimizationResult, error) {
	result := model.NewOptimizationResult(o.Name())
	result.Start()

	applyTweaks(&o.BasePlugin, o.host, defenderGroups, cfg, result)
	if cfg.Security.DisableWindowsDefender {
		disableServices(&o.BasePlugin, o.host, "defender", defenderServices, result)
	}
	finish(result, "Windows Defender settings already applied")
	return result, nil
}

// Backup records the policy values and Defender service startup types
func (o *DefenderOptimizer) Backup() (model.Snapshot, error) {
	return model.EncodeSnapshot(defenderSnapshot{
		Settings: savedSettings(o.host, defenderGroups),
		Services: serviceStartups(o.host, defenderServices),
	})
}

// Restore puts the recorded policy values and startup types back
func (o *DefenderOptimizer) Restore(snapshot model.Snapshot) (bool, error) {
	var saved defenderSnapshot
	if err := snapshot.Decode(&saved); err != nil {
		return false, nil
	}
	if err := restoreSettings(o.host, saved.Settings); err != nil {
		return false, err
	}
	return restoreServices(o.host, saved.Services)
}
