package optimizers

import (
	"github.com/sliink/tuner/internal/hoststate"
	"github.com/sliink/tuner/internal/model"
	"github.com/sliink/tuner/internal/plugin"
)

// PrivacyOptimizerName is the registered name of the privacy optimizer
const PrivacyOptimizerName = "PrivacyOptimizer"

const (
	dataCollectionKey       = `HKLM\SOFTWARE\Microsoft\Windows\CurrentVersion\Policies\DataCollection`
	dataCollectionPolicyKey = `HKLM\SOFTWARE\Policies\Microsoft\Windows\DataCollection`
	systemPolicyKey         = `HKLM\SOFTWARE\Policies\Microsoft\Windows\System`
)

var privacyGroups = []tweakGroup{
	{
		label:   "telemetry",
		enabled: func(cfg *model.Config) bool { return cfg.Privacy.DisableTelemetry },
		tweaks: []tweak{
			{dataCollectionKey, "AllowTelemetry", 0},
			{dataCollectionPolicyKey, "AllowTelemetry", 0},
			{dataCollectionKey, "MaxTelemetryAllowed", 0},
			{dataCollectionPolicyKey, "MaxTelemetryAllowed", 0},
		},
	},
	{
		label:   "advertising_id",
		enabled: func(cfg *model.Config) bool { return cfg.Privacy.DisableAdvertisingID },
		tweaks: []tweak{
			{`HKCU\SOFTWARE\Microsoft\Windows\CurrentVersion\AdvertisingInfo`, "Enabled", 0},
		},
	},
	{
		label:   "location",
		enabled: func(cfg *model.Config) bool { return cfg.Privacy.DisableLocationServices },
		tweaks: []tweak{
			{`HKLM\SOFTWARE\Policies\Microsoft\Windows\LocationAndSensors`, "DisableLocation", 1},
		},
	},
	{
		label:   "cortana",
		enabled: func(cfg *model.Config) bool { return cfg.Privacy.DisableCortana },
		tweaks: []tweak{
			{`HKLM\SOFTWARE\Policies\Microsoft\Windows\Windows Search`, "AllowCortana", 0},
		},
	},
	{
		label:   "aggressive",
		enabled: func(cfg *model.Config) bool { return cfg.Privacy.Aggressive },
		tweaks: []tweak{
			{dataCollectionKey, "DoNotShowFeedbackNotifications", 1},
			{`HKCU\SOFTWARE\Microsoft\Windows\CurrentVersion\Privacy`, "TailoredExperiencesWithDiagnosticDataEnabled", 0},
			{systemPolicyKey, "EnableActivityFeed", 0},
			{systemPolicyKey, "PublishUserActivities", 0},
			{systemPolicyKey, "UploadUserActivities", 0},
			{`HKLM\SOFTWARE\Policies\Microsoft\Windows\DeliveryOptimization`, "DODownloadMode", 0},
		},
	},
}

// PrivacyOptimizer turns off data collection settings. It runs after the
// registry optimizer so its policy values win.
type PrivacyOptimizer struct {
	plugin.BasePlugin
	host hoststate.Host
}

// NewPrivacyOptimizer creates a privacy optimizer acting on host
func NewPrivacyOptimizer(host hoststate.Host) *PrivacyOptimizer {
	return &PrivacyOptimizer{
		BasePlugin: plugin.NewBasePlugin(PrivacyOptimizerName, "Turns off telemetry and data collection settings", 3, RegistryOptimizerName),
		host:       host,
	}
}

// CanOptimize reports whether any privacy group is enabled
func (o *PrivacyOptimizer) CanOptimize(cfg *model.Config) bool {
	return anyGroupEnabled(privacyGroups, cfg)
}

// Validate rejects aggressive mode without telemetry disabled
func (o *PrivacyOptimizer) Validate(cfg *model.Config) []string {
	var errs []string
	if cfg.Privacy.Aggressive && !cfg.Privacy.DisableTelemetry {
		errs = append(errs, "privacy.aggressive requires privacy.disable_telemetry")
	}
	return errs
}

// Optimize writes the settings of every enabled group
func (o *PrivacyOptimizer) Optimize(cfg *model.Config) (*model.OptimizationResult, error) {
	result := model.NewOptimizationResult(o.Name())
	result.Start()

	applyTweaks(&o.BasePlugin, o.host, privacyGroups, cfg, result)
	result.Metadata["aggressive"] = cfg.Privacy.Aggressive
	finish(result, "All privacy settings already applied")
	return result, nil
}

// Backup records every setting the optimizer can change
func (o *PrivacyOptimizer) Backup() (model.Snapshot, error) {
	return backupTweaks(o.host, privacyGroups)
}

// Restore puts the recorded settings back
func (o *PrivacyOptimizer) Restore(snapshot model.Snapshot) (bool, error) {
	return restoreTweaks(o.host, snapshot)
}
