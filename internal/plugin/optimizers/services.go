package optimizers

import (
	"errors"
	"fmt"
	"sort"

	"github.com/sliink/tuner/internal/hoststate"
	"github.com/sliink/tuner/internal/model"
	"github.com/sliink/tuner/internal/plugin"
)

// ServicesOptimizerName is the registered name of the services optimizer
const ServicesOptimizerName = "ServicesOptimizer"

type serviceGroup struct {
	label    string
	enabled  func(cfg *model.Config) bool
	services []string
}

var serviceGroups = []serviceGroup{
	{
		label:    "telemetry",
		enabled:  func(cfg *model.Config) bool { return cfg.Services.DisableTelemetry },
		services: []string{"DiagTrack", "dmwappushservice", "wisvc"},
	},
	{
		label:    "xbox",
		enabled:  func(cfg *model.Config) bool { return cfg.Services.DisableXboxServices },
		services: []string{"XblAuthManager", "XblGameSave", "XboxGipSvc", "XboxNetApiSvc"},
	},
	{
		label:    "search",
		enabled:  func(cfg *model.Config) bool { return cfg.Services.DisableSearch },
		services: []string{"WSearch"},
	},
	{
		label:    "print_spooler",
		enabled:  func(cfg *model.Config) bool { return cfg.Services.DisablePrintSpooler },
		services: []string{"Spooler"},
	},
}

// protectedServices are never disabled
var protectedServices = map[string]bool{
	"BITS":     true,
	"wuauserv": true,
	"EventLog": true,
	"RpcSs":    true,
	"Dnscache": true,
	"Winmgmt":  true,
	"CryptSvc": true,
	"Schedule": true,
	"PlugPlay": true,
	"ProfSvc":  true,
}

type servicesSnapshot struct {
	Services map[string]hoststate.StartupType `json:"services"`
}

// ServicesOptimizer disables background services that are not needed
type ServicesOptimizer struct {
	plugin.BasePlugin
	host hoststate.Host
}

// NewServicesOptimizer creates a services optimizer acting on host
func NewServicesOptimizer(host hoststate.Host) *ServicesOptimizer {
	return &ServicesOptimizer{
		BasePlugin: plugin.NewBasePlugin(ServicesOptimizerName, "Disables unnecessary background services", 1),
		host:       host,
	}
}

// CanOptimize reports whether any service group is enabled
func (o *ServicesOptimizer) CanOptimize(cfg *model.Config) bool {
	for _, g := range serviceGroups {
		if g.enabled(cfg) {
			return true
		}
	}
	return false
}

// Optimize disables every installed service of the enabled groups
func (o *ServicesOptimizer) Optimize(cfg *model.Config) (*model.OptimizationResult, error) {
	result := model.NewOptimizationResult(o.Name())
	result.Start()

	for _, g := range serviceGroups {
		if g.enabled(cfg) {
			disableServices(&o.BasePlugin, o.host, g.label, g.services, result)
		}
	}

	finish(result, "All selected services already disabled")
	return result, nil
}

// Backup records the startup type of every installed service the
// optimizer can change
func (o *ServicesOptimizer) Backup() (model.Snapshot, error) {
	names := make([]string, 0)
	for _, g := range serviceGroups {
		names = append(names, g.services...)
	}
	snapshot := servicesSnapshot{Services: serviceStartups(o.host, names)}
	if len(snapshot.Services) == 0 {
		return nil, nil
	}
	return model.EncodeSnapshot(snapshot)
}

// Restore puts the recorded startup types back. Services that have since
// been removed are skipped.
func (o *ServicesOptimizer) Restore(snapshot model.Snapshot) (bool, error) {
	var saved servicesSnapshot
	if err := snapshot.Decode(&saved); err != nil {
		return false, nil
	}
	return restoreServices(o.host, saved.Services)
}

// disableServices disables every installed, unprotected service in names and
// records each change in result
func disableServices(base *plugin.BasePlugin, host hoststate.Host, label string, names []string, result *model.OptimizationResult) {
	for _, service := range names {
		if protectedServices[service] {
			continue
		}
		previous, installed := host.ServiceStartup(service)
		if !installed {
			result.AddWarning(fmt.Sprintf("Service %s is not installed", service))
			continue
		}
		if previous == hoststate.StartupDisabled {
			continue
		}

		if err := host.SetServiceStartup(service, hoststate.StartupDisabled); err != nil {
			result.AddError(fmt.Sprintf("Failed to disable %s: %v", service, err))
			continue
		}
		result.AddChange(model.Change{
			"type":     "service_disable",
			"group":    label,
			"service":  service,
			"previous": string(previous),
			"action":   "disabled",
		})
		base.Publish(model.EventServiceDisabled, map[string]interface{}{
			"service":  service,
			"previous": string(previous),
		})
	}
}

// serviceStartups returns the startup type of every installed service in names
func serviceStartups(host hoststate.Host, names []string) map[string]hoststate.StartupType {
	out := make(map[string]hoststate.StartupType)
	for _, service := range names {
		if startup, installed := host.ServiceStartup(service); installed {
			out[service] = startup
		}
	}
	return out
}

// restoreServices puts recorded startup types back in name order. An invalid
// startup type is an expected failure; a host write error is returned.
func restoreServices(host hoststate.Host, saved map[string]hoststate.StartupType) (bool, error) {
	names := make([]string, 0, len(saved))
	for name := range saved {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		startup := saved[name]
		if !startup.Valid() {
			return false, nil
		}
		err := host.SetServiceStartup(name, startup)
		if errors.Is(err, hoststate.ErrUnknownService) {
			continue
		}
		if err != nil {
			return false, fmt.Errorf("restore %s: %w", name, err)
		}
	}
	return true, nil
}
