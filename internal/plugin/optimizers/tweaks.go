package optimizers

import (
	"fmt"

	"github.com/sliink/tuner/internal/hoststate"
	"github.com/sliink/tuner/internal/model"
	"github.com/sliink/tuner/internal/plugin"
)

// tweak is one setting value an optimizer wants in place
type tweak struct {
	Key   string
	Name  string
	Value int
}

// tweakGroup is a set of tweaks switched on by one config flag
type tweakGroup struct {
	label   string
	enabled func(cfg *model.Config) bool
	tweaks  []tweak
}

// savedSetting records a setting before change. A nil value means the
// setting was absent and is deleted on restore.
type savedSetting struct {
	Key   string `json:"key"`
	Name  string `json:"name"`
	Value *int   `json:"value"`
}

type settingsSnapshot struct {
	Settings []savedSetting `json:"settings"`
}

func anyGroupEnabled(groups []tweakGroup, cfg *model.Config) bool {
	for _, g := range groups {
		if g.enabled(cfg) {
			return true
		}
	}
	return false
}

// applyTweaks writes every tweak of the enabled groups that differs from the
// host and records each write in result
func applyTweaks(base *plugin.BasePlugin, host hoststate.Host, groups []tweakGroup, cfg *model.Config, result *model.OptimizationResult) {
	for _, g := range groups {
		if !g.enabled(cfg) {
			continue
		}
		for _, tw := range g.tweaks {
			previous, exists := host.Setting(tw.Key, tw.Name)
			if exists && previous == tw.Value {
				continue
			}
			if err := host.SetSetting(tw.Key, tw.Name, tw.Value); err != nil {
				result.AddError(fmt.Sprintf("Failed to set %s\\%s: %v", tw.Key, tw.Name, err))
				continue
			}

			change := model.Change{
				"type":  "registry",
				"group": g.label,
				"key":   tw.Key,
				"name":  tw.Name,
				"value": tw.Value,
			}
			if exists {
				change["previous"] = previous
			}
			result.AddChange(change)
			base.Publish(model.EventRegistryChanged, map[string]interface{}{
				"key":   tw.Key,
				"name":  tw.Name,
				"value": tw.Value,
			})
		}
	}
}

// finish ends a running result. Nothing changed and nothing failed means
// the host was already in the wanted state.
func finish(result *model.OptimizationResult, unchanged string) {
	switch {
	case result.ChangesCount() == 0 && !result.HasErrors():
		result.Skip(unchanged)
	case result.ChangesCount() == 0:
		result.Fail()
	default:
		result.Complete()
	}
}

// backupTweaks records the current value of every setting the groups can
// touch, regardless of which groups are enabled
func backupTweaks(host hoststate.Host, groups []tweakGroup) (model.Snapshot, error) {
	snapshot := settingsSnapshot{Settings: savedSettings(host, groups)}
	if len(snapshot.Settings) == 0 {
		return nil, nil
	}
	return model.EncodeSnapshot(snapshot)
}

// restoreTweaks puts every recorded setting back. A malformed snapshot is an
// expected failure; a host write error is returned.
func restoreTweaks(host hoststate.Host, snapshot model.Snapshot) (bool, error) {
	var saved settingsSnapshot
	if err := snapshot.Decode(&saved); err != nil {
		return false, nil
	}
	if err := restoreSettings(host, saved.Settings); err != nil {
		return false, err
	}
	return true, nil
}

func savedSettings(host hoststate.Host, groups []tweakGroup) []savedSetting {
	seen := make(map[string]bool)
	out := make([]savedSetting, 0)
	for _, g := range groups {
		for _, tw := range g.tweaks {
			id := tw.Key + "\\" + tw.Name
			if seen[id] {
				continue
			}
			seen[id] = true

			saved := savedSetting{Key: tw.Key, Name: tw.Name}
			if value, exists := host.Setting(tw.Key, tw.Name); exists {
				saved.Value = &value
			}
			out = append(out, saved)
		}
	}
	return out
}

// restoreSettings writes back recorded values and deletes the ones that were absent
func restoreSettings(host hoststate.Host, settings []savedSetting) error {
	for _, s := range settings {
		var err error
		if s.Value == nil {
			err = host.DeleteSetting(s.Key, s.Name)
		} else {
			err = host.SetSetting(s.Key, s.Name, *s.Value)
		}
		if err != nil {
			return fmt.Errorf("restore %s\\%s: %w", s.Key, s.Name, err)
		}
	}
	return nil
}
