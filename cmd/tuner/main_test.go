package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/sliink/tuner/internal/core"
	"github.com/sliink/tuner/internal/hoststate"
	"github.com/sliink/tuner/internal/model"
	"github.com/sliink/tuner/internal/plugin/optimizers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	statePath string
	backupDir string
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	dir := t.TempDir()
	return testEnv{
		statePath: filepath.Join(dir, "state.yaml"),
		backupDir: filepath.Join(dir, "backups"),
	}
}

func (e testEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{
		"--state", e.statePath,
		"--backup-dir", e.backupDir,
		"--log-level", "error",
		"--color=false",
	}, args...))
	err := cmd.Execute()
	return out.String(), err
}

// lastJSONLine returns the final document of JSON line output
func lastJSONLine(t *testing.T, out string) []byte {
	t.Helper()
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.NotEmpty(t, lines)
	return []byte(lines[len(lines)-1])
}

func TestPluginsCommand(t *testing.T) {
	env := newTestEnv(t)

	t.Run("Lists plugins in execution order", func(t *testing.T) {
		out, err := env.run(t, "plugins", "--json")
		require.NoError(t, err)

		var infos []model.PluginInfo
		require.NoError(t, json.Unmarshal(lastJSONLine(t, out), &infos))
		require.Len(t, infos, 4)
		assert.Equal(t, optimizers.ServicesOptimizerName, infos[0].Name)
		assert.Equal(t, optimizers.RegistryOptimizerName, infos[1].Name)
		assert.Equal(t, optimizers.PrivacyOptimizerName, infos[2].Name)
		assert.Equal(t, optimizers.DefenderOptimizerName, infos[3].Name)
	})

	t.Run("Applies overrides from the config file", func(t *testing.T) {
		configFile := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(configFile, []byte("plugins:\n  PrivacyOptimizer:\n    enabled: false\n"), 0644))

		out, err := env.run(t, "--config", configFile, "plugins", "--json")
		require.NoError(t, err)

		var infos []model.PluginInfo
		require.NoError(t, json.Unmarshal(lastJSONLine(t, out), &infos))
		require.Len(t, infos, 4)
		assert.Equal(t, optimizers.DefenderOptimizerName, infos[2].Name)
		assert.Equal(t, optimizers.PrivacyOptimizerName, infos[3].Name)
		assert.False(t, infos[3].Enabled)
	})

	t.Run("Text output is a table", func(t *testing.T) {
		out, err := env.run(t, "plugins")
		require.NoError(t, err)
		assert.Contains(t, out, "PRIORITY")
		assert.Contains(t, out, "[RegistryOptimizer]")
	})
}

func TestOptimizeCommand(t *testing.T) {
	t.Run("Runs, backs up and persists host state", func(t *testing.T) {
		env := newTestEnv(t)
		out, err := env.run(t, "optimize", "--json")
		require.NoError(t, err)

		var report model.RunReport
		require.NoError(t, json.Unmarshal(lastJSONLine(t, out), &report))
		assert.Equal(t, 3, report.Summary.TotalPlugins)
		assert.Equal(t, 3, report.Summary.Successful)
		assert.FileExists(t, report.BackupFile)

		host, err := hoststate.Open(env.statePath)
		require.NoError(t, err)
		startup, ok := host.ServiceStartup("DiagTrack")
		require.True(t, ok)
		assert.Equal(t, hoststate.StartupDisabled, startup)
	})

	t.Run("Skips the backup when asked", func(t *testing.T) {
		env := newTestEnv(t)
		out, err := env.run(t, "optimize", "--no-backup")
		require.NoError(t, err)
		assert.Contains(t, out, "Optimization summary")
		assert.NotContains(t, out, "Backup written")
	})

	t.Run("Rejects an unknown mode", func(t *testing.T) {
		env := newTestEnv(t)
		_, err := env.run(t, "optimize", "--mode", "turbo")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid config")
	})

	t.Run("Rejects an invalid log level", func(t *testing.T) {
		env := newTestEnv(t)
		_, err := env.run(t, "--log-level", "loud", "plugins")
		require.Error(t, err)
	})

	t.Run("Fails on a missing config file", func(t *testing.T) {
		env := newTestEnv(t)
		_, err := env.run(t, "--config", filepath.Join(t.TempDir(), "missing.yaml"), "plugins")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to load configuration")
	})
}

func TestBackupAndRestoreCommands(t *testing.T) {
	env := newTestEnv(t)

	t.Run("Restore without bundles fails", func(t *testing.T) {
		_, err := env.run(t, "restore")
		require.Error(t, err)
		assert.ErrorIs(t, err, core.ErrNoBackups)
	})

	t.Run("Backup writes a bundle", func(t *testing.T) {
		out, err := env.run(t, "backup")
		require.NoError(t, err)
		assert.Contains(t, out, "Backup written to")
	})

	t.Run("Restore latest reverts an optimization", func(t *testing.T) {
		_, err := env.run(t, "optimize", "--no-backup")
		require.NoError(t, err)

		out, err := env.run(t, "restore")
		require.NoError(t, err)
		assert.Contains(t, out, "Restored 4 of 4 plugins")

		host, err := hoststate.Open(env.statePath)
		require.NoError(t, err)
		startup, _ := host.ServiceStartup("DiagTrack")
		assert.Equal(t, hoststate.StartupAutomatic, startup)
	})

	t.Run("Restore of a named file", func(t *testing.T) {
		out, err := env.run(t, "backups", "list", "--json")
		require.NoError(t, err)

		var backups []model.BackupInfo
		require.NoError(t, json.Unmarshal(lastJSONLine(t, out), &backups))
		require.Len(t, backups, 1)

		_, err = env.run(t, "restore", backups[0].Path)
		require.NoError(t, err)
	})
}

func TestBackupsCommands(t *testing.T) {
	env := newTestEnv(t)
	for i := 0; i < 3; i++ {
		_, err := env.run(t, "backup")
		require.NoError(t, err)
	}

	t.Run("List honours the limit", func(t *testing.T) {
		out, err := env.run(t, "backups", "list", "--limit", "2", "--json")
		require.NoError(t, err)

		var backups []model.BackupInfo
		require.NoError(t, json.Unmarshal(lastJSONLine(t, out), &backups))
		assert.Len(t, backups, 2)
	})

	t.Run("Cleanup keeps the newest", func(t *testing.T) {
		out, err := env.run(t, "backups", "cleanup", "--keep", "1")
		require.NoError(t, err)
		assert.Contains(t, out, "Removed 2 backups")

		entries, err := os.ReadDir(env.backupDir)
		require.NoError(t, err)
		assert.Len(t, entries, 1)
	})

	t.Run("Cleanup rejects keeping nothing", func(t *testing.T) {
		_, err := env.run(t, "backups", "cleanup", "--keep", "0")
		require.Error(t, err)
	})
}

func TestConfigInitCommand(t *testing.T) {
	env := newTestEnv(t)
	path := filepath.Join(t.TempDir(), "tuner.yaml")

	t.Run("Writes a loadable file", func(t *testing.T) {
		out, err := env.run(t, "config", "init", path)
		require.NoError(t, err)
		assert.Contains(t, out, "Configuration written to")

		manager := core.NewConfigManager(zerolog.Nop())
		require.NoError(t, manager.LoadConfig(path))
		assert.Equal(t, model.ModeBalanced, manager.GetConfig().Mode)
		assert.Equal(t, env.statePath, manager.GetConfig().State.Path)
	})

	t.Run("Refuses to overwrite without force", func(t *testing.T) {
		_, err := env.run(t, "config", "init", path)
		require.Error(t, err)

		_, err = env.run(t, "config", "init", "--force", path)
		require.NoError(t, err)
	})
}

func TestApplyConfigOverrides(t *testing.T) {
	c := core.NewCore(core.Options{Logger: zerolog.Nop(), BackupDir: t.TempDir()})
	host := hoststate.NewMemoryStore(hoststate.DefaultServices)
	for _, p := range optimizers.Standard(optimizers.Deps{Host: host}) {
		require.NoError(t, c.RegisterPlugin(p))
	}

	disabled := false
	priority := 7
	cfg := model.DefaultConfig()
	cfg.Plugins[optimizers.ServicesOptimizerName] = model.PluginOverride{Enabled: &disabled, Priority: &priority}
	cfg.Plugins["Ghost"] = model.PluginOverride{Enabled: &disabled}

	applyConfigOverrides(c, cfg, zerolog.Nop())

	p, err := c.Registry().Get(optimizers.ServicesOptimizerName)
	require.NoError(t, err)
	assert.False(t, p.Enabled())
	assert.Equal(t, 7, p.Priority())
	assert.Len(t, c.Registry().GetEnabled(), 3)
}
