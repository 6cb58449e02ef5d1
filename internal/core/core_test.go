package core

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/sliink/tuner/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// publishingPlugin announces its own changes through the attached publisher
type publishingPlugin struct {
	*mockPlugin
	publisher model.EventPublisher
}

func (p *publishingPlugin) Attach(publisher model.EventPublisher) {
	p.publisher = publisher
}

func (p *publishingPlugin) Optimize(cfg *model.Config) (*model.OptimizationResult, error) {
	p.publisher.PublishEvent(model.EventRegistryChanged, p.Name(), map[string]interface{}{
		"key": `HKCU\Test`, "name": "Value", "value": 1,
	})
	return p.mockPlugin.Optimize(cfg)
}

func newTestCore(t *testing.T) *Core {
	t.Helper()
	cfg := model.DefaultConfig()
	cfg.Backup.Directory = t.TempDir()
	c := NewCore(Options{Config: cfg, Logger: zerolog.Nop()})
	require.True(t, c.Initialize())
	return c
}

func TestNewCore(t *testing.T) {
	c := NewCore(Options{Logger: zerolog.Nop()})

	assert.NotNil(t, c.EventBus())
	assert.NotNil(t, c.Registry())
	assert.NotNil(t, c.Orchestrator())
	assert.NotNil(t, c.Backups())
	assert.NotNil(t, c.Restores())
	assert.NotNil(t, c.ConfigManager())
	assert.NotNil(t, c.HealthMonitor())
	assert.NotNil(t, c.Metrics())
	assert.Equal(t, "core", c.ID())
	assert.Equal(t, "Core System", c.Name())
	assert.Equal(t, "backups", c.Backups().Directory())

	t.Run("Backup directory option overrides config", func(t *testing.T) {
		dir := t.TempDir()
		c := NewCore(Options{BackupDir: dir, Logger: zerolog.Nop()})
		assert.Equal(t, dir, c.Backups().Directory())
	})

	t.Run("Invalid config falls back to defaults", func(t *testing.T) {
		cfg := model.DefaultConfig()
		cfg.Mode = "turbo"
		c := NewCore(Options{Config: cfg, Logger: zerolog.Nop()})
		assert.Equal(t, model.ModeBalanced, c.ConfigManager().GetConfig().Mode)
	})
}

func TestCoreLifecycle(t *testing.T) {
	c := newTestCore(t)

	t.Run("Initialize registers components with the health monitor", func(t *testing.T) {
		assert.Equal(t, model.StatusInitialized, c.GetStatus())
		assert.Len(t, c.HealthMonitor().Components(), 8)
		assert.Equal(t, 1, c.EventBus().GetSubscriberCount(model.EventBackupCompleted))
		_, err := os.Stat(c.Backups().Directory())
		assert.NoError(t, err)
	})

	t.Run("Start runs every component", func(t *testing.T) {
		assert.True(t, c.Start())
		assert.Equal(t, model.StatusRunning, c.GetStatus())
		for _, component := range c.components() {
			assert.Equal(t, model.StatusRunning, component.GetStatus(), component.ID())
		}
		assert.Equal(t, model.StatusRunning, c.HealthMonitor().GetHealthStatus().Status)
	})

	t.Run("Stop halts every component", func(t *testing.T) {
		assert.True(t, c.Stop())
		assert.Equal(t, model.StatusStopped, c.GetStatus())
		for _, component := range c.components() {
			assert.Equal(t, model.StatusStopped, component.GetStatus(), component.ID())
		}
	})

	t.Run("Initialize fails when the backup directory cannot be created", func(t *testing.T) {
		blocker := filepath.Join(t.TempDir(), "file")
		require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))
		c := NewCore(Options{BackupDir: filepath.Join(blocker, "backups"), Logger: zerolog.Nop()})
		assert.False(t, c.Initialize())
		assert.Equal(t, model.StatusError, c.GetStatus())
	})
}

func TestCoreGetComponent(t *testing.T) {
	c := newTestCore(t)

	testCases := []struct {
		id       string
		expected Component
	}{
		{"core", c},
		{"event_bus", c.EventBus()},
		{"plugin_registry", c.Registry()},
		{"config_manager", c.ConfigManager()},
		{"health_monitor", c.HealthMonitor()},
	}
	for _, tc := range testCases {
		t.Run("Finds "+tc.id, func(t *testing.T) {
			component, exists := c.GetComponent(tc.id)
			require.True(t, exists)
			assert.Equal(t, tc.expected, component)
		})
	}

	t.Run("Unknown component is not found", func(t *testing.T) {
		_, exists := c.GetComponent("nonexistent")
		assert.False(t, exists)
	})
}

func TestCoreRegisterPlugin(t *testing.T) {
	c := newTestCore(t)

	t.Run("Nil plugin is rejected", func(t *testing.T) {
		assert.Error(t, c.RegisterPlugin(nil))
	})

	t.Run("Plain plugin is registered", func(t *testing.T) {
		require.NoError(t, c.RegisterPlugin(newMockPlugin("Plain", 1)))
		assert.True(t, c.Registry().Exists("Plain"))
	})

	t.Run("Publisher aware plugin is attached", func(t *testing.T) {
		p := &publishingPlugin{mockPlugin: newMockPlugin("Publisher", 2)}
		require.NoError(t, c.RegisterPlugin(p))
		assert.Equal(t, c, p.publisher)

		_, err := c.Optimize(nil, false)
		require.NoError(t, err)
		history := c.EventBus().GetHistory(model.EventRegistryChanged, 0)
		require.Len(t, history, 1)
		assert.Equal(t, "Publisher", history[0].Source)
	})
}

func TestCoreOptimize(t *testing.T) {
	c := newTestCore(t)
	require.NoError(t, c.RegisterPlugin(newMockPlugin("Alpha", 1)))
	require.NoError(t, c.RegisterPlugin(newMockPlugin("Beta", 2)))

	t.Run("Takes a backup before running", func(t *testing.T) {
		report, err := c.Optimize(nil, true)
		require.NoError(t, err)

		assert.NotEmpty(t, report.BackupFile)
		assert.FileExists(t, report.BackupFile)
		assert.Equal(t, 2, report.Summary.Successful)

		events := eventTypes(c.EventBus().GetHistory("", 0))
		assert.Equal(t, model.EventBackupCompleted, events[1])
		assert.Equal(t, model.EventOptimizationStarted, events[2])

		detail, exists := c.HealthMonitor().GetDetail("last_run")
		require.True(t, exists)
		assert.Equal(t, report.Summary, detail)
	})

	t.Run("Skips the backup when not requested", func(t *testing.T) {
		report, err := c.Optimize(nil, false)
		require.NoError(t, err)
		assert.Empty(t, report.BackupFile)
	})

	t.Run("Skips the backup when disabled", func(t *testing.T) {
		cfg := c.ConfigManager().GetConfig()
		cfg.Backup.Enabled = false
		report, err := c.Optimize(cfg, true)
		require.NoError(t, err)
		assert.Empty(t, report.BackupFile)
	})

	t.Run("Applies retention after the run", func(t *testing.T) {
		cfg := c.ConfigManager().GetConfig()
		cfg.Backup.MaxBackups = 2
		for i := 0; i < 3; i++ {
			_, err := c.Optimize(cfg, true)
			require.NoError(t, err)
		}
		assert.Len(t, c.Backups().ListBackups(0), 2)
	})

	t.Run("Records metrics for the run", func(t *testing.T) {
		metrics := c.Metrics()
		assert.Equal(t, float64(0), testutil.ToFloat64(metrics.activeRuns))
		assert.GreaterOrEqual(t, testutil.ToFloat64(metrics.backupsTotal), float64(4))
	})
}

func TestCoreOptimizeBackupFailure(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))

	c := NewCore(Options{BackupDir: filepath.Join(blocker, "backups"), Logger: zerolog.Nop()})
	p := newMockPlugin("Alpha", 1)
	require.NoError(t, c.RegisterPlugin(p))

	_, err := c.Optimize(nil, true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pre-run backup failed")

	var ioErr *BackupIOError
	assert.ErrorAs(t, err, &ioErr)
	assert.Equal(t, 0, p.optimizeCalls)
}

func TestCoreBackupAndRestore(t *testing.T) {
	c := newTestCore(t)
	p := newMockPlugin("Alpha", 1)
	require.NoError(t, c.RegisterPlugin(p))

	t.Run("Restore latest fails without bundles", func(t *testing.T) {
		_, err := c.Restore("")
		assert.ErrorIs(t, err, ErrNoBackups)
	})

	path, err := c.Backup(nil)
	require.NoError(t, err)

	t.Run("Backup records the bundle path", func(t *testing.T) {
		detail, exists := c.HealthMonitor().GetDetail("last_backup")
		require.True(t, exists)
		assert.Equal(t, path, detail)
	})

	t.Run("Restore latest replays the newest bundle", func(t *testing.T) {
		report, err := c.Restore("")
		require.NoError(t, err)
		assert.Equal(t, path, report.BackupFile)
		assert.Equal(t, 1, report.Successful)
		require.Len(t, p.restored, 1)
		assert.Equal(t, "Alpha", p.restored[0]["name"])
	})

	t.Run("Restore by path", func(t *testing.T) {
		report, err := c.Restore(path)
		require.NoError(t, err)
		assert.Equal(t, 1, report.Total)
	})

	t.Run("Restore of a missing file fails", func(t *testing.T) {
		_, err := c.Restore(filepath.Join(t.TempDir(), "missing.json"))
		var ioErr *RestoreIOError
		assert.ErrorAs(t, err, &ioErr)
	})
}

func TestCorePublishEvent(t *testing.T) {
	c := newTestCore(t)
	handler := newRecordingHandler(model.EventProgressUpdate)
	c.EventBus().Subscribe(model.EventProgressUpdate, handler)

	c.PublishEvent(model.EventProgressUpdate, "test", map[string]interface{}{"message": "half", "current": 1, "total": 2})

	require.Len(t, handler.received, 1)
	assert.Equal(t, "test", handler.received[0].Source)
	assert.Equal(t, "half", handler.received[0].Data["message"])
}
