package hoststate

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const gameBar = `HKCU\SOFTWARE\Microsoft\GameBar`

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore(map[string]StartupType{"DiagTrack": StartupAutomatic})

	t.Run("Unset setting is absent", func(t *testing.T) {
		_, exists := s.Setting(gameBar, "AllowAutoGameMode")
		assert.False(t, exists)
	})

	t.Run("SetSetting stores value", func(t *testing.T) {
		require.NoError(t, s.SetSetting(gameBar, "AllowAutoGameMode", 1))
		value, exists := s.Setting(gameBar, "AllowAutoGameMode")
		assert.True(t, exists)
		assert.Equal(t, 1, value)
	})

	t.Run("SetSetting requires key and name", func(t *testing.T) {
		assert.Error(t, s.SetSetting("", "x", 1))
		assert.Error(t, s.SetSetting(gameBar, "", 1))
	})

	t.Run("DeleteSetting removes value", func(t *testing.T) {
		require.NoError(t, s.DeleteSetting(gameBar, "AllowAutoGameMode"))
		_, exists := s.Setting(gameBar, "AllowAutoGameMode")
		assert.False(t, exists)
		assert.NoError(t, s.DeleteSetting(gameBar, "AllowAutoGameMode"))
	})

	t.Run("SetServiceStartup changes installed service", func(t *testing.T) {
		require.NoError(t, s.SetServiceStartup("DiagTrack", StartupDisabled))
		startup, exists := s.ServiceStartup("DiagTrack")
		assert.True(t, exists)
		assert.Equal(t, StartupDisabled, startup)
	})

	t.Run("SetServiceStartup rejects unknown service", func(t *testing.T) {
		err := s.SetServiceStartup("Missing", StartupDisabled)
		assert.ErrorIs(t, err, ErrUnknownService)
	})

	t.Run("SetServiceStartup rejects invalid startup type", func(t *testing.T) {
		assert.Error(t, s.SetServiceStartup("DiagTrack", "sometimes"))
	})

	t.Run("Memory store has no path", func(t *testing.T) {
		assert.Empty(t, s.Path())
		assert.NoError(t, s.Save())
	})
}

func TestOpen(t *testing.T) {
	t.Run("Requires a path", func(t *testing.T) {
		_, err := Open("")
		assert.Error(t, err)
	})

	t.Run("Missing file starts from default services", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "state.yaml")
		s, err := Open(path)
		require.NoError(t, err)

		assert.Len(t, s.Services(), len(DefaultServices))
		startup, exists := s.ServiceStartup("WSearch")
		assert.True(t, exists)
		assert.Equal(t, StartupAutomatic, startup)
		assert.NoFileExists(t, path)
	})

	t.Run("Changes persist across opens", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "nested", "state.yaml")
		s, err := Open(path)
		require.NoError(t, err)
		require.NoError(t, s.SetSetting(gameBar, "AutoGameModeEnabled", 1))
		require.NoError(t, s.SetServiceStartup("Spooler", StartupDisabled))

		reopened, err := Open(path)
		require.NoError(t, err)
		value, exists := reopened.Setting(gameBar, "AutoGameModeEnabled")
		assert.True(t, exists)
		assert.Equal(t, 1, value)
		startup, _ := reopened.ServiceStartup("Spooler")
		assert.Equal(t, StartupDisabled, startup)
	})

	t.Run("Empty file yields empty state", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "state.yaml")
		require.NoError(t, os.WriteFile(path, nil, 0644))
		s, err := Open(path)
		require.NoError(t, err)
		assert.Empty(t, s.Services())
		assert.NoError(t, s.SetSetting(gameBar, "AllowAutoGameMode", 1))
	})

	t.Run("Malformed file fails", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "state.yaml")
		require.NoError(t, os.WriteFile(path, []byte("settings: [unclosed"), 0644))
		_, err := Open(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "error parsing state file")
	})
}

func TestStartupTypeValid(t *testing.T) {
	assert.True(t, StartupAutomatic.Valid())
	assert.True(t, StartupManual.Valid())
	assert.True(t, StartupDisabled.Valid())
	assert.False(t, StartupType("boot").Valid())
}

func TestStoreFailedSaveKeepsPreviousState(t *testing.T) {
	// A directory at the state path makes every write fail
	s := &Store{path: t.TempDir(), state: newState()}
	s.state.Services["DiagTrack"] = StartupAutomatic
	s.state.Settings[gameBar] = map[string]int{"AllowAutoGameMode": 1}

	t.Run("SetSetting restores the old value", func(t *testing.T) {
		assert.Error(t, s.SetSetting(gameBar, "AllowAutoGameMode", 0))
		value, exists := s.Setting(gameBar, "AllowAutoGameMode")
		assert.True(t, exists)
		assert.Equal(t, 1, value)
	})

	t.Run("SetSetting drops a new value", func(t *testing.T) {
		assert.Error(t, s.SetSetting(gameBar, "ShowStartupPanel", 0))
		_, exists := s.Setting(gameBar, "ShowStartupPanel")
		assert.False(t, exists)
	})

	t.Run("SetSetting drops a new key", func(t *testing.T) {
		assert.Error(t, s.SetSetting(`HKLM\SOFTWARE\New`, "Value", 1))
		_, exists := s.state.Settings[`HKLM\SOFTWARE\New`]
		assert.False(t, exists)
	})

	t.Run("DeleteSetting restores the value", func(t *testing.T) {
		assert.Error(t, s.DeleteSetting(gameBar, "AllowAutoGameMode"))
		value, exists := s.Setting(gameBar, "AllowAutoGameMode")
		assert.True(t, exists)
		assert.Equal(t, 1, value)
	})

	t.Run("SetServiceStartup restores the startup type", func(t *testing.T) {
		assert.Error(t, s.SetServiceStartup("DiagTrack", StartupDisabled))
		startup, _ := s.ServiceStartup("DiagTrack")
		assert.Equal(t, StartupAutomatic, startup)
	})
}
