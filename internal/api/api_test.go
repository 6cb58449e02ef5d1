package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/sliink/tuner/internal/core"
	"github.com/sliink/tuner/internal/hoststate"
	"github.com/sliink/tuner/internal/model"
	"github.com/sliink/tuner/internal/plugin/optimizers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestAPI(t *testing.T) (*API, *core.Core) {
	t.Helper()
	cfg := model.DefaultConfig()
	cfg.Backup.Directory = t.TempDir()
	c := core.NewCore(core.Options{Config: cfg, Logger: zerolog.Nop()})
	require.True(t, c.Initialize())
	require.True(t, c.Start())

	host := hoststate.NewMemoryStore(hoststate.DefaultServices)
	for _, p := range optimizers.Standard(optimizers.Deps{Host: host}) {
		require.NoError(t, c.RegisterPlugin(p))
	}
	return NewAPI(c, "localhost", 8080, zerolog.Nop()), c
}

func request(t *testing.T, a *API, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	a.Handler().ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v))
}

func TestHealthAndStatus(t *testing.T) {
	a, c := newTestAPI(t)

	t.Run("Health reports running system", func(t *testing.T) {
		w := request(t, a, http.MethodGet, "/health", "")
		assert.Equal(t, http.StatusOK, w.Code)

		var health model.HealthStatus
		decodeBody(t, w, &health)
		assert.Equal(t, model.StatusRunning, health.Status)
	})

	t.Run("Status lists components and plugins", func(t *testing.T) {
		w := request(t, a, http.MethodGet, "/status", "")
		assert.Equal(t, http.StatusOK, w.Code)

		var status map[string]interface{}
		decodeBody(t, w, &status)
		assert.Equal(t, "RUNNING", status["status"])
		assert.Equal(t, float64(3), status["plugin_count"])
		assert.Contains(t, status["components"], "event_bus")
	})

	t.Run("Health reports errors as unavailable", func(t *testing.T) {
		c.EventBus().SetStatus(model.StatusError)
		defer c.EventBus().SetStatus(model.StatusRunning)

		w := request(t, a, http.MethodGet, "/health", "")
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})
}

func TestPluginEndpoints(t *testing.T) {
	a, _ := newTestAPI(t)

	t.Run("Lists plugins in registration order", func(t *testing.T) {
		w := request(t, a, http.MethodGet, "/plugins", "")
		assert.Equal(t, http.StatusOK, w.Code)

		var infos []model.PluginInfo
		decodeBody(t, w, &infos)
		require.Len(t, infos, 4)
		assert.Equal(t, optimizers.ServicesOptimizerName, infos[0].Name)
		assert.Equal(t, []string{optimizers.RegistryOptimizerName}, infos[2].Dependencies)
		assert.Equal(t, optimizers.DefenderOptimizerName, infos[3].Name)
	})

	t.Run("Gets plugin by name", func(t *testing.T) {
		w := request(t, a, http.MethodGet, "/plugins/PrivacyOptimizer", "")
		assert.Equal(t, http.StatusOK, w.Code)

		var info model.PluginInfo
		decodeBody(t, w, &info)
		assert.Equal(t, 3, info.Priority)
	})

	t.Run("Unknown plugin is not found", func(t *testing.T) {
		w := request(t, a, http.MethodGet, "/plugins/Ghost", "")
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Contains(t, w.Body.String(), "Ghost")
	})
}

func TestOptimizeEndpoint(t *testing.T) {
	a, c := newTestAPI(t)

	t.Run("Rejects malformed body", func(t *testing.T) {
		w := request(t, a, http.MethodPost, "/optimize", "{")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("Rejects unknown mode", func(t *testing.T) {
		w := request(t, a, http.MethodPost, "/optimize", `{"mode": "turbo"}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "invalid config")
	})

	t.Run("Runs with a backup by default", func(t *testing.T) {
		w := request(t, a, http.MethodPost, "/optimize", "")
		require.Equal(t, http.StatusOK, w.Code)

		var report model.RunReport
		decodeBody(t, w, &report)
		assert.NotEmpty(t, report.RunID)
		assert.NotEmpty(t, report.BackupFile)
		assert.Equal(t, 3, report.Summary.Successful)
	})

	t.Run("Runs without a backup when asked", func(t *testing.T) {
		w := request(t, a, http.MethodPost, "/optimize", `{"backup": false, "mode": "gaming"}`)
		require.Equal(t, http.StatusOK, w.Code)

		var report model.RunReport
		decodeBody(t, w, &report)
		assert.Empty(t, report.BackupFile)
	})

	t.Run("Results return the last run", func(t *testing.T) {
		w := request(t, a, http.MethodGet, "/results", "")
		assert.Equal(t, http.StatusOK, w.Code)

		var body struct {
			Results []*model.OptimizationResult `json:"results"`
			Summary model.Summary               `json:"summary"`
		}
		decodeBody(t, w, &body)
		assert.Len(t, body.Results, 4)
		assert.Equal(t, c.Orchestrator().Summary().TotalPlugins, body.Summary.TotalPlugins)
	})
}

func TestEventsEndpoint(t *testing.T) {
	a, c := newTestAPI(t)
	c.PublishEvent(model.EventProgressUpdate, "test", map[string]interface{}{"message": "one"})
	c.PublishEvent(model.EventWarningOccurred, "test", map[string]interface{}{"message": "two"})
	c.PublishEvent(model.EventProgressUpdate, "test", map[string]interface{}{"message": "three"})

	t.Run("Filters by type", func(t *testing.T) {
		w := request(t, a, http.MethodGet, "/events?type=progress_update", "")
		assert.Equal(t, http.StatusOK, w.Code)

		var events []core.Event
		decodeBody(t, w, &events)
		require.Len(t, events, 2)
		assert.Equal(t, "one", events[0].Data["message"])
	})

	t.Run("Limits to the most recent", func(t *testing.T) {
		w := request(t, a, http.MethodGet, "/events?limit=1", "")
		var events []core.Event
		decodeBody(t, w, &events)
		require.Len(t, events, 1)
		assert.Equal(t, "three", events[0].Data["message"])
	})

	t.Run("Rejects unknown type", func(t *testing.T) {
		w := request(t, a, http.MethodGet, "/events?type=NOPE", "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("Rejects bad limit", func(t *testing.T) {
		w := request(t, a, http.MethodGet, "/events?limit=-2", "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("Delete clears the history", func(t *testing.T) {
		w := request(t, a, http.MethodDelete, "/events", "")
		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Empty(t, c.EventBus().GetHistory("", 0))
	})
}

func TestBackupEndpoints(t *testing.T) {
	a, _ := newTestAPI(t)

	var created map[string]string
	t.Run("Creates a backup", func(t *testing.T) {
		w := request(t, a, http.MethodPost, "/backups", "")
		require.Equal(t, http.StatusCreated, w.Code)
		decodeBody(t, w, &created)
		assert.FileExists(t, created["backup_file"])
	})

	t.Run("Lists backups", func(t *testing.T) {
		w := request(t, a, http.MethodGet, "/backups?limit=5", "")
		assert.Equal(t, http.StatusOK, w.Code)

		var backups []model.BackupInfo
		decodeBody(t, w, &backups)
		require.Len(t, backups, 1)
		assert.Equal(t, filepath.Base(created["backup_file"]), backups[0].Name)
	})

	t.Run("Restores a backup by name", func(t *testing.T) {
		name := filepath.Base(created["backup_file"])
		w := request(t, a, http.MethodPost, "/backups/"+name+"/restore", "")
		require.Equal(t, http.StatusOK, w.Code)

		var report model.RestoreReport
		decodeBody(t, w, &report)
		assert.Equal(t, 3, report.Successful)
	})

	t.Run("Rejects names outside the backup pattern", func(t *testing.T) {
		w := request(t, a, http.MethodPost, "/backups/config.yaml/restore", "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("Missing backup is not found", func(t *testing.T) {
		w := request(t, a, http.MethodPost, "/backups/backup_19990101_000000_000000000.json/restore", "")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestConfigMetricsAndDocs(t *testing.T) {
	a, _ := newTestAPI(t)

	t.Run("Config returns active configuration", func(t *testing.T) {
		w := request(t, a, http.MethodGet, "/config", "")
		assert.Equal(t, http.StatusOK, w.Code)

		var cfg model.Config
		decodeBody(t, w, &cfg)
		assert.Equal(t, model.ModeBalanced, cfg.Mode)
	})

	t.Run("Metrics are exposed", func(t *testing.T) {
		request(t, a, http.MethodPost, "/backups", "")
		w := request(t, a, http.MethodGet, "/metrics", "")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "tuner_backups_total 1")
	})

	t.Run("Swagger document is served", func(t *testing.T) {
		w := request(t, a, http.MethodGet, "/swagger/doc.json", "")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.True(t, strings.Contains(w.Body.String(), "/backups/{file}/restore"))
	})
}
