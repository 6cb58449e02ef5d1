package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/sliink/tuner/internal/api/docs"
	"github.com/sliink/tuner/internal/core"
	"github.com/sliink/tuner/internal/model"
)

// API represents the REST API for the tuner
type API struct {
	core   *core.Core
	router *gin.Engine
	server *http.Server
	port   int
	host   string
	logger zerolog.Logger
}

type errorResponse struct {
	Error string `json:"error"`
}

type optimizeRequest struct {
	// Backup defaults to true when omitted
	Backup *bool                  `json:"backup"`
	Mode   model.OptimizationMode `json:"mode"`
}

// NewAPI creates a new API instance
// @title           Tuner API
// @version         1.0
// @description     API for running and reverting system optimizations

// @license.name  Apache 2.0
// @license.url   http://www.apache.org/licenses/LICENSE-2.0.html

// @host      localhost:8080
// @BasePath  /
func NewAPI(c *core.Core, host string, port int, logger zerolog.Logger) *API {
	docs.SwaggerInfo.Host = fmt.Sprintf("%s:%d", host, port)

	api := &API{
		core:   c,
		router: gin.New(),
		port:   port,
		host:   host,
		logger: core.ComponentLogger(logger, "api"),
	}
	api.router.Use(gin.Recovery(), api.requestLogger())
	api.setupRoutes()

	return api
}

// setupRoutes configures all the API routes
func (a *API) setupRoutes() {
	a.router.GET("/health", a.healthCheck)
	a.router.GET("/status", a.getStatus)

	plugins := a.router.Group("/plugins")
	{
		plugins.GET("", a.getPlugins)
		plugins.GET("/:name", a.getPluginByName)
	}

	a.router.GET("/events", a.getEvents)
	a.router.DELETE("/events", a.clearEvents)
	a.router.POST("/optimize", a.optimize)
	a.router.GET("/results", a.getResults)

	backups := a.router.Group("/backups")
	{
		backups.GET("", a.getBackups)
		backups.POST("", a.createBackup)
		backups.POST("/:file/restore", a.restoreBackup)
	}

	a.router.GET("/config", a.getConfig)
	a.router.GET("/metrics", gin.WrapH(a.core.Metrics().Handler()))
	a.router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
}

// requestLogger logs each request through zerolog
func (a *API) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		a.logger.Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("request handled")
	}
}

// Handler returns the router for use in tests and custom servers
func (a *API) Handler() http.Handler {
	return a.router
}

// Start starts the API server and blocks until it stops
func (a *API) Start() error {
	addr := fmt.Sprintf("%s:%d", a.host, a.port)
	a.server = &http.Server{
		Addr:              addr,
		Handler:           a.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	a.logger.Info().Str("addr", addr).Msg("api listening")
	if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop stops the API server
func (a *API) Stop(ctx context.Context) error {
	if a.server == nil {
		return nil
	}
	return a.server.Shutdown(ctx)
}

// healthCheck handles GET /health
// @Summary      Health check
// @Description  Roll up component statuses into a system status
// @Tags         system
// @Produce      json
// @Success      200  {object}  model.HealthStatus
// @Failure      503  {object}  model.HealthStatus
// @Router       /health [get]
func (a *API) healthCheck(c *gin.Context) {
	health := a.core.HealthMonitor().GetHealthStatus()
	code := http.StatusOK
	if health.Status == model.StatusError {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, health)
}

// getStatus handles GET /status
// @Summary      Get system status
// @Description  Get the status of the core and every component
// @Tags         system
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Router       /status [get]
func (a *API) getStatus(c *gin.Context) {
	components := make(map[string]model.ComponentStatus)
	for _, component := range a.core.HealthMonitor().Components() {
		components[component.ID()] = component.GetStatus()
	}

	c.JSON(http.StatusOK, gin.H{
		"status":        a.core.GetStatus(),
		"components":    components,
		"plugin_count":  a.core.Registry().Count(),
		"enabled_count": len(a.core.Registry().GetEnabled()),
		"config_file":   a.core.ConfigManager().ConfigFile(),
		"backup_dir":    a.core.Backups().Directory(),
		"timestamp":     time.Now(),
	})
}

// getPlugins handles GET /plugins
// @Summary      List plugins
// @Description  List registered plugins in registration order
// @Tags         plugins
// @Produce      json
// @Success      200  {array}  model.PluginInfo
// @Router       /plugins [get]
func (a *API) getPlugins(c *gin.Context) {
	all := a.core.Registry().GetAll()
	infos := make([]model.PluginInfo, 0, len(all))
	for _, p := range all {
		infos = append(infos, model.Info(p))
	}
	c.JSON(http.StatusOK, infos)
}

// getPluginByName handles GET /plugins/:name
// @Summary      Get plugin
// @Description  Get one plugin by name
// @Tags         plugins
// @Produce      json
// @Param        name    path    string  true  "Plugin name"
// @Success      200  {object}  model.PluginInfo
// @Failure      404  {object}  errorResponse
// @Router       /plugins/{name} [get]
func (a *API) getPluginByName(c *gin.Context) {
	p, err := a.core.Registry().Get(c.Param("name"))
	if errors.Is(err, core.ErrPluginNotFound) {
		c.JSON(http.StatusNotFound, errorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, model.Info(p))
}

// getEvents handles GET /events
// @Summary      Event history
// @Description  Get recent events from the bus history, oldest first
// @Tags         events
// @Produce      json
// @Param        type    query   string   false  "Event type filter"
// @Param        limit   query   integer  false  "Maximum number of events"
// @Success      200  {array}   map[string]interface{}
// @Failure      400  {object}  errorResponse
// @Router       /events [get]
func (a *API) getEvents(c *gin.Context) {
	var eventType model.EventType
	if raw := c.Query("type"); raw != "" {
		parsed, ok := model.ParseEventType(strings.ToUpper(raw))
		if !ok {
			c.JSON(http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("unknown event type %q", raw)})
			return
		}
		eventType = parsed
	}

	limit, err := queryLimit(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	c.JSON(http.StatusOK, a.core.EventBus().GetHistory(eventType, limit))
}

// clearEvents handles DELETE /events
// @Summary      Clear event history
// @Description  Drop every event from the bus history
// @Tags         events
// @Success      204
// @Router       /events [delete]
func (a *API) clearEvents(c *gin.Context) {
	a.core.EventBus().ClearHistory()
	c.Status(http.StatusNoContent)
}

// optimize handles POST /optimize
// @Summary      Run optimization
// @Description  Take a safety backup, run every enabled plugin and apply retention
// @Tags         optimization
// @Accept       json
// @Produce      json
// @Param        request  body    optimizeRequest  false  "Run options"
// @Success      200  {object}  model.RunReport
// @Failure      400  {object}  errorResponse
// @Failure      409  {object}  errorResponse
// @Failure      500  {object}  errorResponse
// @Router       /optimize [post]
func (a *API) optimize(c *gin.Context) {
	var req optimizeRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "Invalid request format"})
		return
	}

	cfg := a.core.ConfigManager().GetConfig()
	if req.Mode != "" {
		core.ApplyModePreset(cfg, req.Mode)
		if err := a.core.ConfigManager().Validate(cfg); err != nil {
			c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
			return
		}
	}
	withBackup := req.Backup == nil || *req.Backup

	report, err := a.core.Optimize(cfg, withBackup)
	if errors.Is(err, core.ErrDependencyCycle) {
		c.JSON(http.StatusConflict, errorResponse{Error: err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, report)
}

// getResults handles GET /results
// @Summary      Last run results
// @Description  Get the results and summary of the last run
// @Tags         optimization
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Router       /results [get]
func (a *API) getResults(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"results": a.core.Orchestrator().Results(),
		"summary": a.core.Orchestrator().Summary(),
	})
}

// getBackups handles GET /backups
// @Summary      List backups
// @Description  List bundles, newest first
// @Tags         backups
// @Produce      json
// @Param        limit   query   integer  false  "Maximum number of bundles"
// @Success      200  {array}   model.BackupInfo
// @Failure      400  {object}  errorResponse
// @Router       /backups [get]
func (a *API) getBackups(c *gin.Context) {
	limit, err := queryLimit(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, a.core.Backups().ListBackups(limit))
}

// createBackup handles POST /backups
// @Summary      Create backup
// @Description  Write a bundle of the current plugin state
// @Tags         backups
// @Produce      json
// @Success      201  {object}  map[string]string
// @Failure      500  {object}  errorResponse
// @Router       /backups [post]
func (a *API) createBackup(c *gin.Context) {
	path, err := a.core.Backup(nil)
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"backup_file": path})
}

// restoreBackup handles POST /backups/:file/restore
// @Summary      Restore backup
// @Description  Replay a bundle from the backup directory
// @Tags         backups
// @Produce      json
// @Param        file    path    string  true  "Bundle file name"
// @Success      200  {object}  model.RestoreReport
// @Failure      400  {object}  errorResponse
// @Failure      404  {object}  errorResponse
// @Router       /backups/{file}/restore [post]
func (a *API) restoreBackup(c *gin.Context) {
	name := c.Param("file")
	if name != filepath.Base(name) || !strings.HasPrefix(name, "backup_") || filepath.Ext(name) != ".json" {
		c.JSON(http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("invalid backup name %q", name)})
		return
	}

	report, err := a.core.Restore(filepath.Join(a.core.Backups().Directory(), name))
	if errors.Is(err, os.ErrNotExist) {
		c.JSON(http.StatusNotFound, errorResponse{Error: "Backup not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, errorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, report)
}

// getConfig handles GET /config
// @Summary      Get configuration
// @Description  Get the active configuration
// @Tags         config
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Router       /config [get]
func (a *API) getConfig(c *gin.Context) {
	c.JSON(http.StatusOK, a.core.ConfigManager().GetConfig())
}

func queryLimit(c *gin.Context) (int, error) {
	raw := c.Query("limit")
	if raw == "" {
		return 0, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		return 0, fmt.Errorf("invalid limit %q", raw)
	}
	return limit, nil
}
