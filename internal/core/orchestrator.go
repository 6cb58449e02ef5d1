package core

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/sliink/tuner/internal/model"
)

const orchestratorSource = "orchestrator"

// Orchestrator runs the enabled plugins in dependency order and keeps the
// results of the most recent run
type Orchestrator struct {
	registry *PluginRegistry
	bus      *EventBus
	logger   zerolog.Logger

	mutex   sync.RWMutex
	results []*model.OptimizationResult
	summary model.Summary
	BaseComponent
}

// NewOrchestrator creates a new orchestrator
func NewOrchestrator(registry *PluginRegistry, bus *EventBus, logger zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		registry:      registry,
		bus:           bus,
		logger:        ComponentLogger(logger, orchestratorSource),
		results:       make([]*model.OptimizationResult, 0),
		BaseComponent: NewBaseComponent(orchestratorSource, "Optimization Orchestrator"),
	}
}

// Initialize prepares the orchestrator for operation
func (o *Orchestrator) Initialize() bool {
	o.SetStatus(model.StatusInitialized)
	return true
}

// Start begins orchestrator operation
func (o *Orchestrator) Start() bool {
	o.SetStatus(model.StatusRunning)
	return true
}

// Stop halts orchestrator operation
func (o *Orchestrator) Stop() bool {
	o.SetStatus(model.StatusStopped)
	return true
}

// Run executes one optimization pass. Plugin failures are recorded in the
// results and never abort the run; only a dependency cycle returns an error.
func (o *Orchestrator) Run(cfg *model.Config) (*model.RunReport, error) {
	runID := uuid.NewString()
	startedAt := time.Now()
	logger := o.logger.With().Str("run_id", runID).Logger()

	o.mutex.Lock()
	o.results = make([]*model.OptimizationResult, 0)
	o.summary = model.Summary{}
	o.mutex.Unlock()

	o.publish(model.EventOptimizationStarted, map[string]interface{}{
		"run_id": runID,
		"config": cfg.Clone(),
	})

	plugins, err := o.registry.GetSorted()
	if err != nil {
		logger.Error().Err(err).Msg("cannot order plugins")
		o.publish(model.EventOptimizationFailed, map[string]interface{}{
			"run_id": runID,
			"error":  err.Error(),
		})
		return nil, err
	}

	if len(plugins) == 0 {
		// OPTIMIZATION_COMPLETED still follows so every started run is closed
		logger.Warn().Msg("no enabled plugins to run")
	}

	results := make([]*model.OptimizationResult, 0, len(plugins))
	for i, p := range plugins {
		results = append(results, o.runPlugin(logger, p, cfg, i+1, len(plugins)))
	}

	elapsed := time.Since(startedAt)
	summary := model.Summarize(results)
	summary.DurationMs = durationMs(elapsed)

	o.mutex.Lock()
	o.results = results
	o.summary = summary
	o.mutex.Unlock()

	payload := summary.ToMap()
	payload["run_id"] = runID
	o.publish(model.EventOptimizationCompleted, payload)

	logger.Info().
		Int("total_plugins", summary.TotalPlugins).
		Int("successful", summary.Successful).
		Int("failed", summary.Failed).
		Int("partial", summary.Partial).
		Int("skipped", summary.Skipped).
		Float64("duration_ms", summary.DurationMs).
		Msg("optimization run finished")

	return &model.RunReport{
		RunID:      runID,
		StartedAt:  startedAt,
		DurationMs: summary.DurationMs,
		Results:    results,
		Summary:    summary,
	}, nil
}

func (o *Orchestrator) runPlugin(logger zerolog.Logger, p model.Plugin, cfg *model.Config, index, total int) *model.OptimizationResult {
	name := p.Name()
	logger = logger.With().Str("plugin", name).Logger()

	var applicable bool
	if err := safeCall(func() error {
		applicable = p.CanOptimize(cfg)
		return nil
	}); err != nil {
		result := model.NewOptimizationResult(name)
		result.Fail(err.Error())
		logger.Error().Err(err).Msg("applicability check failed")
		return result
	}
	if !applicable {
		result := model.NewOptimizationResult(name)
		result.Skip("")
		logger.Debug().Msg("plugin not applicable, skipping")
		return result
	}

	var validationErrs []string
	if err := safeCall(func() error {
		validationErrs = p.Validate(cfg)
		return nil
	}); err != nil {
		validationErrs = []string{err.Error()}
	}
	if len(validationErrs) > 0 {
		result := model.NewOptimizationResult(name)
		result.Fail(validationErrs...)
		logger.Warn().Strs("errors", validationErrs).Msg("plugin validation failed")
		return result
	}

	o.publish(model.EventOptimizerStarted, map[string]interface{}{
		"plugin_name": name,
		"index":       index,
		"total":       total,
	})

	start := time.Now()
	var result *model.OptimizationResult
	err := safeCall(func() error {
		var optimizeErr error
		result, optimizeErr = p.Optimize(cfg)
		return optimizeErr
	})
	if err == nil && result == nil {
		err = errors.New("optimizer returned no result")
	}

	if err != nil {
		result = model.NewOptimizationResult(name)
		result.Fail(err.Error())
		logger.Error().Err(err).Msg("plugin optimization failed")
		o.publish(model.EventErrorOccurred, map[string]interface{}{
			"plugin_name": name,
			"message":     err.Error(),
		})
	} else {
		if result.PluginName == "" {
			result.PluginName = name
		}
		// A result handed back untouched still passes through RUNNING
		result.Start()
		result.Complete()
	}
	result.DurationMs = durationMs(time.Since(start))

	o.publish(model.EventOptimizerCompleted, map[string]interface{}{
		"plugin_name":   name,
		"status":        string(result.Status),
		"changes_count": len(result.Changes),
		"errors_count":  len(result.Errors),
		"duration_ms":   result.DurationMs,
	})

	logger.Info().
		Str("status", string(result.Status)).
		Int("changes", len(result.Changes)).
		Msg("plugin finished")

	return result
}

// Results returns the results of the most recent run
func (o *Orchestrator) Results() []*model.OptimizationResult {
	o.mutex.RLock()
	defer o.mutex.RUnlock()

	out := make([]*model.OptimizationResult, len(o.results))
	copy(out, o.results)
	return out
}

// Summary returns the summary of the most recent run
func (o *Orchestrator) Summary() model.Summary {
	o.mutex.RLock()
	defer o.mutex.RUnlock()

	return o.summary
}

func (o *Orchestrator) publish(eventType model.EventType, data map[string]interface{}) {
	o.bus.Publish(NewEvent(eventType, orchestratorSource, data))
}

func durationMs(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}
