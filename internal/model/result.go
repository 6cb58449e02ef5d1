package model

import "time"

// OptimizationStatus is the per-plugin, per-run status
type OptimizationStatus string

const (
	// OptimizationPending is the initial status
	OptimizationPending OptimizationStatus = "PENDING"
	// OptimizationRunning indicates Optimize is in progress
	OptimizationRunning OptimizationStatus = "RUNNING"
	// OptimizationSuccess indicates every change applied cleanly
	OptimizationSuccess OptimizationStatus = "SUCCESS"
	// OptimizationPartial indicates the run finished with errors
	OptimizationPartial OptimizationStatus = "PARTIAL"
	// OptimizationFailed indicates the plugin did not apply its changes
	OptimizationFailed OptimizationStatus = "FAILED"
	// OptimizationSkipped indicates the plugin had nothing to do
	OptimizationSkipped OptimizationStatus = "SKIPPED"
)

// StatusTransition is an event that may move a result's status
type StatusTransition string

const (
	// TransitionStart marks the beginning of Optimize
	TransitionStart StatusTransition = "start"
	// TransitionComplete marks the end of Optimize
	TransitionComplete StatusTransition = "complete"
	// TransitionErrorAdded is applied each time an error is recorded
	TransitionErrorAdded StatusTransition = "error_added"
	// TransitionWarningAdded is applied each time a warning is recorded
	TransitionWarningAdded StatusTransition = "warning_added"
	// TransitionFail marks the result as failed
	TransitionFail StatusTransition = "fail"
	// TransitionSkip marks the result as skipped
	TransitionSkip StatusTransition = "skip"
)

// NextStatus maps the current status and a transition to the next status.
// Statuses only move forward and a degraded status never returns to SUCCESS.
func NextStatus(current OptimizationStatus, t StatusTransition) OptimizationStatus {
	switch t {
	case TransitionStart:
		if current == OptimizationPending {
			return OptimizationRunning
		}
	case TransitionComplete:
		if current == OptimizationPending || current == OptimizationRunning {
			return OptimizationSuccess
		}
	case TransitionErrorAdded:
		if current == OptimizationSuccess {
			return OptimizationPartial
		}
	case TransitionFail:
		if current != OptimizationSkipped {
			return OptimizationFailed
		}
	case TransitionSkip:
		if current == OptimizationPending || current == OptimizationRunning {
			return OptimizationSkipped
		}
	}
	return current
}

// IsTerminal reports whether no further work happens for this status
func (s OptimizationStatus) IsTerminal() bool {
	switch s {
	case OptimizationSuccess, OptimizationPartial, OptimizationFailed, OptimizationSkipped:
		return true
	}
	return false
}

// Change is a free-form description of one altered setting
type Change map[string]interface{}

// OptimizationResult is produced once per plugin per run
type OptimizationResult struct {
	PluginName string                 `json:"plugin_name"`
	Status     OptimizationStatus     `json:"status"`
	Changes    []Change               `json:"changes"`
	Errors     []string               `json:"errors"`
	Warnings   []string               `json:"warnings"`
	DurationMs float64                `json:"duration_ms"`
	Timestamp  time.Time              `json:"timestamp"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

// NewOptimizationResult creates a pending result for a plugin
func NewOptimizationResult(pluginName string) *OptimizationResult {
	return &OptimizationResult{
		PluginName: pluginName,
		Status:     OptimizationPending,
		Changes:    make([]Change, 0),
		Errors:     make([]string, 0),
		Warnings:   make([]string, 0),
		Timestamp:  time.Now(),
		Metadata:   make(map[string]interface{}),
	}
}

func (r *OptimizationResult) apply(t StatusTransition) {
	r.Status = NextStatus(r.Status, t)
}

// Start moves a pending result to running
func (r *OptimizationResult) Start() {
	r.apply(TransitionStart)
}

// Complete finishes a running result, yielding SUCCESS or PARTIAL
func (r *OptimizationResult) Complete() {
	if r.Status.IsTerminal() {
		return
	}
	r.apply(TransitionComplete)
	if len(r.Errors) > 0 {
		r.apply(TransitionErrorAdded)
	}
}

// Fail records errors and marks the result as failed
func (r *OptimizationResult) Fail(errs ...string) {
	r.Errors = append(r.Errors, errs...)
	r.apply(TransitionFail)
}

// Skip records why nothing was done and marks the result as skipped
func (r *OptimizationResult) Skip(reason string) {
	if reason != "" {
		r.Warnings = append(r.Warnings, reason)
	}
	r.apply(TransitionSkip)
}

// AddChange appends a change record
func (r *OptimizationResult) AddChange(change Change) {
	r.Changes = append(r.Changes, change)
}

// AddError appends an error; a SUCCESS result becomes PARTIAL
func (r *OptimizationResult) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.apply(TransitionErrorAdded)
}

// AddWarning appends a warning; the status is unchanged
func (r *OptimizationResult) AddWarning(warning string) {
	r.Warnings = append(r.Warnings, warning)
	r.apply(TransitionWarningAdded)
}

// ChangesCount returns the number of recorded changes
func (r *OptimizationResult) ChangesCount() int {
	return len(r.Changes)
}

// IsSuccess reports whether the result is SUCCESS
func (r *OptimizationResult) IsSuccess() bool {
	return r.Status == OptimizationSuccess
}

// HasErrors reports whether any error was recorded
func (r *OptimizationResult) HasErrors() bool {
	return len(r.Errors) > 0
}

// Summary aggregates the results of one run
type Summary struct {
	TotalPlugins  int     `json:"total_plugins"`
	Successful    int     `json:"successful"`
	Failed        int     `json:"failed"`
	Partial       int     `json:"partial"`
	Skipped       int     `json:"skipped"`
	TotalChanges  int     `json:"total_changes"`
	TotalErrors   int     `json:"total_errors"`
	TotalWarnings int     `json:"total_warnings"`
	DurationMs    float64 `json:"duration_ms"`
}

// Summarize derives a summary from an ordered result list. Skipped plugins
// are counted separately and are not part of TotalPlugins.
func Summarize(results []*OptimizationResult) Summary {
	var s Summary
	for _, r := range results {
		switch r.Status {
		case OptimizationSkipped:
			s.Skipped++
			continue
		case OptimizationSuccess:
			s.Successful++
		case OptimizationPartial:
			s.Partial++
		case OptimizationFailed:
			s.Failed++
		}
		s.TotalPlugins++
		s.TotalChanges += len(r.Changes)
		s.TotalErrors += len(r.Errors)
		s.TotalWarnings += len(r.Warnings)
		s.DurationMs += r.DurationMs
	}
	return s
}

// ToMap converts the summary to an event payload
func (s Summary) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"total_plugins":  s.TotalPlugins,
		"successful":     s.Successful,
		"failed":         s.Failed,
		"partial":        s.Partial,
		"skipped":        s.Skipped,
		"total_changes":  s.TotalChanges,
		"total_errors":   s.TotalErrors,
		"total_warnings": s.TotalWarnings,
		"duration_ms":    s.DurationMs,
	}
}

// RunReport is the orchestrator's return value for one run
type RunReport struct {
	RunID      string                `json:"run_id"`
	StartedAt  time.Time             `json:"started_at"`
	DurationMs float64               `json:"duration_ms"`
	Results    []*OptimizationResult `json:"results"`
	Summary    Summary               `json:"summary"`
	BackupFile string                `json:"backup_file,omitempty"`
}
