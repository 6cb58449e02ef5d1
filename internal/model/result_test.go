package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewOptimizationResult(t *testing.T) {
	r := NewOptimizationResult("ServicesOptimizer")

	assert.Equal(t, "ServicesOptimizer", r.PluginName)
	assert.Equal(t, OptimizationPending, r.Status)
	assert.Empty(t, r.Changes)
	assert.Empty(t, r.Errors)
	assert.Empty(t, r.Warnings)
	assert.NotNil(t, r.Metadata)
	assert.True(t, time.Since(r.Timestamp) < time.Second)
}

func TestNextStatus(t *testing.T) {
	cases := []struct {
		from OptimizationStatus
		t    StatusTransition
		want OptimizationStatus
	}{
		{OptimizationPending, TransitionStart, OptimizationRunning},
		{OptimizationRunning, TransitionStart, OptimizationRunning},
		{OptimizationRunning, TransitionComplete, OptimizationSuccess},
		{OptimizationPending, TransitionComplete, OptimizationSuccess},
		{OptimizationPartial, TransitionComplete, OptimizationPartial},
		{OptimizationFailed, TransitionComplete, OptimizationFailed},
		{OptimizationSuccess, TransitionErrorAdded, OptimizationPartial},
		{OptimizationRunning, TransitionErrorAdded, OptimizationRunning},
		{OptimizationPartial, TransitionErrorAdded, OptimizationPartial},
		{OptimizationSuccess, TransitionWarningAdded, OptimizationSuccess},
		{OptimizationPartial, TransitionWarningAdded, OptimizationPartial},
		{OptimizationRunning, TransitionFail, OptimizationFailed},
		{OptimizationSuccess, TransitionFail, OptimizationFailed},
		{OptimizationSkipped, TransitionFail, OptimizationSkipped},
		{OptimizationPending, TransitionSkip, OptimizationSkipped},
		{OptimizationRunning, TransitionSkip, OptimizationSkipped},
		{OptimizationSuccess, TransitionSkip, OptimizationSuccess},
	}

	for _, tc := range cases {
		t.Run(string(tc.from)+" "+string(tc.t), func(t *testing.T) {
			assert.Equal(t, tc.want, NextStatus(tc.from, tc.t))
		})
	}
}

func TestNextStatusNeverReturnsToSuccess(t *testing.T) {
	degraded := []OptimizationStatus{OptimizationPartial, OptimizationFailed, OptimizationSkipped}
	transitions := []StatusTransition{
		TransitionStart, TransitionComplete, TransitionErrorAdded,
		TransitionWarningAdded, TransitionFail, TransitionSkip,
	}

	for _, from := range degraded {
		for _, tr := range transitions {
			assert.NotEqual(t, OptimizationSuccess, NextStatus(from, tr), "%s via %s", from, tr)
		}
	}
}

func TestOptimizationResultDegradation(t *testing.T) {
	t.Run("Error on success downgrades to partial", func(t *testing.T) {
		r := NewOptimizationResult("p")
		r.Status = OptimizationSuccess

		r.AddError("x")
		assert.Equal(t, OptimizationPartial, r.Status)

		r.AddWarning("y")
		assert.Equal(t, OptimizationPartial, r.Status)
		assert.Equal(t, []string{"x"}, r.Errors)
		assert.Equal(t, []string{"y"}, r.Warnings)
	})

	t.Run("Complete with recorded errors yields partial", func(t *testing.T) {
		r := NewOptimizationResult("p")
		r.Start()
		r.AddChange(Change{"key": "a"})
		r.AddError("could not write b")
		assert.Equal(t, OptimizationRunning, r.Status)

		r.Complete()
		assert.Equal(t, OptimizationPartial, r.Status)
		assert.Equal(t, 1, r.ChangesCount())
		assert.True(t, r.HasErrors())
	})

	t.Run("Complete without errors yields success", func(t *testing.T) {
		r := NewOptimizationResult("p")
		r.Start()
		r.Complete()
		assert.True(t, r.IsSuccess())
	})

	t.Run("Complete leaves a terminal status alone", func(t *testing.T) {
		r := NewOptimizationResult("p")
		r.Start()
		r.Skip("nothing to do")
		r.Complete()
		assert.Equal(t, OptimizationSkipped, r.Status)
		assert.Equal(t, []string{"nothing to do"}, r.Warnings)
	})

	t.Run("Fail records errors", func(t *testing.T) {
		r := NewOptimizationResult("p")
		r.Fail("bad input", "worse input")
		assert.Equal(t, OptimizationFailed, r.Status)
		assert.Len(t, r.Errors, 2)
	})
}

func TestSummarize(t *testing.T) {
	ok := NewOptimizationResult("a")
	ok.Start()
	ok.AddChange(Change{"k": 1})
	ok.AddChange(Change{"k": 2})
	ok.AddWarning("w")
	ok.Complete()
	ok.DurationMs = 10

	partial := NewOptimizationResult("b")
	partial.Start()
	partial.AddChange(Change{"k": 3})
	partial.AddError("e")
	partial.Complete()
	partial.DurationMs = 5

	failed := NewOptimizationResult("c")
	failed.Fail("boom")

	skipped := NewOptimizationResult("d")
	skipped.Skip("")

	s := Summarize([]*OptimizationResult{ok, partial, failed, skipped})

	assert.Equal(t, 3, s.TotalPlugins)
	assert.Equal(t, 1, s.Successful)
	assert.Equal(t, 1, s.Partial)
	assert.Equal(t, 1, s.Failed)
	assert.Equal(t, 1, s.Skipped)
	assert.Equal(t, 3, s.TotalChanges)
	assert.Equal(t, 2, s.TotalErrors)
	assert.Equal(t, 1, s.TotalWarnings)
	assert.Equal(t, 15.0, s.DurationMs)

	m := s.ToMap()
	assert.Equal(t, 3, m["total_plugins"])
	assert.Equal(t, 2, m["total_errors"])
}

func TestSnapshot(t *testing.T) {
	type serviceState struct {
		Startup string `json:"startup"`
	}

	t.Run("Encode and decode typed values", func(t *testing.T) {
		in := map[string]serviceState{"DiagTrack": {Startup: "automatic"}}
		snap, err := EncodeSnapshot(in)
		require.NoError(t, err)
		assert.False(t, snap.IsEmpty())

		var out map[string]serviceState
		require.NoError(t, snap.Decode(&out))
		assert.Equal(t, in, out)
	})

	t.Run("Nil snapshot is empty", func(t *testing.T) {
		var snap Snapshot
		assert.True(t, snap.IsEmpty())
	})
}

func TestConfigClone(t *testing.T) {
	enabled := false
	cfg := DefaultConfig()
	cfg.Plugins["PrivacyOptimizer"] = PluginOverride{Enabled: &enabled}

	clone := cfg.Clone()
	*clone.Plugins["PrivacyOptimizer"].Enabled = true
	clone.Backup.MaxBackups = 1

	assert.False(t, *cfg.Plugins["PrivacyOptimizer"].Enabled)
	assert.Equal(t, 10, cfg.Backup.MaxBackups)
}

func TestParseEventType(t *testing.T) {
	et, ok := ParseEventType("OPTIMIZER_STARTED")
	assert.True(t, ok)
	assert.Equal(t, EventOptimizerStarted, et)

	_, ok = ParseEventType("NOPE")
	assert.False(t, ok)
}
