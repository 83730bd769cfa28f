// Package history persists load test runs in SQLite.
//
// A run is recorded when it reaches execution and completed once k6 exits,
// successfully or not.
package history

import (
	"time"

	"github.com/studiowebux/k6ui/internal/loadtest"
	"github.com/studiowebux/k6ui/internal/summary"
)

// Status is the lifecycle state of a run.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Run is one recorded load test.
type Run struct {
	ID          int64           `json:"id" yaml:"id"`
	StartedAt   time.Time       `json:"startedAt" yaml:"startedAt"`
	CompletedAt *time.Time      `json:"completedAt,omitempty" yaml:"completedAt,omitempty"`
	Status      Status          `json:"status" yaml:"status"`
	Config      loadtest.Config `json:"config" yaml:"config"`
	Binary      string          `json:"binary,omitempty" yaml:"binary,omitempty"`
	Script      string          `json:"script,omitempty" yaml:"script,omitempty"`
	Summary     string          `json:"summary,omitempty" yaml:"summary,omitempty"`
	Metrics     summary.Metrics `json:"metrics" yaml:"metrics"`
	RawOutput   string          `json:"rawOutput,omitempty" yaml:"rawOutput,omitempty"`
	Error       string          `json:"error,omitempty" yaml:"error,omitempty"`
	ExitCode    *int            `json:"exitCode,omitempty" yaml:"exitCode,omitempty"`
	DurationMS  int64           `json:"durationMs" yaml:"durationMs"`
}

// Elapsed returns the recorded run duration.
func (r *Run) Elapsed() time.Duration {
	return time.Duration(r.DurationMS) * time.Millisecond
}
