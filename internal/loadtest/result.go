package loadtest

import "github.com/studiowebux/k6ui/internal/summary"

// Result is the outcome of one completed load test.
type Result struct {
	RunID     int64           `json:"runId,omitempty" yaml:"runId,omitempty"`
	Summary   string          `json:"summary" yaml:"summary"`
	Metrics   summary.Metrics `json:"metrics" yaml:"metrics"`
	RawOutput string          `json:"rawOutput" yaml:"rawOutput"`
	Script    string          `json:"script" yaml:"script"`
}
