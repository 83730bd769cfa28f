/*
Package loadtest defines the load test configuration submitted by users and its
validation rules.

# Configuration

A Config describes one k6 run:
  - TargetURL: absolute http(s) URL every virtual user calls
  - VirtualUsers: number of concurrent virtual users (>= 1)
  - Duration: how long the target concurrency is held (k6 duration, e.g. 30s, 1m, 5m30s)
  - Method: GET, POST, PUT, PATCH or DELETE (defaults to GET)
  - CallType: "simultaneous" (all users start within one second) or "gradual"
  - RampUp: ramp-up period, required for the gradual call type
  - Headers: optional JSON object of request headers
  - Body: optional JSON request body

Configs arrive as JSON from the HTTP API or from .yaml/.yml/.json/.jsonc files
through LoadFile.

# Validation

Validate reports every problem at once. The returned error satisfies
IsValidation and carries one message per offending field:

	cfg := loadtest.Config{TargetURL: "https://example.com", CallType: loadtest.CallTypeGradual}
	if err := cfg.Normalize().Validate(); loadtest.IsValidation(err) {
		// virtualUsers is required; duration is required; rampUp is required for the gradual call type
	}
*/
package loadtest
