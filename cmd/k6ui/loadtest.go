package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/studiowebux/k6ui/internal/loadtest"
)

// loadTestFlags describe a load test on the command line. They override the
// matching fields of a config file.
type loadTestFlags struct {
	url      string
	vus      int
	duration string
	method   string
	callType string
	rampUp   string
	headers  string
	body     string
}

func (f *loadTestFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.url, "url", "u", "", "Target URL")
	cmd.Flags().IntVar(&f.vus, "vus", 10, "Number of virtual users")
	cmd.Flags().StringVarP(&f.duration, "duration", "d", "5s", "Test duration (e.g. 30s, 1m, 5m30s)")
	cmd.Flags().StringVarP(&f.method, "method", "X", "GET", "HTTP method (GET/POST/PUT/PATCH/DELETE)")
	cmd.Flags().StringVar(&f.callType, "call-type", string(loadtest.CallTypeSimultaneous), "Call type (simultaneous/gradual)")
	cmd.Flags().StringVar(&f.rampUp, "ramp-up", "", "Ramp-up duration, required for the gradual call type")
	cmd.Flags().StringVarP(&f.headers, "headers", "H", "", `Request headers as a JSON object (e.g. {"Authorization":"Bearer x"})`)
	cmd.Flags().StringVarP(&f.body, "body", "b", "", "Request body as JSON")
}

// build returns the configuration from an optional file argument and flags.
func (f *loadTestFlags) build(cmd *cobra.Command, args []string) (loadtest.Config, error) {
	var cfg loadtest.Config

	if len(args) > 0 {
		loaded, err := loadtest.LoadFile(args[0])
		if loadtest.IsUnsupportedFormat(err) {
			return loadtest.Config{}, fmt.Errorf("%s is not a load test file: %w", args[0], err)
		} else if err != nil {
			return loadtest.Config{}, fmt.Errorf("failed to load %s: %w", args[0], err)
		}
		cfg = loaded
	} else {
		cfg = loadtest.Config{
			VirtualUsers: f.vus,
			Duration:     f.duration,
			Method:       f.method,
			CallType:     loadtest.CallType(f.callType),
		}
	}

	changed := func(name string) bool { return cmd.Flags().Changed(name) }

	if changed("url") || len(args) == 0 {
		cfg.TargetURL = f.url
	}
	if changed("vus") {
		cfg.VirtualUsers = f.vus
	}
	if changed("duration") {
		cfg.Duration = f.duration
	}
	if changed("method") {
		cfg.Method = f.method
	}
	if changed("call-type") {
		cfg.CallType = loadtest.CallType(f.callType)
	}
	if changed("ramp-up") || len(args) == 0 {
		cfg.RampUp = f.rampUp
	}
	if changed("headers") || len(args) == 0 {
		cfg.Headers = f.headers
	}
	if changed("body") || len(args) == 0 {
		cfg.Body = f.body
	}

	return cfg.Normalize(), nil
}
