package loadtest

import (
	"strings"
	"time"
)

// CallType controls how virtual users are brought up before the hold phase.
type CallType string

const (
	// CallTypeSimultaneous starts every virtual user within SimultaneousRampUp.
	CallTypeSimultaneous CallType = "simultaneous"
	// CallTypeGradual ramps virtual users up over the user supplied RampUp.
	CallTypeGradual CallType = "gradual"
)

// SimultaneousRampUp is the ramp phase used for the simultaneous call type.
const SimultaneousRampUp = "1s"

// Supported HTTP methods.
const (
	MethodGet    = "GET"
	MethodPost   = "POST"
	MethodPut    = "PUT"
	MethodPatch  = "PATCH"
	MethodDelete = "DELETE"
)

// Methods lists the supported HTTP methods in display order.
var Methods = []string{MethodGet, MethodPost, MethodPut, MethodPatch, MethodDelete}

// Config represents a single load test request
type Config struct {
	TargetURL    string   `json:"targetUrl" yaml:"targetUrl" validate:"required,http_url"`
	VirtualUsers int      `json:"virtualUsers" yaml:"virtualUsers" validate:"required,min=1"`
	Duration     string   `json:"duration" yaml:"duration" validate:"required,k6duration"`
	Method       string   `json:"method,omitempty" yaml:"method,omitempty" validate:"omitempty,oneof=GET POST PUT PATCH DELETE"`
	CallType     CallType `json:"callType" yaml:"callType" validate:"required,oneof=simultaneous gradual"`
	RampUp       string   `json:"rampUp,omitempty" yaml:"rampUp,omitempty" validate:"omitempty,k6duration"`
	Headers      string   `json:"headers,omitempty" yaml:"headers,omitempty" validate:"omitempty,jsonobject"`
	Body         string   `json:"body,omitempty" yaml:"body,omitempty" validate:"omitempty,json"`
}

// Normalize returns a copy with surrounding whitespace removed, the method
// upper-cased and defaulted to GET, and RampUp dropped for the simultaneous
// call type.
func (c Config) Normalize() Config {
	c.TargetURL = strings.TrimSpace(c.TargetURL)
	c.Duration = strings.TrimSpace(c.Duration)
	c.RampUp = strings.TrimSpace(c.RampUp)
	c.Headers = strings.TrimSpace(c.Headers)
	c.Body = strings.TrimSpace(c.Body)
	c.CallType = CallType(strings.ToLower(strings.TrimSpace(string(c.CallType))))

	c.Method = strings.ToUpper(strings.TrimSpace(c.Method))
	if c.Method == "" {
		c.Method = MethodGet
	}

	if c.CallType == CallTypeSimultaneous {
		c.RampUp = ""
	}

	return c
}

// RampDuration returns the duration of the first stage.
func (c Config) RampDuration() string {
	if c.CallType == CallTypeGradual {
		return c.RampUp
	}
	return SimultaneousRampUp
}

// HasBody reports whether a request body was supplied.
func (c Config) HasBody() bool {
	return c.Body != ""
}

// ParseDuration parses a k6 duration string such as 30s, 1m or 5m30s.
func ParseDuration(s string) (time.Duration, error) {
	return time.ParseDuration(strings.TrimSpace(s))
}
