package loadtest

import (
	"strings"
	"testing"
)

func validConfig() Config {
	return Config{
		TargetURL:    "https://quickpizza.grafana.com/api/pizza",
		VirtualUsers: 10,
		Duration:     "30s",
		Method:       "GET",
		CallType:     CallTypeSimultaneous,
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(c *Config)
		wantErr  bool
		contains []string
	}{
		{
			name:   "valid simultaneous",
			mutate: func(c *Config) {},
		},
		{
			name: "valid gradual",
			mutate: func(c *Config) {
				c.CallType = CallTypeGradual
				c.RampUp = "10s"
			},
		},
		{
			name: "valid post with body and headers",
			mutate: func(c *Config) {
				c.Method = "POST"
				c.Headers = `{"Content-Type": "application/json"}`
				c.Body = `{"name": "pizza", "qty": 2}`
			},
		},
		{
			name: "missing required fields",
			mutate: func(c *Config) {
				c.TargetURL = ""
				c.VirtualUsers = 0
				c.Duration = ""
				c.CallType = ""
			},
			wantErr:  true,
			contains: []string{"targetUrl is required", "virtualUsers is required", "duration is required", "callType is required"},
		},
		{
			name: "gradual without ramp up",
			mutate: func(c *Config) {
				c.CallType = CallTypeGradual
			},
			wantErr:  true,
			contains: []string{"rampUp is required for the gradual call type"},
		},
		{
			name: "negative virtual users",
			mutate: func(c *Config) {
				c.VirtualUsers = -2
			},
			wantErr:  true,
			contains: []string{"virtualUsers must be at least 1"},
		},
		{
			name: "relative url",
			mutate: func(c *Config) {
				c.TargetURL = "/api/pizza"
			},
			wantErr:  true,
			contains: []string{"targetUrl must be an absolute http or https URL"},
		},
		{
			name: "unknown method",
			mutate: func(c *Config) {
				c.Method = "TRACE"
			},
			wantErr:  true,
			contains: []string{"method must be one of GET, POST, PUT, PATCH, DELETE"},
		},
		{
			name: "unknown call type",
			mutate: func(c *Config) {
				c.CallType = "burst"
			},
			wantErr:  true,
			contains: []string{"callType must be one of simultaneous, gradual"},
		},
		{
			name: "bad duration",
			mutate: func(c *Config) {
				c.Duration = "thirty"
			},
			wantErr:  true,
			contains: []string{"duration must be a positive duration"},
		},
		{
			name: "zero ramp up",
			mutate: func(c *Config) {
				c.CallType = CallTypeGradual
				c.RampUp = "0s"
			},
			wantErr:  true,
			contains: []string{"rampUp must be a positive duration"},
		},
		{
			name: "malformed headers",
			mutate: func(c *Config) {
				c.Headers = `{"Content-Type": `
			},
			wantErr:  true,
			contains: []string{"headers must be a JSON object"},
		},
		{
			name: "headers array",
			mutate: func(c *Config) {
				c.Headers = `["a", "b"]`
			},
			wantErr:  true,
			contains: []string{"headers must be a JSON object"},
		},
		{
			name: "malformed body",
			mutate: func(c *Config) {
				c.Method = "POST"
				c.Body = `{name: pizza}`
			},
			wantErr:  true,
			contains: []string{"body must be valid JSON"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil {
				return
			}
			if !IsValidation(err) {
				t.Errorf("expected validation error, got %v", err)
			}
			for _, want := range tt.contains {
				if !strings.Contains(err.Error(), want) {
					t.Errorf("error %q does not contain %q", err.Error(), want)
				}
			}
		})
	}
}

func TestConfig_Normalize(t *testing.T) {
	cfg := Config{
		TargetURL:    "  https://example.com  ",
		VirtualUsers: 5,
		Duration:     " 1m ",
		Method:       "post",
		CallType:     " Simultaneous ",
		RampUp:       "10s",
	}

	got := cfg.Normalize()

	if got.TargetURL != "https://example.com" {
		t.Errorf("TargetURL = %q", got.TargetURL)
	}
	if got.Method != MethodPost {
		t.Errorf("Method = %q, want POST", got.Method)
	}
	if got.CallType != CallTypeSimultaneous {
		t.Errorf("CallType = %q, want simultaneous", got.CallType)
	}
	if got.RampUp != "" {
		t.Errorf("RampUp = %q, want empty for simultaneous", got.RampUp)
	}
	if cfg.Method != "post" {
		t.Error("Normalize must not modify the receiver")
	}

	if m := (Config{}).Normalize().Method; m != MethodGet {
		t.Errorf("default method = %q, want GET", m)
	}
}

func TestConfig_RampDuration(t *testing.T) {
	simultaneous := Config{CallType: CallTypeSimultaneous, RampUp: "30s"}
	if got := simultaneous.RampDuration(); got != "1s" {
		t.Errorf("simultaneous RampDuration() = %q, want 1s", got)
	}

	gradual := Config{CallType: CallTypeGradual, RampUp: "30s"}
	if got := gradual.RampDuration(); got != "30s" {
		t.Errorf("gradual RampDuration() = %q, want 30s", got)
	}
}

func TestConfig_HasBody(t *testing.T) {
	if !(Config{Body: `{"a":1}`}).HasBody() {
		t.Error("HasBody() = false for a body")
	}
	if (Config{Body: "   "}).Normalize().HasBody() {
		t.Error("HasBody() = true for a blank body after Normalize")
	}
}
