package script

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/studiowebux/k6ui/internal/loadtest"
)

var stagePattern = regexp.MustCompile(`\{ duration: "([^"]+)", target: (\d+) \}`)

func baseConfig() loadtest.Config {
	return loadtest.Config{
		TargetURL:    "https://quickpizza.grafana.com/api/ratings?limit=5&sort=desc",
		VirtualUsers: 25,
		Duration:     "45s",
		Method:       "GET",
		CallType:     loadtest.CallTypeSimultaneous,
	}
}

func TestRender_Stages(t *testing.T) {
	tests := []struct {
		name     string
		cfg      loadtest.Config
		wantRamp string
	}{
		{
			name:     "simultaneous ramps in one second",
			cfg:      baseConfig(),
			wantRamp: "1s",
		},
		{
			name: "gradual uses ramp up",
			cfg: func() loadtest.Config {
				c := baseConfig()
				c.CallType = loadtest.CallTypeGradual
				c.RampUp = "20s"
				return c
			}(),
			wantRamp: "20s",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			content, err := Render(tt.cfg)
			if err != nil {
				t.Fatalf("Render() error = %v", err)
			}

			stages := stagePattern.FindAllStringSubmatch(content, -1)
			if len(stages) != 2 {
				t.Fatalf("expected 2 stages, got %d:\n%s", len(stages), content)
			}
			if stages[0][1] != tt.wantRamp {
				t.Errorf("ramp stage duration = %q, want %q", stages[0][1], tt.wantRamp)
			}
			if stages[1][1] != tt.cfg.Duration {
				t.Errorf("hold stage duration = %q, want %q", stages[1][1], tt.cfg.Duration)
			}
			for _, s := range stages {
				if s[2] != "25" {
					t.Errorf("stage target = %s, want 25", s[2])
				}
			}
		})
	}
}

func TestRender_ExactURL(t *testing.T) {
	content, err := Render(baseConfig())
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}

	want := `const url = "https://quickpizza.grafana.com/api/ratings?limit=5&sort=desc";`
	if !strings.Contains(content, want) {
		t.Errorf("script does not contain %q:\n%s", want, content)
	}
}

func TestRender_MethodBranch(t *testing.T) {
	tests := []struct {
		method string
		body   string
		want   string
	}{
		{"GET", "", "response = http.get(url, params);"},
		{"GET", `{"ignored": true}`, "response = http.get(url, params);"},
		{"POST", `{"name": "margherita"}`, "response = http.post(url, JSON.stringify(payload), params);"},
		{"POST", "", "response = http.post(url, null, params);"},
		{"PUT", `{"id": 1}`, "response = http.put(url, JSON.stringify(payload), params);"},
		{"PATCH", "", "response = http.patch(url, null, params);"},
		{"DELETE", "", "response = http.del(url, null, params);"},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.body, func(t *testing.T) {
			cfg := baseConfig()
			cfg.Method = tt.method
			cfg.Body = tt.body

			content, err := Render(cfg)
			if err != nil {
				t.Fatalf("Render() error = %v", err)
			}
			if !strings.Contains(content, tt.want) {
				t.Errorf("script does not contain %q:\n%s", tt.want, content)
			}
			if strings.Count(content, "response = http.") != 1 {
				t.Errorf("expected exactly one request call:\n%s", content)
			}
		})
	}
}

func TestRender_HeadersAndPayload(t *testing.T) {
	cfg := baseConfig()
	cfg.Method = "POST"
	cfg.Headers = `{"Content-Type": "application/json", "X-Trace": "<id>"}`
	cfg.Body = `{ "name": "margherita", "price": 10.50 }`

	content, err := Render(cfg)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}

	for _, want := range []string{
		`"Content-Type": "application/json"`,
		`"X-Trace": "<id>"`,
		`const payload = JSON.parse("{\"name\":\"margherita\",\"price\":10.50}");`,
	} {
		if !strings.Contains(content, want) {
			t.Errorf("script does not contain %q:\n%s", want, content)
		}
	}
}

func TestRender_ThresholdsAndChecks(t *testing.T) {
	content, err := Render(baseConfig())
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}

	for _, want := range []string{
		"http_req_duration: ['p(95)<2000']",
		"http_req_failed: ['rate<0.1']",
		"errors: ['rate<0.1']",
		"'status is 200-299'",
		"'response time < 2000ms'",
		"errorRate.add(!success);",
		"headers: {},",
	} {
		if !strings.Contains(content, want) {
			t.Errorf("script does not contain %q", want)
		}
	}
	if strings.Contains(content, "const payload") {
		t.Error("script without body must not declare a payload")
	}
}

func TestRender_InvalidJSON(t *testing.T) {
	tests := []struct {
		name    string
		headers string
		body    string
	}{
		{"malformed headers", `{"a": `, ""},
		{"null headers", `null`, ""},
		{"malformed body", "", `{"a": }`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := baseConfig()
			cfg.Method = "POST"
			cfg.Headers = tt.headers
			cfg.Body = tt.body

			if _, err := Render(cfg); !IsInvalidInput(err) {
				t.Errorf("expected invalid input error, got %v", err)
			}
		})
	}
}

func TestGenerator_Generate(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "scripts")
	g := NewGenerator(dir)
	g.now = func() time.Time { return time.UnixMilli(1700000000000) }

	s, err := g.Generate(baseConfig())
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	name := filepath.Base(s.Path)
	if !strings.HasPrefix(name, "test_1700000000000_") || !strings.HasSuffix(name, ".js") {
		t.Errorf("unexpected script name %q", name)
	}

	data, err := os.ReadFile(s.Path)
	if err != nil {
		t.Fatalf("failed to read script: %v", err)
	}
	if strings.TrimSpace(string(data)) != s.Content {
		t.Error("file content differs from returned content")
	}

	other, err := g.Generate(baseConfig())
	if err != nil {
		t.Fatalf("second Generate() error = %v", err)
	}
	if other.Path == s.Path {
		t.Error("scripts generated in the same millisecond must not collide")
	}

	if err := g.Remove(s); err != nil {
		t.Errorf("Remove() error = %v", err)
	}
	if _, err := os.Stat(s.Path); !os.IsNotExist(err) {
		t.Error("script still exists after Remove")
	}
	if err := g.Remove(s); err != nil {
		t.Errorf("second Remove() error = %v", err)
	}
}

func TestGenerator_InvalidJSONWritesNothing(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "scripts")
	g := NewGenerator(dir)

	cfg := baseConfig()
	cfg.Body = `{broken`
	cfg.Method = "POST"

	if _, err := g.Generate(cfg); !IsInvalidInput(err) {
		t.Fatalf("expected invalid input error, got %v", err)
	}

	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		entries, _ := os.ReadDir(dir)
		if len(entries) > 0 {
			t.Errorf("expected no script files, found %d", len(entries))
		}
	}
}
