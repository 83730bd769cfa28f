package script

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"
	"time"

	"github.com/giantswarm/microerror"

	"github.com/studiowebux/k6ui/internal/loadtest"
)

//go:embed templates/script.js.tmpl
var templateFS embed.FS

var scriptTemplate = template.Must(template.ParseFS(templateFS, "templates/script.js.tmpl"))

// Script is a rendered k6 script written to disk.
type Script struct {
	Path    string
	Content string
}

// templateData holds JavaScript literals ready to be placed in the template.
type templateData struct {
	TargetURL    string
	RampDuration string
	Duration     string
	VirtualUsers int
	Headers      string
	Payload      string
	Call         string
}

// Render produces the k6 script for cfg. cfg is expected to be normalized.
func Render(cfg loadtest.Config) (string, error) {
	headers, err := headersLiteral(cfg.Headers)
	if err != nil {
		return "", microerror.Maskf(invalidInputError, "headers must be a JSON object: %s", err)
	}

	var payload string
	if cfg.HasBody() {
		payload, err = payloadLiteral(cfg.Body)
		if err != nil {
			return "", microerror.Maskf(invalidInputError, "body must be valid JSON: %s", err)
		}
	}

	data := templateData{
		TargetURL:    jsLiteral(cfg.TargetURL),
		RampDuration: jsLiteral(cfg.RampDuration()),
		Duration:     jsLiteral(cfg.Duration),
		VirtualUsers: cfg.VirtualUsers,
		Headers:      headers,
		Payload:      payload,
		Call:         callFor(cfg.Method),
	}

	var buf bytes.Buffer
	if err := scriptTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render script: %w", err)
	}

	return strings.TrimSpace(buf.String()), nil
}

// callFor maps an HTTP method to the k6/http function name. DELETE uses
// http.del since delete is reserved in JavaScript.
func callFor(method string) string {
	switch strings.ToUpper(method) {
	case "", loadtest.MethodGet:
		return "get"
	case loadtest.MethodPost:
		return "post"
	case loadtest.MethodPut:
		return "put"
	case loadtest.MethodPatch:
		return "patch"
	default:
		return "del"
	}
}

func headersLiteral(raw string) (string, error) {
	headers := map[string]interface{}{}
	if raw != "" {
		if err := json.Unmarshal([]byte(raw), &headers); err != nil {
			return "", err
		}
		if headers == nil {
			return "", fmt.Errorf("got null")
		}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("    ", "  ")
	if err := enc.Encode(headers); err != nil {
		return "", err
	}
	return strings.TrimSpace(buf.String()), nil
}

// payloadLiteral returns the compacted body as a JavaScript string literal.
func payloadLiteral(raw string) (string, error) {
	var compact bytes.Buffer
	if err := json.Compact(&compact, []byte(raw)); err != nil {
		return "", err
	}
	return jsLiteral(compact.String()), nil
}

// jsLiteral quotes s as a JSON string, which is also a valid JavaScript
// string literal.
func jsLiteral(s string) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(s)
	return strings.TrimSpace(buf.String())
}

// Generator writes rendered scripts into a directory.
type Generator struct {
	dir string
	now func() time.Time
}

// NewGenerator creates a generator writing to dir.
func NewGenerator(dir string) *Generator {
	return &Generator{
		dir: dir,
		now: time.Now,
	}
}

// Dir returns the script directory.
func (g *Generator) Dir() string {
	return g.dir
}

// Generate renders cfg and writes it to a new file in the script directory.
// Nothing is written when rendering fails.
func (g *Generator) Generate(cfg loadtest.Config) (*Script, error) {
	content, err := Render(cfg)
	if err != nil {
		return nil, microerror.Mask(err)
	}

	if err := os.MkdirAll(g.dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create script directory: %w", err)
	}

	f, err := os.CreateTemp(g.dir, fmt.Sprintf("test_%d_*.js", g.now().UnixMilli()))
	if err != nil {
		return nil, fmt.Errorf("failed to create script file: %w", err)
	}

	if _, err := f.WriteString(content + "\n"); err != nil {
		f.Close()
		os.Remove(f.Name())
		return nil, fmt.Errorf("failed to write script file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return nil, fmt.Errorf("failed to close script file: %w", err)
	}

	path, err := filepath.Abs(f.Name())
	if err != nil {
		path = f.Name()
	}

	return &Script{Path: path, Content: content}, nil
}

// Remove deletes a generated script. A file that is already gone is not an
// error.
func (g *Generator) Remove(s *Script) error {
	if s == nil || s.Path == "" {
		return nil
	}
	if err := os.Remove(s.Path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove script file: %w", err)
	}
	return nil
}
