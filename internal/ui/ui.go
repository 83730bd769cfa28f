// Package ui serves the browser form, result view and metric glossary.
//
// Pages and assets are embedded, rendered once at construction and
// minified with tdewolff/minify.
package ui

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"path"
	"strings"

	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
	"github.com/tdewolff/minify/v2/html"
	"github.com/tdewolff/minify/v2/js"

	"github.com/studiowebux/k6ui/internal/glossary"
	"github.com/studiowebux/k6ui/internal/loadtest"
)

var (
	//go:embed templates/*
	templateFS embed.FS
	//go:embed static/*
	staticFS embed.FS
)

// Form defaults.
const (
	DefaultVirtualUsers = 10
	DefaultDuration     = "5s"
	DefaultRampUp       = "10s"
)

// Config configures the UI.
type Config struct {
	Glossary []glossary.Entry
	Version  string
}

type asset struct {
	contentType string
	body        []byte
}

// UI handles "/" and "/static/*".
type UI struct {
	index  []byte
	static map[string]asset
}

type pageData struct {
	Methods             []string
	DefaultMethod       string
	DefaultVirtualUsers int
	DefaultDuration     string
	DefaultRampUp       string
	Glossary            []glossary.Entry
	Version             string
}

func newMinifier() *minify.M {
	m := minify.New()
	m.AddFunc("text/html", html.Minify)
	m.AddFunc("text/css", css.Minify)
	m.AddFunc("application/javascript", js.Minify)
	return m
}

// New renders the page and prepares the static assets.
func New(config Config) (*UI, error) {
	if config.Glossary == nil {
		config.Glossary = glossary.Entries()
	}

	tmpl, err := template.ParseFS(templateFS, "templates/index.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse index template: %w", err)
	}

	data := pageData{
		Methods:             loadtest.Methods,
		DefaultMethod:       loadtest.MethodGet,
		DefaultVirtualUsers: DefaultVirtualUsers,
		DefaultDuration:     DefaultDuration,
		DefaultRampUp:       DefaultRampUp,
		Glossary:            config.Glossary,
		Version:             config.Version,
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("failed to render index template: %w", err)
	}

	m := newMinifier()

	index, err := m.Bytes("text/html", buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("failed to minify index: %w", err)
	}

	u := &UI{
		index:  index,
		static: map[string]asset{},
	}

	entries, err := staticFS.ReadDir("static")
	if err != nil {
		return nil, fmt.Errorf("failed to read static assets: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}

		raw, err := staticFS.ReadFile(path.Join("static", e.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", e.Name(), err)
		}

		contentType := contentTypeFor(e.Name())
		body, err := m.Bytes(minifyType(contentType), raw)
		if err != nil {
			return nil, fmt.Errorf("failed to minify %s: %w", e.Name(), err)
		}

		u.static[e.Name()] = asset{contentType: contentType, body: body}
	}

	return u, nil
}

func contentTypeFor(name string) string {
	switch path.Ext(name) {
	case ".css":
		return "text/css; charset=utf-8"
	case ".js":
		return "application/javascript; charset=utf-8"
	default:
		return "application/octet-stream"
	}
}

func minifyType(contentType string) string {
	return strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0])
}

func (u *UI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	if r.URL.Path == "/" {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-cache")
		_, _ = w.Write(u.index)
		return
	}

	name := strings.TrimPrefix(r.URL.Path, "/static/")
	a, ok := u.static[name]
	if !ok || name == r.URL.Path {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", a.contentType)
	w.Header().Set("Cache-Control", "public, max-age=300")
	_, _ = w.Write(a.body)
}
