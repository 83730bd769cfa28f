package k6

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/giantswarm/microerror"
	"github.com/giantswarm/micrologger"
	"github.com/yookoala/realpath"
)

// InstallDocsURL points users at the k6 installation guide.
const InstallDocsURL = "https://grafana.com/docs/k6/latest/set-up/install-k6/"

const defaultProbeTimeout = 5 * time.Second

// LocatorConfig configures a Locator.
type LocatorConfig struct {
	Logger micrologger.Logger

	// Binary overrides discovery. A value containing a path separator must
	// point at an existing file, anything else is looked up on the
	// execution path.
	Binary string
}

// Locator finds the k6 executable. Every call searches again.
type Locator struct {
	logger micrologger.Logger
	binary string

	goos         string
	getenv       func(string) string
	lookPath     func(string) (string, error)
	isFile       func(string) bool
	probe        func(ctx context.Context, name string) error
	probeTimeout time.Duration
}

// NewLocator creates a Locator for the running platform.
func NewLocator(config LocatorConfig) (*Locator, error) {
	if config.Logger == nil {
		return nil, microerror.Maskf(invalidConfigError, "%T.Logger must not be empty", config)
	}

	l := &Locator{
		logger: config.Logger,
		binary: strings.TrimSpace(config.Binary),

		goos:         runtime.GOOS,
		getenv:       os.Getenv,
		lookPath:     exec.LookPath,
		isFile:       isRegularFile,
		probe:        probeVersion,
		probeTimeout: defaultProbeTimeout,
	}

	return l, nil
}

// Locate returns the path of the k6 executable.
func (l *Locator) Locate(ctx context.Context) (string, error) {
	if l.binary != "" {
		return l.locateConfigured()
	}

	name := l.executableName()

	if p, err := l.lookPath(name); err == nil {
		l.logger.LogCtx(ctx, "level", "debug", "message", "found k6 on execution path", "path", p, "resolved", Resolve(p))
		return p, nil
	}

	for _, candidate := range l.Candidates() {
		if l.isFile(candidate) {
			l.logger.LogCtx(ctx, "level", "debug", "message", "found k6 in install location", "path", candidate, "resolved", Resolve(candidate))
			return candidate, nil
		}
	}

	probeCtx, cancel := context.WithTimeout(ctx, l.probeTimeout)
	defer cancel()
	if err := l.probe(probeCtx, name); err == nil {
		l.logger.LogCtx(ctx, "level", "debug", "message", "k6 answered direct invocation", "name", name)
		return name, nil
	}

	return "", microerror.Maskf(binaryNotFoundError, "%s", l.notFoundMessage())
}

func (l *Locator) locateConfigured() (string, error) {
	if strings.ContainsAny(l.binary, `/\`) {
		if !l.isFile(l.binary) {
			return "", microerror.Maskf(binaryNotFoundError, "configured k6 binary %q does not exist. %s", l.binary, l.guidance())
		}
		return l.binary, nil
	}

	p, err := l.lookPath(l.binary)
	if err != nil {
		return "", microerror.Maskf(binaryNotFoundError, "configured k6 binary %q is not on the execution path. %s", l.binary, l.guidance())
	}
	return p, nil
}

func (l *Locator) executableName() string {
	if l.goos == "windows" {
		return "k6.exe"
	}
	return "k6"
}

// Candidates returns the install locations checked after the execution path.
func (l *Locator) Candidates() []string {
	if l.goos == "windows" {
		candidates := []string{
			`C:\Program Files\k6\k6.exe`,
			`C:\Program Files (x86)\k6\k6.exe`,
		}
		if profile := l.getenv("USERPROFILE"); profile != "" {
			candidates = append(candidates, strings.TrimRight(profile, `\`)+`\AppData\Local\Programs\k6\k6.exe`)
		}
		if local := l.getenv("LOCALAPPDATA"); local != "" {
			candidates = append(candidates, strings.TrimRight(local, `\`)+`\Programs\k6\k6.exe`)
		}
		return candidates
	}

	candidates := []string{
		"/usr/local/bin/k6",
		"/usr/bin/k6",
		"/opt/k6/k6",
	}
	if l.goos == "darwin" {
		candidates = append(candidates, "/opt/homebrew/bin/k6")
	}
	return candidates
}

// Resolve follows symlinks for display. The located path itself must be
// executed because multi-call launchers such as snap dispatch on argv[0].
func Resolve(p string) string {
	if !filepath.IsAbs(p) {
		return p
	}
	if _, err := os.Lstat(p); err != nil {
		return p
	}
	resolved, err := realpath.Realpath(p)
	if err != nil || resolved == "" {
		return p
	}
	return resolved
}

func (l *Locator) guidance() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Install k6 (%s) and make sure its directory is on PATH.", InstallDocsURL)
	if l.goos == "windows" {
		b.WriteString(" The executable must be named k6.exe; restart the terminal after installing.")
	}
	b.WriteString(" Alternatively run k6ui through docker compose with the grafana/k6 image.")
	return b.String()
}

func (l *Locator) notFoundMessage() string {
	return fmt.Sprintf("k6 is not installed or could not be found (checked PATH and %s). %s",
		strings.Join(l.Candidates(), ", "), l.guidance())
}

func isRegularFile(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.Mode().IsRegular()
}

// probeVersion accepts name only when `name version` prints a k6 version.
func probeVersion(ctx context.Context, name string) error {
	out, err := Version(ctx, name)
	if err != nil {
		return microerror.Mask(err)
	}
	if !strings.HasPrefix(out, "k6 ") || ParseVersion(out) == "" {
		return microerror.Maskf(binaryNotFoundError, "%q does not look like k6: %q", name, out)
	}
	return nil
}
