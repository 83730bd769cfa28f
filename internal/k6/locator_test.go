package k6

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/giantswarm/micrologger/microloggertest"
	"github.com/google/go-cmp/cmp"
)

type fakeSystem struct {
	goos   string
	env    map[string]string
	path   map[string]string
	files  map[string]bool
	probes map[string]bool
}

func newTestLocator(t *testing.T, binary string, sys fakeSystem) *Locator {
	t.Helper()

	l, err := NewLocator(LocatorConfig{
		Logger: microloggertest.New(),
		Binary: binary,
	})
	if err != nil {
		t.Fatalf("NewLocator() error = %v", err)
	}

	l.goos = sys.goos
	l.getenv = func(k string) string { return sys.env[k] }
	l.lookPath = func(name string) (string, error) {
		if p, ok := sys.path[name]; ok {
			return p, nil
		}
		return "", errors.New("not found")
	}
	l.isFile = func(p string) bool { return sys.files[p] }
	l.probe = func(ctx context.Context, name string) error {
		if sys.probes[name] {
			return nil
		}
		return errors.New("probe failed")
	}

	return l
}

func TestLocator_Locate(t *testing.T) {
	tests := []struct {
		name     string
		binary   string
		sys      fakeSystem
		want     string
		notFound bool
	}{
		{
			name: "execution path first",
			sys: fakeSystem{
				goos:  "linux",
				path:  map[string]string{"k6": "/fake/path/k6"},
				files: map[string]bool{"/usr/local/bin/k6": true},
			},
			want: "/fake/path/k6",
		},
		{
			name: "install location when not on path",
			sys: fakeSystem{
				goos:  "linux",
				files: map[string]bool{"/usr/bin/k6": true, "/opt/k6/k6": true},
			},
			want: "/usr/bin/k6",
		},
		{
			name: "homebrew on darwin",
			sys: fakeSystem{
				goos:  "darwin",
				files: map[string]bool{"/opt/homebrew/bin/k6": true},
			},
			want: "/opt/homebrew/bin/k6",
		},
		{
			name: "homebrew ignored on linux",
			sys: fakeSystem{
				goos:  "linux",
				files: map[string]bool{"/opt/homebrew/bin/k6": true},
			},
			notFound: true,
		},
		{
			name: "windows executable name",
			sys: fakeSystem{
				goos: "windows",
				path: map[string]string{"k6.exe": `C:\tools\k6.exe`},
			},
			want: `C:\tools\k6.exe`,
		},
		{
			name: "direct invocation probe",
			sys: fakeSystem{
				goos:   "linux",
				probes: map[string]bool{"k6": true},
			},
			want: "k6",
		},
		{
			name:     "nothing found",
			sys:      fakeSystem{goos: "linux"},
			notFound: true,
		},
		{
			name:   "configured path",
			binary: "/custom/k6",
			sys: fakeSystem{
				goos:  "linux",
				path:  map[string]string{"k6": "/fake/path/k6"},
				files: map[string]bool{"/custom/k6": true},
			},
			want: "/custom/k6",
		},
		{
			name:   "configured path missing",
			binary: "/custom/k6",
			sys: fakeSystem{
				goos: "linux",
				path: map[string]string{"k6": "/fake/path/k6"},
			},
			notFound: true,
		},
		{
			name:   "configured name on path",
			binary: "k6-nightly",
			sys: fakeSystem{
				goos: "linux",
				path: map[string]string{"k6-nightly": "/fake/path/k6-nightly"},
			},
			want: "/fake/path/k6-nightly",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := newTestLocator(t, tt.binary, tt.sys)

			got, err := l.Locate(context.Background())
			if tt.notFound {
				if !IsBinaryNotFound(err) {
					t.Fatalf("expected binary not found error, got %q, %v", got, err)
				}
				if !strings.Contains(err.Error(), InstallDocsURL) {
					t.Errorf("error should include install guidance: %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Locate() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Locate() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLocator_Candidates(t *testing.T) {
	tests := []struct {
		name string
		sys  fakeSystem
		want []string
	}{
		{
			name: "linux",
			sys:  fakeSystem{goos: "linux"},
			want: []string{"/usr/local/bin/k6", "/usr/bin/k6", "/opt/k6/k6"},
		},
		{
			name: "darwin",
			sys:  fakeSystem{goos: "darwin"},
			want: []string{"/usr/local/bin/k6", "/usr/bin/k6", "/opt/k6/k6", "/opt/homebrew/bin/k6"},
		},
		{
			name: "windows with profile directories",
			sys: fakeSystem{
				goos: "windows",
				env: map[string]string{
					"USERPROFILE":  `C:\Users\dev`,
					"LOCALAPPDATA": `C:\Users\dev\AppData\Local\`,
				},
			},
			want: []string{
				`C:\Program Files\k6\k6.exe`,
				`C:\Program Files (x86)\k6\k6.exe`,
				`C:\Users\dev\AppData\Local\Programs\k6\k6.exe`,
				`C:\Users\dev\AppData\Local\Programs\k6\k6.exe`,
			},
		},
		{
			name: "windows without environment",
			sys:  fakeSystem{goos: "windows"},
			want: []string{`C:\Program Files\k6\k6.exe`, `C:\Program Files (x86)\k6\k6.exe`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := newTestLocator(t, "", tt.sys)
			if diff := cmp.Diff(tt.want, l.Candidates()); diff != "" {
				t.Errorf("Candidates() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

// writeLauncher creates a multi-call launcher that behaves as k6 only when
// invoked through a link named k6, and returns the directory holding the link.
func writeLauncher(t *testing.T) (binDir, launcher string) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("launcher scripts need a POSIX shell")
	}

	dir := t.TempDir()
	launcher = filepath.Join(dir, "snap")
	script := `#!/bin/sh
if [ "${0##*/}" != "k6" ]; then
  echo "error: unknown command \"$1\"" >&2
  exit 64
fi
case "$1" in
  version) echo "k6 v1.0.0 (go1.24.0, linux/amd64)" ;;
  run) echo "running $2"; echo "http_reqs......: 7" ;;
esac
`
	if err := os.WriteFile(launcher, []byte(script), 0755); err != nil {
		t.Fatal(err)
	}

	binDir = filepath.Join(dir, "bin")
	if err := os.Mkdir(binDir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink(launcher, filepath.Join(binDir, "k6")); err != nil {
		t.Skipf("symlinks not supported: %v", err)
	}
	return binDir, launcher
}

func TestLocator_KeepsSymlinkPath(t *testing.T) {
	binDir, launcher := writeLauncher(t)
	link := filepath.Join(binDir, "k6")

	l := newTestLocator(t, "", fakeSystem{goos: "linux", path: map[string]string{"k6": link}})
	got, err := l.Locate(context.Background())
	if err != nil {
		t.Fatalf("Locate() error = %v", err)
	}
	if got != link {
		t.Errorf("Locate() = %q, want %q", got, link)
	}

	want, err := filepath.EvalSymlinks(launcher)
	if err != nil {
		t.Fatal(err)
	}
	if resolved := Resolve(got); resolved != want {
		t.Errorf("Resolve() = %q, want %q", resolved, want)
	}
}

func TestLocator_LauncherRuns(t *testing.T) {
	binDir, _ := writeLauncher(t)
	t.Setenv("PATH", binDir)

	l, err := NewLocator(LocatorConfig{Logger: microloggertest.New()})
	if err != nil {
		t.Fatalf("NewLocator() error = %v", err)
	}
	bin, err := l.Locate(context.Background())
	if err != nil {
		t.Fatalf("Locate() error = %v", err)
	}

	version, err := Version(context.Background(), bin)
	if err != nil {
		t.Fatalf("Version() error = %v", err)
	}
	if ParseVersion(version) != "1.0.0" {
		t.Errorf("Version() = %q", version)
	}

	out, err := newTestRunner(t, 0, 0).Run(context.Background(), bin, "/tmp/test_1.js", nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !strings.Contains(out.Stdout, "http_reqs......: 7") {
		t.Errorf("stdout = %q", out.Stdout)
	}
}

func TestResolve_Relative(t *testing.T) {
	if got := Resolve("k6"); got != "k6" {
		t.Errorf("Resolve(%q) = %q", "k6", got)
	}
}

func TestProbeVersion(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{name: "k6", body: `echo "k6 v0.54.0 (go1.23.1, linux/amd64)"`},
		{name: "unrelated program", body: `echo "usage: k6 [options]"`, wantErr: true},
		{name: "silent program", body: `exit 0`, wantErr: true},
		{name: "failing program", body: `exit 3`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bin := writeFakeK6(t, tt.body)
			err := probeVersion(context.Background(), bin)
			if (err != nil) != tt.wantErr {
				t.Errorf("probeVersion() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNewLocator_RequiresLogger(t *testing.T) {
	if _, err := NewLocator(LocatorConfig{}); !IsInvalidConfig(err) {
		t.Errorf("expected invalid config error, got %v", err)
	}
}
