package k6

import (
	"context"
	"errors"
	"io/fs"
	"os/exec"
	"regexp"
	"strings"

	"github.com/giantswarm/microerror"
)

var versionPattern = regexp.MustCompile(`v?(\d+\.\d+\.\d+(?:[-+][0-9A-Za-z.\-]+)?)`)

// Version runs `binary version` and returns the first line it prints, for
// example "k6 v0.54.0 (go1.23.1, linux/amd64)".
func Version(ctx context.Context, binary string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultProbeTimeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, binary, "version").CombinedOutput()
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) {
			return "", microerror.Maskf(binaryNotFoundError, "k6 binary %q could not be started: %s", binary, err)
		}
		if ctx.Err() == context.DeadlineExceeded {
			return "", microerror.Maskf(timeoutError, "k6 version did not answer within %s", defaultProbeTimeout)
		}
		return "", microerror.Maskf(executionFailedError, "k6 version failed: %s%s", err, stderrSuffix(string(out)))
	}

	line := strings.TrimSpace(string(out))
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = strings.TrimSpace(line[:i])
	}
	return line, nil
}

// ParseVersion extracts the semantic version from `k6 version` output.
// It returns an empty string when none is present.
func ParseVersion(output string) string {
	match := versionPattern.FindStringSubmatch(output)
	if match == nil {
		return ""
	}
	return match[1]
}

