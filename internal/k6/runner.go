package k6

import (
	"bytes"
	"context"
	"errors"
	"io"
	"io/fs"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/giantswarm/microerror"
	"github.com/giantswarm/micrologger"
)

const (
	// DefaultTimeout bounds a single k6 run.
	DefaultTimeout = 10 * time.Minute
	// DefaultMaxOutputBytes bounds each of stdout and stderr.
	DefaultMaxOutputBytes = 10 * 1024 * 1024

	// thresholdsCrossedExitCode is returned by k6 when a threshold fails.
	thresholdsCrossedExitCode = 99
)

var errOutputLimit = errors.New("output limit exceeded")

// RunnerConfig configures a Runner.
type RunnerConfig struct {
	Logger micrologger.Logger

	Timeout        time.Duration
	MaxOutputBytes int
}

// Runner executes k6 scripts.
type Runner struct {
	logger micrologger.Logger

	timeout        time.Duration
	maxOutputBytes int
}

// Output is what a k6 process wrote.
type Output struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration
}

// Combined returns stdout followed by stderr.
func (o *Output) Combined() string {
	return o.Stdout + o.Stderr
}

// NewRunner creates a Runner. Zero limits take the defaults.
func NewRunner(config RunnerConfig) (*Runner, error) {
	if config.Logger == nil {
		return nil, microerror.Maskf(invalidConfigError, "%T.Logger must not be empty", config)
	}
	if config.Timeout < 0 {
		return nil, microerror.Maskf(invalidConfigError, "%T.Timeout must not be negative", config)
	}
	if config.MaxOutputBytes < 0 {
		return nil, microerror.Maskf(invalidConfigError, "%T.MaxOutputBytes must not be negative", config)
	}

	r := &Runner{
		logger:         config.Logger,
		timeout:        config.Timeout,
		maxOutputBytes: config.MaxOutputBytes,
	}
	if r.timeout == 0 {
		r.timeout = DefaultTimeout
	}
	if r.maxOutputBytes == 0 {
		r.maxOutputBytes = DefaultMaxOutputBytes
	}

	return r, nil
}

// Run executes `binary run scriptPath` and waits for it to finish. Output is
// also copied to progress when it is not nil; progress must be safe for
// concurrent writes since stdout and stderr are copied independently.
//
// The returned Output is non-nil whenever the process was started, including
// failed runs.
func (r *Runner) Run(ctx context.Context, binary, scriptPath string, progress io.Writer) (*Output, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	stdout := &limitedBuffer{limit: r.maxOutputBytes, tee: progress, overflow: cancel}
	stderr := &limitedBuffer{limit: r.maxOutputBytes, tee: progress, overflow: cancel}

	cmd := exec.CommandContext(ctx, binary, "run", scriptPath)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.WaitDelay = 5 * time.Second

	r.logger.LogCtx(ctx, "level", "debug", "message", "starting k6", "binary", binary, "script", scriptPath)

	start := time.Now()
	err := cmd.Run()

	out := &Output{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: -1,
		Duration: time.Since(start),
	}
	if cmd.ProcessState != nil {
		out.ExitCode = cmd.ProcessState.ExitCode()
	}

	if err == nil {
		r.logger.LogCtx(ctx, "level", "debug", "message", "k6 finished", "duration", out.Duration.String())
		return out, nil
	}

	switch {
	case cmd.ProcessState == nil && (errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist)):
		return nil, microerror.Maskf(binaryNotFoundError, "k6 binary %q could not be started: %s. Install k6 (%s) and make sure it is on PATH", binary, err, InstallDocsURL)

	case stdout.Exceeded() || stderr.Exceeded():
		return out, microerror.Maskf(outputOverflowError, "k6 output exceeded %d bytes and the run was stopped%s", r.maxOutputBytes, stderrSuffix(out.Stderr))

	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return out, microerror.Maskf(timeoutError, "k6 run did not finish within %s%s", r.timeout, stderrSuffix(out.Stderr))

	case out.ExitCode == thresholdsCrossedExitCode:
		return out, microerror.Maskf(executionFailedError, "k6 exited with code %d: one or more thresholds were crossed%s", out.ExitCode, stderrSuffix(out.Stderr))

	case out.ExitCode > 0:
		return out, microerror.Maskf(executionFailedError, "k6 exited with code %d%s", out.ExitCode, stderrSuffix(out.Stderr))

	default:
		return out, microerror.Maskf(executionFailedError, "k6 run failed: %s%s", err, stderrSuffix(out.Stderr))
	}
}

func stderrSuffix(stderr string) string {
	stderr = strings.TrimSpace(stderr)
	if stderr == "" {
		return ""
	}
	return "\n" + stderr
}

// limitedBuffer collects process output up to limit bytes. Exceeding the
// limit fails the write and calls overflow once.
type limitedBuffer struct {
	mu       sync.Mutex
	buf      bytes.Buffer
	limit    int
	tee      io.Writer
	overflow func()
	exceeded bool
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.exceeded {
		return 0, errOutputLimit
	}
	if b.buf.Len()+len(p) > b.limit {
		b.exceeded = true
		if b.overflow != nil {
			b.overflow()
		}
		return 0, errOutputLimit
	}

	b.buf.Write(p)
	if b.tee != nil {
		_, _ = b.tee.Write(p)
	}
	return len(p), nil
}

func (b *limitedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func (b *limitedBuffer) Exceeded() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.exceeded
}
