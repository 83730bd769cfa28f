// Package service runs load tests end to end: validation, script generation,
// k6 discovery, execution, summary parsing and history recording.
package service

import (
	"context"
	"io"
	"time"

	"github.com/giantswarm/microerror"
	"github.com/giantswarm/micrologger"
	"golang.org/x/sync/semaphore"

	"github.com/studiowebux/k6ui/internal/history"
	"github.com/studiowebux/k6ui/internal/k6"
	"github.com/studiowebux/k6ui/internal/loadtest"
	"github.com/studiowebux/k6ui/internal/script"
	"github.com/studiowebux/k6ui/internal/summary"
	"github.com/studiowebux/k6ui/internal/telemetry"
)

// Locator finds the k6 executable.
type Locator interface {
	Locate(ctx context.Context) (string, error)
}

// Runner executes a k6 script.
type Runner interface {
	Run(ctx context.Context, binary, scriptPath string, progress io.Writer) (*k6.Output, error)
}

// Scripts renders configurations into script files.
type Scripts interface {
	Generate(cfg loadtest.Config) (*script.Script, error)
	Remove(s *script.Script) error
}

// Recorder persists run history.
type Recorder interface {
	Create(run *history.Run) error
	Complete(run *history.Run) error
}

// Observer receives run lifecycle events for metrics.
type Observer interface {
	RunStarted()
	RunFinished(outcome string, d time.Duration)
	RunRejected(outcome string)
}

// Config configures a Service.
type Config struct {
	Logger  micrologger.Logger
	Locator Locator
	Runner  Runner
	Scripts Scripts

	// History and Observer are optional.
	History  Recorder
	Observer Observer

	// KeepScripts leaves generated scripts on disk after the run.
	KeepScripts bool
	// MaxConcurrentRuns caps simultaneous k6 processes. Zero means no limit.
	MaxConcurrentRuns int
}

// Service runs load tests.
type Service struct {
	logger   micrologger.Logger
	locator  Locator
	runner   Runner
	scripts  Scripts
	history  Recorder
	observer Observer

	keepScripts bool
	limit       int
	sem         *semaphore.Weighted
	now         func() time.Time
}

// New creates a Service.
func New(config Config) (*Service, error) {
	if config.Logger == nil {
		return nil, microerror.Maskf(invalidConfigError, "%T.Logger must not be empty", config)
	}
	if config.Locator == nil {
		return nil, microerror.Maskf(invalidConfigError, "%T.Locator must not be empty", config)
	}
	if config.Runner == nil {
		return nil, microerror.Maskf(invalidConfigError, "%T.Runner must not be empty", config)
	}
	if config.Scripts == nil {
		return nil, microerror.Maskf(invalidConfigError, "%T.Scripts must not be empty", config)
	}
	if config.MaxConcurrentRuns < 0 {
		return nil, microerror.Maskf(invalidConfigError, "%T.MaxConcurrentRuns must not be negative", config)
	}

	s := &Service{
		logger:   config.Logger,
		locator:  config.Locator,
		runner:   config.Runner,
		scripts:  config.Scripts,
		history:  config.History,
		observer: config.Observer,

		keepScripts: config.KeepScripts,
		limit:       config.MaxConcurrentRuns,
		now:         time.Now,
	}
	if config.MaxConcurrentRuns > 0 {
		s.sem = semaphore.NewWeighted(int64(config.MaxConcurrentRuns))
	}

	return s, nil
}

// Preview validates cfg and returns the script it would run without writing
// anything.
func (s *Service) Preview(cfg loadtest.Config) (string, error) {
	cfg = cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return "", microerror.Mask(err)
	}

	content, err := script.Render(cfg)
	if err != nil {
		return "", microerror.Mask(err)
	}
	return content, nil
}

// Run executes one load test and blocks until k6 exits. k6 output is copied
// to progress as it is produced when progress is not nil.
//
// Validation happens before any file is written or process started.
func (s *Service) Run(ctx context.Context, cfg loadtest.Config, progress io.Writer) (*loadtest.Result, error) {
	cfg = cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		s.reject(telemetry.OutcomeInvalid)
		return nil, microerror.Mask(err)
	}

	if s.sem != nil {
		if !s.sem.TryAcquire(1) {
			s.reject(telemetry.OutcomeRejected)
			return nil, microerror.Maskf(tooManyRunsError, "%d load tests are already running, try again later", s.limit)
		}
		defer s.sem.Release(1)
	}

	sc, err := s.scripts.Generate(cfg)
	if err != nil {
		if script.IsInvalidInput(err) {
			s.reject(telemetry.OutcomeInvalid)
		}
		return nil, microerror.Mask(err)
	}
	defer s.cleanup(ctx, sc)

	binary, err := s.locator.Locate(ctx)
	if err != nil {
		s.reject(telemetry.OutcomeBinaryNotFound)
		s.logger.LogCtx(ctx, "level", "warning", "message", "k6 binary not found", "stack", microerror.JSON(err))
		return nil, microerror.Mask(err)
	}

	run := &history.Run{
		StartedAt: s.now(),
		Status:    history.StatusRunning,
		Config:    cfg,
		Binary:    binary,
		Script:    sc.Content,
	}
	s.recordStart(ctx, run)

	s.logger.LogCtx(ctx, "level", "info", "message", "starting load test",
		"target", cfg.TargetURL, "method", cfg.Method, "vus", cfg.VirtualUsers,
		"duration", cfg.Duration, "callType", string(cfg.CallType), "script", sc.Path)

	if s.observer != nil {
		s.observer.RunStarted()
	}
	start := s.now()
	out, err := s.runner.Run(ctx, binary, sc.Path, progress)
	elapsed := s.now().Sub(start)
	outcome := outcomeOf(err)
	if s.observer != nil {
		s.observer.RunFinished(outcome, elapsed)
	}

	run.DurationMS = elapsed.Milliseconds()
	if out != nil {
		code := out.ExitCode
		run.ExitCode = &code
		run.RawOutput = out.Combined()
	}

	if err != nil {
		run.Status = history.StatusFailed
		run.Error = err.Error()
		if out != nil {
			run.Metrics = summary.Parse(run.RawOutput)
		}
		s.recordComplete(ctx, run)

		s.logger.LogCtx(ctx, "level", "error", "message", "load test failed", "outcome", outcome, "stack", microerror.JSON(err))
		return nil, microerror.Mask(err)
	}

	result := &loadtest.Result{
		RunID:     run.ID,
		Summary:   summary.Text(run.RawOutput),
		Metrics:   summary.Parse(run.RawOutput),
		RawOutput: run.RawOutput,
		Script:    sc.Content,
	}

	run.Status = history.StatusCompleted
	run.Summary = result.Summary
	run.Metrics = result.Metrics
	s.recordComplete(ctx, run)

	s.logger.LogCtx(ctx, "level", "info", "message", "load test completed", "target", cfg.TargetURL, "duration", elapsed.String())

	return result, nil
}

func (s *Service) reject(outcome string) {
	if s.observer != nil {
		s.observer.RunRejected(outcome)
	}
}

func (s *Service) cleanup(ctx context.Context, sc *script.Script) {
	if s.keepScripts {
		return
	}
	if err := s.scripts.Remove(sc); err != nil {
		s.logger.LogCtx(ctx, "level", "warning", "message", "failed to remove script", "path", sc.Path, "error", err.Error())
	}
}

// History failures are logged and never fail the run.
func (s *Service) recordStart(ctx context.Context, run *history.Run) {
	if s.history == nil {
		return
	}
	if err := s.history.Create(run); err != nil {
		s.logger.LogCtx(ctx, "level", "warning", "message", "failed to record run", "error", err.Error())
	}
}

func (s *Service) recordComplete(ctx context.Context, run *history.Run) {
	if s.history == nil || run.ID == 0 {
		return
	}
	if err := s.history.Complete(run); err != nil {
		s.logger.LogCtx(ctx, "level", "warning", "message", "failed to complete run record", "id", run.ID, "error", err.Error())
	}
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return telemetry.OutcomeCompleted
	case k6.IsBinaryNotFound(err):
		return telemetry.OutcomeBinaryNotFound
	case k6.IsTimeout(err):
		return telemetry.OutcomeTimeout
	case k6.IsOutputOverflow(err):
		return telemetry.OutcomeOverflow
	default:
		return telemetry.OutcomeFailed
	}
}
