// Package sandbox is the single-shot execution primitive: it takes a code
// string plus optional limits and returns a structured result. Low-level
// faults are never re-raised to the caller; every outcome is normalized
// into an ExecutionResult.
package sandbox

import (
	"context"

	"go.uber.org/zap"

	"sandrun/internal/sandbox/engine"
	"sandrun/internal/sandbox/observer"
	"sandrun/internal/sandbox/policy"
	"sandrun/internal/sandbox/profile"
	"sandrun/internal/sandbox/result"
	"sandrun/internal/sandbox/spec"
	"sandrun/internal/sandbox/workspace"
	apperrors "sandrun/pkg/errors"
	"sandrun/pkg/utils/logger"
)

// Options carries the caller-visible knobs for one run. Nil limit fields
// fall back to defaults; out-of-range values are clamped, never rejected.
type Options struct {
	TimeLimitSec *uint
	CPULimitSec  *uint
	MemLimitMB   *uint
	FSAllowlist  []string
	// Profile selects the runtime profile; empty means the default.
	Profile string
	// SessionID optionally names the session so the caller can Kill it
	// from another goroutine. A uuid is generated when empty.
	SessionID string
}

// Service executes code under the configured engine and runtime profiles.
// One Service handles any number of concurrent sessions; sessions share no
// mutable state.
type Service struct {
	eng            engine.Engine
	workRoot       string
	profiles       map[string]profile.RuntimeProfile
	defaultProfile string
	metrics        observer.MetricsRecorder
}

// ServiceOption customizes a Service.
type ServiceOption func(*Service)

// WithProfile registers an additional runtime profile.
func WithProfile(p profile.RuntimeProfile) ServiceOption {
	return func(s *Service) {
		s.profiles[p.ID] = p
	}
}

// WithMetrics installs a metrics recorder.
func WithMetrics(m observer.MetricsRecorder) ServiceOption {
	return func(s *Service) {
		if m != nil {
			s.metrics = m
		}
	}
}

// NewService creates the sandbox service. The python3 profile is always
// registered and is the default.
func NewService(eng engine.Engine, workRoot string, opts ...ServiceOption) *Service {
	py := profile.Python3()
	s := &Service{
		eng:            eng,
		workRoot:       workRoot,
		profiles:       map[string]profile.RuntimeProfile{py.ID: py},
		defaultProfile: py.ID,
		metrics:        observer.NoopMetricsRecorder{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RunCode executes one code string in a fresh sandbox session and blocks
// until the session reaches a terminal state. It always returns a usable
// result; spawn-level faults surface as error_reason=supervisor_failure.
func (s *Service) RunCode(ctx context.Context, code string, opts Options) result.ExecutionResult {
	overrides := policy.Overrides{
		TimeLimitSec: opts.TimeLimitSec,
		CPULimitSec:  opts.CPULimitSec,
		MemLimitMB:   opts.MemLimitMB,
		FSAllowlist:  opts.FSAllowlist,
	}

	profileID := opts.Profile
	if profileID == "" {
		profileID = s.defaultProfile
	}
	prof, ok := s.profiles[profileID]
	if !ok {
		logger.Warn(ctx, "unknown runtime profile", zap.String("profile", profileID))
		return s.fail(ctx, profileID, policy.Resolve(overrides, ""), errUnknownProfile(profileID))
	}

	ws, err := workspace.Create(s.workRoot)
	if err != nil {
		logger.Error(ctx, "workspace creation failed", zap.Error(err))
		return s.fail(ctx, profileID, policy.Resolve(overrides, ""), err)
	}
	sess := &SandboxSession{ID: ws.ID, WorkDir: ws.Root, State: StateCreated}
	if opts.SessionID != "" {
		sess.ID = opts.SessionID
	}
	defer func() {
		if cleanupErr := ws.Cleanup(); cleanupErr != nil {
			logger.Warn(ctx, "workspace cleanup failed",
				zap.String("session", sess.ID), zap.Error(cleanupErr))
		}
		sess.State = StateCleaned
	}()

	sess.Policy = policy.Resolve(overrides, ws.Root)

	if err := ws.Populate(code, prof.SourceFile); err != nil {
		sess.State = StateFailed
		logger.Error(ctx, "populate workspace failed", zap.String("session", sess.ID), zap.Error(err))
		return s.fail(ctx, profileID, sess.Policy, err)
	}
	sess.State = StatePopulated

	cmd, err := prof.BuildCommand(ws.SourcePath)
	if err != nil {
		sess.State = StateFailed
		return s.fail(ctx, profileID, sess.Policy, err)
	}

	runSpec := spec.RunSpec{
		SessionID:       sess.ID,
		WorkDir:         ws.Root,
		Cmd:             cmd,
		Env:             prof.BuildEnv(ws.Root),
		Policy:          sess.Policy,
		RuntimePaths:    prof.RuntimePaths,
		AllowDegradedFS: prof.AllowDegradedFS,
	}

	sess.State = StateRunning
	logger.Debug(ctx, "session running", zap.String("session", sess.ID), zap.Strings("cmd", cmd))

	outcome, err := s.eng.Run(ctx, runSpec)
	if err != nil {
		sess.State = StateFailed
		logger.Error(ctx, "engine run failed", zap.String("session", sess.ID), zap.Error(err))
		return s.fail(ctx, profileID, sess.Policy, err)
	}

	res := result.Report(outcome, sess.Policy)
	sess.State = terminalStateFor(res)
	s.metrics.ObserveRun(ctx, profileID, string(res.Status), res.TimeMs, outcome.MemoryPeakKB)
	return res
}

// Kill force-terminates a running session's process group. No-op when the
// session already finished.
func (s *Service) Kill(ctx context.Context, sessionID string) error {
	return s.eng.Kill(ctx, sessionID)
}

func (s *Service) fail(ctx context.Context, profileID string, pol spec.ExecutionPolicy, err error) result.ExecutionResult {
	res := result.SupervisorFailure(pol, err)
	s.metrics.ObserveRun(ctx, profileID, string(res.Status), res.TimeMs, 0)
	return res
}

func errUnknownProfile(id string) error {
	return apperrors.Newf(apperrors.ProfileNotFound, "unknown runtime profile: %s", id)
}
