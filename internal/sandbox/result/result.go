// Package result defines execution results and the outcome mapping.
package result

import (
	"strings"

	"sandrun/internal/sandbox/spec"
)

// Status is the caller-facing success flag.
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// ErrorReason classifies why a session did not succeed.
type ErrorReason string

const (
	ReasonTimeout           ErrorReason = "timeout"
	ReasonViolation         ErrorReason = "violation"
	ReasonUnhandled         ErrorReason = "unhandled"
	ReasonSupervisorFailure ErrorReason = "supervisor_failure"
)

// Harness exit codes, mirroring the timeout(1) convention: 124 means the
// in-process wall deadline fired, 125 means harness setup itself failed
// before any user code ran.
const (
	ExitTimeout        = 124
	ExitHarnessFailure = 125
)

// RawOutcome captures raw supervision data for one session.
type RawOutcome struct {
	ExitCode     int
	Stdout       string
	Stderr       string
	WallTimeMs   int64
	CPUTimeMs    int64
	MemoryPeakKB int64
	// TimedOut is set when the supervisor's external deadline killed the
	// process group.
	TimedOut  bool
	OomKilled bool
	Truncated bool
}

// LimitsSnapshot mirrors the resolved resource limits in the response.
type LimitsSnapshot struct {
	CPUSec  uint `json:"cpu_sec"`
	TimeSec uint `json:"time_sec"`
	MemMB   uint `json:"mem_mb"`
}

// PolicySnapshot lets the caller audit exactly which limits were in force,
// independent of what was originally requested.
type PolicySnapshot struct {
	Network     string         `json:"network"`
	FSAllowlist []string       `json:"fs_allowlist"`
	Limits      LimitsSnapshot `json:"limits"`
}

// ExecutionResult is the uniform response for one session. Invariant:
// Status is success exactly when ExitCode is zero and ErrorReason is empty.
type ExecutionResult struct {
	Status      Status         `json:"status"`
	Stdout      string         `json:"stdout"`
	Stderr      string         `json:"stderr"`
	ExitCode    int            `json:"exit_code"`
	TimeMs      int64          `json:"time_ms"`
	ErrorReason ErrorReason    `json:"error,omitempty"`
	Policy      PolicySnapshot `json:"policy"`
}

// Snapshot freezes the resolved policy into its response form.
func Snapshot(policy spec.ExecutionPolicy) PolicySnapshot {
	allowlist := make([]string, len(policy.FSAllowlist))
	copy(allowlist, policy.FSAllowlist)
	return PolicySnapshot{
		Network:     "denied",
		FSAllowlist: allowlist,
		Limits: LimitsSnapshot{
			CPUSec:  policy.Limits.CPUTimeSec,
			TimeSec: policy.Limits.WallTimeSec,
			MemMB:   policy.Limits.MemoryMB,
		},
	}
}

// Report maps a raw outcome into the uniform result.
//
// Classification precedence is deterministic and documented: timeout (the
// harness exit code or the external deadline) wins over violation, which
// wins over unhandled. A timeout that races a resource-limit kill is
// therefore always reported as a timeout. Violation detection matches
// known denial diagnostics in stderr and is best-effort, not authoritative.
func Report(outcome RawOutcome, policy spec.ExecutionPolicy) ExecutionResult {
	res := ExecutionResult{
		Stdout:   outcome.Stdout,
		Stderr:   outcome.Stderr,
		ExitCode: outcome.ExitCode,
		TimeMs:   outcome.WallTimeMs,
		Policy:   Snapshot(policy),
	}

	switch {
	case outcome.TimedOut || outcome.ExitCode == ExitTimeout:
		res.Status = StatusError
		res.ErrorReason = ReasonTimeout
		if res.ExitCode == 0 {
			res.ExitCode = ExitTimeout
		}
	case outcome.ExitCode == ExitHarnessFailure:
		// Nothing the user wrote ran; attribute to the sandbox itself.
		res.Status = StatusError
		res.ErrorReason = ReasonSupervisorFailure
	case outcome.ExitCode == 0:
		res.Status = StatusSuccess
	case isViolation(outcome.Stderr):
		res.Status = StatusError
		res.ErrorReason = ReasonViolation
	default:
		res.Status = StatusError
		res.ErrorReason = ReasonUnhandled
	}
	return res
}

// SupervisorFailure builds the result for a session whose child could not
// be spawned at all. Fatal only for this one request.
func SupervisorFailure(policy spec.ExecutionPolicy, err error) ExecutionResult {
	res := ExecutionResult{
		Status:      StatusError,
		ExitCode:    -1,
		ErrorReason: ReasonSupervisorFailure,
		Policy:      Snapshot(policy),
	}
	if err != nil {
		res.Stderr = err.Error()
	}
	return res
}

// violationMarkers are the denial diagnostics the guard layers produce:
// Landlock and seccomp surface EACCES/EPERM, which CPython renders as
// PermissionError, and the harness prints its own marker on a denied
// network attempt.
var violationMarkers = []string{
	"permission denied",
	"permissionerror",
	"operation not permitted",
	"network is disabled",
	"landlock",
}

func isViolation(stderr string) bool {
	lowered := strings.ToLower(stderr)
	for _, marker := range violationMarkers {
		if strings.Contains(lowered, marker) {
			return true
		}
	}
	return false
}
