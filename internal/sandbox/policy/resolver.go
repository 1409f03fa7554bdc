// Package policy resolves caller-supplied limit overrides and filesystem
// allowlists into a canonical ExecutionPolicy. Resolution never fails:
// out-of-range values are clamped, unusable allowlist entries are dropped,
// so the caller always gets a bounded, safe policy.
package policy

import (
	"path/filepath"

	"sandrun/internal/sandbox/spec"
)

// Default and boundary values applied during resolution.
const (
	DefaultTimeLimitSec uint = 3
	DefaultCPULimitSec  uint = 3
	DefaultMemLimitMB   uint = 256
	DefaultOutputMB     uint = 16
	DefaultPIDs         uint = 64

	MinMemLimitMB   uint = 16
	MaxTimeLimitSec uint = 300
	MaxMemLimitMB   uint = 4096
)

// Overrides carries the optional caller-requested limits and paths.
// Nil fields fall back to defaults.
type Overrides struct {
	TimeLimitSec *uint
	CPULimitSec  *uint
	MemLimitMB   *uint
	FSAllowlist  []string
}

// Resolve builds the canonical policy for a session whose private working
// directory is workDir. Every allowlist entry is canonicalized to its
// absolute, symlink-free form so a symlink inside an allowed directory
// cannot smuggle in an outside path. Entries that do not resolve are
// dropped rather than rejected. The working directory is always appended
// and cannot be removed by caller input.
func Resolve(overrides Overrides, workDir string) spec.ExecutionPolicy {
	limits := resolveLimits(overrides)

	allowlist := make([]string, 0, len(overrides.FSAllowlist)+1)
	seen := make(map[string]struct{})
	for _, entry := range overrides.FSAllowlist {
		canonical, err := canonicalize(entry)
		if err != nil {
			continue
		}
		if _, ok := seen[canonical]; ok {
			continue
		}
		seen[canonical] = struct{}{}
		allowlist = append(allowlist, canonical)
	}
	if workDir != "" {
		canonical, err := canonicalize(workDir)
		if err != nil {
			canonical = filepath.Clean(workDir)
		}
		if _, ok := seen[canonical]; !ok {
			allowlist = append(allowlist, canonical)
		}
	}

	return spec.ExecutionPolicy{Limits: limits, FSAllowlist: allowlist}
}

func resolveLimits(overrides Overrides) spec.ResourceLimit {
	timeSec := DefaultTimeLimitSec
	if overrides.TimeLimitSec != nil && *overrides.TimeLimitSec > 0 {
		timeSec = *overrides.TimeLimitSec
	}
	if timeSec > MaxTimeLimitSec {
		timeSec = MaxTimeLimitSec
	}

	cpuSec := DefaultCPULimitSec
	if overrides.CPULimitSec != nil && *overrides.CPULimitSec > 0 {
		cpuSec = *overrides.CPULimitSec
	}
	// CPU seconds can never exceed the wall clock budget.
	if cpuSec > timeSec {
		cpuSec = timeSec
	}

	memMB := DefaultMemLimitMB
	if overrides.MemLimitMB != nil && *overrides.MemLimitMB > 0 {
		memMB = *overrides.MemLimitMB
	}
	// Floor keeps the interpreter from dying during its own startup.
	if memMB < MinMemLimitMB {
		memMB = MinMemLimitMB
	}
	if memMB > MaxMemLimitMB {
		memMB = MaxMemLimitMB
	}

	return spec.ResourceLimit{
		CPUTimeSec:  cpuSec,
		WallTimeSec: timeSec,
		MemoryMB:    memMB,
		OutputMB:    DefaultOutputMB,
		PIDs:        DefaultPIDs,
	}
}

func canonicalize(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", err
	}
	return resolved, nil
}
