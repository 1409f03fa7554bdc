// Package spec defines the execution policy and resource limits.
package spec

// ResourceLimit describes hard limits enforced for one session.
type ResourceLimit struct {
	CPUTimeSec  uint
	WallTimeSec uint
	MemoryMB    uint
	OutputMB    uint
	PIDs        uint
}

// ExecutionPolicy is the canonical resolved policy for one session.
// It is created once by the policy resolver and never mutated afterwards;
// the session owns it for its entire lifetime.
type ExecutionPolicy struct {
	Limits ResourceLimit
	// FSAllowlist holds absolute, symlink-free paths the user code may
	// read and write. The session working directory is always present.
	FSAllowlist []string
}

// Clone returns a deep copy so callers can embed the policy in results
// without aliasing the session-owned slice.
func (p ExecutionPolicy) Clone() ExecutionPolicy {
	out := p
	out.FSAllowlist = make([]string, len(p.FSAllowlist))
	copy(out.FSAllowlist, p.FSAllowlist)
	return out
}

// RunSpec is the unified execution specification for one session.
// All paths must exist on the host before the engine is invoked.
type RunSpec struct {
	SessionID string
	WorkDir   string
	Cmd       []string
	Env       []string
	Policy    ExecutionPolicy
	// RuntimePaths are read-only paths the interpreter itself needs
	// (its binary and standard library). They are not part of the
	// caller-visible allowlist.
	RuntimePaths []string
	// AllowDegradedFS permits execution when the kernel cannot enforce
	// the filesystem gate; the remaining layers still apply.
	AllowDegradedFS bool
}
