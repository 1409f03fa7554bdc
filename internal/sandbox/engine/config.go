package engine

import "time"

// Config controls supervisor behavior.
type Config struct {
	// HelperPath locates the pre-compiled harness binary.
	HelperPath string
	// GraceMargin is added to the policy wall limit before the external
	// deadline force-kills the process group. It backstops the in-process
	// alarm when the child is stuck in an uninterruptible syscall.
	GraceMargin time.Duration
	// OutputMaxBytes caps captured stdout and stderr, each.
	OutputMaxBytes int64
	// CgroupRoot is the cgroup v2 directory sessions are created under.
	CgroupRoot string
	// EnableCgroup turns on memory.max/pids.max enforcement. When set and
	// the cgroup cannot be created, the run fails instead of degrading.
	EnableCgroup bool
	// EnableNamespaces isolates the child in user+net (+mount/pid/ipc/uts)
	// namespaces. The network namespace is the authoritative network
	// denial; the harness seccomp filter is the second layer.
	EnableNamespaces bool
	// DisableSeccomp turns off the harness network filter. The filter is
	// always installed otherwise; a zero-value Config keeps it on.
	DisableSeccomp bool
}

const (
	defaultGraceMargin           = 2 * time.Second
	defaultOutputMaxBytes  int64 = 1 << 20
	defaultHelperName            = "sandrun-init"
)

func (c Config) withDefaults() Config {
	if c.HelperPath == "" {
		c.HelperPath = defaultHelperName
	}
	if c.GraceMargin <= 0 {
		c.GraceMargin = defaultGraceMargin
	}
	if c.OutputMaxBytes <= 0 {
		c.OutputMaxBytes = defaultOutputMaxBytes
	}
	return c
}
