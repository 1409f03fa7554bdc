//go:build linux

// sandrun-init is the pre-compiled harness entrypoint. The supervisor
// spawns it in a fresh process (and, when enabled, fresh namespaces) and
// streams a typed InitRequest over stdin; no policy value ever passes
// through generated source text.
//
// The guard stage applies, strictly in order: process resource limits, the
// wall-clock deadline, the seccomp network-deny filter, and the Landlock
// filesystem allowlist. Only then does it start the exec stage, which
// installs the address-space ceiling and replaces itself with the
// interpreter. User code therefore never runs a single instruction
// unguarded.
//
// Exit codes: the interpreter's own code on normal completion, 124 when
// the wall deadline fires, 125 when harness setup itself fails.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"syscall"
	"time"

	seccomp "github.com/seccomp/libseccomp-golang"
	"golang.org/x/sys/unix"

	"sandrun/internal/sandbox/engine"
	"sandrun/internal/sandbox/spec"
)

const (
	exitTimeout = 124
	exitHarness = 125
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "-exec" {
		if err := execStage(os.Stdin); err != nil {
			_, _ = fmt.Fprintln(os.Stderr, "sandrun-init exec:", err.Error())
			os.Exit(exitHarness)
		}
		return
	}
	code, err := guardStage(os.Stdin)
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, "sandrun-init:", err.Error())
		os.Exit(exitHarness)
	}
	os.Exit(code)
}

func guardStage(r io.Reader) (int, error) {
	req, err := decodeInitRequest(r)
	if err != nil {
		return 0, err
	}
	if err := validateRequest(req); err != nil {
		return 0, err
	}
	if err := os.Chdir(req.RunSpec.WorkDir); err != nil {
		return 0, fmt.Errorf("chdir workdir: %w", err)
	}

	limits := req.RunSpec.Policy.Limits
	if err := applyRlimits(limits); err != nil {
		return 0, err
	}

	deadline := time.Duration(limits.WallTimeSec) * time.Second

	if req.EnableSeccomp {
		if err := denyNetwork(); err != nil {
			return 0, err
		}
	}

	if err := applyLandlock(req.RunSpec); err != nil {
		if !req.RunSpec.AllowDegradedFS {
			return 0, err
		}
		_, _ = fmt.Fprintln(os.Stderr, "sandrun-init: filesystem gate degraded:", err.Error())
	}

	return runExecStage(req, deadline)
}

func decodeInitRequest(r io.Reader) (engine.InitRequest, error) {
	var req engine.InitRequest
	if err := json.NewDecoder(r).Decode(&req); err != nil {
		return engine.InitRequest{}, fmt.Errorf("decode init request: %w", err)
	}
	return req, nil
}

func validateRequest(req engine.InitRequest) error {
	if len(req.RunSpec.Cmd) == 0 {
		return fmt.Errorf("command is required")
	}
	if req.RunSpec.WorkDir == "" {
		return fmt.Errorf("work dir is required")
	}
	if req.RunSpec.Policy.Limits.WallTimeSec == 0 {
		return fmt.Errorf("wall time limit is required")
	}
	return nil
}

func applyRlimits(limits spec.ResourceLimit) error {
	if limits.CPUTimeSec > 0 {
		seconds := uint64(limits.CPUTimeSec)
		if err := unix.Setrlimit(unix.RLIMIT_CPU, &unix.Rlimit{Cur: seconds, Max: seconds}); err != nil {
			return fmt.Errorf("set rlimit cpu: %w", err)
		}
	}
	if limits.OutputMB > 0 {
		bytes := uint64(limits.OutputMB) * 1024 * 1024
		if err := unix.Setrlimit(unix.RLIMIT_FSIZE, &unix.Rlimit{Cur: bytes, Max: bytes}); err != nil {
			return fmt.Errorf("set rlimit fsize: %w", err)
		}
	}
	if limits.PIDs > 0 {
		val := uint64(limits.PIDs)
		if err := unix.Setrlimit(unix.RLIMIT_NPROC, &unix.Rlimit{Cur: val, Max: val}); err != nil {
			return fmt.Errorf("set rlimit nproc: %w", err)
		}
	}
	return nil
}

// deniedSyscalls cover originating any network connection. Denial returns
// EPERM so the attempt fails before any bytes are sent, instead of killing
// the process with an unattributable signal.
var deniedSyscalls = []string{
	"socket",
	"socketpair",
	"connect",
	"bind",
	"listen",
	"accept",
	"accept4",
	"sendmmsg",
}

func denyNetwork() error {
	filter, err := seccomp.NewFilter(seccomp.ActAllow)
	if err != nil {
		return fmt.Errorf("create seccomp filter: %w", err)
	}
	denyAction := seccomp.ActErrno.SetReturnCode(int16(unix.EPERM))
	for _, name := range deniedSyscalls {
		call, err := seccomp.GetSyscallFromName(name)
		if err != nil {
			// Not every syscall exists on every architecture.
			continue
		}
		if err := filter.AddRule(call, denyAction); err != nil {
			return fmt.Errorf("add seccomp rule %s: %w", name, err)
		}
	}
	if err := unix.Prctl(unix.PR_SET_NO_NEW_PRIVS, 1, 0, 0, 0); err != nil {
		return fmt.Errorf("set no new privs: %w", err)
	}
	if err := filter.Load(); err != nil {
		return fmt.Errorf("load seccomp filter: %w", err)
	}
	return nil
}

// Landlock access sets are restricted to ABI v1 rights so the gate works
// on every kernel that has Landlock at all (5.13+).
const (
	landlockAccessRead = unix.LANDLOCK_ACCESS_FS_EXECUTE |
		unix.LANDLOCK_ACCESS_FS_READ_FILE |
		unix.LANDLOCK_ACCESS_FS_READ_DIR

	landlockAccessWrite = unix.LANDLOCK_ACCESS_FS_WRITE_FILE |
		unix.LANDLOCK_ACCESS_FS_REMOVE_DIR |
		unix.LANDLOCK_ACCESS_FS_REMOVE_FILE |
		unix.LANDLOCK_ACCESS_FS_MAKE_CHAR |
		unix.LANDLOCK_ACCESS_FS_MAKE_DIR |
		unix.LANDLOCK_ACCESS_FS_MAKE_REG |
		unix.LANDLOCK_ACCESS_FS_MAKE_SOCK |
		unix.LANDLOCK_ACCESS_FS_MAKE_FIFO |
		unix.LANDLOCK_ACCESS_FS_MAKE_BLOCK |
		unix.LANDLOCK_ACCESS_FS_MAKE_SYM
)

// applyLandlock installs the filesystem gate: allowlist entries get full
// read/write access, runtime paths read and execute only, everything else
// is denied by the kernel. Already-open descriptors (stdout, stderr) are
// unaffected.
func applyLandlock(runSpec spec.RunSpec) error {
	attr := unix.LandlockRulesetAttr{
		Access_fs: landlockAccessRead | landlockAccessWrite,
	}
	rulesetFd, err := unix.LandlockCreateRuleset(&attr, 0)
	if err != nil {
		return fmt.Errorf("create landlock ruleset (kernel 5.13+ required): %w", err)
	}
	defer unix.Close(rulesetFd)

	for _, path := range runSpec.Policy.FSAllowlist {
		if err := addLandlockRule(rulesetFd, path, landlockAccessRead|landlockAccessWrite); err != nil {
			return err
		}
	}
	for _, path := range runSpec.RuntimePaths {
		if err := addLandlockRule(rulesetFd, path, landlockAccessRead); err != nil {
			// Runtime paths vary per distribution; a missing one is fine.
			if os.IsNotExist(err) {
				continue
			}
			return err
		}
	}
	// The guard re-executes itself for the exec stage.
	if self, err := os.Executable(); err == nil {
		if err := addLandlockRule(rulesetFd, self, landlockAccessRead); err != nil {
			return err
		}
	}

	if err := unix.Prctl(unix.PR_SET_NO_NEW_PRIVS, 1, 0, 0, 0); err != nil {
		return fmt.Errorf("set no new privs: %w", err)
	}
	if err := unix.LandlockRestrictSelf(rulesetFd, 0); err != nil {
		return fmt.Errorf("restrict self: %w", err)
	}
	return nil
}

func addLandlockRule(rulesetFd int, path string, access uint64) error {
	pathFd, err := unix.Open(path, unix.O_PATH|unix.O_CLOEXEC, 0)
	if err != nil {
		if os.IsNotExist(err) {
			return os.ErrNotExist
		}
		return fmt.Errorf("open landlock path %s: %w", path, err)
	}
	defer unix.Close(pathFd)

	// Files only carry file-level rights; passing directory rights for a
	// regular file makes the kernel reject the rule.
	info, err := os.Stat(path)
	if err == nil && !info.IsDir() {
		access &= unix.LANDLOCK_ACCESS_FS_EXECUTE |
			unix.LANDLOCK_ACCESS_FS_READ_FILE |
			unix.LANDLOCK_ACCESS_FS_WRITE_FILE
	}

	ruleAttr := unix.LandlockPathBeneathAttr{
		Allowed_access: access,
		Parent_fd:      int32(pathFd),
	}
	if err := unix.LandlockAddPathBeneathRule(rulesetFd, &ruleAttr, 0); err != nil {
		return fmt.Errorf("add landlock rule %s: %w", path, err)
	}
	return nil
}

// runExecStage starts the exec stage and enforces the in-process wall
// deadline. The exec stage applies the address-space ceiling and then
// replaces itself with the interpreter, so the guard's own Go runtime
// never runs under RLIMIT_AS.
//
// The exec stage stays in the guard's process group: the supervisor kills
// that group on external deadline or cancellation, and a group of its own
// would put the payload out of reach. Pdeathsig backstops the case where
// only the guard dies.
func runExecStage(req engine.InitRequest, deadline time.Duration) (int, error) {
	payload := engine.ExecRequest{
		Cmd:      req.RunSpec.Cmd,
		Env:      buildEnv(req.RunSpec.Env),
		MemoryMB: req.RunSpec.Policy.Limits.MemoryMB,
	}
	stdin, err := encodeToPipe(payload)
	if err != nil {
		return 0, fmt.Errorf("encode exec request: %w", err)
	}
	defer stdin.Close()

	self, err := os.Executable()
	if err != nil {
		return 0, fmt.Errorf("resolve own binary: %w", err)
	}

	child := exec.Command(self, "-exec")
	child.Stdin = stdin
	child.Stdout = os.Stdout
	child.Stderr = os.Stderr
	child.Env = payload.Env
	child.SysProcAttr = &syscall.SysProcAttr{Pdeathsig: syscall.SIGKILL}

	if err := child.Start(); err != nil {
		return 0, fmt.Errorf("start exec stage: %w", err)
	}

	done := make(chan error, 1)
	go func() { done <- child.Wait() }()

	select {
	case <-time.After(deadline):
		// Direct pid: the exec stage shares this group, so a group kill
		// would take the guard down with it. Descendants the payload
		// forked stay in the group and are reaped by the supervisor.
		_ = syscall.Kill(child.Process.Pid, syscall.SIGKILL)
		<-done
		_, _ = fmt.Fprintln(os.Stderr, "wall clock limit exceeded")
		return exitTimeout, nil
	case waitErr := <-done:
		return exitStatus(child.ProcessState, waitErr), nil
	}
}

func exitStatus(state *os.ProcessState, waitErr error) int {
	if state == nil {
		if waitErr != nil {
			return exitHarness
		}
		return 0
	}
	if ws, ok := state.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return 128 + int(ws.Signal())
	}
	return state.ExitCode()
}

func buildEnv(env []string) []string {
	if len(env) > 0 {
		return env
	}
	return []string{"PATH=/usr/local/sbin:/usr/local/bin:/usr/sbin:/usr/bin:/sbin:/bin"}
}

func encodeToPipe(payload engine.ExecRequest) (io.ReadCloser, error) {
	reader, writer := io.Pipe()
	go func() {
		enc := json.NewEncoder(writer)
		err := enc.Encode(payload)
		_ = writer.CloseWithError(err)
	}()
	return reader, nil
}

func execStage(r io.Reader) error {
	var req engine.ExecRequest
	if err := json.NewDecoder(r).Decode(&req); err != nil {
		return fmt.Errorf("decode exec request: %w", err)
	}
	if len(req.Cmd) == 0 {
		return fmt.Errorf("command is required")
	}
	if req.MemoryMB > 0 {
		bytes := uint64(req.MemoryMB) * 1024 * 1024
		if err := unix.Setrlimit(unix.RLIMIT_AS, &unix.Rlimit{Cur: bytes, Max: bytes}); err != nil {
			return fmt.Errorf("set rlimit as: %w", err)
		}
	}
	cmdPath, err := exec.LookPath(req.Cmd[0])
	if err != nil {
		return fmt.Errorf("resolve command: %w", err)
	}
	return unix.Exec(cmdPath, req.Cmd, req.Env)
}
