//go:build linux

package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"go.uber.org/zap"

	"sandrun/internal/sandbox/result"
	"sandrun/internal/sandbox/spec"
	"sandrun/pkg/utils/logger"
)

type linuxEngine struct {
	cfg       Config
	registry  map[string]int
	registryM sync.Mutex
}

// NewEngine creates the Linux supervisor.
func NewEngine(cfg Config) (Engine, error) {
	return &linuxEngine{
		cfg:      cfg.withDefaults(),
		registry: make(map[string]int),
	}, nil
}

func (e *linuxEngine) Run(ctx context.Context, runSpec spec.RunSpec) (result.RawOutcome, error) {
	if err := validateRunSpec(runSpec); err != nil {
		return result.RawOutcome{}, err
	}

	cgroupPath := ""
	cgroupCleanup := func() {}
	if e.cfg.EnableCgroup {
		var err error
		cgroupPath, cgroupCleanup, err = createSessionCgroup(e.cfg.CgroupRoot, runSpec.SessionID)
		if err != nil {
			return result.RawOutcome{}, fmt.Errorf("create cgroup: %w", err)
		}
		if err := applyCgroupLimits(cgroupPath, runSpec.Policy.Limits); err != nil {
			cgroupCleanup()
			return result.RawOutcome{}, fmt.Errorf("apply cgroup limits: %w", err)
		}
	}
	defer cgroupCleanup()

	initReq := InitRequest{
		RunSpec:           runSpec,
		EnableSeccomp:     !e.cfg.DisableSeccomp,
		NetworkNamespaced: e.cfg.EnableNamespaces,
	}
	stdinPipe, err := jsonToPipe(initReq)
	if err != nil {
		return result.RawOutcome{}, fmt.Errorf("encode init request: %w", err)
	}
	defer stdinPipe.Close()

	cmd := exec.Command(e.cfg.HelperPath)
	cmd.Dir = runSpec.WorkDir
	cmd.Stdin = stdinPipe
	// Fresh environment: nothing ambient (proxy hints, interpreter hooks)
	// leaks from the supervisor; the harness builds the child env itself.
	cmd.Env = []string{}
	cmd.SysProcAttr = buildSysProcAttr(e.cfg.EnableNamespaces)
	// A payload descendant that re-grouped itself (setsid) can outlive the
	// group kill while holding our stdout/stderr pipes; without a bound,
	// Wait would block on those pipes for as long as the orphan lives.
	cmd.WaitDelay = e.cfg.GraceMargin

	stdout := newCappedBuffer(e.cfg.OutputMaxBytes)
	stderr := newCappedBuffer(e.cfg.OutputMaxBytes)
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return result.RawOutcome{}, fmt.Errorf("start harness: %w", err)
	}
	pid := cmd.Process.Pid

	if e.cfg.EnableCgroup {
		if err := addProcessToCgroup(cgroupPath, pid); err != nil {
			logger.Warn(ctx, "add process to cgroup failed", zap.String("cgroup", cgroupPath), zap.Error(err))
		}
	}

	e.register(runSpec.SessionID, pid)
	defer e.unregister(runSpec.SessionID)

	var timedOut atomic.Bool
	deadline := time.Duration(runSpec.Policy.Limits.WallTimeSec)*time.Second + e.cfg.GraceMargin

	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			// Caller cancellation must reach the whole process group,
			// not merely abandon the wait.
			killProcessGroup(pid)
		case <-time.After(deadline):
			timedOut.Store(true)
			killProcessGroup(pid)
		case <-done:
		}
	}()

	waitErr := cmd.Wait()
	close(done)
	// Reap stragglers the harness could not kill itself; the group id
	// stays valid while any member is alive.
	killProcessGroup(pid)

	outcome := result.RawOutcome{
		ExitCode:     exitCodeFromState(waitErr, cmd.ProcessState),
		Stdout:       stdout.String(),
		Stderr:       stderr.String(),
		WallTimeMs:   time.Since(start).Milliseconds(),
		CPUTimeMs:    cpuTimeMs(cmd.ProcessState),
		MemoryPeakKB: memoryPeakKB(cgroupPath, cmd.ProcessState),
		TimedOut:     timedOut.Load(),
		OomKilled:    wasOomKilled(cgroupPath),
		Truncated:    stdout.Truncated() || stderr.Truncated(),
	}
	// ErrWaitDelay means the harness itself exited cleanly and only the
	// forced pipe close errored; its exit code stands.
	if waitErr != nil && !errors.Is(waitErr, exec.ErrWaitDelay) && outcome.ExitCode == 0 {
		outcome.ExitCode = -1
	}
	return outcome, nil
}

func (e *linuxEngine) Kill(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("session id is required")
	}
	e.registryM.Lock()
	pid, ok := e.registry[sessionID]
	e.registryM.Unlock()
	if !ok {
		return nil
	}
	logger.Info(ctx, "killing session", zap.String("session", sessionID), zap.Int("pid", pid))
	killProcessGroup(pid)
	return nil
}

func (e *linuxEngine) register(sessionID string, pid int) {
	e.registryM.Lock()
	defer e.registryM.Unlock()
	e.registry[sessionID] = pid
}

func (e *linuxEngine) unregister(sessionID string) {
	e.registryM.Lock()
	defer e.registryM.Unlock()
	delete(e.registry, sessionID)
}

func killProcessGroup(pid int) {
	if pid <= 0 {
		return
	}
	_ = syscall.Kill(-pid, syscall.SIGKILL)
}

func validateRunSpec(runSpec spec.RunSpec) error {
	if runSpec.SessionID == "" {
		return fmt.Errorf("session id is required")
	}
	if runSpec.WorkDir == "" {
		return fmt.Errorf("work dir is required")
	}
	if len(runSpec.Cmd) == 0 {
		return fmt.Errorf("command is required")
	}
	if runSpec.Policy.Limits.WallTimeSec == 0 {
		return fmt.Errorf("wall time limit is required")
	}
	return nil
}

func jsonToPipe(req InitRequest) (io.ReadCloser, error) {
	reader, writer := io.Pipe()
	go func() {
		enc := json.NewEncoder(writer)
		err := enc.Encode(req)
		_ = writer.CloseWithError(err)
	}()
	return reader, nil
}

func buildSysProcAttr(enableNamespaces bool) *syscall.SysProcAttr {
	attr := &syscall.SysProcAttr{
		Setpgid:   true,
		Pdeathsig: syscall.SIGKILL,
	}
	if !enableNamespaces {
		return attr
	}
	// A fresh network namespace with no interfaces is the authoritative
	// network denial; the user namespace makes it available unprivileged.
	attr.Cloneflags = uintptr(syscall.CLONE_NEWUSER |
		syscall.CLONE_NEWNET |
		syscall.CLONE_NEWNS |
		syscall.CLONE_NEWPID |
		syscall.CLONE_NEWIPC |
		syscall.CLONE_NEWUTS)
	attr.GidMappingsEnableSetgroups = false
	attr.UidMappings = []syscall.SysProcIDMap{{
		ContainerID: os.Getuid(),
		HostID:      os.Getuid(),
		Size:        1,
	}}
	attr.GidMappings = []syscall.SysProcIDMap{{
		ContainerID: os.Getgid(),
		HostID:      os.Getgid(),
		Size:        1,
	}}
	return attr
}
