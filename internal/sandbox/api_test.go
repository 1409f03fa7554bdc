package sandbox_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"sandrun/internal/sandbox"
	"sandrun/internal/sandbox/result"
	"sandrun/internal/sandbox/spec"
)

// fakeEngine records run specs and can observe the workspace while the
// session is live.
type fakeEngine struct {
	outcome result.RawOutcome
	err     error

	runSpecs    []spec.RunSpec
	sourceSeen  []byte
	killedIDs   []string
	workDirLive bool
}

func (f *fakeEngine) Run(ctx context.Context, runSpec spec.RunSpec) (result.RawOutcome, error) {
	f.runSpecs = append(f.runSpecs, runSpec)
	if info, statErr := os.Stat(runSpec.WorkDir); statErr == nil && info.IsDir() {
		f.workDirLive = true
	}
	if len(runSpec.Cmd) > 0 {
		if data, readErr := os.ReadFile(runSpec.Cmd[len(runSpec.Cmd)-1]); readErr == nil {
			f.sourceSeen = data
		}
	}
	return f.outcome, f.err
}

func (f *fakeEngine) Kill(ctx context.Context, sessionID string) error {
	f.killedIDs = append(f.killedIDs, sessionID)
	return nil
}

func TestRunCodeSuccess(t *testing.T) {
	eng := &fakeEngine{outcome: result.RawOutcome{ExitCode: 0, Stdout: "hello\n", WallTimeMs: 12}}
	svc := sandbox.NewService(eng, t.TempDir())

	res := svc.RunCode(context.Background(), "print('hello')", sandbox.Options{})
	if res.Status != result.StatusSuccess {
		t.Fatalf("status: got %q, stderr %q", res.Status, res.Stderr)
	}
	if res.Stdout != "hello\n" {
		t.Fatalf("stdout: got %q", res.Stdout)
	}
	if len(eng.runSpecs) != 1 {
		t.Fatalf("expected one engine run, got %d", len(eng.runSpecs))
	}

	runSpec := eng.runSpecs[0]
	if !eng.workDirLive {
		t.Fatal("working directory did not exist while the session ran")
	}
	if string(eng.sourceSeen) != "print('hello')" {
		t.Fatalf("user source not written: %q", eng.sourceSeen)
	}
	if _, err := os.Stat(runSpec.WorkDir); !os.IsNotExist(err) {
		t.Fatalf("working directory survived cleanup: %v", err)
	}

	found := false
	for _, entry := range runSpec.Policy.FSAllowlist {
		if entry == runSpec.WorkDir {
			found = true
		}
	}
	if !found {
		t.Fatalf("workdir missing from allowlist: %v", runSpec.Policy.FSAllowlist)
	}
}

func TestRunCodeCleansUpOnEngineError(t *testing.T) {
	eng := &fakeEngine{err: errors.New("start harness: executable not found")}
	svc := sandbox.NewService(eng, t.TempDir())

	res := svc.RunCode(context.Background(), "print(1)", sandbox.Options{})
	if res.Status != result.StatusError {
		t.Fatalf("status: got %q", res.Status)
	}
	if res.ErrorReason != result.ReasonSupervisorFailure {
		t.Fatalf("reason: got %q", res.ErrorReason)
	}
	if len(eng.runSpecs) != 1 {
		t.Fatalf("expected one engine run, got %d", len(eng.runSpecs))
	}
	if _, err := os.Stat(eng.runSpecs[0].WorkDir); !os.IsNotExist(err) {
		t.Fatalf("working directory survived failed session: %v", err)
	}
}

func TestRunCodeUnknownProfile(t *testing.T) {
	eng := &fakeEngine{}
	svc := sandbox.NewService(eng, t.TempDir())

	res := svc.RunCode(context.Background(), "print(1)", sandbox.Options{Profile: "cobol"})
	if res.ErrorReason != result.ReasonSupervisorFailure {
		t.Fatalf("reason: got %q", res.ErrorReason)
	}
	if len(eng.runSpecs) != 0 {
		t.Fatal("engine must not run for an unknown profile")
	}
}

func TestRunCodePolicySnapshotReflectsClamping(t *testing.T) {
	eng := &fakeEngine{outcome: result.RawOutcome{ExitCode: 0}}
	svc := sandbox.NewService(eng, t.TempDir())

	timeLimit := uint(2)
	cpuLimit := uint(30)
	memLimit := uint(1)
	res := svc.RunCode(context.Background(), "pass", sandbox.Options{
		TimeLimitSec: &timeLimit,
		CPULimitSec:  &cpuLimit,
		MemLimitMB:   &memLimit,
	})

	if res.Policy.Limits.TimeSec != 2 {
		t.Fatalf("time_sec: got %d", res.Policy.Limits.TimeSec)
	}
	if res.Policy.Limits.CPUSec != 2 {
		t.Fatalf("cpu_sec not clamped to wall clock: got %d", res.Policy.Limits.CPUSec)
	}
	if res.Policy.Limits.MemMB != 16 {
		t.Fatalf("mem_mb not floored: got %d", res.Policy.Limits.MemMB)
	}
	if res.Policy.Network != "denied" {
		t.Fatalf("network: got %q", res.Policy.Network)
	}
}

// Identical (code, policy) runs must yield identical exit code and stdout.
func TestRunCodeIdempotence(t *testing.T) {
	eng := &fakeEngine{outcome: result.RawOutcome{ExitCode: 3, Stdout: "partial", Stderr: "IndexError"}}
	svc := sandbox.NewService(eng, t.TempDir())

	first := svc.RunCode(context.Background(), "code", sandbox.Options{})
	second := svc.RunCode(context.Background(), "code", sandbox.Options{})
	if first.ExitCode != second.ExitCode || first.Stdout != second.Stdout {
		t.Fatalf("runs diverged: %+v vs %+v", first, second)
	}
}

func TestKillDelegatesToEngine(t *testing.T) {
	eng := &fakeEngine{}
	svc := sandbox.NewService(eng, t.TempDir())
	if err := svc.Kill(context.Background(), "sess-1"); err != nil {
		t.Fatalf("kill: %v", err)
	}
	if len(eng.killedIDs) != 1 || eng.killedIDs[0] != "sess-1" {
		t.Fatalf("kill not delegated: %v", eng.killedIDs)
	}
}

func TestRunCodeCallerSessionID(t *testing.T) {
	eng := &fakeEngine{outcome: result.RawOutcome{ExitCode: 0}}
	svc := sandbox.NewService(eng, t.TempDir())

	svc.RunCode(context.Background(), "pass", sandbox.Options{SessionID: "caller-named"})
	if eng.runSpecs[0].SessionID != "caller-named" {
		t.Fatalf("session id: got %q", eng.runSpecs[0].SessionID)
	}
}
