package sandbox

import (
	"sandrun/internal/sandbox/result"
	"sandrun/internal/sandbox/spec"
)

// SessionState tracks one session through its lifecycle:
// Created -> Populated -> Running -> {Completed, TimedOut, Failed} -> Cleaned.
// Terminal states are mutually exclusive and always followed by cleanup.
type SessionState string

const (
	StateCreated   SessionState = "Created"
	StatePopulated SessionState = "Populated"
	StateRunning   SessionState = "Running"
	StateCompleted SessionState = "Completed"
	StateTimedOut  SessionState = "TimedOut"
	StateFailed    SessionState = "Failed"
	StateCleaned   SessionState = "Cleaned"
)

// SandboxSession is one bounded, isolated attempt to execute untrusted
// code. It exclusively owns its working directory until cleanup.
type SandboxSession struct {
	ID      string
	WorkDir string
	Policy  spec.ExecutionPolicy
	State   SessionState
}

func terminalStateFor(res result.ExecutionResult) SessionState {
	switch {
	case res.Status == result.StatusSuccess:
		return StateCompleted
	case res.ErrorReason == result.ReasonTimeout:
		return StateTimedOut
	default:
		return StateFailed
	}
}
