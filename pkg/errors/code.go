package errors

// ErrorCode represents a unique error identifier
type ErrorCode int

// Error code ranges allocation:
// 10000-10999: System & Common errors
// 20000-20999: Policy errors
// 21000-21999: Workspace errors
// 22000-22999: Supervisor & engine errors
// 23000-23999: Harness errors

const (
	// ========== System & Common Errors (10000-10999) ==========

	Success ErrorCode = 10000

	InternalError      ErrorCode = 10001
	InvalidParams      ErrorCode = 10002
	NotFound           ErrorCode = 10003
	ServiceUnavailable ErrorCode = 10004
	Timeout            ErrorCode = 10005

	// ========== Policy Errors (20000-20999) ==========

	PolicyPathInvalid  ErrorCode = 20000
	ProfileNotFound    ErrorCode = 20001
	CommandParseFailed ErrorCode = 20002

	// ========== Workspace Errors (21000-21999) ==========

	WorkspaceCreateFailed   ErrorCode = 21000
	WorkspacePopulateFailed ErrorCode = 21001
	WorkspaceCleanupFailed  ErrorCode = 21002

	// ========== Supervisor & Engine Errors (22000-22999) ==========

	EngineSpawnFailed  ErrorCode = 22000
	EngineUnsupported  ErrorCode = 22001
	CgroupSetupFailed  ErrorCode = 22002
	SessionNotFound    ErrorCode = 22003
	ExternalKillFailed ErrorCode = 22004

	// ========== Harness Errors (23000-23999) ==========

	HarnessDecodeFailed ErrorCode = 23000
	RlimitSetupFailed   ErrorCode = 23001
	SeccompSetupFailed  ErrorCode = 23002
	LandlockSetupFailed ErrorCode = 23003
)

// errorMessages maps error codes to their default English messages
var errorMessages = map[ErrorCode]string{
	Success:            "Success",
	InternalError:      "Internal error",
	InvalidParams:      "Invalid parameters",
	NotFound:           "Resource not found",
	ServiceUnavailable: "Service temporarily unavailable",
	Timeout:            "Operation timed out",

	PolicyPathInvalid:  "Allowlist path could not be resolved",
	ProfileNotFound:    "Runtime profile not found",
	CommandParseFailed: "Failed to parse command template",

	WorkspaceCreateFailed:   "Failed to create session workspace",
	WorkspacePopulateFailed: "Failed to populate session workspace",
	WorkspaceCleanupFailed:  "Failed to clean up session workspace",

	EngineSpawnFailed:  "Failed to spawn sandbox child process",
	EngineUnsupported:  "Sandbox engine not supported on this platform",
	CgroupSetupFailed:  "Failed to set up cgroup limits",
	SessionNotFound:    "Session not found",
	ExternalKillFailed: "Failed to kill session process group",

	HarnessDecodeFailed: "Failed to decode harness init request",
	RlimitSetupFailed:   "Failed to apply resource limits",
	SeccompSetupFailed:  "Failed to install seccomp filter",
	LandlockSetupFailed: "Failed to install filesystem ruleset",
}

// Message returns the default message for the error code
func (c ErrorCode) Message() string {
	if msg, ok := errorMessages[c]; ok {
		return msg
	}
	return "Unknown error"
}
