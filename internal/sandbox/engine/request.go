package engine

import "sandrun/internal/sandbox/spec"

// InitRequest is the typed payload the supervisor streams to the harness
// over stdin. Policy values never pass through generated source text.
type InitRequest struct {
	RunSpec       spec.RunSpec
	EnableSeccomp bool
	// NetworkNamespaced records whether the supervisor already placed the
	// child in a fresh network namespace. The harness applies its seccomp
	// filter either way.
	NetworkNamespaced bool
}

// ExecRequest is the reduced payload the harness guard stage hands to its
// exec stage, which applies the address-space ceiling at the last instant
// and then replaces itself with the interpreter.
type ExecRequest struct {
	Cmd      []string
	Env      []string
	MemoryMB uint
}
