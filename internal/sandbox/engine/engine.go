package engine

import (
	"context"

	"sandrun/internal/sandbox/result"
	"sandrun/internal/sandbox/spec"
)

// Engine supervises exactly one harness process per Run call. Concurrent
// sessions are independent OS processes with no shared mutable state
// beyond the kill registry.
type Engine interface {
	Run(ctx context.Context, runSpec spec.RunSpec) (result.RawOutcome, error)
	Kill(ctx context.Context, sessionID string) error
}
