//go:build !linux

package engine

import (
	"context"
	"fmt"

	"sandrun/internal/sandbox/result"
	"sandrun/internal/sandbox/spec"
)

// Linux is the primary enforcement target. Other platforms get a stub that
// fails every run instead of silently skipping enforcement.
type stubEngine struct{}

func NewEngine(cfg Config) (Engine, error) {
	return &stubEngine{}, nil
}

func (s *stubEngine) Run(ctx context.Context, runSpec spec.RunSpec) (result.RawOutcome, error) {
	return result.RawOutcome{}, fmt.Errorf("sandbox engine is only supported on linux")
}

func (s *stubEngine) Kill(ctx context.Context, sessionID string) error {
	return fmt.Errorf("sandbox engine is only supported on linux")
}
