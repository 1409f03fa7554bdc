// Package observer defines logging and metrics hooks for sandbox execution.
package observer

import (
	"context"

	"go.uber.org/zap"

	"sandrun/pkg/utils/logger"
)

// MetricsRecorder records per-session execution metrics.
type MetricsRecorder interface {
	ObserveRun(ctx context.Context, profileID, status string, timeMs, memoryKB int64)
}

// NoopMetricsRecorder discards all observations.
type NoopMetricsRecorder struct{}

func (NoopMetricsRecorder) ObserveRun(context.Context, string, string, int64, int64) {}

// LogMetricsRecorder emits observations through the structured logger.
type LogMetricsRecorder struct{}

func (LogMetricsRecorder) ObserveRun(ctx context.Context, profileID, status string, timeMs, memoryKB int64) {
	logger.Info(ctx, "sandbox run",
		zap.String("profile", profileID),
		zap.String("status", status),
		zap.Int64("time_ms", timeMs),
		zap.Int64("memory_kb", memoryKB),
	)
}
