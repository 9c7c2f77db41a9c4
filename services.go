package nodeflow

import (
	"context"
	"log/slog"
)

// LiveOutput lets executors surface values to an external observer such as
// an editor canvas while a run is in progress.
type LiveOutput interface {
	RecordLiveOutput(ctx context.Context, nodeID string, value any)
}

// LiveOutputFunc adapts a function to LiveOutput.
type LiveOutputFunc func(ctx context.Context, nodeID string, value any)

func (f LiveOutputFunc) RecordLiveOutput(ctx context.Context, nodeID string, value any) {
	f(ctx, nodeID, value)
}

// Services is the capability bag handed unchanged to every executor.
type Services struct {
	// Logger receives executor diagnostics. Nil means slog.Default().
	Logger *slog.Logger
	// Log is an optional hook for plain messages.
	Log func(message, nodeID string)
	// Live receives live output values. Nil drops them.
	Live LiveOutput
}

// LogMessage forwards to the Log hook and the logger.
func (s Services) LogMessage(message, nodeID string) {
	if s.Log != nil {
		s.Log(message, nodeID)
	}
	s.logger().Debug(message, "node", nodeID)
}

// RecordLiveOutput publishes value for nodeID to the live-output observer.
func (s Services) RecordLiveOutput(ctx context.Context, nodeID string, value any) {
	if s.Live == nil {
		return
	}
	s.Live.RecordLiveOutput(ctx, nodeID, value)
}

func (s Services) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

// SlogLogger returns the configured logger or slog.Default().
func (s Services) SlogLogger() *slog.Logger {
	return s.logger()
}
