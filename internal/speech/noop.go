package speech

import (
	"context"
	"log/slog"
)

// Compile-time interface checks.
var (
	_ Engine = (*NoOpEngine)(nil)
	_ Engine = (*CommandEngine)(nil)
	_ Engine = (*OpenAIEngine)(nil)
)

// NoOpEngine logs the text instead of speaking it. Used when voice is disabled.
type NoOpEngine struct {
	logger *slog.Logger
}

// NewNoOpEngine creates a silent engine
func NewNoOpEngine(logger *slog.Logger) *NoOpEngine {
	return &NoOpEngine{logger: logger}
}

// Name identifies the engine in logs
func (n *NoOpEngine) Name() string {
	return "none"
}

// Say returns immediately
func (n *NoOpEngine) Say(ctx context.Context, text string) error {
	n.logger.Debug("speech disabled, would say", "text", text)
	return nil
}
