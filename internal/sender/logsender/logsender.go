// Package logsender is the sender used when no chat is configured: messages
// are written to the log and always succeed.
package logsender

import (
	"context"
	"log/slog"
)

// Sender logs messages instead of delivering them.
type Sender struct {
	logger *slog.Logger
}

// New creates a log-only sender.
func New(logger *slog.Logger) *Sender {
	return &Sender{logger: logger}
}

// Name implements sender.Sender.
func (s *Sender) Name() string {
	return "log"
}

// Send implements sender.Sender.
func (s *Sender) Send(ctx context.Context, text string) error {
	s.logger.InfoContext(ctx, "chat delivery disabled, message logged",
		slog.Int("length", len(text)),
		slog.String("text", text),
	)
	return nil
}
