package notifier

import (
	"context"

	"go.uber.org/zap"
)

// LogSender writes messages to the log instead of delivering them. It stands in for the real
// senders in local development.
type LogSender struct {
	log *zap.Logger
}

func NewLogSender(log *zap.Logger) *LogSender {
	return &LogSender{log: log}
}

func (s *LogSender) Name() string { return "log" }

func (s *LogSender) Send(_ context.Context, to Recipient, text string) error {
	s.log.Info("notification", zap.String("user_id", to.UserID), zap.String("name", to.Name), zap.String("text", text))
	return nil
}

func (s *LogSender) Post(_ context.Context, text string) error {
	s.log.Info("staff notification", zap.String("text", text))
	return nil
}
