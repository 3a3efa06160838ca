package notify

import (
	"context"

	"go.uber.org/zap"
)

// LogSender writes mail to the log. Used when no mail provider is configured.
type LogSender struct {
	log *zap.Logger
}

func NewLogSender(log *zap.Logger) *LogSender {
	return &LogSender{log: log}
}

func (s *LogSender) SendEmail(_ context.Context, to, subject, body string) error {
	s.log.Info("mail", zap.String("to", to), zap.String("subject", subject), zap.String("body", body))
	return nil
}
