package twofactor

import (
	"context"
	"log/slog"
	"time"
)

// LogSender writes codes to the log. It stands in for a mail provider in
// development.
type LogSender struct {
	logger *slog.Logger
}

func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (l *LogSender) Send(_ context.Context, email, code string, expiresAt time.Time) error {
	l.logger.Info("verification code", "email", email, "code", code, "expires_at", expiresAt)
	return nil
}
