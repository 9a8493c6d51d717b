package otp

import (
	"context"

	"github.com/rs/zerolog"
)

// LogSender writes codes to the log instead of an SMS gateway. It is the
// delivery channel for local runs; production deployments plug in a real
// Sender.
type LogSender struct {
	logger *zerolog.Logger
}

func NewLogSender(logger *zerolog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) SendCode(_ context.Context, phone, code string) error {
	s.logger.Info().Str("phone", phone).Str("code", code).Msg("otp code issued")
	return nil
}
