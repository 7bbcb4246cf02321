package notify

import (
	"context"

	"github.com/dmitrijs2005/gophauth/internal/logging"
)

// LogSender writes mails to the log instead of delivering them. Intended for
// development; the logged link contains a live token.
type LogSender struct {
	log logging.Logger
}

func NewLogSender(log logging.Logger) *LogSender {
	return &LogSender{log: log}
}

func (s *LogSender) Send(ctx context.Context, m Message) error {
	s.log.Info(ctx, "email not delivered, mail provider disabled",
		"to", m.To, "subject", m.Subject, "tag", m.Tag, "link", m.Link)
	return nil
}
