// Package mailer delivers plain-text account emails: verification links,
// password reset links and second-factor codes.
package mailer

import (
	"context"
	"time"

	"github.com/dmitrijs2005/cryptofolio-auth/internal/logging"
)

// Message is one outgoing email. Body may contain secrets and is never logged.
type Message struct {
	From      string    `json:"from"`
	To        string    `json:"to"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
	Kind      string    `json:"kind"`
	CreatedAt time.Time `json:"createdAt"`
}

type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// LogSender is the development sender: it records that a message was sent
// but not what it said.
type LogSender struct {
	logger logging.Logger
}

func NewLogSender(logger logging.Logger) *LogSender {
	return &LogSender{logger: logger.With("module", "mailer")}
}

func (s *LogSender) Send(ctx context.Context, msg Message) error {
	s.logger.Info(ctx, "email queued", "to", msg.To, "subject", msg.Subject, "kind", msg.Kind)
	return nil
}
