// Package mail hands transactional emails to a delivery backend.
package mail

import (
	"context"
	"fmt"
	"log/slog"

	apperrors "github.com/ploop3/Natours/pkg/errors"
)

// Kind identifies which email template the delivery backend renders.
type Kind string

const (
	KindWelcome       Kind = "welcome"
	KindPasswordReset Kind = "password-reset"
)

// Subject returns the subject line for k.
func (k Kind) Subject() string {
	switch k {
	case KindWelcome:
		return "Welcome to the Natours Family!"
	case KindPasswordReset:
		return "Your password reset token (valid for only 10 minutes)"
	default:
		return string(k)
	}
}

// Message is one email to deliver.
type Message struct {
	Kind Kind
	To   string
	Name string
	URL  string
}

// Sender delivers messages. Failures wrap ErrDeliveryFailed.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// ErrDeliveryFailed is returned when a message could not be handed off.
var ErrDeliveryFailed = apperrors.ErrDeliveryFailed

func deliveryFailed(err error) error {
	return fmt.Errorf("%w: %w", ErrDeliveryFailed, err)
}

// LogSender writes messages to the log instead of delivering them. It is
// meant for development.
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender creates a LogSender.
func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

// Send logs msg and always succeeds.
func (s *LogSender) Send(ctx context.Context, msg Message) error {
	s.logger.InfoContext(ctx, "email sent",
		slog.String("kind", string(msg.Kind)),
		slog.String("to", msg.To),
		slog.String("subject", msg.Kind.Subject()),
		slog.String("url", msg.URL),
	)
	return nil
}
