// Package notify delivers rendered guardian notifications over a configured channel.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/notebook-tracker-api/pkg/config"
)

// ErrNoAddress is returned when a recipient has no contact for the dispatcher's channel.
var ErrNoAddress = errors.New("recipient has no address for channel")

// Recipient identifies a guardian and their known contacts.
type Recipient struct {
	Name  string
	Phone string
	Email string
}

// Message is one rendered notification.
type Message struct {
	To      Recipient
	Subject string
	Body    string
	// Reference ties the delivery back to a submission in logs.
	Reference string
}

// Dispatcher sends messages over a single channel.
type Dispatcher interface {
	Channel() string
	// Address returns the contact used for r on this channel.
	Address(r Recipient) (string, bool)
	Send(ctx context.Context, msg Message) error
}

// New builds the dispatcher selected by cfg.Channel.
func New(cfg config.NotifyConfig, smtp config.SMTPConfig, logger *zap.Logger) (Dispatcher, error) {
	switch cfg.Channel {
	case config.NotifyChannelLog, "":
		return NewLogDispatcher(logger), nil
	case config.NotifyChannelSMTP:
		return NewSMTPDispatcher(smtp, logger), nil
	default:
		return nil, fmt.Errorf("unsupported notification channel %q", cfg.Channel)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
