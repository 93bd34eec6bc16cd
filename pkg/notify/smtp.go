package notify

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	mail "github.com/go-mail/mail/v2"
	"go.uber.org/zap"

	"github.com/noah-isme/notebook-tracker-api/pkg/config"
)

type mailSender interface {
	DialAndSend(m ...*mail.Message) error
}

// SMTPDispatcher delivers notifications to the guardian's email address.
type SMTPDispatcher struct {
	from   string
	sender mailSender
	logger *zap.Logger
}

// NewSMTPDispatcher configures a mandatory STARTTLS dialer for cfg.
func NewSMTPDispatcher(cfg config.SMTPConfig, logger *zap.Logger) *SMTPDispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	d := mail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Password)
	d.StartTLSPolicy = mail.MandatoryStartTLS
	d.TLSConfig = &tls.Config{
		ServerName:         cfg.Host,
		InsecureSkipVerify: cfg.SkipTLSVerify, //nolint:gosec // opt-in for local relays
	}
	d.Timeout = 15 * time.Second

	return &SMTPDispatcher{from: cfg.From, sender: d, logger: logger.Named("notify.smtp")}
}

// Channel implements Dispatcher.
func (d *SMTPDispatcher) Channel() string { return "smtp" }

// Address implements Dispatcher.
func (d *SMTPDispatcher) Address(r Recipient) (string, bool) {
	addr := firstNonEmpty(r.Email)
	return addr, addr != ""
}

// Send implements Dispatcher.
func (d *SMTPDispatcher) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	addr, ok := d.Address(msg.To)
	if !ok {
		return ErrNoAddress
	}

	m := mail.NewMessage()
	m.SetHeader("From", d.from)
	if msg.To.Name != "" {
		m.SetAddressHeader("To", addr, msg.To.Name)
	} else {
		m.SetHeader("To", addr)
	}
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/plain", msg.Body)

	if err := d.sender.DialAndSend(m); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	d.logger.Debug("guardian email sent", zap.String("to", addr), zap.String("reference", msg.Reference))
	return nil
}
