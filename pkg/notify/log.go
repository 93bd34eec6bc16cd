package notify

import (
	"context"

	"go.uber.org/zap"
)

// LogDispatcher records messages in the structured log instead of delivering them.
// It stands in for an SMS gateway, so phone numbers are preferred over email.
type LogDispatcher struct {
	logger *zap.Logger
}

// NewLogDispatcher constructs a log-backed dispatcher.
func NewLogDispatcher(logger *zap.Logger) *LogDispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogDispatcher{logger: logger.Named("notify")}
}

// Channel implements Dispatcher.
func (d *LogDispatcher) Channel() string { return "log" }

// Address implements Dispatcher.
func (d *LogDispatcher) Address(r Recipient) (string, bool) {
	addr := firstNonEmpty(r.Phone, r.Email)
	return addr, addr != ""
}

// Send implements Dispatcher.
func (d *LogDispatcher) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	addr, ok := d.Address(msg.To)
	if !ok {
		return ErrNoAddress
	}
	d.logger.Info("guardian notification",
		zap.String("to", addr),
		zap.String("guardian", msg.To.Name),
		zap.String("reference", msg.Reference),
		zap.String("subject", msg.Subject),
		zap.String("body", msg.Body),
	)
	return nil
}
