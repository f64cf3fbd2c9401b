package lifecycle

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/Wunderbyte-GmbH/moodle-auth-campusconnect/pkg/accounts"
)

// Message is one notification mail.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Notifier delivers lifecycle notifications.
type Notifier interface {
	Send(ctx context.Context, msg Message) error
}

// SMTPNotifier delivers notifications over plain SMTP.
type SMTPNotifier struct {
	addr string
	from string
}

// NewSMTPNotifier creates a notifier sending through the given SMTP
// server address ("host:port").
func NewSMTPNotifier(addr, from string) *SMTPNotifier {
	return &SMTPNotifier{addr: addr, from: from}
}

var _ Notifier = (*SMTPNotifier)(nil)

func (n *SMTPNotifier) Send(ctx context.Context, msg Message) error {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", n.from)
	fmt.Fprintf(&b, "To: %s\r\n", msg.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", msg.Subject)
	b.WriteString("\r\n")
	b.WriteString(msg.Body)
	b.WriteString("\r\n")

	if err := smtp.SendMail(n.addr, nil, n.from, []string{msg.To}, []byte(b.String())); err != nil {
		return fmt.Errorf("failed to send mail to %s: %w", msg.To, err)
	}
	return nil
}

// Events publishes account change notifications for interested consumers,
// for example to invalidate caches or feed an audit trail.
type Events interface {
	AccountUpdated(ctx context.Context, username, reason string) error
}

// StoreEvents records account updates in the account event log.
type StoreEvents struct {
	store accounts.Store
}

// NewStoreEvents creates an Events sink backed by the account store.
func NewStoreEvents(store accounts.Store) *StoreEvents {
	return &StoreEvents{store: store}
}

func (e *StoreEvents) AccountUpdated(ctx context.Context, username, reason string) error {
	return e.store.LogEvent(ctx, username, reason)
}
