package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/danielolaszy/onboard/internal/config"
	"github.com/danielolaszy/onboard/internal/secret"
	"github.com/wneessen/go-mail"
)

const smtpTimeout = 30 * time.Second

// Message is one outgoing HTML email.
type Message struct {
	From    string
	To      string
	Subject string
	HTML    string
}

// Mailer delivers messages with the given relay credentials.
type Mailer interface {
	Send(ctx context.Context, creds secret.Credentials, msg Message) error
}

// SMTPMailer sends through an authenticated SMTP relay. The session is
// always encrypted: implicit TLS when SSL is set, mandatory STARTTLS otherwise.
type SMTPMailer struct {
	Host string
	Port int
	SSL  bool
}

// NewSMTPMailer creates a mailer from configuration.
func NewSMTPMailer(cfg config.MailConfig) *SMTPMailer {
	return &SMTPMailer{Host: cfg.Host, Port: cfg.Port, SSL: cfg.SSL}
}

// Send dials the relay, authenticates and sends msg.
func (s *SMTPMailer) Send(ctx context.Context, creds secret.Credentials, msg Message) error {
	m := mail.NewMsg()
	if err := m.From(msg.From); err != nil {
		return fmt.Errorf("invalid sender %q: %w", msg.From, err)
	}
	if err := m.To(msg.To); err != nil {
		return fmt.Errorf("invalid recipient %q: %w", msg.To, err)
	}
	m.Subject(msg.Subject)
	m.SetBodyString(mail.TypeTextHTML, msg.HTML)

	opts := []mail.Option{
		mail.WithPort(s.Port),
		mail.WithSMTPAuth(mail.SMTPAuthLogin),
		mail.WithUsername(creds.Username),
		mail.WithPassword(creds.Password),
		mail.WithTimeout(smtpTimeout),
	}
	if s.SSL {
		opts = append(opts, mail.WithSSL())
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	}

	c, err := mail.NewClient(s.Host, opts...)
	if err != nil {
		return fmt.Errorf("failed to create mail client: %w", err)
	}
	if err := c.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("failed to send mail: %w", err)
	}
	return nil
}
