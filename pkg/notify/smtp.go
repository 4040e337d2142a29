package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/wneessen/go-mail"
)

// SMTPConfig configures SMTPMailer.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPMailer sends mail through an SMTP relay.
type SMTPMailer struct {
	cfg  SMTPConfig
	send func(ctx context.Context, msg *mail.Msg) error
	now  func() time.Time
}

// NewSMTPMailer creates a mailer. Authentication is PLAIN when a username is
// set; STARTTLS is used when the relay offers it.
func NewSMTPMailer(cfg SMTPConfig) *SMTPMailer {
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	m := &SMTPMailer{cfg: cfg, now: time.Now}
	m.send = m.dialAndSend
	return m
}

// Send implements Mailer.
func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	out, err := m.compose(msg)
	if err != nil {
		return err
	}
	if err := m.send(ctx, out); err != nil {
		return fmt.Errorf("failed to send mail via %s:%d: %w", m.cfg.Host, m.cfg.Port, err)
	}
	return nil
}

// compose builds the message. Headers are RFC 2047 encoded when needed.
func (m *SMTPMailer) compose(msg Message) (*mail.Msg, error) {
	out := mail.NewMsg()
	if err := out.From(m.cfg.From); err != nil {
		return nil, fmt.Errorf("invalid sender %q: %w", m.cfg.From, err)
	}
	if err := out.To(msg.To); err != nil {
		return nil, fmt.Errorf("invalid recipient %q: %w", msg.To, err)
	}
	out.Subject(msg.Subject)
	out.SetDateWithValue(m.now())
	out.SetBodyString(mail.TypeTextPlain, msg.Body)
	return out, nil
}

func (m *SMTPMailer) dialAndSend(ctx context.Context, msg *mail.Msg) error {
	opts := []mail.Option{
		mail.WithPort(m.cfg.Port),
		mail.WithTLSPortPolicy(mail.TLSOpportunistic),
	}
	if m.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(m.cfg.Username),
			mail.WithPassword(m.cfg.Password),
		)
	}
	client, err := mail.NewClient(m.cfg.Host, opts...)
	if err != nil {
		return fmt.Errorf("failed to create smtp client: %w", err)
	}
	return client.DialAndSendWithContext(ctx, msg)
}
