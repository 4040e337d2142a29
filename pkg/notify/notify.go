// Package notify implements thread subscriptions and reply notifications.
//
// A thread is the set of replies to one parent entry. Submitters opt in with
// options.subscribe; when a reply lands on the thread (directly, or when its
// review request is merged) every subscriber receives a mail.
package notify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"slices"
	"text/template"

	"github.com/eduardoboucas/jekyll-discuss/pkg/core"
)

// Message is one outgoing mail.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Mailer delivers messages.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// MailerFunc adapts a function to Mailer.
type MailerFunc func(ctx context.Context, msg Message) error

// Send implements Mailer.
func (f MailerFunc) Send(ctx context.Context, msg Message) error { return f(ctx, msg) }

const defaultSubject = `New reply on {{ .SiteName }}`

const defaultBody = `Hello,

Someone replied to a thread you subscribed to on {{ .SiteName }}.
{{ range .Fields }}
{{ .Name }}: {{ .Value }}
{{- end }}
{{ with .Origin }}
See it at {{ . }}
{{ end }}
You are receiving this because you subscribed to replies.
`

// Service implements core.Notifier.
type Service struct {
	store   SubscriberStore
	mailer  Mailer
	logger  *slog.Logger
	subject *template.Template
	body    *template.Template
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithTemplates overrides the subject and body templates. They are executed
// with a mailData value.
func WithTemplates(subject, body *template.Template) Option {
	return func(s *Service) {
		if subject != nil {
			s.subject = subject
		}
		if body != nil {
			s.body = body
		}
	}
}

// New creates a notification service.
func New(store SubscriberStore, mailer Mailer, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("subscriber store is required")
	}
	if mailer == nil {
		return nil, errors.New("mailer is required")
	}
	s := &Service{
		store:   store,
		mailer:  mailer,
		subject: template.Must(template.New("subject").Parse(defaultSubject)),
		body:    template.Must(template.New("body").Parse(defaultBody)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Subscribe adds address to the thread. Malformed addresses are rejected.
func (s *Service) Subscribe(ctx context.Context, threadID, address string) error {
	parsed, err := mail.ParseAddress(address)
	if err != nil {
		return fmt.Errorf("invalid subscriber address %q: %w", address, err)
	}
	added, err := s.store.Add(ctx, threadID, parsed.Address)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", threadID, err)
	}
	if s.logger != nil && added {
		s.logger.Debug("subscribed", "thread", threadID)
	}
	return nil
}

// Notify mails every subscriber of the thread. Delivery continues past
// individual failures; all of them are returned joined.
func (s *Service) Notify(ctx context.Context, n core.Notification) error {
	members, err := s.store.Members(ctx, n.ThreadID)
	if err != nil {
		return fmt.Errorf("failed to list subscribers of %s: %w", n.ThreadID, err)
	}
	if len(members) == 0 {
		return nil
	}

	subject, body, err := s.render(n)
	if err != nil {
		return err
	}

	var errs []error
	for _, to := range members {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if err := s.mailer.Send(ctx, Message{To: to, Subject: subject, Body: body}); err != nil {
			errs = append(errs, fmt.Errorf("failed to notify %s: %w", to, err))
		}
	}
	if s.logger != nil {
		s.logger.Debug("notified thread", "thread", n.ThreadID, "subscribers", len(members), "failures", len(errs))
	}
	return errors.Join(errs...)
}

type mailField struct {
	Name  string
	Value string
}

type mailData struct {
	SiteName string
	Origin   string
	Fields   []mailField
}

func (s *Service) render(n core.Notification) (string, string, error) {
	data := mailData{SiteName: n.SiteName, Origin: n.Options.Origin()}
	if data.SiteName == "" {
		data.SiteName = "your site"
	}
	for _, name := range sortedKeys(n.Fields) {
		data.Fields = append(data.Fields, mailField{Name: name, Value: fmt.Sprint(n.Fields[name])})
	}

	var subject, body bytes.Buffer
	if err := s.subject.Execute(&subject, data); err != nil {
		return "", "", fmt.Errorf("failed to render subject: %w", err)
	}
	if err := s.body.Execute(&body, data); err != nil {
		return "", "", fmt.Errorf("failed to render body: %w", err)
	}
	return subject.String(), body.String(), nil
}

func sortedKeys(f core.Fields) []string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

var _ core.Notifier = (*Service)(nil)
