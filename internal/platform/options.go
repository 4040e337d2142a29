package platform

import (
	"log/slog"

	"github.com/eduardoboucas/jekyll-discuss/pkg/core"
	"github.com/eduardoboucas/jekyll-discuss/pkg/entry"
	"github.com/eduardoboucas/jekyll-discuss/pkg/notify"
)

// options holds the overrides applied on top of a Config.
type options struct {
	logger     *slog.Logger
	connectors map[string]core.Connector
	store      notify.SubscriberStore
	mailer     notify.Mailer
	spam       core.SpamChecker
	captcha    core.CaptchaVerifier
	entry      []entry.Option
}

// Option defines a functional option for configuring the platform.
type Option func(*options)

func defaultOptions() *options {
	return &options{
		connectors: make(map[string]core.Connector),
	}
}

// WithLogger sets the logger shared by every component.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithConnector registers a connector for a service name (github, gitlab, fs
// or anything else a request may name). It takes precedence over the one the
// Config would build.
func WithConnector(service string, c core.Connector) Option {
	return func(o *options) {
		o.connectors[service] = c
	}
}

// WithSubscriberStore replaces the store picked from the Config
// (Redis when redis.addr is set, in-memory otherwise).
func WithSubscriberStore(s notify.SubscriberStore) Option {
	return func(o *options) {
		o.store = s
	}
}

// WithMailer replaces the SMTP mailer. Notifications are enabled whenever a
// mailer is available.
func WithMailer(m notify.Mailer) Option {
	return func(o *options) {
		o.mailer = m
	}
}

// WithSpamChecker replaces the Akismet client.
func WithSpamChecker(c core.SpamChecker) Option {
	return func(o *options) {
		o.spam = c
	}
}

// WithCaptchaVerifier replaces the reCAPTCHA verifier.
func WithCaptchaVerifier(v core.CaptchaVerifier) Option {
	return func(o *options) {
		o.captcha = v
	}
}

// WithEntryOptions passes extra options to the entry service.
func WithEntryOptions(opts ...entry.Option) Option {
	return func(o *options) {
		o.entry = append(o.entry, opts...)
	}
}
