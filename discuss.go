package discuss

import (
	"context"
	"log/slog"

	"github.com/eduardoboucas/jekyll-discuss/internal/platform"
	"github.com/eduardoboucas/jekyll-discuss/pkg/core"
	"github.com/eduardoboucas/jekyll-discuss/pkg/entry"
	"github.com/eduardoboucas/jekyll-discuss/pkg/notify"
)

// --- Types ---

// Parameters identify the repository, branch and configuration block of a submission.
type Parameters = core.Parameters

// Fields is a submission.
type Fields = core.Fields

// Options are the caller-supplied directives of a submission.
type Options = core.Options

// Request is one submission.
type Request = entry.Request

// Result is what a successful submission returns.
type Result = core.Result

// Service is the entry pipeline.
type Service = entry.Service

// Platform is the wired application returned by New.
type Platform = platform.Platform

// Config is the service configuration.
type Config = platform.Config

// --- Configuration ---

// ConfigFile is the service configuration file FindConfig looks for.
const ConfigFile = platform.ConfigFile

// ErrConfigNotFound is returned by FindConfig when no ConfigFile exists.
var ErrConfigNotFound = platform.ErrConfigNotFound

// LoadConfig reads defaults, the TOML file at path and DISCUSS_ environment variables.
func LoadConfig(path string) (*Config, error) {
	return platform.LoadConfig(path)
}

// FindConfig looks upwards from dir for a ConfigFile.
func FindConfig(dir string) (string, error) {
	return platform.FindConfig(dir)
}

// Option defines a functional option for configuring discuss.
type Option = platform.Option

// WithLogger sets the logger shared by every component.
func WithLogger(logger *slog.Logger) Option {
	return platform.WithLogger(logger)
}

// WithConnector registers the connector used for a service name.
func WithConnector(service string, c core.Connector) Option {
	return platform.WithConnector(service, c)
}

// WithMailer replaces the SMTP mailer.
func WithMailer(m notify.Mailer) Option {
	return platform.WithMailer(m)
}

// WithSubscriberStore replaces the subscriber store.
func WithSubscriberStore(s notify.SubscriberStore) Option {
	return platform.WithSubscriberStore(s)
}

// WithSpamChecker replaces the Akismet client.
func WithSpamChecker(c core.SpamChecker) Option {
	return platform.WithSpamChecker(c)
}

// WithCaptchaVerifier replaces the reCAPTCHA verifier.
func WithCaptchaVerifier(v core.CaptchaVerifier) Option {
	return platform.WithCaptchaVerifier(v)
}

// WithEntryOptions passes options through to the entry service.
func WithEntryOptions(opts ...entry.Option) Option {
	return platform.WithEntryOptions(opts...)
}

// --- Factory ---

// New wires the entry service and its collaborators from cfg.
func New(ctx context.Context, cfg *Config, opts ...Option) (*Platform, error) {
	return platform.New(ctx, cfg, opts...)
}
