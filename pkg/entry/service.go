// Package entry implements the submission pipeline.
//
// A submission moves through a fixed chain of stages:
//
//	ConfigLoading -> Captcha -> SpamCheck -> FieldValidation ->
//	FieldGeneration -> Transform -> InternalFieldInjection ->
//	Serialization -> PathResolution -> Dispatch -> Result
//
// Every stage either succeeds or short-circuits the chain with a *core.Error.
// Nothing is retried and nothing written before a failure is rolled back.
package entry

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/aretw0/lifecycle"
	"github.com/chainguard-dev/clog"
	"github.com/eduardoboucas/jekyll-discuss/pkg/core"
	"github.com/eduardoboucas/jekyll-discuss/pkg/siteconfig"
	"github.com/google/uuid"
)

// DefaultBranchPrefix prefixes the branches opened for moderated entries.
const DefaultBranchPrefix = "discuss"

// TaskRunner runs a side effect that must not hold up the caller.
type TaskRunner func(ctx context.Context, fn func(context.Context) error)

// Service processes submissions. It is safe for concurrent use: everything
// that belongs to one submission lives in a request value.
type Service struct {
	connector  core.Connector
	spam       core.SpamChecker
	captcha    core.CaptchaVerifier
	notifier   core.Notifier
	decrypter  core.Decrypter
	logger     *slog.Logger
	configPath string
	prefix     string
	now        func() time.Time
	newID      func() string
	runTask    TaskRunner

	processed atomic.Int64
	reviews   atomic.Int64
	merged    atomic.Int64
}

// Option configures a Service.
type Option func(*Service)

// WithSpamChecker sets the classifier used when a site enables akismet.
func WithSpamChecker(c core.SpamChecker) Option {
	return func(s *Service) { s.spam = c }
}

// WithCaptchaVerifier sets the verifier used when a site enables reCaptcha.
func WithCaptchaVerifier(v core.CaptchaVerifier) Option {
	return func(s *Service) { s.captcha = v }
}

// WithNotifier sets the subscription and notification hook.
func WithNotifier(n core.Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithDecrypter sets the capability that reveals encrypted site configuration values.
func WithDecrypter(d core.Decrypter) Option {
	return func(s *Service) { s.decrypter = d }
}

// WithLogger sets the base logger. Request loggers derive from it.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithConfigPath sets where the site configuration lives in the repository.
func WithConfigPath(path string) Option {
	return func(s *Service) {
		if path != "" {
			s.configPath = path
		}
	}
}

// WithBranchPrefix sets the prefix of review branches.
func WithBranchPrefix(prefix string) Option {
	return func(s *Service) {
		if prefix != "" {
			s.prefix = prefix
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithIDGenerator overrides how entry ids are minted.
func WithIDGenerator(fn func() string) Option {
	return func(s *Service) { s.newID = fn }
}

// WithTaskRunner overrides how fire-and-forget work is started.
func WithTaskRunner(run TaskRunner) Option {
	return func(s *Service) { s.runTask = run }
}

// NewService creates a pipeline reaching repositories through connector.
func NewService(connector core.Connector, opts ...Option) (*Service, error) {
	if connector == nil {
		return nil, errors.New("entry: connector is required")
	}

	s := &Service{
		connector:  connector,
		configPath: siteconfig.DefaultPath,
		prefix:     DefaultBranchPrefix,
		now:        time.Now,
		newID:      uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.runTask == nil {
		s.runTask = s.goTask
	}
	return s, nil
}

// ConfigPath is the repository path of the site configuration.
func (s *Service) ConfigPath() string { return s.configPath }

// BranchPrefix is the prefix of review branches.
func (s *Service) BranchPrefix() string { return s.prefix }

// goTask is the default TaskRunner: a tracked goroutine whose failures and
// panics end up in the log.
func (s *Service) goTask(ctx context.Context, fn func(context.Context) error) {
	lifecycle.Go(ctx, fn, lifecycle.WithErrorHandler(func(err error) {
		clog.FromContext(ctx).Errorf("background task failed: %v", err)
	}))
}

// requestLogger decorates ctx with a logger scoped to one entry.
func (s *Service) requestLogger(ctx context.Context, id string, params core.Parameters) context.Context {
	base := s.logger
	if base == nil {
		base = slog.Default()
	}
	logger := clog.NewLogger(base).With("entry", id, "repository", params.Slug(), "property", params.Property)
	return clog.WithLogger(ctx, logger)
}
