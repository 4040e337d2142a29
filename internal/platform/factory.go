package platform

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/eduardoboucas/jekyll-discuss/pkg/adapters/akismet"
	"github.com/eduardoboucas/jekyll-discuss/pkg/adapters/fs"
	"github.com/eduardoboucas/jekyll-discuss/pkg/adapters/github"
	"github.com/eduardoboucas/jekyll-discuss/pkg/adapters/gitlab"
	"github.com/eduardoboucas/jekyll-discuss/pkg/adapters/recaptcha"
	"github.com/eduardoboucas/jekyll-discuss/pkg/adapters/redis"
	"github.com/eduardoboucas/jekyll-discuss/pkg/core"
	"github.com/eduardoboucas/jekyll-discuss/pkg/entry"
	"github.com/eduardoboucas/jekyll-discuss/pkg/notify"
	"github.com/eduardoboucas/jekyll-discuss/pkg/secrets"
	goredis "github.com/redis/go-redis/v9"
)

// Platform is the wired application: the entry service and the pieces the
// HTTP server and the CLI reach for directly.
type Platform struct {
	Config  *Config
	Service *entry.Service
	Router  *Router
	// Secrets is nil when secrets.key is not configured.
	Secrets *secrets.Box

	redis  *goredis.Client
	logger *slog.Logger
}

// New wires every component described by cfg.
//
// Workflow:
// 1. Secrets box (needed by the service and the encrypt endpoint).
// 2. One connector per configured host, routed by service name.
// 3. Notifier from the subscriber store and the mailer.
// 4. Spam checker and captcha verifier.
// 5. Entry service.
func New(ctx context.Context, cfg *Config, opts ...Option) (*Platform, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	p := &Platform{Config: cfg, logger: o.logger}

	// 1. Secrets
	if cfg.Secrets.Key != "" {
		box, err := secrets.FromPassphrase(cfg.Secrets.Key)
		if err != nil {
			return nil, fmt.Errorf("failed to create secrets box: %w", err)
		}
		p.Secrets = box
	}

	// 2. Connectors
	connectors, err := buildConnectors(cfg.Gateway, o)
	if err != nil {
		return nil, err
	}
	p.Router = NewRouter(connectors, cfg.Gateway.Adapter)

	svcOpts := []entry.Option{
		entry.WithLogger(o.logger),
		entry.WithConfigPath(cfg.Review.ConfigPath),
		entry.WithBranchPrefix(cfg.Review.BranchPrefix),
	}
	if p.Secrets != nil {
		svcOpts = append(svcOpts, entry.WithDecrypter(p.Secrets))
	}

	// 3. Notifier
	notifier, err := p.buildNotifier(ctx, o)
	if err != nil {
		return nil, err
	}
	if notifier != nil {
		svcOpts = append(svcOpts, entry.WithNotifier(notifier))
	}

	// 4. Spam & Captcha
	spam := o.spam
	if spam == nil && cfg.Akismet.Key != "" {
		spam = akismet.New(cfg.Akismet.Key, cfg.Akismet.Blog)
	}
	if spam != nil {
		svcOpts = append(svcOpts, entry.WithSpamChecker(spam))
	}
	captcha := o.captcha
	if captcha == nil {
		captcha = recaptcha.New()
	}
	svcOpts = append(svcOpts, entry.WithCaptchaVerifier(captcha))

	// 5. Service
	svc, err := entry.NewService(p.Router, append(svcOpts, o.entry...)...)
	if err != nil {
		p.Close()
		return nil, err
	}
	p.Service = svc
	return p, nil
}

func buildConnectors(cfg GatewayConfig, o *options) (map[string]core.Connector, error) {
	connectors := make(map[string]core.Connector)

	if cfg.GitHub.Token != "" || cfg.Adapter == "github" {
		c, err := github.NewConnector(cfg.GitHub.Token, cfg.GitHub.BaseURL)
		if err != nil {
			return nil, err
		}
		connectors["github"] = c
	}
	if cfg.GitLab.Token != "" || cfg.Adapter == "gitlab" {
		c, err := gitlab.NewConnector(cfg.GitLab.Token, cfg.GitLab.BaseURL)
		if err != nil {
			return nil, err
		}
		connectors["gitlab"] = c
	}
	if cfg.Adapter == "fs" {
		connectors["fs"] = fs.NewConnector(cfg.FS.Root, fs.Config{
			AutoInit:      cfg.FS.AutoInit,
			InitialBranch: cfg.FS.InitialBranch,
			Logger:        o.logger,
		})
	}

	for name, c := range o.connectors {
		connectors[name] = c
	}
	if _, ok := connectors[cfg.Adapter]; !ok {
		return nil, fmt.Errorf("gateway adapter %q is not configured", cfg.Adapter)
	}
	return connectors, nil
}

// buildNotifier returns nil when no mailer is available.
func (p *Platform) buildNotifier(ctx context.Context, o *options) (core.Notifier, error) {
	mailer := o.mailer
	if mailer == nil && p.Config.SMTP.Host != "" {
		mailer = notify.NewSMTPMailer(notify.SMTPConfig{
			Host:     p.Config.SMTP.Host,
			Port:     p.Config.SMTP.Port,
			Username: p.Config.SMTP.Username,
			Password: p.Config.SMTP.Password,
			From:     p.Config.SMTP.From,
		})
	}
	if mailer == nil {
		if o.logger != nil {
			o.logger.Info("notifications disabled: no mailer configured")
		}
		return nil, nil
	}

	store := o.store
	if store == nil && p.Config.Redis.Addr != "" {
		client, err := redis.Dial(ctx, p.Config.Redis.Addr, p.Config.Redis.Password, p.Config.Redis.DB)
		if err != nil {
			return nil, err
		}
		p.redis = client
		store = redis.NewSubscriberStore(client, redis.WithTTL(p.Config.Redis.TTL))
	}
	if store == nil {
		store = notify.NewMemoryStore()
	}

	return notify.New(store, mailer, notify.WithLogger(o.logger))
}

// Close releases connections opened by New.
func (p *Platform) Close() error {
	if p.redis != nil {
		return p.redis.Close()
	}
	return nil
}
