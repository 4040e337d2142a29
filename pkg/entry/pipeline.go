package entry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chainguard-dev/clog"
	"github.com/eduardoboucas/jekyll-discuss/pkg/core"
	"github.com/eduardoboucas/jekyll-discuss/pkg/fields"
	"github.com/eduardoboucas/jekyll-discuss/pkg/placeholder"
	"github.com/eduardoboucas/jekyll-discuss/pkg/serializer"
	"github.com/eduardoboucas/jekyll-discuss/pkg/siteconfig"
)

// Request is one submission.
type Request struct {
	Parameters core.Parameters
	Fields     core.Fields
	Options    core.Options
	Requester  core.Requester
}

// request holds the state of one run through the pipeline.
type request struct {
	Request

	id  string
	now time.Time
	gw  core.Gateway
	cfg *siteconfig.Config

	// processed are the validated, generated and transformed fields.
	processed core.Fields
	// subscriber is the address to subscribe, read before transforms run.
	subscriber string
	payload    []byte
	path       string
	message    string
}

// Process runs a submission through the pipeline.
func (s *Service) Process(ctx context.Context, in Request) (*core.Result, error) {
	if in.Fields == nil {
		in.Fields = core.Fields{}
	}
	if in.Options == nil {
		in.Options = core.Options{}
	}

	r := &request{Request: in, id: s.newID(), now: s.now()}
	ctx = s.requestLogger(ctx, r.id, in.Parameters)
	s.processed.Add(1)

	stages := []struct {
		name string
		run  func(context.Context, *request) error
	}{
		{"config", s.loadConfig},
		{"captcha", s.checkCaptcha},
		{"spam", s.checkSpam},
		{"fields", s.processFields},
		{"serialize", s.serialize},
		{"path", s.resolvePath},
	}
	for _, stage := range stages {
		if err := stage.run(ctx, r); err != nil {
			clog.FromContext(ctx).With("stage", stage.name).Warnf("entry rejected: %v", err)
			return nil, err
		}
	}

	reviewID, err := s.dispatch(ctx, r)
	if err != nil {
		clog.FromContext(ctx).With("stage", "dispatch").Errorf("entry not stored: %v", err)
		return nil, err
	}

	clog.FromContext(ctx).Infof("entry stored at %s", r.path)
	return &core.Result{
		Fields:   r.processed,
		Redirect: r.Options.Redirect(),
		ReviewID: reviewID,
		Path:     r.path,
	}, nil
}

// loadConfig connects to the repository, reads the site configuration from
// the target branch and authorizes the request against it.
func (s *Service) loadConfig(ctx context.Context, r *request) error {
	gw, err := s.connector.Connect(ctx, r.Parameters)
	if err != nil {
		return core.WrapError(core.KindGatewayReadFailed, core.CodeReadFailed, fmt.Errorf("failed to connect to %s: %w", r.Parameters.Slug(), err))
	}
	r.gw = gw

	cfg, err := s.readConfig(ctx, gw, s.configPath, r.Parameters, r.Options)
	if err != nil {
		return err
	}
	r.cfg = cfg
	return nil
}

func (s *Service) readConfig(ctx context.Context, gw core.Gateway, path string, params core.Parameters, options core.Options) (*siteconfig.Config, error) {
	raw, err := gw.ReadFile(ctx, path, params.Branch)
	if err != nil {
		return nil, core.WrapError(core.KindGatewayReadFailed, core.CodeReadFailed, fmt.Errorf("failed to read %s: %w", path, err))
	}
	return siteconfig.Validate(raw, params, options, siteconfig.WithDecrypter(s.decrypter))
}

// checkCaptcha requires the submission to echo the site's reCaptcha
// credentials and a challenge response the verifier accepts.
func (s *Service) checkCaptcha(ctx context.Context, r *request) error {
	if !r.cfg.ReCaptcha.Enabled {
		return nil
	}

	siteKey, encrypted := r.Options.ReCaptcha()
	if siteKey == "" || encrypted == "" {
		return core.NewError(core.KindCaptchaRejected, core.CodeRecaptchaMissing)
	}
	if s.captcha == nil {
		return core.WrapError(core.KindCaptchaRejected, core.CodeRecaptchaMissing, errors.New("no captcha verifier configured"))
	}
	if s.decrypter == nil {
		return core.WrapError(core.KindCaptchaRejected, core.CodeRecaptchaMismatch, errors.New("no decrypter configured"))
	}

	// Ciphertexts differ per encryption, so both sides are compared in clear.
	secret, err := r.cfg.ReCaptchaSecret(ctx)
	if err != nil {
		return core.WrapError(core.KindCaptchaRejected, core.CodeRecaptchaMismatch, err)
	}
	submitted, err := s.decrypter.Decrypt(encrypted)
	if err != nil {
		return core.WrapError(core.KindCaptchaRejected, core.CodeRecaptchaMismatch, err)
	}
	if siteKey != r.cfg.ReCaptcha.SiteKey || submitted != secret {
		return core.NewError(core.KindCaptchaRejected, core.CodeRecaptchaMismatch)
	}

	if err := s.captcha.Verify(ctx, secret, r.Requester.CaptchaResponse, r.Requester.IP); err != nil {
		return core.WrapError(core.KindCaptchaRejected, core.CodeRecaptchaInvalid, err)
	}
	return nil
}

// checkSpam asks the classifier about the raw submission. It always runs
// before anything is written.
func (s *Service) checkSpam(ctx context.Context, r *request) error {
	ak := r.cfg.Akismet
	if !ak.Enabled {
		return nil
	}
	if s.spam == nil {
		return core.WrapError(core.KindSpamCheckFailed, core.CodeSpamCheckFailed, errors.New("no spam checker configured"))
	}

	field := func(name string) string {
		if name == "" {
			return ""
		}
		return placeholder.Stringify(r.Fields[name])
	}

	spam, err := s.spam.CheckSpam(ctx, core.SpamCheck{
		IP:          r.Requester.IP,
		UserAgent:   r.Requester.UserAgent,
		Type:        ak.Type,
		Author:      field(ak.Author),
		AuthorEmail: field(ak.AuthorEmail),
		AuthorURL:   field(ak.AuthorURL),
		Content:     field(ak.Content),
	})
	if err != nil {
		return core.WrapError(core.KindSpamCheckFailed, core.CodeSpamCheckFailed, err)
	}
	if spam {
		return core.NewError(core.KindSpamRejected, core.CodeIsSpam)
	}
	return nil
}

// processFields validates, generates and transforms a copy of the submitted fields.
func (s *Service) processFields(ctx context.Context, r *request) error {
	f := r.Fields.Clone()

	// 1. Validate (trims in place)
	if err := fields.Validate(f, r.cfg); err != nil {
		return err
	}

	// 2. Capture the subscriber before transforms can hash it
	if name := r.Options.Subscribe(); name != "" {
		r.subscriber, _ = f.String(name)
	}

	// 3. Generate
	fields.Generate(f, r.cfg, r.now)

	// 4. Transform
	if err := fields.Transform(ctx, f, r.cfg); err != nil {
		return err
	}

	r.processed = f
	return nil
}

// serialize injects the internal fields into a copy and encodes it.
func (s *Service) serialize(_ context.Context, r *request) error {
	out := r.processed.Clone()
	out["_id"] = r.id
	if parent := r.Options.Parent(); parent != "" {
		out["_parent"] = parent
	}

	data, err := serializer.Serialize(out, r.cfg.Format, r.cfg.Transforms)
	if err != nil {
		return err
	}
	r.payload = data
	return nil
}

// resolvePath computes the target file and the commit message. Templates
// see the processed fields without the internal ones.
func (s *Service) resolvePath(_ context.Context, r *request) error {
	pc := placeholder.Context{
		Fields:     r.processed,
		Options:    r.Options,
		Parameters: r.Parameters,
		ID:         r.id,
		Now:        r.now,
	}

	ext := r.cfg.Extension
	if ext == "" {
		var err error
		if ext, err = serializer.Extension(r.cfg.Format); err != nil {
			return err
		}
	}

	name := r.id
	if r.cfg.Filename != "" {
		if resolved := placeholder.Resolve(r.cfg.Filename, pc); resolved != "" {
			name = resolved
		}
	}

	dir := strings.TrimRight(placeholder.Resolve(r.cfg.Path, pc), "/")
	r.path = name + "." + ext
	if dir != "" {
		r.path = dir + "/" + r.path
	}

	r.message = placeholder.Resolve(r.cfg.CommitMessage, pc)
	return nil
}
