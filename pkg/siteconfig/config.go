// Package siteconfig loads and validates the per-repository site
// configuration that drives the entry pipeline.
//
// A site configuration file holds one block per property:
//
//	comments:
//	  allowedFields: ["name", "email", "message"]
//	  branch: main
//	  format: yaml
//	  path: "_data/comments/{options.slug}"
//	  moderation: true
//
// A block is validated once per request and is immutable afterwards.
package siteconfig

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"
	"sync"

	"github.com/eduardoboucas/jekyll-discuss/pkg/core"
	"gopkg.in/yaml.v3"
)

// DefaultPath is where the site configuration lives inside a repository.
const DefaultPath = "discuss.yml"

// RequiredKeys must be present in every property block, in reporting order.
var RequiredKeys = []string{"allowedFields", "branch", "format", "path"}

const (
	defaultCommitMessage   = "Add discuss data"
	defaultPullRequestBody = "Dear human,\n\nHere's a new entry for your approval. :tada:\n\n" +
		"Merge the pull request to accept it, or close it to send it away.\n\n---\n"
	defaultAkismetType = "comment"
)

// Notifications configures subscriber notifications.
type Notifications struct {
	Enabled bool `yaml:"enabled"`
}

// Akismet maps entry fields onto the spam classifier input.
type Akismet struct {
	Enabled     bool   `yaml:"enabled"`
	Author      string `yaml:"author"`
	AuthorEmail string `yaml:"authorEmail"`
	AuthorURL   string `yaml:"authorUrl"`
	Content     string `yaml:"content"`
	Type        string `yaml:"type"`
}

// ReCaptcha configures the challenge check. Secret is stored encrypted.
type ReCaptcha struct {
	Enabled bool   `yaml:"enabled"`
	SiteKey string `yaml:"siteKey"`
	Secret  string `yaml:"secret"`
}

// Config is a validated property block.
type Config struct {
	Property        string
	AllowedFields   []string
	RequiredFields  []string
	AllowedOrigins  []string
	Branch          string
	CommitMessage   string
	Extension       string
	Filename        string
	Format          Format
	GeneratedFields []GeneratedField
	Moderation      bool
	Name            string
	Path            string
	PullRequestBody string
	Transforms      []FieldTransforms
	Notifications   Notifications
	Akismet         Akismet
	ReCaptcha       ReCaptcha

	decrypter core.Decrypter

	mu      sync.Mutex
	secrets map[string]string
}

type rawConfig struct {
	AllowedFields   []string      `yaml:"allowedFields"`
	RequiredFields  []string      `yaml:"requiredFields"`
	AllowedOrigins  []string      `yaml:"allowedOrigins"`
	Branch          string        `yaml:"branch"`
	CommitMessage   *string       `yaml:"commitMessage"`
	Extension       string        `yaml:"extension"`
	Filename        string        `yaml:"filename"`
	Format          string        `yaml:"format"`
	GeneratedFields yaml.Node     `yaml:"generatedFields"`
	Moderation      bool          `yaml:"moderation"`
	Name            string        `yaml:"name"`
	Path            string        `yaml:"path"`
	PullRequestBody *string       `yaml:"pullRequestBody"`
	Transforms      yaml.Node     `yaml:"transforms"`
	Notifications   Notifications `yaml:"notifications"`
	Akismet         Akismet       `yaml:"akismet"`
	ReCaptcha       ReCaptcha     `yaml:"reCaptcha"`
}

// Option configures Load.
type Option func(*Config)

// WithDecrypter sets the capability used to reveal encrypted values.
func WithDecrypter(d core.Decrypter) Option {
	return func(c *Config) {
		c.decrypter = d
	}
}

// Load parses a site configuration file and returns the validated block for property.
//
// Workflow:
//  1. Parse the file (YAML or JSON).
//  2. Select the property block; absent -> MISSING_CONFIG_BLOCK.
//  3. Check required keys; missing -> MISSING_CONFIG_FIELDS.
//  4. Decode the block, applying defaults.
func Load(raw []byte, property string, opts ...Option) (*Config, error) {
	var file map[string]yaml.Node
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, core.WrapError(core.KindConfigInvalid, core.CodeInvalidConfig, err)
	}

	block, ok := file[property]
	if !ok || block.Kind == 0 || block.Tag == "!!null" {
		return nil, core.NewError(core.KindConfigMissing, core.CodeMissingConfigBlock, property)
	}
	if block.Kind != yaml.MappingNode {
		return nil, core.Errorf(core.KindConfigInvalid, core.CodeInvalidConfig, "property %q is not a mapping", property)
	}

	if missing := missingKeys(&block); len(missing) > 0 {
		return nil, core.NewError(core.KindConfigInvalid, core.CodeMissingConfigFields, missing...)
	}

	var rc rawConfig
	if err := block.Decode(&rc); err != nil {
		return nil, core.WrapError(core.KindConfigInvalid, core.CodeInvalidConfig, err)
	}

	var reserved []string
	for _, f := range rc.AllowedFields {
		if strings.HasPrefix(f, "_") {
			reserved = append(reserved, f)
		}
	}
	if len(reserved) > 0 {
		return nil, &core.Error{
			Kind:   core.KindConfigInvalid,
			Code:   core.CodeInvalidConfig,
			Fields: reserved,
			Err:    errors.New("allowed fields cannot use the reserved underscore prefix"),
		}
	}

	generated, err := parseGeneratedFields(&rc.GeneratedFields)
	if err != nil {
		return nil, core.WrapError(core.KindConfigInvalid, core.CodeInvalidConfig, err)
	}
	transforms, err := parseTransforms(&rc.Transforms)
	if err != nil {
		return nil, core.WrapError(core.KindConfigInvalid, core.CodeInvalidConfig, err)
	}

	cfg := &Config{
		Property:        property,
		AllowedFields:   rc.AllowedFields,
		RequiredFields:  rc.RequiredFields,
		AllowedOrigins:  rc.AllowedOrigins,
		Branch:          rc.Branch,
		CommitMessage:   defaultCommitMessage,
		Extension:       strings.TrimPrefix(rc.Extension, "."),
		Filename:        rc.Filename,
		Format:          Format(strings.ToLower(rc.Format)),
		GeneratedFields: generated,
		Moderation:      rc.Moderation,
		Name:            rc.Name,
		Path:            rc.Path,
		PullRequestBody: defaultPullRequestBody,
		Transforms:      transforms,
		Notifications:   rc.Notifications,
		Akismet:         rc.Akismet,
		ReCaptcha:       rc.ReCaptcha,
		secrets:         make(map[string]string),
	}
	if rc.CommitMessage != nil {
		cfg.CommitMessage = *rc.CommitMessage
	}
	if rc.PullRequestBody != nil {
		cfg.PullRequestBody = *rc.PullRequestBody
	}
	if cfg.Akismet.Type == "" {
		cfg.Akismet.Type = defaultAkismetType
	}

	for _, opt := range opts {
		opt(cfg)
	}

	return cfg, nil
}

// Validate loads the block for params.Property and authorizes the request against it.
func Validate(raw []byte, params core.Parameters, options core.Options, opts ...Option) (*Config, error) {
	cfg, err := Load(raw, params.Property, opts...)
	if err != nil {
		return nil, err
	}
	if err := cfg.Authorize(params, options); err != nil {
		return nil, err
	}
	return cfg, nil
}

func missingKeys(block *yaml.Node) []string {
	present := make(map[string]bool, len(block.Content)/2)
	for i := 0; i+1 < len(block.Content); i += 2 {
		if block.Content[i+1].Tag != "!!null" {
			present[block.Content[i].Value] = true
		}
	}

	var missing []string
	for _, key := range RequiredKeys {
		if !present[key] {
			missing = append(missing, key)
		}
	}
	return missing
}

// Authorize checks the request against the block: origin allow-list first,
// then the target branch.
func (c *Config) Authorize(params core.Parameters, options core.Options) error {
	if len(c.AllowedOrigins) > 0 {
		origin := options.Origin()
		if origin == "" {
			return core.NewError(core.KindOriginRejected, core.CodeMissingOrigin)
		}
		u, err := url.Parse(origin)
		if err != nil || !slices.Contains(c.AllowedOrigins, u.Hostname()) {
			return core.NewError(core.KindOriginRejected, core.CodeInvalidOrigin)
		}
	}

	if c.Branch != params.Branch {
		return core.Errorf(core.KindBranchMismatch, core.CodeBranchMismatch,
			"configured branch %q, requested %q", c.Branch, params.Branch)
	}

	return nil
}

// IsAllowed reports whether field is listed in allowedFields.
func (c *Config) IsAllowed(field string) bool {
	return slices.Contains(c.AllowedFields, field)
}

// TransformsFor returns the transforms declared for field.
func (c *Config) TransformsFor(field string) []Transform {
	for _, ft := range c.Transforms {
		if ft.Field == field {
			return ft.Transforms
		}
	}
	return nil
}

// ReCaptchaSecret returns the decrypted reCAPTCHA secret. It is decrypted on
// first read and remembered for the lifetime of the Config.
func (c *Config) ReCaptchaSecret(ctx context.Context) (string, error) {
	return c.secret(ctx, "reCaptcha.secret", c.ReCaptcha.Secret)
}

func (c *Config) secret(_ context.Context, key, ciphertext string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if v, ok := c.secrets[key]; ok {
		return v, nil
	}
	if ciphertext == "" {
		return "", nil
	}
	if c.decrypter == nil {
		return "", fmt.Errorf("no decrypter configured for %s", key)
	}

	plain, err := c.decrypter.Decrypt(ciphertext)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt %s: %w", key, err)
	}
	c.secrets[key] = plain
	return plain, nil
}
