package platform

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix prefixes every environment override. Nested keys are separated by
// a double underscore: DISCUSS_GATEWAY__GITHUB__TOKEN sets gateway.github.token.
const EnvPrefix = "DISCUSS_"

// ConfigFile is the service configuration file searched for by FindConfig.
const ConfigFile = "discuss.toml"

// Config is the service configuration.
type Config struct {
	Server  ServerConfig  `koanf:"server"`
	Gateway GatewayConfig `koanf:"gateway"`
	Review  ReviewConfig  `koanf:"review"`
	Redis   RedisConfig   `koanf:"redis"`
	SMTP    SMTPConfig    `koanf:"smtp"`
	Akismet AkismetConfig `koanf:"akismet"`
	Secrets SecretsConfig `koanf:"secrets"`
}

type ServerConfig struct {
	Addr            string        `koanf:"addr"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// GatewayConfig selects and configures the version-control hosts. Adapter is
// used for requests that do not name a service.
type GatewayConfig struct {
	Adapter string       `koanf:"adapter"`
	GitHub  GitHubConfig `koanf:"github"`
	GitLab  GitLabConfig `koanf:"gitlab"`
	FS      FSConfig     `koanf:"fs"`
}

type GitHubConfig struct {
	Token         string `koanf:"token"`
	BaseURL       string `koanf:"base_url"`
	WebhookSecret string `koanf:"webhook_secret"`
}

type GitLabConfig struct {
	Token        string `koanf:"token"`
	BaseURL      string `koanf:"base_url"`
	WebhookToken string `koanf:"webhook_token"`
}

type FSConfig struct {
	Root          string `koanf:"root"`
	AutoInit      bool   `koanf:"auto_init"`
	InitialBranch string `koanf:"initial_branch"`
}

type ReviewConfig struct {
	BranchPrefix string `koanf:"branch_prefix"`
	ConfigPath   string `koanf:"config_path"`
}

// RedisConfig enables the Redis subscriber store when Addr is set.
type RedisConfig struct {
	Addr     string        `koanf:"addr"`
	Password string        `koanf:"password"`
	DB       int           `koanf:"db"`
	TTL      time.Duration `koanf:"ttl"`
}

// SMTPConfig enables mail notifications when Host is set.
type SMTPConfig struct {
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	Username string `koanf:"username"`
	Password string `koanf:"password"`
	From     string `koanf:"from"`
}

// AkismetConfig enables spam checks when Key is set.
type AkismetConfig struct {
	Key  string `koanf:"key"`
	Blog string `koanf:"blog"`
}

// SecretsConfig holds the passphrase encrypted site settings are sealed with.
type SecretsConfig struct {
	Key string `koanf:"key"`
}

func defaults() map[string]any {
	return map[string]any{
		"server.addr":               ":8080",
		"server.shutdown_timeout":   "10s",
		"gateway.adapter":           "github",
		"gateway.fs.root":           "./repos",
		"gateway.fs.auto_init":      true,
		"gateway.fs.initial_branch": "main",
		"review.branch_prefix":      "discuss",
		"review.config_path":        "discuss.yml",
		"smtp.port":                 587,
	}
}

// LoadConfig reads defaults, then path (if non-empty), then the environment.
// A .env file in the working directory is loaded into the environment first.
func LoadConfig(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

// Validate checks the combinations LoadConfig cannot express as defaults.
func (c *Config) Validate() error {
	switch c.Gateway.Adapter {
	case "github", "gitlab", "fs":
	default:
		return fmt.Errorf("unknown gateway adapter %q", c.Gateway.Adapter)
	}
	if c.SMTP.Host != "" && c.SMTP.From == "" {
		return errors.New("smtp.from is required when smtp.host is set")
	}
	if c.Akismet.Key != "" && c.Akismet.Blog == "" {
		return errors.New("akismet.blog is required when akismet.key is set")
	}
	return nil
}
