package platform

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "github", cfg.Gateway.Adapter)
	assert.Equal(t, "discuss", cfg.Review.BranchPrefix)
	assert.Equal(t, "discuss.yml", cfg.Review.ConfigPath)
	assert.True(t, cfg.Gateway.FS.AutoInit)
	assert.Equal(t, 587, cfg.SMTP.Port)
}

func TestLoadConfig_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	path := filepath.Join(dir, ConfigFile)
	toml := `
[gateway]
adapter = "gitlab"

[gateway.gitlab]
token = "from-file"
base_url = "https://gitlab.example.com"

[review]
branch_prefix = "staticman"

[redis]
addr = "localhost:6379"
ttl = "720h"
`
	require.NoError(t, os.WriteFile(path, []byte(toml), 0644))
	t.Setenv("DISCUSS_GATEWAY__GITLAB__TOKEN", "from-env")
	t.Setenv("DISCUSS_SERVER__ADDR", ":9000")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "gitlab", cfg.Gateway.Adapter)
	assert.Equal(t, "from-env", cfg.Gateway.GitLab.Token)
	assert.Equal(t, "https://gitlab.example.com", cfg.Gateway.GitLab.BaseURL)
	assert.Equal(t, "staticman", cfg.Review.BranchPrefix)
	assert.Equal(t, ":9000", cfg.Server.Addr)
	assert.Equal(t, 720*time.Hour, cfg.Redis.TTL)
}

func TestLoadConfig_DotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("DISCUSS_SECRETS__KEY=hunter2\n"), 0644))
	t.Setenv("DISCUSS_SECRETS__KEY", "")
	os.Unsetenv("DISCUSS_SECRETS__KEY")

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "hunter2", cfg.Secrets.Key)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown adapter", func(c *Config) { c.Gateway.Adapter = "svn" }},
		{"smtp without from", func(c *Config) { c.SMTP.Host = "mail" }},
		{"akismet without blog", func(c *Config) { c.Akismet.Key = "k" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Config{Gateway: GatewayConfig{Adapter: "github"}}
			require.NoError(t, cfg.Validate())
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	t.Chdir(t.TempDir())
	_, err := LoadConfig("does-not-exist.toml")
	assert.Error(t, err)
}
