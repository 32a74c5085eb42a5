package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"auth-gateway/middleware/auth/domain"
)

func writeFile(t *testing.T, dir, name, data string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(data), 0o600))
	return p
}

func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

const sampleYAML = `
env: "prod"
http:
  host: "127.0.0.1"
  port: "9090"
upstream:
  url: "http://shop:3000"
auth:
  server_url: "http://idp:9000"
  policy: "role:admin"
  timeout: "2s"
  rps: 50
rate_limit:
  disabled: true
  limit: 5
  window: "10s"
  key_header: "X-Api-Key"
  store: "redis"
redis:
  addr: "redis:6379"
cors:
  allow_origin: "https://shop.test"
  allow_methods: ["GET", "POST"]
`

func TestHTTPConfig_Addr(t *testing.T) {
	cfg := HTTPConfig{Host: "0.0.0.0", Port: "8080"}
	require.Equal(t, "0.0.0.0:8080", cfg.Addr())
}

func TestLoad_WithExplicitPath(t *testing.T) {
	p := writeFile(t, t.TempDir(), "config.yaml", sampleYAML)

	cfg, err := Load(p)
	require.NoError(t, err)

	require.Equal(t, "prod", cfg.Env)
	require.Equal(t, "127.0.0.1:9090", cfg.HTTP.Addr())
	require.Equal(t, "http://shop:3000", cfg.Upstream.URL)
	require.Equal(t, "http://idp:9000", cfg.Auth.ServerURL)
	require.Equal(t, 2*time.Second, cfg.Auth.Timeout)
	require.InDelta(t, 50.0, cfg.Auth.RPS, 0.0001)
	require.True(t, cfg.RateLimit.Disabled)
	require.Equal(t, 5, cfg.RateLimit.Limit)
	require.Equal(t, 10*time.Second, cfg.RateLimit.Window)
	require.Equal(t, "X-Api-Key", cfg.RateLimit.KeyHeader)
	require.Equal(t, StoreRedis, cfg.RateLimit.Store)
	require.Equal(t, "https://shop.test", cfg.CORS.AllowOrigin)
	require.Equal(t, []string{"GET", "POST"}, cfg.CORS.AllowMethods)

	// defaults para o que o arquivo não trouxe
	require.Equal(t, 30*time.Second, cfg.HTTP.ReadTimeout)
	require.Equal(t, []string{"Content-Type", "Authorization"}, cfg.CORS.AllowHeaders)
	require.Equal(t, "gateway:stats", cfg.Stats.Prefix)

	p2, err := cfg.AuthPolicy()
	require.NoError(t, err)
	require.Equal(t, domain.RoleRequired("admin"), p2)

	require.NoError(t, cfg.ValidateGateway())
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	p := writeFile(t, t.TempDir(), "config.yaml", sampleYAML)
	t.Setenv("RATE_LIMIT", "42")
	t.Setenv("AUTH_POLICY", "optional")

	cfg, err := Load(p)
	require.NoError(t, err)
	require.Equal(t, 42, cfg.RateLimit.Limit)
	require.Equal(t, "optional", cfg.Auth.Policy)
}

func TestLoad_BrokenYAML(t *testing.T) {
	p := writeFile(t, t.TempDir(), "broken.yaml", "env: [unclosed\n")

	_, err := Load(p)
	require.Error(t, err)
	require.Contains(t, err.Error(), "failed to read config")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "stat failed")
}

func TestLoad_CONFIG_PATH(t *testing.T) {
	p := writeFile(t, t.TempDir(), "from_env.yaml", "env: \"stage\"\n")
	t.Setenv("CONFIG_PATH", p)

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "stage", cfg.Env)
}

func TestLoad_LocalYAML(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	writeFile(t, dir, "local.yaml", "env: \"dev\"\n")
	t.Setenv("CONFIG_PATH", "")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "dev", cfg.Env)
}

func TestLoad_EnvOnlyDefaults(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("CONFIG_PATH", "")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "local", cfg.Env)
	require.Equal(t, "0.0.0.0:8080", cfg.HTTP.Addr())
	require.Equal(t, 100, cfg.RateLimit.Limit)
	require.Equal(t, time.Minute, cfg.RateLimit.Window)
	require.Equal(t, StoreMemory, cfg.RateLimit.Store)
	require.Equal(t, 5*time.Second, cfg.Auth.Timeout)
	require.Equal(t, "*", cfg.CORS.AllowOrigin)

	require.NoError(t, cfg.Validate())
	require.ErrorContains(t, cfg.ValidateGateway(), "UPSTREAM_URL is required")
}

func TestValidate_Rules(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("CONFIG_PATH", "")

	base, err := Load("")
	require.NoError(t, err)

	cases := map[string]struct {
		mutate func(c *Config)
		want   string
	}{
		"zero limit":     {func(c *Config) { c.RateLimit.Limit = 0 }, "RATE_LIMIT must be > 0"},
		"zero window":    {func(c *Config) { c.RateLimit.Window = 0 }, "RATE_WINDOW must be > 0"},
		"unknown store":  {func(c *Config) { c.RateLimit.Store = "etcd" }, "RATE_STORE"},
		"negative conc":  {func(c *Config) { c.Concurrency.Max = -1 }, "CONCURRENCY_MAX"},
		"redis no addr":  {func(c *Config) { c.Stats.RedisEnabled = true }, "REDIS_ADDR is required"},
		"bad policy":     {func(c *Config) { c.Auth.Policy = "role:" }, "AUTH_POLICY"},
		"empty auth url": {func(c *Config) { c.Auth.ServerURL = " " }, "AUTH_SERVER_URL is required"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			c := *base
			tc.mutate(&c)
			require.ErrorContains(t, c.Validate(), tc.want)
		})
	}

	disabled := *base
	disabled.RateLimit.Disabled = true
	disabled.RateLimit.Limit = 0
	require.NoError(t, disabled.Validate())
}
