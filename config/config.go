// Package config carrega a configuração dos binários do gateway.
//
// Fontes (da mais forte para a mais fraca):
//  1. caminho explícito (--config);
//  2. CONFIG_PATH;
//  3. ./local.yaml;
//  4. só variáveis de ambiente.
//
// Variáveis de ambiente sempre sobrescrevem o arquivo.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"

	"auth-gateway/middleware/auth/domain"
)

const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
)

type Config struct {
	Env         string            `yaml:"env" env:"ENV" env-default:"local"`
	HTTP        HTTPConfig        `yaml:"http"`
	Upstream    UpstreamConfig    `yaml:"upstream"`
	Auth        AuthConfig        `yaml:"auth"`
	RateLimit   RateLimitConfig   `yaml:"rate_limit"`
	Concurrency ConcurrencyConfig `yaml:"concurrency"`
	CORS        CORSConfig        `yaml:"cors"`
	Redis       RedisConfig       `yaml:"redis"`
	Stats       StatsConfig       `yaml:"stats"`
}

type HTTPConfig struct {
	Host              string        `yaml:"host" env:"HTTP_HOST" env-default:"0.0.0.0"`
	Port              string        `yaml:"port" env:"HTTP_PORT" env-default:"8080"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout" env:"HTTP_READ_HEADER_TIMEOUT" env-default:"10s"`
	ReadTimeout       time.Duration `yaml:"read_timeout" env:"HTTP_READ_TIMEOUT" env-default:"30s"`
	WriteTimeout      time.Duration `yaml:"write_timeout" env:"HTTP_WRITE_TIMEOUT" env-default:"30s"`
	IdleTimeout       time.Duration `yaml:"idle_timeout" env:"HTTP_IDLE_TIMEOUT" env-default:"90s"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout" env:"HTTP_SHUTDOWN_TIMEOUT" env-default:"10s"`
}

func (h HTTPConfig) Addr() string { return net.JoinHostPort(h.Host, h.Port) }

// UpstreamConfig é o serviço protegido pelo gateway.
type UpstreamConfig struct {
	URL string `yaml:"url" env:"UPSTREAM_URL"`
}

// AuthConfig aponta para o IdP e define a policy padrão das rotas.
type AuthConfig struct {
	ServerURL string        `yaml:"server_url" env:"AUTH_SERVER_URL" env-default:"http://localhost:9000"`
	Policy    string        `yaml:"policy" env:"AUTH_POLICY" env-default:"required"`
	Timeout   time.Duration `yaml:"timeout" env:"AUTH_TIMEOUT" env-default:"5s"`
	// RPS > 0 limita as chamadas ao /userinfo.
	RPS   float64 `yaml:"rps" env:"AUTH_RPS" env-default:"0"`
	Burst int     `yaml:"burst" env:"AUTH_BURST" env-default:"10"`
}

// RateLimitConfig usa Disabled (e não Enabled) porque o default do cleanenv
// sobrescreveria um "false" vindo do arquivo.
type RateLimitConfig struct {
	Disabled     bool          `yaml:"disabled" env:"RATE_DISABLED"`
	Limit        int           `yaml:"limit" env:"RATE_LIMIT" env-default:"100"`
	Window       time.Duration `yaml:"window" env:"RATE_WINDOW" env-default:"1m"`
	KeyHeader    string        `yaml:"key_header" env:"RATE_KEY_HEADER"`
	TrustXFF     bool          `yaml:"trust_xff" env:"TRUST_XFF"`
	AddHeaders   bool          `yaml:"add_headers" env:"ADD_RATELIMIT_HEADERS"`
	Store        string        `yaml:"store" env:"RATE_STORE" env-default:"memory"`
	CleanupEvery time.Duration `yaml:"cleanup_every" env:"RATE_CLEANUP_EVERY" env-default:"2m"`
	RedisPrefix  string        `yaml:"redis_prefix" env:"RATE_REDIS_PREFIX" env-default:"ratelimit:window"`
}

type ConcurrencyConfig struct {
	Max            int           `yaml:"max" env:"CONCURRENCY_MAX" env-default:"100"`
	AcquireTimeout time.Duration `yaml:"acquire_timeout" env:"CONCURRENCY_TIMEOUT" env-default:"0s"`
}

type CORSConfig struct {
	AllowOrigin  string   `yaml:"allow_origin" env:"CORS_ALLOW_ORIGIN" env-default:"*"`
	AllowMethods []string `yaml:"allow_methods" env:"CORS_ALLOW_METHODS" env-default:"GET,POST,PUT,DELETE,OPTIONS"`
	AllowHeaders []string `yaml:"allow_headers" env:"CORS_ALLOW_HEADERS" env-default:"Content-Type,Authorization"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr" env:"REDIS_ADDR"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
}

// StatsConfig liga o recorder Redis. O Prometheus está sempre ativo.
type StatsConfig struct {
	RedisEnabled bool          `yaml:"redis_enabled" env:"STATS_REDIS_ENABLED"`
	Prefix       string        `yaml:"prefix" env:"STATS_PREFIX" env-default:"gateway:stats"`
	TTL          time.Duration `yaml:"ttl" env:"STATS_TTL" env-default:"24h"`
	Bucket       string        `yaml:"bucket" env:"STATS_BUCKET" env-default:"minute"`
	TrackKeys    bool          `yaml:"track_keys" env:"STATS_TRACK_KEYS"`
}

// UsesRedis diz se algum componente precisa do cliente Redis.
func (c *Config) UsesRedis() bool {
	return c.RateLimit.Store == StoreRedis || c.Stats.RedisEnabled
}

// AuthPolicy interpreta Auth.Policy.
func (c *Config) AuthPolicy() (domain.Policy, error) {
	return domain.ParsePolicy(c.Auth.Policy)
}

func Load(path string) (*Config, error) {
	var cfg Config

	readFile := func(p string) (*Config, error) {
		if _, err := os.Stat(p); err != nil {
			return nil, fmt.Errorf("config file %q stat failed: %w", p, err)
		}
		// ReadConfig já aplica env por cima do arquivo.
		if err := cleanenv.ReadConfig(p, &cfg); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		return &cfg, nil
	}

	if path != "" {
		return readFile(path)
	}
	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		return readFile(envPath)
	}
	if _, err := os.Stat("local.yaml"); err == nil {
		return readFile("local.yaml")
	}

	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to read env: %w", err)
	}
	return &cfg, nil
}

// Validate confere o que todos os binários precisam.
func (c *Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.Auth.ServerURL) == "" {
		errs = append(errs, errors.New("AUTH_SERVER_URL is required"))
	}
	if _, err := c.AuthPolicy(); err != nil {
		errs = append(errs, fmt.Errorf("AUTH_POLICY: %w", err))
	}
	if !c.RateLimit.Disabled {
		if c.RateLimit.Limit <= 0 {
			errs = append(errs, errors.New("RATE_LIMIT must be > 0"))
		}
		if c.RateLimit.Window <= 0 {
			errs = append(errs, errors.New("RATE_WINDOW must be > 0"))
		}
	}
	switch c.RateLimit.Store {
	case StoreMemory, StoreRedis:
	default:
		errs = append(errs, fmt.Errorf("RATE_STORE must be %q or %q, got %q", StoreMemory, StoreRedis, c.RateLimit.Store))
	}
	if c.Concurrency.Max < 0 {
		errs = append(errs, errors.New("CONCURRENCY_MAX must be >= 0"))
	}
	if c.UsesRedis() && strings.TrimSpace(c.Redis.Addr) == "" {
		errs = append(errs, errors.New("REDIS_ADDR is required when RATE_STORE=redis or STATS_REDIS_ENABLED=true"))
	}
	return errors.Join(errs...)
}

// ValidateGateway acrescenta o que só o proxy exige.
func (c *Config) ValidateGateway() error {
	err := c.Validate()
	if strings.TrimSpace(c.Upstream.URL) == "" {
		err = errors.Join(err, errors.New("UPSTREAM_URL is required"))
	}
	return err
}
