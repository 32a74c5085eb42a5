package infra

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"auth-gateway/middleware/auth/domain"
)

const (
	DefaultTimeout = 5 * time.Second
	maxBodyBytes   = 1 << 20
)

// UserInfoValidator valida tokens com um GET {authServer}/userinfo.
// Não guarda cache: toda validação vai ao IdP.
type UserInfoValidator struct {
	endpoint string
	client   *http.Client
	timeout  time.Duration
	limiter  *rate.Limiter
	logger   *slog.Logger
}

type Option func(*UserInfoValidator)

func WithHTTPClient(c *http.Client) Option {
	return func(v *UserInfoValidator) { v.client = c }
}

// WithTimeout limita cada chamada ao IdP. d <= 0 mantém o padrão.
func WithTimeout(d time.Duration) Option {
	return func(v *UserInfoValidator) {
		if d > 0 {
			v.timeout = d
		}
	}
}

// WithRateLimit protege o IdP: no máximo rps chamadas por segundo com rajada burst.
// rps <= 0 desliga.
func WithRateLimit(rps float64, burst int) Option {
	return func(v *UserInfoValidator) {
		if rps <= 0 {
			v.limiter = nil
			return
		}
		v.limiter = rate.NewLimiter(rate.Limit(rps), max(burst, 1))
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(v *UserInfoValidator) { v.logger = l }
}

// NewUserInfoValidator recebe a URL base do IdP (sem /userinfo).
func NewUserInfoValidator(authServerURL string, opts ...Option) *UserInfoValidator {
	v := &UserInfoValidator{
		endpoint: strings.TrimRight(authServerURL, "/") + "/userinfo",
		client:   http.DefaultClient,
		timeout:  DefaultTimeout,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

func (v *UserInfoValidator) Endpoint() string { return v.endpoint }

// Validate implementa domain.Validator: qualquer falha vira nil.
func (v *UserInfoValidator) Validate(ctx context.Context, token string) *domain.Identity {
	id, err := v.Lookup(ctx, token)
	if err != nil {
		v.logger.DebugContext(ctx, "token validation failed", "error", err)
		return nil
	}
	return id
}

// Lookup faz a mesma chamada que Validate mas devolve a causa:
// domain.ErrInvalidCredential (IdP respondeu, mas recusou) ou
// domain.ErrUpstreamUnavailable (rede, timeout, 5xx, limiter).
func (v *UserInfoValidator) Lookup(ctx context.Context, token string) (*domain.Identity, error) {
	if token == "" {
		return nil, domain.ErrMissingCredential
	}

	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	if v.limiter != nil {
		if err := v.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("userinfo limiter: %w: %v", domain.ErrUpstreamUnavailable, err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("userinfo request: %w: %v", domain.ErrUpstreamUnavailable, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := v.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("userinfo call: %w: %v", domain.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()
	body := io.LimitReader(resp.Body, maxBodyBytes)

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode >= 500:
		_, _ = io.Copy(io.Discard, body)
		return nil, fmt.Errorf("userinfo status %d: %w", resp.StatusCode, domain.ErrUpstreamUnavailable)
	default:
		_, _ = io.Copy(io.Discard, body)
		return nil, fmt.Errorf("userinfo status %d: %w", resp.StatusCode, domain.ErrInvalidCredential)
	}

	var id domain.Identity
	if err := json.NewDecoder(body).Decode(&id); err != nil {
		return nil, fmt.Errorf("userinfo decode: %w: %v", domain.ErrInvalidCredential, err)
	}
	if id.ID == "" {
		return nil, fmt.Errorf("userinfo without id: %w", domain.ErrInvalidCredential)
	}
	return &id, nil
}
