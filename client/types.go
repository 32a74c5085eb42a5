package client

import (
	"context"
	"time"

	"auth-gateway/middleware/auth/domain"
)

// Identity é o mesmo formato que o gateway recebe do /userinfo.
type Identity = domain.Identity

type TokenPair struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Storage é o slot chave/valor onde o Manager persiste o estado.
// Implementações em client/store.
type Storage interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// Chaves usadas no Storage.
const (
	KeyTokens       = "auth_tokens"
	KeyUser         = "auth_user"
	KeyState        = "oauth_state"
	KeyPKCEVerifier = "oauth_pkce_verifier"
)

type State int

const (
	StateAnonymous State = iota
	StateAuthenticated
	StateRefreshing
)

func (s State) String() string {
	switch s {
	case StateAuthenticated:
		return "authenticated"
	case StateRefreshing:
		return "refreshing"
	default:
		return "anonymous"
	}
}

// Opener abre a URL de autorização para o usuário (normalmente o navegador).
type Opener func(url string) error
