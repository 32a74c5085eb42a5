package domain

import "context"

// Identity é o usuário devolvido pelo endpoint /userinfo do IdP.
// O gateway só lê; nunca escreve de volta.
type Identity struct {
	ID        string `json:"id"`
	Email     string `json:"email,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	AvatarURL string `json:"avatar_url,omitempty"`
	Role      string `json:"role,omitempty"`
}

// Validator transforma um bearer token em Identity.
//
// Validate devolve nil para qualquer falha (token inválido, IdP fora, timeout).
// Quem chama trata nil como "não autenticado", não como erro.
type Validator interface {
	Validate(ctx context.Context, token string) *Identity
}
