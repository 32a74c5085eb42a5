package application

import (
	"context"

	"auth-gateway/middleware/auth/domain"
)

// Gate decide o acesso de uma requisição a partir do bearer token já extraído.
type Gate struct {
	Validator domain.Validator
}

func NewGate(v domain.Validator) *Gate {
	return &Gate{Validator: v}
}

// Required exige um token válido.
func (g *Gate) Required(ctx context.Context, token string) domain.Decision {
	if token == "" {
		return domain.Deny(domain.ErrMissingCredential, domain.ReasonNoToken)
	}
	id := g.validate(ctx, token)
	if id == nil {
		return domain.Deny(domain.ErrInvalidCredential, domain.ReasonInvalid)
	}
	return domain.Decision{Identity: id, Status: domain.StatusOK}
}

// RoleRequired roda Required e depois compara a role por igualdade exata.
// "admin" não passa numa rota que exige "vendor"; para hierarquia use
// domain.HasPermission dentro do handler.
func (g *Gate) RoleRequired(ctx context.Context, token, role string) domain.Decision {
	dec := g.Required(ctx, token)
	if !dec.Allowed() {
		return dec
	}
	if dec.Identity.Role != role {
		return domain.Deny(domain.ErrInsufficientRole, domain.RoleReason(role))
	}
	return dec
}

// Optional nunca falha: sem token ou com token inválido segue como anônimo.
func (g *Gate) Optional(ctx context.Context, token string) domain.Decision {
	if token == "" {
		return domain.Decision{Status: domain.StatusOK}
	}
	return domain.Decision{Identity: g.validate(ctx, token), Status: domain.StatusOK}
}

// Authorize despacha para o modo da policy.
func (g *Gate) Authorize(ctx context.Context, token string, p domain.Policy) domain.Decision {
	switch p.Mode {
	case domain.ModeOptional:
		return g.Optional(ctx, token)
	case domain.ModeRoleRequired:
		return g.RoleRequired(ctx, token, p.Role)
	default:
		return g.Required(ctx, token)
	}
}

func (g *Gate) validate(ctx context.Context, token string) *domain.Identity {
	if g == nil || g.Validator == nil {
		return nil
	}
	return g.Validator.Validate(ctx, token)
}
