package auth

import (
	"context"
	"net/http"
	"strings"

	"auth-gateway/middleware/auth/domain"
)

type ctxKeyIdentity struct{}

// WithIdentity guarda a identidade no contexto.
func WithIdentity(ctx context.Context, id *domain.Identity) context.Context {
	return context.WithValue(ctx, ctxKeyIdentity{}, id)
}

// IdentityFromContext devolve a identidade resolvida pelo middleware, ou nil.
func IdentityFromContext(ctx context.Context) *domain.Identity {
	id, _ := ctx.Value(ctxKeyIdentity{}).(*domain.Identity)
	return id
}

// BearerToken lê "Authorization: Bearer <token>". O esquema não diferencia
// maiúsculas; qualquer outro formato vira "".
func BearerToken(r *http.Request) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(r.Header.Get("Authorization")), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
