package domain

import (
	"errors"
	"net/http"
)

var (
	ErrMissingCredential   = errors.New("missing credential")
	ErrInvalidCredential   = errors.New("invalid credential")
	ErrInsufficientRole    = errors.New("insufficient role")
	ErrRateLimited         = errors.New("rate limited")
	ErrUpstreamUnavailable = errors.New("identity provider unavailable")
)

// StatusFor traduz os erros do domínio para status HTTP.
// IdP indisponível fecha a porta (401), igual a credencial inválida.
func StatusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrMissingCredential),
		errors.Is(err, ErrInvalidCredential),
		errors.Is(err, ErrUpstreamUnavailable):
		return http.StatusUnauthorized
	case errors.Is(err, ErrInsufficientRole):
		return http.StatusForbidden
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
