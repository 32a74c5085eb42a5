package client

import "errors"

var (
	ErrNotAuthenticated    = errors.New("not authenticated")
	ErrNoRefreshToken      = errors.New("no refresh token")
	ErrStateMismatch       = errors.New("oauth state mismatch")
	ErrAuthorizationDenied = errors.New("authorization denied")
	ErrTokenExchange       = errors.New("token exchange failed")
)
