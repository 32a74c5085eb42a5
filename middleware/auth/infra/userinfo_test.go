package infra

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"auth-gateway/middleware/auth/domain"
)

func idpServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestUserInfoValidator_ValidToken(t *testing.T) {
	srv := idpServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/userinfo", r.URL.Path)
		assert.Equal(t, http.MethodGet, r.Method)
		if r.Header.Get("Authorization") != "Bearer good" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(domain.Identity{ID: "u1", Email: "a@b.c", Role: "vendor", FirstName: "Ana"})
	})

	v := NewUserInfoValidator(srv.URL + "/")
	id := v.Validate(context.Background(), "good")
	require.NotNil(t, id)
	assert.Equal(t, "u1", id.ID)
	assert.Equal(t, "vendor", id.Role)
	assert.Equal(t, "Ana", id.FirstName)
}

func TestUserInfoValidator_RejectedTokenIsAbsent(t *testing.T) {
	srv := idpServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	v := NewUserInfoValidator(srv.URL)
	assert.Nil(t, v.Validate(context.Background(), "expired-garbage"))

	_, err := v.Lookup(context.Background(), "expired-garbage")
	assert.True(t, errors.Is(err, domain.ErrInvalidCredential), "got %v", err)
}

func TestUserInfoValidator_ServerErrorIsUpstreamUnavailable(t *testing.T) {
	srv := idpServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := NewUserInfoValidator(srv.URL).Lookup(context.Background(), "tok")
	assert.ErrorIs(t, err, domain.ErrUpstreamUnavailable)
}

func TestUserInfoValidator_NetworkFailureIsAbsent(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	v := NewUserInfoValidator(url)
	assert.Nil(t, v.Validate(context.Background(), "tok"))

	_, err := v.Lookup(context.Background(), "tok")
	assert.ErrorIs(t, err, domain.ErrUpstreamUnavailable)
}

func TestUserInfoValidator_TimeoutIsAbsent(t *testing.T) {
	block := make(chan struct{})
	srv := idpServer(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-block:
		case <-r.Context().Done():
		}
	})
	defer close(block)

	v := NewUserInfoValidator(srv.URL, WithTimeout(30*time.Millisecond))
	start := time.Now()
	_, err := v.Lookup(context.Background(), "tok")
	assert.ErrorIs(t, err, domain.ErrUpstreamUnavailable)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestUserInfoValidator_BadPayloads(t *testing.T) {
	cases := map[string]string{
		"not json":   "<html>",
		"missing id": `{"email":"x@y.z"}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			srv := idpServer(t, func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(body))
			})
			v := NewUserInfoValidator(srv.URL)
			_, err := v.Lookup(context.Background(), "tok")
			assert.ErrorIs(t, err, domain.ErrInvalidCredential)
			assert.Nil(t, v.Validate(context.Background(), "tok"))
		})
	}
}

func TestUserInfoValidator_EmptyTokenSkipsNetwork(t *testing.T) {
	var hits atomic.Int32
	srv := idpServer(t, func(w http.ResponseWriter, r *http.Request) { hits.Add(1) })

	_, err := NewUserInfoValidator(srv.URL).Lookup(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrMissingCredential)
	assert.Zero(t, hits.Load())
}

func TestUserInfoValidator_RateLimitExhaustedFailsClosed(t *testing.T) {
	var hits atomic.Int32
	srv := idpServer(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(`{"id":"u1"}`))
	})

	// 1 chamada a cada ~17min: a segunda não cabe no timeout
	v := NewUserInfoValidator(srv.URL, WithRateLimit(0.001, 1), WithTimeout(50*time.Millisecond))
	require.NotNil(t, v.Validate(context.Background(), "tok"))

	_, err := v.Lookup(context.Background(), "tok")
	assert.ErrorIs(t, err, domain.ErrUpstreamUnavailable)
	assert.Equal(t, int32(1), hits.Load())
}
