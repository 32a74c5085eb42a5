package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"

	"auth-gateway/client"
)

type fakeIdP struct {
	*httptest.Server
	deny      atomic.Bool
	revoked   atomic.Bool
	refreshes atomic.Int32
}

func newFakeIdP(t *testing.T) *fakeIdP {
	t.Helper()
	p := &fakeIdP{}
	valid := func(r *http.Request) bool {
		switch r.Header.Get("Authorization") {
		case "Bearer at-1":
			return !p.revoked.Load()
		case "Bearer at-2":
			return true
		}
		return false
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /authorize", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		back, err := url.Parse(q.Get("redirect_uri"))
		if err != nil || q.Get("code_challenge") == "" {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		v := url.Values{"state": {q.Get("state")}}
		if p.deny.Load() {
			v.Set("error", "access_denied")
		} else {
			v.Set("code", "good-code")
		}
		back.RawQuery = v.Encode()
		http.Redirect(w, r, back.String(), http.StatusFound)
	})
	mux.HandleFunc("POST /token", func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.PostForm.Get("grant_type") == "authorization_code" &&
			r.PostForm.Get("code") == "good-code" && r.PostForm.Get("code_verifier") != "":
			_, _ = io.WriteString(w, `{"access_token":"at-1","refresh_token":"rt-1","token_type":"Bearer","expires_in":3600}`)
		case r.PostForm.Get("grant_type") == "refresh_token" && r.PostForm.Get("refresh_token") == "rt-1":
			p.refreshes.Add(1)
			_, _ = io.WriteString(w, `{"access_token":"at-2","refresh_token":"rt-2","token_type":"Bearer","expires_in":3600}`)
		default:
			w.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(w, `{"error":"invalid_grant"}`)
		}
	})
	mux.HandleFunc("GET /userinfo", func(w http.ResponseWriter, r *http.Request) {
		if !valid(r) {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = io.WriteString(w, `{"id":"u-customer","email":"ana@shop.test","role":"customer"}`)
	})
	mux.HandleFunc("/api/data", func(w http.ResponseWriter, r *http.Request) {
		if !valid(r) {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = io.WriteString(w, `{"ok":true}`)
	})

	p.Server = httptest.NewServer(mux)
	t.Cleanup(p.Close)
	return p
}

// browserOpener faz o papel do navegador: segue o authorize até o callback.
func browserOpener(u string) error {
	go func() {
		resp, err := http.Get(u)
		if err == nil {
			_, _ = io.Copy(io.Discard, resp.Body)
			_ = resp.Body.Close()
		}
	}()
	return nil
}

func runCLI(a *app, args ...string) (string, error) {
	root := newRootCmd(a)
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func baseArgs(idp *fakeIdP, storeArgs ...string) []string {
	return append([]string{
		"--auth-server", idp.URL,
		"--redirect", "http://127.0.0.1:0/callback",
	}, storeArgs...)
}

func TestAuthctl_FullSession(t *testing.T) {
	idp := newFakeIdP(t)
	a := &app{opener: browserOpener}
	flags := baseArgs(idp, "--store", "file", "--store-path", filepath.Join(t.TempDir(), "session.json"))
	cli := func(args ...string) (string, error) {
		return runCLI(a, append(args, flags...)...)
	}

	out, err := cli("login", "--timeout", "5s")
	require.NoError(t, err)
	assert.Equal(t, "Logged in as ana@shop.test\n", out)

	out, err = cli("status")
	require.NoError(t, err)
	assert.Contains(t, out, "state: authenticated")
	assert.Contains(t, out, "refresh token: true")
	assert.Contains(t, out, "user: ana@shop.test (customer)")

	out, err = cli("whoami")
	require.NoError(t, err)
	var id client.Identity
	require.NoError(t, json.Unmarshal([]byte(out), &id))
	assert.Equal(t, "u-customer", id.ID)

	out, err = cli("fetch", idp.URL+"/api/data")
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, out)
	assert.EqualValues(t, 0, idp.refreshes.Load())

	// at-1 passa a ser recusado: o fetch renova uma vez e repete.
	idp.revoked.Store(true)
	out, err = cli("fetch", idp.URL+"/api/data")
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, out)
	assert.EqualValues(t, 1, idp.refreshes.Load())

	out, err = cli("logout")
	require.NoError(t, err)
	assert.Equal(t, "Logged out\n", out)

	out, err = cli("status")
	require.NoError(t, err)
	assert.Equal(t, "state: anonymous\n", out)

	_, err = cli("fetch", idp.URL+"/api/data")
	require.ErrorIs(t, err, client.ErrNotAuthenticated)
}

func TestAuthctl_LoginDenied(t *testing.T) {
	idp := newFakeIdP(t)
	idp.deny.Store(true)
	a := &app{opener: browserOpener}

	args := append([]string{"login", "--timeout", "5s"}, baseArgs(idp, "--store", "memory")...)
	_, err := runCLI(a, args...)
	require.ErrorIs(t, err, client.ErrAuthorizationDenied)
}

func TestAuthctl_KeyringStore(t *testing.T) {
	keyring.MockInit()
	idp := newFakeIdP(t)
	a := &app{opener: browserOpener}
	flags := baseArgs(idp, "--store", "keyring", "--keyring-service", "authctl-test")

	_, err := runCLI(a, append([]string{"login", "--timeout", "5s"}, flags...)...)
	require.NoError(t, err)

	out, err := runCLI(a, append([]string{"status"}, flags...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "state: authenticated")

	out, err = runCLI(a, append([]string{"refresh"}, flags...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "Token refreshed")
	assert.EqualValues(t, 1, idp.refreshes.Load())
}

func TestAuthctl_Errors(t *testing.T) {
	a := &app{}

	_, err := runCLI(a, "status", "--store", "s3")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown store "s3"`)

	_, err = runCLI(a, "fetch")
	require.Error(t, err)

	_, err = runCLI(a, "whoami", "--store", "memory")
	require.ErrorIs(t, err, client.ErrNotAuthenticated)

	_, err = runCLI(a, "fetch", "http://127.0.0.1:1/x", "--store", "memory", "-H", "broken")
	require.Error(t, err)
}
