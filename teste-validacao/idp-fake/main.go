package main

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"

	"auth-gateway/middleware/auth/domain"
)

// IdP falso para testes manuais do gateway e do authctl.
// Tokens estáticos: admin-token, vendor-token e customer-token.
// O /authorize aprova na hora; ?user=admin|vendor|customer escolhe o usuário.

var users = map[string]domain.Identity{
	"admin":    {ID: "u-admin", Email: "admin@shop.test", FirstName: "Ada", Role: domain.RoleAdmin},
	"vendor":   {ID: "v-1", Email: "vendor@shop.test", FirstName: "Vera", Role: domain.RoleVendor},
	"customer": {ID: "u-customer", Email: "ana@shop.test", FirstName: "Ana", Role: domain.RoleCustomer},
}

type idp struct {
	mu      sync.Mutex
	codes   map[string]string // code -> user
	access  map[string]string // access token -> user
	refresh map[string]string // refresh token -> user
	log     *slog.Logger
}

func newIdP(log *slog.Logger) *idp {
	p := &idp{
		codes:   map[string]string{},
		access:  map[string]string{},
		refresh: map[string]string{},
		log:     log,
	}
	for name := range users {
		p.access[name+"-token"] = name
	}
	return p
}

func randomToken() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (p *idp) authorize(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	redirect, err := url.Parse(q.Get("redirect_uri"))
	if err != nil || redirect.Scheme == "" {
		http.Error(w, "invalid redirect_uri", http.StatusBadRequest)
		return
	}
	user := q.Get("user")
	if user == "" {
		user = "customer"
	}

	back := redirect.Query()
	back.Set("state", q.Get("state"))
	if _, ok := users[user]; !ok {
		back.Set("error", "access_denied")
	} else {
		code := randomToken()
		p.mu.Lock()
		p.codes[code] = user
		p.mu.Unlock()
		back.Set("code", code)
	}
	redirect.RawQuery = back.Encode()

	p.log.Info("authorize", "user", user, "client_id", q.Get("client_id"))
	http.Redirect(w, r, redirect.String(), http.StatusFound)
}

func (p *idp) token(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_request"})
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	var user string
	switch r.PostForm.Get("grant_type") {
	case "authorization_code":
		code := r.PostForm.Get("code")
		user = p.codes[code]
		delete(p.codes, code)
	case "refresh_token":
		rt := r.PostForm.Get("refresh_token")
		user = p.refresh[rt]
		delete(p.refresh, rt)
	}
	if user == "" {
		p.log.Warn("token rejected", "grant_type", r.PostForm.Get("grant_type"))
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_grant"})
		return
	}

	at, rt := randomToken(), randomToken()
	p.access[at] = user
	p.refresh[rt] = user

	p.log.Info("token issued", "user", user, "grant_type", r.PostForm.Get("grant_type"))
	writeJSON(w, http.StatusOK, map[string]any{
		"access_token":  at,
		"refresh_token": rt,
		"token_type":    "Bearer",
		"expires_in":    300,
	})
}

func (p *idp) userinfo(w http.ResponseWriter, r *http.Request) {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	p.mu.Lock()
	user := p.access[strings.TrimSpace(token)]
	p.mu.Unlock()

	if !ok || user == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid_token"})
		return
	}
	writeJSON(w, http.StatusOK, users[user])
}

func main() {
	log := slog.New(slog.NewTextHandler(os.Stdout, nil))
	addr := ":9000"
	if v := os.Getenv("IDP_ADDR"); v != "" {
		addr = v
	}

	p := newIdP(log)
	mux := http.NewServeMux()
	mux.HandleFunc("GET /authorize", p.authorize)
	mux.HandleFunc("POST /token", p.token)
	mux.HandleFunc("GET /userinfo", p.userinfo)

	log.Info("fake idp listening", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
}
