package client

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/browser"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"

	"auth-gateway/client/store"
	"auth-gateway/middleware/auth/infra"
)

// Config descreve o cliente OAuth registrado no IdP.
type Config struct {
	AuthServerURL string
	ClientID      string
	// ClientSecret fica vazio em clientes públicos (CLI, SPA).
	ClientSecret string
	RedirectURL  string
	Scopes       []string
}

// refreshTimeout limita a troca do refresh token, que não segue o ctx de
// nenhum chamador.
const refreshTimeout = 30 * time.Second

type Manager struct {
	oauth    *oauth2.Config
	userinfo *infra.UserInfoValidator
	storage  Storage
	http     *http.Client
	opener   Opener
	now      func() time.Time
	pkce     bool
	logger   *slog.Logger

	// mu serializa as sequências ler-alterar-gravar no storage.
	mu         sync.Mutex
	flight     singleflight.Group
	refreshing atomic.Bool
}

type Option func(*Manager)

func WithStorage(s Storage) Option {
	return func(m *Manager) { m.storage = s }
}

func WithHTTPClient(c *http.Client) Option {
	return func(m *Manager) { m.http = c }
}

// WithOpener troca o navegador padrão. nil faz Login só devolver a URL.
func WithOpener(o Opener) Option {
	return func(m *Manager) { m.opener = o }
}

func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithPKCE manda code_challenge (S256) no authorize e code_verifier na troca.
func WithPKCE() Option {
	return func(m *Manager) { m.pkce = true }
}

func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

func NewManager(cfg Config, opts ...Option) (*Manager, error) {
	base := strings.TrimRight(cfg.AuthServerURL, "/")
	if base == "" {
		return nil, errors.New("client: AuthServerURL is required")
	}
	if cfg.ClientID == "" {
		return nil, errors.New("client: ClientID is required")
	}

	m := &Manager{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       cfg.Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:  base + "/authorize",
				TokenURL: base + "/token",
				// client_id vai no corpo do form
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		storage: store.NewMemory(),
		http:    http.DefaultClient,
		opener:  browser.OpenURL,
		now:     time.Now,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	m.userinfo = infra.NewUserInfoValidator(base,
		infra.WithHTTPClient(m.http),
		infra.WithLogger(m.logger),
	)
	return m, nil
}

// Login grava um state novo e devolve a URL de autorização, abrindo-a com o
// Opener configurado.
func (m *Manager) Login(ctx context.Context) (string, error) {
	nonce := uuid.NewString()

	var opts []oauth2.AuthCodeOption
	m.mu.Lock()
	err := m.storage.Set(ctx, KeyState, nonce)
	if err == nil && m.pkce {
		verifier := oauth2.GenerateVerifier()
		err = m.storage.Set(ctx, KeyPKCEVerifier, verifier)
		opts = append(opts, oauth2.S256ChallengeOption(verifier))
	}
	m.mu.Unlock()
	if err != nil {
		return "", fmt.Errorf("persist login state: %w", err)
	}

	authURL := m.oauth.AuthCodeURL(nonce, opts...)
	if m.opener != nil {
		if err := m.opener(authURL); err != nil {
			return authURL, fmt.Errorf("open authorization url: %w", err)
		}
	}
	return authURL, nil
}

// HandleCallback processa o redirect do IdP (URL completa ou só a query).
//
// O state guardado é apagado antes da comparação, dê certo ou não; um
// callback repetido sempre falha.
func (m *Manager) HandleCallback(ctx context.Context, callbackURL string) error {
	u, err := url.Parse(callbackURL)
	if err != nil {
		return fmt.Errorf("parse callback url: %w", err)
	}
	q := u.Query()

	expected, hasState, verifier, err := m.consumeLoginState(ctx)
	if err != nil {
		return err
	}

	if e := q.Get("error"); e != "" {
		if desc := q.Get("error_description"); desc != "" {
			e += ": " + desc
		}
		return fmt.Errorf("%w: %s", ErrAuthorizationDenied, e)
	}
	got := q.Get("state")
	if !hasState || got == "" || subtle.ConstantTimeCompare([]byte(got), []byte(expected)) != 1 {
		return ErrStateMismatch
	}
	code := q.Get("code")
	if code == "" {
		return fmt.Errorf("%w: missing code", ErrAuthorizationDenied)
	}

	var opts []oauth2.AuthCodeOption
	if verifier != "" {
		opts = append(opts, oauth2.VerifierOption(verifier))
	}
	tok, err := m.oauth.Exchange(m.oauthContext(ctx), code, opts...)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTokenExchange, err)
	}

	pair := m.pairFromToken(tok, "")
	m.mu.Lock()
	err = m.saveTokens(ctx, pair)
	m.mu.Unlock()
	if err != nil {
		return err
	}

	// Os tokens já valem; sem identidade o CurrentUser busca de novo depois.
	id, err := m.userinfo.Lookup(ctx, pair.AccessToken)
	if err != nil {
		m.logger.WarnContext(ctx, "fetch identity after login failed", "error", err)
		return nil
	}
	if err := m.cacheUser(ctx, id); err != nil {
		m.logger.WarnContext(ctx, "cache identity failed", "error", err)
	}
	return nil
}

func (m *Manager) consumeLoginState(ctx context.Context) (state string, ok bool, verifier string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok, err = m.storage.Get(ctx, KeyState)
	if err != nil {
		return "", false, "", fmt.Errorf("read login state: %w", err)
	}
	verifier, _, err = m.storage.Get(ctx, KeyPKCEVerifier)
	if err != nil {
		return "", false, "", fmt.Errorf("read pkce verifier: %w", err)
	}
	if err := errors.Join(
		m.storage.Delete(ctx, KeyState),
		m.storage.Delete(ctx, KeyPKCEVerifier),
	); err != nil {
		return "", false, "", fmt.Errorf("clear login state: %w", err)
	}
	return state, ok, verifier, nil
}

// CurrentUser busca a identidade no IdP. Se o access token for recusado,
// renova uma única vez e tenta de novo uma única vez.
func (m *Manager) CurrentUser(ctx context.Context) (*Identity, error) {
	pair, ok, err := m.Tokens(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotAuthenticated
	}

	id, err := m.userinfo.Lookup(ctx, pair.AccessToken)
	if err != nil {
		m.logger.DebugContext(ctx, "userinfo rejected stored token", "error", err)
		if rerr := m.refreshAfter(ctx, pair.AccessToken); rerr != nil {
			return nil, fmt.Errorf("%w: %v", ErrNotAuthenticated, rerr)
		}
		pair, ok, err = m.Tokens(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ErrNotAuthenticated
		}
		if id, err = m.userinfo.Lookup(ctx, pair.AccessToken); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrNotAuthenticated, err)
		}
	}

	if err := m.cacheUser(ctx, id); err != nil {
		m.logger.WarnContext(ctx, "cache identity failed", "error", err)
	}
	return id, nil
}

// CachedUser devolve a última identidade guardada, sem ir à rede.
func (m *Manager) CachedUser(ctx context.Context) (*Identity, bool, error) {
	raw, ok, err := m.storage.Get(ctx, KeyUser)
	if err != nil || !ok {
		return nil, false, err
	}
	var id Identity
	if err := json.Unmarshal([]byte(raw), &id); err != nil {
		return nil, false, fmt.Errorf("decode cached identity: %w", err)
	}
	return &id, true, nil
}

// Refresh troca o refresh token por um par novo. Em caso de falha o par
// atual fica como estava.
func (m *Manager) Refresh(ctx context.Context) error {
	return m.refreshAfter(ctx, "")
}

// refreshAfter renova por causa de um 401 recebido com staleToken.
// Chamadas simultâneas compartilham a mesma renovação; se o token guardado já
// não é staleToken, outra chamada renovou e não há o que fazer.
//
// A renovação roda desacoplada do ctx de quem a iniciou (limitada por
// refreshTimeout); cada chamador só espera enquanto o próprio ctx vale.
func (m *Manager) refreshAfter(ctx context.Context, staleToken string) error {
	ch := m.flight.DoChan("refresh", func() (any, error) {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), refreshTimeout)
		defer cancel()

		pair, ok, err := m.Tokens(ctx)
		if err != nil {
			return nil, err
		}
		if staleToken != "" && ok && pair.AccessToken != staleToken {
			return nil, nil
		}
		if !ok || pair.RefreshToken == "" {
			return nil, ErrNoRefreshToken
		}

		m.refreshing.Store(true)
		defer m.refreshing.Store(false)

		src := m.oauth.TokenSource(m.oauthContext(ctx), &oauth2.Token{RefreshToken: pair.RefreshToken})
		tok, err := src.Token()
		if err != nil {
			m.logger.WarnContext(ctx, "token refresh failed", "error", err)
			return nil, fmt.Errorf("%w: %v", ErrTokenExchange, err)
		}

		m.mu.Lock()
		defer m.mu.Unlock()
		// Logout (ou outro login) durante a renovação vence.
		current, ok, err := m.loadTokens(ctx)
		if err != nil {
			return nil, err
		}
		if !ok || current.RefreshToken != pair.RefreshToken {
			return nil, ErrNotAuthenticated
		}
		return nil, m.saveTokens(ctx, m.pairFromToken(tok, pair.RefreshToken))
	})

	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// IsAuthenticated é local: existe par guardado e ainda não passou de ExpiresAt.
func (m *Manager) IsAuthenticated(ctx context.Context) bool {
	pair, ok, err := m.Tokens(ctx)
	if err != nil || !ok {
		return false
	}
	return m.now().Before(pair.ExpiresAt)
}

func (m *Manager) State(ctx context.Context) State {
	if m.refreshing.Load() {
		return StateRefreshing
	}
	if m.IsAuthenticated(ctx) {
		return StateAuthenticated
	}
	return StateAnonymous
}

// Do envia req com o bearer token guardado. Num 401, renova uma vez e repete a
// requisição uma vez com o token novo. Se a renovação falhar, devolve o 401
// original.
func (m *Manager) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	pair, ok, err := m.Tokens(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotAuthenticated
	}

	if req.Body != nil && req.Body != http.NoBody && req.GetBody == nil {
		if err := bufferBody(req); err != nil {
			return nil, err
		}
	}

	resp, err := m.http.Do(withBearer(req, pair.AccessToken))
	if err != nil || resp.StatusCode != http.StatusUnauthorized {
		return resp, err
	}

	if err := m.refreshAfter(ctx, pair.AccessToken); err != nil {
		m.logger.DebugContext(ctx, "refresh after 401 failed", "error", err)
		return resp, nil
	}
	fresh, ok, err := m.Tokens(ctx)
	if err != nil || !ok {
		return resp, nil
	}

	retry := withBearer(req, fresh.AccessToken)
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return resp, nil
		}
		retry.Body = body
	}

	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
	return m.http.Do(retry)
}

// Logout apaga tokens, identidade e qualquer login pendente. Não vai à rede.
func (m *Manager) Logout(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	return errors.Join(
		m.storage.Delete(ctx, KeyTokens),
		m.storage.Delete(ctx, KeyUser),
		m.storage.Delete(ctx, KeyState),
		m.storage.Delete(ctx, KeyPKCEVerifier),
	)
}

// Tokens devolve o par guardado.
func (m *Manager) Tokens(ctx context.Context) (TokenPair, bool, error) {
	return m.loadTokens(ctx)
}

func (m *Manager) loadTokens(ctx context.Context) (TokenPair, bool, error) {
	raw, ok, err := m.storage.Get(ctx, KeyTokens)
	if err != nil {
		return TokenPair{}, false, fmt.Errorf("read tokens: %w", err)
	}
	if !ok {
		return TokenPair{}, false, nil
	}
	var pair TokenPair
	if err := json.Unmarshal([]byte(raw), &pair); err != nil {
		return TokenPair{}, false, fmt.Errorf("decode tokens: %w", err)
	}
	if pair.AccessToken == "" {
		return TokenPair{}, false, nil
	}
	return pair, true, nil
}

// saveTokens exige m.mu.
func (m *Manager) saveTokens(ctx context.Context, pair TokenPair) error {
	raw, err := json.Marshal(pair)
	if err != nil {
		return fmt.Errorf("encode tokens: %w", err)
	}
	if err := m.storage.Set(ctx, KeyTokens, string(raw)); err != nil {
		return fmt.Errorf("persist tokens: %w", err)
	}
	return nil
}

func (m *Manager) cacheUser(ctx context.Context, id *Identity) error {
	raw, err := json.Marshal(id)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.storage.Set(ctx, KeyUser, string(raw))
}

// pairFromToken calcula ExpiresAt com o relógio do Manager. Sem expires_in na
// resposta, usa o Expiry do oauth2; sem nenhum dos dois, o par nasce expirado
// para IsAuthenticated (Do continua funcionando).
func (m *Manager) pairFromToken(tok *oauth2.Token, prevRefresh string) TokenPair {
	pair := TokenPair{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
	}
	if pair.RefreshToken == "" {
		pair.RefreshToken = prevRefresh
	}
	switch {
	case tok.ExpiresIn > 0:
		pair.ExpiresAt = m.now().Add(time.Duration(tok.ExpiresIn) * time.Second)
	case !tok.Expiry.IsZero():
		pair.ExpiresAt = tok.Expiry
	}
	return pair
}

func (m *Manager) oauthContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, m.http)
}

func withBearer(req *http.Request, token string) *http.Request {
	r := req.Clone(req.Context())
	r.Header.Set("Authorization", "Bearer "+token)
	return r
}

func bufferBody(req *http.Request) error {
	data, err := io.ReadAll(req.Body)
	_ = req.Body.Close()
	if err != nil {
		return fmt.Errorf("read request body: %w", err)
	}
	req.Body = io.NopCloser(bytes.NewReader(data))
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(data)), nil
	}
	return nil
}
