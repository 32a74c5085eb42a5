package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"auth-gateway/client"
	"auth-gateway/client/store"
)

// Tipos de storage aceitos em --store.
const (
	storeFile    = "file"
	storeKeyring = "keyring"
	storeMemory  = "memory"
)

type app struct {
	authServer   string
	clientID     string
	clientSecret string
	redirect     string
	storeKind    string
	storePath    string
	service      string
	pkce         bool
	debug        bool

	// opener e httpClient ficam nil fora dos testes.
	opener     client.Opener
	httpClient *http.Client
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "authctl",
		Short: "Command-line client for the auth gateway",
		Long: `authctl logs in against the gateway's authorization server using the
authorization code flow, keeps the tokens in a local store and sends
authenticated requests through the gateway, refreshing tokens when needed.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	f := root.PersistentFlags()
	f.StringVar(&a.authServer, "auth-server", envOr("AUTH_SERVER_URL", "http://localhost:9000"), "authorization server base URL")
	f.StringVar(&a.clientID, "client-id", envOr("AUTH_CLIENT_ID", "authctl"), "OAuth client id")
	f.StringVar(&a.clientSecret, "client-secret", os.Getenv("AUTH_CLIENT_SECRET"), "OAuth client secret (public clients leave it empty)")
	f.StringVar(&a.redirect, "redirect", "http://127.0.0.1:8765/callback", "redirect URL served by the local callback listener (port 0 picks a free port)")
	f.StringVar(&a.storeKind, "store", storeFile, "token store: file, keyring or memory")
	f.StringVar(&a.storePath, "store-path", "", "file store path (default: user config dir)")
	f.StringVar(&a.service, "keyring-service", "auth-gateway", "keyring service name")
	f.BoolVar(&a.pkce, "pkce", true, "use PKCE (S256) on login")
	f.BoolVar(&a.debug, "debug", false, "enable debug logs")

	root.AddCommand(
		newLoginCmd(a),
		newWhoamiCmd(a),
		newStatusCmd(a),
		newRefreshCmd(a),
		newFetchCmd(a),
		newLogoutCmd(a),
	)
	return root
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func (a *app) logger(cmd *cobra.Command) *slog.Logger {
	level := slog.LevelWarn
	if a.debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
}

func (a *app) storage() (client.Storage, error) {
	switch a.storeKind {
	case storeFile:
		path := a.storePath
		if path == "" {
			var err error
			if path, err = store.DefaultFilePath(); err != nil {
				return nil, err
			}
		}
		return store.NewFile(path)
	case storeKeyring:
		return store.NewKeyring(a.service), nil
	case storeMemory:
		// só dura um comando; útil para testar o login.
		return store.NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown store %q (want file, keyring or memory)", a.storeKind)
	}
}

// manager monta o client.Manager; redirect vazio usa --redirect.
func (a *app) manager(cmd *cobra.Command, redirect string, extra ...client.Option) (*client.Manager, error) {
	st, err := a.storage()
	if err != nil {
		return nil, err
	}
	if redirect == "" {
		redirect = a.redirect
	}

	opts := []client.Option{
		client.WithStorage(st),
		client.WithLogger(a.logger(cmd)),
	}
	if a.pkce {
		opts = append(opts, client.WithPKCE())
	}
	if a.opener != nil {
		opts = append(opts, client.WithOpener(a.opener))
	}
	if a.httpClient != nil {
		opts = append(opts, client.WithHTTPClient(a.httpClient))
	} else {
		opts = append(opts, client.WithHTTPClient(&http.Client{Timeout: 30 * time.Second}))
	}
	opts = append(opts, extra...)

	return client.NewManager(client.Config{
		AuthServerURL: a.authServer,
		ClientID:      a.clientID,
		ClientSecret:  a.clientSecret,
		RedirectURL:   redirect,
	}, opts...)
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd(&app{}).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "authctl:", err)
		os.Exit(1)
	}
}
