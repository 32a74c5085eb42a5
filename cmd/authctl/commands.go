package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"auth-gateway/client"
)

func newLoginCmd(a *app) *cobra.Command {
	var timeout time.Duration
	var noBrowser bool

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in through the browser",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			redirect, err := url.Parse(a.redirect)
			if err != nil || redirect.Host == "" {
				return fmt.Errorf("invalid redirect url %q", a.redirect)
			}
			ln, err := net.Listen("tcp", redirect.Host)
			if err != nil {
				return fmt.Errorf("listen for callback: %w", err)
			}
			if redirect.Port() == "0" {
				redirect.Host = ln.Addr().String()
			}

			callbacks := make(chan string, 1)
			srv := &http.Server{
				Handler:           callbackHandler(redirect.Path, callbacks),
				ReadHeaderTimeout: 5 * time.Second,
			}
			go func() { _ = srv.Serve(ln) }()
			defer srv.Close()

			var extra []client.Option
			if noBrowser {
				extra = append(extra, client.WithOpener(nil))
			}
			m, err := a.manager(cmd, redirect.String(), extra...)
			if err != nil {
				return err
			}

			authURL, err := m.Login(ctx)
			switch {
			case err != nil && authURL == "":
				return err
			case err != nil || noBrowser:
				fmt.Fprintf(cmd.ErrOrStderr(), "Open this URL to log in:\n%s\n", authURL)
			default:
				fmt.Fprintln(cmd.ErrOrStderr(), "Waiting for the browser login...")
			}

			var callback string
			select {
			case callback = <-callbacks:
			case <-ctx.Done():
				return fmt.Errorf("waiting for login callback: %w", ctx.Err())
			}
			if err := m.HandleCallback(ctx, callback); err != nil {
				return err
			}

			if id, ok, _ := m.CachedUser(ctx); ok {
				fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s\n", displayName(id))
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged in")
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 2*time.Minute, "how long to wait for the login callback")
	cmd.Flags().BoolVar(&noBrowser, "no-browser", false, "print the authorization URL instead of opening the browser")
	return cmd
}

// callbackHandler entrega a URL do redirect (path + query) no canal, uma vez.
func callbackHandler(path string, out chan<- string) http.Handler {
	if path == "" {
		path = "/"
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != path {
			http.NotFound(w, r)
			return
		}
		select {
		case out <- r.URL.String():
		default:
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		if r.URL.Query().Get("error") != "" {
			_, _ = io.WriteString(w, "Login failed. You can close this window.\n")
			return
		}
		_, _ = io.WriteString(w, "Login complete. You can close this window.\n")
	})
}

func displayName(id *client.Identity) string {
	if id.Email != "" {
		return id.Email
	}
	return id.ID
}

func newWhoamiCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged in identity (asks the authorization server)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := a.manager(cmd, "")
			if err != nil {
				return err
			}
			id, err := m.CurrentUser(cmd.Context())
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(id)
		},
	}
}

func newStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the local session state without network calls",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := a.manager(cmd, "")
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			fmt.Fprintf(out, "state: %s\n", m.State(ctx))
			pair, ok, err := m.Tokens(ctx)
			if err != nil {
				return err
			}
			if !ok {
				return nil
			}
			if pair.ExpiresAt.IsZero() {
				fmt.Fprintln(out, "expires: unknown")
			} else {
				fmt.Fprintf(out, "expires: %s\n", pair.ExpiresAt.Format(time.RFC3339))
			}
			fmt.Fprintf(out, "refresh token: %t\n", pair.RefreshToken != "")
			if id, ok, _ := m.CachedUser(ctx); ok {
				fmt.Fprintf(out, "user: %s (%s)\n", displayName(id), id.Role)
			}
			return nil
		},
	}
}

func newRefreshCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Exchange the refresh token for a new token pair",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := a.manager(cmd, "")
			if err != nil {
				return err
			}
			if err := m.Refresh(cmd.Context()); err != nil {
				return err
			}
			pair, _, err := m.Tokens(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Token refreshed, expires %s\n", pair.ExpiresAt.Format(time.RFC3339))
			return nil
		},
	}
}

func newFetchCmd(a *app) *cobra.Command {
	var method, data string
	var headers []string

	cmd := &cobra.Command{
		Use:   "fetch <url>",
		Short: "Send an authenticated request and print the response body",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := a.manager(cmd, "")
			if err != nil {
				return err
			}

			var body io.Reader
			if data != "" {
				body = strings.NewReader(data)
			}
			req, err := http.NewRequestWithContext(cmd.Context(), strings.ToUpper(method), args[0], body)
			if err != nil {
				return err
			}
			for _, h := range headers {
				k, v, ok := strings.Cut(h, ":")
				if !ok {
					return fmt.Errorf("invalid header %q (want \"Name: value\")", h)
				}
				req.Header.Add(strings.TrimSpace(k), strings.TrimSpace(v))
			}
			if data != "" && req.Header.Get("Content-Type") == "" {
				req.Header.Set("Content-Type", "application/json")
			}

			resp, err := m.Do(req)
			if err != nil {
				if errors.Is(err, client.ErrNotAuthenticated) {
					return fmt.Errorf("%w (run authctl login)", err)
				}
				return err
			}
			defer resp.Body.Close()

			if _, err := io.Copy(cmd.OutOrStdout(), resp.Body); err != nil {
				return err
			}
			if resp.StatusCode >= http.StatusBadRequest {
				return fmt.Errorf("request failed: %s", resp.Status)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&method, "method", "X", http.MethodGet, "HTTP method")
	cmd.Flags().StringVarP(&data, "data", "d", "", "request body")
	cmd.Flags().StringArrayVarP(&headers, "header", "H", nil, "extra header (\"Name: value\"), repeatable")
	return cmd
}

func newLogoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored tokens and identity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := a.manager(cmd, "")
			if err != nil {
				return err
			}
			if err := m.Logout(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
			return nil
		},
	}
}
