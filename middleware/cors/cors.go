// Package cors adiciona os headers CORS em toda resposta e responde o preflight.
package cors

import (
	"net/http"
	"strings"
)

const DefaultAllowOrigin = "*"

var (
	DefaultAllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	DefaultAllowHeaders = []string{"Content-Type", "Authorization"}
)

type Options struct {
	AllowOrigin  string
	AllowMethods []string
	AllowHeaders []string
}

func (o Options) withDefaults() Options {
	if o.AllowOrigin == "" {
		o.AllowOrigin = DefaultAllowOrigin
	}
	if len(o.AllowMethods) == 0 {
		o.AllowMethods = DefaultAllowMethods
	}
	if len(o.AllowHeaders) == 0 {
		o.AllowHeaders = DefaultAllowHeaders
	}
	return o
}

// Middleware escreve os headers antes de chamar next. OPTIONS para aqui:
// 200 sem corpo, next não roda.
func Middleware(opts Options) func(http.Handler) http.Handler {
	headers := Headers(opts)
	return func(next http.Handler) http.Handler {
		return headers(Preflight(next))
	}
}

// Headers só escreve os headers. Útil como middleware mais externo, para que
// respostas de outros middlewares (429, 503) também saiam com CORS.
func Headers(opts Options) func(http.Handler) http.Handler {
	opts = opts.withDefaults()
	methods := strings.Join(opts.AllowMethods, ",")
	headers := strings.Join(opts.AllowHeaders, ",")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", opts.AllowOrigin)
			h.Set("Access-Control-Allow-Methods", methods)
			h.Set("Access-Control-Allow-Headers", headers)
			next.ServeHTTP(w, r)
		})
	}
}

// Preflight responde OPTIONS com 200 e corpo vazio.
func Preflight(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
