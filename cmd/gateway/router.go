package main

import (
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"auth-gateway/middleware/auth"
	"auth-gateway/middleware/auth/domain"
	"auth-gateway/middleware/cors"
	"auth-gateway/middleware/httpjson"
	"auth-gateway/middleware/ratelimit"
	"auth-gateway/middleware/requestlog"
)

// Headers com a identidade resolvida, enviados ao upstream.
const (
	HeaderUserID    = "X-User-Id"
	HeaderUserEmail = "X-User-Email"
	HeaderUserRole  = "X-User-Role"
)

type routerDeps struct {
	Target      *url.URL
	Logger      *slog.Logger
	Gatherer    prometheus.Gatherer
	Wrapper     *auth.Wrapper
	Policy      domain.Policy
	RateLimit   ratelimit.Options
	Concurrency ratelimit.ConcurrencyOptions
	CORS        cors.Options
}

// newRouter monta a cadeia do gateway:
//
//	recover -> request id -> log -> CORS headers -> rate limit -> concorrência
//	-> preflight -> auth -> proxy
//
// /healthz e /metrics só passam até os headers de CORS.
func newRouter(d routerDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(
		requestlog.Recover(d.Logger),
		requestlog.RequestID(),
		requestlog.Logging(d.Logger),
		cors.Headers(d.CORS),
	)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		_ = httpjson.Write(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if d.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Group(func(r chi.Router) {
		r.Use(
			ratelimit.Middleware(d.RateLimit),
			ratelimit.ConcurrencyMiddleware(d.Concurrency),
			cors.Preflight,
			d.Wrapper.Middleware(d.Policy),
		)
		r.Handle("/*", newProxy(d.Target, d.Logger))
	})
	return r
}

func newProxy(target *url.URL, logger *slog.Logger) *httputil.ReverseProxy {
	return &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(target)
			pr.SetXForwarded()

			// nunca confiar no que o cliente mandou nesses headers
			pr.Out.Header.Del(HeaderUserID)
			pr.Out.Header.Del(HeaderUserEmail)
			pr.Out.Header.Del(HeaderUserRole)

			if id := auth.IdentityFromContext(pr.In.Context()); id != nil {
				pr.Out.Header.Set(HeaderUserID, id.ID)
				if id.Email != "" {
					pr.Out.Header.Set(HeaderUserEmail, id.Email)
				}
				if id.Role != "" {
					pr.Out.Header.Set(HeaderUserRole, id.Role)
				}
			}
			if rid := requestlog.GetRequestID(pr.In.Context()); rid != "" {
				pr.Out.Header.Set(requestlog.HeaderRequestID, rid)
			}
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			logger.ErrorContext(r.Context(), "proxy error", "error", err, "path", r.URL.Path)
			_ = httpjson.Error(w, http.StatusBadGateway, "bad gateway")
		},
	}
}
