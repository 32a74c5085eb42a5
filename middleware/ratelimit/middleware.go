package ratelimit

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	authdomain "auth-gateway/middleware/auth/domain"
	"auth-gateway/middleware/httpjson"
	"auth-gateway/middleware/ratelimit/domain"
	"auth-gateway/middleware/stats"
)

type KeyFunc func(r *http.Request) string

// Decider é o que o middleware precisa do application.Limiter.
type Decider interface {
	Decide(ctx context.Context, key domain.Key) (domain.Decision, error)
}

type Options struct {
	Limiter             Decider
	Stats               stats.Recorder
	Logger              *slog.Logger
	KeyFn               KeyFunc
	KeyHeader           string
	TrustXForwardedFor  bool
	AddRateLimitHeaders bool
	// Message vai no corpo {"error": ...} do 429.
	Message string
}

func DefaultKeyFunc(keyHeader string, trustXFF bool) KeyFunc {
	return func(r *http.Request) string {
		if keyHeader != "" {
			if v := strings.TrimSpace(r.Header.Get(keyHeader)); v != "" {
				return v
			}
		}

		if trustXFF {
			// primeiro IP do X-Forwarded-For (cliente original)
			if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
				first, _, _ := strings.Cut(xff, ",")
				if ip := strings.TrimSpace(first); ip != "" {
					return ip
				}
			}
		}

		// fallback: RemoteAddr
		host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
		if err == nil && host != "" {
			return host
		}
		if r.RemoteAddr != "" {
			return r.RemoteAddr
		}
		return "unknown"
	}
}

func Middleware(opts Options) func(next http.Handler) http.Handler {
	if opts.KeyFn == nil {
		opts.KeyFn = DefaultKeyFunc(opts.KeyHeader, opts.TrustXForwardedFor)
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Message == "" {
		opts.Message = "too many requests"
	}

	return func(next http.Handler) http.Handler {
		if opts.Limiter == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			key := opts.KeyFn(r)

			dec, err := opts.Limiter.Decide(ctx, domain.Key(key))
			if err != nil {
				// fail open: sem store não dá para contar, mas a requisição segue
				opts.Logger.ErrorContext(ctx, "rate limit check failed", "error", err)
			}

			// sem store não há janela: nada de X-RateLimit-*
			if opts.AddRateLimitHeaders && err == nil && dec.Limit > 0 {
				w.Header().Set("X-RateLimit-Limit", formatInt(dec.Limit))
				w.Header().Set("X-RateLimit-Remaining", formatInt(dec.Remaining))
				w.Header().Set("X-RateLimit-Reset", formatUnix(dec.ResetAt))
			}

			var denied error
			if !dec.Allowed {
				denied = authdomain.ErrRateLimited
			}
			status := authdomain.StatusFor(denied)
			if opts.Stats != nil {
				if err := opts.Stats.Record(ctx, stats.Event{
					Source:  stats.SourceRateLimit,
					Key:     key,
					Allowed: dec.Allowed,
					Status:  status,
					Method:  r.Method,
					Path:    r.URL.Path,
					At:      time.Now(),
				}); err != nil {
					opts.Logger.WarnContext(ctx, "rate limit stats record failed", "error", err)
				}
			}

			if !dec.Allowed {
				opts.Logger.InfoContext(ctx, "rate limit exceeded",
					"path", r.URL.Path,
					"retry_after", dec.RetryAfter,
				)
				w.Header().Set("Retry-After", formatInt(retryAfterSeconds(dec.RetryAfter)))
				_ = httpjson.Error(w, status, opts.Message)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
