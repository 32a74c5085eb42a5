package ratelimit

import (
	"log/slog"
	"net/http"
	"time"

	"auth-gateway/middleware/httpjson"
	"auth-gateway/middleware/ratelimit/application"
	"auth-gateway/middleware/ratelimit/infra"
)

type ConcurrencyOptions struct {
	Max            int
	RejectStatus   int
	AcquireTimeout time.Duration
	Logger         *slog.Logger
}

// ConcurrencyMiddleware limita quantas requisições ficam em voo ao mesmo tempo.
// Max <= 0 desliga o limite.
func ConcurrencyMiddleware(opts ConcurrencyOptions) func(next http.Handler) http.Handler {
	if opts.Max <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	if opts.RejectStatus == 0 {
		opts.RejectStatus = http.StatusServiceUnavailable
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	svc := application.ConcurrencyService{
		Pool:           infra.NewSemaphore(opts.Max),
		AcquireTimeout: opts.AcquireTimeout,
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			release, ok := svc.Acquire(r.Context())
			if !ok {
				opts.Logger.WarnContext(r.Context(), "concurrency limit reached",
					"in_use", svc.InUse(),
					"max", opts.Max,
				)
				_ = httpjson.Error(w, opts.RejectStatus, "server busy")
				return
			}
			defer release()

			next.ServeHTTP(w, r)
		})
	}
}
