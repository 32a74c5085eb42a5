package auth

import (
	"log/slog"
	"net/http"
	"time"

	"auth-gateway/middleware/auth/application"
	"auth-gateway/middleware/auth/domain"
	"auth-gateway/middleware/httpjson"
	"auth-gateway/middleware/requestlog"
	"auth-gateway/middleware/stats"
)

// HandlerFunc é um handler que já recebe a identidade resolvida.
type HandlerFunc func(w http.ResponseWriter, r *http.Request, id *domain.Identity)

type Wrapper struct {
	gate   *application.Gate
	stats  stats.Recorder
	logger *slog.Logger
}

type Option func(*Wrapper)

func WithStats(r stats.Recorder) Option {
	return func(w *Wrapper) { w.stats = r }
}

func WithLogger(l *slog.Logger) Option {
	return func(w *Wrapper) { w.logger = l }
}

func NewWrapper(gate *application.Gate, opts ...Option) *Wrapper {
	w := &Wrapper{gate: gate, logger: slog.Default()}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = slog.Default()
	}
	return w
}

// Wrap roda o gate na policy indicada antes de next.
// Falha: responde {"error": motivo} com o status da decisão e next não roda.
func (wr *Wrapper) Wrap(p domain.Policy, next HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		dec := wr.gate.Authorize(ctx, BearerToken(r), p)
		wr.record(r, dec)

		if !dec.Allowed() {
			wr.logger.WarnContext(ctx, "unauthorized access",
				"policy", p.String(),
				"status", int(dec.Status),
				"reason", dec.Reason,
				"error", dec.Err,
				"path", r.URL.Path,
				"request_id", requestlog.GetRequestID(ctx),
			)
			_ = httpjson.Error(w, int(dec.Status), dec.Reason)
			return
		}

		if dec.Identity != nil {
			r = r.WithContext(WithIdentity(ctx, dec.Identity))
		}
		next(w, r, dec.Identity)
	})
}

func (wr *Wrapper) Required(next HandlerFunc) http.Handler {
	return wr.Wrap(domain.Required(), next)
}

func (wr *Wrapper) RoleRequired(role string, next HandlerFunc) http.Handler {
	return wr.Wrap(domain.RoleRequired(role), next)
}

func (wr *Wrapper) Optional(next HandlerFunc) http.Handler {
	return wr.Wrap(domain.Optional(), next)
}

// Middleware é a versão func(http.Handler) http.Handler de Wrap, para cadeias
// de middleware e routers. A identidade fica em IdentityFromContext.
func (wr *Wrapper) Middleware(p domain.Policy) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return wr.Wrap(p, func(w http.ResponseWriter, r *http.Request, _ *domain.Identity) {
			next.ServeHTTP(w, r)
		})
	}
}

func (wr *Wrapper) record(r *http.Request, dec domain.Decision) {
	if wr.stats == nil {
		return
	}
	ev := stats.Event{
		Source:  stats.SourceAuth,
		Allowed: dec.Allowed(),
		Status:  int(dec.Status),
		Method:  r.Method,
		Path:    r.URL.Path,
		At:      time.Now(),
	}
	if dec.Identity != nil {
		ev.Key = dec.Identity.ID
	}
	if err := wr.stats.Record(r.Context(), ev); err != nil {
		wr.logger.WarnContext(r.Context(), "auth stats record failed", "error", err)
	}
}
