package application

import (
	"context"
	"time"

	"auth-gateway/middleware/ratelimit/domain"
)

// Limiter concentra a regra de janela fixa: no máximo Limit requisições por
// chave dentro de cada Window.
//
// Ele não sabe nada sobre HTTP (headers/status), apenas retorna uma decisão.
// Cada instância é independente; o estado vive no Store injetado.
type Limiter struct {
	Store  domain.WindowStore
	Limit  int
	Window time.Duration
	// Now permite fixar o relógio em testes. Nil usa time.Now.
	Now func() time.Time
}

func (l Limiter) now() time.Time {
	if l.Now != nil {
		return l.Now()
	}
	return time.Now()
}

// Check conta a requisição e informa se ela está dentro do limite.
// Erro de store vira "permitido" (fail open); use Decide para ver o erro.
func (l Limiter) Check(ctx context.Context, key domain.Key) bool {
	dec, _ := l.Decide(ctx, key)
	return dec.Allowed
}

// Decide incrementa a janela da chave e devolve a decisão completa.
//
// A contagem sobe mesmo quando a requisição é negada, então um cliente que
// insiste dentro da janela continua bloqueado até ResetAt.
func (l Limiter) Decide(ctx context.Context, key domain.Key) (domain.Decision, error) {
	if l.Store == nil || l.Limit <= 0 || l.Window <= 0 {
		return domain.Decision{Allowed: true}, nil
	}

	now := l.now()
	w, err := l.Store.Increment(ctx, key, l.Window, now)
	if err != nil {
		return domain.Decision{Allowed: true, Limit: l.Limit, Remaining: l.Limit}, err
	}

	dec := domain.Decision{
		Allowed:   w.Count <= l.Limit,
		Limit:     l.Limit,
		Remaining: max(l.Limit-w.Count, 0),
		ResetAt:   w.ResetAt,
	}
	if !dec.Allowed {
		dec.RetryAfter = max(w.ResetAt.Sub(now), 0)
	}
	return dec, nil
}

// RemainingTime devolve quanto falta para a janela da chave zerar.
// Sem janela (ou janela vencida) devolve 0.
func (l Limiter) RemainingTime(ctx context.Context, key domain.Key) time.Duration {
	if l.Store == nil {
		return 0
	}
	w, ok, err := l.Store.Get(ctx, key)
	if err != nil || !ok {
		return 0
	}
	now := l.now()
	if w.Expired(now) {
		return 0
	}
	return w.ResetAt.Sub(now)
}
