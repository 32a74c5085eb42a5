package domain

// Camada de domínio do rate limit.
//
// Regras e contratos (interfaces/tipos) sem dependência de net/http.

import (
	"context"
	"time"
)

type Key string

// Window é a janela fixa de uma chave: quantas requisições já foram contadas
// e quando a contagem zera.
type Window struct {
	Count   int
	ResetAt time.Time
}

// Expired informa se a janela já passou em `now`.
// A janela zerada (sem registro) também conta como expirada.
func (w Window) Expired(now time.Time) bool {
	return w.ResetAt.IsZero() || !now.Before(w.ResetAt)
}

// WindowStore guarda as janelas por chave (ex: IP, API key, usuário).
//
// Increment é o único ponto de escrita: abre uma janela nova com Count=1 quando
// não existe registro ou quando a anterior expirou; caso contrário soma 1.
// Deve ser atômico por chave; a implementação em memória usa mutex e a de
// Redis usa script Lua.
type WindowStore interface {
	Increment(ctx context.Context, key Key, window time.Duration, now time.Time) (Window, error)
	Get(ctx context.Context, key Key) (Window, bool, error)
}

type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
	// RetryAfter é o valor a ser retornado em Retry-After quando bloquear.
	// Se 0, não há recomendação.
	RetryAfter time.Duration
}
