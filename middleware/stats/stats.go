// Package stats registra as decisões tomadas pelos middlewares do gateway
// (rate limit e autorização) para observabilidade.
//
// O registro é best-effort: os middlewares logam o erro de Record e seguem com
// a requisição. Cuidado com cardinalidade: Key e Path sem controle podem
// explodir o número de séries/chaves em Redis ou Prometheus.
package stats

import (
	"context"
	"errors"
	"strconv"
	"time"
)

// Source identifica qual middleware produziu o evento.
type Source string

const (
	SourceRateLimit Source = "ratelimit"
	SourceAuth      Source = "auth"
)

// Event representa uma decisão allow/deny.
//
// Ele é propositalmente "agnóstico de HTTP": Method/Path são strings genéricas
// e Status é só o código que foi (ou seria) devolvido ao cliente.
type Event struct {
	Source  Source
	Key     string
	Allowed bool
	Status  int

	Method string
	Path   string

	At time.Time
}

func (ev Event) outcome() string {
	if ev.Allowed {
		return "allowed"
	}
	return "denied"
}

func (ev Event) statusLabel() string {
	if ev.Status == 0 {
		return "unknown"
	}
	return strconv.Itoa(ev.Status)
}

// Recorder é a estratégia de persistência para estatísticas.
type Recorder interface {
	Record(ctx context.Context, ev Event) error
}

// Multi repassa o evento para todos os recorders e junta os erros.
type Multi []Recorder

func (m Multi) Record(ctx context.Context, ev Event) error {
	var errs []error
	for _, r := range m {
		if r == nil {
			continue
		}
		if err := r.Record(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
