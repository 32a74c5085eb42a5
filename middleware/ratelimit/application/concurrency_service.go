package application

import (
	"context"
	"time"

	"auth-gateway/middleware/ratelimit/domain"
)

// ConcurrencyService concentra a regra de aquisição/liberação de vagas com timeout,
// sem saber nada sobre HTTP.
type ConcurrencyService struct {
	Pool           domain.SlotPool
	AcquireTimeout time.Duration
}

// Acquire tenta adquirir uma vaga.
//   - Sem Pool, sempre libera (limite desligado).
//   - Se AcquireTimeout <= 0, espera até ctx cancelar.
//   - Se AcquireTimeout > 0, espera no máximo esse tempo.
//
// Retorna (release, ok). Se ok=false, nenhuma vaga foi adquirida e release é nil.
func (s ConcurrencyService) Acquire(ctx context.Context) (func(), bool) {
	if s.Pool == nil {
		return func() {}, true
	}
	if s.AcquireTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.AcquireTimeout)
		defer cancel()
	}
	return s.Pool.Acquire(ctx)
}

// InUse retorna as vagas ocupadas no pool (0 sem pool).
func (s ConcurrencyService) InUse() int {
	if s.Pool == nil {
		return 0
	}
	return s.Pool.InUse()
}
