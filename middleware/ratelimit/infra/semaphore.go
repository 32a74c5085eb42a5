package infra

import (
	"context"
	"sync"
)

// Semaphore limita requisições em voo. Cada vaga ocupada é um item no channel.
type Semaphore struct {
	slots chan struct{}
}

// NewSemaphore cria um semáforo com capacity vagas (mínimo 1).
func NewSemaphore(capacity int) *Semaphore {
	if capacity < 1 {
		capacity = 1
	}
	return &Semaphore{slots: make(chan struct{}, capacity)}
}

// Acquire pega uma vaga livre na hora, mesmo com ctx já encerrado; senão
// espera até liberar uma vaga ou até ctx encerrar.
func (s *Semaphore) Acquire(ctx context.Context) (func(), bool) {
	select {
	case s.slots <- struct{}{}:
		return s.releaser(), true
	default:
	}

	select {
	case s.slots <- struct{}{}:
		return s.releaser(), true
	case <-ctx.Done():
		return nil, false
	}
}

// releaser devolve a vaga uma única vez, mesmo chamado de novo.
func (s *Semaphore) releaser() func() {
	var once sync.Once
	return func() {
		once.Do(func() { <-s.slots })
	}
}

func (s *Semaphore) InUse() int { return len(s.slots) }

func (s *Semaphore) Cap() int { return cap(s.slots) }
