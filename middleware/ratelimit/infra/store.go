package infra

import (
	"context"
	"sync"
	"time"

	"auth-gateway/middleware/ratelimit/domain"
)

// MemoryStore é a implementação de janela fixa em memória, local ao processo.
//
// Com várias réplicas atrás de um balanceador cada uma conta só o seu tráfego,
// então o limite global efetivo fica maior que Limit. Para contagem
// compartilhada use RedisStore.
type MemoryStore struct {
	mu           sync.Mutex
	windows      map[domain.Key]domain.Window
	cleanupEvery time.Duration
	now          func() time.Time
}

type MemoryOption func(*MemoryStore)

func WithCleanupEvery(d time.Duration) MemoryOption {
	return func(s *MemoryStore) { s.cleanupEvery = d }
}

// WithClock troca o relógio usado pelo janitor (útil em testes).
func WithClock(now func() time.Time) MemoryOption {
	return func(s *MemoryStore) { s.now = now }
}

func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		windows:      make(map[domain.Key]domain.Window),
		cleanupEvery: 2 * time.Minute,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStore) CleanupEvery() time.Duration { return s.cleanupEvery }

// Increment implementa domain.WindowStore.
func (s *MemoryStore) Increment(_ context.Context, key domain.Key, window time.Duration, now time.Time) (domain.Window, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.windows[key]
	if !ok || w.Expired(now) {
		w = domain.Window{Count: 1, ResetAt: now.Add(window)}
	} else {
		w.Count++
	}
	s.windows[key] = w
	return w, nil
}

// Get implementa domain.WindowStore.
func (s *MemoryStore) Get(_ context.Context, key domain.Key) (domain.Window, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.windows[key]
	return w, ok, nil
}

// Len retorna quantas chaves estão registradas (inclusive janelas vencidas
// ainda não limpas).
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.windows)
}

// Cleanup remove as janelas já vencidas.
func (s *MemoryStore) Cleanup() {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	for k, w := range s.windows {
		if w.Expired(now) {
			delete(s.windows, k)
		}
	}
}

// StartJanitor inicia uma goroutine que limpa janelas vencidas periodicamente.
// Pare cancelando o contexto.
func (s *MemoryStore) StartJanitor(ctx DoneContext) {
	if s.cleanupEvery <= 0 {
		return
	}

	t := time.NewTicker(s.cleanupEvery)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				s.Cleanup()
			}
		}
	}()
}

// DoneContext é o mínimo necessário para aceitar context.Context no janitor.
type DoneContext interface {
	Done() <-chan struct{}
}
