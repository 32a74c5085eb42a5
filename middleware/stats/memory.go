package stats

import (
	"context"
	"maps"
	"sync"
)

type Counters struct {
	Allowed int64 `json:"allowed"`
	Denied  int64 `json:"denied"`
}

func (c *Counters) add(allowed bool) {
	if allowed {
		c.Allowed++
		return
	}
	c.Denied++
}

// Memory é uma implementação simples em memória.
// Útil para testes e desenvolvimento.
//
// Não faz expiração e não é indicada para produção.
type Memory struct {
	mu       sync.Mutex
	total    map[Source]Counters
	byRoute  map[string]Counters
	byStatus map[int]int64
	byKey    map[string]Counters

	trackKeys bool
}

type MemoryOption func(*Memory)

func WithTrackKeys(track bool) MemoryOption {
	return func(s *Memory) { s.trackKeys = track }
}

func NewMemory(opts ...MemoryOption) *Memory {
	s := &Memory{
		total:    make(map[Source]Counters),
		byRoute:  make(map[string]Counters),
		byStatus: make(map[int]int64),
		byKey:    make(map[string]Counters),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Memory) Record(_ context.Context, ev Event) error {
	route := ev.Method + " " + ev.Path

	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.total[ev.Source]
	t.add(ev.Allowed)
	s.total[ev.Source] = t

	r := s.byRoute[route]
	r.add(ev.Allowed)
	s.byRoute[route] = r

	if ev.Status != 0 {
		s.byStatus[ev.Status]++
	}

	if s.trackKeys && ev.Key != "" {
		k := s.byKey[ev.Key]
		k.add(ev.Allowed)
		s.byKey[ev.Key] = k
	}
	return nil
}

// Total devolve os contadores acumulados de uma origem.
func (s *Memory) Total(src Source) Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total[src]
}

func (s *Memory) ByRoute() map[string]Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return maps.Clone(s.byRoute)
}

func (s *Memory) ByStatus() map[int]int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return maps.Clone(s.byStatus)
}

func (s *Memory) ByKey() map[string]Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return maps.Clone(s.byKey)
}
