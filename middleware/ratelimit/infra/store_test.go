package infra

import (
	"context"
	"sync"
	"testing"
	"time"

	"auth-gateway/middleware/ratelimit/application"
	"auth-gateway/middleware/ratelimit/domain"
)

// clock é um relógio manual para os testes de janela.
type clock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock() *clock { return &clock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)} }

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func TestMemoryStore_IncrementOpensAndCountsWindow(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	w1, _ := s.Increment(ctx, "k", time.Second, now)
	if w1.Count != 1 || !w1.ResetAt.Equal(now.Add(time.Second)) {
		t.Fatalf("unexpected first window: %+v", w1)
	}

	w2, _ := s.Increment(ctx, "k", time.Second, now.Add(500*time.Millisecond))
	if w2.Count != 2 || !w2.ResetAt.Equal(w1.ResetAt) {
		t.Fatalf("expected same window with count 2, got %+v", w2)
	}

	w3, _ := s.Increment(ctx, "k", time.Second, now.Add(time.Second))
	if w3.Count != 1 {
		t.Fatalf("expected new window once ResetAt is reached, got %+v", w3)
	}
}

func TestMemoryStore_KeysAreIndependent(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	now := time.Now()

	_, _ = s.Increment(ctx, "a", time.Minute, now)
	_, _ = s.Increment(ctx, "a", time.Minute, now)
	wb, _ := s.Increment(ctx, "b", time.Minute, now)
	if wb.Count != 1 {
		t.Fatalf("expected independent counter for key b, got %d", wb.Count)
	}
}

// Cenário: {limit:2, windowMs:1000}; três checks em 1000ms => [true,true,false];
// um quarto check depois da janela => true.
func TestLimiterWithMemoryStore_FixedWindowScenario(t *testing.T) {
	clk := newClock()
	l := application.Limiter{Store: NewMemoryStore(), Limit: 2, Window: time.Second, Now: clk.Now}
	ctx := context.Background()

	got := []bool{l.Check(ctx, "ip1"), l.Check(ctx, "ip1")}
	clk.Advance(900 * time.Millisecond)
	got = append(got, l.Check(ctx, "ip1"))

	want := []bool{true, true, false}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("check %d: expected %v, got %v (all=%v)", i+1, want[i], got[i], got)
		}
	}

	if rem := l.RemainingTime(ctx, "ip1"); rem != 100*time.Millisecond {
		t.Fatalf("expected 100ms remaining, got %s", rem)
	}

	clk.Advance(100 * time.Millisecond)
	if !l.Check(ctx, "ip1") {
		t.Fatalf("expected check after window elapsed to be allowed")
	}
	if rem := l.RemainingTime(ctx, "unknown"); rem != 0 {
		t.Fatalf("expected 0 for unknown key, got %s", rem)
	}
}

func TestLimiterWithMemoryStore_ExactlyLimitAdmissionsPerWindow(t *testing.T) {
	const limit = 5
	clk := newClock()
	l := application.Limiter{Store: NewMemoryStore(), Limit: limit, Window: time.Minute, Now: clk.Now}
	ctx := context.Background()

	for round := 0; round < 3; round++ {
		allowed := 0
		for i := 0; i < limit*2; i++ {
			if l.Check(ctx, "k") {
				allowed++
			}
		}
		if allowed != limit {
			t.Fatalf("round %d: expected %d admissions, got %d", round, limit, allowed)
		}
		clk.Advance(time.Minute)
	}
}

func TestMemoryStore_ConcurrentIncrementsAreNotLost(t *testing.T) {
	s := NewMemoryStore()
	l := application.Limiter{Store: s, Limit: 100, Window: time.Minute}
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Check(ctx, "shared") {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if allowed != 100 {
		t.Fatalf("expected exactly 100 admissions, got %d", allowed)
	}
	w, ok, _ := s.Get(ctx, "shared")
	if !ok || w.Count != 200 {
		t.Fatalf("expected count 200 after 200 checks, got %+v (found=%v)", w, ok)
	}
}

func TestMemoryStore_CleanupRemovesExpiredWindows(t *testing.T) {
	clk := newClock()
	s := NewMemoryStore(WithClock(clk.Now), WithCleanupEvery(0))
	ctx := context.Background()

	_, _ = s.Increment(ctx, domain.Key("short"), time.Second, clk.Now())
	_, _ = s.Increment(ctx, domain.Key("long"), time.Hour, clk.Now())

	clk.Advance(2 * time.Second)
	s.Cleanup()

	if s.Len() != 1 {
		t.Fatalf("expected 1 window left, got %d", s.Len())
	}
	if _, ok, _ := s.Get(ctx, "short"); ok {
		t.Fatalf("expected expired window to be removed")
	}
}

func TestMemoryStore_JanitorStopsWithContext(t *testing.T) {
	s := NewMemoryStore(WithCleanupEvery(5 * time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())

	_, _ = s.Increment(ctx, "k", time.Millisecond, time.Now())
	s.StartJanitor(ctx)

	deadline := time.Now().Add(time.Second)
	for s.Len() != 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	if s.Len() != 0 {
		t.Fatalf("expected janitor to remove expired window")
	}
}

func TestSemaphore_InUseTracksSlots(t *testing.T) {
	s := NewSemaphore(2)
	if s.Cap() != 2 {
		t.Fatalf("expected capacity 2, got %d", s.Cap())
	}

	release, ok := s.Acquire(context.Background())
	if !ok {
		t.Fatalf("expected slot")
	}
	if s.InUse() != 1 {
		t.Fatalf("expected 1 slot in use, got %d", s.InUse())
	}
	release()
	release()
	if s.InUse() != 0 {
		t.Fatalf("expected 0 slots in use after double release, got %d", s.InUse())
	}
}

func TestSemaphore_FullRespectsContext(t *testing.T) {
	s := NewSemaphore(0)
	release, ok := s.Acquire(context.Background())
	if !ok {
		t.Fatalf("expected first slot")
	}
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, ok := s.Acquire(ctx); ok {
		t.Fatalf("expected acquire to fail while full")
	}

	// vaga livre é entregue mesmo com ctx encerrado
	release()
	done, cancelDone := context.WithCancel(context.Background())
	cancelDone()
	if _, ok := s.Acquire(done); !ok {
		t.Fatalf("expected free slot with canceled context")
	}
}
