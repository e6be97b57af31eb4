package ratelimit

import (
	"sync"
	"testing"
	"time"
)

func TestClassifyDestination(t *testing.T) {
	t.Parallel()
	tests := []struct {
		id   string
		want Kind
	}{
		{"-1001234567890", KindGroup},
		{"-1", KindGroup},
		{"0", KindPrivate},
		{"123456789", KindPrivate},
		{"not-a-number", KindGroup},
		{"", KindGroup},
	}
	for _, tt := range tests {
		if got := ClassifyDestination(tt.id); got != tt.want {
			t.Errorf("ClassifyDestination(%q) = %v, want %v", tt.id, got, tt.want)
		}
	}
}

func TestClampGlobalBudget(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in, want int
	}{
		{0, defaultGlobalBudget},
		{-5, defaultGlobalBudget},
		{1, 1},
		{30, 30},
		{60, 60},
		{100, 60},
	}
	for _, tt := range tests {
		if got := ClampGlobalBudget(tt.in); got != tt.want {
			t.Errorf("ClampGlobalBudget(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestGlobalLimiter_AdmitsUpToBudget(t *testing.T) {
	t.Parallel()
	g := NewGlobalLimiter(3)

	for i := range 3 {
		d := g.Admit()
		if !d.Allowed {
			t.Fatalf("request %d should be allowed", i+1)
		}
		g.Record()
	}

	d := g.Admit()
	if d.Allowed {
		t.Error("4th request should be refused")
	}
	if d.WaitMs <= 0 {
		t.Error("WaitMs should be positive when refused")
	}
}

func TestGlobalLimiter_WindowSlides(t *testing.T) {
	t.Parallel()
	g := NewGlobalLimiter(1)
	g.mu.Lock()
	g.instants = append(g.instants, time.Now().Add(-61*time.Second))
	g.mu.Unlock()

	d := g.Admit()
	if !d.Allowed {
		t.Error("instant older than 60s should have been evicted, admitting new request")
	}
}

func TestGlobalLimiter_Saturated(t *testing.T) {
	t.Parallel()
	g := NewGlobalLimiter(2)
	if g.Saturated() {
		t.Error("fresh limiter should not be saturated")
	}
	g.Record()
	g.Record()
	if !g.Saturated() {
		t.Error("limiter at budget should report saturated")
	}
}

func TestGlobalLimiter_RecordWithoutAdmitDoesNotPanic(t *testing.T) {
	t.Parallel()
	g := NewGlobalLimiter(5)
	g.Record()
	g.Record()
	d := g.Admit()
	if !d.Allowed {
		t.Error("2 of 5 budget consumed, should still admit")
	}
}

func TestGlobalLimiter_ConcurrentAccess(t *testing.T) {
	t.Parallel()
	g := NewGlobalLimiter(1000)
	var wg sync.WaitGroup
	for range 100 {
		wg.Go(func() {
			if g.Admit().Allowed {
				g.Record()
			}
		})
	}
	wg.Wait()
}

func TestDestinationRegistry_PrivateMinInterval(t *testing.T) {
	t.Parallel()
	r := NewDestinationRegistry()

	d := r.AdmitFor("111")
	if !d.Allowed {
		t.Fatal("first private send should be allowed")
	}
	r.RecordFor("111")

	d = r.AdmitFor("111")
	if d.Allowed {
		t.Error("second private send within 1s should be refused")
	}
	if d.WaitMs <= 0 {
		t.Error("WaitMs should be positive")
	}
}

func TestDestinationRegistry_PrivateAllowsAfterInterval(t *testing.T) {
	t.Parallel()
	r := NewDestinationRegistry()

	r.AdmitFor("111")
	r.RecordFor("111")

	st := r.getOrCreate("111")
	st.mu.Lock()
	st.instants[0] = time.Now().Add(-2 * time.Second)
	st.mu.Unlock()

	d := r.AdmitFor("111")
	if !d.Allowed {
		t.Error("send after min interval should be allowed")
	}
}

func TestDestinationRegistry_GroupBudget(t *testing.T) {
	t.Parallel()
	r := NewDestinationRegistry()
	id := "-100123"

	for i := range 20 {
		d := r.AdmitFor(id)
		if !d.Allowed {
			t.Fatalf("group send %d should be allowed", i+1)
		}
		r.RecordFor(id)
	}

	d := r.AdmitFor(id)
	if d.Allowed {
		t.Error("21st group send within 60s should be refused")
	}
}

func TestDestinationRegistry_IndependentDestinations(t *testing.T) {
	t.Parallel()
	r := NewDestinationRegistry()

	r.AdmitFor("111")
	r.RecordFor("111")

	d := r.AdmitFor("222")
	if !d.Allowed {
		t.Error("a different private destination must be independent of 111's pacing")
	}
}

func TestDestinationRegistry_Tracked(t *testing.T) {
	t.Parallel()
	r := NewDestinationRegistry()
	r.AdmitFor("111")
	r.AdmitFor("222")
	r.AdmitFor("111") // same id, no new entry

	if got := r.Tracked(); got != 2 {
		t.Errorf("Tracked() = %d, want 2", got)
	}
}

func TestDestinationRegistry_EvictStale(t *testing.T) {
	t.Parallel()
	r := NewDestinationRegistry()
	r.AdmitFor("fresh")
	r.AdmitFor("stale")

	st := r.getOrCreate("stale")
	st.mu.Lock()
	st.lastUsed = time.Now().Add(-2 * time.Hour)
	st.mu.Unlock()

	evicted := r.EvictStale(time.Now().Add(-1 * time.Hour))
	if evicted != 1 {
		t.Errorf("evicted = %d, want 1", evicted)
	}
	if r.Tracked() != 1 {
		t.Errorf("Tracked() after eviction = %d, want 1", r.Tracked())
	}
}

func TestDestinationRegistry_ConcurrentAccess(t *testing.T) {
	t.Parallel()
	r := NewDestinationRegistry()
	var wg sync.WaitGroup
	for i := range 50 {
		wg.Go(func() {
			id := "dest"
			_ = r.AdmitFor(id)
			r.RecordFor(id)
			_ = i
		})
	}
	wg.Wait()
}
