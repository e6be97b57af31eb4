package health

import (
	"testing"
	"time"

	"github.com/eugener/gatekeeper/internal/circuitbreaker"
	"github.com/eugener/gatekeeper/internal/ratelimit"
)

func intPtr(n int) *int { return &n }

func newBreaker() *circuitbreaker.Breaker {
	return circuitbreaker.New(circuitbreaker.Config{FailureThreshold: 1, OpenTimeout: time.Hour}, nil)
}

func TestStatus_HealthyWhenClosedAndUnsaturated(t *testing.T) {
	t.Parallel()
	a := New(newBreaker(), ratelimit.NewGlobalLimiter(60), nil)
	s := a.Status()
	if s.Overall != overallHealthy {
		t.Errorf("Overall = %q, want healthy", s.Overall)
	}
}

func TestStatus_UnhealthyWhenBreakerOpen(t *testing.T) {
	t.Parallel()
	b := newBreaker()
	b.RecordError(intPtr(500))
	a := New(b, ratelimit.NewGlobalLimiter(60), nil)
	s := a.Status()
	if s.Overall != overallUnhealthy {
		t.Errorf("Overall = %q, want unhealthy", s.Overall)
	}
}

func TestStatus_DegradedWhenGlobalLimiterSaturated(t *testing.T) {
	t.Parallel()
	g := ratelimit.NewGlobalLimiter(1)
	g.Record()
	a := New(newBreaker(), g, nil)
	s := a.Status()
	if s.Overall != overallDegraded {
		t.Errorf("Overall = %q, want degraded", s.Overall)
	}
}

func TestReady_FalseIffBreakerOpen(t *testing.T) {
	t.Parallel()
	b := newBreaker()
	a := New(b, ratelimit.NewGlobalLimiter(60), nil)
	if !a.Ready() {
		t.Error("Ready() = false, want true while closed")
	}
	b.RecordError(intPtr(500))
	if a.Ready() {
		t.Error("Ready() = true, want false once breaker is open")
	}
}

func TestLive_NilConfigCheckIsAlwaysTrue(t *testing.T) {
	t.Parallel()
	a := New(newBreaker(), ratelimit.NewGlobalLimiter(60), nil)
	if !a.Live() {
		t.Error("Live() = false, want true when no configOK is injected")
	}
}

func TestLive_ReflectsConfigCheck(t *testing.T) {
	t.Parallel()
	ok := false
	a := New(newBreaker(), ratelimit.NewGlobalLimiter(60), func() bool { return ok })
	if a.Live() {
		t.Error("Live() = true, want false")
	}
	ok = true
	if !a.Live() {
		t.Error("Live() = false, want true")
	}
}

func TestStatus_UptimeIsPositiveAndIncreasing(t *testing.T) {
	t.Parallel()
	a := New(newBreaker(), ratelimit.NewGlobalLimiter(60), nil)
	time.Sleep(5 * time.Millisecond)
	s := a.Status()
	if s.UptimeSeconds <= 0 {
		t.Errorf("UptimeSeconds = %v, want > 0", s.UptimeSeconds)
	}
}
