// Package health implements the gateway's health aggregator (component
// L): derived overall status, readiness, and liveness, computed from the
// circuit breaker and global limiter rather than tracked independently.
package health

import (
	"time"

	"github.com/eugener/gatekeeper/internal/circuitbreaker"
	"github.com/eugener/gatekeeper/internal/ratelimit"
)

// Status is the body returned by GET /health.
type Status struct {
	Overall       string            `json:"overall"`
	UptimeSeconds float64           `json:"uptimeSeconds"`
	Timestamp     time.Time         `json:"timestamp"`
	Checks        map[string]string `json:"checks"`
}

const (
	overallHealthy   = "healthy"
	overallDegraded  = "degraded"
	overallUnhealthy = "unhealthy"
)

// Aggregator derives health status from the breaker and global limiter
// without maintaining any state of its own.
type Aggregator struct {
	breaker   *circuitbreaker.Breaker
	global    *ratelimit.GlobalLimiter
	configOK  func() bool
	startedAt time.Time
}

// New creates an Aggregator. configOK reports whether the process
// configuration is still accessible (used only by Live); it may be nil,
// in which case liveness always reports true.
func New(breaker *circuitbreaker.Breaker, global *ratelimit.GlobalLimiter, configOK func() bool) *Aggregator {
	return &Aggregator{
		breaker:   breaker,
		global:    global,
		configOK:  configOK,
		startedAt: time.Now(),
	}
}

// Status reports the aggregated health snapshot per spec §4.L's mapping:
// breaker open -> unhealthy; breaker half-open or global limiter
// saturated -> degraded; otherwise healthy.
func (a *Aggregator) Status() Status {
	state := a.breaker.State()
	saturated := a.global.Saturated()

	checks := map[string]string{
		"circuit_breaker": state.String(),
		"global_limiter":  saturationLabel(saturated),
	}

	overall := overallHealthy
	switch {
	case state == circuitbreaker.StateOpen:
		overall = overallUnhealthy
	case state == circuitbreaker.StateHalfOpen, saturated:
		overall = overallDegraded
	}

	return Status{
		Overall:       overall,
		UptimeSeconds: time.Since(a.startedAt).Seconds(),
		Timestamp:     time.Now(),
		Checks:        checks,
	}
}

// Ready reports false iff the breaker is open.
func (a *Aggregator) Ready() bool {
	return a.breaker.State() != circuitbreaker.StateOpen
}

// Live reports true unless the injected configOK check fails.
func (a *Aggregator) Live() bool {
	if a.configOK == nil {
		return true
	}
	return a.configOK()
}

func saturationLabel(saturated bool) string {
	if saturated {
		return "saturated"
	}
	return "ok"
}
