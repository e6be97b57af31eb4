// Package pipeline orchestrates the gateway's request pipeline (component
// K): validation, cache probe, breaker admission, rate limiting, upload
// encoding, and the transport retry loop, in the fixed order spec.md
// prescribes. It holds no upstream knowledge of its own -- every step is
// delegated to the component package that owns it.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/eugener/gatekeeper/internal"
	"github.com/eugener/gatekeeper/internal/cache"
	"github.com/eugener/gatekeeper/internal/circuitbreaker"
	"github.com/eugener/gatekeeper/internal/methods"
	"github.com/eugener/gatekeeper/internal/ratelimit"
	"github.com/eugener/gatekeeper/internal/retry"
	"github.com/eugener/gatekeeper/internal/telemetry"
	"github.com/eugener/gatekeeper/internal/upload"
	"github.com/eugener/gatekeeper/internal/upstream"
	"github.com/eugener/gatekeeper/internal/validate"
)

const defaultTimeout = 30 * time.Second

// Pipeline wires every component into the nine-step invocation sequence.
type Pipeline struct {
	methods    *methods.Table
	cache      *cache.Cache
	breaker    *circuitbreaker.Breaker
	global     *ratelimit.GlobalLimiter
	dests      *ratelimit.DestinationRegistry
	client     *upstream.Client
	metrics    *telemetry.Metrics
	maxRetries int

	defaultTimeout time.Duration
	tracer         trace.Tracer
}

// SetDefaultTimeout overrides the per-call timeout used when an invocation
// does not specify Options.Timeout, normally the loaded configuration's
// REQUEST_TIMEOUT. A zero value restores the package default (30s).
func (p *Pipeline) SetDefaultTimeout(d time.Duration) {
	p.defaultTimeout = d
}

// SetTracer attaches a tracer so Invoke emits one span per invocation. A
// nil tracer (the default) disables tracing entirely.
func (p *Pipeline) SetTracer(tracer trace.Tracer) {
	p.tracer = tracer
}

// New assembles a Pipeline from its components.
func New(
	tbl *methods.Table,
	c *cache.Cache,
	breaker *circuitbreaker.Breaker,
	global *ratelimit.GlobalLimiter,
	dests *ratelimit.DestinationRegistry,
	client *upstream.Client,
	m *telemetry.Metrics,
	maxRetries int,
) *Pipeline {
	return &Pipeline{
		methods:    tbl,
		cache:      c,
		breaker:    breaker,
		global:     global,
		dests:      dests,
		client:     client,
		metrics:    m,
		maxRetries: maxRetries,
	}
}

// Invoke runs inv through the full pipeline and returns the resulting
// envelope. It never returns a non-nil error: every failure mode is
// represented as a `{ok:false, ...}` envelope per spec §4.K.
func (p *Pipeline) Invoke(ctx context.Context, inv gateway.Invocation) gateway.Envelope {
	start := time.Now()
	desc := p.methods.Lookup(inv.Method)

	var span trace.Span
	if p.tracer != nil {
		ctx, span = p.tracer.Start(ctx, "pipeline.Invoke "+inv.Method,
			trace.WithAttributes(attribute.String("gatekeeper.method", inv.Method)))
		defer span.End()
	}

	env := p.invoke(ctx, inv, desc)
	p.recordOutcome(inv, start, env)

	if span != nil && !env.OK {
		span.SetStatus(codes.Error, env.Description)
		span.SetAttributes(attribute.String("gatekeeper.error_category", string(env.Classify())))
	}
	return env
}

func (p *Pipeline) recordOutcome(inv gateway.Invocation, start time.Time, env gateway.Envelope) {
	outcome := "success"
	if !env.OK {
		outcome = "failure"
	}
	if p.metrics != nil {
		p.metrics.RequestsTotal.WithLabelValues(inv.Method, outcome).Inc()
		p.metrics.RequestDuration.WithLabelValues(inv.Method).Observe(time.Since(start).Seconds())
		if !env.OK {
			p.metrics.ErrorsByCategory.WithLabelValues(inv.Method, string(env.Classify())).Inc()
		}
	}
}

func (p *Pipeline) invoke(ctx context.Context, inv gateway.Invocation, desc *gateway.MethodDescriptor) gateway.Envelope {
	// 1. Validate.
	if desc != nil {
		if res := validate.Validate(desc, inv.Params); !res.OK {
			return gateway.Envelope{OK: false, Description: "Validation failed: " + res.Error()}
		}
	}

	// 2. Cache probe.
	if desc != nil && desc.Cacheable {
		if cached, ok := p.cache.Lookup(inv.Method, inv.Params); ok {
			if p.metrics != nil {
				p.metrics.CacheHits.Inc()
			}
			return gateway.Envelope{OK: true, Result: cached}
		}
		if p.metrics != nil {
			p.metrics.CacheMisses.Inc()
		}
	}

	// 3. Breaker admission. Refusal is not itself a qualifying failure --
	// no call was attempted, so the breaker's counters are left untouched.
	if !p.breaker.Allow() {
		return gateway.Envelope{
			OK:          false,
			ErrorCode:   intPtr(503),
			Description: "upstream unavailable: circuit breaker open",
		}
	}

	// 4. Global limit.
	if !inv.Options.SkipGlobalLimit {
		if d := p.global.Admit(); !d.Allowed {
			if p.metrics != nil {
				p.metrics.RateLimitHits.WithLabelValues("global").Inc()
			}
			return rateLimitEnvelope(d.WaitMs)
		}
	}

	// 5. Per-destination limit.
	destID, hasDest := destinationID(desc, inv.Params)
	if hasDest {
		if d := p.dests.AdmitFor(destID); !d.Allowed {
			if p.metrics != nil {
				p.metrics.RateLimitHits.WithLabelValues("per_chat").Inc()
			}
			return rateLimitEnvelope(d.WaitMs)
		}
	}

	// 6. Upload encoding.
	prepared, err := prepareUpload(desc, inv.Params)
	if err != nil {
		return gateway.Envelope{
			OK:          false,
			ErrorCode:   intPtr(400),
			Description: "upload encoding failed: " + err.Error(),
		}
	}

	timeout := p.clampTimeout(inv.Options.Timeout)
	maxRetries := p.maxRetries
	if inv.Options.MaxRetries != nil {
		maxRetries = *inv.Options.MaxRetries
	}

	onRetry := func(reason retry.Reason) {
		if p.metrics != nil {
			p.metrics.RetriesTotal.WithLabelValues(string(reason)).Inc()
		}
	}
	engine := retry.New(maxRetries, onRetry)

	// 7. Transport loop.
	env, transportErr := engine.Run(ctx, func(attemptCtx context.Context) (gateway.Envelope, error) {
		p.global.Record()
		callCtx, cancel := context.WithTimeout(attemptCtx, timeout)
		defer cancel()
		return p.client.Do(callCtx, upstream.Request{
			Method:      inv.Method,
			Body:        prepared.Body,
			ContentType: prepared.ContentType,
		})
	})

	if transportErr != nil {
		env = gateway.Envelope{OK: false, Description: transportErrDescription(transportErr)}
	}

	if env.OK {
		// 8. Post-processing on success.
		p.breaker.RecordSuccess()
		if desc != nil && desc.Cacheable {
			p.cache.Store(inv.Method, inv.Params, env.Result, desc.CacheTTL)
		}
		if hasDest {
			p.dests.RecordFor(destID)
		}
		return env
	}

	// 9. Post-processing on final failure.
	p.breaker.RecordError(env.ErrorCode)
	return env
}

func intPtr(n int) *int { return &n }

func rateLimitEnvelope(waitMs int64) gateway.Envelope {
	secs := int(math.Ceil(float64(waitMs) / 1000))
	return gateway.Envelope{
		OK:          false,
		ErrorCode:   intPtr(429),
		Description: fmt.Sprintf("Rate limit exceeded. Wait %d seconds.", secs),
		Parameters:  &gateway.ReplyParameters{RetryAfterSeconds: &secs},
	}
}

func destinationID(desc *gateway.MethodDescriptor, params map[string]any) (string, bool) {
	if desc == nil || !desc.DestScoped || desc.DestIDField == "" {
		return "", false
	}
	v, ok := params[desc.DestIDField]
	if !ok {
		return "", false
	}
	switch x := v.(type) {
	case string:
		return x, true
	case float64:
		return strconv.FormatInt(int64(x), 10), true
	default:
		return "", false
	}
}

func (p *Pipeline) clampTimeout(d time.Duration) time.Duration {
	if d <= 0 {
		d = p.defaultTimeout
	}
	if d <= 0 {
		return defaultTimeout
	}
	if d < 5*time.Second {
		return 5 * time.Second
	}
	if d > 120*time.Second {
		return 120 * time.Second
	}
	return d
}

func transportErrDescription(err error) string {
	if errorsIsDeadline(err) {
		return "transport timeout: " + err.Error()
	}
	return "transport error: " + err.Error()
}

func prepareUpload(desc *gateway.MethodDescriptor, params map[string]any) (upload.Prepared, error) {
	return upload.Prepare(desc, params)
}

func errorsIsDeadline(err error) bool {
	return errors.Is(err, context.DeadlineExceeded)
}
