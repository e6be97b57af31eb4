package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/eugener/gatekeeper/internal/cache"
	"github.com/eugener/gatekeeper/internal/circuitbreaker"
	"github.com/eugener/gatekeeper/internal/config"
	"github.com/eugener/gatekeeper/internal/health"
	"github.com/eugener/gatekeeper/internal/logging"
	"github.com/eugener/gatekeeper/internal/methods"
	"github.com/eugener/gatekeeper/internal/pipeline"
	"github.com/eugener/gatekeeper/internal/ratelimit"
	"github.com/eugener/gatekeeper/internal/telemetry"
	"github.com/eugener/gatekeeper/internal/transport"
	"github.com/eugener/gatekeeper/internal/transport/toolserver"
	"github.com/eugener/gatekeeper/internal/transport/webhook"
	"github.com/eugener/gatekeeper/internal/upstream"
	"github.com/eugener/gatekeeper/internal/worker"
)

const (
	cacheMaxSize  = 10_000
	dnsRefresh    = 5 * time.Minute
	shutdownGrace = 10 * time.Second
)

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	base := slog.New(logging.NewRedactingHandler(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: logging.LevelFromString(cfg.LogLevel),
	})))
	slog.SetDefault(base)

	r := cfg.Redacted()
	slog.Info("starting gatekeeper",
		"version", version,
		"upstream_host", r.UpstreamHost,
		"webhook_port", r.WebhookPort,
		"health_port", r.HealthPort,
		"tool_port", r.ToolPort,
		"tool_mode", r.ToolMode,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	var tracingShutdown func(context.Context) error
	if cfg.TracingEnabled {
		shutdown, err := telemetry.SetupTracing(ctx, os.Stderr)
		if err != nil {
			slog.Warn("tracing setup failed, continuing without tracing", "error", err)
		} else {
			tracingShutdown = shutdown
			slog.Info("opentelemetry tracing enabled")
		}
	}

	tbl := methods.NewDefault()
	if cfg.MethodsOverrideFile != "" {
		if err := tbl.LoadOverrides(cfg.MethodsOverrideFile); err != nil {
			return fmt.Errorf("loading method overrides: %w", err)
		}
		slog.Info("method overrides loaded", "file", cfg.MethodsOverrideFile, "methods", tbl.Len())
	}

	respCache, err := cache.New(cacheMaxSize)
	if err != nil {
		return fmt.Errorf("building cache: %w", err)
	}

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	promRegistry.MustRegister(collectors.NewGoCollector())
	metrics := telemetry.NewMetrics(promRegistry)

	breaker := circuitbreaker.New(circuitbreaker.DefaultConfig(), func(s circuitbreaker.State) {
		var v float64
		switch s {
		case circuitbreaker.StateOpen:
			v = 1
			metrics.CircuitBreakerTripsTotal.Inc()
		case circuitbreaker.StateHalfOpen:
			v = 2
		}
		metrics.CircuitBreakerState.Set(v)
	})

	globalLimiter := ratelimit.NewGlobalLimiter(int(cfg.RateLimitPerMinute))
	destLimiters := ratelimit.NewDestinationRegistry()

	// Drop per-destination state untouched for a full window, once a minute.
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				destLimiters.EvictStale(time.Now().Add(-time.Minute))
			}
		}
	}()

	resolver := upstream.NewResolver(ctx, dnsRefresh)
	client := upstream.New(cfg.UpstreamHost, cfg.BotToken, resolver)

	pl := pipeline.New(tbl, respCache, breaker, globalLimiter, destLimiters, client, metrics, cfg.MaxRetries)
	pl.SetDefaultTimeout(cfg.RequestTimeout)
	if tracingShutdown != nil {
		pl.SetTracer(telemetry.Tracer("gatekeeper/pipeline"))
	}

	aggregator := health.New(breaker, globalLimiter, func() bool { return true })

	webhookQueue := webhook.NewQueue()
	webhookHandler := webhook.New(cfg.WebhookSecret, webhookQueue)

	toolMode := toolserver.ModeMeta
	if cfg.ToolMode == "flat" {
		toolMode = toolserver.ModeFlat
	}
	toolWorkers := toolserver.Workers(toolMode, fmt.Sprintf(":%d", cfg.ToolPort), tbl, pl)

	healthHandler := newHealthMux(aggregator, promRegistry)

	workers := []worker.Worker{
		newHTTPWorker("webhook", fmt.Sprintf(":%d", cfg.WebhookPort), webhookHandler),
		newHTTPWorker("health", fmt.Sprintf(":%d", cfg.HealthPort), healthHandler),
		toolWorkers[0],
		toolWorkers[1],
	}
	runner := worker.NewRunner(workers...)

	slog.Info("gatekeeper ready", "methods", tbl.Len())

	runErr := runner.Run(ctx)

	if tracingShutdown != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := tracingShutdown(shutdownCtx); err != nil {
			slog.Error("tracing shutdown", "error", err)
		}
	}

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	slog.Info("gatekeeper stopped")
	return nil
}

// newHealthMux builds the /health, /ready, /live, /metrics handlers backed
// by aggregator, grounded on the teacher's internal/server health routes.
func newHealthMux(aggregator *health.Aggregator, reg *prometheus.Registry) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, req *http.Request) {
		status := aggregator.Status()
		w.Header().Set("Content-Type", "application/json")
		if status.Overall == "unhealthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(status)
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, req *http.Request) {
		if !aggregator.Ready() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/live", func(w http.ResponseWriter, req *http.Request) {
		if !aggregator.Live() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	var h http.Handler = mux
	h = transport.Logging(h)
	h = transport.RequestID(h)
	h = transport.Recovery(h)
	return h
}

// httpWorker adapts a plain net/http.Server to worker.Worker so it can run
// alongside the tool-protocol transports under a single worker.Runner.
type httpWorker struct {
	name string
	srv  *http.Server
}

func newHTTPWorker(name, addr string, handler http.Handler) *httpWorker {
	return &httpWorker{
		name: name,
		srv: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
	}
}

func (h *httpWorker) Name() string { return h.name }

func (h *httpWorker) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() { errCh <- h.srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := h.srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("http worker shutdown", "name", h.name, "error", err)
		}
		return nil
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("%s listener: %w", h.name, err)
		}
		return nil
	}
}
