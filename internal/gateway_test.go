package gateway

import (
	"context"
	"testing"
)

func TestEnvelope_Classify(t *testing.T) {
	t.Parallel()

	code := func(n int) *int { return &n }

	tests := []struct {
		name string
		env  Envelope
		want ErrorCategory
	}{
		{name: "timeout in description wins first", env: Envelope{Description: "request timeout after 30s", ErrorCode: code(500)}, want: CategoryTimeout},
		{name: "circuit breaker wins over code", env: Envelope{Description: "circuit breaker open for destination", ErrorCode: code(503)}, want: CategoryCircuitOpen},
		{name: "no code is network", env: Envelope{Description: "connection reset"}, want: CategoryNetwork},
		{name: "429 is rate limited", env: Envelope{ErrorCode: code(429)}, want: CategoryRateLimited},
		{name: "500 is server", env: Envelope{ErrorCode: code(500)}, want: CategoryServer},
		{name: "502 is server", env: Envelope{ErrorCode: code(502)}, want: CategoryServer},
		{name: "400 is client", env: Envelope{ErrorCode: code(400)}, want: CategoryClient},
		{name: "404 is client", env: Envelope{ErrorCode: code(404)}, want: CategoryClient},
		{name: "case insensitive timeout match", env: Envelope{Description: "Timeout waiting for upstream"}, want: CategoryTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.env.Classify(); got != tt.want {
				t.Errorf("Classify() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestContextWithRequestID_RequestIDFromContext(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		id   string
	}{
		{name: "non-empty", id: "req-abc-123"},
		{name: "empty string", id: ""},
		{name: "uuid-like", id: "018f1b2c-3d4e-7a5b-8c9d-0e1f2a3b4c5d"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ctx := ContextWithRequestID(context.Background(), tt.id)
			got := RequestIDFromContext(ctx)
			if got != tt.id {
				t.Errorf("RequestIDFromContext = %q, want %q", got, tt.id)
			}
		})
	}

	t.Run("missing from context", func(t *testing.T) {
		t.Parallel()
		got := RequestIDFromContext(context.Background())
		if got != "" {
			t.Errorf("RequestIDFromContext on bare ctx = %q, want empty", got)
		}
	})

	t.Run("mutates existing meta in place", func(t *testing.T) {
		t.Parallel()
		ctx := ContextWithRequestID(context.Background(), "first")
		ctx2 := ContextWithRequestID(ctx, "second")
		if ctx2 != ctx {
			t.Error("ContextWithRequestID should reuse the context when meta already present")
		}
		if got := RequestIDFromContext(ctx2); got != "second" {
			t.Errorf("RequestIDFromContext = %q, want second", got)
		}
	})
}

func TestMetaFromContext(t *testing.T) {
	t.Parallel()

	t.Run("nil on bare context", func(t *testing.T) {
		t.Parallel()
		if m := metaFromContext(context.Background()); m != nil {
			t.Errorf("expected nil, got %v", m)
		}
	})

	t.Run("returns stored meta", func(t *testing.T) {
		t.Parallel()
		ctx := ContextWithRequestID(context.Background(), "r1")
		m := metaFromContext(ctx)
		if m == nil {
			t.Fatal("expected non-nil meta")
		}
		if m.RequestID != "r1" {
			t.Errorf("RequestID = %q, want r1", m.RequestID)
		}
	})
}
