// Package gateway defines the domain types shared across the bot API
// gateway. This package has no project imports -- it is the dependency
// root.
package gateway

import (
	"context"
	"encoding/json"
	"time"
)

// --- Method descriptor ---

// MethodDescriptor is the static, read-only description of a single
// upstream method. The pipeline consults it to decide whether a call is
// cacheable, destination-scoped, or upload-bearing; it never branches on
// the method name directly.
type MethodDescriptor struct {
	Name         string
	Required     []string
	Optional     []string
	Schema       map[string]FieldSchema // per-parameter constraints, keyed by field name
	CrossField   []CrossFieldRule
	DestScoped   bool   // true for message-sending-style methods
	DestIDField  string // params field carrying the destination id, e.g. "chat_id"
	Cacheable    bool
	CacheTTL     time.Duration
	UploadFields []string // top-level params fields that may carry a local file
	NestedUpload []string // top-level params fields that are arrays/objects to descend into
	Category     string   // grouping used by "find", e.g. "messaging", "chat", "stickers"
	Description  string
}

// FieldSchema describes a single parameter's type constraints.
type FieldSchema struct {
	Type    string // "string", "integer", "number", "boolean", "array", "object"
	Enum    []string
	Min     *float64
	Max     *float64
	Items   *FieldSchema // constraint applied to each array element
}

// CrossFieldRule expresses an either/or requirement across fields, e.g.
// editMessageText requires chat_id+message_id OR inline_message_id.
type CrossFieldRule struct {
	Description string
	AnyOf       [][]string // at least one group must be fully present
}

// --- Invocation / envelope ---

// Options carries per-invocation overrides that do not belong in params.
type Options struct {
	SkipGlobalLimit bool
	Timeout         time.Duration
	MaxRetries      *int
}

// Invocation is a single `{method, params, options}` request into the
// pipeline, as described by spec §3.
type Invocation struct {
	Method  string
	Params  map[string]any
	Options Options
}

// ReplyParameters carries the small set of structured hints the upstream
// platform attaches to certain replies.
type ReplyParameters struct {
	RetryAfterSeconds *int `json:"retry_after_seconds,omitempty"`
}

// Envelope is the canonical `{ok, result?, description?, errorCode?,
// parameters?}` shape returned by every invocation, success or failure.
type Envelope struct {
	OK          bool             `json:"ok"`
	Result      json.RawMessage  `json:"result,omitempty"`
	Description string           `json:"description,omitempty"`
	ErrorCode   *int             `json:"error_code,omitempty"`
	Parameters  *ReplyParameters `json:"parameters,omitempty"`
}

// ErrorCategory is one of the seven mutually exclusive failure categories
// from spec §7.
type ErrorCategory string

const (
	CategoryValidation  ErrorCategory = "VALIDATION"
	CategoryClient      ErrorCategory = "CLIENT"
	CategoryServer      ErrorCategory = "SERVER"
	CategoryNetwork     ErrorCategory = "NETWORK"
	CategoryRateLimited ErrorCategory = "RATE_LIMITED"
	CategoryTimeout     ErrorCategory = "TIMEOUT"
	CategoryCircuitOpen ErrorCategory = "CIRCUIT_OPEN"
)

// Classify assigns an Envelope's failure to one of the seven categories per
// spec §7's first-match-wins rule. Callers must only invoke this for
// !envelope.OK.
func (e Envelope) Classify() ErrorCategory {
	switch {
	case containsFold(e.Description, "timeout"):
		return CategoryTimeout
	case containsFold(e.Description, "circuit breaker"):
		return CategoryCircuitOpen
	case e.ErrorCode == nil:
		return CategoryNetwork
	case *e.ErrorCode == 429:
		return CategoryRateLimited
	case *e.ErrorCode >= 500:
		return CategoryServer
	case *e.ErrorCode >= 400:
		return CategoryClient
	default:
		return CategoryClient
	}
}

func containsFold(s, substr string) bool {
	if len(substr) == 0 {
		return true
	}
	sl, subl := len(s), len(substr)
	for i := 0; i+subl <= sl; i++ {
		if equalFold(s[i:i+subl], substr) {
			return true
		}
	}
	return false
}

func equalFold(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		ca, cb := a[i], b[i]
		if 'A' <= ca && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if 'A' <= cb && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}

// --- Context keys ---

type contextKey int

const ctxKeyMeta contextKey = 0

// requestMeta bundles per-request values into a single context allocation.
// It currently carries only the request id; a transport that already holds
// a meta pointer mutates it rather than re-allocating the context.
type requestMeta struct {
	RequestID string
}

func metaFromContext(ctx context.Context) *requestMeta {
	m, _ := ctx.Value(ctxKeyMeta).(*requestMeta)
	return m
}

// RequestIDFromContext extracts the request ID from context, or "" if none
// was set.
func RequestIDFromContext(ctx context.Context) string {
	if m := metaFromContext(ctx); m != nil {
		return m.RequestID
	}
	return ""
}

// ContextWithRequestID returns a context carrying the given request ID,
// mutating the existing requestMeta in place if one is already present.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	if m := metaFromContext(ctx); m != nil {
		m.RequestID = id
		return ctx
	}
	return context.WithValue(ctx, ctxKeyMeta, &requestMeta{RequestID: id})
}
