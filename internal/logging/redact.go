// Package logging provides the gateway's structured logger, a thin
// log/slog wrapper that redacts sensitive fields before they reach any
// handler's output stream.
package logging

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
)

const maxRedactDepth = 10

const redactedSentinel = "[REDACTED]"
const truncatedSentinel = "[TRUNCATED]"

var sensitiveKeys = []string{
	"token", "password", "secret", "apikey", "authorization",
	"credentials", "bottoken", "providertoken", "webhooksecret",
}

// secretShapes re-scans string values that survive the key-based check,
// catching secrets embedded in otherwise innocuous-looking fields (e.g. a
// bot token accidentally logged under "chat_id").
var secretShapes = []*regexp.Regexp{
	regexp.MustCompile(`\b\d+:[A-Za-z0-9_-]{30,}\b`),      // bot-token shape
	regexp.MustCompile(`(?i)\bBearer\s+[A-Za-z0-9._-]+\b`), // bearer header
	regexp.MustCompile(`\b[A-Za-z0-9+/=_-]{32,}\b`),        // generic hex/base64 blob
}

// RedactingHandler wraps an slog.Handler, scrubbing attribute values whose
// key names or string contents match a known secret shape before
// delegating to the wrapped handler.
type RedactingHandler struct {
	next slog.Handler
}

// NewRedactingHandler wraps next with redaction.
func NewRedactingHandler(next slog.Handler) *RedactingHandler {
	return &RedactingHandler{next: next}
}

func (h *RedactingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *RedactingHandler) Handle(ctx context.Context, r slog.Record) error {
	nr := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)
	r.Attrs(func(a slog.Attr) bool {
		nr.AddAttrs(redactAttr(a, 0))
		return true
	})
	return h.next.Handle(ctx, nr)
}

func (h *RedactingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		out[i] = redactAttr(a, 0)
	}
	return &RedactingHandler{next: h.next.WithAttrs(out)}
}

func (h *RedactingHandler) WithGroup(name string) slog.Handler {
	return &RedactingHandler{next: h.next.WithGroup(name)}
}

func redactAttr(a slog.Attr, depth int) slog.Attr {
	if depth > maxRedactDepth {
		return slog.String(a.Key, truncatedSentinel)
	}
	if isSensitiveKey(a.Key) {
		return slog.String(a.Key, redactedSentinel)
	}

	v := a.Value.Resolve()
	switch v.Kind() {
	case slog.KindGroup:
		grp := v.Group()
		out := make([]slog.Attr, len(grp))
		for i, ga := range grp {
			out[i] = redactAttr(ga, depth+1)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(out...)}
	case slog.KindString:
		return slog.String(a.Key, redactString(v.String()))
	case slog.KindAny:
		return slog.Any(a.Key, redactAny(v.Any(), depth+1))
	default:
		return a
	}
}

func redactAny(val any, depth int) any {
	if depth > maxRedactDepth {
		return truncatedSentinel
	}
	switch x := val.(type) {
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, v := range x {
			if isSensitiveKey(k) {
				out[k] = redactedSentinel
				continue
			}
			out[k] = redactAny(v, depth+1)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, v := range x {
			out[i] = redactAny(v, depth+1)
		}
		return out
	case string:
		return redactString(x)
	default:
		return x
	}
}

func redactString(s string) string {
	for _, re := range secretShapes {
		if re.MatchString(s) {
			return re.ReplaceAllString(s, redactedSentinel)
		}
	}
	return s
}

func isSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, s := range sensitiveKeys {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}

// LevelFromString maps spec §6's level names onto slog.Level. notice and
// critical have no direct slog equivalent and are mapped to adjacent
// offsets, the same kind of small adapter table the teacher uses for
// role-to-permission mapping.
func LevelFromString(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "notice":
		return slog.LevelInfo + 2
	case "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	case "critical":
		return slog.LevelError + 4
	default:
		return slog.LevelInfo
	}
}
