// Package config loads and validates the gateway's process settings from
// environment variables, per spec §6.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

var botTokenPattern = regexp.MustCompile(`^\d+:[A-Za-z0-9_-]+$`)

// Config is the full set of process settings, assembled once at startup
// from the environment and held read-only thereafter.
type Config struct {
	BotToken   string        `validate:"required"`
	UpstreamHost string      `validate:"required,hostname_rfc1123"`
	LogLevel   string        `validate:"required,oneof=debug info notice warning error critical"`
	RequestTimeout time.Duration
	MaxRetries     int
	RateLimitPerMinute int64
	WebhookURL     string
	WebhookSecret  string
	WebhookPort    int
	HealthPort     int
	Debug          bool
	MethodsOverrideFile string
	ToolMode       string        `validate:"oneof=flat meta"`
	ToolPort       int
	TracingEnabled bool
}

// RedactedConfig is the log-safe view of Config per spec §6 and §7: the bot
// token shown as first4…last4, secrets replaced outright, URLs reduced to
// scheme://host/***.
type RedactedConfig struct {
	BotToken            string
	UpstreamHost        string
	LogLevel            string
	RequestTimeout      time.Duration
	MaxRetries          int
	RateLimitPerMinute  int64
	WebhookURL          string
	WebhookSecret       string
	WebhookPort         int
	HealthPort          int
	Debug               bool
	MethodsOverrideFile string
	ToolMode            string
	ToolPort            int
	TracingEnabled      bool
}

const (
	minRequestTimeout = 5 * time.Second
	maxRequestTimeout = 120 * time.Second
	defaultRequestTimeout = 30 * time.Second

	minRetries     = 0
	maxRetries     = 10
	defaultRetries = 3

	minRatePerMinute     = 1
	maxRatePerMinute     = 60
	defaultRatePerMinute = 30
)

// Load reads and validates the gateway configuration from the process
// environment. The *_BOT_TOKEN env var is looked up by trying every env
// var whose name ends in _BOT_TOKEN, taking the first match found, which
// mirrors spec §6's "*_BOT_TOKEN" naming (the actual prefix is operator
// chosen, e.g. TELEGRAM_BOT_TOKEN).
func Load() (*Config, error) {
	token, err := findBotToken()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		BotToken:           token,
		UpstreamHost:       getenvDefault("UPSTREAM_HOST", "api.telegram.org"),
		LogLevel:           strings.ToLower(getenvDefault("LOG_LEVEL", "info")),
		RequestTimeout:     clampDuration(getenvMillis("REQUEST_TIMEOUT", defaultRequestTimeout), minRequestTimeout, maxRequestTimeout),
		MaxRetries:         clampInt(getenvInt("MAX_RETRIES", defaultRetries), minRetries, maxRetries),
		RateLimitPerMinute: int64(clampInt(getenvInt("RATE_LIMIT_PER_MINUTE", defaultRatePerMinute), minRatePerMinute, maxRatePerMinute)),
		WebhookURL:         os.Getenv("WEBHOOK_URL"),
		WebhookSecret:      os.Getenv("WEBHOOK_SECRET"),
		WebhookPort:        getenvInt("WEBHOOK_PORT", 8081),
		HealthPort:         getenvInt("HEALTH_PORT", 8080),
		Debug:              getenvBool("DEBUG", false),
		MethodsOverrideFile: os.Getenv("METHODS_OVERRIDE_FILE"),
		ToolMode:            strings.ToLower(getenvDefault("TOOL_MODE", "meta")),
		ToolPort:            getenvInt("TOOL_PORT", 8090),
		TracingEnabled:      getenvBool("TRACING_ENABLED", false),
	}

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func validateConfig(cfg *Config) error {
	v := validator.New()
	if err := v.Struct(cfg); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if !botTokenPattern.MatchString(cfg.BotToken) {
		return fmt.Errorf("config: bot token does not match the expected \\d+:[A-Za-z0-9_-]+ shape")
	}
	return nil
}

func findBotToken() (string, error) {
	for _, kv := range os.Environ() {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		if strings.HasSuffix(k, "_BOT_TOKEN") {
			return v, nil
		}
	}
	return "", fmt.Errorf("config: no *_BOT_TOKEN environment variable set")
}

// Redacted returns the masked view of cfg safe to pass to the structured
// logger at startup.
func (c *Config) Redacted() RedactedConfig {
	return RedactedConfig{
		BotToken:            maskToken(c.BotToken),
		UpstreamHost:        c.UpstreamHost,
		LogLevel:            c.LogLevel,
		RequestTimeout:      c.RequestTimeout,
		MaxRetries:          c.MaxRetries,
		RateLimitPerMinute:  c.RateLimitPerMinute,
		WebhookURL:          maskURL(c.WebhookURL),
		WebhookSecret:       maskSecret(c.WebhookSecret),
		WebhookPort:         c.WebhookPort,
		HealthPort:          c.HealthPort,
		Debug:               c.Debug,
		MethodsOverrideFile: c.MethodsOverrideFile,
		ToolMode:            c.ToolMode,
		ToolPort:            c.ToolPort,
		TracingEnabled:      c.TracingEnabled,
	}
}

func maskToken(tok string) string {
	if len(tok) <= 8 {
		return "[REDACTED]"
	}
	return tok[:4] + "…" + tok[len(tok)-4:]
}

func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	return "[REDACTED]"
}

func maskURL(raw string) string {
	if raw == "" {
		return ""
	}
	scheme, rest, ok := strings.Cut(raw, "://")
	if !ok {
		return "***"
	}
	host := rest
	if idx := strings.IndexAny(rest, "/?#"); idx >= 0 {
		host = rest[:idx]
	}
	return scheme + "://" + host + "/***"
}

func getenvDefault(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getenvMillis(key string, def time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return time.Duration(n) * time.Millisecond
}

func getenvBool(key string, def bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampDuration(v, lo, hi time.Duration) time.Duration {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
