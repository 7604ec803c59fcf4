package config

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/eventkasse/eventkasse/internal/pkg/env"
)

// Config is built once at process start from the environment and passed into
// component constructors. Request handlers never read env vars directly.
type Config struct {
	AppEnv   string `validate:"required,oneof=dev staging prod"`
	Provider string `validate:"required"`

	// Provider webhook signing secrets. More than one entry means a rotation
	// is in progress; every candidate is tried during verification.
	SigningSecrets []string `validate:"required,min=1,dive,required"`

	// Hosted queue callback signing keys (current + next for rotation).
	QueueSigningKey     string `validate:"required"`
	QueueSigningKeyNext string

	QueueURL   string `validate:"required,url"`
	QueueToken string `validate:"required"`

	// Public URL of the worker endpoint the queue calls back into.
	WorkerURL string `validate:"required,url"`

	// Replay protection window for signed timestamps.
	Tolerance time.Duration `validate:"required"`

	RateLimitMax    int           `validate:"required,min=1"`
	RateLimitWindow time.Duration `validate:"required"`

	IPAllowlistEnabled bool
	IPAllowlist        []*net.IPNet

	// Bounded polling for results of concurrently claimed events.
	PollInterval time.Duration `validate:"required"`
	PollCeiling  time.Duration `validate:"required"`
}

// Load reads the environment into a validated Config.
func Load() (*Config, error) {
	cfg := &Config{
		AppEnv:              env.GetEnv("APP_ENV", "prod"),
		Provider:            env.GetEnv("WEBHOOK_PROVIDER", "payflow"),
		SigningSecrets:      splitCSV(env.GetEnv("WEBHOOK_SIGNING_SECRETS", "")),
		QueueSigningKey:     env.GetEnv("QUEUE_SIGNING_KEY", ""),
		QueueSigningKeyNext: env.GetEnv("QUEUE_SIGNING_KEY_NEXT", ""),
		QueueURL:            env.GetEnv("QUEUE_URL", ""),
		QueueToken:          env.GetEnv("QUEUE_TOKEN", ""),
		WorkerURL:           env.GetEnv("WORKER_URL", ""),
		Tolerance:           durationEnv("WEBHOOK_TOLERANCE_SECONDS", 300*time.Second),
		RateLimitMax:        intEnv("WEBHOOK_RATE_LIMIT_MAX", 120),
		RateLimitWindow:     durationEnv("WEBHOOK_RATE_LIMIT_WINDOW_SECONDS", 60*time.Second),
		IPAllowlistEnabled:  boolEnv("WEBHOOK_IP_ALLOWLIST_ENABLED", false),
		PollInterval:        durationEnv("RESULT_POLL_INTERVAL_MS", 100*time.Millisecond),
		PollCeiling:         durationEnv("RESULT_POLL_CEILING_MS", 2*time.Second),
	}

	allowlist, err := parseCIDRs(splitCSV(env.GetEnv("WEBHOOK_IP_ALLOWLIST", "")))
	if err != nil {
		return nil, fmt.Errorf("config: invalid WEBHOOK_IP_ALLOWLIST: %w", err)
	}
	cfg.IPAllowlist = allowlist

	if cfg.IPAllowlistEnabled && len(cfg.IPAllowlist) == 0 {
		return nil, fmt.Errorf("config: WEBHOOK_IP_ALLOWLIST_ENABLED is set but WEBHOOK_IP_ALLOWLIST is empty")
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("config: validation failed: %w", err)
	}
	return cfg, nil
}

// QueueSigningKeys returns the accepted callback keys, current first.
func (c *Config) QueueSigningKeys() []string {
	keys := []string{c.QueueSigningKey}
	if c.QueueSigningKeyNext != "" {
		keys = append(keys, c.QueueSigningKeyNext)
	}
	return keys
}

// IsProd reports whether production-only gates (IP allowlist) apply.
func (c *Config) IsProd() bool {
	return c.AppEnv == "prod" || c.AppEnv == "staging"
}

func splitCSV(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if v := strings.TrimSpace(p); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func parseCIDRs(raw []string) ([]*net.IPNet, error) {
	nets := make([]*net.IPNet, 0, len(raw))
	for _, entry := range raw {
		// Bare IPs are accepted as /32 (or /128) entries.
		if !strings.Contains(entry, "/") {
			if ip := net.ParseIP(entry); ip != nil {
				bits := 32
				if ip.To4() == nil {
					bits = 128
				}
				entry = fmt.Sprintf("%s/%d", entry, bits)
			}
		}
		_, ipNet, err := net.ParseCIDR(entry)
		if err != nil {
			return nil, err
		}
		nets = append(nets, ipNet)
	}
	return nets, nil
}

func intEnv(key string, def int) int {
	raw := env.GetEnv(key, "")
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}

func boolEnv(key string, def bool) bool {
	raw := env.GetEnv(key, "")
	if raw == "" {
		return def
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return def
	}
	return v
}

// durationEnv reads an integer env value in the unit implied by the key
// suffix (_SECONDS or _MS) and falls back to def when unset or invalid.
func durationEnv(key string, def time.Duration) time.Duration {
	raw := env.GetEnv(key, "")
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return def
	}
	if strings.HasSuffix(key, "_MS") {
		return time.Duration(v) * time.Millisecond
	}
	return time.Duration(v) * time.Second
}
