package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("APP_ENV", "dev")
	t.Setenv("WEBHOOK_SIGNING_SECRETS", "whsec_a")
	t.Setenv("QUEUE_SIGNING_KEY", "qsk_current")
	t.Setenv("QUEUE_URL", "https://queue.example.com")
	t.Setenv("QUEUE_TOKEN", "qtok_secret")
	t.Setenv("WORKER_URL", "https://app.eventkasse.de/workers/payflow-webhook")
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "payflow", cfg.Provider)
	assert.Equal(t, 300*time.Second, cfg.Tolerance)
	assert.Equal(t, 120, cfg.RateLimitMax)
	assert.Equal(t, 60*time.Second, cfg.RateLimitWindow)
	assert.Equal(t, 100*time.Millisecond, cfg.PollInterval)
	assert.Equal(t, 2*time.Second, cfg.PollCeiling)
	assert.False(t, cfg.IPAllowlistEnabled)
	assert.False(t, cfg.IsProd())
}

func TestLoad_SecretRotation(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("WEBHOOK_SIGNING_SECRETS", "whsec_new, whsec_old")
	t.Setenv("QUEUE_SIGNING_KEY_NEXT", "qsk_next")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"whsec_new", "whsec_old"}, cfg.SigningSecrets)
	assert.Equal(t, []string{"qsk_current", "qsk_next"}, cfg.QueueSigningKeys())
}

func TestLoad_DurationsFromEnv(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("WEBHOOK_TOLERANCE_SECONDS", "120")
	t.Setenv("RESULT_POLL_INTERVAL_MS", "50")
	t.Setenv("RESULT_POLL_CEILING_MS", "500")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 2*time.Minute, cfg.Tolerance)
	assert.Equal(t, 50*time.Millisecond, cfg.PollInterval)
	assert.Equal(t, 500*time.Millisecond, cfg.PollCeiling)
}

func TestLoad_IPAllowlist(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("WEBHOOK_IP_ALLOWLIST_ENABLED", "true")
	t.Setenv("WEBHOOK_IP_ALLOWLIST", "203.0.113.0/24, 198.51.100.7")

	cfg, err := Load()
	require.NoError(t, err)
	require.Len(t, cfg.IPAllowlist, 2)

	// Bare IPs become single-host networks.
	ones, bits := cfg.IPAllowlist[1].Mask.Size()
	assert.Equal(t, 32, ones)
	assert.Equal(t, 32, bits)
}

func TestLoad_Failures(t *testing.T) {
	tests := []struct {
		name  string
		mutate func(t *testing.T)
	}{
		{
			name: "no signing secrets",
			mutate: func(t *testing.T) {
				t.Setenv("WEBHOOK_SIGNING_SECRETS", "")
			},
		},
		{
			name: "invalid queue url",
			mutate: func(t *testing.T) {
				t.Setenv("QUEUE_URL", "not-a-url")
			},
		},
		{
			name: "allowlist enabled but empty",
			mutate: func(t *testing.T) {
				t.Setenv("WEBHOOK_IP_ALLOWLIST_ENABLED", "true")
				t.Setenv("WEBHOOK_IP_ALLOWLIST", "")
			},
		},
		{
			name: "malformed allowlist entry",
			mutate: func(t *testing.T) {
				t.Setenv("WEBHOOK_IP_ALLOWLIST", "not-an-ip")
			},
		},
		{
			name: "unknown app env",
			mutate: func(t *testing.T) {
				t.Setenv("APP_ENV", "experimental")
			},
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			setRequiredEnv(t)
			tc.mutate(t)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
