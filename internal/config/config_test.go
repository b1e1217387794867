package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"AI_GATEWAY_API_KEY", "LOVABLE_API_KEY", "CORS_ALLOWED_ORIGINS", "MODEL_COST_PENALTY", "PORT"} {
		t.Setenv(key, "")
	}

	cfg := Load()

	require.Equal(t, "8080", cfg.Port)
	require.Empty(t, cfg.GatewayAPIKey)
	require.Equal(t, []string{"*"}, cfg.CORSAllowedOrigins)
	require.InDelta(t, 0.1, cfg.ModelCostPenalty, 1e-9)
	require.Equal(t, 60*time.Second, cfg.GatewayTimeout())
	require.Equal(t, time.Duration(0), cfg.StreamIdleTimeout())
	require.Equal(t, time.Hour, cfg.GeoCacheTTL())
	require.True(t, cfg.WorkerEnabled)
}

func TestLoadGatewayKeyFallsBackToLovableKey(t *testing.T) {
	t.Setenv("AI_GATEWAY_API_KEY", "")
	t.Setenv("LOVABLE_API_KEY", "lovable-secret")
	require.Equal(t, "lovable-secret", Load().GatewayAPIKey)

	t.Setenv("AI_GATEWAY_API_KEY", "primary")
	require.Equal(t, "primary", Load().GatewayAPIKey)
}

func TestLoadParsesTypedValues(t *testing.T) {
	t.Setenv("CORS_ALLOWED_ORIGINS", " https://a.example , ,https://b.example")
	t.Setenv("MODEL_COST_PENALTY", "0.25")
	t.Setenv("RATE_LIMIT_BURST", "not-a-number")
	t.Setenv("PERSISTENCE_WORKER_ENABLED", "false")

	cfg := Load()

	require.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowedOrigins)
	require.InDelta(t, 0.25, cfg.ModelCostPenalty, 1e-9)
	require.Equal(t, 20, cfg.RateLimitBurst)
	require.False(t, cfg.WorkerEnabled)
}

func TestLoadDotEnvKeepsProcessPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	content := "# comment\n" +
		"export JARVIS_TEST_A=from-file\n" +
		"JARVIS_TEST_B=\"line\\nbreak\"\n" +
		"JARVIS_TEST_C=plain # trailing\n" +
		"JARVIS_TEST_D='single # kept'\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	t.Setenv("JARVIS_TEST_A", "from-process")
	for _, key := range []string{"JARVIS_TEST_B", "JARVIS_TEST_C", "JARVIS_TEST_D"} {
		key := key
		require.NoError(t, os.Unsetenv(key))
		t.Cleanup(func() { _ = os.Unsetenv(key) })
	}

	loaded, err := LoadDotEnv(path, filepath.Join(dir, ".env.local"))
	require.NoError(t, err)
	require.Equal(t, []string{path}, loaded)

	require.Equal(t, "from-process", os.Getenv("JARVIS_TEST_A"))
	require.Equal(t, "line\nbreak", os.Getenv("JARVIS_TEST_B"))
	require.Equal(t, "plain", os.Getenv("JARVIS_TEST_C"))
	require.Equal(t, "single # kept", os.Getenv("JARVIS_TEST_D"))
}

func TestLoadDotEnvRejectsMalformedLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("JUST_A_WORD\n"), 0o600))

	_, err := LoadDotEnv(path)
	require.ErrorContains(t, err, "line 1")
}
