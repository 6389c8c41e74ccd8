package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T, keys ...string) {
	for _, k := range keys {
		original, had := os.LookupEnv(k)
		require.NoError(t, os.Unsetenv(k))
		t.Cleanup(func() {
			if had {
				os.Setenv(k, original)
			}
		})
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t, "WKFLWS_PORT", "WKFLWS_KAFKA_HOST", "WKFLWS_WORKFLOW_LOOKUP_BACKEND", "WKFLWS_EXECUTOR_BACKEND")

	cfg, err := Load("wkflws-test")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Service.Port)
	assert.Equal(t, "filesystem", cfg.Lookup.Backend)
	assert.Equal(t, "subprocess", cfg.Executor.Backend)
	assert.False(t, cfg.Kafka.Enabled())
}

func TestLoadRejectsUnknownLookupBackend(t *testing.T) {
	require.NoError(t, os.Setenv("WKFLWS_WORKFLOW_LOOKUP_BACKEND", "smoke-signal"))
	t.Cleanup(func() { os.Unsetenv("WKFLWS_WORKFLOW_LOOKUP_BACKEND") })

	_, err := Load("wkflws-test")
	require.Error(t, err)
}

func TestKafkaEnabledWhenHostSet(t *testing.T) {
	require.NoError(t, os.Setenv("WKFLWS_KAFKA_HOST", "broker.internal"))
	t.Cleanup(func() { os.Unsetenv("WKFLWS_KAFKA_HOST") })

	cfg, err := Load("wkflws-test")
	require.NoError(t, err)
	assert.True(t, cfg.Kafka.Enabled())
	assert.Equal(t, []string{"broker.internal:9092"}, cfg.Kafka.Brokers())
}

func TestRedisAddr(t *testing.T) {
	r := RedisConfig{Host: "cache.internal", Port: 6380}
	assert.Equal(t, "cache.internal:6380", r.Addr())
}
