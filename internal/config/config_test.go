package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadServerConfigDefaults(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := LoadServerConfig()
	require.NoError(t, err)
	require.Equal(t, ":9010", cfg.HTTPAddr)
	require.Equal(t, StoreMemory, cfg.Store)
	require.InDelta(t, 0.10, cfg.DecisionThreshold, 1e-9)
	require.Equal(t, "10pm", cfg.DefaultPollTime)
	require.Equal(t, 1, cfg.Retries)
	require.Equal(t, 24*time.Hour, cfg.PollTTL)
	require.Equal(t, "schedbot", cfg.MQTT.TopicPrefix)
	require.False(t, cfg.MQTT.Enabled())
	require.Equal(t, "console", cfg.Log.Format)
}

func TestLoadServerConfigOverrides(t *testing.T) {
	t.Setenv("EMBED_URL", "http://embed:8000/")
	t.Setenv("STORE_BACKEND", "Redis")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("DECISION_THRESHOLD", "0.25")
	t.Setenv("POLL_TTL", "90")
	t.Setenv("POLL_EXPIRY_INTERVAL", "30s")
	t.Setenv("MQTT_BROKER_URL", "tcp://broker:1883")

	cfg, err := LoadServerConfig()
	require.NoError(t, err)
	require.Equal(t, "http://embed:8000", cfg.EmbedURL)
	require.Equal(t, StoreRedis, cfg.Store)
	require.InDelta(t, 0.25, cfg.DecisionThreshold, 1e-9)
	require.Equal(t, 90*time.Second, cfg.PollTTL)
	require.Equal(t, 30*time.Second, cfg.PollExpiryInterval)
	require.True(t, cfg.MQTT.Enabled())
}

func TestLoadServerConfigZeroThreshold(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("DECISION_THRESHOLD", "0")

	cfg, err := LoadServerConfig()
	require.NoError(t, err)
	require.Zero(t, cfg.DecisionThreshold)
}

func TestLoadServerConfigRejects(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "no embedder", env: map[string]string{}},
		{name: "postgres without dsn", env: map[string]string{"OPENAI_API_KEY": "k", "STORE_BACKEND": "postgres"}},
		{name: "unknown store", env: map[string]string{"OPENAI_API_KEY": "k", "STORE_BACKEND": "sqlite"}},
		{name: "threshold out of range", env: map[string]string{"OPENAI_API_KEY": "k", "DECISION_THRESHOLD": "1.5"}},
		{name: "claude without key", env: map[string]string{"EMBED_URL": "http://e", "LLM_PROVIDER": "claude"}},
		{name: "telegram without chat", env: map[string]string{"OPENAI_API_KEY": "k", "LOG_TELEGRAM_TOKEN": "t"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("OPENAI_API_KEY", "")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := LoadServerConfig()
			require.Error(t, err)
		})
	}
}

func TestGetenvDurationDefault(t *testing.T) {
	t.Setenv("X_DURATION", "nonsense")
	require.Equal(t, time.Minute, getenvDurationDefault("X_DURATION", time.Minute))
	t.Setenv("X_DURATION", "2h")
	require.Equal(t, 2*time.Hour, getenvDurationDefault("X_DURATION", time.Minute))
}

func TestLoadChatSimConfig(t *testing.T) {
	t.Setenv("SCHEDBOT_API_BASE_URL", "http://localhost:9999/")
	cfg, err := LoadChatSimConfig()
	require.NoError(t, err)
	require.Equal(t, "http://localhost:9999", cfg.ServerURL)
	require.Equal(t, "demo-user", cfg.UserID)
}
