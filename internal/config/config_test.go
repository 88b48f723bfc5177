package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultValues(t *testing.T) {
	// 清除环境变量
	os.Clearenv()

	cfg, err := Load()
	require.NoError(t, err)
	assert.NotNil(t, cfg)

	// 验证默认值
	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "postgres", cfg.Database.User)
	assert.Equal(t, "behavior", cfg.Database.Database)
	assert.Equal(t, "disable", cfg.Database.SSLMode)

	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, "", cfg.Redis.Password)
	assert.Equal(t, 0, cfg.Redis.DB)

	assert.Equal(t, "stream", cfg.Behavior.Ingest.Mode)
	assert.Equal(t, "behavior:frames", cfg.Behavior.Ingest.Stream)
	assert.Equal(t, "behavior-service", cfg.Behavior.Ingest.ConsumerGroup)
	assert.Equal(t, int64(10), cfg.Behavior.Ingest.BatchSize)

	assert.Equal(t, 20, cfg.Behavior.WindowSeconds)
	assert.Equal(t, 10, cfg.Behavior.AggregateEvery)
	assert.Equal(t, 300, cfg.Behavior.Eviction.TimeoutSeconds)
	assert.Equal(t, 30, cfg.Behavior.Eviction.SweepSeconds)

	assert.Equal(t, "ratio", cfg.Behavior.Fusion.OverlapMode)
	assert.Equal(t, 0.5, cfg.Behavior.Fusion.OverlapThreshold)
	assert.Equal(t, 0.85, cfg.Behavior.Fusion.DecayFactor)

	assert.Equal(t, 0.5, cfg.Behavior.Rules.AttentionThreshold)
	assert.Equal(t, 0.4, cfg.Behavior.Rules.PhoneRiskThreshold)
	assert.Equal(t, 0.6, cfg.Behavior.Rules.EngagementRiskThreshold)
	assert.Equal(t, 5, cfg.Behavior.Rules.MinSamplesForAlert)
	assert.Equal(t, 5, cfg.Behavior.Rules.DedupMinutes)

	assert.Equal(t, 0.1, cfg.Behavior.Aggregation.TrendTolerance)

	assert.Equal(t, "behavior:track:", cfg.Behavior.Cache.TrackKeyPrefix)
	assert.Equal(t, ":metrics", cfg.Behavior.Cache.MetricsSuffix)
	assert.Equal(t, ":alerts", cfg.Behavior.Cache.AlertsSuffix)
	assert.Equal(t, 30, cfg.Behavior.Cache.TTL)

	assert.False(t, cfg.Behavior.API.Enabled)
	assert.Equal(t, 300, cfg.Behavior.API.MetricsIntervalSeconds)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_EnvironmentVariables(t *testing.T) {
	// 设置环境变量
	os.Setenv("DB_HOST", "test-host")
	os.Setenv("DB_PORT", "5433")
	os.Setenv("REDIS_ADDR", "test-redis:6380")
	os.Setenv("INGEST_MODE", "mqtt")
	os.Setenv("MQTT_FRAME_TOPIC", "classroom/frames")
	os.Setenv("BEHAVIOR_WINDOW_SECONDS", "30")
	os.Setenv("FUSION_OVERLAP_MODE", "iou")
	os.Setenv("FUSION_DECAY_FACTOR", "0.9")
	os.Setenv("RULE_ATTENTION_THRESHOLD", "0.6")
	os.Setenv("API_ENABLED", "true")
	os.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)
	assert.NotNil(t, cfg)

	// 验证环境变量覆盖
	assert.Equal(t, "test-host", cfg.Database.Host)
	assert.Equal(t, 5433, cfg.Database.Port)
	assert.Equal(t, "test-redis:6380", cfg.Redis.Addr)
	assert.Equal(t, "mqtt", cfg.Behavior.Ingest.Mode)
	assert.Equal(t, "classroom/frames", cfg.Behavior.Ingest.MQTT.Topic)
	assert.Equal(t, 30, cfg.Behavior.WindowSeconds)
	assert.Equal(t, "iou", cfg.Behavior.Fusion.OverlapMode)
	assert.Equal(t, 0.9, cfg.Behavior.Fusion.DecayFactor)
	assert.Equal(t, 0.6, cfg.Behavior.Rules.AttentionThreshold)
	assert.True(t, cfg.Behavior.API.Enabled)
	assert.Equal(t, "debug", cfg.Log.Level)

	// 清理环境变量
	os.Clearenv()
}

func TestGetEnvHelpers(t *testing.T) {
	os.Clearenv()
	assert.Equal(t, "default-value", getEnv("TEST_KEY", "default-value"))
	assert.Equal(t, 42, getEnvInt("TEST_INT", 42))
	assert.Equal(t, 0.5, getEnvFloat("TEST_FLOAT", 0.5))

	os.Setenv("TEST_KEY", "env-value")
	os.Setenv("TEST_INT", "7")
	os.Setenv("TEST_FLOAT", "0.25")
	assert.Equal(t, "env-value", getEnv("TEST_KEY", "default-value"))
	assert.Equal(t, 7, getEnvInt("TEST_INT", 42))
	assert.Equal(t, 0.25, getEnvFloat("TEST_FLOAT", 0.5))

	// 非法数值回落默认值
	os.Setenv("TEST_INT", "not-a-number")
	assert.Equal(t, 42, getEnvInt("TEST_INT", 42))

	os.Clearenv()
}
