package config

import (
	"fmt"
	"os"
	"strconv"
)

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int
	MaxIdle  int
}

// GetDSN 获取数据库连接字符串
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

// RedisConfig Redis配置
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// MQTTConfig MQTT配置
type MQTTConfig struct {
	Broker   string
	ClientID string
	Username string
	Password string
	Topic    string
	QoS      byte
}

// Config 行为分析服务配置
type Config struct {
	Database DatabaseConfig
	Redis    RedisConfig

	// 行为分析服务特定配置
	Behavior struct {
		// 数据接入配置
		Ingest struct {
			Mode          string // "stream"（Redis Streams）或 "mqtt"
			Stream        string // Redis Streams 流名称
			ConsumerGroup string
			ConsumerName  string
			BatchSize     int64
			MQTT          MQTTConfig
		}

		// 滑动窗口配置
		WindowSeconds  int // 观测窗口长度（秒），默认 20
		AggregateEvery int // 每 N 帧触发一次聚合，默认 10

		// 目标生命周期配置
		Eviction struct {
			TimeoutSeconds int // 不活跃判定时长（秒），默认 300
			SweepSeconds   int // 清理检查周期（秒），默认 30
		}

		// 手机融合配置
		Fusion struct {
			OverlapMode      string  // "iou" / "ratio" / "center"
			IoUThreshold     float64 // 默认 0.5
			OverlapThreshold float64 // 默认 0.5
			DecayFactor      float64 // 默认 0.85
		}

		// 规则阈值配置
		Rules struct {
			AttentionThreshold      float64
			PhoneRiskThreshold      float64
			EngagementRiskThreshold float64
			MinSamplesForAlert      int
			CriticalAttention       float64
			CriticalPhoneRisk       float64
			TrendDetectionRate      float64
			CombinedPhoneRisk       float64
			CombinedLookingAway     float64
			AttentionDropDelta      float64
			DedupMinutes            int // 同类告警入库去重窗口（分钟）
		}

		// 聚合参数配置
		Aggregation struct {
			TrendTolerance    float64
			PhoneBehaviorRate float64
			LowAttention      float64
		}

		// Redis 缓存配置
		Cache struct {
			TrackKeyPrefix  string // 目标缓存键前缀，如 "behavior:track:"
			MetricsSuffix   string // 指标缓存键后缀，如 ":metrics"
			AlertsSuffix    string // 告警缓存键后缀，如 ":alerts"
			FrameSummaryKey string // 帧概要缓存键
			TTL             int    // 缓存 TTL（秒），默认 30秒
		}

		// 云端 API 上报配置
		API struct {
			Enabled                bool
			URL                    string
			TimeoutSeconds         int
			MetricsIntervalSeconds int // 单目标指标上报限流间隔（秒），默认 300
		}

		// 会话日志目录
		LogDir string
	}

	Log struct {
		Level  string
		Format string
	}
}

// Load 加载配置
func Load() (*Config, error) {
	cfg := &Config{}

	// 从环境变量加载（默认值）
	cfg.Database.Host = getEnv("DB_HOST", "localhost")
	cfg.Database.Port = getEnvInt("DB_PORT", 5432)
	cfg.Database.User = getEnv("DB_USER", "postgres")
	cfg.Database.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.Database.Database = getEnv("DB_NAME", "behavior")
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", "disable")
	cfg.Database.MaxConns = getEnvInt("DB_MAX_CONNS", 10)
	cfg.Database.MaxIdle = getEnvInt("DB_MAX_IDLE", 5)

	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = getEnvInt("REDIS_DB", 0)

	// 数据接入配置
	cfg.Behavior.Ingest.Mode = getEnv("INGEST_MODE", "stream")
	cfg.Behavior.Ingest.Stream = getEnv("INGEST_STREAM", "behavior:frames")
	cfg.Behavior.Ingest.ConsumerGroup = getEnv("INGEST_CONSUMER_GROUP", "behavior-service")
	cfg.Behavior.Ingest.ConsumerName = getEnv("INGEST_CONSUMER_NAME", "behavior-consumer-1")
	cfg.Behavior.Ingest.BatchSize = int64(getEnvInt("INGEST_BATCH_SIZE", 10))
	cfg.Behavior.Ingest.MQTT.Broker = getEnv("MQTT_BROKER", "tcp://localhost:1883")
	cfg.Behavior.Ingest.MQTT.ClientID = getEnv("MQTT_CLIENT_ID", "wisefido-behavior")
	cfg.Behavior.Ingest.MQTT.Username = getEnv("MQTT_USERNAME", "")
	cfg.Behavior.Ingest.MQTT.Password = getEnv("MQTT_PASSWORD", "")
	cfg.Behavior.Ingest.MQTT.Topic = getEnv("MQTT_FRAME_TOPIC", "behavior/frames")
	cfg.Behavior.Ingest.MQTT.QoS = 1

	// 窗口与聚合
	cfg.Behavior.WindowSeconds = getEnvInt("BEHAVIOR_WINDOW_SECONDS", 20)
	cfg.Behavior.AggregateEvery = getEnvInt("BEHAVIOR_AGGREGATE_EVERY", 10)

	// 生命周期
	cfg.Behavior.Eviction.TimeoutSeconds = getEnvInt("EVICTION_TIMEOUT_SECONDS", 300)
	cfg.Behavior.Eviction.SweepSeconds = getEnvInt("EVICTION_SWEEP_SECONDS", 30)

	// 手机融合
	cfg.Behavior.Fusion.OverlapMode = getEnv("FUSION_OVERLAP_MODE", "ratio")
	cfg.Behavior.Fusion.IoUThreshold = getEnvFloat("FUSION_IOU_THRESHOLD", 0.5)
	cfg.Behavior.Fusion.OverlapThreshold = getEnvFloat("FUSION_OVERLAP_THRESHOLD", 0.5)
	cfg.Behavior.Fusion.DecayFactor = getEnvFloat("FUSION_DECAY_FACTOR", 0.85)

	// 规则阈值
	cfg.Behavior.Rules.AttentionThreshold = getEnvFloat("RULE_ATTENTION_THRESHOLD", 0.5)
	cfg.Behavior.Rules.PhoneRiskThreshold = getEnvFloat("RULE_PHONE_RISK_THRESHOLD", 0.4)
	cfg.Behavior.Rules.EngagementRiskThreshold = getEnvFloat("RULE_ENGAGEMENT_RISK_THRESHOLD", 0.6)
	cfg.Behavior.Rules.MinSamplesForAlert = getEnvInt("RULE_MIN_SAMPLES", 5)
	cfg.Behavior.Rules.CriticalAttention = getEnvFloat("RULE_CRITICAL_ATTENTION", 0.3)
	cfg.Behavior.Rules.CriticalPhoneRisk = getEnvFloat("RULE_CRITICAL_PHONE_RISK", 0.6)
	cfg.Behavior.Rules.TrendDetectionRate = getEnvFloat("RULE_TREND_DETECTION_RATE", 0.2)
	cfg.Behavior.Rules.CombinedPhoneRisk = getEnvFloat("RULE_COMBINED_PHONE_RISK", 0.3)
	cfg.Behavior.Rules.CombinedLookingAway = getEnvFloat("RULE_COMBINED_LOOKING_AWAY", 0.6)
	cfg.Behavior.Rules.AttentionDropDelta = getEnvFloat("RULE_ATTENTION_DROP_DELTA", 0.3)
	cfg.Behavior.Rules.DedupMinutes = getEnvInt("RULE_DEDUP_MINUTES", 5)

	// 聚合参数
	cfg.Behavior.Aggregation.TrendTolerance = getEnvFloat("AGG_TREND_TOLERANCE", 0.1)
	cfg.Behavior.Aggregation.PhoneBehaviorRate = getEnvFloat("AGG_PHONE_BEHAVIOR_RATE", 0.3)
	cfg.Behavior.Aggregation.LowAttention = getEnvFloat("AGG_LOW_ATTENTION", 0.5)

	// 缓存配置
	cfg.Behavior.Cache.TrackKeyPrefix = getEnv("CACHE_TRACK_PREFIX", "behavior:track:")
	cfg.Behavior.Cache.MetricsSuffix = ":metrics"
	cfg.Behavior.Cache.AlertsSuffix = ":alerts"
	cfg.Behavior.Cache.FrameSummaryKey = getEnv("CACHE_FRAME_SUMMARY_KEY", "behavior:frame:summary")
	cfg.Behavior.Cache.TTL = getEnvInt("CACHE_TTL_SECONDS", 30)

	// 云端 API
	cfg.Behavior.API.Enabled = getEnv("API_ENABLED", "false") == "true"
	cfg.Behavior.API.URL = getEnv("API_URL", "")
	cfg.Behavior.API.TimeoutSeconds = getEnvInt("API_TIMEOUT_SECONDS", 5)
	cfg.Behavior.API.MetricsIntervalSeconds = getEnvInt("API_METRICS_INTERVAL_SECONDS", 300)

	cfg.Behavior.LogDir = getEnv("SESSION_LOG_DIR", "logs")

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}
