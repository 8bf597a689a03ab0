package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
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
}

// DeliverySpec 动作类型对应的投递参数
type DeliverySpec struct {
	QoS    byte
	Retain bool
}

// Config 执行器调度服务配置
type Config struct {
	Database DatabaseConfig
	Redis    RedisConfig
	MQTT     MQTTConfig

	// 调度配置
	Dispatch struct {
		// 动作超时窗口（sent 后等待回执的时长）
		TimeoutWindow time.Duration
		// 默认最大重试次数（总尝试次数 = MaxRetries + 1）
		MaxRetries int
		// 严重级别 → 投递参数映射（配置表，非硬编码常量）
		Delivery map[string]DeliverySpec
	}

	// MQTT 主题配置
	Topics struct {
		// 遥测订阅过滤器，如 "sensor/+/data"
		Telemetry string
		// 命令主题格式，如 "actuator/%s/command"（%s = target_device_id）
		CommandFormat string
		// 回执订阅过滤器，如 "actuator/+/status"
		Status string
	}

	// 配置缓存（阈值/规则）
	Cache struct {
		ThresholdKeyPrefix string
		RuleKeyPrefix      string
		ConfigTTL          time.Duration
	}

	// 生命周期事件流
	Stream struct {
		ActionStream string
	}

	HTTP struct {
		ListenAddr string
	}

	// Webhook 通知（空 URL 表示禁用）
	Notify struct {
		WebhookURL string
		Timeout    time.Duration
	}

	Log struct {
		Level  string
		Format string
	}
}

// Load 加载配置（环境变量 + 默认值）
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.Database.Host = getEnv("DB_HOST", "localhost")
	cfg.Database.Port = getEnvInt("DB_PORT", 5432)
	cfg.Database.User = getEnv("DB_USER", "postgres")
	cfg.Database.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.Database.Database = getEnv("DB_NAME", "farmhub")
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", "disable")
	cfg.Database.MaxConns = getEnvInt("DB_MAX_CONNS", 10)
	cfg.Database.MaxIdle = getEnvInt("DB_MAX_IDLE", 5)

	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = getEnvInt("REDIS_DB", 0)

	cfg.MQTT.Broker = getEnv("MQTT_BROKER", "tcp://localhost:1883")
	cfg.MQTT.ClientID = getEnv("MQTT_CLIENT_ID", "farmhub-actuation")
	cfg.MQTT.Username = getEnv("MQTT_USERNAME", "")
	cfg.MQTT.Password = getEnv("MQTT_PASSWORD", "")

	cfg.Dispatch.TimeoutWindow = getEnvDuration("DISPATCH_TIMEOUT_WINDOW", 30*time.Second)
	cfg.Dispatch.MaxRetries = getEnvInt("DISPATCH_MAX_RETRIES", 1)
	cfg.Dispatch.Delivery = map[string]DeliverySpec{
		"critical":  {QoS: byte(getEnvInt("DISPATCH_QOS_CRITICAL", 2)), Retain: false},
		"important": {QoS: byte(getEnvInt("DISPATCH_QOS_IMPORTANT", 1)), Retain: false},
		"normal":    {QoS: byte(getEnvInt("DISPATCH_QOS_NORMAL", 0)), Retain: false},
	}

	cfg.Topics.Telemetry = getEnv("TOPIC_TELEMETRY", "sensor/+/data")
	cfg.Topics.CommandFormat = getEnv("TOPIC_COMMAND_FORMAT", "actuator/%s/command")
	cfg.Topics.Status = getEnv("TOPIC_STATUS", "actuator/+/status")

	cfg.Cache.ThresholdKeyPrefix = getEnv("CACHE_THRESHOLD_PREFIX", "actuation:threshold:")
	cfg.Cache.RuleKeyPrefix = getEnv("CACHE_RULE_PREFIX", "actuation:rules:")
	cfg.Cache.ConfigTTL = getEnvDuration("CACHE_CONFIG_TTL", 60*time.Second)

	cfg.Stream.ActionStream = getEnv("STREAM_ACTION", "actuator:action:stream")

	cfg.HTTP.ListenAddr = getEnv("HTTP_LISTEN_ADDR", ":8086")

	cfg.Notify.WebhookURL = getEnv("NOTIFY_WEBHOOK_URL", "")
	cfg.Notify.Timeout = getEnvDuration("NOTIFY_TIMEOUT", 10*time.Second)

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	if cfg.Dispatch.MaxRetries < 0 {
		return nil, fmt.Errorf("DISPATCH_MAX_RETRIES must be >= 0")
	}
	if cfg.Dispatch.TimeoutWindow <= 0 {
		return nil, fmt.Errorf("DISPATCH_TIMEOUT_WINDOW must be positive")
	}

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

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
