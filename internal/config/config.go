package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 全局配置结构
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Business BusinessConfig `mapstructure:"business"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	Mode         string        `mapstructure:"mode"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	WorkerID     int64         `mapstructure:"worker_id"` // 编号生成器的机器ID，多实例部署时各不相同
}

// DatabaseConfig driver 取值 mysql / postgres / sqlite
// sqlite 时 Database 为文件路径
type DatabaseConfig struct {
	Driver       string `mapstructure:"driver"`
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
	LogLevel     string `mapstructure:"log_level"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type KafkaConfig struct {
	Enabled bool             `mapstructure:"enabled"`
	Brokers []string         `mapstructure:"brokers"`
	Topic   KafkaTopicConfig `mapstructure:"topic"`
}

type KafkaTopicConfig struct {
	OrderEvent string `mapstructure:"order_event"`
}

type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
}

type BusinessConfig struct {
	InitialPoints      int64         `mapstructure:"initial_points"`
	OrderReward        int64         `mapstructure:"order_reward"`
	CreditScoreInitial int           `mapstructure:"credit_score_initial"`
	StudentIDPattern   string        `mapstructure:"student_id_pattern"`
	PasswordMinLength  int           `mapstructure:"password_min_length"`
	PointRecordsLimit  int           `mapstructure:"point_records_limit"`
	CreateLockTTL      time.Duration `mapstructure:"create_lock_ttl"`

	OutboxBatchSize int           `mapstructure:"outbox_batch_size"`
	OutboxInterval  time.Duration `mapstructure:"outbox_interval"`
	MaxRetryCount   int           `mapstructure:"max_retry_count"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 10*time.Second)
	v.SetDefault("server.worker_id", 1)

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.host", "127.0.0.1")
	v.SetDefault("database.port", 3306)
	v.SetDefault("database.user", "root")
	v.SetDefault("database.password", "")
	v.SetDefault("database.database", "unirun.db")
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.log_level", "warn")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "127.0.0.1")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{"127.0.0.1:9092"})
	v.SetDefault("kafka.topic.order_event", "unirun.order.event")

	v.SetDefault("auth.jwt_secret", "unirun-dev-secret")
	v.SetDefault("auth.token_ttl", 2*time.Hour)

	v.SetDefault("business.initial_points", 100)
	v.SetDefault("business.order_reward", 20)
	v.SetDefault("business.credit_score_initial", 100)
	v.SetDefault("business.student_id_pattern", `^\d{10,11}$`)
	v.SetDefault("business.password_min_length", 6)
	v.SetDefault("business.point_records_limit", 20)
	v.SetDefault("business.create_lock_ttl", 10*time.Second)
	v.SetDefault("business.outbox_batch_size", 100)
	v.SetDefault("business.outbox_interval", 500*time.Millisecond)
	v.SetDefault("business.max_retry_count", 5)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// Load 加载配置
// path 为空或文件不存在时只使用默认值和环境变量，环境变量前缀 UNIRUN_，例如 UNIRUN_AUTH_JWT_SECRET
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("UNIRUN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("读取配置文件失败: %w", err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate 校验配置项
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "mysql", "postgres", "sqlite":
	default:
		return fmt.Errorf("不支持的数据库驱动: %q", c.Database.Driver)
	}
	if c.Business.OrderReward <= 0 {
		return fmt.Errorf("business.order_reward 必须大于0")
	}
	if c.Business.InitialPoints <= 0 {
		return fmt.Errorf("business.initial_points 必须大于0")
	}
	if c.Business.CreditScoreInitial < 0 || c.Business.CreditScoreInitial > 100 {
		return fmt.Errorf("business.credit_score_initial 必须在 0-100 之间")
	}
	if _, err := regexp.Compile(c.Business.StudentIDPattern); err != nil {
		return fmt.Errorf("business.student_id_pattern 不合法: %w", err)
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret 不能为空")
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("auth.token_ttl 必须大于0")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("启用 kafka 时 brokers 不能为空")
	}
	return nil
}

func (c *DatabaseConfig) DSN() string {
	switch c.Driver {
	case "mysql":
		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
			c.User, c.Password, c.Host, c.Port, c.Database)
	case "postgres":
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable TimeZone=Asia/Shanghai",
			c.Host, c.Port, c.User, c.Password, c.Database)
	default:
		return c.Database
	}
}

func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
