package config

import (
	"fmt"
	"strings"

	"github.com/referral-ledger/internal/logger"

	"github.com/spf13/viper"
)

// Config 应用配置结构
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
	Database DatabaseConfig `mapstructure:"database"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Queue    QueueConfig    `mapstructure:"queue"`
	CORS     CORSConfig     `mapstructure:"cors"`
	Security SecurityConfig `mapstructure:"security"`
	Referral ReferralConfig `mapstructure:"referral"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // debug / release

	ReadHeaderTimeoutSeconds int `mapstructure:"read_header_timeout_seconds"`
	WriteTimeoutSeconds      int `mapstructure:"write_timeout_seconds"`
}

// LogConfig 日志配置
type LogConfig struct {
	Dir        string `mapstructure:"dir"`
	Filename   string `mapstructure:"filename"`
	Level      string `mapstructure:"level"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// ToLoggerOptions 转换为 logger 配置
func (c LogConfig) ToLoggerOptions() logger.Options {
	return logger.Options{
		Dir:        c.Dir,
		Filename:   c.Filename,
		Level:      c.Level,
		MaxSizeMB:  c.MaxSizeMB,
		MaxBackups: c.MaxBackups,
		MaxAgeDays: c.MaxAgeDays,
		Compress:   c.Compress,
	}
}

// DatabasePoolConfig 数据库连接池配置
type DatabasePoolConfig struct {
	MaxOpenConns           int `mapstructure:"max_open_conns"`
	MaxIdleConns           int `mapstructure:"max_idle_conns"`
	ConnMaxLifetimeSeconds int `mapstructure:"conn_max_lifetime_seconds"`
	ConnMaxIdleTimeSeconds int `mapstructure:"conn_max_idle_time_seconds"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Driver string             `mapstructure:"driver"` // sqlite / postgres
	DSN    string             `mapstructure:"dsn"`
	Pool   DatabasePoolConfig `mapstructure:"pool"`
}

// AuthConfig 身份令牌校验配置（令牌由外部身份服务签发）
type AuthConfig struct {
	SecretKey     string `mapstructure:"secret"`
	Issuer        string `mapstructure:"issuer"`
	LeewaySeconds int    `mapstructure:"leeway_seconds"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

// QueueConfig 异步队列配置
type QueueConfig struct {
	Enabled     bool           `mapstructure:"enabled"`
	Host        string         `mapstructure:"host"`
	Port        int            `mapstructure:"port"`
	Password    string         `mapstructure:"password"`
	DB          int            `mapstructure:"db"`
	Concurrency int            `mapstructure:"concurrency"`
	Queues      map[string]int `mapstructure:"queues"`
}

// CORSConfig 跨域配置
type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age"`
}

// SecurityConfig 安全配置
type SecurityConfig struct {
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

// RateLimitConfig 推荐接口限流配置
type RateLimitConfig struct {
	Referral RateLimitRuleConfig `mapstructure:"referral"`
	Convert  RateLimitRuleConfig `mapstructure:"convert"`
}

// RateLimitRuleConfig 单条限流规则
type RateLimitRuleConfig struct {
	WindowSeconds int `mapstructure:"window_seconds"`
	MaxRequests   int `mapstructure:"max_requests"`
}

// ReferralConfig 推荐返佣默认配置，可被 settings 表覆盖
type ReferralConfig struct {
	CommissionRate      float64             `mapstructure:"commission_rate"` // 百分比
	CommissionFlatFloor float64             `mapstructure:"commission_flat_floor"`
	MinimumPurchase     float64             `mapstructure:"minimum_purchase"`
	ConfirmDays         int                 `mapstructure:"confirm_days"`
	Code                ReferralCodeConfig  `mapstructure:"code"`
	Fraud               FraudConfig         `mapstructure:"fraud"`
	Tiers               ReferralTiersConfig `mapstructure:"tiers"`
}

// ReferralCodeConfig 推荐码生成参数
type ReferralCodeConfig struct {
	PrefixLength int `mapstructure:"prefix_length"`
	SuffixLength int `mapstructure:"suffix_length"`
	MaxAttempts  int `mapstructure:"max_attempts"`
}

// FraudConfig 风控权重与阈值
type FraudConfig struct {
	ReviewThreshold       int      `mapstructure:"review_threshold"`
	BlockThreshold        int      `mapstructure:"block_threshold"`
	SelfReferralWeight    int      `mapstructure:"self_referral_weight"`
	IPVelocityWeight      int      `mapstructure:"ip_velocity_weight"`
	DeviceVelocityWeight  int      `mapstructure:"device_velocity_weight"`
	DisposableEmailWeight int      `mapstructure:"disposable_email_weight"`
	SimilarEmailWeight    int      `mapstructure:"similar_email_weight"`
	SameDomainWeight      int      `mapstructure:"same_domain_weight"`
	VelocityWindowMinutes int      `mapstructure:"velocity_window_minutes"`
	VelocityMaxPerIP      int      `mapstructure:"velocity_max_per_ip"`
	SimilarityMaxDistance int      `mapstructure:"similarity_max_distance"`
	DisposableDomains     []string `mapstructure:"disposable_domains"`
}

// ReferralTiersConfig 等级门槛（累计佣金）
type ReferralTiersConfig struct {
	Silver float64 `mapstructure:"silver"`
	Gold   float64 `mapstructure:"gold"`
}

// Load 从 config.yml 加载配置
func Load() *Config {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("../")
	viper.AddConfigPath("./etc")

	setDefaults(viper.GetViper())

	// 环境变量支持，server.port -> SERVER_PORT
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		logger.Warnw("config_file_read_failed",
			"error", err,
			"fallback", "env_or_defaults",
		)
	} else {
		logger.Infow("config_file_loaded", "file", viper.ConfigFileUsed())
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		logger.Errorw("config_unmarshal_failed", "error", err)
		panic(fmt.Errorf("配置解析失败: %w", err))
	}
	return &cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.read_header_timeout_seconds", 10)
	v.SetDefault("server.write_timeout_seconds", 30)
	v.SetDefault("log.dir", "")
	v.SetDefault("log.filename", "referral.log")
	v.SetDefault("log.level", "")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 7)
	v.SetDefault("log.max_age_days", 30)
	v.SetDefault("log.compress", true)
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "./db/referral.db")
	v.SetDefault("database.pool.max_open_conns", 1)
	v.SetDefault("database.pool.max_idle_conns", 1)
	v.SetDefault("database.pool.conn_max_lifetime_seconds", 0)
	v.SetDefault("database.pool.conn_max_idle_time_seconds", 0)
	v.SetDefault("auth.secret", "change-me-in-production")
	v.SetDefault("auth.issuer", "")
	v.SetDefault("auth.leeway_seconds", 30)
	v.SetDefault("redis.enabled", true)
	v.SetDefault("redis.host", "127.0.0.1")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "rl")
	v.SetDefault("queue.enabled", true)
	v.SetDefault("queue.host", "127.0.0.1")
	v.SetDefault("queue.port", 6379)
	v.SetDefault("queue.password", "")
	v.SetDefault("queue.db", 1)
	v.SetDefault("queue.concurrency", 10)
	v.SetDefault("queue.queues", map[string]int{
		"default":  10,
		"critical": 5,
	})
	v.SetDefault("cors.allowed_origins", []string{"*"})
	v.SetDefault("cors.allowed_methods", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"})
	v.SetDefault("cors.allowed_headers", []string{
		"Content-Type",
		"Content-Length",
		"Accept-Encoding",
		"Accept-Language",
		"Authorization",
		"Cache-Control",
		"X-Requested-With",
		"X-Request-ID",
	})
	v.SetDefault("cors.allow_credentials", true)
	v.SetDefault("cors.max_age", 600)
	v.SetDefault("security.rate_limit.referral.window_seconds", 60)
	v.SetDefault("security.rate_limit.referral.max_requests", 30)
	v.SetDefault("security.rate_limit.convert.window_seconds", 60)
	v.SetDefault("security.rate_limit.convert.max_requests", 10)
	v.SetDefault("referral.commission_rate", 10)
	v.SetDefault("referral.commission_flat_floor", 25)
	v.SetDefault("referral.minimum_purchase", 100)
	v.SetDefault("referral.confirm_days", 7)
	v.SetDefault("referral.code.prefix_length", 6)
	v.SetDefault("referral.code.suffix_length", 6)
	v.SetDefault("referral.code.max_attempts", 8)
	v.SetDefault("referral.fraud.review_threshold", 30)
	v.SetDefault("referral.fraud.block_threshold", 70)
	v.SetDefault("referral.fraud.self_referral_weight", 100)
	v.SetDefault("referral.fraud.ip_velocity_weight", 40)
	v.SetDefault("referral.fraud.device_velocity_weight", 40)
	v.SetDefault("referral.fraud.disposable_email_weight", 30)
	v.SetDefault("referral.fraud.similar_email_weight", 35)
	v.SetDefault("referral.fraud.same_domain_weight", 20)
	v.SetDefault("referral.fraud.velocity_window_minutes", 60)
	v.SetDefault("referral.fraud.velocity_max_per_ip", 3)
	v.SetDefault("referral.fraud.similarity_max_distance", 2)
	v.SetDefault("referral.fraud.disposable_domains", []string{})
	v.SetDefault("referral.tiers.silver", 500)
	v.SetDefault("referral.tiers.gold", 2000)
}
