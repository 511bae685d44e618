package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 应用全局配置结构体
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"db"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Log       LogConfig       `mapstructure:"log"`
	Agenda    AgendaConfig    `mapstructure:"agenda"`
	Generator GeneratorConfig `mapstructure:"generator"`
}

// ServerConfig HTTP 服务器配置
type ServerConfig struct {
	Port         int        `mapstructure:"port"`
	BodyLimit    int64      `mapstructure:"body_limit"` // 请求体上限（字节）
	CORS         CORSConfig `mapstructure:"cors"`
	ToggleLimit  int        `mapstructure:"toggle_limit"`  // 完成状态切换限流：窗口内最大请求数
	ToggleWindow string     `mapstructure:"toggle_window"` // 完成状态切换限流窗口，如 "10s"
}

// CORSConfig 跨域配置
type CORSConfig struct {
	AllowOrigins []string `mapstructure:"allow_origins"`
}

// DatabaseConfig PostgreSQL 数据库配置
type DatabaseConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	Name            string `mapstructure:"name"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	SSLMode         string `mapstructure:"sslmode"`
	Timezone        string `mapstructure:"timezone"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`  // 连接最大生命周期（分钟）
	ConnMaxIdleTime int    `mapstructure:"conn_max_idle_time"` // 空闲连接最大存活时间（分钟）
}

// DSN 生成 PostgreSQL 连接字符串
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s TimeZone=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode, c.Timezone,
	)
}

// RedisConfig Redis 配置
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// AuthConfig JWT 校验配置
// Token 由外部认证服务签发，本服务只负责校验
type AuthConfig struct {
	JWTSecret      string        `mapstructure:"jwt_secret"`
	Issuer         string        `mapstructure:"issuer"`
	AccessTokenTTL time.Duration `mapstructure:"access_token_ttl"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	File       string `mapstructure:"file"` // 为空时只输出到标准输出
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// AgendaConfig 周计划配置
type AgendaConfig struct {
	Timezone         string        `mapstructure:"timezone"`
	OperationTimeout time.Duration `mapstructure:"operation_timeout"`
	LockActiveWeek   bool          `mapstructure:"lock_active_week"`
	ToggleLockTTL    time.Duration `mapstructure:"toggle_lock_ttl"`
	StatsCacheTTL    time.Duration `mapstructure:"stats_cache_ttl"`
	WeekCacheTTL     time.Duration `mapstructure:"week_cache_ttl"`
}

// Location 解析业务时区
func (c *AgendaConfig) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

// GeneratorConfig 排程生成配置
type GeneratorConfig struct {
	Mode      string        `mapstructure:"mode"` // local | gateway
	BaseURL   string        `mapstructure:"base_url"`
	APIKey    string        `mapstructure:"api_key"`
	Timeout   time.Duration `mapstructure:"timeout"`
	Workers   int           `mapstructure:"workers"`
	QueueSize int           `mapstructure:"queue_size"`
}

// Load 从配置文件与环境变量加载配置
// 优先级：环境变量 > 配置文件 > 默认值
func Load(path string) (*Config, error) {
	v := viper.New()

	// ── 默认值 ──
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.body_limit", 1<<20)
	v.SetDefault("server.cors.allow_origins", []string{"http://localhost:5173"})
	v.SetDefault("server.toggle_limit", 30)
	v.SetDefault("server.toggle_window", "10s")

	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.name", "agenda")
	v.SetDefault("db.user", "postgres")
	v.SetDefault("db.password", "")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.timezone", "UTC")
	v.SetDefault("db.max_open_conns", 25)
	v.SetDefault("db.max_idle_conns", 10)
	v.SetDefault("db.conn_max_lifetime", 60)
	v.SetDefault("db.conn_max_idle_time", 30)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("auth.issuer", "")
	v.SetDefault("auth.access_token_ttl", "1h")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age_days", 30)

	v.SetDefault("agenda.timezone", "Europe/Madrid")
	v.SetDefault("agenda.operation_timeout", "10s")
	v.SetDefault("agenda.lock_active_week", true)
	v.SetDefault("agenda.toggle_lock_ttl", "5s")
	v.SetDefault("agenda.stats_cache_ttl", "5m")
	v.SetDefault("agenda.week_cache_ttl", "2m")

	v.SetDefault("generator.mode", "local")
	v.SetDefault("generator.base_url", "")
	v.SetDefault("generator.api_key", "")
	v.SetDefault("generator.timeout", "60s")
	v.SetDefault("generator.workers", 2)
	v.SetDefault("generator.queue_size", 64)

	// ── 配置文件 ──
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	// ── 环境变量 ──
	v.SetEnvPrefix("AGENDA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate 校验关键配置项
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("配置校验失败: auth.jwt_secret 不能为空")
	}
	if len(c.Auth.JWTSecret) < 16 {
		return fmt.Errorf("配置校验失败: auth.jwt_secret 长度不能少于 16 字符")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("配置校验失败: server.port 必须在 1-65535 之间")
	}
	if _, err := time.ParseDuration(c.Server.ToggleWindow); err != nil {
		return fmt.Errorf("配置校验失败: server.toggle_window 格式无效: %w", err)
	}
	if _, err := c.Agenda.Location(); err != nil {
		return fmt.Errorf("配置校验失败: agenda.timezone 无效: %w", err)
	}
	if c.Agenda.OperationTimeout <= 0 {
		return fmt.Errorf("配置校验失败: agenda.operation_timeout 必须大于 0")
	}
	switch c.Generator.Mode {
	case "local":
	case "gateway":
		if c.Generator.BaseURL == "" {
			return fmt.Errorf("配置校验失败: gateway 模式下 generator.base_url 不能为空")
		}
	default:
		return fmt.Errorf("配置校验失败: generator.mode 只能为 local 或 gateway")
	}
	if c.Generator.Workers <= 0 {
		return fmt.Errorf("配置校验失败: generator.workers 必须大于 0")
	}
	if c.Generator.QueueSize <= 0 {
		return fmt.Errorf("配置校验失败: generator.queue_size 必须大于 0")
	}
	return nil
}
