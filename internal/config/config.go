package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"db"`
	Auth        AuthConfig        `mapstructure:"auth"`
	Cache       CacheConfig       `mapstructure:"cache"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Submission  SubmissionConfig  `mapstructure:"submission"`
	Consistency ConsistencyConfig `mapstructure:"consistency"`
}

type ServerConfig struct {
	Port         int    `mapstructure:"port"`
	Env          string `mapstructure:"env"`
	TemplatesDir string `mapstructure:"templates_dir"`
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"` // postgres, mysql, sqlite
	URL             string        `mapstructure:"url"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

type AuthConfig struct {
	JWTSecret     string        `mapstructure:"jwt_secret"`
	TokenTTL      time.Duration `mapstructure:"token_ttl"`
	SessionSecret string        `mapstructure:"session_secret"`

	// 启动时若不存在则创建的管理员账号
	AdminUsername string `mapstructure:"admin_username"`
	AdminPassword string `mapstructure:"admin_password"`
}

type CacheConfig struct {
	Driver string        `mapstructure:"driver"` // memory, redis
	Size   int           `mapstructure:"size"`
	TTL    time.Duration `mapstructure:"ttl"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type SubmissionConfig struct {
	Deadline    string `mapstructure:"deadline"` // RFC3339, empty means no deadline
	GatesVoting bool   `mapstructure:"gates_voting"`
	AutoApprove bool   `mapstructure:"auto_approve"`
}

type ConsistencyConfig struct {
	Interval time.Duration `mapstructure:"interval"` // 0 disables the periodic sweep
}

// IsProduction controls secure cookies and gin release mode.
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

// Flat environment names, kept compatible with the .env files in use.
var envBindings = map[string]string{
	"server.port":             "PORT",
	"server.env":              "APP_ENV",
	"server.templates_dir":    "TEMPLATES_DIR",
	"db.driver":               "DB_DRIVER",
	"db.url":                  "DATABASE_URL",
	"db.max_open_conns":       "DB_MAX_OPEN_CONNS",
	"db.max_idle_conns":       "DB_MAX_IDLE_CONNS",
	"db.conn_max_lifetime":    "DB_CONN_MAX_LIFETIME",
	"auth.jwt_secret":         "JWT_SECRET",
	"auth.token_ttl":          "TOKEN_TTL",
	"auth.session_secret":     "SESSION_SECRET",
	"auth.admin_username":     "ADMIN_USERNAME",
	"auth.admin_password":     "ADMIN_PASSWORD",
	"cache.driver":            "CACHE_DRIVER",
	"cache.size":              "CACHE_SIZE",
	"cache.ttl":               "CACHE_TTL",
	"redis.addr":              "REDIS_ADDR",
	"redis.password":          "REDIS_PASSWORD",
	"redis.db":                "REDIS_DB",
	"submission.deadline":     "SUBMISSION_DEADLINE",
	"submission.gates_voting": "DEADLINE_GATES_VOTING",
	"submission.auto_approve": "PROJECT_AUTO_APPROVE",
	"consistency.interval":    "CONSISTENCY_INTERVAL",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.env", "development")
	v.SetDefault("server.templates_dir", "./web/templates")
	v.SetDefault("db.driver", "postgres")
	v.SetDefault("db.url", "host=localhost user=postgres password=postgres dbname=showcase port=5432 sslmode=disable TimeZone=Asia/Shanghai")
	v.SetDefault("db.max_open_conns", 20)
	v.SetDefault("db.max_idle_conns", 5)
	v.SetDefault("db.conn_max_lifetime", time.Hour)
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.token_ttl", 7*24*time.Hour)
	v.SetDefault("auth.session_secret", "")
	v.SetDefault("auth.admin_username", "")
	v.SetDefault("auth.admin_password", "")
	v.SetDefault("cache.driver", "memory")
	v.SetDefault("cache.size", 500)
	v.SetDefault("cache.ttl", 30*time.Second)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("submission.deadline", "")
	v.SetDefault("submission.gates_voting", false)
	v.SetDefault("submission.auto_approve", true)
	v.SetDefault("consistency.interval", 10*time.Minute)
}

// Load reads .env (if present), the optional config file and the environment.
// Environment variables win over the file.
func Load(configPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, reading configuration from environment")
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("绑定环境变量 %s 失败: %w", env, err)
		}
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Auth.JWTSecret == "" {
		if c.IsProduction() {
			return fmt.Errorf("JWT_SECRET must be set in production")
		}
		c.Auth.JWTSecret = "dev_jwt_secret_change_me"
	}
	if c.Auth.SessionSecret == "" {
		if c.IsProduction() {
			return fmt.Errorf("SESSION_SECRET must be set in production")
		}
		c.Auth.SessionSecret = "secret_key_change_me"
	}
	switch c.Database.Driver {
	case "postgres", "mysql", "sqlite":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.Database.Driver)
	}
	switch c.Cache.Driver {
	case "memory", "redis":
	default:
		return fmt.Errorf("unsupported CACHE_DRIVER %q", c.Cache.Driver)
	}
	if c.Submission.Deadline != "" {
		if _, err := time.Parse(time.RFC3339, c.Submission.Deadline); err != nil {
			return fmt.Errorf("invalid SUBMISSION_DEADLINE %q: %w", c.Submission.Deadline, err)
		}
	}
	return nil
}
