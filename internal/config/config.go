package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"
)

type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type DatabaseConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	Name         string `mapstructure:"name"`
	SSLMode      string `mapstructure:"sslmode"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

type RedisConfig struct {
	URL          string        `mapstructure:"url"`
	MaxRetries   int           `mapstructure:"max_retries"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
}

type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
	BaseURL  string `mapstructure:"base_url"`
}

type JWTConfig struct {
	Secret      string        `mapstructure:"secret"`
	TokenExpiry time.Duration `mapstructure:"token_expiry"`
}

type SecurityConfig struct {
	// RootSecret seeds purpose-derived signing keys (unsubscribe tokens).
	RootSecret string `mapstructure:"root_secret"`
}

type RateLimitConfig struct {
	RPS   float64 `mapstructure:"rps"`
	Burst int     `mapstructure:"burst"`
}

type WorkerConfig struct {
	// Cron schedules for the two batch processors.
	EmailSchedule  string `mapstructure:"email_schedule"`
	DigestSchedule string `mapstructure:"digest_schedule"`

	// Delivery windows. Defaults follow the production values: emails
	// are looked for in the last hour, a sent email suppresses repeats
	// for a day, and digests go out at most daily.
	CandidateWindow time.Duration `mapstructure:"candidate_window"`
	DedupWindow     time.Duration `mapstructure:"dedup_window"`
	DigestCadence   time.Duration `mapstructure:"digest_cadence"`

	HealthPort int `mapstructure:"health_port"`
}

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	SMTP      SMTPConfig      `mapstructure:"smtp"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Security  SecurityConfig  `mapstructure:"security"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Worker    WorkerConfig    `mapstructure:"worker"`
}

// workerEnv carries deployment-level overrides for the worker schedules,
// applied on top of the config file.
type workerEnv struct {
	EmailSchedule  string `envconfig:"EMAIL_SCHEDULE"`
	DigestSchedule string `envconfig:"DIGEST_SCHEDULE"`
}

func setDefaults() {
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", 10*time.Second)
	viper.SetDefault("server.write_timeout", 10*time.Second)
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.sslmode", "disable")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("redis.url", "redis://localhost:6379/0")
	viper.SetDefault("redis.max_retries", 3)
	viper.SetDefault("redis.retry_backoff", 100*time.Millisecond)
	viper.SetDefault("redis.pool_size", 10)
	viper.SetDefault("redis.min_idle_conns", 2)
	viper.SetDefault("smtp.port", 587)
	viper.SetDefault("jwt.token_expiry", 24*time.Hour)
	viper.SetDefault("rate_limit.rps", 50)
	viper.SetDefault("rate_limit.burst", 100)
	viper.SetDefault("worker.email_schedule", "@every 2m")
	viper.SetDefault("worker.digest_schedule", "@every 10m")
	viper.SetDefault("worker.candidate_window", time.Hour)
	viper.SetDefault("worker.dedup_window", 24*time.Hour)
	viper.SetDefault("worker.digest_cadence", 24*time.Hour)
	viper.SetDefault("worker.health_port", 8081)
}

func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	setDefaults()
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		// The defaults plus environment are a complete configuration.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	var env workerEnv
	if err := envconfig.Process("worker", &env); err != nil {
		return nil, fmt.Errorf("failed to read worker env: %w", err)
	}
	if env.EmailSchedule != "" {
		config.Worker.EmailSchedule = env.EmailSchedule
	}
	if env.DigestSchedule != "" {
		config.Worker.DigestSchedule = env.DigestSchedule
	}

	return &config, nil
}
