package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Environment         string               `mapstructure:"environment"`
	LogLevel            string               `mapstructure:"log_level"`
	Server              ServerConfig         `mapstructure:"server"`
	Database            DatabaseConfig       `mapstructure:"database"`
	Redis               RedisConfig          `mapstructure:"redis"`
	Operator            OperatorConfig       `mapstructure:"operator"`
	RGS                 RGSConfig            `mapstructure:"rgs"`
	Security            SecurityConfig       `mapstructure:"security"`
	Retry               RetryConfig          `mapstructure:"retry"`
	SupportedCurrencies []string             `mapstructure:"supported_currencies"`
	Reconciliation      ReconciliationConfig `mapstructure:"reconciliation"`
	Tracing             TracingConfig        `mapstructure:"tracing"`
}

type ServerConfig struct {
	Port            int      `mapstructure:"port"`
	Host            string   `mapstructure:"host"`
	ReadTimeout     int      `mapstructure:"read_timeout"`
	WriteTimeout    int      `mapstructure:"write_timeout"`
	AllowedOrigins  []string `mapstructure:"allowed_origins"`
	RateLimitPerMin int      `mapstructure:"rate_limit_per_min"`
}

type DatabaseConfig struct {
	URL             string `mapstructure:"url"`
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	Name            string `mapstructure:"name"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	SSLMode         string `mapstructure:"ssl_mode"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`
	QueryTimeout    int    `mapstructure:"query_timeout"`
	MaxRetries      int    `mapstructure:"max_retries"`
}

// RedisConfig backs the ambient tiered ingress rate limiter only; the
// outbound dispatcher's own rolling-window limiter never touches Redis.
type RedisConfig struct {
	URL        string `mapstructure:"url"`
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	Password   string `mapstructure:"password"`
	DB         int    `mapstructure:"db"`
	MaxRetries int    `mapstructure:"max_retries"`
	PoolSize   int    `mapstructure:"pool_size"`
}

// OperatorConfig holds the downstream Operator connection.
type OperatorConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	SigningSecret  string `mapstructure:"signing_secret"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// RGSConfig holds the upstream RGS webhook target.
type RGSConfig struct {
	WebhookURL     string `mapstructure:"webhook_url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

type SecurityConfig struct {
	HMACSecret           string `mapstructure:"hmac_secret"`
	BearerToken          string `mapstructure:"bearer_token"`
	TimestampSkewSeconds int    `mapstructure:"timestamp_skew_seconds"`
}

type RetryConfig struct {
	MaxRetries          int     `mapstructure:"max_retries"`
	RetryBackoffSeconds float64 `mapstructure:"retry_backoff_seconds"`
	RateLimitPerMinute  int     `mapstructure:"rate_limit_per_minute"`
}

// ReconciliationConfig controls the scheduled CSV reconciliation run.
type ReconciliationConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Cron    string `mapstructure:"cron"`
}

type TracingConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	CollectorURL string `mapstructure:"collector_url"`
}

// Load loads configuration from environment variables and config files
func Load() (*Config, error) {
	// Load .env file if it exists (ignore errors if file doesn't exist)
	godotenv.Load()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath(".")

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	overrideFromEnv()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if config.Database.URL == "" {
		config.Database.URL = fmt.Sprintf(
			"postgres://%s:%s@%s:%d/%s?sslmode=%s",
			config.Database.User,
			config.Database.Password,
			config.Database.Host,
			config.Database.Port,
			config.Database.Name,
			config.Database.SSLMode,
		)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("environment", "development")
	viper.SetDefault("log_level", "info")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.read_timeout", 30)
	viper.SetDefault("server.write_timeout", 30)
	viper.SetDefault("server.rate_limit_per_min", 100)

	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.name", "integration_hub")
	viper.SetDefault("database.user", "postgres")
	viper.SetDefault("database.ssl_mode", "disable")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", 300)
	viper.SetDefault("database.query_timeout", 30)
	viper.SetDefault("database.max_retries", 3)

	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.max_retries", 3)
	viper.SetDefault("redis.pool_size", 10)

	viper.SetDefault("operator.timeout_seconds", 10)
	viper.SetDefault("rgs.timeout_seconds", 5)

	viper.SetDefault("security.timestamp_skew_seconds", 5)

	viper.SetDefault("retry.max_retries", 3)
	viper.SetDefault("retry.retry_backoff_seconds", 1.0)
	viper.SetDefault("retry.rate_limit_per_minute", 60)

	viper.SetDefault("supported_currencies", []string{"USD", "EUR"})

	viper.SetDefault("reconciliation.enabled", true)
	viper.SetDefault("reconciliation.cron", "0 * * * *")

	viper.SetDefault("tracing.enabled", false)
}

func overrideFromEnv() {
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			viper.Set("server.port", p)
		}
	}

	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		viper.Set("database.url", dbURL)
	}

	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		viper.Set("redis.url", redisURL)
	}

	if operatorBaseURL := os.Getenv("OPERATOR_BASE_URL"); operatorBaseURL != "" {
		viper.Set("operator.base_url", operatorBaseURL)
	}
	if operatorSigningSecret := os.Getenv("OPERATOR_SIGNING_SECRET"); operatorSigningSecret != "" {
		viper.Set("operator.signing_secret", operatorSigningSecret)
	}

	if rgsWebhookURL := os.Getenv("RGS_WEBHOOK_URL"); rgsWebhookURL != "" {
		viper.Set("rgs.webhook_url", rgsWebhookURL)
	}

	if hmacSecret := os.Getenv("HMAC_SECRET"); hmacSecret != "" {
		viper.Set("security.hmac_secret", hmacSecret)
	}
	if bearerToken := os.Getenv("BEARER_TOKEN"); bearerToken != "" {
		viper.Set("security.bearer_token", bearerToken)
	}

	if maxRetries := os.Getenv("MAX_RETRIES"); maxRetries != "" {
		if n, err := strconv.Atoi(maxRetries); err == nil {
			viper.Set("retry.max_retries", n)
		}
	}
	if rateLimit := os.Getenv("RATE_LIMIT_PER_MINUTE"); rateLimit != "" {
		if n, err := strconv.Atoi(rateLimit); err == nil {
			viper.Set("retry.rate_limit_per_minute", n)
		}
	}

	if currencies := os.Getenv("SUPPORTED_CURRENCIES"); currencies != "" {
		parts := strings.Split(currencies, ",")
		var list []string
		for _, part := range parts {
			trimmed := strings.TrimSpace(part)
			if trimmed != "" {
				list = append(list, strings.ToUpper(trimmed))
			}
		}
		if len(list) > 0 {
			viper.Set("supported_currencies", list)
		}
	}

	if cron := os.Getenv("RECONCILIATION_CRON"); cron != "" {
		viper.Set("reconciliation.cron", cron)
	}

	if tracingCollector := os.Getenv("TRACING_COLLECTOR_URL"); tracingCollector != "" {
		viper.Set("tracing.collector_url", tracingCollector)
		viper.Set("tracing.enabled", true)
	}
}

func validate(config *Config) error {
	if config.Security.BearerToken == "" {
		return fmt.Errorf("bearer token is required")
	}

	if config.Security.HMACSecret == "" {
		return fmt.Errorf("hmac secret is required")
	}

	if config.Database.URL == "" && (config.Database.Host == "" || config.Database.Name == "") {
		return fmt.Errorf("database configuration is incomplete")
	}

	if len(config.SupportedCurrencies) == 0 {
		return fmt.Errorf("supported currencies configuration is required")
	}

	return nil
}
