package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig   `json:"server"`
	Database DatabaseConfig `json:"database"`
	Cache    CacheConfig    `json:"cache"`
	Logging  LoggingConfig  `json:"logging"`
	Badges   BadgesConfig   `json:"badges"`
	Events   EventsConfig   `json:"events"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port            string        `json:"port" validate:"required,numeric"`
	Host            string        `json:"host"`
	Environment     string        `json:"environment" validate:"oneof=development staging production test"`
	ReadTimeout     time.Duration `json:"read_timeout" validate:"gt=0"`
	WriteTimeout    time.Duration `json:"write_timeout" validate:"gt=0"`
	IdleTimeout     time.Duration `json:"idle_timeout" validate:"gte=0"`
	GracefulTimeout time.Duration `json:"graceful_timeout" validate:"gt=0"`
	MaxHeaderBytes  int           `json:"max_header_bytes" validate:"gt=0"`
	// OwnerID, when set, starts the badge engine for that user's pets.
	OwnerID    string `json:"owner_id" validate:"omitempty,uuid"`
	CORSOrigin string `json:"cors_origin"`
	// Swagger UI under /swagger/, behind basic auth when a username is set.
	SwaggerEnabled  bool   `json:"swagger_enabled"`
	SwaggerUsername string `json:"-"`
	SwaggerPassword string `json:"-"`
}

// DatabaseConfig holds database connection and pool settings
type DatabaseConfig struct {
	Driver             string        `json:"driver" validate:"oneof=postgres sqlite"`
	URL                string        `json:"-" validate:"required"`
	MaxOpenConns       int           `json:"max_open_conns" validate:"gt=0"`
	MaxIdleConns       int           `json:"max_idle_conns" validate:"gte=0"`
	ConnMaxLifetime    time.Duration `json:"conn_max_lifetime" validate:"gt=0"`
	ConnMaxIdleTime    time.Duration `json:"conn_max_idle_time" validate:"gte=0"`
	ConnectTimeout     time.Duration `json:"connect_timeout" validate:"gt=0"`
	MaxRetryAttempts   int           `json:"max_retry_attempts" validate:"gte=0"`
	RetryBackoff       time.Duration `json:"retry_backoff" validate:"gt=0"`
	SlowQueryThreshold time.Duration `json:"slow_query_threshold" validate:"gt=0"`
	AutoMigrate        bool          `json:"auto_migrate"`
}

// CacheConfig selects and tunes the cache provider
type CacheConfig struct {
	Provider      string        `json:"provider" validate:"oneof=memory redis"`
	RedisURL      string        `json:"-"`
	RedisPassword string        `json:"-"`
	RedisDB       int           `json:"redis_db" validate:"gte=0"`
	DefaultTTL    time.Duration `json:"default_ttl" validate:"gt=0"`
	MaxKeys       int           `json:"max_keys" validate:"gt=0"`
	KeyPrefix     string        `json:"key_prefix"`
}

// LoggingConfig holds logger settings
type LoggingConfig struct {
	Level  string `json:"level" validate:"oneof=debug info warn error"`
	Format string `json:"format" validate:"oneof=json console"`
}

// BadgesConfig tunes the badge engine
type BadgesConfig struct {
	Shards            int           `json:"shards" validate:"gt=0,lte=256"`
	QueueSize         int           `json:"queue_size" validate:"gt=0"`
	ListenerBuffer    int           `json:"listener_buffer" validate:"gt=0"`
	PublishTimeout    time.Duration `json:"publish_timeout" validate:"gt=0"`
	OperationTimeout  time.Duration `json:"operation_timeout" validate:"gt=0"`
	DaysCheckInterval time.Duration `json:"days_check_interval" validate:"gte=0"`
}

// EventsConfig tunes the in-process event bus
type EventsConfig struct {
	HandlerTimeout   time.Duration `json:"handler_timeout" validate:"gt=0"`
	ListenerBuffer   int           `json:"listener_buffer" validate:"gt=0"`
	BacklogThreshold int           `json:"backlog_threshold" validate:"gt=0,lte=100"`
}

// Load reads configuration from the environment, after loading
// .env.<GO_ENV> (or .env) outside production.
func Load() (*Config, error) {
	env := getEnv("GO_ENV", "development")
	if env != "production" {
		envFile := fmt.Sprintf(".env.%s", env)
		if _, err := os.Stat(envFile); err == nil {
			_ = godotenv.Load(envFile)
		} else {
			_ = godotenv.Load()
		}
	}

	config := &Config{
		Server:   loadServerConfig(env),
		Database: loadDatabaseConfig(env),
		Cache:    loadCacheConfig(),
		Logging:  loadLoggingConfig(env),
		Badges:   loadBadgesConfig(),
		Events:   loadEventsConfig(),
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

func loadServerConfig(env string) ServerConfig {
	config := ServerConfig{
		Port:            getEnv("PORT", "9000"),
		Host:            getEnv("SERVER_HOST", "0.0.0.0"),
		Environment:     env,
		ReadTimeout:     getDurationEnv("SERVER_READ_TIMEOUT", 10*time.Second),
		WriteTimeout:    getDurationEnv("SERVER_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:     getDurationEnv("SERVER_IDLE_TIMEOUT", 120*time.Second),
		GracefulTimeout: getDurationEnv("GRACEFUL_TIMEOUT", 30*time.Second),
		MaxHeaderBytes:  getIntEnv("MAX_HEADER_BYTES", 1<<20),
		OwnerID:         getEnv("BADGE_OWNER_ID", ""),
		CORSOrigin:      getEnv("CORS_ORIGIN", "*"),
		SwaggerEnabled:  getBoolEnv("SWAGGER_ENABLED", env != "production"),
		SwaggerUsername: getEnv("SWAGGER_USERNAME", ""),
		SwaggerPassword: getEnv("SWAGGER_PASSWORD", ""),
	}

	if env == "development" {
		config.GracefulTimeout = getDurationEnv("GRACEFUL_TIMEOUT", 10*time.Second)
	}

	return config
}

func loadDatabaseConfig(env string) DatabaseConfig {
	config := DatabaseConfig{
		Driver:             getEnv("DB_DRIVER", "sqlite"),
		URL:                getEnv("DATABASE_URL", "file:petfolio.db?_pragma=busy_timeout(5000)"),
		MaxOpenConns:       getIntEnv("DB_MAX_OPEN_CONNS", 10),
		MaxIdleConns:       getIntEnv("DB_MAX_IDLE_CONNS", 5),
		ConnMaxLifetime:    getDurationEnv("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		ConnMaxIdleTime:    getDurationEnv("DB_CONN_MAX_IDLE_TIME", 30*time.Minute),
		ConnectTimeout:     getDurationEnv("DB_CONNECT_TIMEOUT", 10*time.Second),
		MaxRetryAttempts:   getIntEnv("DB_MAX_RETRY_ATTEMPTS", 3),
		RetryBackoff:       getDurationEnv("DB_RETRY_BACKOFF", 1*time.Second),
		SlowQueryThreshold: getDurationEnv("DB_SLOW_QUERY_THRESHOLD", 100*time.Millisecond),
		AutoMigrate:        getBoolEnv("DB_AUTO_MIGRATE", true),
	}

	switch env {
	case "production":
		config.MaxOpenConns = getIntEnv("DB_MAX_OPEN_CONNS", 50)
		config.MaxIdleConns = getIntEnv("DB_MAX_IDLE_CONNS", 20)
		config.ConnMaxLifetime = getDurationEnv("DB_CONN_MAX_LIFETIME", 15*time.Minute)
		config.SlowQueryThreshold = getDurationEnv("DB_SLOW_QUERY_THRESHOLD", 200*time.Millisecond)
	case "development":
		config.SlowQueryThreshold = getDurationEnv("DB_SLOW_QUERY_THRESHOLD", 50*time.Millisecond)
	}

	if config.MaxIdleConns > config.MaxOpenConns {
		config.MaxIdleConns = config.MaxOpenConns
	}

	return config
}

func loadCacheConfig() CacheConfig {
	return CacheConfig{
		Provider:      getEnv("CACHE_PROVIDER", "memory"),
		RedisURL:      getEnv("REDIS_URL", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getIntEnv("REDIS_DB", 0),
		DefaultTTL:    getDurationEnv("CACHE_DEFAULT_TTL", 10*time.Minute),
		MaxKeys:       getIntEnv("CACHE_MAX_KEYS", 10000),
		KeyPrefix:     getEnv("CACHE_KEY_PREFIX", "petfolio:"),
	}
}

func loadLoggingConfig(env string) LoggingConfig {
	return LoggingConfig{
		Level:  strings.ToLower(getEnv("LOG_LEVEL", getDefaultLogLevel(env))),
		Format: strings.ToLower(getEnv("LOG_FORMAT", getDefaultLogFormat(env))),
	}
}

func loadBadgesConfig() BadgesConfig {
	return BadgesConfig{
		Shards:            getIntEnv("BADGE_SHARDS", 8),
		QueueSize:         getIntEnv("BADGE_QUEUE_SIZE", 256),
		ListenerBuffer:    getIntEnv("BADGE_LISTENER_BUFFER", 256),
		PublishTimeout:    getDurationEnv("BADGE_PUBLISH_TIMEOUT", 5*time.Second),
		OperationTimeout:  getDurationEnv("BADGE_OPERATION_TIMEOUT", 10*time.Second),
		DaysCheckInterval: getDurationEnv("BADGE_DAYS_CHECK_INTERVAL", 6*time.Hour),
	}
}

func loadEventsConfig() EventsConfig {
	return EventsConfig{
		HandlerTimeout:   getDurationEnv("EVENTS_HANDLER_TIMEOUT", 30*time.Second),
		ListenerBuffer:   getIntEnv("EVENTS_LISTENER_BUFFER", 256),
		BacklogThreshold: getIntEnv("EVENTS_BACKLOG_THRESHOLD", 80),
	}
}

// Validate checks field constraints and the settings that depend on each other
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}

	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database config: MaxIdleConns cannot be greater than MaxOpenConns")
	}

	if c.Cache.Provider == "redis" && c.Cache.RedisURL == "" {
		return fmt.Errorf("cache config: REDIS_URL is required for the redis provider")
	}

	if c.Badges.DaysCheckInterval > 0 && c.Badges.DaysCheckInterval < time.Second {
		return fmt.Errorf("badges config: BADGE_DAYS_CHECK_INTERVAL must be 0 or at least 1s")
	}

	return nil
}

func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

func (c *Config) IsDevelopment() bool {
	return c.Server.Environment == "development"
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getDefaultLogLevel(env string) string {
	switch env {
	case "production":
		return "info"
	default:
		return "debug"
	}
}

func getDefaultLogFormat(env string) string {
	switch env {
	case "production":
		return "json"
	default:
		return "console"
	}
}
